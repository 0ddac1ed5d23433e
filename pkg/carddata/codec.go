// Package carddata converts card payloads between raw bytes and the hex text
// used at every storage and transport boundary.
package carddata

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedEncoding is returned when a hex string has odd length or holds a
// character outside [0-9A-Fa-f].
var ErrMalformedEncoding = errors.New("carddata: malformed hex encoding")

// Encode renders each byte as two uppercase hex digits, without separators.
func Encode(b []byte) string {
	return strings.ToUpper(hex.EncodeToString(b))
}

// Decode parses hex text in either case. The empty string decodes to an empty
// buffer.
func Decode(s string) ([]byte, error) {
	if len(s)%2 != 0 {
		return nil, fmt.Errorf("%w: odd length %d", ErrMalformedEncoding, len(s))
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEncoding, err)
	}
	return b, nil
}

// MustDecode joins parts, drops spaces so frames can be written as
// "00 A4 04 00", and decodes the result. It panics on malformed input and is
// meant for constants and tests.
func MustDecode(parts ...string) []byte {
	clean := strings.ReplaceAll(strings.Join(parts, ""), " ", "")

	b, err := Decode(clean)
	if err != nil {
		panic(fmt.Sprintf("invalid input '%s': %v", clean, err))
	}
	return b
}

// Package tlv renders and searches BER-TLV data returned by a card, such as
// the FCI template answered to a SELECT.
package tlv

import (
	"errors"
	"fmt"
	"strings"

	"github.com/moov-io/bertlv"
)

// ErrTagNotFound is returned by Find when no element carries the tag.
var ErrTagNotFound = errors.New("tlv: tag not found")

// Dump decodes data and renders one line per element, nested templates
// indented under their parent.
func Dump(data []byte) (string, error) {
	packets, err := bertlv.Decode(data)
	if err != nil {
		return "", fmt.Errorf("bertlv decode failed: %w", err)
	}

	var sb strings.Builder
	writePackets(&sb, packets, 0)
	return sb.String(), nil
}

func writePackets(sb *strings.Builder, packets []bertlv.TLV, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, p := range packets {
		tag := strings.ToUpper(p.Tag)
		if len(p.TLVs) > 0 {
			fmt.Fprintf(sb, "%s%s:\n", indent, tag)
			writePackets(sb, p.TLVs, depth+1)
			continue
		}
		fmt.Fprintf(sb, "%s%s: %X", indent, tag, p.Value)
		if printable(p.Value) {
			fmt.Fprintf(sb, " (%q)", string(p.Value))
		}
		sb.WriteByte('\n')
	}
}

// Find walks data depth-first and returns the value of the first element
// with the given tag. Constructed elements come back re-encoded.
func Find(data []byte, tag string) ([]byte, error) {
	packets, err := bertlv.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("bertlv decode failed: %w", err)
	}
	if p, ok := find(packets, strings.ToUpper(tag)); ok {
		return rawValue(p)
	}
	return nil, fmt.Errorf("%w: %s", ErrTagNotFound, strings.ToUpper(tag))
}

func find(packets []bertlv.TLV, tag string) (bertlv.TLV, bool) {
	for _, p := range packets {
		if strings.ToUpper(p.Tag) == tag {
			return p, true
		}
		if found, ok := find(p.TLVs, tag); ok {
			return found, true
		}
	}
	return bertlv.TLV{}, false
}

func rawValue(p bertlv.TLV) ([]byte, error) {
	if len(p.TLVs) > 0 {
		return bertlv.Encode(p.TLVs)
	}
	return p.Value, nil
}

// printable reports whether every byte is visible ASCII.
func printable(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	for _, b := range data {
		if b < 0x20 || b > 0x7E {
			return false
		}
	}
	return true
}

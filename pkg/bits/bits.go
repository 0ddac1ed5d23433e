// Package bits holds the small bit and byte helpers used when decoding APDU
// header bytes. Bit positions follow ISO/IEC 7816 numbering: b1 is the least
// significant bit, b8 the most significant.
package bits

// Bit returns a byte with only bit n set. Positions outside 1..8 yield 0.
func Bit(n uint) byte {
	if n < 1 || n > 8 {
		return 0
	}
	return 1 << (n - 1)
}

// IsSet reports whether bit n of b is set.
func IsSet(b byte, n uint) bool {
	return b&Bit(n) != 0
}

// Set returns b with bit n set.
func Set(b byte, n uint) byte {
	return b | Bit(n)
}

// Field extracts the value held in bits high..low of b, shifted down to b1.
// Field(0b0000_1100, 4, 3) == 3.
func Field(b byte, high, low uint) byte {
	if high < low || high > 8 || low < 1 {
		return 0
	}
	width := high - low + 1
	mask := byte((1 << width) - 1)
	return (b >> (low - 1)) & mask
}

// Uint16 joins a big-endian byte pair.
func Uint16(hi, lo byte) uint16 {
	return uint16(hi)<<8 | uint16(lo)
}

// Split16 splits v into its big-endian byte pair.
func Split16(v uint16) (hi, lo byte) {
	return byte(v >> 8), byte(v)
}

package iso7816

import (
	"github.com/gregLibert/rfaccess/pkg/bits"
)

// READ BINARY (B0) and UPDATE BINARY (D6) address a transparent file.
// With b8 of P1 clear, P1-P2 is a 15-bit offset; emulated storage cards read
// the pair as a plain big-endian 16-bit offset.

// BlockSize is the MIFARE Classic block size and the default read length.
const BlockSize = 16

// ReadBinary reads length bytes at offset. A length of 0 requests 256 bytes.
func ReadBinary(cla Class, offset uint16, length int) *CommandAPDU {
	p1, p2 := bits.Split16(offset)
	if length == 0 {
		length = MaxShortLe
	}
	return NewCommandAPDU(cla, mustInstruction(INS_READ_BINARY), p1, p2, nil, length)
}

// ReadBlock reads one 16-byte block by its index.
func ReadBlock(cla Class, block uint16) *CommandAPDU {
	return ReadBinary(cla, block*BlockSize, BlockSize)
}

// UpdateBinary overwrites data at offset.
func UpdateBinary(cla Class, offset uint16, data []byte) *CommandAPDU {
	p1, p2 := bits.Split16(offset)
	return NewCommandAPDU(cla, mustInstruction(INS_UPDATE_BINARY), p1, p2, data, 0)
}

package iso7816

import (
	"fmt"

	"github.com/gregLibert/rfaccess/pkg/bits"
)

// Instruction Byte (INS) Logic according to ISO/IEC 7816-4.
//
// Bit b1 of an interindustry INS selects the data field format:
//   - 0: Standard or no specific formatting.
//   - 1: BER-TLV encoded data.
//
// INS values with a '6X' or '9X' high nibble are invalid: those values are
// reserved for SW1 and the T=0 procedure bytes.

// InsCode is a typed representation of the instruction byte.
type InsCode byte

// Instruction codes used by storage-card readers and by the emulated card.
const (
	INS_VERIFY                InsCode = 0x20
	INS_EXTERNAL_AUTHENTICATE InsCode = 0x82
	INS_GET_CHALLENGE         InsCode = 0x84
	INS_GENERAL_AUTHENTICATE  InsCode = 0x86
	INS_INTERNAL_AUTHENTICATE InsCode = 0x88
	INS_SELECT                InsCode = 0xA4
	INS_READ_BINARY           InsCode = 0xB0
	INS_READ_BINARY_BER       InsCode = 0xB1
	INS_READ_RECORD           InsCode = 0xB2
	INS_GET_RESPONSE          InsCode = 0xC0
	INS_GET_DATA              InsCode = 0xCA
	INS_WRITE_BINARY          InsCode = 0xD0
	INS_UPDATE_BINARY         InsCode = 0xD6
	INS_UPDATE_BINARY_BER     InsCode = 0xD7
	INS_PUT_DATA              InsCode = 0xDA
	INS_UPDATE_RECORD         InsCode = 0xDC
)

var insNames = map[InsCode]string{
	INS_VERIFY:                "VERIFY",
	INS_EXTERNAL_AUTHENTICATE: "EXTERNAL AUTHENTICATE",
	INS_GET_CHALLENGE:         "GET CHALLENGE",
	INS_GENERAL_AUTHENTICATE:  "GENERAL AUTHENTICATE",
	INS_INTERNAL_AUTHENTICATE: "INTERNAL AUTHENTICATE",
	INS_SELECT:                "SELECT",
	INS_READ_BINARY:           "READ BINARY",
	INS_READ_BINARY_BER:       "READ BINARY (BER-TLV)",
	INS_READ_RECORD:           "READ RECORD",
	INS_GET_RESPONSE:          "GET RESPONSE",
	INS_GET_DATA:              "GET DATA",
	INS_WRITE_BINARY:          "WRITE BINARY",
	INS_UPDATE_BINARY:         "UPDATE BINARY",
	INS_UPDATE_BINARY_BER:     "UPDATE BINARY (BER-TLV)",
	INS_PUT_DATA:              "PUT DATA",
	INS_UPDATE_RECORD:         "UPDATE RECORD",
}

func (c InsCode) String() string {
	if name, ok := insNames[c]; ok {
		return name
	}
	return fmt.Sprintf("INS(%02X)", byte(c))
}

// Instruction represents the parsed ISO 7816-4 Instruction byte (INS).
type Instruction struct {
	Raw      InsCode
	IsBERTLV bool
}

// NewInstruction creates an Instruction object with validation.
// It rejects '6X' and '9X' values as they are invalid according to ISO 7816-3.
func NewInstruction(ins InsCode) (Instruction, error) {
	highNibble := byte(ins) & 0xF0
	if highNibble == 0x60 || highNibble == 0x90 {
		return Instruction{}, fmt.Errorf("invalid INS 0x%02X: 6X and 9X are reserved", byte(ins))
	}

	return Instruction{
		Raw:      ins,
		IsBERTLV: bits.IsSet(byte(ins), 1),
	}, nil
}

// mustInstruction is for the package's own constant instructions.
func mustInstruction(ins InsCode) Instruction {
	i, err := NewInstruction(ins)
	if err != nil {
		panic(err)
	}
	return i
}

// Verbose returns a human-readable description of the instruction.
func (i Instruction) Verbose() string {
	format := "Standard"
	if i.IsBERTLV {
		format = "BER-TLV"
	}
	return fmt.Sprintf("INS: 0x%02X | Command: %s | Format: %s", byte(i.Raw), i.Raw, format)
}

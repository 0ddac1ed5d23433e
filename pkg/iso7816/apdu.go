package iso7816

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/gregLibert/rfaccess/pkg/bits"
)

// APDU structures and encodings according to ISO/IEC 7816-3 and 7816-4.
//
// COMMAND APDU (C-APDU): Header CLA INS P1 P2, then an optional body.
//
//	Case 1: Header only.
//	Case 2: Header + Le.
//	Case 3: Header + Lc + Data.
//	Case 4: Header + Lc + Data + Le.
//
// Short lengths use one byte (Le 00 encodes 256). Extended lengths are
// announced by a 00 byte followed by two-byte fields (Le 0000 encodes 65536).
//
// RESPONSE APDU (R-APDU): optional data followed by the SW1 SW2 trailer.

// APDU Limits according to ISO 7816-3.
const (
	HeaderSize = 4

	MaxShortLc    = 255
	MaxShortLe    = 256
	MaxExtendedLc = 65535
	MaxExtendedLe = 65536
)

// ErrCommandTooShort is returned when a frame does not even carry a header.
var ErrCommandTooShort = errors.New("command shorter than the 4-byte header")

// CommandAPDU represents a command sent to the card.
type CommandAPDU struct {
	Class       Class
	Instruction Instruction
	P1, P2      byte
	Data        []byte
	Ne          int // Expected response length (0 means none)
}

// NewCommandAPDU creates a basic command.
func NewCommandAPDU(cla Class, ins Instruction, p1, p2 byte, data []byte, ne int) *CommandAPDU {
	return &CommandAPDU{
		Class:       cla,
		Instruction: ins,
		P1:          p1,
		P2:          p2,
		Data:        data,
		Ne:          ne,
	}
}

// Bytes encodes the CommandAPDU into its byte representation (C-APDU),
// switching to extended lengths when Nc or Ne do not fit the short form.
func (c *CommandAPDU) Bytes() ([]byte, error) {
	buf := new(bytes.Buffer)

	class, err := c.Class.Encode()
	if err != nil {
		return nil, fmt.Errorf("failed to encode Class: %w", err)
	}
	buf.WriteByte(class)
	buf.WriteByte(byte(c.Instruction.Raw))
	buf.WriteByte(c.P1)
	buf.WriteByte(c.P2)

	nc := len(c.Data)
	ne := c.Ne
	if nc > MaxExtendedLc || ne > MaxExtendedLe {
		return nil, fmt.Errorf("lengths out of range: Nc=%d Ne=%d", nc, ne)
	}

	isExtended := nc > MaxShortLc || ne > MaxShortLe

	if nc > 0 {
		if !isExtended {
			buf.WriteByte(byte(nc))
		} else {
			hi, lo := bits.Split16(uint16(nc))
			buf.Write([]byte{0x00, hi, lo})
		}
		buf.Write(c.Data)
	}

	if ne > 0 {
		switch {
		case !isExtended:
			// 256 wraps to 00.
			buf.WriteByte(byte(ne))
		default:
			if nc == 0 {
				buf.WriteByte(0x00)
			}
			// 65536 wraps to 0000.
			hi, lo := bits.Split16(uint16(ne))
			buf.Write([]byte{hi, lo})
		}
	}

	return buf.Bytes(), nil
}

// String returns a readable representation of the command meta-data.
func (c *CommandAPDU) String() string {
	return fmt.Sprintf("%s | P1: %02X, P2: %02X | Lc: %d | Le: %d",
		c.Instruction.Verbose(), c.P1, c.P2, len(c.Data), c.Ne)
}

// Offset returns P1-P2 read as a big-endian 16-bit value, which is how
// READ BINARY and UPDATE BINARY address the emulated surface.
func (c *CommandAPDU) Offset() uint16 {
	return bits.Uint16(c.P1, c.P2)
}

// ParseCommandAPDU decodes a raw frame received from a reader.
// Data aliases raw; callers that keep the command must copy it.
func ParseCommandAPDU(raw []byte) (*CommandAPDU, error) {
	if len(raw) < HeaderSize {
		return nil, ErrCommandTooShort
	}

	cla, err := NewClass(raw[0])
	if err != nil {
		return nil, err
	}
	ins, err := NewInstruction(InsCode(raw[1]))
	if err != nil {
		return nil, err
	}

	cmd := NewCommandAPDU(cla, ins, raw[2], raw[3], nil, 0)
	body := raw[HeaderSize:]

	switch {
	case len(body) == 0:
		return cmd, nil

	case len(body) == 1:
		cmd.Ne = shortLe(body[0])
		return cmd, nil

	case body[0] != 0x00:
		lc := int(body[0])
		switch len(body) {
		case 1 + lc:
			cmd.Data = body[1:]
		case 2 + lc:
			cmd.Data = body[1 : 1+lc]
			cmd.Ne = shortLe(body[1+lc])
		default:
			return nil, fmt.Errorf("short Lc=%d inconsistent with body length %d", lc, len(body))
		}
		return cmd, nil

	case len(body) == 3:
		cmd.Ne = extendedLe(body[1], body[2])
		return cmd, nil

	case len(body) > 3:
		lc := int(bits.Uint16(body[1], body[2]))
		if lc == 0 {
			return nil, fmt.Errorf("extended Lc of zero")
		}
		switch len(body) {
		case 3 + lc:
			cmd.Data = body[3:]
		case 5 + lc:
			cmd.Data = body[3 : 3+lc]
			cmd.Ne = extendedLe(body[3+lc], body[4+lc])
		default:
			return nil, fmt.Errorf("extended Lc=%d inconsistent with body length %d", lc, len(body))
		}
		return cmd, nil

	default:
		return nil, fmt.Errorf("malformed body % X", body)
	}
}

func shortLe(b byte) int {
	if b == 0 {
		return MaxShortLe
	}
	return int(b)
}

func extendedLe(hi, lo byte) int {
	v := int(bits.Uint16(hi, lo))
	if v == 0 {
		return MaxExtendedLe
	}
	return v
}

// ResponseAPDU represents the reply from the card (R-APDU).
type ResponseAPDU struct {
	Data   []byte
	Status StatusWord
}

// ParseResponseAPDU parses raw bytes received from the card into a ResponseAPDU.
// The input must contain at least 2 bytes (SW1, SW2).
func ParseResponseAPDU(raw []byte) (*ResponseAPDU, error) {
	if len(raw) < 2 {
		return nil, fmt.Errorf("response too short: length %d", len(raw))
	}

	indexSW1 := len(raw) - 2
	return &ResponseAPDU{
		Data:   raw[:indexSW1],
		Status: NewStatusWord(raw[indexSW1], raw[indexSW1+1]),
	}, nil
}

// String returns a readable representation of the response.
func (r *ResponseAPDU) String() string {
	return fmt.Sprintf("Data (%d bytes) | Status: %s", len(r.Data), r.Status.Verbose())
}

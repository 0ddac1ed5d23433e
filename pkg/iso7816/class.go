package iso7816

import (
	"fmt"

	"github.com/gregLibert/rfaccess/pkg/bits"
)

// Class Byte (CLA) Structure according to ISO/IEC 7816-4 §5.4.1.
//
//	b8    Proprietary (1) or interindustry (0).
//	b7    First (0) or further (1) interindustry class.
//	b5    Command chaining.
//
// First interindustry (000x xxxx): b4-b3 secure messaging, b2-b1 channel 0-3.
// Further interindustry (01xx xxxx): b6 secure messaging, b4-b1 channel minus 4.
//
// Readers talking to an emulated storage card send CLA 00 in practice.

// SecureMessaging defines the security level indicated by the CLA byte.
type SecureMessaging int

const (
	SMNone         SecureMessaging = 0
	SMProprietary  SecureMessaging = 1
	SMHeaderNoProc SecureMessaging = 2
	SMHeaderAuth   SecureMessaging = 3
)

func (sm SecureMessaging) String() string {
	switch sm {
	case SMNone:
		return "None"
	case SMProprietary:
		return "Proprietary"
	case SMHeaderNoProc:
		return "ISO (Header not processed)"
	case SMHeaderAuth:
		return "ISO (Header authenticated)"
	default:
		return "Unknown"
	}
}

// Class represents the parsed ISO 7816-4 Class byte (CLA).
type Class struct {
	Raw             byte
	IsProprietary   bool
	IsChained       bool
	SecureMessaging SecureMessaging
	Channel         uint8
}

// NewClass decodes a raw CLA byte. 0xFF is reserved for PPS and is rejected.
func NewClass(cla byte) (Class, error) {
	if cla == 0xFF {
		return Class{}, fmt.Errorf("invalid CLA value: 0xFF is reserved")
	}

	c := Class{Raw: cla}

	if bits.IsSet(cla, 8) {
		c.IsProprietary = true
		return c, nil
	}

	c.IsChained = bits.IsSet(cla, 5)

	if !bits.IsSet(cla, 7) {
		c.SecureMessaging = SecureMessaging(bits.Field(cla, 4, 3))
		c.Channel = bits.Field(cla, 2, 1)
		return c, nil
	}

	if bits.IsSet(cla, 6) {
		c.SecureMessaging = SMHeaderNoProc
	}
	c.Channel = bits.Field(cla, 4, 1) + 4

	return c, nil
}

// Encode converts the Class back to its byte representation.
func (c Class) Encode() (byte, error) {
	if c.IsProprietary {
		return c.Raw, nil
	}
	if c.Channel > 19 {
		return 0, fmt.Errorf("channel %d out of range (max 19)", c.Channel)
	}

	var res byte
	if c.IsChained {
		res = bits.Set(res, 5)
	}

	if c.Channel <= 3 {
		res |= byte(c.SecureMessaging) << 2
		res |= c.Channel
		return res, nil
	}

	if c.SecureMessaging == SMProprietary || c.SecureMessaging == SMHeaderAuth {
		return 0, fmt.Errorf("SM indicator %d not supported for channel %d", c.SecureMessaging, c.Channel)
	}
	res = bits.Set(res, 7)
	if c.SecureMessaging != SMNone {
		res = bits.Set(res, 6)
	}
	res |= c.Channel - 4

	return res, nil
}

// Verbose returns a one-line description of the CLA byte.
func (c Class) Verbose() string {
	if c.IsProprietary {
		return fmt.Sprintf("CLA: 0x%02X | Proprietary", c.Raw)
	}
	return fmt.Sprintf("CLA: 0x%02X | Channel: %d | SM: %s | Chained: %t",
		c.Raw, c.Channel, c.SecureMessaging, c.IsChained)
}

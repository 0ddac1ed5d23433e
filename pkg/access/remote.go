package access

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gregLibert/rfaccess/pkg/distribution"
	"github.com/gregLibert/rfaccess/pkg/emulation"
	"github.com/gregLibert/rfaccess/pkg/provisioning"
)

// Remote control message types.
const (
	TypeProgrammingData  = "programming_data"
	TypeEmulationControl = "emulation_control"
)

var (
	ErrUnknownMessageType = errors.New("access: unknown remote message type")
	ErrUnsupportedAction  = errors.New("access: unsupported action")
	ErrMissingField       = errors.New("access: missing field")
)

// RemoteMessage is a parsed remote control message.
type RemoteMessage struct {
	Type     string
	Username string
	CardData string
	Action   string
	Activate bool
}

// RemoteResult reports what ApplyRemoteControl did.
type RemoteResult struct {
	Type       string
	Credential *distribution.Record // set for programming_data
	Emulation  emulation.Status
}

type remoteFields struct {
	Username *string `json:"username"`
	CardData *string `json:"cardData"`
	Action   *string `json:"action"`
	Activate *bool   `json:"activate"`
}

type remoteEnvelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
	remoteFields
}

// ParseRemoteMessage decodes a remote control message. The nested payload
// may be a JSON object or a JSON string holding one, as push transports only
// carry string values. Payload fields take precedence over top-level ones.
func ParseRemoteMessage(data []byte) (RemoteMessage, error) {
	var env remoteEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return RemoteMessage{}, fmt.Errorf("parse remote message: %w", err)
	}

	fields := env.remoteFields
	if raw := bytes.TrimSpace(env.Payload); len(raw) > 0 && !bytes.Equal(raw, []byte("null")) {
		if raw[0] == '"' {
			var s string
			if err := json.Unmarshal(raw, &s); err != nil {
				return RemoteMessage{}, fmt.Errorf("parse remote payload: %w", err)
			}
			raw = []byte(s)
		}
		var nested remoteFields
		if err := json.Unmarshal(raw, &nested); err != nil {
			return RemoteMessage{}, fmt.Errorf("parse remote payload: %w", err)
		}
		fields = merge(nested, fields)
	}

	msg := RemoteMessage{Type: env.Type}
	if fields.Username != nil {
		msg.Username = *fields.Username
	}
	if fields.CardData != nil {
		msg.CardData = *fields.CardData
	}
	if fields.Action != nil {
		msg.Action = *fields.Action
	}
	if fields.Activate != nil {
		msg.Activate = *fields.Activate
	}
	return msg, nil
}

func merge(primary, fallback remoteFields) remoteFields {
	if primary.Username == nil {
		primary.Username = fallback.Username
	}
	if primary.CardData == nil {
		primary.CardData = fallback.CardData
	}
	if primary.Action == nil {
		primary.Action = fallback.Action
	}
	if primary.Activate == nil {
		primary.Activate = fallback.Activate
	}
	return primary
}

// ApplyRemoteControl routes msg: emulation_control loads emulation data,
// programming_data issues a credential.
func (s *Service) ApplyRemoteControl(ctx context.Context, msg RemoteMessage) (RemoteResult, error) {
	switch msg.Type {
	case TypeEmulationControl:
		if msg.CardData == "" {
			return RemoteResult{}, fmt.Errorf("%w: cardData", ErrMissingField)
		}
		if err := s.LoadEmulation(ctx, msg.CardData, msg.Activate); err != nil {
			return RemoteResult{}, err
		}
		s.logger.InfoContext(ctx, "emulation updated remotely", "username", msg.Username, "active", msg.Activate)
		return RemoteResult{Type: msg.Type, Emulation: s.EmulationStatus()}, nil

	case TypeProgrammingData:
		if msg.Action != "" && msg.Action != provisioning.ActionProgram {
			return RemoteResult{}, fmt.Errorf("%w: %q", ErrUnsupportedAction, msg.Action)
		}
		if msg.Username == "" {
			return RemoteResult{}, fmt.Errorf("%w: username", ErrMissingField)
		}
		if msg.CardData == "" {
			return RemoteResult{}, fmt.Errorf("%w: cardData", ErrMissingField)
		}
		r, err := s.CreateCredential(ctx, msg.Username, msg.CardData)
		if err != nil {
			return RemoteResult{}, err
		}
		s.logger.InfoContext(ctx, "credential issued remotely", "id", r.ID, "username", r.Subject)
		return RemoteResult{Type: msg.Type, Credential: &r, Emulation: s.EmulationStatus()}, nil

	default:
		return RemoteResult{}, fmt.Errorf("%w: %q", ErrUnknownMessageType, msg.Type)
	}
}

package emulation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/gregLibert/rfaccess/pkg/carddata"
	"github.com/gregLibert/rfaccess/pkg/kv"
)

// SettingsKey is the kv key holding the persisted emulation settings.
const SettingsKey = "emulation"

// Settings is the persisted (payload, active) pair.
type Settings struct {
	Payload []byte // nil when no payload was ever loaded
	Active  bool
}

type storedSettings struct {
	EmulationData   *string `json:"emulationData"`
	EmulationActive bool    `json:"emulationActive"`
}

// SettingsStore persists Settings in a kv.Store.
type SettingsStore struct {
	kv     kv.Store
	logger *slog.Logger
}

func NewSettingsStore(backend kv.Store, logger *slog.Logger) *SettingsStore {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &SettingsStore{kv: backend, logger: logger.With("component", "emulation_settings")}
}

func (s *SettingsStore) Save(ctx context.Context, settings Settings) error {
	stored := storedSettings{EmulationActive: settings.Active}
	if settings.Payload != nil {
		hex := carddata.Encode(settings.Payload)
		stored.EmulationData = &hex
	}

	data, err := kv.MarshalJSON(stored)
	if err != nil {
		return fmt.Errorf("encode emulation settings: %w", err)
	}
	if err := s.kv.Put(ctx, SettingsKey, data); err != nil {
		return fmt.Errorf("save emulation settings: %w", err)
	}
	return nil
}

// Load returns the persisted settings and whether any were found. Unreadable
// settings are logged and reported as not found.
func (s *SettingsStore) Load(ctx context.Context) (Settings, bool, error) {
	data, err := s.kv.Get(ctx, SettingsKey)
	if errors.Is(err, kv.ErrNotFound) {
		return Settings{}, false, nil
	}
	if err != nil {
		return Settings{}, false, fmt.Errorf("load emulation settings: %w", err)
	}

	var stored storedSettings
	if err := json.Unmarshal(data, &stored); err != nil {
		s.logger.WarnContext(ctx, "emulation settings unreadable, ignoring", "error", err)
		return Settings{}, false, nil
	}

	settings := Settings{Active: stored.EmulationActive}
	if stored.EmulationData != nil {
		payload, err := carddata.Decode(*stored.EmulationData)
		if err != nil {
			s.logger.WarnContext(ctx, "emulation settings unreadable, ignoring", "error", err)
			return Settings{}, false, nil
		}
		settings.Payload = payload
	}
	return settings, true, nil
}

// Restore initializes state from the persisted settings. When no payload was
// persisted, state gets fallback (which may be nil); with no settings at all
// it also stays inactive.
func (s *SettingsStore) Restore(ctx context.Context, state *State, fallback []byte) error {
	settings, ok, err := s.Load(ctx)
	if err != nil {
		return err
	}
	if !ok {
		state.Load(fallback, false)
		s.logger.InfoContext(ctx, "no emulation settings persisted", "default_image", fallback != nil)
		return nil
	}

	payload := settings.Payload
	if payload == nil {
		payload = fallback
	}
	state.Load(payload, settings.Active)
	s.logger.InfoContext(ctx, "emulation settings restored",
		"active", settings.Active, "payload_bytes", len(settings.Payload))
	return nil
}

// Package access is the activation and query surface that hosts (UI, HTTP,
// push handlers) call. It bridges the credential store and the emulation
// state, which otherwise never touch each other.
package access

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/gregLibert/rfaccess/pkg/carddata"
	"github.com/gregLibert/rfaccess/pkg/distribution"
	"github.com/gregLibert/rfaccess/pkg/emulation"
	"github.com/gregLibert/rfaccess/pkg/provisioning"
)

// Service implements the activation/query interface.
type Service struct {
	credentials *distribution.Store
	settings    *emulation.SettingsStore
	state       *emulation.State
	linker      provisioning.Linker
	metrics     *emulation.Metrics
	logger      *slog.Logger

	// emu serializes persist-then-swap in LoadEmulation so the persisted
	// pair and the live State agree.
	emu sync.Mutex
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithLinker sets the scheme accepted by ProgramFromLink.
func WithLinker(l provisioning.Linker) Option {
	return func(s *Service) {
		s.linker = l
	}
}

// WithMetrics keeps the emulation gauges in step with LoadEmulation.
func WithMetrics(m *emulation.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New constructs a Service.
func New(credentials *distribution.Store, settings *emulation.SettingsStore, state *emulation.State, opts ...Option) *Service {
	s := &Service{
		credentials: credentials,
		settings:    settings,
		state:       state,
		linker:      provisioning.NewLinker(""),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s.logger = s.logger.With("component", "access")
	if s.metrics != nil {
		s.metrics.SetStatus(state.Status())
	}
	return s
}

func (s *Service) CreateCredential(ctx context.Context, subject, payloadHex string) (distribution.Record, error) {
	payload, err := carddata.Decode(payloadHex)
	if err != nil {
		return distribution.Record{}, err
	}
	return s.credentials.Create(ctx, subject, payload)
}

func (s *Service) ListActiveCredentials(ctx context.Context) ([]distribution.Record, error) {
	return s.credentials.ListActive(ctx)
}

func (s *Service) ListAllCredentials(ctx context.Context) ([]distribution.Record, error) {
	return s.credentials.ListAll(ctx)
}

func (s *Service) DeleteCredential(ctx context.Context, id string) (bool, error) {
	return s.credentials.Delete(ctx, id)
}

// DeleteOlderThan expires credentials issued before now-d. Pass
// distribution.Unbounded to remove all of them.
func (s *Service) DeleteOlderThan(ctx context.Context, d time.Duration) (int, error) {
	return s.credentials.DeleteOlderThan(ctx, d)
}

func (s *Service) ReissueCredential(ctx context.Context, id string) (distribution.Record, bool, error) {
	return s.credentials.Reissue(ctx, id)
}

// LoadEmulation persists the pair and then swaps it into the live State.
// Readers see the change on their next frame.
func (s *Service) LoadEmulation(ctx context.Context, payloadHex string, activate bool) error {
	payload, err := carddata.Decode(payloadHex)
	if err != nil {
		return err
	}
	return s.loadEmulation(ctx, payload, activate)
}

func (s *Service) loadEmulation(ctx context.Context, payload []byte, activate bool) error {
	s.emu.Lock()
	defer s.emu.Unlock()

	if err := s.settings.Save(ctx, emulation.Settings{Payload: payload, Active: activate}); err != nil {
		return fmt.Errorf("load emulation: %w", err)
	}
	s.state.Load(payload, activate)

	status := s.state.Status()
	if s.metrics != nil {
		s.metrics.SetStatus(status)
	}
	s.logger.InfoContext(ctx, "emulation data updated", "active", status.Active, "payload_bytes", status.PayloadSize)
	return nil
}

func (s *Service) EmulationStatus() emulation.Status {
	return s.state.Status()
}

// ProgramFromLink loads the payload carried by a provisioning link into
// emulation. It does not create a credential: the link already belongs to one
// on the issuing side.
func (s *Service) ProgramFromLink(ctx context.Context, uri string, activate bool) (provisioning.Link, error) {
	link, err := s.linker.Parse(uri)
	if err != nil {
		return provisioning.Link{}, err
	}
	if link.Action != provisioning.ActionProgram {
		return link, fmt.Errorf("%w: %q", ErrUnsupportedAction, link.Action)
	}
	if !link.HasPayload || len(link.Payload) == 0 {
		return link, fmt.Errorf("%w: cardData", ErrMissingField)
	}

	if err := s.loadEmulation(ctx, link.Payload, activate); err != nil {
		return link, err
	}
	s.logger.InfoContext(ctx, "programmed from link", "subject", link.Subject, "id", link.ID)
	return link, nil
}

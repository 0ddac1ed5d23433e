// Package distribution keeps the durable set of issued credentials
// ("distributions") and their lifecycle: issue, list, revoke, expire and
// reissue.
//
// The whole set is stored as one JSON array under a single key of a kv.Store.
// Every mutation is a read-modify-write of that array, serialized by the
// Store's mutex. An updated record is removed and appended again, so list
// order is insertion order of each record's latest write.
package distribution

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gregLibert/rfaccess/pkg/kv"
	"github.com/gregLibert/rfaccess/pkg/provisioning"
)

// Key is the kv key holding the credential array.
const Key = "distributions"

// Unbounded passed to DeleteOlderThan removes every record.
const Unbounded time.Duration = -1

// Store manages Records on top of a kv.Store.
type Store struct {
	kv     kv.Store
	linker provisioning.Linker
	now    func() time.Time
	newID  func() string
	logger *slog.Logger

	mu sync.Mutex
}

type Option func(*Store)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithIDGenerator replaces uuid.NewString for record IDs.
func WithIDGenerator(newID func() string) Option {
	return func(s *Store) {
		s.newID = newID
	}
}

// WithLinker sets the scheme used for record links.
func WithLinker(l provisioning.Linker) Option {
	return func(s *Store) {
		s.linker = l
	}
}

// New constructs a Store persisting to backend.
func New(backend kv.Store, opts ...Option) *Store {
	s := &Store{
		kv:     backend,
		linker: provisioning.NewLinker(""),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s.logger = s.logger.With("component", "distribution")
	return s
}

// Create issues a new active record for subject. There is no uniqueness check:
// a subject may hold several active records.
func (s *Store) Create(ctx context.Context, subject string, payload []byte) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load(ctx)
	if err != nil {
		return Record{}, err
	}

	r := s.newRecord(subject, payload)
	if err := s.save(ctx, upsert(records, r)); err != nil {
		return Record{}, err
	}

	s.logger.DebugContext(ctx, "created distribution", "id", r.ID, "subject", subject)
	return r, nil
}

// ListActive returns the active records in stored order.
func (s *Store) ListActive(ctx context.Context) ([]Record, error) {
	records, err := s.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(records, func(r Record) bool { return !r.Active }), nil
}

// ListAll returns every record, active or not.
func (s *Store) ListAll(ctx context.Context) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.load(ctx)
}

// Delete removes the record with id and reports whether it existed.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load(ctx)
	if err != nil {
		return false, err
	}

	kept := slices.DeleteFunc(records, func(r Record) bool { return r.ID == id })
	if len(kept) == len(records) {
		return false, nil
	}
	if err := s.save(ctx, kept); err != nil {
		return false, err
	}

	s.logger.DebugContext(ctx, "deleted distribution", "id", id)
	return true, nil
}

// DeleteOlderThan removes every record issued strictly before now-d, active or
// not, and returns how many were removed. A negative d (see Unbounded)
// removes everything.
func (s *Store) DeleteOlderThan(ctx context.Context, d time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load(ctx)
	if err != nil {
		return 0, err
	}

	cutoff := s.now().UnixMilli() - d.Milliseconds()
	before := len(records)
	kept := slices.DeleteFunc(records, func(r Record) bool {
		return d < 0 || r.IssuedAt.UnixMilli() < cutoff
	})
	removed := before - len(kept)

	if removed > 0 {
		if err := s.save(ctx, kept); err != nil {
			return 0, err
		}
	}

	s.logger.DebugContext(ctx, "expired distributions", "removed", removed, "older_than", d)
	return removed, nil
}

// Reissue supersedes the record with id: a new active record with a fresh ID,
// timestamp and link carries the same subject and payload, and the old record
// is kept but marked inactive. It reports false when id is unknown, in which
// case nothing is written.
func (s *Store) Reissue(ctx context.Context, id string) (Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load(ctx)
	if err != nil {
		return Record{}, false, err
	}

	i := slices.IndexFunc(records, func(r Record) bool { return r.ID == id })
	if i < 0 {
		return Record{}, false, nil
	}

	old := records[i]
	old.Active = false
	next := s.newRecord(old.Subject, old.Payload)

	records = upsert(records, old)
	records = upsert(records, next)
	if err := s.save(ctx, records); err != nil {
		return Record{}, false, err
	}

	s.logger.InfoContext(ctx, "reissued distribution", "id", id, "new_id", next.ID)
	return next, true, nil
}

// FindBySubject returns the first active record issued to subject.
func (s *Store) FindBySubject(ctx context.Context, subject string) (Record, bool, error) {
	active, err := s.ListActive(ctx)
	if err != nil {
		return Record{}, false, err
	}
	i := slices.IndexFunc(active, func(r Record) bool { return r.Subject == subject })
	if i < 0 {
		return Record{}, false, nil
	}
	return active[i], true, nil
}

func (s *Store) CountActive(ctx context.Context) (int, error) {
	active, err := s.ListActive(ctx)
	return len(active), err
}

// Clear drops all records unconditionally.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.kv.Delete(ctx, Key); err != nil {
		return fmt.Errorf("clear distributions: %w", err)
	}
	s.logger.InfoContext(ctx, "cleared all distributions")
	return nil
}

func (s *Store) newRecord(subject string, payload []byte) Record {
	r := Record{
		ID:       s.newID(),
		Subject:  subject,
		Payload:  slices.Clone(payload),
		IssuedAt: time.UnixMilli(s.now().UnixMilli()),
		Active:   true,
	}
	r.link = s.link(r)
	return r
}

func (s *Store) link(r Record) string {
	return s.linker.Render(r.ID, r.Subject, r.Payload)
}

// load reads the persisted set. A missing key is an empty set, and so is an
// unreadable one: the corruption is logged and the next save overwrites it.
func (s *Store) load(ctx context.Context) ([]Record, error) {
	data, err := s.kv.Get(ctx, Key)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load distributions: %w", err)
	}

	records, err := decodeRecords(data, s.link)
	if err != nil {
		s.logger.WarnContext(ctx, "distributions unreadable, treating as empty", "error", err)
		return nil, nil
	}
	return records, nil
}

func (s *Store) save(ctx context.Context, records []Record) error {
	data, err := encodeRecords(records)
	if err != nil {
		return fmt.Errorf("encode distributions: %w", err)
	}
	if err := s.kv.Put(ctx, Key, data); err != nil {
		return fmt.Errorf("save distributions: %w", err)
	}
	return nil
}

// upsert removes any record with r's ID and appends r.
func upsert(records []Record, r Record) []Record {
	records = slices.DeleteFunc(records, func(x Record) bool { return x.ID == r.ID })
	return append(records, r)
}

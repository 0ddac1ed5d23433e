// Package emulation answers contactless reader frames on behalf of an
// emulated MIFARE Classic card.
//
// State holds the payload being served and the active flag. Dispatcher turns
// each inbound frame into a response using a single State snapshot, so a
// concurrent Load is seen either entirely or not at all by any one frame.
// Dispatch never blocks and never logs; side signals go to an Observer.
package emulation

import (
	"slices"
	"sync/atomic"
)

type snapshot struct {
	payload []byte // nil when no payload is loaded
	active  bool
}

// Status summarizes the current State for callers outside the hot path.
type Status struct {
	Active         bool `json:"active"`
	PayloadPresent bool `json:"payloadPresent"`
	PayloadSize    int  `json:"payloadSize"`
}

// State is the single card payload currently emulated. The zero value is
// inactive with no payload.
type State struct {
	cur atomic.Pointer[snapshot]
}

func NewState() *State {
	return &State{}
}

// Load swaps in a new (payload, active) pair. A nil payload means absent; an
// empty non-nil payload is present but zero-length. The slice is copied.
func (s *State) Load(payload []byte, active bool) {
	s.cur.Store(&snapshot{payload: slices.Clone(payload), active: active})
}

// Snapshot returns a copy of the current payload and the active flag.
func (s *State) Snapshot() ([]byte, bool) {
	v := s.view()
	return slices.Clone(v.payload), v.active
}

func (s *State) Status() Status {
	v := s.view()
	return Status{
		Active:         v.active,
		PayloadPresent: v.payload != nil,
		PayloadSize:    len(v.payload),
	}
}

var inactive = &snapshot{}

// view returns the live snapshot. Callers must not modify it.
func (s *State) view() *snapshot {
	if v := s.cur.Load(); v != nil {
		return v
	}
	return inactive
}

package emulation

import (
	"fmt"

	"github.com/gregLibert/rfaccess/pkg/iso7816"
)

// Command is the frame class recognized by the dispatcher.
type Command int

const (
	CommandUnknown Command = iota
	CommandSelect
	CommandRead
	CommandUpdate
)

func (c Command) String() string {
	switch c {
	case CommandSelect:
		return "select"
	case CommandRead:
		return "read"
	case CommandUpdate:
		return "update"
	default:
		return "unknown"
	}
}

// Signal tags an Event.
type Signal int

const (
	// SignalFrame is emitted once per processed frame.
	SignalFrame Signal = iota
	SignalReaderDetected
	SignalWriteAttempted
	SignalSessionEnded
)

func (s Signal) String() string {
	switch s {
	case SignalFrame:
		return "frame"
	case SignalReaderDetected:
		return "reader_detected"
	case SignalWriteAttempted:
		return "write_attempted"
	case SignalSessionEnded:
		return "session_ended"
	default:
		return fmt.Sprintf("Signal(%d)", int(s))
	}
}

// DeactivationReason says why the reader session ended.
type DeactivationReason int

const (
	// LinkLoss: the reader left the field.
	LinkLoss DeactivationReason = 0
	// Deselected: the reader selected another application.
	Deselected DeactivationReason = 1
)

func (r DeactivationReason) String() string {
	switch r {
	case LinkLoss:
		return "link_loss"
	case Deselected:
		return "deselected"
	default:
		return fmt.Sprintf("DeactivationReason(%d)", int(r))
	}
}

// Event is what the dispatcher reports to its Observer. It holds no pointers,
// so passing it through a buffered channel does not allocate.
type Event struct {
	Signal   Signal
	Command  Command
	Status   iso7816.StatusWord
	Length   int  // response length in bytes
	Inactive bool // frame refused because emulation is off
	Reason   DeactivationReason
}

// Observer receives dispatcher events. Observe runs on the dispatch path and
// must return immediately.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) Observe(e Event) { f(e) }

type discard struct{}

func (discard) Observe(Event) {}

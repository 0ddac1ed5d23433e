package emulation

import (
	"bytes"

	"github.com/gregLibert/rfaccess/pkg/bits"
	"github.com/gregLibert/rfaccess/pkg/iso7816"
)

// Status words answered by the emulated card.
const (
	StatusSuccess  = iso7816.SW_NO_ERROR
	StatusError    = iso7816.SW_ERR_UNKNOWN
	StatusNotFound = iso7816.SW_ERR_FILE_NOT_FOUND
)

// Recognized prefixes, tried in this order. First match wins.
var (
	selectPrefix = []byte{0x00, byte(iso7816.INS_SELECT), byte(iso7816.SelectByDFName), 0x00}
	readPrefix   = []byte{0x00, byte(iso7816.INS_READ_BINARY)}
	updatePrefix = []byte{0x00, byte(iso7816.INS_UPDATE_BINARY)}
)

// Classify matches frame against the SELECT, READ and UPDATE prefixes.
func Classify(frame []byte) Command {
	switch {
	case bytes.HasPrefix(frame, selectPrefix):
		return CommandSelect
	case bytes.HasPrefix(frame, readPrefix):
		return CommandRead
	case bytes.HasPrefix(frame, updatePrefix):
		return CommandUpdate
	default:
		return CommandUnknown
	}
}

// Dispatcher answers reader frames from a State.
type Dispatcher struct {
	state    *State
	observer Observer
}

// NewDispatcher returns a Dispatcher over state. A nil observer discards
// events.
func NewDispatcher(state *State, observer Observer) *Dispatcher {
	if observer == nil {
		observer = discard{}
	}
	return &Dispatcher{state: state, observer: observer}
}

// ProcessFrame returns the response to one command frame. Every input,
// including empty or truncated frames, gets a response; unrecognized frames
// get StatusError.
//
// The only allocation is the returned response buffer: a status-only reply
// is a fresh 2-byte slice owned by the caller, a READ reply is length+2
// bytes. Events go to the observer by value.
func (d *Dispatcher) ProcessFrame(frame []byte) []byte {
	snap := d.state.view()

	if !snap.active {
		d.observer.Observe(Event{Signal: SignalFrame, Status: StatusError, Length: 2, Inactive: true})
		return StatusError.Bytes()
	}

	cmd := Classify(frame)
	var resp []byte
	switch cmd {
	case CommandSelect:
		d.observer.Observe(Event{Signal: SignalReaderDetected, Command: cmd})
		resp = StatusSuccess.Bytes()
	case CommandRead:
		resp = readBinary(snap.payload, frame)
	case CommandUpdate:
		// The emulated surface is read-only.
		d.observer.Observe(Event{Signal: SignalWriteAttempted, Command: cmd})
		resp = StatusError.Bytes()
	default:
		resp = StatusError.Bytes()
	}

	d.observer.Observe(Event{
		Signal:  SignalFrame,
		Command: cmd,
		Status:  iso7816.NewStatusWord(resp[len(resp)-2], resp[len(resp)-1]),
		Length:  len(resp),
	})
	return resp
}

// Deactivate ends the current reader session. The State is untouched: the
// next tap is answered exactly like this one was.
func (d *Dispatcher) Deactivate(reason DeactivationReason) {
	d.observer.Observe(Event{Signal: SignalSessionEnded, Reason: reason})
}

// readBinary serves "00 B0 P1 P2 Le". The offset is P1-P2 big-endian (0 when
// absent) and the length is Le (one block when absent). Bytes past the end of
// the payload read as zero.
func readBinary(payload, frame []byte) []byte {
	if payload == nil {
		return StatusNotFound.Bytes()
	}

	offset := 0
	if len(frame) >= 4 {
		offset = int(bits.Uint16(frame[2], frame[3]))
	}
	length := iso7816.BlockSize
	if len(frame) >= 5 {
		length = int(frame[4])
	}

	resp := make([]byte, length+2)
	if offset < len(payload) {
		copy(resp[:length], payload[offset:])
	}
	StatusSuccess.PutTrailer(resp)
	return resp
}

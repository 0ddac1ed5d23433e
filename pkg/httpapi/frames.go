package httpapi

import (
	"net/http"

	"github.com/gregLibert/rfaccess/pkg/carddata"
	"github.com/gregLibert/rfaccess/pkg/emulation"
	"github.com/gregLibert/rfaccess/pkg/iso7816"
)

// FrameProcessor answers reader frames. *emulation.Dispatcher implements it.
type FrameProcessor interface {
	ProcessFrame(frame []byte) []byte
	Deactivate(reason emulation.DeactivationReason)
}

var _ FrameProcessor = (*emulation.Dispatcher)(nil)

type frameRequest struct {
	Frame string `json:"frame"`
}

type frameResponse struct {
	Response string  `json:"response"`
	Status   string  `json:"status"`
	Command  string  `json:"command,omitempty"`
	Offset   *uint16 `json:"offset,omitempty"`
}

// describe decodes frame for the relay's caller. Frames that are not
// well-formed APDUs are still answered, only without a description.
func (r *frameResponse) describe(frame []byte) {
	cmd, err := iso7816.ParseCommandAPDU(frame)
	if err != nil {
		return
	}
	r.Command = cmd.String()
	switch cmd.Instruction.Raw {
	case iso7816.INS_READ_BINARY, iso7816.INS_UPDATE_BINARY:
		offset := cmd.Offset()
		r.Offset = &offset
	}
}

func (h *Handler) handleFrame(w http.ResponseWriter, r *http.Request) {
	var req frameRequest
	if !h.decode(w, r, &req) {
		return
	}
	frame, err := carddata.Decode(req.Frame)
	if err != nil {
		h.fail(w, r, "process frame", err)
		return
	}

	resp := h.frames.ProcessFrame(frame)
	// Every response ends with a status word.
	out := frameResponse{
		Response: carddata.Encode(resp),
		Status:   carddata.Encode(resp[len(resp)-2:]),
	}
	out.describe(frame)
	writeJSON(w, http.StatusOK, out)
}

type deactivateRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	var req deactivateRequest
	if !h.decode(w, r, &req) {
		return
	}

	var reason emulation.DeactivationReason
	switch req.Reason {
	case emulation.LinkLoss.String(), "":
		reason = emulation.LinkLoss
	case emulation.Deselected.String():
		reason = emulation.Deselected
	default:
		writeError(w, http.StatusBadRequest, `reason must be "link_loss" or "deselected"`)
		return
	}

	h.frames.Deactivate(reason)
	w.WriteHeader(http.StatusNoContent)
}

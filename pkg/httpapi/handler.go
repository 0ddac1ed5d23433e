// Package httpapi exposes the activation/query interface as a small JSON API
// for operators and push bridges.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/gregLibert/rfaccess/pkg/access"
	"github.com/gregLibert/rfaccess/pkg/carddata"
	"github.com/gregLibert/rfaccess/pkg/distribution"
	"github.com/gregLibert/rfaccess/pkg/emulation"
	"github.com/gregLibert/rfaccess/pkg/provisioning"
)

// maxBodyBytes bounds request bodies; a 4K card image in hex fits easily.
const maxBodyBytes = 64 << 10

// Service is the subset of access.Service the API needs.
type Service interface {
	CreateCredential(ctx context.Context, subject, payloadHex string) (distribution.Record, error)
	ListActiveCredentials(ctx context.Context) ([]distribution.Record, error)
	ListAllCredentials(ctx context.Context) ([]distribution.Record, error)
	DeleteCredential(ctx context.Context, id string) (bool, error)
	DeleteOlderThan(ctx context.Context, d time.Duration) (int, error)
	ReissueCredential(ctx context.Context, id string) (distribution.Record, bool, error)
	LoadEmulation(ctx context.Context, payloadHex string, activate bool) error
	EmulationStatus() emulation.Status
	ProgramFromLink(ctx context.Context, uri string, activate bool) (provisioning.Link, error)
	ApplyRemoteControl(ctx context.Context, msg access.RemoteMessage) (access.RemoteResult, error)
}

var _ Service = (*access.Service)(nil)

// Handler serves the API.
type Handler struct {
	svc    Service
	frames FrameProcessor
	logger *slog.Logger
}

type Option func(*Handler)

// WithFrames enables the /frames relay for an RF front-end that forwards
// reader frames over HTTP.
func WithFrames(fp FrameProcessor) Option {
	return func(h *Handler) {
		h.frames = fp
	}
}

func New(svc Service, logger *slog.Logger, opts ...Option) *Handler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	h := &Handler{svc: svc, logger: logger.With("component", "httpapi")}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the routes on r.
func (h *Handler) Register(r chi.Router) {
	api := chi.NewRouter()
	api.Use(middleware.RequestID)
	api.Use(middleware.Recoverer)
	api.Use(middleware.Timeout(30 * time.Second))

	api.Route("/credentials", func(r chi.Router) {
		r.Post("/", h.handleCreateCredential)
		r.Get("/", h.handleListCredentials)
		r.Post("/expire", h.handleExpireCredentials)
		r.Delete("/{id}", h.handleDeleteCredential)
		r.Post("/{id}/reissue", h.handleReissueCredential)
	})
	api.Get("/emulation", h.handleGetEmulation)
	api.Put("/emulation", h.handlePutEmulation)
	api.Post("/program", h.handleProgram)
	api.Post("/remote", h.handleRemote)
	if h.frames != nil {
		api.Post("/frames", h.handleFrame)
		api.Post("/frames/deactivate", h.handleDeactivate)
	}

	r.Mount("/", api)
}

// Router returns a standalone router with the API mounted.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	h.Register(r)
	return r
}

type credentialResponse struct {
	ID       string    `json:"id"`
	Subject  string    `json:"subject"`
	Payload  string    `json:"payload"`
	IssuedAt time.Time `json:"issuedAt"`
	Active   bool      `json:"active"`
	Link     string    `json:"link"`
}

func newCredentialResponse(r distribution.Record) credentialResponse {
	return credentialResponse{
		ID:       r.ID,
		Subject:  r.Subject,
		Payload:  r.PayloadHex(),
		IssuedAt: r.IssuedAt.UTC(),
		Active:   r.Active,
		Link:     r.Link(),
	}
}

func newCredentialList(records []distribution.Record) []credentialResponse {
	out := make([]credentialResponse, len(records))
	for i, r := range records {
		out[i] = newCredentialResponse(r)
	}
	return out
}

type createCredentialRequest struct {
	Subject string `json:"subject"`
	Payload string `json:"payload"`
}

func (h *Handler) handleCreateCredential(w http.ResponseWriter, r *http.Request) {
	var req createCredentialRequest
	if !h.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Subject) == "" {
		writeError(w, http.StatusBadRequest, "subject is required")
		return
	}

	rec, err := h.svc.CreateCredential(r.Context(), req.Subject, req.Payload)
	if err != nil {
		h.fail(w, r, "create credential", err)
		return
	}
	writeJSON(w, http.StatusCreated, newCredentialResponse(rec))
}

func (h *Handler) handleListCredentials(w http.ResponseWriter, r *http.Request) {
	list := h.svc.ListActiveCredentials
	if all := r.URL.Query().Get("all"); all == "1" || all == "true" {
		list = h.svc.ListAllCredentials
	}

	records, err := list(r.Context())
	if err != nil {
		h.fail(w, r, "list credentials", err)
		return
	}
	writeJSON(w, http.StatusOK, newCredentialList(records))
}

func (h *Handler) handleDeleteCredential(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ok, err := h.svc.DeleteCredential(r.Context(), id)
	if err != nil {
		h.fail(w, r, "delete credential", err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "credential not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleReissueCredential(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, ok, err := h.svc.ReissueCredential(r.Context(), id)
	if err != nil {
		h.fail(w, r, "reissue credential", err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "credential not found")
		return
	}
	writeJSON(w, http.StatusCreated, newCredentialResponse(rec))
}

type expireRequest struct {
	// OlderThan is a Go duration ("720h") or "unbounded".
	OlderThan string `json:"olderThan"`
}

func (h *Handler) handleExpireCredentials(w http.ResponseWriter, r *http.Request) {
	var req expireRequest
	if !h.decode(w, r, &req) {
		return
	}

	d := distribution.Unbounded
	if req.OlderThan != "unbounded" {
		var err error
		d, err = time.ParseDuration(req.OlderThan)
		if err != nil || d < 0 {
			writeError(w, http.StatusBadRequest, `olderThan must be a non-negative duration or "unbounded"`)
			return
		}
	}

	n, err := h.svc.DeleteOlderThan(r.Context(), d)
	if err != nil {
		h.fail(w, r, "expire credentials", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": n})
}

func (h *Handler) handleGetEmulation(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.EmulationStatus())
}

type emulationRequest struct {
	Payload string `json:"payload"`
	Active  bool   `json:"active"`
}

func (h *Handler) handlePutEmulation(w http.ResponseWriter, r *http.Request) {
	var req emulationRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.svc.LoadEmulation(r.Context(), req.Payload, req.Active); err != nil {
		h.fail(w, r, "load emulation", err)
		return
	}
	writeJSON(w, http.StatusOK, h.svc.EmulationStatus())
}

type programRequest struct {
	Link   string `json:"link"`
	Active bool   `json:"active"`
}

type programResponse struct {
	Subject   string           `json:"subject,omitempty"`
	ID        string           `json:"id,omitempty"`
	Emulation emulation.Status `json:"emulation"`
}

func (h *Handler) handleProgram(w http.ResponseWriter, r *http.Request) {
	var req programRequest
	if !h.decode(w, r, &req) {
		return
	}
	link, err := h.svc.ProgramFromLink(r.Context(), req.Link, req.Active)
	if err != nil {
		h.fail(w, r, "program from link", err)
		return
	}
	writeJSON(w, http.StatusOK, programResponse{Subject: link.Subject, ID: link.ID, Emulation: h.svc.EmulationStatus()})
}

type remoteResponse struct {
	Type       string              `json:"type"`
	Credential *credentialResponse `json:"credential,omitempty"`
	Emulation  emulation.Status    `json:"emulation"`
}

func (h *Handler) handleRemote(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	msg, err := access.ParseRemoteMessage(body)
	if err != nil {
		h.logger.WarnContext(r.Context(), "invalid remote message", "request_id", middleware.GetReqID(r.Context()), "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.svc.ApplyRemoteControl(r.Context(), msg)
	if err != nil {
		h.fail(w, r, "apply remote control", err)
		return
	}

	resp := remoteResponse{Type: res.Type, Emulation: res.Emulation}
	if res.Credential != nil {
		c := newCredentialResponse(*res.Credential)
		resp.Credential = &c
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		h.logger.WarnContext(r.Context(), "invalid request body",
			"request_id", middleware.GetReqID(r.Context()),
			"path", r.URL.Path,
			"error", err.Error(),
		)
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// fail maps caller mistakes to 400 and everything else to 500.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	ctx := r.Context()
	if isClientError(err) {
		h.logger.WarnContext(ctx, op+" rejected", "request_id", middleware.GetReqID(ctx), "error", err.Error())
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.logger.ErrorContext(ctx, op+" failed", "request_id", middleware.GetReqID(ctx), "error", err.Error())
	writeError(w, http.StatusInternalServerError, "failed to "+op)
}

func isClientError(err error) bool {
	for _, target := range []error{
		carddata.ErrMalformedEncoding,
		provisioning.ErrWrongScheme,
		provisioning.ErrMalformedLink,
		access.ErrUnknownMessageType,
		access.ErrUnsupportedAction,
		access.ErrMissingField,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

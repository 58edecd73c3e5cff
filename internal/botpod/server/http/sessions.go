package http

import (
	"context"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/autopeer-io/botpod/internal/botpod/core/model"
	"github.com/autopeer-io/botpod/internal/botpod/session"
)

type unloadResponse struct {
	PodID string `json:"podId"`
}

type sessionHandler struct {
	sessions *session.Coordinator
}

// Open handles POST /v1/sessions
func (h *sessionHandler) Open(w http.ResponseWriter, r *http.Request) {
	var b session.Binding
	if err := decodeJSON(r, &b); err != nil {
		writeErr(w, err)
		return
	}

	s, err := h.sessions.Open(r.Context(), b)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, s)
}

// List handles GET /v1/sessions
func (h *sessionHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sessions.List())
}

// Get handles GET /v1/sessions/{id}
func (h *sessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.Get(mux.Vars(r)["id"])
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// Leave handles POST /v1/sessions/{id}/leave
func (h *sessionHandler) Leave(w http.ResponseWriter, r *http.Request) {
	h.exit(w, r, model.ExitManual)
}

// Disconnected handles POST /v1/sessions/{id}/disconnected
func (h *sessionHandler) Disconnected(w http.ResponseWriter, r *http.Request) {
	h.exit(w, r, model.ExitDisconnected)
}

// Unload handles POST /v1/shutdown-bot, the page-unload beacon. Delivery
// failures of the resulting shutdown are not reported.
func (h *sessionHandler) Unload(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	payload, err := session.ParseUnloadPayload(r.Header.Get("Content-Type"), body)
	if err != nil {
		writeErr(w, err)
		return
	}

	podID, err := h.sessions.Unload(r.Context(), payload)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, unloadResponse{PodID: podID})
}

func (h *sessionHandler) exit(w http.ResponseWriter, r *http.Request, reason model.ExitReason) {
	id := mux.Vars(r)["id"]

	// The shutdown is awaited even if the caller goes away.
	if err := h.sessions.NotifyExit(context.WithoutCancel(r.Context()), id, reason); err != nil {
		writeErr(w, err)
		return
	}

	s, err := h.sessions.Get(id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, s)
}

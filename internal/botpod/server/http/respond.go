package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/autopeer-io/botpod/internal/botpod/core"
	"github.com/autopeer-io/botpod/pkg/log"
)

type errorResponse struct {
	Error          string `json:"error"`
	UpstreamStatus int    `json:"upstreamStatus,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeErr maps the domain error taxonomy to a status code.
func writeErr(w http.ResponseWriter, err error) {
	var upstream *core.UpstreamError

	switch {
	case errors.Is(err, core.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &upstream):
		writeJSON(w, http.StatusBadGateway, errorResponse{
			Error:          upstream.Message,
			UpstreamStatus: upstream.StatusCode,
		})
	case core.IsNotFound(err):
		writeError(w, http.StatusNotFound, err.Error())
	case core.IsTransport(err):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case core.IsConfiguration(err):
		log.Error(err, "Request failed on configuration")
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		log.Error(err, "Request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// decodeJSON decodes the request body into v. Failures carry core.ErrInvalidRequest.
func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(v); err != nil {
		return errors.Join(core.ErrInvalidRequest, errors.New("invalid request body"))
	}
	return nil
}

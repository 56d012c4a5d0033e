package handler

import (
	"net/http"

	"invoiceflow/internal/model"

	"github.com/rs/zerolog"
)

// Streamer upgrades a request into a role-bound snapshot stream.
type Streamer interface {
	ServeWS(w http.ResponseWriter, r *http.Request, role model.Role)
}

// StreamHandler serves the live catalog feed.
type StreamHandler struct {
	streamer Streamer
	logger   zerolog.Logger
}

// NewStreamHandler creates a new stream handler.
func NewStreamHandler(streamer Streamer, logger zerolog.Logger) *StreamHandler {
	return &StreamHandler{
		streamer: streamer,
		logger:   logger.With().Str("handler", "stream").Logger(),
	}
}

// Stream handles GET /api/products/stream requests.
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	role := roleOf(r)
	h.logger.Debug().Str("role", string(role)).Str("remote_addr", r.RemoteAddr).Msg("stream requested")
	h.streamer.ServeWS(w, r, role)
}

package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"invoiceflow/internal/middleware"
	"invoiceflow/internal/model"
	"invoiceflow/internal/store"

	"github.com/rs/zerolog"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Log the error but don't expose it to the client
		return
	}
}

// writeError writes an error response with the given status code.
func writeError(w http.ResponseWriter, status int, code, message string, logger zerolog.Logger) {
	logger.Error().Str("error", message).Str("code", code).Int("status", status).Msg("handler error")
	writeJSON(w, status, model.ErrorResponse{Error: code, Message: message})
}

// writeDomainError maps catalog errors to HTTP responses.
func writeDomainError(w http.ResponseWriter, err error, logger zerolog.Logger) {
	var (
		de  *model.DomainError
		swe *model.StoreWriteError
	)

	switch {
	case errors.As(err, &de):
		status := http.StatusBadRequest
		switch de.Code {
		case model.ErrCodeDuplicateName:
			status = http.StatusConflict
		case model.ErrCodeInsufficientStock:
			status = http.StatusConflict
		case model.ErrCodeProductNotFound:
			status = http.StatusNotFound
		case model.ErrCodeCatalogUnavailable:
			status = http.StatusServiceUnavailable
		}
		logger.Warn().Str("code", de.Code).Str("field", de.Field).Int("status", status).Msg("request rejected")
		writeJSON(w, status, model.ErrorResponse{Error: de.Code, Message: de.Message, Field: de.Field})

	case errors.As(err, &swe) && errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, model.ErrCodeProductNotFound, model.ErrProductNotFound.Message, logger)

	case errors.As(err, &swe) && swe.Unknown:
		writeError(w, http.StatusGatewayTimeout, model.ErrCodeStoreUnknown,
			"the store did not confirm the change; reload the catalog before retrying", logger)

	case errors.As(err, &swe):
		writeError(w, http.StatusBadGateway, model.ErrCodeStoreWrite, "the store rejected the change", logger)

	default:
		logger.Error().Err(err).Msg("unexpected handler error")
		writeError(w, http.StatusInternalServerError, model.ErrCodeInternalError, "internal server error", logger)
	}
}

// decodeJSON decodes the request body into v.
func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// roleOf returns the caller's role. Requests that bypassed authentication
// are treated as staff.
func roleOf(r *http.Request) model.Role {
	if role, ok := middleware.RoleFromContext(r.Context()); ok {
		return role
	}
	return model.RoleStaff
}

package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/tendant/simple-exhibition/pkg/exhibition"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// statusFor maps a service error to its HTTP status and error kind
func statusFor(err error) (int, string) {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, exhibition.ErrNotFound), errors.Is(err, exhibition.ErrBlobNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, exhibition.ErrDuplicateSlug):
		return http.StatusConflict, "duplicate_slug"
	case errors.Is(err, exhibition.ErrDuplicateName):
		return http.StatusConflict, "duplicate_name"
	case errors.Is(err, exhibition.ErrOrderConflict):
		return http.StatusConflict, "order_conflict"
	case errors.Is(err, exhibition.ErrInvariantViolation):
		return http.StatusUnprocessableEntity, "invariant_violation"
	case errors.Is(err, exhibition.ErrInvalidReference):
		return http.StatusBadRequest, "invalid_reference"
	case errors.Is(err, exhibition.ErrInvalidRequest):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, exhibition.ErrUnsupportedMediaType):
		return http.StatusUnsupportedMediaType, "unsupported_media_type"
	case errors.Is(err, exhibition.ErrPayloadTooLarge), errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge, "payload_too_large"
	case errors.Is(err, exhibition.ErrStorageIO):
		return http.StatusInternalServerError, "storage_error"
	}
	return http.StatusInternalServerError, "internal_error"
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	status, kind := statusFor(err)
	resp := ErrorResponse{Error: kind, Message: err.Error()}
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), msg, "error", err, "path", r.URL.Path)
		resp.Message = http.StatusText(status)
	} else {
		h.logger.DebugContext(r.Context(), msg, "error", err, "status", status)
	}
	render.Status(r, status)
	render.JSON(w, r, resp)
}

// badRequest wraps a decoding problem so it maps to 400
func badRequest(err error) error {
	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		return err
	}
	return fmt.Errorf("%w: %w", exhibition.ErrInvalidRequest, err)
}

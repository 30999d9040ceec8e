package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"arview/internal/util"
	"arview/services/api/internal/app"
)

const maxJSONBody = 1 << 20

type errorResponse struct {
	Error     string           `json:"error"`
	Code      string           `json:"code"`
	RequestID string           `json:"requestId,omitempty"`
	Fields    []app.FieldError `json:"fields,omitempty"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{
		Error:     msg,
		Code:      code,
		RequestID: strings.TrimSpace(w.Header().Get(util.RequestIDHeader)),
	})
}

// writeAppError maps service errors to status codes.
func writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *app.ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:     "validation failed",
			Code:      "REQUEST_VALIDATION_FAILED",
			RequestID: strings.TrimSpace(w.Header().Get(util.RequestIDHeader)),
			Fields:    verr.Fields,
		})
		return
	}
	status, code := errorStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		logFromRequest(r).Error("request failed", "path", r.URL.Path, "error", err)
		msg = "internal error"
	}
	writeError(w, status, code, msg)
}

func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, app.ErrItemNotFound):
		return http.StatusNotFound, "ITEM_NOT_FOUND"
	case errors.Is(err, app.ErrScanEventNotFound):
		return http.StatusNotFound, "SCAN_EVENT_NOT_FOUND"
	case errors.Is(err, app.ErrForbidden):
		return http.StatusForbidden, "ITEM_FORBIDDEN"
	case errors.Is(err, app.ErrUnauthorized):
		return http.StatusUnauthorized, "AUTH_INVALID_TOKEN"
	case errors.Is(err, app.ErrInvalidCredentials):
		return http.StatusUnauthorized, "AUTH_INVALID_CREDENTIALS"
	case errors.Is(err, app.ErrEmailExists):
		return http.StatusConflict, "AUTH_EMAIL_EXISTS"
	case errors.Is(err, app.ErrSlugConflict):
		return http.StatusConflict, "ITEM_SLUG_CONFLICT"
	case errors.Is(err, app.ErrInvalidInput):
		return http.StatusBadRequest, "REQUEST_INVALID"
	default:
		return http.StatusInternalServerError, "SYSTEM_INTERNAL_ERROR"
	}
}

// decodeJSON reads a bounded body into dst and rejects unknown fields. It
// writes the 400 itself and reports false on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			writeError(w, http.StatusRequestEntityTooLarge, "REQUEST_TOO_LARGE", "request body too large")
		case errors.Is(err, io.EOF):
			writeError(w, http.StatusBadRequest, "REQUEST_INVALID_JSON", "request body is required")
		default:
			writeError(w, http.StatusBadRequest, "REQUEST_INVALID_JSON", "invalid JSON body")
		}
		return false
	}
	return true
}

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/opendeck-core/internal/action"
	"github.com/nerrad567/opendeck-core/internal/bus"
	"github.com/nerrad567/opendeck-core/internal/device"
	"github.com/nerrad567/opendeck-core/internal/profile"
	"github.com/nerrad567/opendeck-core/internal/router"
)

// Error is the body of every error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes.
const (
	ErrCodeBadRequest  = "bad_request"
	ErrCodeNotFound    = "not_found"
	ErrCodeForbidden   = "forbidden"
	ErrCodeConflict    = "conflict"
	ErrCodeInternal    = "internal_error"
	ErrCodeValidation  = "validation_error"
	ErrCodeUnavailable = "unavailable"
)

// writeJSON writes v with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // connection may already be gone
		json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{Status: status, Code: code, Message: message})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// domainStatuses maps sentinel errors to HTTP statuses, first match wins.
var domainStatuses = []struct {
	err    error
	status int
	code   string
}{
	{profile.ErrNotFound, http.StatusNotFound, ErrCodeNotFound},
	{profile.ErrInstanceNotFound, http.StatusNotFound, ErrCodeNotFound},
	{device.ErrDeviceNotFound, http.StatusNotFound, ErrCodeNotFound},
	{action.ErrUnknownAction, http.StatusNotFound, ErrCodeNotFound},
	{profile.ErrSlotOccupied, http.StatusConflict, ErrCodeConflict},
	{profile.ErrExists, http.StatusConflict, ErrCodeConflict},
	{router.ErrProfileSelected, http.StatusConflict, ErrCodeConflict},
	{device.ErrNamespaceDenied, http.StatusForbidden, ErrCodeForbidden},
	{profile.ErrSlotOutOfRange, http.StatusUnprocessableEntity, ErrCodeValidation},
	{profile.ErrControllerUnsupported, http.StatusUnprocessableEntity, ErrCodeValidation},
	{profile.ErrControllerMismatch, http.StatusUnprocessableEntity, ErrCodeValidation},
	{profile.ErrInvalidID, http.StatusUnprocessableEntity, ErrCodeValidation},
	{action.ErrInvalidContext, http.StatusUnprocessableEntity, ErrCodeValidation},
	{action.ErrInvalidInstance, http.StatusUnprocessableEntity, ErrCodeValidation},
	{device.ErrInvalidDevice, http.StatusUnprocessableEntity, ErrCodeValidation},
	{router.ErrStateOutOfRange, http.StatusUnprocessableEntity, ErrCodeValidation},
}

// domainStatus returns the status and code for a known domain error.
func domainStatus(err error) (int, string, bool) {
	for _, d := range domainStatuses {
		if errors.Is(err, d.err) {
			return d.status, d.code, true
		}
	}
	return 0, "", false
}

// writeDomainError maps a router, profile or device error to a response.
// Anything unrecognised becomes a 500 and is logged.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, ok := domainStatus(err)
	if !ok {
		s.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", r.Context().Value(ctxKeyRequestID),
			"error", err,
		)
		writeInternalError(w, "internal server error")
		return
	}
	writeError(w, status, code, err.Error())
}

// deliveryOnly reports whether err carries nothing but plugin delivery
// failures. The change itself was applied and persisted.
func deliveryOnly(err error) bool {
	if err == nil {
		return false
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			if e != nil && !deliveryOnly(e) {
				return false
			}
		}
		return true
	}
	return errors.Is(err, bus.ErrSendFailed) || errors.Is(err, bus.ErrEncode) || errors.Is(err, bus.ErrInvalidRecipient)
}

// applied reports whether the request succeeded, logging a delivery-only
// failure and writing the error response otherwise.
func (s *Server) applied(w http.ResponseWriter, r *http.Request, err error) bool {
	if err == nil {
		return true
	}
	if deliveryOnly(err) {
		s.logger.Warn("change applied but plugin notification failed", "path", r.URL.Path, "error", err)
		return true
	}
	s.writeDomainError(w, r, err)
	return false
}

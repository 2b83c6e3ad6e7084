package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/roach88/bakehouse/internal/ledger"
)

const maxBodyBytes = 1 << 20

// Codes the API adds to the ledger's.
const (
	codeUnauthenticated ledger.ErrorCode = "UNAUTHENTICATED"
	codeRateLimited     ledger.ErrorCode = "RATE_LIMITED"
	codeInternal        ledger.ErrorCode = "INTERNAL"
)

type errorBody struct {
	Error errorPayload `json:"error"`
}

type errorPayload struct {
	Code    ledger.ErrorCode  `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// statusFor maps ledger error codes to HTTP statuses.
func statusFor(code ledger.ErrorCode) int {
	switch code {
	case ledger.ErrCodeNotFound:
		return http.StatusNotFound
	case ledger.ErrCodeValidation:
		return http.StatusBadRequest
	case ledger.ErrCodeForbidden:
		return http.StatusForbidden
	case ledger.ErrCodeInsufficientStock, ledger.ErrCodeConflict,
		ledger.ErrCodeInvalidTransition, ledger.ErrCodeStaleReport:
		return http.StatusConflict
	case codeUnauthenticated:
		return http.StatusUnauthorized
	case codeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	var le *ledger.Error
	if !errors.As(err, &le) {
		h.log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, errorBody{errorPayload{Code: codeInternal, Message: "internal error"}})
		return
	}
	status := statusFor(le.Code)
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	writeJSON(w, status, errorBody{errorPayload{Code: le.Code, Message: le.Message, Details: le.Details}})
}

func writeCode(w http.ResponseWriter, code ledger.ErrorCode, msg string) {
	writeJSON(w, statusFor(code), errorBody{errorPayload{Code: code, Message: msg}})
}

// decode reads a JSON body strictly. Unknown fields are rejected.
func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return ledger.NewValidationError(fmt.Sprintf("invalid request body: %v", err))
	}
	return nil
}

func queryInt(r *http.Request, name string) (int64, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0, ledger.NewValidationError(fmt.Sprintf("%s must be a non-negative integer", name))
	}
	return n, nil
}

// queryTime accepts RFC 3339 timestamps or YYYY-MM-DD dates (UTC midnight).
func queryTime(r *http.Request, name string) (time.Time, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return time.Time{}, ledger.NewValidationError(name + " is required")
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.DateOnly, v); err == nil {
		return t, nil
	}
	return time.Time{}, ledger.NewValidationError(fmt.Sprintf("%s must be RFC 3339 or YYYY-MM-DD", name))
}

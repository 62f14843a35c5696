package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/notemind/internal/apperr"
)

const maxBodyBytes = 10 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error string `json:"error" validate:"required"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// decodeJSON reads a size-limited JSON body into v and runs its Validate
// method when it has one. It writes the 400 response itself.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return false
	}
	if vv, ok := v.(validation.Validatable); ok {
		if err := vv.Validate(); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
			return false
		}
	}
	return true
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	var (
		verrs        validation.Errors
		extractErr   *apperr.ExtractionError
		embedErr     *apperr.EmbeddingError
		reconcileErr *apperr.ReconcileError
	)
	switch {
	case errors.As(err, &reconcileErr) && reconcileErr.Step != apperr.StepEmbed:
		return http.StatusInternalServerError
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrConflict),
		errors.Is(err, apperr.ErrAlreadyExists),
		errors.Is(err, apperr.ErrAnalysisInProgress),
		errors.Is(err, apperr.ErrStale):
		return http.StatusConflict
	case errors.Is(err, apperr.ErrEmptyInput),
		errors.Is(err, apperr.ErrInvalidField),
		errors.Is(err, apperr.ErrInvalidRepoURL),
		errors.As(err, &verrs):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrSessionClosed):
		return http.StatusServiceUnavailable
	case errors.As(err, &extractErr), errors.As(err, &embedErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError logs server-side failures and writes the user-facing status
// line for err.
func writeError(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	msg := apperr.StatusMessage(err)
	var verrs validation.Errors
	if errors.As(err, &verrs) {
		msg = verrs.Error()
	}
	if status >= http.StatusInternalServerError {
		slog.Error(op+" failed", slog.String("error", err.Error()))
	}
	writeJSON(w, status, errorBody(msg))
}

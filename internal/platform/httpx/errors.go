package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// ErrBadRequest reports a malformed or invalid request body or parameter.
var ErrBadRequest = shared.NewValidation("BAD_REQUEST", "invalid request")

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	var de *shared.Error
	if !errors.As(err, &de) {
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	detail := ProblemDetail{Code: de.Code, Detail: de.Message, Details: de.Details}
	switch de.Kind {
	case shared.KindValidation:
		detail.Status, detail.Title = http.StatusUnprocessableEntity, "Validation Failed"
	case shared.KindNotFound:
		detail.Status, detail.Title = http.StatusNotFound, "Not Found"
	case shared.KindInvalidState:
		detail.Status, detail.Title = http.StatusConflict, "Invalid State Transition"
	case shared.KindConflict:
		detail.Status, detail.Title = http.StatusConflict, "Conflict"
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	JSON(w, detail.Status, detail)
}

// StatusFor returns the HTTP status RespondError would use for err.
func StatusFor(err error) int {
	switch shared.KindOf(err) {
	case shared.KindValidation:
		return http.StatusUnprocessableEntity
	case shared.KindNotFound:
		return http.StatusNotFound
	case shared.KindInvalidState, shared.KindConflict:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// Fail logs unexpected errors and writes the problem response.
func Fail(w http.ResponseWriter, logger *slog.Logger, op string, err error) {
	if logger != nil && StatusFor(err) >= http.StatusInternalServerError {
		logger.Error(op, slog.Any("error", err))
	}
	RespondError(w, err)
}

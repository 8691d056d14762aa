package response

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/cmlabs-hris/hris-payroll-go/internal/pkg/apperror"
	"github.com/cmlabs-hris/hris-payroll-go/internal/pkg/validator"
)

// HandleError maps domain errors to HTTP responses. Errors without an
// application code are logged and hidden behind a 500.
func HandleError(w http.ResponseWriter, err error) {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		ValidationError(w, validationErrs.ToMap())
		return
	}

	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		slog.Error("Unhandled error", "error", err)
		InternalServerError(w, "An unexpected error occurred")
		return
	}

	switch appErr.Code {
	case apperror.CodeInvalidInput:
		writeError(w, http.StatusBadRequest, appErr.Code, err.Error(), nil)
	case apperror.CodeNotFound:
		writeError(w, http.StatusNotFound, appErr.Code, appErr.Message, nil)
	case apperror.CodeConflict, apperror.CodeInvalidState:
		writeError(w, http.StatusConflict, appErr.Code, appErr.Message, nil)
	case apperror.CodeComplianceViolation:
		writeError(w, http.StatusUnprocessableEntity, appErr.Code, appErr.Message, nil)
	case apperror.CodePartialFailure:
		writeError(w, http.StatusMultiStatus, appErr.Code, appErr.Message, nil)
	case apperror.CodeServiceUnavailable:
		w.Header().Set("Retry-After", "5")
		writeError(w, http.StatusServiceUnavailable, appErr.Code, appErr.Message, nil)
	default:
		slog.Error("Internal error", "error", err)
		InternalServerError(w, "An unexpected error occurred")
	}
}

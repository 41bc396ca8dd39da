package apierr

import (
	"errors"
	"fmt"
	"net/http"

	domainagg "github.com/yungbote/promptlab-backend/internal/domain/aggregates"
)

// Error carries an explicit HTTP status for failures raised by handlers
// themselves (bad path params, malformed bodies).
type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

// BadRequest is shorthand for a 400 with code "validation".
func BadRequest(format string, args ...any) *Error {
	return New(http.StatusBadRequest, string(domainagg.CodeValidation), fmt.Errorf(format, args...))
}

// StatusFor resolves the HTTP status and envelope code for err.
// Explicit *Error wins; otherwise the aggregate error code decides.
func StatusFor(err error) (int, string) {
	if err == nil {
		return http.StatusOK, ""
	}
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Status != 0 {
		return apiErr.Status, apiErr.Code
	}
	code := domainagg.CodeOf(err)
	switch code {
	case domainagg.CodeValidation:
		return http.StatusBadRequest, string(code)
	case domainagg.CodeNotFound:
		return http.StatusNotFound, string(code)
	case domainagg.CodeConflict:
		return http.StatusConflict, string(code)
	case domainagg.CodeRetryable:
		return http.StatusServiceUnavailable, string(code)
	case "":
		return http.StatusInternalServerError, string(domainagg.CodeInternal)
	default:
		return http.StatusInternalServerError, string(code)
	}
}

package aggregates

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode classifies why a prompt or version operation failed. Handlers map
// it to a status and writers decide from it whether to re-run a write.
type ErrorCode string

const (
	// Bad input: blank content, nil prompt id, version number below one.
	CodeValidation ErrorCode = "validation"
	// Unknown or soft-deleted prompt, or a version number never written.
	CodeNotFound ErrorCode = "not_found"
	// Lost a race for the next version number or the current flag.
	CodeConflict ErrorCode = "conflict"
	// Stored history is inconsistent, e.g. an active prompt with no current version.
	CodeInvariantViolation ErrorCode = "invariant_violation"
	// Store busy, locked, or the request's context ended first.
	CodeRetryable ErrorCode = "retryable"
	CodeInternal  ErrorCode = "internal"
)

// Error carries the code plus the operation that raised it, e.g.
// "Prompts.PromptVersion.CommitVersion".
type Error struct {
	Code    ErrorCode
	Op      string
	Message string
	Cause   error
}

// Error renders "op: message (code)", dropping whichever of op and message is empty.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	parts := make([]string, 0, 2)
	for _, p := range []string{e.Op, e.Message} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return string(e.Code)
	}
	return strings.Join(parts, ": ") + " (" + string(e.Code) + ")"
}

func (e *Error) Unwrap() error { return e.Cause }

func NewError(code ErrorCode, op, message string, cause error) error {
	return &Error{
		Code:    code,
		Op:      strings.TrimSpace(op),
		Message: strings.TrimSpace(message),
		Cause:   cause,
	}
}

// Wrap tags a store or driver error with code, keeping it as the cause.
func Wrap(code ErrorCode, op string, err error) error {
	if err == nil {
		return nil
	}
	return NewError(code, op, err.Error(), err)
}

func NotFound(op, format string, args ...any) error {
	return NewError(CodeNotFound, op, fmt.Sprintf(format, args...), nil)
}

func Validation(op, format string, args ...any) error {
	return NewError(CodeValidation, op, fmt.Sprintf(format, args...), nil)
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) ErrorCode {
	if e := new(Error); errors.As(err, &e) {
		return e.Code
	}
	return ""
}

func IsCode(err error, code ErrorCode) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}

// CallerMayRetry reports whether a fresh attempt of the same write can succeed.
// Conflicts qualify because the next attempt recomputes the version number.
func CallerMayRetry(err error) bool {
	switch CodeOf(err) {
	case CodeConflict, CodeRetryable:
		return true
	default:
		return false
	}
}

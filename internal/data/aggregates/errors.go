package aggregates

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	domainagg "github.com/yungbote/promptlab-backend/internal/domain/aggregates"
	"gorm.io/gorm"
)

var (
	// ErrValidation indicates caller input validation failure.
	ErrValidation = errors.New("aggregate validation")
	// ErrInvariant indicates invariant rule violation.
	ErrInvariant = errors.New("aggregate invariant violation")
	// ErrConflict indicates a concurrent writer won the race for the same prompt.
	ErrConflict = errors.New("aggregate conflict")
	// ErrRetryable indicates transient retryable failure.
	ErrRetryable = errors.New("aggregate retryable")
)

func tagged(kind error, format string, args ...any) error {
	return errors.Join(kind, fmt.Errorf(strings.TrimSpace(format), args...))
}

func ValidationError(format string, args ...any) error { return tagged(ErrValidation, format, args...) }
func InvariantError(format string, args ...any) error  { return tagged(ErrInvariant, format, args...) }
func ConflictError(format string, args ...any) error   { return tagged(ErrConflict, format, args...) }
func RetryableError(format string, args ...any) error  { return tagged(ErrRetryable, format, args...) }

var sentinelCodes = []struct {
	err  error
	code domainagg.ErrorCode
}{
	{ErrValidation, domainagg.CodeValidation},
	{ErrInvariant, domainagg.CodeInvariantViolation},
	{ErrConflict, domainagg.CodeConflict},
	{ErrRetryable, domainagg.CodeRetryable},
	{gorm.ErrDuplicatedKey, domainagg.CodeConflict},
	{gorm.ErrRecordNotFound, domainagg.CodeNotFound},
	{context.Canceled, domainagg.CodeRetryable},
	{context.DeadlineExceeded, domainagg.CodeRetryable},
}

// MapError maps infrastructure/domain failures into aggregate error codes.
//
// Unique violations on prompt_version (number or current flag) surface as
// conflicts; lock and serialization failures surface as retryable.
// Errors that already carry an aggregate code pass through unchanged.
func MapError(op string, err error) error {
	if err == nil {
		return nil
	}
	var aggErr *domainagg.Error
	if errors.As(err, &aggErr) {
		return err
	}
	return domainagg.Wrap(classify(err), op, err)
}

func classify(err error) domainagg.ErrorCode {
	for _, s := range sentinelCodes {
		if errors.Is(err, s.err) {
			return s.code
		}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch strings.TrimSpace(pgErr.Code) {
		case "23505": // unique_violation
			return domainagg.CodeConflict
		case "40001", "40P01", "55P03": // serialization_failure, deadlock_detected, lock_not_available
			return domainagg.CodeRetryable
		}
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		switch {
		case liteErr.ExtendedCode == sqlite3.ErrConstraintUnique,
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey:
			return domainagg.CodeConflict
		case liteErr.Code == sqlite3.ErrBusy, liteErr.Code == sqlite3.ErrLocked:
			return domainagg.CodeRetryable
		}
	}

	// Drivers that stringify their errors.
	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	for _, needle := range []string{"duplicate key", "already exists", "unique constraint failed"} {
		if strings.Contains(msg, needle) {
			return domainagg.CodeConflict
		}
	}
	for _, needle := range []string{"deadlock", "serialization", "database is locked", "database table is locked", "timeout", "temporar"} {
		if strings.Contains(msg, needle) {
			return domainagg.CodeRetryable
		}
	}
	return domainagg.CodeInternal
}

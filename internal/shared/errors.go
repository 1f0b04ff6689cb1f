package shared

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateNumber indicates a document number collision at creation.
	ErrDuplicateNumber = errors.New("duplicate document number")
	// ErrRepositoryUnavailable indicates a transient persistence failure.
	// Transitions re-validate current state on every call, so callers may
	// safely retry.
	ErrRepositoryUnavailable = errors.New("repository unavailable")
)

// ClassifyRepoError maps context timeouts onto ErrRepositoryUnavailable so
// callers see a retriable error instead of an ambiguous deadline fault.
func ClassifyRepoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrRepositoryUnavailable, err)
	}
	return err
}

// IsUniqueViolation reports whether err is a postgres unique constraint
// violation, used to surface document number collisions.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func itoa(v int64) string {
	return fmt.Sprintf("%d", v)
}

// Package postgres implements the per-service stores on pgx. Each
// repository owns the SQL for one aggregate; rows that must publish
// events write them into the event_outbox table inside the same
// transaction.
package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound means no row matched; services map it to 404.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is a unique-constraint hit; services map it to 409.
	ErrDuplicate = errors.New("already exists")
	// ErrRestricted is a blocked delete, the row is still referenced.
	ErrRestricted = errors.New("still referenced")
)

// SQLSTATE codes the repositories react to.
const (
	codeUniqueViolation      = "23505"
	codeForeignKeyViolation  = "23503"
	codeSerializationFailure = "40001"
)

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func isSerializationFailure(err error) bool {
	return pgCode(err) == codeSerializationFailure
}

// querier is the slice of pgx shared by pgxpool.Pool and pgx.Tx that
// the repositories need, so helpers run inside or outside a
// transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// rowScanner is satisfied by both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

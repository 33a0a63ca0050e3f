package database

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the subset of pgx operations repositories need. Both
// *pgxpool.Pool and pgx.Tx satisfy it, so repository methods participate in
// a transaction whenever one is present in the context.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type contextKey string

const querierKey contextKey = "querier"

// WithQuerier stores a transaction (or other Querier) in the context. Every
// repository call under that context runs against it.
func WithQuerier(ctx context.Context, q Querier) context.Context {
	return context.WithValue(ctx, querierKey, q)
}

// QuerierFrom returns the Querier from the context, falling back to the
// given pool when no transaction is in flight.
func QuerierFrom(ctx context.Context, fallback Querier) Querier {
	if q, ok := ctx.Value(querierKey).(Querier); ok {
		return q
	}
	return fallback
}

// InTx runs fn inside a transaction stored in the context, committing on nil
// and rolling back on error. One sync'd supplier file is one such
// transaction. When a transaction is already in flight, or no pool is
// available (db is nil), fn runs under the existing context instead of
// opening a nested transaction.
func InTx(ctx context.Context, db *DB, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(querierKey).(Querier); ok || db == nil {
		return fn(ctx)
	}
	return pgx.BeginFunc(ctx, db.Pool, func(tx pgx.Tx) error {
		return fn(WithQuerier(ctx, tx))
	})
}

// README: Unit of work over a pgx pool; the active tx travels in the context.
package infra

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

// UnitOfWork runs fn atomically. Nested calls join the outer transaction.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type txKey struct{}

const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
)

type PgUnitOfWork struct {
	pool       *pgxpool.Pool
	maxRetries int
	log        logrus.FieldLogger
}

// NewUnitOfWork returns a UnitOfWork that retries a transaction up to maxRetries extra times
// when Postgres reports a serialization failure or deadlock. Business errors are never retried.
func NewUnitOfWork(pool *pgxpool.Pool, maxRetries int, log logrus.FieldLogger) *PgUnitOfWork {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &PgUnitOfWork{pool: pool, maxRetries: maxRetries, log: log}
}

func (u *PgUnitOfWork) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := TxFromContext(ctx); ok {
		return fn(ctx)
	}
	var err error
	for attempt := 0; attempt <= u.maxRetries; attempt++ {
		err = u.runOnce(ctx, fn)
		if err == nil || !IsRetryable(err) {
			return err
		}
		if u.log != nil {
			u.log.WithError(err).WithField("attempt", attempt+1).Warn("transaction conflict, retrying")
		}
	}
	return err
}

func (u *PgUnitOfWork) runOnce(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	tx, err := u.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

// TxFromContext extracts the current pgx.Tx from ctx if present.
func TxFromContext(ctx context.Context) (pgx.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(pgx.Tx)
	return tx, ok
}

// Conn returns the active tx when called inside WithinTx, otherwise the pool.
func Conn(ctx context.Context, pool *pgxpool.Pool) Querier {
	if tx, ok := TxFromContext(ctx); ok {
		return tx
	}
	return pool
}

// IsRetryable reports whether err is a transient storage conflict.
func IsRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == sqlStateSerializationFailure || pgErr.Code == sqlStateDeadlockDetected
	}
	return false
}

// NoopUnitOfWork runs fn directly. Used with the in-memory stores, which serialize per row themselves.
type NoopUnitOfWork struct{}

func (NoopUnitOfWork) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

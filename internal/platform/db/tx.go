package db

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned by repositories when the requested row does not exist.
var ErrNotFound = errors.New("not found")

// StorageError wraps a persistence failure. It aborts the enclosing unit of
// work and nothing else.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Wrap converts a driver error into the repository error vocabulary:
// nil stays nil, pgx.ErrNoRows becomes ErrNotFound, everything else becomes
// a *StorageError tagged with op.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// Queryable is the subset of pgx shared by pools, connections and transactions.
type Queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

type txKey struct{}

// TxFromContext returns the transaction opened by a Runner, if any.
func TxFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(txKey{}).(pgx.Tx)
	return tx
}

// Conn returns the transaction bound to ctx, falling back to the pool.
// Repositories call this on every statement so they join a unit of work
// transparently.
func Conn(ctx context.Context, pool *pgxpool.Pool) Queryable {
	if tx := TxFromContext(ctx); tx != nil {
		return tx
	}
	return pool
}

// Runner executes fn as one atomic unit while holding an exclusive lock on
// key. Two units with the same key never interleave.
type Runner interface {
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// TxRunner implements Runner with a PostgreSQL transaction and a
// transaction-scoped advisory lock, so serialization holds across processes.
type TxRunner struct {
	pool *pgxpool.Pool
}

func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

func (r *TxRunner) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	if TxFromContext(ctx) != nil {
		// Nested units join the outer transaction; take the extra lock inside it.
		if _, err := TxFromContext(ctx).Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key); err != nil {
			return Wrap("advisory lock", err)
		}
		return fn(ctx)
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return Wrap("begin transaction", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key); err != nil {
		return Wrap("advisory lock", err)
	}

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return Wrap("commit transaction", err)
	}
	return nil
}

// LocalRunner implements Runner with in-process keyed mutexes. It gives
// serialization but no rollback; it backs unit tests and in-memory wiring.
type LocalRunner struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewLocalRunner() *LocalRunner {
	return &LocalRunner{locks: make(map[string]*sync.Mutex)}
}

type localHeldKey struct{}

func (r *LocalRunner) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	held, _ := ctx.Value(localHeldKey{}).(map[string]bool)
	if held[key] {
		return fn(ctx)
	}

	r.mu.Lock()
	l, ok := r.locks[key]
	if !ok {
		l = &sync.Mutex{}
		r.locks[key] = l
	}
	r.mu.Unlock()

	l.Lock()
	defer l.Unlock()

	next := make(map[string]bool, len(held)+1)
	for k := range held {
		next[k] = true
	}
	next[key] = true
	return fn(context.WithValue(ctx, localHeldKey{}, next))
}

// IsUniqueViolation reports whether err is a PostgreSQL unique_violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

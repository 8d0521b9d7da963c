// Package store implements the durable state layer: events, groups, job
// queues, escalations, blocklist, and timeline. It is the sole
// mutual-exclusion primitive in the system — every coordination guarantee
// (lease exclusivity, group uniqueness, blocklist idempotence) is enforced
// by a unique constraint or a SELECT ... FOR UPDATE SKIP LOCKED transaction,
// never by an in-process lock.
package store

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"

	"github.com/codeready-toolchain/wafcore/pkg/database"
)

const pgUniqueViolation = "23505"

// Store wraps a *sqlx.DB. One instance is constructed per process and shared
// across the Grouper, Worker Pool, and Escalation Processor.
type Store struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// New constructs a Store backed by the given database client.
func New(client *database.Client) *Store {
	return &Store{
		db:     client.DB,
		logger: slog.Default().With("component", "store"),
	}
}

// NewFromSQLX builds a Store directly from a *sqlx.DB, for tests that wrap a
// go-sqlmock connection without going through database.Client.
func NewFromSQLX(db *sqlx.DB) *Store {
	return &Store{db: db, logger: slog.Default().With("component", "store")}
}

// SQLDB returns the underlying database/sql handle, for health checks.
func (s *Store) SQLDB() *sql.DB {
	return s.db.DB
}

// isUniqueViolation reports whether err is a Postgres unique_violation,
// the race-safety signal find_or_create and upsert-style operations rely on.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return false
}

// withTx runs fn inside a transaction, committing on success and rolling
// back on any error (including a panic, re-raised after rollback).
func (s *Store) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return NewTransientError("begin_tx", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return NewTransientError("commit_tx", err)
	}
	return nil
}

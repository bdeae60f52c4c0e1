// Package persistence is the Postgres-backed store behind the ingestion
// pipeline: sources, entities, raw items, story variants, clusters and
// their join tables, submissions, candidate sources, and the relevance
// audit log. It follows the teacher's postgres.go connection shape (a
// struct wrapping *sql.DB, pool limits applied up front, a bounded ping to
// verify connectivity) adapted to this domain's single wide Store instead
// of the teacher's per-entity repository split, since every consumer here
// (clustering, submissions, enrichment, roster sync, maintenance) shares
// the same handful of tables. AttachVariant runs its link insert and
// aggregate update in one short transaction. Raw item creation is a
// pre-check plus a single INSERT, with a unique-index race resolved by
// looking the existing row up again. Cluster creation and the merge steps
// run as separate statements outside any transaction.
package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// Store is the Postgres-backed persistence layer. The zero value is not
// usable; build one with Open.
type Store struct {
	db *sql.DB
}

// Open connects to Postgres, applies the configured pool limits, and
// verifies the connection with a bounded ping.
func Open(connectionString string, maxConns, idleConns int) (*Store, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if maxConns > 0 {
		db.SetMaxOpenConns(maxConns)
	}
	if idleConns > 0 {
		db.SetMaxIdleConns(idleConns)
	}
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error { return s.db.Close() }

// Ping verifies connectivity.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// DB exposes the underlying connection for the migration manager.
func (s *Store) DB() *sql.DB { return s.db }

const sqlStateUniqueViolation = "23505"

// isUniqueViolation reports whether err is a Postgres unique-constraint
// violation, the signal this package uses to turn a race on a unique index
// into the idempotent "already exists" path rather than an
// operator-visible error (spec §7: integrity violation -> treated as
// duplicate).
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == sqlStateUniqueViolation
	}
	return false
}

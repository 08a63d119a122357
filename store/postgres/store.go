// Package postgres provides a PostgreSQL implementation of store.Store.
//
// The schema is four tables sharing a configurable prefix: an inbox
// directory, a global append-only message ledger, a tag index, and a
// label overlay. Sequence numbers come from the ledger's BIGSERIAL
// column, content deduplication from a UNIQUE (inbox_seq, hash) index
// plus INSERT ... ON CONFLICT DO NOTHING, so no advisory locks are
// ever taken.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/jmoiron/sqlx"
	"github.com/rbaliyan/inbox/store"
)

// Compile-time checks
var (
	_ store.Store       = (*Store)(nil)
	_ store.PageQuerier = (*Store)(nil)
)

// Store implements store.Store using PostgreSQL.
type Store struct {
	db        *sqlx.DB
	opts      *options
	queries   queries
	connected int32
	logger    *slog.Logger
}

// New creates a new PostgreSQL store with the provided database connection.
// Call Connect() to initialize the schema and indexes.
func New(db *sqlx.DB, opts ...Option) *Store {
	o := newOptions(opts...)
	return &Store{
		db:      db,
		opts:    o,
		queries: buildQueries(o.tablePrefix),
		logger:  o.logger,
	}
}

// NewFromDB creates a new PostgreSQL store from a standard sql.DB connection.
// This wraps the sql.DB with sqlx for enhanced functionality.
func NewFromDB(db *sql.DB, opts ...Option) *Store {
	return New(sqlx.NewDb(db, "postgres"), opts...)
}

// Connect initializes the schema and indexes.
func (s *Store) Connect(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.connected, 0, 1) {
		return store.ErrAlreadyConnected
	}

	if s.db == nil {
		atomic.StoreInt32(&s.connected, 0)
		return fmt.Errorf("postgres: db is required")
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		atomic.StoreInt32(&s.connected, 0)
		return fmt.Errorf("postgres ping: %w", err)
	}

	if err := s.ensureSchema(ctx); err != nil {
		atomic.StoreInt32(&s.connected, 0)
		return fmt.Errorf("ensure schema: %w", err)
	}

	s.logger.Info("connected to PostgreSQL", "table_prefix", s.opts.tablePrefix)
	return nil
}

// Close marks the store as disconnected.
// The caller is responsible for closing the database connection.
func (s *Store) Close(ctx context.Context) error {
	if atomic.LoadInt32(&s.connected) == 0 {
		return nil
	}
	atomic.StoreInt32(&s.connected, 0)
	return nil
}

// ensureSchema creates the required tables and indexes.
func (s *Store) ensureSchema(ctx context.Context) error {
	p := s.opts.tablePrefix

	tables := []string{
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s_inboxes (
				seq BIGSERIAL PRIMARY KEY,
				id VARCHAR(255) NOT NULL UNIQUE,
				owner_id VARCHAR(255) NOT NULL DEFAULT '',
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)
		`, p),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s_messages (
				seq BIGSERIAL PRIMARY KEY,
				inbox_seq BIGINT NOT NULL,
				id VARCHAR(255) NOT NULL,
				hash BYTEA NOT NULL,
				tags BYTEA[] NOT NULL DEFAULT '{}',
				payload BYTEA NOT NULL,
				metadata BYTEA,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				UNIQUE (inbox_seq, hash),
				UNIQUE (inbox_seq, id)
			)
		`, p),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s_message_tags (
				inbox_seq BIGINT NOT NULL,
				tag BYTEA NOT NULL,
				message_seq BIGINT NOT NULL,
				PRIMARY KEY (inbox_seq, tag, message_seq)
			)
		`, p),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s_message_labels (
				message_seq BIGINT NOT NULL,
				user_id VARCHAR(255) NOT NULL,
				inbox_seq BIGINT NOT NULL,
				label BIGINT NOT NULL,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				PRIMARY KEY (message_seq, user_id)
			)
		`, p),
	}

	for _, ddl := range tables {
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}

	indexes := []string{
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_messages_inbox_seq ON %s_messages(inbox_seq, seq)`, p, p),
		// Candidate selection scans (inbox_seq, tag) ranges by message_seq;
		// the tag table's primary key already has that column order.
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_labels_user ON %s_message_labels(user_id, message_seq)`, p, p),
	}

	for _, idx := range indexes {
		if _, err := s.db.ExecContext(ctx, idx); err != nil {
			s.logger.Warn("failed to create index", "error", err, "sql", idx)
		}
	}

	return nil
}

// checkConnected returns error if not connected.
func (s *Store) checkConnected() error {
	if atomic.LoadInt32(&s.connected) == 0 {
		return store.ErrNotConnected
	}
	return nil
}

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/rbaliyan/inbox/store"
)

// uniqueViolation is the PostgreSQL error code for unique constraint
// violations.
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// InsertMessage atomically inserts a message or returns the existing
// one with the same content hash.
//
// The insert and tag fan-out run in one transaction, so a message is
// never visible without its tag index rows. On a hash conflict the
// INSERT returns no row; the existing row is read back outside the
// transaction. Concurrent identical sends race on the unique
// (inbox_seq, hash) index and the loser reads the winner's row.
func (s *Store) InsertMessage(ctx context.Context, data store.MessageData) (*store.Message, bool, error) {
	if err := s.checkConnected(); err != nil {
		return nil, false, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var seq int64
	var createdAt time.Time
	err = tx.QueryRowContext(ctx, s.queries.insertMessage,
		data.InboxSeq, data.ID, data.Hash, pq.ByteaArray(data.Tags),
		data.Payload, data.Metadata,
	).Scan(&seq, &createdAt)

	if err == sql.ErrNoRows {
		// Hash conflict: the row already exists. Read it back; the
		// tag rows were written by the original insert.
		var row messageRow
		if err := s.db.GetContext(ctx, &row, s.queries.selectByHash, data.InboxSeq, data.Hash); err != nil {
			if err == sql.ErrNoRows {
				return nil, false, store.ErrConflictUnresolved
			}
			return nil, false, fmt.Errorf("fetch existing: %w", err)
		}
		return row.toMessage(), false, nil
	}
	if err != nil {
		// The external id collided with a different message.
		if isUniqueViolation(err) {
			return nil, false, store.ErrDuplicateEntry
		}
		return nil, false, fmt.Errorf("insert message: %w", err)
	}

	for _, tag := range data.Tags {
		if _, err := tx.ExecContext(ctx, s.queries.insertTag, data.InboxSeq, tag, seq); err != nil {
			return nil, false, fmt.Errorf("insert tag row: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("%w: %v", store.ErrTransactionFailed, err)
	}

	return &store.Message{
		ID:        data.ID,
		Seq:       seq,
		InboxSeq:  data.InboxSeq,
		Tags:      data.Tags,
		Payload:   data.Payload,
		Metadata:  data.Metadata,
		Hash:      data.Hash,
		CreatedAt: createdAt,
	}, true, nil
}

// CreateInbox provisions a new inbox. The sequence number comes from
// the directory table's serial column.
func (s *Store) CreateInbox(ctx context.Context, inboxID, ownerID string) (*store.Inbox, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	if inboxID == "" {
		return nil, store.ErrInvalidID
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	var seq int64
	err := s.db.QueryRowContext(ctx, s.queries.insertInbox, inboxID, ownerID).Scan(&seq)
	if err == sql.ErrNoRows {
		return nil, store.ErrDuplicateEntry
	}
	if err != nil {
		return nil, fmt.Errorf("insert inbox: %w", err)
	}

	return &store.Inbox{ID: inboxID, OwnerID: ownerID, Seq: seq}, nil
}

// SetLabel upserts the label for (messageSeq, userID). Last writer wins.
func (s *Store) SetLabel(ctx context.Context, inboxSeq, messageSeq int64, userID string, label int64) error {
	if err := s.checkConnected(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, s.queries.upsertLabel, messageSeq, userID, inboxSeq, label); err != nil {
		return fmt.Errorf("upsert label: %w", err)
	}
	return nil
}

package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"github.com/rbaliyan/inbox/store"
)

// ResolveInbox looks up an inbox by identifier.
func (s *Store) ResolveInbox(ctx context.Context, inboxID string) (*store.Inbox, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	var row struct {
		Seq     int64  `db:"seq"`
		ID      string `db:"id"`
		OwnerID string `db:"owner_id"`
	}
	if err := s.db.GetContext(ctx, &row, s.queries.selectInbox, inboxID); err != nil {
		if err == sql.ErrNoRows {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("select inbox: %w", err)
	}

	return &store.Inbox{ID: row.ID, OwnerID: row.OwnerID, Seq: row.Seq}, nil
}

// GetMessage retrieves a message by its external id within an inbox.
func (s *Store) GetMessage(ctx context.Context, inboxSeq int64, id string) (*store.Message, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	var row messageRow
	if err := s.db.GetContext(ctx, &row, s.queries.selectByID, inboxSeq, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("select message: %w", err)
	}
	return row.toMessage(), nil
}

// MessagesBySeq fetches full messages for the given sequence numbers,
// ascending. Unknown sequences are silently omitted.
func (s *Store) MessagesBySeq(ctx context.Context, inboxSeq int64, seqs []int64) ([]*store.Message, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	if len(seqs) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	var rows []messageRow
	if err := s.db.SelectContext(ctx, &rows, s.queries.selectBySeqs, inboxSeq, pq.Array(seqs)); err != nil {
		return nil, fmt.Errorf("select messages: %w", err)
	}

	msgs := make([]*store.Message, len(rows))
	for i := range rows {
		msgs[i] = rows[i].toMessage()
	}
	return msgs, nil
}

// ListMessages returns up to limit messages after afterSeq, ascending.
func (s *Store) ListMessages(ctx context.Context, inboxSeq, afterSeq int64, limit int) ([]*store.Message, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	var rows []messageRow
	if err := s.db.SelectContext(ctx, &rows, s.queries.listMessages, inboxSeq, afterSeq, limit); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	msgs := make([]*store.Message, len(rows))
	for i := range rows {
		msgs[i] = rows[i].toMessage()
	}
	return msgs, nil
}

// Candidates returns distinct message sequence numbers matching any of
// the given tags, after afterSeq, ascending.
func (s *Store) Candidates(ctx context.Context, inboxSeq int64, tags [][]byte, afterSeq int64, limit int) ([]int64, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	if len(tags) == 0 || limit <= 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	var seqs []int64
	if err := s.db.SelectContext(ctx, &seqs, s.queries.candidates, inboxSeq, pq.ByteaArray(tags), afterSeq, limit); err != nil {
		return nil, fmt.Errorf("select candidates: %w", err)
	}
	return seqs, nil
}

// Labels returns the labels the given user has written for the given
// message sequences. Unlabeled sequences are omitted.
func (s *Store) Labels(ctx context.Context, messageSeqs []int64, userID string) (map[int64]int64, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}

	labels := make(map[int64]int64, len(messageSeqs))
	if userID == "" || len(messageSeqs) == 0 {
		return labels, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, s.queries.selectLabels, userID, pq.Array(messageSeqs))
	if err != nil {
		return nil, fmt.Errorf("select labels: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var seq, label int64
		if err := rows.Scan(&seq, &label); err != nil {
			return nil, fmt.Errorf("scan label: %w", err)
		}
		labels[seq] = label
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate labels: %w", err)
	}
	return labels, nil
}

// QueryPage assembles candidate selection, message fetch, and label
// join in a single round-trip via a CTE. The authenticated and
// anonymous variants are separate statements; the anonymous one skips
// the label join entirely.
func (s *Store) QueryPage(ctx context.Context, inboxSeq int64, tags [][]byte, afterSeq int64, userID string, limit int) ([]store.PageRow, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	if len(tags) == 0 || limit <= 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	var rows []pageRow
	var err error
	if userID == "" {
		err = s.db.SelectContext(ctx, &rows, s.queries.queryPageAnon,
			inboxSeq, pq.ByteaArray(tags), afterSeq, limit)
	} else {
		err = s.db.SelectContext(ctx, &rows, s.queries.queryPageAuth,
			inboxSeq, pq.ByteaArray(tags), afterSeq, limit, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("query page: %w", err)
	}

	return toPageRows(rows), nil
}

// ExportPage is QueryPage without tag filtering.
func (s *Store) ExportPage(ctx context.Context, inboxSeq, afterSeq int64, userID string, limit int) ([]store.PageRow, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	var rows []pageRow
	var err error
	if userID == "" {
		err = s.db.SelectContext(ctx, &rows, s.queries.exportPageAnon,
			inboxSeq, afterSeq, limit)
	} else {
		err = s.db.SelectContext(ctx, &rows, s.queries.exportPageAuth,
			inboxSeq, afterSeq, limit, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("export page: %w", err)
	}

	return toPageRows(rows), nil
}

func toPageRows(rows []pageRow) []store.PageRow {
	out := make([]store.PageRow, len(rows))
	for i := range rows {
		out[i] = store.PageRow{
			Message: rows[i].messageRow.toMessage(),
			Label:   rows[i].Label,
		}
	}
	return out
}

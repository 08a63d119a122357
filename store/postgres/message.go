package postgres

import (
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/rbaliyan/inbox/store"
)

// queries holds every SQL statement used by the store, rendered once
// from the table prefix at construction time. Each logical operation
// gets its own named variant; nothing is assembled per call.
type queries struct {
	insertMessage  string
	selectByHash   string
	insertTag      string
	selectByID     string
	selectBySeqs   string
	listMessages   string
	candidates     string
	insertInbox    string
	selectInbox    string
	upsertLabel    string
	selectLabels   string
	queryPageAuth  string
	queryPageAnon  string
	exportPageAuth string
	exportPageAnon string
}

func buildQueries(p string) queries {
	const messageCols = `seq, inbox_seq, id, hash, tags, payload, metadata, created_at`

	return queries{
		insertMessage: fmt.Sprintf(`
			INSERT INTO %s_messages (inbox_seq, id, hash, tags, payload, metadata)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (inbox_seq, hash) DO NOTHING
			RETURNING seq, created_at
		`, p),
		selectByHash: fmt.Sprintf(`
			SELECT %s FROM %s_messages WHERE inbox_seq = $1 AND hash = $2
		`, messageCols, p),
		insertTag: fmt.Sprintf(`
			INSERT INTO %s_message_tags (inbox_seq, tag, message_seq)
			VALUES ($1, $2, $3)
			ON CONFLICT DO NOTHING
		`, p),
		selectByID: fmt.Sprintf(`
			SELECT %s FROM %s_messages WHERE inbox_seq = $1 AND id = $2
		`, messageCols, p),
		selectBySeqs: fmt.Sprintf(`
			SELECT %s FROM %s_messages
			WHERE inbox_seq = $1 AND seq = ANY($2)
			ORDER BY seq ASC
		`, messageCols, p),
		listMessages: fmt.Sprintf(`
			SELECT %s FROM %s_messages
			WHERE inbox_seq = $1 AND seq > $2
			ORDER BY seq ASC
			LIMIT $3
		`, messageCols, p),
		candidates: fmt.Sprintf(`
			SELECT DISTINCT message_seq FROM %s_message_tags
			WHERE inbox_seq = $1 AND tag = ANY($2) AND message_seq > $3
			ORDER BY message_seq ASC
			LIMIT $4
		`, p),
		insertInbox: fmt.Sprintf(`
			INSERT INTO %s_inboxes (id, owner_id)
			VALUES ($1, $2)
			ON CONFLICT (id) DO NOTHING
			RETURNING seq
		`, p),
		selectInbox: fmt.Sprintf(`
			SELECT seq, id, owner_id FROM %s_inboxes WHERE id = $1
		`, p),
		upsertLabel: fmt.Sprintf(`
			INSERT INTO %s_message_labels (message_seq, user_id, inbox_seq, label, updated_at)
			VALUES ($1, $2, $3, $4, NOW())
			ON CONFLICT (message_seq, user_id)
			DO UPDATE SET label = EXCLUDED.label, updated_at = NOW()
		`, p),
		selectLabels: fmt.Sprintf(`
			SELECT message_seq, label FROM %s_message_labels
			WHERE user_id = $1 AND message_seq = ANY($2)
		`, p),
		queryPageAuth: fmt.Sprintf(`
			WITH candidates AS (
				SELECT DISTINCT message_seq FROM %s_message_tags
				WHERE inbox_seq = $1 AND tag = ANY($2) AND message_seq > $3
				ORDER BY message_seq ASC
				LIMIT $4
			)
			SELECT m.seq, m.inbox_seq, m.id, m.hash, m.tags, m.payload, m.metadata, m.created_at,
			       COALESCE(l.label, 0) AS label
			FROM candidates c
			JOIN %s_messages m ON m.seq = c.message_seq
			LEFT JOIN %s_message_labels l ON l.message_seq = m.seq AND l.user_id = $5
			ORDER BY m.seq ASC
		`, p, p, p),
		queryPageAnon: fmt.Sprintf(`
			WITH candidates AS (
				SELECT DISTINCT message_seq FROM %s_message_tags
				WHERE inbox_seq = $1 AND tag = ANY($2) AND message_seq > $3
				ORDER BY message_seq ASC
				LIMIT $4
			)
			SELECT m.seq, m.inbox_seq, m.id, m.hash, m.tags, m.payload, m.metadata, m.created_at,
			       0 AS label
			FROM candidates c
			JOIN %s_messages m ON m.seq = c.message_seq
			ORDER BY m.seq ASC
		`, p, p),
		exportPageAuth: fmt.Sprintf(`
			SELECT m.seq, m.inbox_seq, m.id, m.hash, m.tags, m.payload, m.metadata, m.created_at,
			       COALESCE(l.label, 0) AS label
			FROM %s_messages m
			LEFT JOIN %s_message_labels l ON l.message_seq = m.seq AND l.user_id = $4
			WHERE m.inbox_seq = $1 AND m.seq > $2
			ORDER BY m.seq ASC
			LIMIT $3
		`, p, p),
		exportPageAnon: fmt.Sprintf(`
			SELECT m.seq, m.inbox_seq, m.id, m.hash, m.tags, m.payload, m.metadata, m.created_at,
			       0 AS label
			FROM %s_messages m
			WHERE m.inbox_seq = $1 AND m.seq > $2
			ORDER BY m.seq ASC
			LIMIT $3
		`, p),
	}
}

// messageRow maps a ledger row for sqlx scanning.
type messageRow struct {
	Seq       int64         `db:"seq"`
	InboxSeq  int64         `db:"inbox_seq"`
	ID        string        `db:"id"`
	Hash      []byte        `db:"hash"`
	Tags      pq.ByteaArray `db:"tags"`
	Payload   []byte        `db:"payload"`
	Metadata  []byte        `db:"metadata"`
	CreatedAt time.Time     `db:"created_at"`
}

func (r *messageRow) toMessage() *store.Message {
	return &store.Message{
		ID:        r.ID,
		Seq:       r.Seq,
		InboxSeq:  r.InboxSeq,
		Tags:      r.Tags,
		Payload:   r.Payload,
		Metadata:  r.Metadata,
		Hash:      r.Hash,
		CreatedAt: r.CreatedAt,
	}
}

// pageRow is a messageRow with the caller's label joined.
type pageRow struct {
	messageRow
	Label int64 `db:"label"`
}

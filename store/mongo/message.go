package mongo

import (
	"time"

	"github.com/rbaliyan/inbox/store"
)

// Counter document names.
const (
	counterMessageSeq = "message_seq"
	counterInboxSeq   = "inbox_seq"
)

// messageDoc is the ledger document. Tags live on the document itself
// so the insert and the tag index entries are one atomic write.
type messageDoc struct {
	Seq       int64     `bson:"seq"`
	InboxSeq  int64     `bson:"inbox_seq"`
	ID        string    `bson:"id"`
	Hash      []byte    `bson:"hash"`
	Tags      [][]byte  `bson:"tags"`
	Payload   []byte    `bson:"payload"`
	Metadata  []byte    `bson:"metadata,omitempty"`
	CreatedAt time.Time `bson:"created_at"`
}

func (d *messageDoc) toMessage() *store.Message {
	return &store.Message{
		ID:        d.ID,
		Seq:       d.Seq,
		InboxSeq:  d.InboxSeq,
		Tags:      d.Tags,
		Payload:   d.Payload,
		Metadata:  d.Metadata,
		Hash:      d.Hash,
		CreatedAt: d.CreatedAt,
	}
}

// inboxDoc is one directory entry.
type inboxDoc struct {
	Seq     int64  `bson:"seq"`
	ID      string `bson:"id"`
	OwnerID string `bson:"owner_id"`
}

// labelDoc is one (message, user) label overlay row.
type labelDoc struct {
	MessageSeq int64     `bson:"message_seq"`
	UserID     string    `bson:"user_id"`
	InboxSeq   int64     `bson:"inbox_seq"`
	Label      int64     `bson:"label"`
	UpdatedAt  time.Time `bson:"updated_at"`
}

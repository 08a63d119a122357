package store

import (
	"bytes"
	"time"
)

// SharedInboxID is the sentinel identifier of the well-known public
// inbox. It resolves to sequence namespace 0 with no owner and never
// touches the backing directory.
const SharedInboxID = "shared"

// SharedInbox is the resolution result for SharedInboxID.
var SharedInbox = &Inbox{ID: SharedInboxID, OwnerID: "", Seq: 0}

// Inbox is a namespace that receives messages.
//
// OwnerID is the owning account, or empty for the public/shared inbox.
// Seq is the dense per-inbox sequence namespace used to partition
// ledger rows. Both are immutable after creation.
type Inbox struct {
	ID      string
	OwnerID string
	Seq     int64
}

// Public reports whether the inbox has no owner, meaning anyone may
// query and label its messages. Export from a public inbox is always
// forbidden regardless.
func (i *Inbox) Public() bool { return i.OwnerID == "" }

// Message is one immutable ledger row.
//
// ID is the external identifier (caller-requested or server-generated),
// unique within the inbox. Seq is the internal monotonically increasing
// per-inbox sequence number assigned at insert time; it is the sole
// ordering and pagination key. Hash is the SHA-256 content hash used as
// the deduplication key: within an inbox, the hash uniquely determines
// the message.
type Message struct {
	ID        string
	Seq       int64
	InboxSeq  int64
	Tags      [][]byte
	Payload   []byte // canonical JSON encoding of the payload object
	Metadata  []byte // opaque small blob
	Hash      []byte
	CreatedAt time.Time
}

// HasTag reports whether the message carries the given tag.
func (m *Message) HasTag(tag []byte) bool {
	for _, t := range m.Tags {
		if bytes.Equal(t, tag) {
			return true
		}
	}
	return false
}

// MessageData is the input to Ledger.InsertMessage. All fields are
// computed by the service layer: the external id is pre-generated (or
// caller-requested), the hash is the canonical content hash, and the
// payload has already been encoded to JSON.
type MessageData struct {
	InboxSeq int64
	ID       string
	Tags     [][]byte
	Payload  []byte
	Metadata []byte
	Hash     []byte
}

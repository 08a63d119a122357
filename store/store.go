// Package store provides interfaces and types for inbox storage.
// Implementations are in store/memory, store/postgres, and store/mongo
// subpackages.
//
// # Architectural Principle: No Distributed Locks
//
// This package is designed to avoid distributed locks entirely. All
// concurrency concerns are handled through database-native atomicity:
//
//  1. Content-hash deduplication uses the storage engine's atomic
//     "insert unique, ignore on conflict" primitive (PostgreSQL's
//     INSERT ... ON CONFLICT DO NOTHING RETURNING, MongoDB's unique
//     index plus duplicate-key read-back). Concurrent identical sends
//     race to insert; exactly one wins and the other reads back the
//     winner's row.
//
//  2. Message insert and tag fan-out are committed as a single atomic
//     unit (transaction or single-document write), so a failed or
//     abandoned request never leaves a message visible without its
//     tag rows.
//
//  3. Sequence numbers are assigned by the storage engine at insert
//     time (serial column, counter document), giving a total per-inbox
//     order without external coordination.
package store

import "context"

// Store is the storage interface for the inbox core.
//
// All operations must be safe for concurrent use. Implementations must
// use database-level atomicity (transactions, unique constraints,
// atomic upserts) rather than external locking. See package
// documentation for details.
type Store interface {
	// Lifecycle
	Connect(ctx context.Context) error
	Close(ctx context.Context) error

	// Directory resolves inbox identifiers to their owner and
	// sequence namespace.
	Directory

	// Ledger is the append-only, content-addressed message store.
	Ledger

	// TagIndex is the secondary (inbox, tag) -> message seq index.
	TagIndex

	// LabelStore holds per-(message, user) label overlays.
	LabelStore
}

// Directory resolves an inbox identifier to its owning account and
// dense per-inbox sequence namespace.
//
// Inbox-to-owner bindings are immutable after creation. Callers may
// therefore cache resolution results (including negative results)
// indefinitely; the inbox.Service does exactly that.
type Directory interface {
	// ResolveInbox looks up an inbox by identifier.
	// Returns ErrNotFound if the inbox does not exist.
	ResolveInbox(ctx context.Context, inboxID string) (*Inbox, error)

	// CreateInbox provisions a new inbox owned by the given account.
	// An empty ownerID creates a public inbox. Returns
	// ErrDuplicateEntry if the identifier is already taken.
	//
	// Provisioning is normally driven by an external management
	// collaborator; it lives on the store so deployments and tests
	// can seed inboxes.
	CreateInbox(ctx context.Context, inboxID, ownerID string) (*Inbox, error)
}

// Ledger provides append-only, content-addressed message storage.
// Messages are never mutated or deleted once inserted.
type Ledger interface {
	// InsertMessage atomically inserts a message or returns the
	// existing one with the same content hash.
	//
	// On first insert the store assigns the next per-inbox sequence
	// number, writes one tag index row per tag in the same atomic
	// unit, and returns created=true. On a hash conflict the existing
	// row is read back and returned with created=false; the tag
	// fan-out is skipped because the rows already exist.
	//
	// Returns ErrConflictUnresolved if a hash conflict occurs but the
	// conflicting row cannot subsequently be found. This indicates a
	// storage invariant violation and must be surfaced, never
	// swallowed.
	InsertMessage(ctx context.Context, data MessageData) (msg *Message, created bool, err error)

	// GetMessage retrieves a message by its external id within an
	// inbox. Returns ErrNotFound if absent.
	GetMessage(ctx context.Context, inboxSeq int64, id string) (*Message, error)

	// MessagesBySeq fetches full messages for the given sequence
	// numbers, in ascending sequence order. Unknown sequences are
	// silently omitted.
	MessagesBySeq(ctx context.Context, inboxSeq int64, seqs []int64) ([]*Message, error)

	// ListMessages returns up to limit messages with sequence
	// numbers strictly greater than afterSeq, ascending. Used by the
	// export path, which has no tag filter.
	ListMessages(ctx context.Context, inboxSeq, afterSeq int64, limit int) ([]*Message, error)
}

// TagIndex exposes the read primitive consumed by the query engine.
type TagIndex interface {
	// Candidates returns up to limit distinct message sequence
	// numbers strictly greater than afterSeq whose messages carry at
	// least one of the given tags, in ascending order. A message
	// matching several of the tags appears once.
	//
	// An empty tag set yields an empty result: querying with no tags
	// returns nothing, not everything.
	Candidates(ctx context.Context, inboxSeq int64, tags [][]byte, afterSeq int64, limit int) ([]int64, error)
}

// LabelStore holds per-(message, user) integer annotations. Labels
// exist independently of message content; a label is visible only to
// the user who wrote it.
type LabelStore interface {
	// SetLabel upserts the label for (messageSeq, userID).
	// Last writer wins; no history is retained.
	SetLabel(ctx context.Context, inboxSeq, messageSeq int64, userID string, label int64) error

	// Labels returns the labels the given user has written for the
	// given message sequences. Sequences with no label are omitted
	// from the result map; callers default them to zero.
	Labels(ctx context.Context, messageSeqs []int64, userID string) (map[int64]int64, error)
}

// PageRow is one row of a combined candidate+label page, returned by
// the optional PageQuerier fast path.
type PageRow struct {
	Message *Message
	Label   int64
}

// PageQuerier is an optional interface that Store implementations can
// implement to assemble a query page in a single round-trip (candidate
// selection, message fetch, and label join combined). When implemented,
// the query engine uses it instead of separate Candidates /
// MessagesBySeq / Labels calls.
//
// An empty userID means an anonymous caller: labels are not joined and
// every row's Label is zero.
type PageQuerier interface {
	// QueryPage returns up to limit candidate rows with sequence
	// numbers strictly greater than afterSeq, matching any of the
	// given tags, ascending, with the caller's labels joined.
	QueryPage(ctx context.Context, inboxSeq int64, tags [][]byte, afterSeq int64, userID string, limit int) ([]PageRow, error)

	// ExportPage is QueryPage without tag filtering.
	ExportPage(ctx context.Context, inboxSeq, afterSeq int64, userID string, limit int) ([]PageRow, error)
}

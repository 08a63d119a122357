// Package memory provides an in-memory Store implementation for testing.
// This store is not suitable for production use - data is not persisted.
package memory

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rbaliyan/inbox/store"
)

// Compile-time check
var _ store.Store = (*Store)(nil)

// Store implements store.Store with in-memory storage.
// Thread-safe for concurrent use. Not suitable for production.
type Store struct {
	mu        sync.RWMutex
	connected int32

	inboxes      map[string]*store.Inbox
	ledgers      map[int64]*ledger // inboxSeq -> ledger
	labels       map[labelKey]int64
	nextInboxSeq int64 // 0 is reserved for the shared inbox
	nextSeq      int64 // global message sequence, monotonic per inbox by construction
}

// ledger holds one inbox's messages and its tag index.
type ledger struct {
	byHash map[string]*store.Message
	byID   map[string]*store.Message
	bySeq  map[int64]*store.Message
	seqs   []int64            // ascending insertion order
	tags   map[string][]int64 // tag -> ascending message seqs
}

type labelKey struct {
	messageSeq int64
	userID     string
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		inboxes: make(map[string]*store.Inbox),
		ledgers: make(map[int64]*ledger),
		labels:  make(map[labelKey]int64),
	}
}

// Connect marks the store as connected.
func (s *Store) Connect(_ context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.connected, 0, 1) {
		return store.ErrAlreadyConnected
	}
	return nil
}

// Close marks the store as disconnected.
func (s *Store) Close(_ context.Context) error {
	atomic.StoreInt32(&s.connected, 0)
	return nil
}

func (s *Store) checkConnected() error {
	if atomic.LoadInt32(&s.connected) == 0 {
		return store.ErrNotConnected
	}
	return nil
}

// ledgerFor returns the ledger for an inbox sequence namespace,
// creating it lazily. Callers must hold s.mu.
func (s *Store) ledgerFor(inboxSeq int64) *ledger {
	l, ok := s.ledgers[inboxSeq]
	if !ok {
		l = &ledger{
			byHash: make(map[string]*store.Message),
			byID:   make(map[string]*store.Message),
			bySeq:  make(map[int64]*store.Message),
			tags:   make(map[string][]int64),
		}
		s.ledgers[inboxSeq] = l
	}
	return l
}

// =============================================================================
// Directory
// =============================================================================

// ResolveInbox looks up an inbox by identifier.
func (s *Store) ResolveInbox(_ context.Context, inboxID string) (*store.Inbox, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	if inboxID == "" {
		return nil, store.ErrInvalidID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	in, ok := s.inboxes[inboxID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *in
	return &cp, nil
}

// CreateInbox provisions a new inbox.
func (s *Store) CreateInbox(_ context.Context, inboxID, ownerID string) (*store.Inbox, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	if inboxID == "" {
		return nil, store.ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.inboxes[inboxID]; exists {
		return nil, store.ErrDuplicateEntry
	}
	s.nextInboxSeq++
	in := &store.Inbox{ID: inboxID, OwnerID: ownerID, Seq: s.nextInboxSeq}
	s.inboxes[inboxID] = in
	cp := *in
	return &cp, nil
}

// cloneMessage copies a message so callers cannot mutate stored
// state through returned pointers.
func cloneMessage(m *store.Message) *store.Message {
	cp := *m
	cp.Tags = make([][]byte, len(m.Tags))
	for i, t := range m.Tags {
		cp.Tags[i] = append([]byte(nil), t...)
	}
	cp.Payload = append([]byte(nil), m.Payload...)
	cp.Metadata = append([]byte(nil), m.Metadata...)
	cp.Hash = append([]byte(nil), m.Hash...)
	return &cp
}

// Package cached decorates a store.Store with a Redis-backed
// read-through cache for the inbox directory.
//
// Inbox-to-owner bindings are immutable after creation, so cached
// entries never go stale; the TTL only bounds memory. Negative lookups
// are cached too, under a sentinel value, so repeated queries against
// an absent inbox do not hammer the backing store. The ledger, tag
// index, and label operations pass straight through.
package cached

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rbaliyan/inbox/codec"
	"github.com/rbaliyan/inbox/store"
)

// Compile-time checks
var (
	_ store.Store       = (*Store)(nil)
	_ store.PageQuerier = (*Store)(nil)
)

// DefaultTTL bounds how long directory entries stay in Redis.
const DefaultTTL = 24 * time.Hour

// missSentinel marks a cached negative lookup.
var missSentinel = []byte{0}

// Store wraps a backing store.Store, serving ResolveInbox from Redis.
type Store struct {
	store.Store

	cache  redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// Option configures a cached store.
type Option func(*Store)

// WithKeyPrefix sets the Redis key prefix. Defaults to "inbox:dir:".
func WithKeyPrefix(prefix string) Option {
	return func(s *Store) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithTTL sets the cache entry TTL. Zero means no expiry.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl >= 0 {
			s.ttl = ttl
		}
	}
}

// New wraps backing with a Redis directory cache.
// Compatible with *redis.Client, *redis.ClusterClient, and redis.UniversalClient.
func New(backing store.Store, cache redis.UniversalClient, opts ...Option) *Store {
	s := &Store{
		Store:  backing,
		cache:  cache,
		prefix: "inbox:dir:",
		ttl:    DefaultTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// cachedInbox is the CBOR-encoded cache value.
type cachedInbox struct {
	ID      string `cbor:"i"`
	OwnerID string `cbor:"o"`
	Seq     int64  `cbor:"q"`
}

func (s *Store) key(inboxID string) string {
	return s.prefix + inboxID
}

// ResolveInbox looks up an inbox, consulting Redis first. Cache errors
// degrade to the backing store; a broken cache never fails a resolve.
func (s *Store) ResolveInbox(ctx context.Context, inboxID string) (*store.Inbox, error) {
	data, err := s.cache.Get(ctx, s.key(inboxID)).Bytes()
	if err == nil {
		if len(data) == 1 && data[0] == missSentinel[0] {
			return nil, store.ErrNotFound
		}
		var c cachedInbox
		if err := codec.Unmarshal(data, &c); err == nil {
			return &store.Inbox{ID: c.ID, OwnerID: c.OwnerID, Seq: c.Seq}, nil
		}
		// Undecodable entry: fall through and overwrite it.
	}

	in, err := s.Store.ResolveInbox(ctx, inboxID)
	if err != nil {
		if store.IsNotFound(err) {
			s.cache.Set(ctx, s.key(inboxID), missSentinel, s.ttl)
		}
		return nil, err
	}

	if data, err := codec.Marshal(cachedInbox{ID: in.ID, OwnerID: in.OwnerID, Seq: in.Seq}); err == nil {
		s.cache.Set(ctx, s.key(inboxID), data, s.ttl)
	}
	return in, nil
}

// CreateInbox provisions through the backing store and drops any
// cached negative entry for the id.
func (s *Store) CreateInbox(ctx context.Context, inboxID, ownerID string) (*store.Inbox, error) {
	in, err := s.Store.CreateInbox(ctx, inboxID, ownerID)
	if err != nil {
		return nil, err
	}
	s.cache.Del(ctx, s.key(inboxID))
	return in, nil
}

// QueryPage delegates to the backing store's fast path when it has
// one, otherwise composes the page from the granular primitives.
func (s *Store) QueryPage(ctx context.Context, inboxSeq int64, tags [][]byte, afterSeq int64, userID string, limit int) ([]store.PageRow, error) {
	if pq, ok := s.Store.(store.PageQuerier); ok {
		return pq.QueryPage(ctx, inboxSeq, tags, afterSeq, userID, limit)
	}

	seqs, err := s.Store.Candidates(ctx, inboxSeq, tags, afterSeq, limit)
	if err != nil {
		return nil, fmt.Errorf("tag candidates: %w", err)
	}
	msgs, err := s.Store.MessagesBySeq(ctx, inboxSeq, seqs)
	if err != nil {
		return nil, fmt.Errorf("fetch messages: %w", err)
	}
	return s.joinLabels(ctx, msgs, userID)
}

// ExportPage is QueryPage without tag filtering.
func (s *Store) ExportPage(ctx context.Context, inboxSeq, afterSeq int64, userID string, limit int) ([]store.PageRow, error) {
	if pq, ok := s.Store.(store.PageQuerier); ok {
		return pq.ExportPage(ctx, inboxSeq, afterSeq, userID, limit)
	}

	msgs, err := s.Store.ListMessages(ctx, inboxSeq, afterSeq, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return s.joinLabels(ctx, msgs, userID)
}

func (s *Store) joinLabels(ctx context.Context, msgs []*store.Message, userID string) ([]store.PageRow, error) {
	rows := make([]store.PageRow, len(msgs))
	for i, m := range msgs {
		rows[i] = store.PageRow{Message: m}
	}
	if userID == "" || len(msgs) == 0 {
		return rows, nil
	}

	seqs := make([]int64, len(msgs))
	for i, m := range msgs {
		seqs[i] = m.Seq
	}
	labels, err := s.Store.Labels(ctx, seqs, userID)
	if err != nil {
		return nil, fmt.Errorf("load labels: %w", err)
	}
	for i := range rows {
		rows[i].Label = labels[rows[i].Message.Seq]
	}
	return rows, nil
}

// Flush removes every cached directory entry under the key prefix.
// Intended for tests and operational tooling.
func (s *Store) Flush(ctx context.Context) error {
	iter := s.cache.Scan(ctx, 0, s.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := s.cache.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("delete cache key: %w", err)
		}
	}
	if err := iter.Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("scan cache keys: %w", err)
	}
	return nil
}

// Package mongo provides a MongoDB implementation of store.Store.
//
// Tags are embedded in the message document, so a message and its tag
// index entries commit as a single-document write; the multikey index
// on (inbox_seq, tags, seq) serves candidate selection. Sequence
// numbers come from counter documents bumped with an atomic upsert.
// Deduplication rides the unique (inbox_seq, hash) index: the losing
// insert of a race gets a duplicate-key error and reads back the
// winner's document.
package mongo

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/rbaliyan/inbox/store"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	mongoopts "go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Compile-time check
var _ store.Store = (*Store)(nil)

// Store implements store.Store using MongoDB.
type Store struct {
	client    *mongo.Client
	db        *mongo.Database
	inboxes   *mongo.Collection
	messages  *mongo.Collection
	labels    *mongo.Collection
	counters  *mongo.Collection
	opts      *options
	connected int32
	logger    *slog.Logger
}

// New creates a new MongoDB store with the provided client.
// Call Connect() to initialize the collections and indexes.
func New(client *mongo.Client, opts ...Option) *Store {
	o := newOptions(opts...)
	return &Store{
		client: client,
		opts:   o,
		logger: o.logger,
	}
}

// Connect initializes the database, collections, and indexes.
func (s *Store) Connect(ctx context.Context) error {
	if atomic.LoadInt32(&s.connected) == 1 {
		return store.ErrAlreadyConnected
	}

	if s.client == nil {
		return fmt.Errorf("mongo: client is required")
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	if err := s.client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("mongo ping: %w", err)
	}

	s.db = s.client.Database(s.opts.database)
	p := s.opts.collectionPrefix
	s.inboxes = s.db.Collection(p + "_inboxes")
	s.messages = s.db.Collection(p + "_messages")
	s.labels = s.db.Collection(p + "_labels")
	s.counters = s.db.Collection(p + "_counters")

	if err := s.ensureIndexes(ctx); err != nil {
		return fmt.Errorf("ensure indexes: %w", err)
	}

	atomic.StoreInt32(&s.connected, 1)
	s.logger.Info("connected to MongoDB", "database", s.opts.database, "collection_prefix", p)
	return nil
}

// Close marks the store as disconnected.
// The caller is responsible for closing the MongoDB client.
func (s *Store) Close(ctx context.Context) error {
	if atomic.LoadInt32(&s.connected) == 0 {
		return nil
	}
	atomic.StoreInt32(&s.connected, 0)
	return nil
}

// ensureIndexes creates required indexes.
func (s *Store) ensureIndexes(ctx context.Context) error {
	inboxIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{bson.E{Key: "id", Value: 1}},
			Options: mongoopts.Index().SetUnique(true),
		},
	}
	if _, err := s.inboxes.Indexes().CreateMany(ctx, inboxIndexes); err != nil {
		return err
	}

	messageIndexes := []mongo.IndexModel{
		// Deduplication key
		{
			Keys: bson.D{
				bson.E{Key: "inbox_seq", Value: 1},
				bson.E{Key: "hash", Value: 1},
			},
			Options: mongoopts.Index().SetUnique(true),
		},
		// External id lookup
		{
			Keys: bson.D{
				bson.E{Key: "inbox_seq", Value: 1},
				bson.E{Key: "id", Value: 1},
			},
			Options: mongoopts.Index().SetUnique(true),
		},
		// Candidate selection (multikey on tags)
		{Keys: bson.D{
			bson.E{Key: "inbox_seq", Value: 1},
			bson.E{Key: "tags", Value: 1},
			bson.E{Key: "seq", Value: 1},
		}},
		// Export pagination
		{Keys: bson.D{
			bson.E{Key: "inbox_seq", Value: 1},
			bson.E{Key: "seq", Value: 1},
		}},
	}
	if _, err := s.messages.Indexes().CreateMany(ctx, messageIndexes); err != nil {
		return err
	}

	labelIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				bson.E{Key: "message_seq", Value: 1},
				bson.E{Key: "user_id", Value: 1},
			},
			Options: mongoopts.Index().SetUnique(true),
		},
	}
	if _, err := s.labels.Indexes().CreateMany(ctx, labelIndexes); err != nil {
		return err
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

// nextSeq atomically bumps and returns the named counter. The upsert
// creates the counter document on first use.
func (s *Store) nextSeq(ctx context.Context, name string) (int64, error) {
	var doc struct {
		Value int64 `bson:"value"`
	}
	err := s.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"value": int64(1)}},
		mongoopts.FindOneAndUpdate().
			SetUpsert(true).
			SetReturnDocument(mongoopts.After),
	).Decode(&doc)
	if err != nil {
		return 0, fmt.Errorf("bump counter %q: %w", name, err)
	}
	return doc.Value, nil
}

package mongo

import (
	"context"
	"errors"
	"fmt"

	"github.com/rbaliyan/inbox/store"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	mongoopts "go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ResolveInbox looks up an inbox by identifier.
func (s *Store) ResolveInbox(ctx context.Context, inboxID string) (*store.Inbox, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	var doc inboxDoc
	err := s.inboxes.FindOne(ctx, bson.M{"id": inboxID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find inbox: %w", err)
	}

	return &store.Inbox{ID: doc.ID, OwnerID: doc.OwnerID, Seq: doc.Seq}, nil
}

// GetMessage retrieves a message by its external id within an inbox.
func (s *Store) GetMessage(ctx context.Context, inboxSeq int64, id string) (*store.Message, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	var doc messageDoc
	err := s.messages.FindOne(ctx, bson.M{"inbox_seq": inboxSeq, "id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find message: %w", err)
	}
	return doc.toMessage(), nil
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

	cur, err := s.messages.Find(ctx,
		bson.M{"inbox_seq": inboxSeq, "seq": bson.M{"$in": seqs}},
		mongoopts.Find().SetSort(bson.D{bson.E{Key: "seq", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("find messages: %w", err)
	}
	return decodeMessages(ctx, cur)
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

	cur, err := s.messages.Find(ctx,
		bson.M{"inbox_seq": inboxSeq, "seq": bson.M{"$gt": afterSeq}},
		mongoopts.Find().
			SetSort(bson.D{bson.E{Key: "seq", Value: 1}}).
			SetLimit(int64(limit)),
	)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return decodeMessages(ctx, cur)
}

// Candidates returns distinct message sequence numbers matching any of
// the given tags, after afterSeq, ascending. Tags are embedded in the
// message document, so each matching message yields exactly one
// document regardless of how many tags hit.
func (s *Store) Candidates(ctx context.Context, inboxSeq int64, tags [][]byte, afterSeq int64, limit int) ([]int64, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	if len(tags) == 0 || limit <= 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	cur, err := s.messages.Find(ctx,
		bson.M{
			"inbox_seq": inboxSeq,
			"tags":      bson.M{"$in": tags},
			"seq":       bson.M{"$gt": afterSeq},
		},
		mongoopts.Find().
			SetSort(bson.D{bson.E{Key: "seq", Value: 1}}).
			SetLimit(int64(limit)).
			SetProjection(bson.M{"seq": 1, "_id": 0}),
	)
	if err != nil {
		return nil, fmt.Errorf("find candidates: %w", err)
	}
	defer cur.Close(ctx)

	var seqs []int64
	for cur.Next(ctx) {
		var doc struct {
			Seq int64 `bson:"seq"`
		}
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode candidate: %w", err)
		}
		seqs = append(seqs, doc.Seq)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("iterate candidates: %w", err)
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

	cur, err := s.labels.Find(ctx, bson.M{
		"user_id":     userID,
		"message_seq": bson.M{"$in": messageSeqs},
	})
	if err != nil {
		return nil, fmt.Errorf("find labels: %w", err)
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var doc labelDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode label: %w", err)
		}
		labels[doc.MessageSeq] = doc.Label
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("iterate labels: %w", err)
	}
	return labels, nil
}

func decodeMessages(ctx context.Context, cur *mongo.Cursor) ([]*store.Message, error) {
	defer cur.Close(ctx)

	var docs []messageDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}

	msgs := make([]*store.Message, len(docs))
	for i := range docs {
		msgs[i] = docs[i].toMessage()
	}
	return msgs, nil
}

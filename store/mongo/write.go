package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rbaliyan/inbox/store"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	mongoopts "go.mongodb.org/mongo-driver/v2/mongo/options"
)

// InsertMessage atomically inserts a message or returns the existing
// one with the same content hash.
//
// The counter is bumped before the insert, so a deduplicated send
// burns a sequence number. Sequence numbers are monotonic, not dense;
// the query engine only ever compares them.
func (s *Store) InsertMessage(ctx context.Context, data store.MessageData) (*store.Message, bool, error) {
	if err := s.checkConnected(); err != nil {
		return nil, false, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	seq, err := s.nextSeq(ctx, counterMessageSeq)
	if err != nil {
		return nil, false, err
	}

	doc := messageDoc{
		Seq:       seq,
		InboxSeq:  data.InboxSeq,
		ID:        data.ID,
		Hash:      data.Hash,
		Tags:      data.Tags,
		Payload:   data.Payload,
		Metadata:  data.Metadata,
		CreatedAt: time.Now().UTC(),
	}
	if doc.Tags == nil {
		doc.Tags = [][]byte{}
	}

	_, err = s.messages.InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		// Either the content hash or the external id collided. Read
		// back by hash first: a hash hit is a deduplicated send.
		var existing messageDoc
		findErr := s.messages.FindOne(ctx, bson.M{
			"inbox_seq": data.InboxSeq,
			"hash":      data.Hash,
		}).Decode(&existing)
		if findErr == nil {
			return existing.toMessage(), false, nil
		}
		if errors.Is(findErr, mongo.ErrNoDocuments) {
			// No row with this hash: the id index collided, or the
			// hash row vanished between insert and read-back.
			var byID messageDoc
			idErr := s.messages.FindOne(ctx, bson.M{
				"inbox_seq": data.InboxSeq,
				"id":        data.ID,
			}).Decode(&byID)
			if idErr == nil {
				return nil, false, store.ErrDuplicateEntry
			}
			return nil, false, store.ErrConflictUnresolved
		}
		return nil, false, fmt.Errorf("fetch existing: %w", findErr)
	}
	if err != nil {
		return nil, false, fmt.Errorf("insert message: %w", err)
	}

	return doc.toMessage(), true, nil
}

// CreateInbox provisions a new inbox.
func (s *Store) CreateInbox(ctx context.Context, inboxID, ownerID string) (*store.Inbox, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	if inboxID == "" {
		return nil, store.ErrInvalidID
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	seq, err := s.nextSeq(ctx, counterInboxSeq)
	if err != nil {
		return nil, err
	}

	_, err = s.inboxes.InsertOne(ctx, inboxDoc{Seq: seq, ID: inboxID, OwnerID: ownerID})
	if mongo.IsDuplicateKeyError(err) {
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

	_, err := s.labels.UpdateOne(ctx,
		bson.M{"message_seq": messageSeq, "user_id": userID},
		bson.M{
			"$set": bson.M{
				"label":      label,
				"inbox_seq":  inboxSeq,
				"updated_at": time.Now().UTC(),
			},
		},
		mongoopts.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("upsert label: %w", err)
	}
	return nil
}

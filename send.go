package inbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rbaliyan/inbox/codec"
	"github.com/rbaliyan/inbox/store"
	"go.opentelemetry.io/otel/attribute"
)

// Send delivers a tagged message to the inbox.
//
// The write path is: validate, resolve the inbox, compute the content
// hash over the canonical encoding, then hand the store an atomic
// insert-or-noop keyed by that hash. Tag index rows fan out inside the
// same atomic unit, and only on first insert. On deduplication the
// requested id is ignored in favor of the id already on record:
// resending never changes the canonical id.
func (c *inboxClient) Send(ctx context.Context, req SendRequest) (*SendResult, error) {
	if err := c.checkAccess(); err != nil {
		return nil, err
	}

	// Bound concurrent sends; also lets Close drain in-flight work.
	if err := c.service.sendSem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("acquire send slot: %w", err)
	}
	defer c.service.sendSem.Release(1)

	ctx, endSpan := c.service.otel.startSpan(ctx, "inbox.send",
		attribute.String("inbox_id", c.inboxID),
	)
	start := time.Now()
	var sendErr error
	var created bool
	defer func() {
		endSpan(sendErr)
		c.service.otel.recordSend(ctx, time.Since(start), created, sendErr)
	}()

	// Validation happens before any storage mutation.
	if err := validateTags(req.Tags, c.service.opts.maxTagCount, c.service.opts.maxTagLength); err != nil {
		sendErr = err
		return nil, err
	}

	payloadJSON, err := json.Marshal(req.Payload)
	if err != nil {
		sendErr = err
		return nil, fmt.Errorf("%w: payload not serializable: %v", ErrBadInput, err)
	}

	if err := validateMessageSize(req.Tags, payloadJSON, req.Metadata, c.service.opts.maxMessageSize); err != nil {
		sendErr = err
		return nil, err
	}

	in, err := c.resolve(ctx)
	if err != nil {
		sendErr = err
		return nil, err
	}

	// Hash over the JSON-normalized payload value, not the caller's
	// Go value: two sends whose payloads marshal to the same JSON must
	// hash identically regardless of the Go types they started as.
	var normalized any
	if err := json.Unmarshal(payloadJSON, &normalized); err != nil {
		sendErr = err
		return nil, fmt.Errorf("%w: payload not serializable: %v", ErrBadInput, err)
	}
	hash, err := codec.MessageHash(in.Seq, req.Tags, normalized, req.Metadata)
	if err != nil {
		sendErr = err
		return nil, fmt.Errorf("hash message: %w", err)
	}

	id := req.RequestedID
	if id == "" {
		id = uuid.New().String()
	}

	msg, wasCreated, err := c.service.store.InsertMessage(ctx, store.MessageData{
		InboxSeq: in.Seq,
		ID:       id,
		Tags:     req.Tags,
		Payload:  payloadJSON,
		Metadata: req.Metadata,
		Hash:     hash,
	})
	if err != nil {
		switch {
		case errors.Is(err, store.ErrConflictUnresolved):
			// A message with this hash both exists and cannot be read
			// back. The store broke its append-only invariant; log as
			// a bug and surface an internal error.
			c.service.logger.Error("hash conflict row not found during send",
				"inbox_id", c.inboxID, "error", err)
			sendErr = ErrStoreInconsistent
			return nil, ErrStoreInconsistent
		case errors.Is(err, store.ErrDuplicateEntry):
			sendErr = err
			return nil, fmt.Errorf("%w: message id %q already taken", ErrBadInput, id)
		default:
			sendErr = err
			return nil, fmt.Errorf("insert message: %w", err)
		}
	}

	created = wasCreated
	return &SendResult{ID: msg.ID, Created: wasCreated}, nil
}

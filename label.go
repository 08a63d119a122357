package inbox

import (
	"context"
	"fmt"
	"time"

	"github.com/rbaliyan/inbox/store"
	"go.opentelemetry.io/otel/attribute"
)

// Get retrieves a single message by its external id, with the caller's
// label joined. Allowed for the inbox owner, or anyone when the inbox
// is public.
func (c *inboxClient) Get(ctx context.Context, messageID, callerID string) (*LabeledMessage, error) {
	if err := c.checkAccess(); err != nil {
		return nil, err
	}

	ctx, endSpan := c.service.otel.startSpan(ctx, "inbox.get",
		attribute.String("inbox_id", c.inboxID),
		attribute.String("message_id", messageID),
	)
	start := time.Now()
	var getErr error
	defer func() {
		endSpan(getErr)
		c.service.otel.recordGet(ctx, time.Since(start), getErr)
	}()

	in, err := c.resolve(ctx)
	if err != nil {
		getErr = err
		return nil, err
	}
	if !canRead(in, callerID) {
		getErr = ErrForbidden
		return nil, ErrForbidden
	}

	msg, err := c.service.store.GetMessage(ctx, in.Seq, messageID)
	if err != nil {
		if store.IsNotFound(err) {
			getErr = ErrNotFound
			return nil, ErrNotFound
		}
		getErr = err
		return nil, fmt.Errorf("get message: %w", err)
	}

	var label int64
	if callerID != "" {
		labels, err := c.service.store.Labels(ctx, []int64{msg.Seq}, callerID)
		if err != nil {
			getErr = err
			return nil, fmt.Errorf("load labels: %w", err)
		}
		label = labels[msg.Seq]
	}

	return labeledMessage(msg, label), nil
}

// Label annotates a message with an integer label >= 1. The caller
// must own the inbox (or the inbox is public). The message must exist
// in this inbox; labels are never created for absent messages.
func (c *inboxClient) Label(ctx context.Context, messageID string, label int64, callerID string) error {
	if err := c.checkAccess(); err != nil {
		return err
	}
	if label < 1 {
		return ErrInvalidLabel
	}
	if callerID == "" {
		return ErrForbidden
	}

	ctx, endSpan := c.service.otel.startSpan(ctx, "inbox.label",
		attribute.String("inbox_id", c.inboxID),
		attribute.String("message_id", messageID),
	)
	start := time.Now()
	var labelErr error
	defer func() {
		endSpan(labelErr)
		c.service.otel.recordLabel(ctx, time.Since(start), labelErr)
	}()

	in, err := c.resolve(ctx)
	if err != nil {
		labelErr = err
		return err
	}
	if !canRead(in, callerID) {
		labelErr = ErrForbidden
		return ErrForbidden
	}

	msg, err := c.service.store.GetMessage(ctx, in.Seq, messageID)
	if err != nil {
		if store.IsNotFound(err) {
			labelErr = ErrNotFound
			return ErrNotFound
		}
		labelErr = err
		return fmt.Errorf("get message: %w", err)
	}

	// Upsert keyed by (message, caller): last writer wins.
	if err := c.service.store.SetLabel(ctx, in.Seq, msg.Seq, callerID, label); err != nil {
		labelErr = err
		return fmt.Errorf("set label: %w", err)
	}
	return nil
}

// labeledMessage joins a stored message with a caller's label value.
func labeledMessage(msg *store.Message, label int64) *LabeledMessage {
	return &LabeledMessage{
		ID:       msg.ID,
		Tags:     msg.Tags,
		Payload:  msg.Payload,
		Metadata: msg.Metadata,
		Label:    label,
	}
}

package inbox

import (
	"context"
	"fmt"
	"time"

	"github.com/rbaliyan/inbox/store"
	"go.opentelemetry.io/otel/attribute"
)

// Query returns one schema-filtered, tag-indexed page of messages.
//
// The engine is stateless between calls: a query's entire state (tag
// set, schema, resume position, rate-limit deadline) lives in the
// client-held cursor. A fresh query starts at sequence 0; a resumed
// query re-derives everything from the cursor, which takes precedence
// over freshly supplied tags and schema.
func (c *inboxClient) Query(ctx context.Context, req QueryRequest) (*QueryResult, error) {
	if err := c.checkAccess(); err != nil {
		return nil, err
	}

	ctx, endSpan := c.service.otel.startSpan(ctx, "inbox.query",
		attribute.String("inbox_id", c.inboxID),
	)
	start := time.Now()
	var queryErr error
	var resultCount int
	defer func() {
		endSpan(queryErr)
		c.service.otel.recordQuery(ctx, time.Since(start), resultCount, queryErr)
	}()

	now := time.Now()
	opts := c.service.opts

	tags := req.Tags
	var sinceSeq int64
	var filter *schemaFilter

	if req.Cursor != "" {
		cur, err := decodeCursor(req.Cursor, opts.cursorKey)
		if err != nil {
			queryErr = err
			return nil, err
		}
		if cur.Export {
			queryErr = ErrBadCursor
			return nil, ErrBadCursor
		}
		if err := checkCursor(cur, now, opts.cursorRetention, opts.rateLimitInterval); err != nil {
			queryErr = err
			return nil, err
		}
		// Cursor wins: the embedded tag set and schema define the
		// query, whatever the caller supplied alongside.
		tags = cur.Tags
		sinceSeq = cur.SinceSeq
		filter, err = compileSchemaJSON(cur.Schema)
		if err != nil {
			queryErr = err
			return nil, err
		}
	} else {
		var err error
		filter, err = compileSchema(req.Schema)
		if err != nil {
			queryErr = err
			return nil, err
		}
	}

	in, err := c.resolveForRead(ctx, req.CallerID)
	if err != nil {
		queryErr = err
		return nil, err
	}

	rows, err := c.fetchQueryPage(ctx, in.Seq, tags, sinceSeq, req.CallerID, opts.queryLimit+1)
	if err != nil {
		queryErr = err
		return nil, err
	}

	res, err := c.assemblePage(rows, tags, filter, sinceSeq, false, now)
	if err != nil {
		queryErr = err
		return nil, err
	}
	resultCount = len(res.Results)
	return res, nil
}

// Export pages through every message in the inbox, without tag or
// schema filtering, under the same cursor and rate-limit discipline as
// Query. Only the actual owner of a non-public inbox may export;
// exporting from the shared inbox is always forbidden.
func (c *inboxClient) Export(ctx context.Context, callerID, cursorStr string) (*QueryResult, error) {
	if err := c.checkAccess(); err != nil {
		return nil, err
	}

	ctx, endSpan := c.service.otel.startSpan(ctx, "inbox.export",
		attribute.String("inbox_id", c.inboxID),
	)
	start := time.Now()
	var exportErr error
	var resultCount int
	defer func() {
		endSpan(exportErr)
		c.service.otel.recordExport(ctx, time.Since(start), resultCount, exportErr)
	}()

	now := time.Now()
	opts := c.service.opts

	var sinceSeq int64
	if cursorStr != "" {
		cur, err := decodeCursor(cursorStr, opts.cursorKey)
		if err != nil {
			exportErr = err
			return nil, err
		}
		if !cur.Export {
			exportErr = ErrBadCursor
			return nil, ErrBadCursor
		}
		if err := checkCursor(cur, now, opts.cursorRetention, opts.rateLimitInterval); err != nil {
			exportErr = err
			return nil, err
		}
		sinceSeq = cur.SinceSeq
	}

	in, err := c.service.directory.Resolve(ctx, c.inboxID)
	if err != nil {
		// Absent inbox reads as Forbidden, like any other inbox the
		// caller cannot export from.
		if store.IsNotFound(err) {
			exportErr = ErrForbidden
			return nil, ErrForbidden
		}
		exportErr = err
		return nil, fmt.Errorf("resolve inbox: %w", err)
	}
	if in.Public() || callerID == "" || in.OwnerID != callerID {
		exportErr = ErrForbidden
		return nil, ErrForbidden
	}

	rows, err := c.fetchExportPage(ctx, in.Seq, sinceSeq, callerID, opts.queryLimit+1)
	if err != nil {
		exportErr = err
		return nil, err
	}

	res, err := c.assemblePage(rows, nil, nil, sinceSeq, true, now)
	if err != nil {
		exportErr = err
		return nil, err
	}
	resultCount = len(res.Results)
	return res, nil
}

// resolveForRead resolves the inbox and authorizes a read. An absent
// inbox reads as Forbidden, not NotFound, so queries never reveal
// whether an inbox the caller cannot see exists.
func (c *inboxClient) resolveForRead(ctx context.Context, callerID string) (*store.Inbox, error) {
	in, err := c.service.directory.Resolve(ctx, c.inboxID)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, ErrForbidden
		}
		return nil, fmt.Errorf("resolve inbox: %w", err)
	}
	if !canRead(in, callerID) {
		return nil, ErrForbidden
	}
	return in, nil
}

// fetchQueryPage returns up to limit candidate rows with the caller's
// labels joined, preferring the store's single-round-trip fast path.
func (c *inboxClient) fetchQueryPage(ctx context.Context, inboxSeq int64, tags [][]byte, afterSeq int64, callerID string, limit int) ([]store.PageRow, error) {
	if len(tags) == 0 {
		// Querying with no tags returns nothing, not everything.
		return nil, nil
	}

	if pq, ok := c.service.store.(store.PageQuerier); ok {
		rows, err := pq.QueryPage(ctx, inboxSeq, tags, afterSeq, callerID, limit)
		if err != nil {
			return nil, fmt.Errorf("query page: %w", err)
		}
		return rows, nil
	}

	seqs, err := c.service.store.Candidates(ctx, inboxSeq, tags, afterSeq, limit)
	if err != nil {
		return nil, fmt.Errorf("tag candidates: %w", err)
	}
	msgs, err := c.service.store.MessagesBySeq(ctx, inboxSeq, seqs)
	if err != nil {
		return nil, fmt.Errorf("fetch messages: %w", err)
	}
	return c.joinLabels(ctx, msgs, callerID)
}

// fetchExportPage is fetchQueryPage without tag filtering.
func (c *inboxClient) fetchExportPage(ctx context.Context, inboxSeq, afterSeq int64, callerID string, limit int) ([]store.PageRow, error) {
	if pq, ok := c.service.store.(store.PageQuerier); ok {
		rows, err := pq.ExportPage(ctx, inboxSeq, afterSeq, callerID, limit)
		if err != nil {
			return nil, fmt.Errorf("export page: %w", err)
		}
		return rows, nil
	}

	msgs, err := c.service.store.ListMessages(ctx, inboxSeq, afterSeq, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return c.joinLabels(ctx, msgs, callerID)
}

// joinLabels attaches the caller's labels to fetched messages.
// Anonymous callers never see labels; every row defaults to zero.
func (c *inboxClient) joinLabels(ctx context.Context, msgs []*store.Message, callerID string) ([]store.PageRow, error) {
	rows := make([]store.PageRow, len(msgs))
	for i, m := range msgs {
		rows[i] = store.PageRow{Message: m}
	}
	if callerID == "" || len(msgs) == 0 {
		return rows, nil
	}

	seqs := make([]int64, len(msgs))
	for i, m := range msgs {
		seqs[i] = m.Seq
	}
	labels, err := c.service.store.Labels(ctx, seqs, callerID)
	if err != nil {
		return nil, fmt.Errorf("load labels: %w", err)
	}
	for i := range rows {
		rows[i].Label = labels[rows[i].Message.Seq]
	}
	return rows, nil
}

// assemblePage turns candidate rows into a result page and re-encodes
// the continuation cursor.
//
// hasMore is detected by the limit+1 overfetch. The schema filter runs
// after the page is trimmed, so a page may carry fewer than limit
// visible rows while hasMore is still true. The cursor resumes after
// the last candidate examined, not the last row that passed the
// filter, so no candidate is ever skipped. A rate-limit deadline is
// embedded only once the reader has drained all available candidates:
// a caught-up poller is throttled to one poll per interval, while a
// reader with more to fetch pages unthrottled.
func (c *inboxClient) assemblePage(rows []store.PageRow, tags [][]byte, filter *schemaFilter, sinceSeq int64, export bool, now time.Time) (*QueryResult, error) {
	opts := c.service.opts

	hasMore := len(rows) == opts.queryLimit+1
	if hasMore {
		rows = rows[:opts.queryLimit]
	}

	lastSeq := sinceSeq
	if len(rows) > 0 {
		lastSeq = rows[len(rows)-1].Message.Seq
	}

	results := make([]*LabeledMessage, 0, len(rows))
	for _, row := range rows {
		if filter != nil && !filter.matches(row.Message.Payload) {
			continue
		}
		results = append(results, labeledMessage(row.Message, row.Label))
	}

	next := &cursor{
		SinceSeq:  lastSeq,
		CreatedAt: now.UnixMilli(),
		Export:    export,
	}
	if !export {
		next.Tags = tags
		if filter != nil {
			next.Schema = filter.source
		}
	}
	if !hasMore {
		next.WaitTil = now.Add(opts.rateLimitInterval).UnixMilli()
	}

	encoded, err := encodeCursor(next, opts.cursorKey)
	if err != nil {
		return nil, fmt.Errorf("encode cursor: %w", err)
	}

	return &QueryResult{
		Results: results,
		HasMore: hasMore,
		Cursor:  encoded,
	}, nil
}

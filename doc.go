// Package inbox provides a multi-tenant message inbox library for Go.
//
// Arbitrary clients send opaque, tagged objects into a named inbox;
// readers retrieve them by tag with schema-filtered, cursor-paginated
// queries; the inbox owner can annotate retrieved messages with an
// integer label. Writes are deduplicated by content hash, reads are
// served from a secondary tag index, and all pagination and
// rate-limiting state lives in opaque client-held cursors, so the
// service is stateless between requests.
//
// # Basic Usage
//
//	// Create in-memory store for testing
//	st := memory.New()
//
//	// Create inbox service
//	svc, err := inbox.NewService(
//	    inbox.WithStore(st),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Connect initializes the storage backend
//	if err := svc.Connect(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer svc.Close(ctx)
//
//	// Get a client for an inbox
//	ib := svc.Inbox("inbox-id")
//
//	// Send a tagged message
//	res, err := ib.Send(ctx, inbox.SendRequest{
//	    Tags:    [][]byte{[]byte("orders")},
//	    Payload: map[string]any{"order": 42},
//	})
//
//	// Query by tag
//	page, err := ib.Query(ctx, inbox.QueryRequest{
//	    Tags:     [][]byte{[]byte("orders")},
//	    CallerID: "owner-account",
//	})
//	for page.HasMore {
//	    page, err = ib.Query(ctx, inbox.QueryRequest{Cursor: page.Cursor, CallerID: "owner-account"})
//	    ...
//	}
//
// # Inbox Operations
//
//   - Send: deliver a tagged message; identical content deduplicates
//   - Get: retrieve a message by ID
//   - Label: annotate a message (owner-scoped, last writer wins)
//   - Query: tag-indexed, schema-filtered pagination
//   - Export: full owner-only dump under the same cursor discipline
//
// # Storage Backends
//
// The store package provides implementations for:
//   - PostgreSQL (store/postgres) - accepts *sqlx.DB or *sql.DB
//   - MongoDB (store/mongo) - accepts *mongo.Client
//   - In-memory (store/memory) - for testing
//
// The store/cached package adds a Redis-backed read-through cache for
// the inbox directory, for multi-instance deployments. The service
// always keeps its own in-process directory cache as well; inbox
// ownership is immutable after creation, so entries never expire.
//
// # Cursors and Rate Limiting
//
// Query and Export return an opaque cursor with every page. The cursor
// embeds the tag set, schema, and resume position; the service stores
// nothing. Once a reader has drained all available messages, the
// returned cursor carries a rate-limit deadline and reusing it early
// fails with ErrRateLimited. Cursors expire a fixed retention window
// after creation (ErrCursorExpired); expired or malformed cursors
// require restarting the query. Pass WithCursorKey to make cursors
// tamper-evident via HMAC-SHA256.
package inbox

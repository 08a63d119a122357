package inbox

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/rbaliyan/inbox/store"
	"golang.org/x/sync/semaphore"
)

// ServiceHealth provides health and state information about the service.
type ServiceHealth interface {
	// IsConnected returns true if the service is connected and ready.
	IsConnected() bool
}

// Service manages the inbox system (server-side).
// It handles the storage connection and creates per-inbox clients.
//
// The service itself holds no per-request state: pagination progress
// and rate limiting live entirely in client-held cursors, so any
// number of service replicas can serve the same store.
type Service interface {
	ServiceHealth

	// Connect establishes the storage connection.
	Connect(ctx context.Context) error
	// Close closes the storage connection after draining in-flight sends.
	Close(ctx context.Context) error
	// Inbox returns a client for the given inbox.
	// The returned client shares the service's connection.
	Inbox(inboxID string) Inbox
}

// Inbox is a client handle for one inbox. Caller identity is passed
// per call because a single inbox serves many callers: anyone may
// send, while reading and labeling are authorized against ownership.
// An empty callerID means an anonymous caller.
type Inbox interface {
	// ID returns the inbox identifier this client is bound to.
	ID() string

	// Send delivers a tagged message to the inbox. Identical content
	// is deduplicated: the second send is a no-op that reports the
	// original message id with Created=false.
	Send(ctx context.Context, req SendRequest) (*SendResult, error)

	// Get retrieves a single message by its external id, with the
	// caller's label joined.
	Get(ctx context.Context, messageID, callerID string) (*LabeledMessage, error)

	// Label annotates a message with an integer label >= 1. At most
	// one label per (message, caller); a second call overwrites.
	Label(ctx context.Context, messageID string, label int64, callerID string) error

	// Query returns a schema-filtered, tag-indexed page of messages.
	// Pass the cursor from a previous result to resume; the cursor's
	// embedded tag set and schema take precedence over freshly
	// supplied ones.
	Query(ctx context.Context, req QueryRequest) (*QueryResult, error)

	// Export pages through every message in the inbox without tag or
	// schema filtering. Owner only; the public inbox cannot be
	// exported.
	Export(ctx context.Context, callerID, cursor string) (*QueryResult, error)
}

// SendRequest is the input to Inbox.Send.
type SendRequest struct {
	// Tags are the byte-string tag values, unique within the message.
	// A message can only be queried by one of its tags.
	Tags [][]byte
	// Payload is the message object. It is stored as canonical JSON
	// and filtered by query schemas.
	Payload any
	// Metadata is an opaque small blob carried alongside the payload.
	Metadata []byte
	// RequestedID optionally assigns the external message id. Ignored
	// when the content deduplicates against an existing message.
	RequestedID string
}

// SendResult reports the outcome of a send.
type SendResult struct {
	// ID is the canonical external message id. On deduplication this
	// is the id already on record, not the requested one.
	ID string
	// Created is false when the content deduplicated against an
	// existing message.
	Created bool
}

// LabeledMessage is a message joined with the requesting caller's
// label. Label is 0 when unset or when the caller is anonymous.
type LabeledMessage struct {
	ID       string
	Tags     [][]byte
	Payload  []byte // canonical JSON
	Metadata []byte
	Label    int64
}

// QueryRequest is the input to Inbox.Query.
type QueryRequest struct {
	// Tags select candidate messages (OR across the set). An empty
	// set matches nothing.
	Tags [][]byte
	// Schema is an optional JSON Schema (draft 2020-12) the payload
	// must satisfy. Nil means no filtering.
	Schema any
	// CallerID identifies the caller; empty means anonymous.
	CallerID string
	// Cursor resumes a previous query. When set, the tag set and
	// schema embedded in the cursor are used and Tags/Schema above
	// are ignored.
	Cursor string
}

// QueryResult is one page of query or export results.
type QueryResult struct {
	Results []*LabeledMessage
	HasMore bool
	// Cursor resumes the query after the last examined candidate.
	Cursor string
}

// Connection states for the service.
const (
	stateDisconnected int32 = 0
	stateConnecting   int32 = 1
	stateConnected    int32 = 2
)

// service is the default implementation of Service.
type service struct {
	store     store.Store
	directory *cachedDirectory
	logger    *slog.Logger
	opts      *options
	state     int32
	otel      *otelInstrumentation
	sendSem   *semaphore.Weighted
}

// NewService creates a new inbox service.
// Call Connect() to establish the storage connection.
func NewService(opts ...Option) (Service, error) {
	o := newOptions(opts...)

	if o.store == nil {
		return nil, ErrStoreRequired
	}

	otelInstr, err := newOtelInstrumentation(o)
	if err != nil {
		return nil, fmt.Errorf("init otel: %w", err)
	}

	return &service{
		store:     o.store,
		directory: newCachedDirectory(o.store, o.directoryCacheSize),
		logger:    o.logger,
		opts:      o,
		otel:      otelInstr,
		sendSem:   semaphore.NewWeighted(int64(o.maxConcurrentSends)),
	}, nil
}

// IsConnected returns true if the service is connected and ready.
func (s *service) IsConnected() bool {
	return atomic.LoadInt32(&s.state) == stateConnected
}

// Connect establishes the storage connection.
func (s *service) Connect(ctx context.Context) error {
	// Three states prevent Inbox() callers from seeing partial
	// initialization: disconnected -> connecting -> connected.
	if !atomic.CompareAndSwapInt32(&s.state, stateDisconnected, stateConnecting) {
		return ErrAlreadyConnected
	}

	success := false
	defer func() {
		if success {
			atomic.StoreInt32(&s.state, stateConnected)
		} else {
			atomic.StoreInt32(&s.state, stateDisconnected)
		}
	}()

	if err := s.store.Connect(ctx); err != nil {
		return fmt.Errorf("connect store: %w", err)
	}

	success = true
	s.logger.Info("inbox service connected")
	return nil
}

// Close drains in-flight sends and closes the storage connection.
func (s *service) Close(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.state, stateConnected, stateDisconnected) {
		return nil
	}

	// After the state flips, no new sends can start (checkAccess
	// fails). Acquiring every semaphore slot waits out the rest.
	shutdownCtx, cancel := context.WithTimeout(ctx, s.opts.shutdownTimeout)
	defer cancel()
	if err := s.sendSem.Acquire(shutdownCtx, int64(s.opts.maxConcurrentSends)); err != nil {
		s.logger.Warn("timeout waiting for in-flight sends, proceeding with shutdown",
			"error", err)
	} else {
		s.sendSem.Release(int64(s.opts.maxConcurrentSends))
	}

	if err := s.store.Close(ctx); err != nil {
		return fmt.Errorf("close store: %w", err)
	}
	return nil
}

// Inbox returns a client for the given inbox.
func (s *service) Inbox(inboxID string) Inbox {
	return &inboxClient{
		inboxID: inboxID,
		service: s,
		validID: isValidInboxID(inboxID),
	}
}

// inboxClient is the internal implementation of Inbox.
type inboxClient struct {
	inboxID string
	service *service
	validID bool
}

// ID returns the inbox identifier.
func (c *inboxClient) ID() string { return c.inboxID }

// checkAccess verifies the service is connected and the inbox id is
// usable before any storage call.
func (c *inboxClient) checkAccess() error {
	if !c.service.IsConnected() {
		return ErrNotConnected
	}
	if !c.validID {
		return ErrInvalidInboxID
	}
	return nil
}

// resolve resolves the inbox through the directory cache.
// Returns ErrNotFound when the inbox does not exist.
func (c *inboxClient) resolve(ctx context.Context) (*store.Inbox, error) {
	in, err := c.service.directory.Resolve(ctx, c.inboxID)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("resolve inbox: %w", err)
	}
	return in, nil
}

// canRead reports whether the caller may read or label messages in
// the inbox: the public inbox is open to everyone, otherwise the
// caller must be the owner.
func canRead(in *store.Inbox, callerID string) bool {
	return in.Public() || (callerID != "" && in.OwnerID == callerID)
}

// isValidInboxID checks that an inbox identifier is non-empty and
// contains only safe characters, preventing cache key injection.
func isValidInboxID(id string) bool {
	if id == "" {
		return false
	}
	for _, r := range id {
		if r == '*' || r == ':' || r == '/' || r == '\\' ||
			r == ' ' || r == '\t' || r == '\n' || r == '\r' ||
			r < 32 || r == 127 {
			return false
		}
	}
	return true
}

// Compile-time checks
var (
	_ Service = (*service)(nil)
	_ Inbox   = (*inboxClient)(nil)
)

package inbox

import (
	"log/slog"
	"time"

	"github.com/rbaliyan/inbox/store"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Default configuration values.
const (
	// DefaultCursorRetention is how long a cursor remains usable,
	// measured from its creation timestamp (not from first use).
	DefaultCursorRetention = 30 * 24 * time.Hour // 30 days
	MinCursorRetention     = time.Minute

	// DefaultRateLimitInterval is the minimum delay between polls once
	// a reader has drained all available candidates.
	DefaultRateLimitInterval = time.Second

	// DefaultMaxMessageSize bounds tags+payload+metadata per message.
	DefaultMaxMessageSize = 32 * 1024 // 32 KiB

	// DefaultQueryLimit is the candidate page size for query and export.
	DefaultQueryLimit = 100

	// Tag limits
	DefaultMaxTagCount  = 32
	DefaultMaxTagLength = 256

	// DefaultDirectoryCacheSize is the capacity of the in-process
	// inbox directory cache.
	DefaultDirectoryCacheSize = 1000

	// DefaultMaxConcurrentSends limits concurrent send operations per
	// service.
	DefaultMaxConcurrentSends = 32

	// DefaultShutdownTimeout bounds how long Close waits for in-flight
	// sends to drain.
	DefaultShutdownTimeout = 30 * time.Second
	MinShutdownTimeout     = time.Second
)

// options holds inbox service configuration.
type options struct {
	store  store.Store
	logger *slog.Logger

	// Query engine
	queryLimit        int
	cursorRetention   time.Duration
	rateLimitInterval time.Duration
	cursorKey         []byte // HMAC key; nil disables cursor signing

	// Send limits
	maxMessageSize int
	maxTagCount    int
	maxTagLength   int

	// Directory cache
	directoryCacheSize int

	// Concurrency
	maxConcurrentSends int
	shutdownTimeout    time.Duration

	// OpenTelemetry
	tracingEnabled bool
	metricsEnabled bool
	serviceName    string
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// newOptions creates options with defaults and applies provided options.
func newOptions(opts ...Option) *options {
	o := &options{
		logger:             slog.Default(),
		queryLimit:         DefaultQueryLimit,
		cursorRetention:    DefaultCursorRetention,
		rateLimitInterval:  DefaultRateLimitInterval,
		maxMessageSize:     DefaultMaxMessageSize,
		maxTagCount:        DefaultMaxTagCount,
		maxTagLength:       DefaultMaxTagLength,
		directoryCacheSize: DefaultDirectoryCacheSize,
		maxConcurrentSends: DefaultMaxConcurrentSends,
		shutdownTimeout:    DefaultShutdownTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Option configures an inbox service.
type Option func(*options)

// WithStore sets the storage backend (required).
func WithStore(s store.Store) Option {
	return func(o *options) {
		if s != nil {
			o.store = s
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithQueryLimit sets the candidate page size for query and export.
func WithQueryLimit(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.queryLimit = n
		}
	}
}

// WithCursorRetention sets how long cursors remain usable after
// creation. Values below MinCursorRetention are ignored.
func WithCursorRetention(d time.Duration) Option {
	return func(o *options) {
		if d >= MinCursorRetention {
			o.cursorRetention = d
		}
	}
}

// WithRateLimitInterval sets the minimum delay between polls for a
// caught-up reader.
func WithRateLimitInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.rateLimitInterval = d
		}
	}
}

// WithCursorKey enables HMAC-SHA256 authentication of cursors. Without
// a key, cursors are unauthenticated (but still opaque and validated
// on decode). Rotating the key invalidates all outstanding cursors;
// clients see ErrBadCursor and restart their queries.
func WithCursorKey(key []byte) Option {
	return func(o *options) {
		if len(key) > 0 {
			o.cursorKey = append([]byte(nil), key...)
		}
	}
}

// WithMaxMessageSize bounds tags+payload+metadata per message, in bytes.
func WithMaxMessageSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxMessageSize = n
		}
	}
}

// WithTagLimits sets the maximum tag count per message and maximum
// length per tag.
func WithTagLimits(count, length int) Option {
	return func(o *options) {
		if count > 0 {
			o.maxTagCount = count
		}
		if length > 0 {
			o.maxTagLength = length
		}
	}
}

// WithDirectoryCacheSize sets the capacity of the in-process inbox
// directory cache. Zero disables the cache.
func WithDirectoryCacheSize(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.directoryCacheSize = n
		}
	}
}

// WithMaxConcurrentSends limits concurrent send operations.
func WithMaxConcurrentSends(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxConcurrentSends = n
		}
	}
}

// WithShutdownTimeout bounds how long Close waits for in-flight sends.
func WithShutdownTimeout(d time.Duration) Option {
	return func(o *options) {
		if d >= MinShutdownTimeout {
			o.shutdownTimeout = d
		}
	}
}

// --- OpenTelemetry Options ---

// WithTracing enables OpenTelemetry tracing.
func WithTracing(enabled bool) Option {
	return func(o *options) {
		o.tracingEnabled = enabled
	}
}

// WithMetrics enables OpenTelemetry metrics.
func WithMetrics(enabled bool) Option {
	return func(o *options) {
		o.metricsEnabled = enabled
	}
}

// WithServiceName sets the service name used in telemetry.
func WithServiceName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.serviceName = name
		}
	}
}

// WithTracerProvider sets a custom tracer provider.
// Defaults to the global provider when tracing is enabled.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		if tp != nil {
			o.tracerProvider = tp
		}
	}
}

// WithMeterProvider sets a custom meter provider.
// Defaults to the global provider when metrics are enabled.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) {
		if mp != nil {
			o.meterProvider = mp
		}
	}
}

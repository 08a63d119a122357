package inbox

import (
	"testing"
	"time"

	"github.com/rbaliyan/inbox/store/memory"
)

func TestDefaultOptions(t *testing.T) {
	o := newOptions(WithStore(memory.New()))

	if o.queryLimit != DefaultQueryLimit {
		t.Errorf("queryLimit = %d, want %d", o.queryLimit, DefaultQueryLimit)
	}
	if o.cursorRetention != DefaultCursorRetention {
		t.Errorf("cursorRetention = %v, want %v", o.cursorRetention, DefaultCursorRetention)
	}
	if o.rateLimitInterval != DefaultRateLimitInterval {
		t.Errorf("rateLimitInterval = %v, want %v", o.rateLimitInterval, DefaultRateLimitInterval)
	}
	if o.maxMessageSize != DefaultMaxMessageSize {
		t.Errorf("maxMessageSize = %d, want %d", o.maxMessageSize, DefaultMaxMessageSize)
	}
	if o.maxTagCount != DefaultMaxTagCount || o.maxTagLength != DefaultMaxTagLength {
		t.Errorf("tag limits = (%d, %d), want (%d, %d)",
			o.maxTagCount, o.maxTagLength, DefaultMaxTagCount, DefaultMaxTagLength)
	}
	if o.directoryCacheSize != DefaultDirectoryCacheSize {
		t.Errorf("directoryCacheSize = %d, want %d", o.directoryCacheSize, DefaultDirectoryCacheSize)
	}
	if o.cursorKey != nil {
		t.Error("cursorKey should default to nil")
	}
	if o.tracingEnabled || o.metricsEnabled {
		t.Error("telemetry should default to disabled")
	}
}

func TestOptionValidation(t *testing.T) {
	o := newOptions(
		WithQueryLimit(0),
		WithQueryLimit(-5),
		WithCursorRetention(time.Millisecond),
		WithRateLimitInterval(0),
		WithMaxMessageSize(-1),
		WithTagLimits(0, 0),
		WithShutdownTimeout(time.Millisecond),
	)

	// Out-of-range values leave the defaults untouched.
	if o.queryLimit != DefaultQueryLimit {
		t.Errorf("queryLimit = %d, want default", o.queryLimit)
	}
	if o.cursorRetention != DefaultCursorRetention {
		t.Errorf("cursorRetention = %v, want default", o.cursorRetention)
	}
	if o.rateLimitInterval != DefaultRateLimitInterval {
		t.Errorf("rateLimitInterval = %v, want default", o.rateLimitInterval)
	}
	if o.maxMessageSize != DefaultMaxMessageSize {
		t.Errorf("maxMessageSize = %d, want default", o.maxMessageSize)
	}
	if o.maxTagCount != DefaultMaxTagCount {
		t.Errorf("maxTagCount = %d, want default", o.maxTagCount)
	}
	if o.shutdownTimeout != DefaultShutdownTimeout {
		t.Errorf("shutdownTimeout = %v, want default", o.shutdownTimeout)
	}
}

func TestWithCursorKeyCopies(t *testing.T) {
	key := []byte("secret")
	o := newOptions(WithCursorKey(key))
	key[0] = 'X'
	if string(o.cursorKey) != "secret" {
		t.Errorf("cursorKey = %q, want untouched copy", o.cursorKey)
	}
}

func TestWithDirectoryCacheSizeZeroDisables(t *testing.T) {
	o := newOptions(WithDirectoryCacheSize(0))
	if o.directoryCacheSize != 0 {
		t.Errorf("directoryCacheSize = %d, want 0", o.directoryCacheSize)
	}
}

package inbox

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rbaliyan/inbox/store"
)

func TestErrorWrapping(t *testing.T) {
	if !errors.Is(ErrNotFound, store.ErrNotFound) {
		t.Error("ErrNotFound must wrap store.ErrNotFound")
	}
	if !errors.Is(ErrStoreInconsistent, store.ErrConflictUnresolved) {
		t.Error("ErrStoreInconsistent must wrap store.ErrConflictUnresolved")
	}
	if !errors.Is(ErrDuplicateTag, ErrBadInput) ||
		!errors.Is(ErrEmptyTag, ErrBadInput) ||
		!errors.Is(ErrMessageTooLarge, ErrBadInput) ||
		!errors.Is(ErrInvalidLabel, ErrBadInput) {
		t.Error("validation errors must wrap ErrBadInput")
	}
}

func TestRateLimitError(t *testing.T) {
	err := fmt.Errorf("outer: %w", &RateLimitError{RetryAfter: 2 * time.Second})

	retry, ok := IsRateLimited(err)
	if !ok {
		t.Fatal("IsRateLimited = false, want true")
	}
	if retry != 2*time.Second {
		t.Errorf("RetryAfter = %v, want 2s", retry)
	}
	if !errors.Is(err, ErrRateLimited) {
		t.Error("RateLimitError must unwrap to ErrRateLimited")
	}

	if _, ok := IsRateLimited(errors.New("other")); ok {
		t.Error("IsRateLimited(other) = true, want false")
	}
	if _, ok := IsRateLimited(nil); ok {
		t.Error("IsRateLimited(nil) = true, want false")
	}
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{ErrNotFound, false},
		{ErrForbidden, false},
		{ErrBadInput, false},
		{ErrDuplicateTag, false},
		{ErrBadSchema, false},
		{ErrBadCursor, false},
		{ErrCursorExpired, false},
		{ErrInvalidInboxID, false},
		{ErrRateLimited, true},
		{&RateLimitError{RetryAfter: time.Second}, true},
		{ErrNotConnected, true},
		{store.ErrTransactionFailed, true},
		{errors.New("connection reset by peer"), true},
	}
	for _, tt := range tests {
		if got := IsRetryableError(tt.err); got != tt.want {
			t.Errorf("IsRetryableError(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

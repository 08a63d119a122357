package inbox

import (
	"errors"
	"fmt"
	"time"

	"github.com/rbaliyan/inbox/store"
)

// Sentinel errors for the inbox package.
// Use errors.Is() to check for these errors.
//
// Errors that correspond to store-level conditions wrap the store
// sentinel, so errors.Is(err, inbox.ErrNotFound) matches both
// inbox-level and store-level "not found" errors.
var (
	// ErrNotFound is returned when an inbox or message cannot be found.
	// The two cases are deliberately indistinguishable so callers never
	// learn whether an inbox they cannot see exists.
	// Wraps store.ErrNotFound for consistent error checking.
	ErrNotFound = fmt.Errorf("inbox: %w", store.ErrNotFound)

	// ErrForbidden is returned on authorization failures: ownership
	// mismatch, export from the public inbox, or labeling a message in
	// an inbox the caller does not own.
	ErrForbidden = errors.New("inbox: forbidden")

	// ErrBadInput is returned for send validation failures. Rejected
	// before any storage mutation occurs.
	ErrBadInput = errors.New("inbox: bad input")

	// ErrDuplicateTag is returned when a message carries the same tag
	// value twice.
	ErrDuplicateTag = fmt.Errorf("%w: duplicate tag", ErrBadInput)

	// ErrEmptyTag is returned when a message carries a zero-length tag.
	ErrEmptyTag = fmt.Errorf("%w: empty tag", ErrBadInput)

	// ErrMessageTooLarge is returned when tags+payload+metadata exceed
	// the configured size limit.
	ErrMessageTooLarge = fmt.Errorf("%w: message too large", ErrBadInput)

	// ErrBadSchema is returned when a query's JSON Schema fails to compile.
	ErrBadSchema = errors.New("inbox: bad schema")

	// ErrBadCursor is returned when a cursor fails to decode or its
	// signature does not verify. Treated like an expired cursor: the
	// caller must restart the query from scratch.
	ErrBadCursor = errors.New("inbox: bad cursor")

	// ErrCursorExpired is returned when a cursor is older than the
	// retention window, measured from its creation timestamp.
	ErrCursorExpired = errors.New("inbox: cursor expired")

	// ErrStoreInconsistent is returned when a content-hash conflict
	// cannot be resolved by a subsequent lookup. This is a storage
	// invariant violation: surface it as an internal error and log it
	// as a bug, never retry silently.
	// Wraps store.ErrConflictUnresolved.
	ErrStoreInconsistent = fmt.Errorf("inbox: %w", store.ErrConflictUnresolved)

	// ErrStoreRequired is returned when no store is configured.
	ErrStoreRequired = errors.New("inbox: store is required")

	// ErrNotConnected is returned when operations are attempted before Connect().
	// Wraps store.ErrNotConnected for consistent error checking.
	ErrNotConnected = fmt.Errorf("inbox: %w", store.ErrNotConnected)

	// ErrAlreadyConnected is returned when Connect() is called twice.
	// Wraps store.ErrAlreadyConnected for consistent error checking.
	ErrAlreadyConnected = fmt.Errorf("inbox: %w", store.ErrAlreadyConnected)

	// ErrInvalidInboxID is returned when an inbox identifier is empty
	// or contains unsafe characters.
	ErrInvalidInboxID = errors.New("inbox: invalid inbox id")

	// ErrInvalidLabel is returned when a label value is below 1.
	// Zero is reserved to mean "unset".
	ErrInvalidLabel = fmt.Errorf("%w: label must be >= 1", ErrBadInput)

	// ErrRateLimited is returned when a cursor's rate-limit deadline
	// has not yet been reached. The typed RateLimitError carries the
	// retry interval.
	ErrRateLimited = errors.New("inbox: rate limited")
)

// RateLimitError is returned when a drained cursor is reused before
// its embedded deadline. RetryAfter is how long the caller should wait
// before retrying with the same cursor.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("inbox: rate limited, retry after %s", e.RetryAfter)
}

func (e *RateLimitError) Unwrap() error {
	return ErrRateLimited
}

// IsRateLimited checks whether err is a rate-limit rejection and
// returns the retry interval.
func IsRateLimited(err error) (time.Duration, bool) {
	var rle *RateLimitError
	if errors.As(err, &rle) {
		return rle.RetryAfter, true
	}
	if errors.Is(err, ErrRateLimited) {
		return 0, true
	}
	return 0, false
}

// IsRetryableError determines whether an error is worth retrying.
// Validation, authorization, and not-found failures are deterministic;
// rate limits can be waited out and connection problems can recover.
// Unknown errors default to retryable, as they are usually transient
// network or timeout issues.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	permanent := []error{
		ErrNotFound,
		ErrForbidden,
		ErrBadInput,
		ErrBadSchema,
		ErrBadCursor,
		ErrCursorExpired,
		ErrInvalidInboxID,
		store.ErrNotFound,
		store.ErrInvalidID,
		store.ErrDuplicateEntry,
	}
	for _, p := range permanent {
		if errors.Is(err, p) {
			return false
		}
	}

	retryable := []error{
		ErrRateLimited,
		ErrNotConnected,
		store.ErrNotConnected,
		store.ErrTransactionFailed,
	}
	for _, r := range retryable {
		if errors.Is(err, r) {
			return true
		}
	}

	return true
}

package store

import "errors"

// Sentinel errors for the store package.
var (
	// ErrNotFound is returned when an inbox or message cannot be found.
	ErrNotFound = errors.New("store: not found")

	// ErrInvalidID is returned when an invalid identifier is provided.
	ErrInvalidID = errors.New("store: invalid id")

	// ErrDuplicateEntry is returned when a unique constraint other than
	// the content hash is violated (e.g. provisioning an inbox id that
	// is already taken, or an external message id collision).
	ErrDuplicateEntry = errors.New("store: duplicate entry")

	// ErrConflictUnresolved is returned when a content-hash insert
	// conflicts but the conflicting row cannot subsequently be found.
	// This indicates a storage invariant violation (a deduplicated
	// message vanished mid-send) and must be treated as fatal.
	ErrConflictUnresolved = errors.New("store: hash conflict row not found")

	// ErrNotConnected is returned when operations are attempted before Connect().
	ErrNotConnected = errors.New("store: not connected")

	// ErrAlreadyConnected is returned when Connect() is called twice.
	ErrAlreadyConnected = errors.New("store: already connected")

	// ErrTransactionFailed is returned when a database transaction fails.
	// The atomic operation did not complete and no changes were made.
	ErrTransactionFailed = errors.New("store: transaction failed")
)

// Error checking helpers.

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsDuplicateEntry(err error) bool {
	return errors.Is(err, ErrDuplicateEntry)
}

func IsNotConnected(err error) bool {
	return errors.Is(err, ErrNotConnected)
}

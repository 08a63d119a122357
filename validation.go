package inbox

import (
	"fmt"
)

// validateTags rejects malformed tag sets before any storage call.
// Tags are byte strings, unique within the message; duplicates are a
// validation error, not a silent dedup.
func validateTags(tags [][]byte, maxCount, maxLength int) error {
	if len(tags) > maxCount {
		return fmt.Errorf("%w: %d tags exceeds max %d", ErrBadInput, len(tags), maxCount)
	}

	seen := make(map[string]bool, len(tags))
	for _, tag := range tags {
		if len(tag) == 0 {
			return ErrEmptyTag
		}
		if len(tag) > maxLength {
			return fmt.Errorf("%w: tag length %d exceeds max %d", ErrBadInput, len(tag), maxLength)
		}
		if seen[string(tag)] {
			return fmt.Errorf("%w: %q", ErrDuplicateTag, tag)
		}
		seen[string(tag)] = true
	}
	return nil
}

// validateMessageSize bounds the stored footprint of a message. The
// HTTP layer enforces its own body limit; this check keeps the core
// honest even when called directly.
func validateMessageSize(tags [][]byte, payload, metadata []byte, maxSize int) error {
	size := len(payload) + len(metadata)
	for _, tag := range tags {
		size += len(tag)
	}
	if size > maxSize {
		return fmt.Errorf("%w: %d bytes exceeds max %d", ErrMessageTooLarge, size, maxSize)
	}
	return nil
}

package inbox

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"time"

	"github.com/rbaliyan/inbox/codec"
)

// cursor is the decoded form of the opaque pagination token. All state
// needed to resume a query lives here; nothing is persisted server-side.
//
// A cursor is bound to the query it was derived from: the tag set and
// schema are embedded and reused on resume, so a caller supplying
// different filters alongside a cursor gets the cursor's filters, not
// their own. CreatedAt is refreshed on every returned page, so the
// retention window bounds idle cursors, not active pagination.
type cursor struct {
	Tags      [][]byte `cbor:"t,omitempty"`
	Schema    []byte   `cbor:"s,omitempty"` // JSON Schema source
	SinceSeq  int64    `cbor:"q"`
	CreatedAt int64    `cbor:"c"`           // unix milliseconds
	WaitTil   int64    `cbor:"w,omitempty"` // unix milliseconds; rate-limit deadline
	Export    bool     `cbor:"e,omitempty"` // export cursors are not valid for query and vice versa
}

// hmacSize is the length of the appended cursor authentication tag.
const hmacSize = sha256.Size

// encodeCursor serializes a cursor to its opaque string form:
// base64url over the deterministic CBOR encoding, with an HMAC-SHA256
// tag appended when a key is configured.
func encodeCursor(c *cursor, key []byte) (string, error) {
	raw, err := codec.Marshal(c)
	if err != nil {
		return "", err
	}
	if len(key) > 0 {
		mac := hmac.New(sha256.New, key)
		mac.Write(raw)
		raw = mac.Sum(raw)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// decodeCursor parses an untrusted cursor string. Any malformed input
// yields ErrBadCursor; this function never panics on garbage.
func decodeCursor(s string, key []byte) (*cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, ErrBadCursor
	}

	if len(key) > 0 {
		if len(raw) < hmacSize {
			return nil, ErrBadCursor
		}
		body, tag := raw[:len(raw)-hmacSize], raw[len(raw)-hmacSize:]
		mac := hmac.New(sha256.New, key)
		mac.Write(body)
		if !hmac.Equal(tag, mac.Sum(nil)) {
			return nil, ErrBadCursor
		}
		raw = body
	}

	var c cursor
	if err := codec.Unmarshal(raw, &c); err != nil {
		return nil, ErrBadCursor
	}
	if c.CreatedAt <= 0 || c.SinceSeq < 0 {
		return nil, ErrBadCursor
	}
	return &c, nil
}

// checkCursor validates a decoded cursor against the retention window
// and its rate-limit deadline.
func checkCursor(c *cursor, now time.Time, retention time.Duration, rateLimitInterval time.Duration) error {
	createdAt := time.UnixMilli(c.CreatedAt)
	if now.Sub(createdAt) > retention {
		return ErrCursorExpired
	}
	if c.WaitTil > 0 {
		waitTil := time.UnixMilli(c.WaitTil)
		if waitTil.After(now) {
			return &RateLimitError{RetryAfter: rateLimitInterval}
		}
	}
	return nil
}

// Package codec provides the canonical byte encoding used for content
// hashing and cursor serialization.
//
// Messages are deduplicated by a SHA-256 digest of their canonical
// encoding, so hash equality must be independent of map iteration
// order, JSON whitespace, and number formatting. The encoding is CBOR
// Core Deterministic Encoding (RFC 8949 §4.2): sorted map keys,
// smallest integer encoding, no indefinite-length items. The same
// logical message always produces identical bytes, and therefore the
// same hash, on every send.
package codec

import (
	"crypto/sha256"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v using Core Deterministic Encoding.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes standard CBOR into v.
func Unmarshal(data []byte, v any) error {
	return cbor.Unmarshal(data, v)
}

// hashEnvelope is the canonical hashing input. The inbox sequence
// namespace is included so identical content sent to two inboxes
// produces distinct hashes, matching the per-inbox dedup invariant.
type hashEnvelope struct {
	InboxSeq int64    `cbor:"q"`
	Tags     [][]byte `cbor:"t"`
	Payload  any      `cbor:"o"`
	Metadata []byte   `cbor:"m"`
}

// MessageHash computes the SHA-256 content hash of a message over the
// canonical encoding of (inboxSeq, tags, payload, metadata). The
// payload is the decoded object, not its JSON text, so two JSON
// spellings of the same object hash identically.
func MessageHash(inboxSeq int64, tags [][]byte, payload any, metadata []byte) ([]byte, error) {
	raw, err := Marshal(hashEnvelope{
		InboxSeq: inboxSeq,
		Tags:     tags,
		Payload:  payload,
		Metadata: metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("encode hash envelope: %w", err)
	}
	sum := sha256.Sum256(raw)
	return sum[:], nil
}

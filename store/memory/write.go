package memory

import (
	"context"
	"time"

	"github.com/rbaliyan/inbox/store"
)

// InsertMessage atomically inserts a message or returns the existing
// one with the same content hash. The whole operation happens under a
// single lock, so the message row and its tag index entries become
// visible together, mirroring the transactional fan-out of the
// database backends.
func (s *Store) InsertMessage(_ context.Context, data store.MessageData) (*store.Message, bool, error) {
	if err := s.checkConnected(); err != nil {
		return nil, false, err
	}
	if data.ID == "" || len(data.Hash) == 0 {
		return nil, false, store.ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	l := s.ledgerFor(data.InboxSeq)

	// Dedup by content hash: re-sending identical content is a no-op
	// that reports the original row.
	if existing, ok := l.byHash[string(data.Hash)]; ok {
		return cloneMessage(existing), false, nil
	}

	if _, ok := l.byID[data.ID]; ok {
		return nil, false, store.ErrDuplicateEntry
	}

	s.nextSeq++
	msg := &store.Message{
		ID:        data.ID,
		Seq:       s.nextSeq,
		InboxSeq:  data.InboxSeq,
		Tags:      data.Tags,
		Payload:   data.Payload,
		Metadata:  data.Metadata,
		Hash:      data.Hash,
		CreatedAt: time.Now().UTC(),
	}
	msg = cloneMessage(msg) // detach from caller-owned slices

	l.byHash[string(msg.Hash)] = msg
	l.byID[msg.ID] = msg
	l.bySeq[msg.Seq] = msg
	l.seqs = append(l.seqs, msg.Seq)

	// Tag fan-out, first insert only.
	for _, tag := range msg.Tags {
		l.tags[string(tag)] = append(l.tags[string(tag)], msg.Seq)
	}

	return cloneMessage(msg), true, nil
}

// SetLabel upserts the label for (messageSeq, userID).
func (s *Store) SetLabel(_ context.Context, inboxSeq, messageSeq int64, userID string, label int64) error {
	if err := s.checkConnected(); err != nil {
		return err
	}
	if userID == "" {
		return store.ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.ledgers[inboxSeq]
	if !ok {
		return store.ErrNotFound
	}
	if _, ok := l.bySeq[messageSeq]; !ok {
		return store.ErrNotFound
	}

	s.labels[labelKey{messageSeq: messageSeq, userID: userID}] = label
	return nil
}

// Labels returns the given user's labels for the given sequences.
func (s *Store) Labels(_ context.Context, messageSeqs []int64, userID string) (map[int64]int64, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}

	out := make(map[int64]int64)
	if userID == "" {
		return out, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, seq := range messageSeqs {
		if v, ok := s.labels[labelKey{messageSeq: seq, userID: userID}]; ok {
			out[seq] = v
		}
	}
	return out, nil
}

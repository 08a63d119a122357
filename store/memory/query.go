package memory

import (
	"context"
	"sort"

	"github.com/rbaliyan/inbox/store"
)

// GetMessage retrieves a message by its external id within an inbox.
func (s *Store) GetMessage(_ context.Context, inboxSeq int64, id string) (*store.Message, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, store.ErrInvalidID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.ledgers[inboxSeq]
	if !ok {
		return nil, store.ErrNotFound
	}
	msg, ok := l.byID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneMessage(msg), nil
}

// MessagesBySeq fetches messages for the given sequence numbers in
// ascending sequence order. Unknown sequences are omitted.
func (s *Store) MessagesBySeq(_ context.Context, inboxSeq int64, seqs []int64) ([]*store.Message, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.ledgers[inboxSeq]
	if !ok {
		return nil, nil
	}

	sorted := append([]int64(nil), seqs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	out := make([]*store.Message, 0, len(sorted))
	for _, seq := range sorted {
		if msg, ok := l.bySeq[seq]; ok {
			out = append(out, cloneMessage(msg))
		}
	}
	return out, nil
}

// ListMessages returns up to limit messages after afterSeq, ascending.
func (s *Store) ListMessages(_ context.Context, inboxSeq, afterSeq int64, limit int) ([]*store.Message, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.ledgers[inboxSeq]
	if !ok {
		return nil, nil
	}

	// seqs is maintained in ascending order; binary search the start.
	start := sort.Search(len(l.seqs), func(i int) bool { return l.seqs[i] > afterSeq })

	out := make([]*store.Message, 0, limit)
	for _, seq := range l.seqs[start:] {
		if len(out) == limit {
			break
		}
		out = append(out, cloneMessage(l.bySeq[seq]))
	}
	return out, nil
}

// Candidates returns up to limit distinct message sequences after
// afterSeq matching any of the given tags, ascending.
func (s *Store) Candidates(_ context.Context, inboxSeq int64, tags [][]byte, afterSeq int64, limit int) ([]int64, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	// No tags means no candidates, never "everything".
	if len(tags) == 0 || limit <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.ledgers[inboxSeq]
	if !ok {
		return nil, nil
	}

	// OR across the tag set with a dedup step: a message matching
	// several requested tags appears once.
	seen := make(map[int64]bool)
	var union []int64
	for _, tag := range tags {
		for _, seq := range l.tags[string(tag)] {
			if seq > afterSeq && !seen[seq] {
				seen[seq] = true
				union = append(union, seq)
			}
		}
	}
	sort.Slice(union, func(i, j int) bool { return union[i] < union[j] })

	if len(union) > limit {
		union = union[:limit]
	}
	return union, nil
}

package inbox

import (
	"context"
	"errors"
	"testing"

	"github.com/rbaliyan/inbox/store"
)

// countingDirectory records backing lookups for cache assertions.
type countingDirectory struct {
	inboxes map[string]*store.Inbox
	calls   int
	fail    error
}

func (d *countingDirectory) ResolveInbox(_ context.Context, inboxID string) (*store.Inbox, error) {
	d.calls++
	if d.fail != nil {
		return nil, d.fail
	}
	in, ok := d.inboxes[inboxID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return in, nil
}

func (d *countingDirectory) CreateInbox(_ context.Context, inboxID, ownerID string) (*store.Inbox, error) {
	in := &store.Inbox{ID: inboxID, OwnerID: ownerID, Seq: int64(len(d.inboxes) + 1)}
	d.inboxes[inboxID] = in
	return in, nil
}

func newCountingDirectory() *countingDirectory {
	return &countingDirectory{inboxes: make(map[string]*store.Inbox)}
}

func TestDirectoryCachesHits(t *testing.T) {
	ctx := context.Background()
	backing := newCountingDirectory()
	backing.inboxes["box"] = &store.Inbox{ID: "box", OwnerID: "alice", Seq: 1}
	d := newCachedDirectory(backing, 10)

	for i := 0; i < 3; i++ {
		in, err := d.Resolve(ctx, "box")
		if err != nil {
			t.Fatalf("resolve %d: %v", i, err)
		}
		if in.OwnerID != "alice" {
			t.Errorf("owner = %q, want alice", in.OwnerID)
		}
	}
	if backing.calls != 1 {
		t.Errorf("backing calls = %d, want 1", backing.calls)
	}
}

func TestDirectoryCachesNegativeResults(t *testing.T) {
	ctx := context.Background()
	backing := newCountingDirectory()
	d := newCachedDirectory(backing, 10)

	for i := 0; i < 3; i++ {
		if _, err := d.Resolve(ctx, "ghost"); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("resolve %d = %v, want ErrNotFound", i, err)
		}
	}
	if backing.calls != 1 {
		t.Errorf("backing calls = %d, want 1 (negative result cached)", backing.calls)
	}
}

func TestDirectoryDoesNotCacheTransientErrors(t *testing.T) {
	ctx := context.Background()
	backing := newCountingDirectory()
	backing.fail = errors.New("connection reset")
	d := newCachedDirectory(backing, 10)

	for i := 0; i < 2; i++ {
		if _, err := d.Resolve(ctx, "box"); err == nil {
			t.Fatal("expected error")
		}
	}
	if backing.calls != 2 {
		t.Errorf("backing calls = %d, want 2 (transient errors not cached)", backing.calls)
	}

	// Recovery: the next resolve after the failure clears succeeds.
	backing.fail = nil
	backing.inboxes["box"] = &store.Inbox{ID: "box", Seq: 1}
	if _, err := d.Resolve(ctx, "box"); err != nil {
		t.Fatalf("resolve after recovery: %v", err)
	}
}

func TestDirectorySharedInboxShortCircuits(t *testing.T) {
	ctx := context.Background()
	backing := newCountingDirectory()
	d := newCachedDirectory(backing, 10)

	in, err := d.Resolve(ctx, store.SharedInboxID)
	if err != nil {
		t.Fatalf("resolve shared: %v", err)
	}
	if in.Seq != 0 || !in.Public() {
		t.Errorf("shared inbox = %+v, want seq 0 public", in)
	}
	if backing.calls != 0 {
		t.Errorf("backing calls = %d, want 0", backing.calls)
	}
}

func TestDirectoryEviction(t *testing.T) {
	ctx := context.Background()
	backing := newCountingDirectory()
	backing.inboxes["a"] = &store.Inbox{ID: "a", Seq: 1}
	backing.inboxes["b"] = &store.Inbox{ID: "b", Seq: 2}
	d := newCachedDirectory(backing, 1)

	d.Resolve(ctx, "a")
	d.Resolve(ctx, "b") // evicts a
	d.Resolve(ctx, "a") // miss again
	if backing.calls != 3 {
		t.Errorf("backing calls = %d, want 3", backing.calls)
	}
}

func TestDirectoryCacheDisabled(t *testing.T) {
	ctx := context.Background()
	backing := newCountingDirectory()
	backing.inboxes["box"] = &store.Inbox{ID: "box", Seq: 1}
	d := newCachedDirectory(backing, 0)

	d.Resolve(ctx, "box")
	d.Resolve(ctx, "box")
	if backing.calls != 2 {
		t.Errorf("backing calls = %d, want 2 with cache disabled", backing.calls)
	}
}

func TestLRUCacheUpdateMovesToFront(t *testing.T) {
	c := newLRUCache(2)
	c.put("a", &store.Inbox{ID: "a"})
	c.put("b", &store.Inbox{ID: "b"})

	// Touch a, then insert c: b is the eviction victim.
	if _, ok := c.get("a"); !ok {
		t.Fatal("expected a cached")
	}
	c.put("c", &store.Inbox{ID: "c"})

	if _, ok := c.get("b"); ok {
		t.Error("expected b evicted")
	}
	if _, ok := c.get("a"); !ok {
		t.Error("expected a retained")
	}
	if _, ok := c.get("c"); !ok {
		t.Error("expected c cached")
	}
}

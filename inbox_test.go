package inbox

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/rbaliyan/inbox/store"
	"github.com/rbaliyan/inbox/store/memory"
)

// newTestService returns a connected service over a fresh memory store
// with fast rate limiting, plus the store for direct seeding.
func newTestService(t *testing.T, opts ...Option) (Service, *memory.Store) {
	t.Helper()

	st := memory.New()
	all := append([]Option{
		WithStore(st),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}, opts...)

	svc, err := NewService(all...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if err := svc.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { svc.Close(context.Background()) })

	return svc, st
}

// seedInbox provisions an inbox directly on the store.
func seedInbox(t *testing.T, st *memory.Store, inboxID, ownerID string) {
	t.Helper()
	if _, err := st.CreateInbox(context.Background(), inboxID, ownerID); err != nil {
		t.Fatalf("seed inbox %q: %v", inboxID, err)
	}
}

func TestNewServiceRequiresStore(t *testing.T) {
	if _, err := NewService(); !errors.Is(err, ErrStoreRequired) {
		t.Errorf("NewService() error = %v, want ErrStoreRequired", err)
	}
}

func TestConnectTwice(t *testing.T) {
	svc, _ := newTestService(t)
	if err := svc.Connect(context.Background()); !errors.Is(err, ErrAlreadyConnected) {
		t.Errorf("second Connect error = %v, want ErrAlreadyConnected", err)
	}
}

func TestOperationsBeforeConnect(t *testing.T) {
	svc, err := NewService(WithStore(memory.New()))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	ib := svc.Inbox("box")
	if _, err := ib.Send(context.Background(), SendRequest{Payload: map[string]any{}}); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Send before connect error = %v, want ErrNotConnected", err)
	}
	if _, err := ib.Query(context.Background(), QueryRequest{Tags: [][]byte{[]byte("t")}}); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Query before connect error = %v, want ErrNotConnected", err)
	}
}

func TestOperationsAfterClose(t *testing.T) {
	st := memory.New()
	svc, err := NewService(WithStore(st))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if err := svc.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := svc.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if svc.IsConnected() {
		t.Error("IsConnected() = true after Close")
	}

	ib := svc.Inbox("box")
	if _, err := ib.Send(context.Background(), SendRequest{Payload: map[string]any{}}); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Send after close error = %v, want ErrNotConnected", err)
	}
}

func TestInvalidInboxID(t *testing.T) {
	svc, _ := newTestService(t)

	for _, id := range []string{"", "has space", "colon:id", "star*", "slash/x", "tab\tid"} {
		t.Run(id, func(t *testing.T) {
			ib := svc.Inbox(id)
			if _, err := ib.Send(context.Background(), SendRequest{Payload: map[string]any{}}); !errors.Is(err, ErrInvalidInboxID) {
				t.Errorf("Send(%q) error = %v, want ErrInvalidInboxID", id, err)
			}
		})
	}
}

func TestInboxID(t *testing.T) {
	svc, _ := newTestService(t)
	if got := svc.Inbox("box-1").ID(); got != "box-1" {
		t.Errorf("ID() = %q, want box-1", got)
	}
}

func TestSharedInboxResolvesWithoutDirectory(t *testing.T) {
	svc, _ := newTestService(t)

	// The shared inbox is never provisioned; it just exists.
	ib := svc.Inbox(store.SharedInboxID)
	res, err := ib.Send(context.Background(), SendRequest{
		Tags:    [][]byte{[]byte("announce")},
		Payload: map[string]any{"v": 1},
	})
	if err != nil {
		t.Fatalf("send to shared inbox: %v", err)
	}
	if !res.Created {
		t.Error("expected first send to shared inbox to create")
	}

	// Public inbox: anonymous queries are allowed.
	page, err := ib.Query(context.Background(), QueryRequest{Tags: [][]byte{[]byte("announce")}})
	if err != nil {
		t.Fatalf("anonymous query on shared inbox: %v", err)
	}
	if len(page.Results) != 1 {
		t.Errorf("got %d results, want 1", len(page.Results))
	}
}

package inbox

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
)

func TestSendIdempotent(t *testing.T) {
	svc, st := newTestService(t)
	seedInbox(t, st, "box", "alice")
	ib := svc.Inbox("box")

	req := SendRequest{
		Tags:     [][]byte{[]byte("orders")},
		Payload:  map[string]any{"order": 42},
		Metadata: []byte("meta"),
	}

	first, err := ib.Send(context.Background(), req)
	if err != nil {
		t.Fatalf("first send: %v", err)
	}
	if !first.Created {
		t.Fatal("first send: Created = false, want true")
	}

	second, err := ib.Send(context.Background(), req)
	if err != nil {
		t.Fatalf("second send: %v", err)
	}
	if second.Created {
		t.Error("second send: Created = true, want false")
	}
	if second.ID != first.ID {
		t.Errorf("second send ID = %q, want %q", second.ID, first.ID)
	}
}

func TestSendDedupIgnoresRequestedID(t *testing.T) {
	svc, st := newTestService(t)
	seedInbox(t, st, "box", "alice")
	ib := svc.Inbox("box")

	req := SendRequest{Payload: map[string]any{"k": "v"}}

	first, err := ib.Send(context.Background(), req)
	if err != nil {
		t.Fatalf("first send: %v", err)
	}

	req.RequestedID = "my-preferred-id"
	second, err := ib.Send(context.Background(), req)
	if err != nil {
		t.Fatalf("second send: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("dedup returned ID %q, want original %q", second.ID, first.ID)
	}
}

func TestSendHashCoversAllParts(t *testing.T) {
	svc, st := newTestService(t)
	seedInbox(t, st, "box", "alice")
	ib := svc.Inbox("box")

	base := SendRequest{
		Tags:     [][]byte{[]byte("a")},
		Payload:  map[string]any{"k": "v"},
		Metadata: []byte("m"),
	}
	if _, err := ib.Send(context.Background(), base); err != nil {
		t.Fatalf("base send: %v", err)
	}

	variants := map[string]SendRequest{
		"different payload":  {Tags: base.Tags, Payload: map[string]any{"k": "w"}, Metadata: base.Metadata},
		"different tags":     {Tags: [][]byte{[]byte("b")}, Payload: base.Payload, Metadata: base.Metadata},
		"different metadata": {Tags: base.Tags, Payload: base.Payload, Metadata: []byte("n")},
		"extra tag":          {Tags: [][]byte{[]byte("a"), []byte("b")}, Payload: base.Payload, Metadata: base.Metadata},
	}
	for name, req := range variants {
		t.Run(name, func(t *testing.T) {
			res, err := ib.Send(context.Background(), req)
			if err != nil {
				t.Fatalf("send: %v", err)
			}
			if !res.Created {
				t.Error("Created = false, want true for distinct content")
			}
		})
	}
}

func TestSendDedupAcrossPayloadTypes(t *testing.T) {
	svc, st := newTestService(t)
	seedInbox(t, st, "box", "alice")
	ib := svc.Inbox("box")

	// Same JSON document, different Go representations.
	first, err := ib.Send(context.Background(), SendRequest{
		Payload: map[string]int{"n": 7},
	})
	if err != nil {
		t.Fatalf("first send: %v", err)
	}
	second, err := ib.Send(context.Background(), SendRequest{
		Payload: map[string]any{"n": float64(7)},
	})
	if err != nil {
		t.Fatalf("second send: %v", err)
	}
	if second.Created {
		t.Error("expected dedup across equivalent payload representations")
	}
	if second.ID != first.ID {
		t.Errorf("ID = %q, want %q", second.ID, first.ID)
	}
}

func TestSendInboxNamespacing(t *testing.T) {
	svc, st := newTestService(t)
	seedInbox(t, st, "box-a", "alice")
	seedInbox(t, st, "box-b", "bob")

	req := SendRequest{Payload: map[string]any{"k": "v"}}
	a, err := svc.Inbox("box-a").Send(context.Background(), req)
	if err != nil {
		t.Fatalf("send a: %v", err)
	}
	b, err := svc.Inbox("box-b").Send(context.Background(), req)
	if err != nil {
		t.Fatalf("send b: %v", err)
	}
	if !a.Created || !b.Created {
		t.Error("identical content in different inboxes must not deduplicate")
	}
}

func TestSendValidation(t *testing.T) {
	svc, st := newTestService(t, WithTagLimits(3, 8), WithMaxMessageSize(64))
	seedInbox(t, st, "box", "alice")
	ib := svc.Inbox("box")

	tests := []struct {
		name string
		req  SendRequest
		want error
	}{
		{
			name: "duplicate tag",
			req: SendRequest{
				Tags:    [][]byte{[]byte("x"), []byte("x")},
				Payload: map[string]any{},
			},
			want: ErrDuplicateTag,
		},
		{
			name: "empty tag",
			req: SendRequest{
				Tags:    [][]byte{{}},
				Payload: map[string]any{},
			},
			want: ErrEmptyTag,
		},
		{
			name: "too many tags",
			req: SendRequest{
				Tags:    [][]byte{[]byte("a"), []byte("b"), []byte("c"), []byte("d")},
				Payload: map[string]any{},
			},
			want: ErrBadInput,
		},
		{
			name: "tag too long",
			req: SendRequest{
				Tags:    [][]byte{bytes.Repeat([]byte("x"), 9)},
				Payload: map[string]any{},
			},
			want: ErrBadInput,
		},
		{
			name: "message too large",
			req: SendRequest{
				Payload: map[string]any{"big": string(bytes.Repeat([]byte("x"), 128))},
			},
			want: ErrMessageTooLarge,
		},
		{
			name: "unserializable payload",
			req: SendRequest{
				Payload: make(chan int),
			},
			want: ErrBadInput,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ib.Send(context.Background(), tt.req); !errors.Is(err, tt.want) {
				t.Errorf("Send error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSendMissingInbox(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Inbox("nope").Send(context.Background(), SendRequest{Payload: map[string]any{}})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Send to missing inbox error = %v, want ErrNotFound", err)
	}
}

func TestSendRequestedIDCollision(t *testing.T) {
	svc, st := newTestService(t)
	seedInbox(t, st, "box", "alice")
	ib := svc.Inbox("box")

	if _, err := ib.Send(context.Background(), SendRequest{
		Payload:     map[string]any{"n": 1},
		RequestedID: "fixed",
	}); err != nil {
		t.Fatalf("first send: %v", err)
	}

	// Same id, different content.
	_, err := ib.Send(context.Background(), SendRequest{
		Payload:     map[string]any{"n": 2},
		RequestedID: "fixed",
	})
	if !errors.Is(err, ErrBadInput) {
		t.Errorf("colliding id error = %v, want ErrBadInput", err)
	}
}

func TestConcurrentIdenticalSends(t *testing.T) {
	svc, st := newTestService(t)
	seedInbox(t, st, "box", "alice")
	ib := svc.Inbox("box")

	const workers = 16
	req := SendRequest{
		Tags:    [][]byte{[]byte("race")},
		Payload: map[string]any{"n": 1},
	}

	var wg sync.WaitGroup
	results := make([]*SendResult, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = ib.Send(context.Background(), req)
		}(i)
	}
	wg.Wait()

	created := 0
	var id string
	for i := 0; i < workers; i++ {
		if errs[i] != nil {
			t.Fatalf("worker %d: %v", i, errs[i])
		}
		if results[i].Created {
			created++
		}
		if id == "" {
			id = results[i].ID
		} else if results[i].ID != id {
			t.Errorf("worker %d got ID %q, want %q", i, results[i].ID, id)
		}
	}
	if created != 1 {
		t.Errorf("created = %d, want exactly 1", created)
	}
}

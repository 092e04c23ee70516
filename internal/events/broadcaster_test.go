package events

import (
	"testing"
	"time"

	"github.com/fruitsalade/docnav/internal/stack"
	"github.com/fruitsalade/docnav/pkg/models"
)

func testStack(t *testing.T) *stack.Stack {
	t.Helper()
	root := models.Root{Authority: "home", RootID: "r", Profile: "personal", Title: "Home", DocumentID: "f0"}
	st, err := stack.New(root,
		models.Document{Authority: "home", DocumentID: "f0", Profile: "personal", MimeType: models.MimeDirectory},
		models.Document{Authority: "home", DocumentID: "f1", Profile: "personal", MimeType: models.MimeDirectory},
	)
	if err != nil {
		t.Fatalf("stack.New: %v", err)
	}
	return st
}

func TestBroadcasterSubscribeUnsubscribe(t *testing.T) {
	b := NewBroadcaster()

	ch1 := b.Subscribe()
	ch2 := b.Subscribe()

	if b.Count() != 2 {
		t.Fatalf("expected 2 subscribers, got %d", b.Count())
	}

	b.Unsubscribe(ch1)
	if b.Count() != 1 {
		t.Fatalf("expected 1 subscriber after unsubscribe, got %d", b.Count())
	}

	b.Unsubscribe(ch2)
	b.Unsubscribe(ch2)
	if b.Count() != 0 {
		t.Fatalf("expected 0 subscribers, got %d", b.Count())
	}
}

func TestBroadcasterPublish(t *testing.T) {
	b := NewBroadcaster()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	sent := b.Publish(Event{Type: EventOpenWindow, Stack: testStack(t)})
	if sent.RequestID == "" {
		t.Error("expected a request id")
	}

	select {
	case received := <-ch:
		if received.Type != EventOpenWindow {
			t.Errorf("expected type %s, got %s", EventOpenWindow, received.Type)
		}
		if received.RequestID != sent.RequestID {
			t.Errorf("request id = %s, want %s", received.RequestID, sent.RequestID)
		}
		if received.Timestamp == 0 {
			t.Error("expected non-zero timestamp")
		}
		if received.Stack.Size() != 2 {
			t.Errorf("stack size = %d, want 2", received.Stack.Size())
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestBroadcasterDropsForSlowConsumer(t *testing.T) {
	b := NewBroadcaster()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	for i := 0; i < 100; i++ {
		b.Publish(Event{Type: EventDirectoryNavigated})
	}
	if len(ch) != cap(ch) {
		t.Errorf("channel holds %d events, want %d", len(ch), cap(ch))
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	e := Event{Type: EventOpenWindow, RequestID: "req-1", Stack: testStack(t), Timestamp: 42}
	data, err := MarshalEvent(e)
	if err != nil {
		t.Fatalf("MarshalEvent: %v", err)
	}
	got, err := UnmarshalEvent(data)
	if err != nil {
		t.Fatalf("UnmarshalEvent: %v", err)
	}
	if !got.Stack.Equal(e.Stack) {
		t.Errorf("stack = %s, want %s", got.Stack, e.Stack)
	}
	if got.RequestID != "req-1" {
		t.Errorf("request id = %s", got.RequestID)
	}
}

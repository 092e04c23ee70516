// Package events carries navigation requests from a browsing session to
// whatever opens new sessions.
package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fruitsalade/docnav/internal/metrics"
	"github.com/fruitsalade/docnav/internal/stack"
)

const (
	// EventOpenWindow asks for Stack to be opened in a new session.
	EventOpenWindow = "open_window"
	// EventDirectoryNavigated reports that a session moved to a new location.
	EventDirectoryNavigated = "directory_navigated"
)

// Event is a navigation request.
type Event struct {
	Type      string       `json:"type"`
	RequestID string       `json:"request_id"`
	Stack     *stack.Stack `json:"stack,omitempty"`
	Timestamp int64        `json:"timestamp"`
}

// Broadcaster fans navigation requests out to subscribers.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[chan Event]struct{}
}

// NewBroadcaster creates a new broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[chan Event]struct{}),
	}
}

// Subscribe adds a new subscriber and returns its event channel.
// The caller must call Unsubscribe when done.
func (b *Broadcaster) Subscribe() chan Event {
	ch := make(chan Event, 64)
	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()
	metrics.SetNavigationSubscribers(int64(b.Count()))
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broadcaster) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	if _, ok := b.subscribers[ch]; ok {
		delete(b.subscribers, ch)
		close(ch)
	}
	b.mu.Unlock()
	metrics.SetNavigationSubscribers(int64(b.Count()))
}

// Publish sends an event to all subscribers and returns it with its
// request id and timestamp filled in. Non-blocking: drops events for slow
// consumers.
func (b *Broadcaster) Publish(event Event) Event {
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().Unix()
	}
	if event.RequestID == "" {
		event.RequestID = uuid.NewString()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			// Drop event for slow consumer
		}
	}
	metrics.RecordNavigationEvent(event.Type)
	return event
}

// Count returns the current number of subscribers.
func (b *Broadcaster) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// MarshalEvent serializes an event to JSON.
func MarshalEvent(e Event) ([]byte, error) {
	return json.Marshal(e)
}

// UnmarshalEvent decodes an event, re-validating the stack it carries.
func UnmarshalEvent(data []byte) (Event, error) {
	var e Event
	err := json.Unmarshal(data, &e)
	return e, err
}

// Package broadcast fans scoring events out to live subscribers.
package broadcast

import (
	"log/slog"
	"sync"
)

// TopicAll receives every published event.
const TopicAll = "all"

// subscriberBuffer is the per-subscriber queue depth before events are dropped.
const subscriberBuffer = 64

// Event is one message for subscribers.
type Event struct {
	Type string // "analysis_result", "stats"
	Data []byte // JSON payload
}

// Hub is a fan-out hub keyed by topic. Publishing never blocks: a subscriber
// whose queue is full misses the event.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan Event]struct{}
	logger      *slog.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		subscribers: make(map[string]map[chan Event]struct{}),
		logger:      logger,
	}
}

// Subscribe registers a subscriber for topic. The returned cancel function
// must be called when the subscriber goes away; it closes the channel.
func (h *Hub) Subscribe(topic string) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)
	h.mu.Lock()
	if h.subscribers[topic] == nil {
		h.subscribers[topic] = make(map[chan Event]struct{})
	}
	h.subscribers[topic][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subscribers[topic], ch)
			if len(h.subscribers[topic]) == 0 {
				delete(h.subscribers, topic)
			}
			close(ch)
		})
	}
	return ch, cancel
}

// Publish sends event to the subscribers of topic and of TopicAll.
func (h *Hub) Publish(topic string, event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	h.send(topic, event)
	if topic != TopicAll {
		h.send(TopicAll, event)
	}
}

// send must be called with mu held.
func (h *Hub) send(topic string, event Event) {
	for ch := range h.subscribers[topic] {
		select {
		case ch <- event:
		default:
			h.logger.Warn("broadcast: dropped event for slow subscriber", "topic", topic, "type", event.Type)
		}
	}
}

// SubscriberCount returns the number of subscribers of topic.
func (h *Hub) SubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[topic])
}

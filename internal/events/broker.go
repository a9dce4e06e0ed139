// Path: internal/events/broker.go
package events

import "sync"

// SummaryTopic returns the topic that an agent publishes its cycle
// summaries on.
func SummaryTopic(agent string) string {
	return "cycle." + agent
}

// Event is one message passed through the broker.
type Event struct {
	Topic string
	Data  any
}

// Broker is a simple in-memory pub/sub system used to fan cycle summaries
// out to operator-facing subscribers. Publishing never blocks: a slow
// subscriber loses events rather than stalling an agent.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[string][]chan Event
}

// NewBroker creates a new event broker.
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[string][]chan Event),
	}
}

// Subscribe creates a new subscription to a topic.
// It returns a read-only channel where events for that topic will be sent.
func (b *Broker) Subscribe(topic string) <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, 4) // Buffered channel to prevent blocking publishers
	b.subscribers[topic] = append(b.subscribers[topic], ch)
	return ch
}

// Publish sends an event to all subscribers of a topic.
func (b *Broker) Publish(topic string, data any) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	event := Event{Topic: topic, Data: data}
	for _, ch := range b.subscribers[topic] {
		// Non-blocking send
		select {
		case ch <- event:
		default:
			// Subscriber is not ready, drop the event to avoid blocking.
		}
	}
}

package events

import (
	"sync"
	"time"

	"github.com/cuemby/catena/pkg/metrics"
	"github.com/google/uuid"
)

// EventType represents the type of event
type EventType string

const (
	EventCloudCreated      EventType = "cloud.created"
	EventChainCreated      EventType = "chain.created"
	EventChainDeleted      EventType = "chain.deleted"
	EventNodeCreated       EventType = "node.created"
	EventNodeDeleted       EventType = "node.deleted"
	EventOperationFailed   EventType = "operation.failed"
	EventInstancesOrphaned EventType = "instances.orphaned"
)

// Event describes a committed change to the fleet
type Event struct {
	ID        string            `json:"id"`
	Type      EventType         `json:"type"`
	Timestamp time.Time         `json:"timestamp"`
	Message   string            `json:"message,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// New creates an event with a fresh id
func New(t EventType, message string, metadata map[string]string) *Event {
	return &Event{
		ID:       uuid.NewString(),
		Type:     t,
		Message:  message,
		Metadata: metadata,
	}
}

// Publisher accepts events for delivery
type Publisher interface {
	Publish(event *Event)
}

// Subscriber is a channel that receives events
type Subscriber chan *Event

type eventFilter map[EventType]bool

func (f eventFilter) match(t EventType) bool {
	return len(f) == 0 || f[t]
}

// Broker fans events out to in-process subscribers
type Broker struct {
	subscribers map[Subscriber]eventFilter
	mu          sync.RWMutex
	eventCh     chan *Event
	stopCh      chan struct{}
	stopOnce    sync.Once
}

// NewBroker creates a new event broker
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[Subscriber]eventFilter),
		eventCh:     make(chan *Event, 100),
		stopCh:      make(chan struct{}),
	}
}

// Start begins the broker's event distribution loop
func (b *Broker) Start() {
	go b.run()
}

// Stop stops the broker
func (b *Broker) Stop() {
	b.stopOnce.Do(func() { close(b.stopCh) })
}

// Subscribe returns a channel receiving events of the given types, or of
// every type when none is given
func (b *Broker) Subscribe(eventTypes ...EventType) Subscriber {
	filter := make(eventFilter, len(eventTypes))
	for _, t := range eventTypes {
		filter[t] = true
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	sub := make(Subscriber, 50)
	b.subscribers[sub] = filter
	return sub
}

// Unsubscribe removes a subscription
func (b *Broker) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subscribers[sub]; ok {
		delete(b.subscribers, sub)
		close(sub)
	}
}

// Publish queues an event for all subscribers. It drops the event once the
// broker is stopped.
func (b *Broker) Publish(event *Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	select {
	case b.eventCh <- event:
	case <-b.stopCh:
	}
}

func (b *Broker) run() {
	for {
		select {
		case event := <-b.eventCh:
			b.broadcast(event)
		case <-b.stopCh:
			return
		}
	}
}

func (b *Broker) broadcast(event *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub, filter := range b.subscribers {
		if !filter.match(event.Type) {
			continue
		}
		select {
		case sub <- event:
		default:
			metrics.EventsDroppedTotal.WithLabelValues(string(event.Type)).Inc()
		}
	}
}

// SubscriberCount returns the number of active subscribers
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Discard is a Publisher that drops every event
var Discard Publisher = discard{}

type discard struct{}

func (discard) Publish(*Event) {}

// Package events fans out light controller events to local subscribers
// (web socket clients, the MQTT bridge, the journal).
package events

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Event types
const (
	StackSignal     = "stack_signal"
	DispatchOutcome = "dispatch_outcome"
	LightState      = "light_state"
)

// Event is one published occurrence.
type Event struct {
	Type string    `json:"type"`
	Time time.Time `json:"time"`
	Data any       `json:"data"`
}

// Handler receives events. It runs on the publishing goroutine.
type Handler func(Event)

type subscription struct {
	id      uint64
	topic   string // empty for wildcard
	handler Handler
}

// Bus is a synchronous publish/subscribe hub.
type Bus struct {
	mu     sync.RWMutex
	subs   map[uint64]subscription
	nextID uint64
	now    func() time.Time
	logger *slog.Logger
}

// NewBus creates an empty bus.
func NewBus(logger *slog.Logger) *Bus {
	return &Bus{
		subs:   make(map[uint64]subscription),
		now:    time.Now,
		logger: logger.With("component", "events"),
	}
}

// Subscribe registers h for events of the given type and returns a cancel func.
func (b *Bus) Subscribe(eventType string, h Handler) func() {
	return b.add(eventType, h)
}

// SubscribeAll registers h for every event type.
func (b *Bus) SubscribeAll(h Handler) func() {
	return b.add("", h)
}

func (b *Bus) add(topic string, h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.subs[id] = subscription{id: id, topic: topic, handler: h}
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs, id)
	}
}

// Publish stamps and delivers an event to matching handlers in subscription
// order. A panicking handler is logged and skipped.
func (b *Bus) Publish(eventType string, data any) {
	ev := Event{Type: eventType, Time: b.now(), Data: data}

	b.mu.RLock()
	matched := make([]subscription, 0, len(b.subs))
	for _, s := range b.subs {
		if s.topic == "" || s.topic == eventType {
			matched = append(matched, s)
		}
	}
	b.mu.RUnlock()
	sort.Slice(matched, func(i, j int) bool { return matched[i].id < matched[j].id })

	for _, s := range matched {
		b.deliver(s, ev)
	}
}

func (b *Bus) deliver(s subscription, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panic", "type", ev.Type, "panic", r)
		}
	}()
	s.handler(ev)
}

package events

import (
	"sync"

	"github.com/crystal-mush/arxscript/pkg/gamedb"
)

// Subscriber receives events from the bus.
type Subscriber interface {
	Receive(ev Event)
	Closed() bool
}

// Bus is a per-entity pub/sub event bus with support for global subscribers.
// The script runtime emits structured events; each subscriber (metrics,
// journal, debug websocket) encodes them as it needs.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[gamedb.Ref][]Subscriber
	global      []Subscriber
}

// NewBus creates a new event bus.
func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[gamedb.Ref][]Subscriber),
	}
}

// Subscribe registers a subscriber for a specific entity's events.
func (b *Bus) Subscribe(entity gamedb.Ref, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[entity] = append(b.subscribers[entity], sub)
}

// Unsubscribe removes a subscriber for a specific entity.
func (b *Bus) Unsubscribe(entity gamedb.Ref, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subscribers[entity]
	for i, s := range subs {
		if s == sub {
			b.subscribers[entity] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(b.subscribers[entity]) == 0 {
		delete(b.subscribers, entity)
	}
}

// SubscribeGlobal registers a subscriber that receives all events.
func (b *Bus) SubscribeGlobal(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.global = append(b.global, sub)
}

// UnsubscribeGlobal removes a global subscriber.
func (b *Bus) UnsubscribeGlobal(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.global {
		if s == sub {
			b.global = append(b.global[:i:i], b.global[i+1:]...)
			return
		}
	}
}

// Emit sends an event to the subscribers of ev.Entity and all global subscribers.
func (b *Bus) Emit(ev Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	subs := b.subscribers[ev.Entity]
	globals := b.global
	b.mu.RUnlock()

	for _, s := range subs {
		if !s.Closed() {
			s.Receive(ev)
		}
	}
	for _, s := range globals {
		if !s.Closed() {
			s.Receive(ev)
		}
	}
}

// EntitySubscribers returns the number of subscribers for an entity.
func (b *Bus) EntitySubscribers(entity gamedb.Ref) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[entity])
}

// Cleanup removes closed subscribers from all lists.
func (b *Bus) Cleanup() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for entity, subs := range b.subscribers {
		var active []Subscriber
		for _, s := range subs {
			if !s.Closed() {
				active = append(active, s)
			}
		}
		if len(active) == 0 {
			delete(b.subscribers, entity)
		} else {
			b.subscribers[entity] = active
		}
	}

	var activeGlobal []Subscriber
	for _, s := range b.global {
		if !s.Closed() {
			activeGlobal = append(activeGlobal, s)
		}
	}
	b.global = activeGlobal
}

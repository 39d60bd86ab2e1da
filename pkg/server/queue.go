package server

import (
	"log"
	"sync"

	"github.com/crystal-mush/arxscript/pkg/gamedb"
)

// QueueEntry is a script event raised by the host outside a script pass:
// deaths, revivals, path results, spell ends and console requests.
type QueueEntry struct {
	Target gamedb.Ref // Entity receiving the event
	Sender gamedb.Ref // Entity raising it (Nothing = the engine)
	Event  string
	Params string
	DueAt  int64 // Game clock in milliseconds (0 = immediate)
}

// EventQueue holds events waiting to be delivered on the tick goroutine.
type EventQueue struct {
	mu        sync.Mutex
	immediate []*QueueEntry // Deliver on the next tick
	waitQueue []*QueueEntry // Sorted by DueAt
	maxPerEnt int           // Max queued events per target
}

// NewEventQueue creates an event queue. limit caps the entries per target
// entity; 0 means no cap.
func NewEventQueue(limit int) *EventQueue {
	return &EventQueue{maxPerEnt: limit}
}

func (q *EventQueue) countFor(ref gamedb.Ref) int {
	n := 0
	for _, e := range q.immediate {
		if e.Target == ref {
			n++
		}
	}
	for _, e := range q.waitQueue {
		if e.Target == ref {
			n++
		}
	}
	return n
}

// Add queues an event for the next tick. It returns false when the target
// already has too many events queued.
func (q *EventQueue) Add(entry *QueueEntry) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.maxPerEnt > 0 && q.countFor(entry.Target) >= q.maxPerEnt {
		log.Printf("QUEUE: dropping %s for #%d, per-entity limit (%d) reached", entry.Event, entry.Target, q.maxPerEnt)
		return false
	}
	q.immediate = append(q.immediate, entry)
	return true
}

// AddWait queues an event for delivery once the game clock reaches DueAt.
func (q *EventQueue) AddWait(entry *QueueEntry) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.maxPerEnt > 0 && q.countFor(entry.Target) >= q.maxPerEnt {
		log.Printf("QUEUE: dropping %s for #%d, per-entity limit (%d) reached", entry.Event, entry.Target, q.maxPerEnt)
		return false
	}
	// Entries with the same due time keep their insertion order.
	i := len(q.waitQueue)
	for i > 0 && q.waitQueue[i-1].DueAt > entry.DueAt {
		i--
	}
	q.waitQueue = append(q.waitQueue, nil)
	copy(q.waitQueue[i+1:], q.waitQueue[i:])
	q.waitQueue[i] = entry
	return true
}

// PromoteReady moves waiting entries due at or before now to the immediate
// queue. Returns the number of entries promoted.
func (q *EventQueue) PromoteReady(now int64) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	cutoff := 0
	for i, e := range q.waitQueue {
		if e.DueAt > now {
			break
		}
		cutoff = i + 1
	}
	if cutoff > 0 {
		q.immediate = append(q.immediate, q.waitQueue[:cutoff]...)
		q.waitQueue = q.waitQueue[cutoff:]
	}
	return cutoff
}

// PopImmediate returns and removes the next immediate entry, or nil.
func (q *EventQueue) PopImmediate() *QueueEntry {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.immediate) == 0 {
		return nil
	}
	entry := q.immediate[0]
	q.immediate = q.immediate[1:]
	return entry
}

// HaltEntity removes every queued event targeting ref.
func (q *EventQueue) HaltEntity(ref gamedb.Ref) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	removed := 0
	filter := func(entries []*QueueEntry) []*QueueEntry {
		var result []*QueueEntry
		for _, e := range entries {
			if e.Target == ref {
				removed++
			} else {
				result = append(result, e)
			}
		}
		return result
	}
	q.immediate = filter(q.immediate)
	q.waitQueue = filter(q.waitQueue)
	return removed
}

// HaltAll empties both queues.
func (q *EventQueue) HaltAll() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	removed := len(q.immediate) + len(q.waitQueue)
	q.immediate = nil
	q.waitQueue = nil
	return removed
}

// Stats returns queue size info.
func (q *EventQueue) Stats() (immediate, waiting int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.immediate), len(q.waitQueue)
}

// Peek returns up to n entries, immediate first, without removing them.
func (q *EventQueue) Peek(n int) []QueueEntry {
	q.mu.Lock()
	defer q.mu.Unlock()
	var result []QueueEntry
	for _, list := range [][]*QueueEntry{q.immediate, q.waitQueue} {
		for _, e := range list {
			if len(result) >= n {
				return result
			}
			result = append(result, *e)
		}
	}
	return result
}

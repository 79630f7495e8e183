package service

import (
	"log/slog"
	"sync"
	"time"
)

// StatusEvent is one observed status transition of a process.
type StatusEvent struct {
	ProcessID string    `json:"process_id"`
	Status    string    `json:"status"`
	ErrorKind string    `json:"error_kind,omitempty"`
	At        time.Time `json:"at"`
}

const subscriberBuffer = 8

// StatusNotifier fans out status transitions to subscribers keyed by
// process id. Delivery is best-effort and at-most-once per transition:
// a subscriber whose buffer is full misses the event and is expected to
// re-read current state. Publish never blocks the caller.
type StatusNotifier struct {
	mu     sync.RWMutex
	subs   map[string]map[uint64]chan StatusEvent
	nextID uint64
}

func NewStatusNotifier() *StatusNotifier {
	return &StatusNotifier{
		subs: make(map[string]map[uint64]chan StatusEvent),
	}
}

// Subscribe registers an observer for one process. The returned cancel
// function must be called when the observer goes away; it closes the
// channel.
func (n *StatusNotifier) Subscribe(processID string) (<-chan StatusEvent, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.nextID++
	id := n.nextID
	ch := make(chan StatusEvent, subscriberBuffer)

	if n.subs[processID] == nil {
		n.subs[processID] = make(map[uint64]chan StatusEvent)
	}
	n.subs[processID][id] = ch

	cancel := func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		if subs, ok := n.subs[processID]; ok {
			if c, ok := subs[id]; ok {
				delete(subs, id)
				close(c)
			}
			if len(subs) == 0 {
				delete(n.subs, processID)
			}
		}
	}
	return ch, cancel
}

// Publish delivers an event to all subscribers of its process. Slow
// subscribers are skipped rather than blocking the transition path.
func (n *StatusNotifier) Publish(ev StatusEvent) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	n.mu.RLock()
	defer n.mu.RUnlock()

	for _, ch := range n.subs[ev.ProcessID] {
		select {
		case ch <- ev:
		default:
			slog.Debug("dropping status event for slow subscriber",
				"process_id", ev.ProcessID,
				"status", ev.Status,
			)
		}
	}
}

// SubscriberCount returns the number of active subscribers for a process.
func (n *StatusNotifier) SubscriberCount(processID string) int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.subs[processID])
}

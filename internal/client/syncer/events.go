package syncer

import (
	"time"

	"github.com/dmitrijs2005/callshield/internal/domain"
)

// EventKind identifies a coordinator lifecycle notification.
type EventKind int

const (
	SyncStart EventKind = iota + 1
	SyncComplete
	SyncError
	OnlineStatusChanged
	EventQueued
)

func (k EventKind) String() string {
	switch k {
	case SyncStart:
		return "sync_start"
	case SyncComplete:
		return "sync_complete"
	case SyncError:
		return "sync_error"
	case OnlineStatusChanged:
		return "online_status_changed"
	case EventQueued:
		return "event_queued"
	default:
		return "unknown"
	}
}

// Event is delivered to listeners. Only the fields relevant to Kind are set.
type Event struct {
	Kind    EventKind
	Time    time.Time
	Pending int
	Synced  int
	Dropped int
	Online  bool
	Err     error
	Item    *domain.SyncQueueItem
}

// Listener receives coordinator events. Listeners run synchronously on the
// goroutine that produced the event and must not block.
type Listener func(Event)

// ListenerID is returned by AddListener and used to unregister.
type ListenerID uint64

// AddListener registers fn for kind.
func (c *Coordinator) AddListener(kind EventKind, fn Listener) ListenerID {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextListener++
	id := c.nextListener
	if c.listeners[kind] == nil {
		c.listeners[kind] = make(map[ListenerID]Listener)
	}
	c.listeners[kind][id] = fn
	return id
}

// RemoveListener unregisters a listener. It reports whether id was known.
func (c *Coordinator) RemoveListener(id ListenerID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, set := range c.listeners {
		if _, ok := set[id]; ok {
			delete(set, id)
			return true
		}
	}
	return false
}

func (c *Coordinator) emit(ev Event) {
	ev.Time = c.now()

	c.mu.Lock()
	fns := make([]Listener, 0, len(c.listeners[ev.Kind]))
	for _, fn := range c.listeners[ev.Kind] {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		c.safeCall(fn, ev)
	}
}

func (c *Coordinator) safeCall(fn Listener, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error(c.ctx(), "sync listener panicked", "event", ev.Kind.String(), "panic", r)
		}
	}()
	fn(ev)
}

package acquire

import (
	"sync"

	"github.com/google/uuid"

	"github.jpl.nasa.gov/bdube/goixon/ixon"
)

// Subscription is a single-slot mailbox for frames.  If a new frame
// arrives before the previous one is read, the old frame is dropped;
// a slow reader always sees the newest frame, never a backlog.
type Subscription struct {
	// ID identifies the subscription to the hub
	ID uuid.UUID

	mu     sync.Mutex
	cond   *sync.Cond
	frame  *ixon.Frame
	drops  uint64
	closed bool
}

// Next blocks until a frame is published or the subscription is closed.
// It returns nil after close.  Next must be called from a single
// goroutine; frames must not be modified after receipt.
func (s *Subscription) Next() *ixon.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.frame == nil && !s.closed {
		s.cond.Wait()
	}
	if s.closed {
		return nil
	}
	fr := s.frame
	s.frame = nil
	return fr
}

// Drops returns how many frames were overwritten before being read
func (s *Subscription) Drops() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drops
}

func (s *Subscription) deposit(fr *ixon.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if s.frame != nil {
		s.drops++
	}
	s.frame = fr
	s.cond.Signal()
}

func (s *Subscription) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.cond.Signal()
}

// Hub fans frames out to any number of subscribers.  Publication never
// blocks and never queues; each subscriber holds at most the latest
// frame.  The hub also retains the last published frame for consumers
// that want a point read instead of a feed.
type Hub struct {
	mu     sync.Mutex
	subs   map[uuid.UUID]*Subscription
	latest *ixon.Frame
}

// NewHub returns an empty hub
func NewHub() *Hub {
	return &Hub{subs: make(map[uuid.UUID]*Subscription)}
}

// Subscribe registers a new mailbox with the hub
func (h *Hub) Subscribe() *Subscription {
	s := &Subscription{ID: uuid.New()}
	s.cond = sync.NewCond(&s.mu)
	h.mu.Lock()
	h.subs[s.ID] = s
	h.mu.Unlock()
	return s
}

// Unsubscribe removes the mailbox and wakes its reader, whose Next will
// return nil.  Unknown IDs are ignored.
func (h *Hub) Unsubscribe(id uuid.UUID) {
	h.mu.Lock()
	s, ok := h.subs[id]
	if ok {
		delete(h.subs, id)
	}
	h.mu.Unlock()
	if ok {
		s.close()
	}
}

// Publish delivers fr to every subscriber.  The frame must not be
// modified afterward.
func (h *Hub) Publish(fr *ixon.Frame) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.latest = fr
	for _, s := range h.subs {
		s.deposit(fr)
	}
}

// Latest returns the most recently published frame, or nil if nothing
// has been published yet.
func (h *Hub) Latest() *ixon.Frame {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.latest
}

// Package session holds the identity cached for one client and pushes changes
// to subscribers.
//
// A Store starts unresolved (Loading reports true). The first Publish
// resolves it. From then on a new subscriber receives the current identity
// inside Subscribe, and every subscriber receives each later Publish.
//
// Broadcasts are drained in publish order by one goroutine at a time. A
// Publish issued while a listener runs is queued until that delivery
// finishes. Each subscription has a mailbox: a listener never runs
// concurrently with itself, and never receives an identity older than one
// it has already seen.
package session

import (
	"slices"
	"sync"

	"github.com/markit/attendance/internal/entities"
)

// Listener receives the current identity; nil means signed out.
type Listener func(*entities.Identity)

type broadcast struct {
	identity *entities.Identity
	seq      uint64
}

// subscription fields other than id and listener are guarded by Store.mu.
type subscription struct {
	id       uint64
	listener Listener
	running  bool
	seen     uint64
	pending  []broadcast
}

// Store is the client-side session cache.
type Store struct {
	mu       sync.Mutex
	current  *entities.Identity
	seq      uint64
	closed   bool
	nextID   uint64
	subs     map[uint64]*subscription
	queue    []broadcast
	draining bool
}

// NewStore creates an unresolved store.
func NewStore() *Store {
	return &Store{subs: make(map[uint64]*subscription)}
}

// Subscribe registers l and returns a func that removes it. If the store has
// already resolved, l is called with the current identity before Subscribe
// returns.
func (s *Store) Subscribe(l Listener) (unsubscribe func()) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return func() {}
	}
	s.nextID++
	sub := &subscription{id: s.nextID, listener: l}
	s.subs[sub.id] = sub
	initial := broadcast{identity: s.current, seq: s.seq}
	owner := !s.draining && initial.seq > 0
	if owner {
		s.draining = true
	}
	s.mu.Unlock()

	if initial.seq > 0 {
		s.deliver(sub, initial)
	}
	if owner {
		s.mu.Lock()
		s.drainLocked()
		s.mu.Unlock()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, sub.id)
			s.mu.Unlock()
		})
	}
}

// Publish replaces the current identity and notifies every subscriber.
func (s *Store) Publish(identity *entities.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.seq++
	s.current = identity
	s.queue = append(s.queue, broadcast{identity: identity, seq: s.seq})
	if s.draining {
		return
	}
	s.draining = true
	s.drainLocked()
}

// Current returns the last published identity. It is nil while loading.
func (s *Store) Current() *entities.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Loading reports whether no identity has been published yet.
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq == 0
}

// Close drops all subscribers and pending broadcasts. Later calls to Publish
// and Subscribe are no-ops.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.subs = make(map[uint64]*subscription)
	s.queue = nil
}

// drainLocked delivers queued broadcasts and releases drain ownership.
// Caller holds mu and owns the drain.
func (s *Store) drainLocked() {
	for len(s.queue) > 0 {
		b := s.queue[0]
		s.queue = s.queue[1:]
		subs := s.ordered()

		s.mu.Unlock()
		for _, sub := range subs {
			s.deliver(sub, b)
		}
		s.mu.Lock()
	}
	s.draining = false
}

// deliver hands b to sub. If sub's listener is already running, b waits in
// the mailbox and is delivered by that run once the listener returns.
func (s *Store) deliver(sub *subscription, b broadcast) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sub.running {
		sub.pending = append(sub.pending, b)
		return
	}

	sub.running = true
	for {
		if s.subs[sub.id] == sub && b.seq > sub.seen {
			sub.seen = b.seq
			s.mu.Unlock()
			sub.listener(b.identity)
			s.mu.Lock()
		}
		if len(sub.pending) == 0 {
			break
		}
		b = sub.pending[0]
		sub.pending = sub.pending[1:]
	}
	sub.running = false
}

// ordered returns the subscriptions in subscription order. Caller holds mu.
func (s *Store) ordered() []*subscription {
	ids := make([]uint64, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	subs := make([]*subscription, len(ids))
	for i, id := range ids {
		subs[i] = s.subs[id]
	}
	return subs
}

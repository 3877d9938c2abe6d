package agent

import (
	"container/list"
	"sort"
	"sync"
	"time"
)

// DefaultMaxSessions bounds the session table when no limit is configured.
const DefaultMaxSessions = 1000

// Sessions holds one Agent per client session key. Agents share the tool
// registry and planner but each has its own conversation and lock.
// The table is bounded: the least recently used key is evicted once
// maxSessions is exceeded, and keys idle for longer than idleTTL expire.
type Sessions struct {
	mu       sync.Mutex
	entries  map[string]*list.Element
	order    *list.List // front is most recently used
	newAgent func() *Agent

	maxSessions int
	idleTTL     time.Duration // zero disables expiry
	now         func() time.Time
}

type sessionEntry struct {
	key      string
	agent    *Agent
	lastUsed time.Time
}

// SessionsOption configures a Sessions table.
type SessionsOption func(*Sessions)

// WithMaxSessions caps the number of live sessions. Values below 1 keep
// DefaultMaxSessions.
func WithMaxSessions(n int) SessionsOption {
	return func(s *Sessions) {
		if n > 0 {
			s.maxSessions = n
		}
	}
}

// WithIdleTTL expires sessions not used for d.
func WithIdleTTL(d time.Duration) SessionsOption {
	return func(s *Sessions) {
		if d > 0 {
			s.idleTTL = d
		}
	}
}

// NewSessions creates an empty session table. newAgent builds the Agent for
// a key seen for the first time.
func NewSessions(newAgent func() *Agent, opts ...SessionsOption) *Sessions {
	s := &Sessions{
		entries:     make(map[string]*list.Element),
		order:       list.New(),
		newAgent:    newAgent,
		maxSessions: DefaultMaxSessions,
		now:         time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Get returns the Agent for key, creating it when needed.
func (s *Sessions) Get(key string) *Agent {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.expire(now)
	if a, ok := s.touch(key, now); ok {
		return a
	}

	a := s.newAgent()
	s.entries[key] = s.order.PushFront(&sessionEntry{key: key, agent: a, lastUsed: now})
	for s.order.Len() > s.maxSessions {
		s.remove(s.order.Back())
	}
	return a
}

// Lookup returns the Agent for key without creating one.
func (s *Sessions) Lookup(key string) (*Agent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.expire(now)
	return s.touch(key, now)
}

// Delete forgets key.
func (s *Sessions) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if el, ok := s.entries[key]; ok {
		s.remove(el)
	}
}

// Len reports the number of live sessions.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expire(s.now())
	return s.order.Len()
}

// Keys returns the live session keys, sorted.
func (s *Sessions) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expire(s.now())

	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s *Sessions) touch(key string, now time.Time) (*Agent, bool) {
	el, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	entry := el.Value.(*sessionEntry)
	entry.lastUsed = now
	s.order.MoveToFront(el)
	return entry.agent, true
}

// expire drops idle entries from the back of the list.
func (s *Sessions) expire(now time.Time) {
	if s.idleTTL <= 0 {
		return
	}
	for el := s.order.Back(); el != nil; el = s.order.Back() {
		if now.Sub(el.Value.(*sessionEntry).lastUsed) <= s.idleTTL {
			return
		}
		s.remove(el)
	}
}

func (s *Sessions) remove(el *list.Element) {
	s.order.Remove(el)
	delete(s.entries, el.Value.(*sessionEntry).key)
}

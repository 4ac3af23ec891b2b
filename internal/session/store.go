package session

import (
	"container/list"
	"sync"

	"github.com/hcplus/scheduling-agent/pkg/logging"
)

const defaultCapacity = 1000

// Message is one turn of conversation history.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Session holds the per-conversation state that must survive across turns:
// the message history and the last known booking facts.
type Session struct {
	id string

	// turnMu serializes whole turns for this session. Distinct sessions
	// proceed in parallel.
	turnMu sync.Mutex

	mu          sync.Mutex
	history     []Message
	bookingData map[string]any
}

// ID returns the externally supplied session identifier.
func (s *Session) ID() string {
	return s.id
}

// Lock acquires the per-session turn lock.
func (s *Session) Lock() {
	s.turnMu.Lock()
}

// Unlock releases the per-session turn lock.
func (s *Session) Unlock() {
	s.turnMu.Unlock()
}

// History returns a copy of the session's message history in original order.
func (s *Session) History() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.history))
	copy(out, s.history)
	return out
}

// Append adds one message to the history.
func (s *Session) Append(role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, Message{Role: role, Content: content})
}

// BookingData returns a copy of the stored booking facts.
func (s *Session) BookingData() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]any, len(s.bookingData))
	for k, v := range s.bookingData {
		out[k] = v
	}
	return out
}

// MergeBookingData merges new facts into the stored booking data. Existing
// keys are overwritten, other keys are preserved.
func (s *Session) MergeBookingData(data map[string]any) {
	if len(data) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bookingData == nil {
		s.bookingData = make(map[string]any, len(data))
	}
	for k, v := range data {
		s.bookingData[k] = v
	}
}

// ClearBookingData drops the stored booking facts but keeps the session.
func (s *Session) ClearBookingData() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bookingData = make(map[string]any)
}

// Store is an LRU-bounded collection of sessions keyed by session id.
// Sessions are created lazily on first reference and evicted only when the
// capacity ceiling is reached, least recently used first.
type Store struct {
	mu       sync.Mutex
	capacity int
	sessions map[string]*list.Element
	order    *list.List // front = most recently used
	logger   *logging.Logger
}

type storeEntry struct {
	id   string
	sess *Session
}

// NewStore creates a session store with the given capacity ceiling.
func NewStore(capacity int, logger *logging.Logger) *Store {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{
		capacity: capacity,
		sessions: make(map[string]*list.Element),
		order:    list.New(),
		logger:   logger,
	}
}

// Get returns the session for id, creating it if unseen. The returned session
// is promoted to most recently used; the least recently used session is
// evicted when the store is over capacity.
func (s *Store) Get(id string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if elem, ok := s.sessions[id]; ok {
		s.order.MoveToFront(elem)
		return elem.Value.(*storeEntry).sess
	}

	sess := &Session{
		id:          id,
		bookingData: make(map[string]any),
	}
	elem := s.order.PushFront(&storeEntry{id: id, sess: sess})
	s.sessions[id] = elem

	for len(s.sessions) > s.capacity {
		oldest := s.order.Back()
		if oldest == nil {
			break
		}
		entry := oldest.Value.(*storeEntry)
		s.order.Remove(oldest)
		delete(s.sessions, entry.id)
		s.logger.Info("evicted least recently used session", "session_id", entry.id)
	}

	return sess
}

// Peek returns the session for id without creating or promoting it.
func (s *Store) Peek(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	elem, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	return elem.Value.(*storeEntry).sess, true
}

// Clear removes a session entirely.
func (s *Store) Clear(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if elem, ok := s.sessions[id]; ok {
		s.order.Remove(elem)
		delete(s.sessions, id)
	}
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

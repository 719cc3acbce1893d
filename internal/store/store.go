package store

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"yuzu/souschef/internal/types"
)

var ErrSessionExists = errors.New("session already exists")

const maxEvents = 200

// Store is the in-memory registry of sessions and their bounded event logs.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*types.Session
	events   map[string][]types.Event
}

func New() *Store {
	return &Store{
		sessions: make(map[string]*types.Session),
		events:   make(map[string][]types.Event),
	}
}

func (s *Store) CreateSession(sess *types.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sess.ID]; ok {
		return ErrSessionExists
	}
	s.sessions[sess.ID] = sess
	s.events[sess.ID] = []types.Event{}
	return nil
}

// EnsureSession returns the session, creating it when absent.
func (s *Store) EnsureSession(id string) *types.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		return sess
	}
	sess := &types.Session{ID: id, CreatedAt: time.Now().UTC(), Status: types.StatusCreated}
	s.sessions[id] = sess
	s.events[id] = []types.Event{}
	return sess
}

// GetSession returns a copy of the session, or nil.
func (s *Store) GetSession(id string) *types.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil
	}
	cp := *sess
	return &cp
}

func (s *Store) SetDish(id, dish string) {
	s.mu.Lock()
	if sess, ok := s.sessions[id]; ok {
		sess.Dish = dish
		sess.Status = types.StatusCooking
	}
	s.mu.Unlock()
}

func (s *Store) SetStatus(id, status string) {
	s.mu.Lock()
	if sess, ok := s.sessions[id]; ok {
		sess.Status = status
	}
	s.mu.Unlock()
}

func (s *Store) SetLiveConnected(id string, connected bool) {
	s.mu.Lock()
	if sess, ok := s.sessions[id]; ok {
		sess.LiveConnected = connected
	}
	s.mu.Unlock()
}

// AppendEvent records an event. The log keeps the latest maxEvents entries,
// the last of which is an events_truncated marker once anything was dropped.
func (s *Store) AppendEvent(sessionID, typ string, payload map[string]any) types.Event {
	now := time.Now().UTC()
	evt := types.Event{ID: uuid.NewString(), Type: typ, Ts: now, Payload: payload}
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[sessionID]; ok {
		sess.LastEventAt = &now
	}
	log := append(s.events[sessionID], evt)
	if l := len(log); l > maxEvents {
		keep := maxEvents - 1
		dropped := l - keep
		log = append([]types.Event(nil), log[l-keep:]...)
		log = append(log, types.Event{
			ID:      uuid.NewString(),
			Type:    "events_truncated",
			Ts:      now,
			Payload: map[string]any{"session_id": sessionID, "dropped": dropped, "kept": keep},
		})
	}
	s.events[sessionID] = log
	return evt
}

func (s *Store) ListEvents(sessionID string) []types.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src := s.events[sessionID]
	out := make([]types.Event, len(src))
	copy(out, src)
	return out
}

func (s *Store) ListSessionIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		out = append(out, id)
	}
	return out
}

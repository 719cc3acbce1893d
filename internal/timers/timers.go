package timers

import (
	"errors"
	"strings"
	"sync"
	"time"
)

var ErrInvalidTimer = errors.New("timer needs a label and a positive duration")

// Timer describes a running countdown.
type Timer struct {
	Label           string    `json:"label"`
	DurationSeconds float64   `json:"duration_seconds"`
	StartedAt       time.Time `json:"started_at"`
	EndsAt          time.Time `json:"ends_at"`
}

// Fired is delivered once a timer runs out.
type Fired struct {
	SessionID       string    `json:"session_id"`
	Label           string    `json:"label"`
	DurationSeconds float64   `json:"duration_seconds"`
	FiredAt         time.Time `json:"fired_at"`
}

type entry struct {
	timer Timer
	t     *time.Timer
	gen   uint64
}

// Manager keeps per-session timers keyed by label. OnFire runs on the timer's
// own goroutine and must not block for long.
type Manager struct {
	mu     sync.Mutex
	timers map[string]map[string]*entry
	gen    uint64
	now    func() time.Time
	onFire func(Fired)
}

func NewManager(onFire func(Fired)) *Manager {
	return &Manager{
		timers: make(map[string]map[string]*entry),
		now:    time.Now,
		onFire: onFire,
	}
}

// SetOnFire replaces the fire callback. Used when the receiver is built after the manager.
func (m *Manager) SetOnFire(fn func(Fired)) {
	m.mu.Lock()
	m.onFire = fn
	m.mu.Unlock()
}

// Set starts a timer; an existing timer with the same label is replaced.
func (m *Manager) Set(sessionID string, durationSeconds float64, label string) (Timer, error) {
	label = strings.TrimSpace(label)
	if label == "" || durationSeconds <= 0 {
		return Timer{}, ErrInvalidTimer
	}
	key := strings.ToLower(label)
	now := m.now()
	d := time.Duration(durationSeconds * float64(time.Second))
	tm := Timer{Label: label, DurationSeconds: durationSeconds, StartedAt: now, EndsAt: now.Add(d)}

	m.mu.Lock()
	defer m.mu.Unlock()
	byLabel := m.timers[sessionID]
	if byLabel == nil {
		byLabel = make(map[string]*entry)
		m.timers[sessionID] = byLabel
	}
	if old := byLabel[key]; old != nil {
		old.t.Stop()
	}
	m.gen++
	e := &entry{timer: tm, gen: m.gen}
	e.t = time.AfterFunc(d, func() { m.fire(sessionID, key, e.gen) })
	byLabel[key] = e
	return tm, nil
}

// Cancel stops a timer and reports whether one was running.
func (m *Manager) Cancel(sessionID, label string) bool {
	key := strings.ToLower(strings.TrimSpace(label))
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.timers[sessionID][key]
	if e == nil {
		return false
	}
	e.t.Stop()
	delete(m.timers[sessionID], key)
	return true
}

// CancelAll stops every timer of a session.
func (m *Manager) CancelAll(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.timers[sessionID] {
		e.t.Stop()
	}
	delete(m.timers, sessionID)
}

// Active lists a session's running timers.
func (m *Manager) Active(sessionID string) []Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Timer, 0, len(m.timers[sessionID]))
	for _, e := range m.timers[sessionID] {
		out = append(out, e.timer)
	}
	return out
}

func (m *Manager) fire(sessionID, key string, gen uint64) {
	m.mu.Lock()
	e := m.timers[sessionID][key]
	if e == nil || e.gen != gen {
		// replaced or cancelled after the timer was already due
		m.mu.Unlock()
		return
	}
	delete(m.timers[sessionID], key)
	fn := m.onFire
	m.mu.Unlock()

	if fn != nil {
		fn(Fired{SessionID: sessionID, Label: e.timer.Label, DurationSeconds: e.timer.DurationSeconds, FiredAt: m.now()})
	}
}

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"yuzu/souschef/internal/catalog"
	"yuzu/souschef/internal/llm"
	"yuzu/souschef/internal/loop"
	"yuzu/souschef/internal/session"
	"yuzu/souschef/internal/store"
	"yuzu/souschef/internal/timers"
	"yuzu/souschef/internal/tools"
	"yuzu/souschef/internal/types"
	"yuzu/souschef/internal/vision"
)

var (
	ErrNoSession        = errors.New("session not started")
	ErrToolLoopExceeded = errors.New("tool_loop_exceeded")
	ErrEmptyFrame       = errors.New("empty frame")
	ErrUnknownEvent     = errors.New("unknown event kind")
)

const (
	defaultMaxToolRounds = 8
	defaultPushTimeout   = 5 * time.Second
)

// Model runs one tool-calling turn.
type Model interface {
	Respond(ctx context.Context, req llm.Request) (llm.Response, error)
}

// Vision judges a single camera frame and returns the classifier's raw text.
type Vision interface {
	Classify(ctx context.Context, prompt string, jpeg []byte) (string, error)
}

// Voice turns text into playable audio.
type Voice interface {
	Synthesize(ctx context.Context, text string) ([]byte, string, error)
}

type Timers interface {
	Set(sessionID string, durationSeconds float64, label string) (timers.Timer, error)
	Cancel(sessionID, label string) bool
	CancelAll(sessionID string)
}

// Message is pushed to the client bound to a session.
type Message struct {
	Type      string         `json:"type"`
	SessionID string         `json:"session_id"`
	TsMs      int64          `json:"ts_ms"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// Outbound message types.
const (
	MsgPanel   = "panel"
	MsgSpeech  = "speech"
	MsgOverlay = "overlay"
	MsgTimer   = "timer"
)

type Sink interface {
	Push(ctx context.Context, msg Message) error
}

// EventLog is the session registry the orchestrator reports to.
type EventLog interface {
	EnsureSession(id string) *types.Session
	SetDish(id, dish string)
	SetStatus(id, status string)
	AppendEvent(sessionID, typ string, payload map[string]any) types.Event
}

// EventKind names an inbound session event.
type EventKind string

const (
	KindSessionStart EventKind = "session_start"
	KindFrame        EventKind = "frame"
	KindUserMessage  EventKind = "user_message"
	KindTimerFired   EventKind = "timer_fired"
	KindReset        EventKind = "reset"
)

func ParseKind(s string) (EventKind, error) {
	switch k := EventKind(strings.TrimSpace(s)); k {
	case KindSessionStart, KindFrame, KindUserMessage, KindTimerFired, KindReset:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownEvent, s)
}

// Event is one externally triggered unit of session work.
type Event struct {
	Kind         EventKind
	Dish         string
	Text         string
	JPEG         []byte
	CapturedAtMs int64
	Timer        timers.Fired
}

type Options struct {
	Model   Model
	Vision  Vision
	Voice   Voice
	Timers  Timers
	Sink    Sink
	Catalog catalog.Store
	Events  EventLog

	Instructions   string
	MaxToolRounds  int
	FuzzyThreshold float64
	LaneCapacity   int
	PushTimeout    time.Duration
	Session        session.Options
	Now            func() time.Time
}

type sessionEntry struct {
	state *session.State
	lane  *loop.Lane
}

// Orchestrator owns every cooking session. Each session has its own lane, so
// its state is only touched by one task at a time.
type Orchestrator struct {
	model   Model
	vision  Vision
	voice   Voice
	timers  Timers
	sink    Sink
	catalog catalog.Store
	events  EventLog

	instructions   string
	maxRounds      int
	fuzzyThreshold float64
	laneCapacity   int
	pushTimeout    time.Duration
	sessionOpts    session.Options
	now            func() time.Time

	toolDefs []tools.Definition
	handlers map[string]toolHandler

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	sessions map[string]*sessionEntry
	closed   bool
}

func New(opts Options) *Orchestrator {
	if opts.MaxToolRounds <= 0 {
		opts.MaxToolRounds = defaultMaxToolRounds
	}
	if opts.FuzzyThreshold <= 0 {
		opts.FuzzyThreshold = catalog.DefaultFuzzyThreshold
	}
	if opts.PushTimeout <= 0 {
		opts.PushTimeout = defaultPushTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Events == nil {
		opts.Events = store.New()
	}
	if opts.Catalog == nil {
		opts.Catalog = catalog.NewMemoryStore()
	}
	if opts.Instructions == "" {
		opts.Instructions = defaultInstructions
	}
	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		model:          opts.Model,
		vision:         opts.Vision,
		voice:          opts.Voice,
		timers:         opts.Timers,
		sink:           opts.Sink,
		catalog:        opts.Catalog,
		events:         opts.Events,
		instructions:   opts.Instructions,
		maxRounds:      opts.MaxToolRounds,
		fuzzyThreshold: opts.FuzzyThreshold,
		laneCapacity:   opts.LaneCapacity,
		pushTimeout:    opts.PushTimeout,
		sessionOpts:    opts.Session,
		now:            opts.Now,
		toolDefs:       tools.Definitions(),
		ctx:            ctx,
		cancel:         cancel,
		sessions:       make(map[string]*sessionEntry),
	}
	o.handlers = o.toolHandlers()
	return o
}

// Submit queues ev on the session's lane. The returned channel yields the
// task's error once it has run.
func (o *Orchestrator) Submit(sessionID string, ev Event) <-chan error {
	e, err := o.entry(sessionID)
	if err != nil {
		done := make(chan error, 1)
		done <- err
		return done
	}
	metricEvents.WithLabelValues(string(ev.Kind)).Inc()
	return e.lane.Submit(string(ev.Kind), func(ctx context.Context) error {
		start := time.Now()
		defer func() {
			metricTaskDurationMS.WithLabelValues(string(ev.Kind)).Observe(float64(time.Since(start).Milliseconds()))
		}()
		return o.handle(ctx, e.state, ev)
	})
}

// Handle submits ev and waits for it to finish or for ctx to end.
func (o *Orchestrator) Handle(ctx context.Context, sessionID string, ev Event) error {
	select {
	case err := <-o.Submit(sessionID, ev):
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) StartSession(ctx context.Context, sessionID, dish string) error {
	return o.Handle(ctx, sessionID, Event{Kind: KindSessionStart, Dish: dish})
}

func (o *Orchestrator) Frame(ctx context.Context, sessionID string, jpeg []byte, capturedAtMs int64) error {
	return o.Handle(ctx, sessionID, Event{Kind: KindFrame, JPEG: jpeg, CapturedAtMs: capturedAtMs})
}

func (o *Orchestrator) UserMessage(ctx context.Context, sessionID, text string) error {
	return o.Handle(ctx, sessionID, Event{Kind: KindUserMessage, Text: text})
}

func (o *Orchestrator) Reset(ctx context.Context, sessionID string) error {
	return o.Handle(ctx, sessionID, Event{Kind: KindReset})
}

// OnTimerFired queues a timer_fired event. It is the timer manager's callback
// and does not wait for the task.
func (o *Orchestrator) OnTimerFired(f timers.Fired) {
	o.Submit(f.SessionID, Event{Kind: KindTimerFired, Timer: f})
}

// Snapshot reads a session's state from inside its lane.
func (o *Orchestrator) Snapshot(ctx context.Context, sessionID string) (session.Snapshot, error) {
	e, err := o.entry(sessionID)
	if err != nil {
		return session.Snapshot{}, err
	}
	var snap session.Snapshot
	err = e.lane.Do(ctx, "snapshot", func(context.Context) error {
		snap = e.state.Snapshot()
		return nil
	})
	return snap, err
}

// Close drains every lane and stops accepting events.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	entries := make([]*sessionEntry, 0, len(o.sessions))
	for _, e := range o.sessions {
		entries = append(entries, e)
	}
	o.mu.Unlock()

	for _, e := range entries {
		e.lane.Close()
		if o.timers != nil {
			o.timers.CancelAll(e.state.ID)
		}
	}
	o.cancel()
}

func (o *Orchestrator) entry(sessionID string) (*sessionEntry, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, fmt.Errorf("%w: empty session id", ErrNoSession)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return nil, loop.ErrLaneClosed
	}
	if e, ok := o.sessions[sessionID]; ok {
		return e, nil
	}
	o.events.EnsureSession(sessionID)
	e := &sessionEntry{state: session.New(sessionID, o.sessionOpts)}
	e.lane = loop.NewLane(o.ctx, sessionID, o.laneCapacity, func(name string, err error) {
		o.taskFailed(sessionID, name, err)
	})
	o.sessions[sessionID] = e
	metricSessions.Inc()
	return e, nil
}

func (o *Orchestrator) taskFailed(sessionID, name string, err error) {
	if errors.Is(err, ErrNoSession) {
		log.Printf("[orch] dropped sid=%s event=%s: %v", sessionID, name, err)
		o.events.AppendEvent(sessionID, "event_dropped", map[string]any{"event": name, "error": err.Error()})
		return
	}
	metricTaskFailures.WithLabelValues(name).Inc()
	log.Printf("[orch] task failed sid=%s event=%s: %v", sessionID, name, err)
	o.events.AppendEvent(sessionID, "task_failed", map[string]any{"event": name, "error": err.Error()})
}

func (o *Orchestrator) handle(ctx context.Context, st *session.State, ev Event) error {
	switch ev.Kind {
	case KindSessionStart:
		return o.handleStart(ctx, st, ev.Dish)
	case KindFrame:
		return o.handleFrame(ctx, st, ev)
	case KindUserMessage:
		return o.handleUserMessage(ctx, st, ev.Text)
	case KindTimerFired:
		return o.handleTimerFired(ctx, st, ev.Timer)
	case KindReset:
		return o.handleReset(ctx, st)
	}
	return fmt.Errorf("%w: %q", ErrUnknownEvent, ev.Kind)
}

func (o *Orchestrator) handleStart(ctx context.Context, st *session.State, dish string) error {
	dish = strings.TrimSpace(dish)
	if dish == "" {
		return fmt.Errorf("%w: session_start needs a dish", tools.ErrInvalidArgs)
	}
	if o.timers != nil {
		o.timers.CancelAll(st.ID)
	}
	st.Start(dish)
	o.events.SetDish(st.ID, dish)
	o.events.AppendEvent(st.ID, "session_started", map[string]any{"dish": dish})
	log.Printf("[orch] session_start sid=%s dish=%q", st.ID, dish)
	o.push(ctx, st.ID, MsgPanel, map[string]any{"dish": dish, "step": "", "advanced": false})

	return o.resolve(ctx, st, turn{Text: startTurnText(dish)})
}

func (o *Orchestrator) handleFrame(ctx context.Context, st *session.State, ev Event) error {
	if !st.Active() {
		return ErrNoSession
	}
	if len(ev.JPEG) == 0 {
		return ErrEmptyFrame
	}
	capturedAt := ev.CapturedAtMs
	if capturedAt == 0 {
		capturedAt = o.now().UnixMilli()
	}

	raw := ""
	if o.vision != nil {
		text, err := o.vision.Classify(ctx, visionPrompt(st, capturedAt), ev.JPEG)
		if err != nil {
			log.Printf("[orch] classify failed sid=%s: %v", st.ID, err)
		}
		raw = text
	}
	a := vision.ParseAssessment(raw, st.Steps.Locked() != "")
	st.Steps.IngestFrame(capturedAt, a)
	metricFrameStatus.WithLabelValues(string(a.StepStatus)).Inc()
	o.events.AppendEvent(st.ID, "frame_assessed", map[string]any{
		"step_status":          string(a.StepStatus),
		"confidence":           a.Confidence,
		"observation":          a.Observation,
		"frame_allows_advance": st.Steps.FrameAllowsAdvance(),
	})

	return o.resolve(ctx, st, turn{Text: frameTurnText(st, a), Image: ev.JPEG})
}

func (o *Orchestrator) handleUserMessage(ctx context.Context, st *session.State, text string) error {
	if !st.Active() {
		return ErrNoSession
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if session.ConfirmsCompletion(text, st.Speech.LastQuestion()) && !st.CompletionConfirmed {
		st.CompletionConfirmed = true
		o.events.AppendEvent(st.ID, "completion_confirmed", map[string]any{"message": text})
	}
	st.Speech.AnswerReceived()
	return o.resolve(ctx, st, turn{Text: "The cook says: " + text})
}

func (o *Orchestrator) handleTimerFired(ctx context.Context, st *session.State, f timers.Fired) error {
	if !st.Active() {
		return ErrNoSession
	}
	o.events.AppendEvent(st.ID, "timer_fired", map[string]any{"label": f.Label, "duration_seconds": f.DurationSeconds})
	o.push(ctx, st.ID, MsgTimer, map[string]any{"action": "fired", "label": f.Label, "duration_seconds": f.DurationSeconds})
	return o.resolve(ctx, st, turn{Text: fmt.Sprintf("Timer %q (%gs) just finished.", f.Label, f.DurationSeconds)})
}

func (o *Orchestrator) handleReset(ctx context.Context, st *session.State) error {
	if o.timers != nil {
		o.timers.CancelAll(st.ID)
	}
	st.Reset()
	o.events.SetStatus(st.ID, types.StatusReset)
	o.events.AppendEvent(st.ID, "session_reset", nil)
	o.push(ctx, st.ID, MsgPanel, map[string]any{"dish": "", "step": "", "advanced": false})
	o.push(ctx, st.ID, MsgOverlay, map[string]any{"action": "clear"})
	log.Printf("[orch] reset sid=%s", st.ID)
	return nil
}

func (o *Orchestrator) push(ctx context.Context, sessionID, typ string, payload map[string]any) {
	if o.sink == nil {
		return
	}
	msg := Message{Type: typ, SessionID: sessionID, TsMs: o.now().UnixMilli(), Payload: payload}
	ctx, cancel := context.WithTimeout(ctx, o.pushTimeout)
	defer cancel()
	if err := o.sink.Push(ctx, msg); err != nil {
		log.Printf("[orch] push failed sid=%s type=%s: %v", sessionID, typ, err)
	}
}

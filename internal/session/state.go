package session

import (
	"yuzu/souschef/internal/speech"
	"yuzu/souschef/internal/steplock"
)

const maxLogEntries = 20

// Options configure a new State.
type Options struct {
	HistorySize       int
	SameStepThreshold float64
	Speech            speech.Config
}

// State is everything one cooking session mutates. It is owned by the
// session's lane and passed by pointer into each operation; nothing here is
// safe for concurrent use.
type State struct {
	ID   string
	Dish string

	Steps  *steplock.Machine
	Speech *speech.Gate

	Plan         []string
	Observations []string
	Notes        []string

	// ContinuationID is the model-side conversation handle.
	ContinuationID string

	CompletionConfirmed bool
	RecipeSaved         bool
}

func New(id string, opts Options) *State {
	return &State{
		ID:     id,
		Steps:  steplock.New(opts.HistorySize, opts.SameStepThreshold),
		Speech: speech.NewGate(opts.Speech),
	}
}

// Active reports whether a session-start event has been processed.
func (s *State) Active() bool { return s.Dish != "" }

// Reset returns every field to its initial value, keeping the id.
func (s *State) Reset() {
	s.Dish = ""
	s.Steps.Reset()
	s.Speech.Reset()
	s.Plan = nil
	s.Observations = nil
	s.Notes = nil
	s.ContinuationID = ""
	s.CompletionConfirmed = false
	s.RecipeSaved = false
}

// Start resets the session and begins cooking dish.
func (s *State) Start(dish string) {
	s.Reset()
	s.Dish = dish
}

func (s *State) AppendPlan(change string) { s.Plan = appendBounded(s.Plan, change) }

func (s *State) AppendObservation(obs string) { s.Observations = appendBounded(s.Observations, obs) }

func (s *State) AppendNote(note string) { s.Notes = appendBounded(s.Notes, note) }

// Snapshot is a read-only view used by transports and tests.
type Snapshot struct {
	ID                  string   `json:"session_id"`
	Dish                string   `json:"dish"`
	LockedStep          string   `json:"locked_step"`
	PendingStep         string   `json:"pending_step"`
	FrameAllowsAdvance  bool     `json:"frame_allows_advance"`
	CompletedSteps      []string `json:"completed_steps"`
	HistoryLen          int      `json:"vision_history_len"`
	WaitingForAnswer    bool     `json:"waiting_for_answer"`
	CompletionConfirmed bool     `json:"completion_confirmed"`
	RecipeSaved         bool     `json:"recipe_saved"`
}

func (s *State) Snapshot() Snapshot {
	return Snapshot{
		ID:                  s.ID,
		Dish:                s.Dish,
		LockedStep:          s.Steps.Locked(),
		PendingStep:         s.Steps.Pending(),
		FrameAllowsAdvance:  s.Steps.FrameAllowsAdvance(),
		CompletedSteps:      s.Steps.Completed(),
		HistoryLen:          s.Steps.History().Len(),
		WaitingForAnswer:    s.Speech.WaitingForAnswer(),
		CompletionConfirmed: s.CompletionConfirmed,
		RecipeSaved:         s.RecipeSaved,
	}
}

func appendBounded(list []string, item string) []string {
	list = append(list, item)
	if len(list) > maxLogEntries {
		list = append([]string(nil), list[len(list)-maxLogEntries:]...)
	}
	return list
}

package steplock

import (
	"yuzu/souschef/internal/textkey"
	"yuzu/souschef/internal/vision"
)

// DefaultSameStepThreshold is the token overlap at which a proposal counts as
// an edit of the locked step rather than a new step.
const DefaultSameStepThreshold = 0.65

// Rejection reasons.
const (
	ReasonEmpty           = "empty_step"
	ReasonTooBroad        = "step_too_broad"
	ReasonNotVisuallyDone = "current_step_not_visually_complete"
)

// Outcome is the result of Propose.
type Outcome struct {
	Locked   bool
	Advanced bool
	Step     string

	// Set on rejection.
	Reason      string
	CurrentStep string
	Candidate   string
	FrameStatus vision.StepStatus
}

// Machine owns the locked and pending step of one session. Access is
// serialized by the session lane.
type Machine struct {
	locked             string
	pending            string
	frameAllowsAdvance bool
	lastFrameStatus    vision.StepStatus
	completed          map[string]struct{}
	completedOrder     []string

	history           *vision.History
	sameStepThreshold float64
}

func New(historySize int, sameStepThreshold float64) *Machine {
	if sameStepThreshold <= 0 {
		sameStepThreshold = DefaultSameStepThreshold
	}
	m := &Machine{
		history:           vision.NewHistory(historySize),
		sameStepThreshold: sameStepThreshold,
	}
	m.Reset()
	return m
}

// Reset wipes every field back to the no-step state.
func (m *Machine) Reset() {
	m.locked = ""
	m.pending = ""
	m.frameAllowsAdvance = false
	m.lastFrameStatus = ""
	m.completed = make(map[string]struct{})
	m.completedOrder = nil
	m.history.Reset()
}

// Propose decides whether rawStep may replace the locked step.
func (m *Machine) Propose(dish, rawStep string) Outcome {
	step := Sanitize(rawStep)
	if step == "" {
		return m.reject(ReasonEmpty, step)
	}
	if TooBroad(step) {
		return m.reject(ReasonTooBroad, step)
	}

	if m.locked == "" {
		m.lockNew(step)
		return Outcome{Locked: true, Step: step}
	}

	if textkey.Normalize(step) == textkey.Normalize(m.locked) ||
		textkey.Overlap(step, m.locked) >= m.sameStepThreshold {
		m.locked = step
		m.pending = ""
		return Outcome{Locked: true, Step: step}
	}

	m.pending = step
	if !m.FrameAllowsAdvance() {
		return m.reject(ReasonNotVisuallyDone, step)
	}
	m.markCompleted(m.locked)
	m.lockNew(step)
	return Outcome{Locked: true, Advanced: true, Step: step}
}

// lockNew locks a different step. Frames seen so far describe the previous
// one, so the stored verdict is closed until a frame confirms the new step.
func (m *Machine) lockNew(step string) {
	m.locked = step
	m.pending = ""
	m.frameAllowsAdvance = false
}

// IngestFrame records an assessment and recomputes the advance gate from it alone.
func (m *Machine) IngestFrame(capturedAtMs int64, a vision.Assessment) {
	m.history.Add(vision.Entry{
		CapturedAtMs: capturedAtMs,
		Observation:  a.Observation,
		StepStatus:   a.StepStatus,
	})
	m.lastFrameStatus = a.StepStatus
	m.frameAllowsAdvance = m.locked == "" || a.StepStatus == vision.StatusComplete
}

// Clear unlocks the panel.
func (m *Machine) Clear() {
	m.locked = ""
	m.pending = ""
}

func (m *Machine) Locked() string { return m.locked }

func (m *Machine) Pending() string { return m.pending }

// FrameAllowsAdvance is true with no locked step, otherwise it carries the
// verdict of the latest frame about the locked step. Only IngestFrame opens it.
func (m *Machine) FrameAllowsAdvance() bool { return m.locked == "" || m.frameAllowsAdvance }

func (m *Machine) LastFrameStatus() vision.StepStatus { return m.lastFrameStatus }

func (m *Machine) History() *vision.History { return m.history }

// Completed lists completed step texts in completion order.
func (m *Machine) Completed() []string {
	return append([]string(nil), m.completedOrder...)
}

// IsCompleted reports whether step was already recorded as completed.
func (m *Machine) IsCompleted(step string) bool {
	_, ok := m.completed[textkey.Normalize(step)]
	return ok
}

func (m *Machine) markCompleted(step string) {
	key := textkey.Normalize(step)
	if key == "" {
		return
	}
	if _, done := m.completed[key]; done {
		return
	}
	m.completed[key] = struct{}{}
	m.completedOrder = append(m.completedOrder, step)
}

func (m *Machine) reject(reason, candidate string) Outcome {
	return Outcome{
		Reason:      reason,
		CurrentStep: m.locked,
		Candidate:   candidate,
		FrameStatus: m.lastFrameStatus,
	}
}

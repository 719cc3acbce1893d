package orchestrator

import (
	"fmt"
	"strings"

	"yuzu/souschef/internal/session"
	"yuzu/souschef/internal/vision"
)

const defaultInstructions = `You are a calm sous-chef watching the cook through a camera.
Show exactly one atomic, visually checkable step at a time with set_panel.
Only move on once the camera confirms the current step is complete.
Talk only through speak, one short sentence, and prefer stay_silent when nothing useful needs saying.
Ask at most one question at a time and never ask which kind of milk, flour, pan, oil, butter, sugar or salt to use.
When the cook confirms the dish is done, save it with complete_recipe.`

const historyContextEntries = 5

func startTurnText(dish string) string {
	return fmt.Sprintf("A new cooking session started. The cook wants to make %s. Look up any saved recipe for it, then show the first step.", dish)
}

// sessionContext renders the state the model needs on every turn.
func sessionContext(st *session.State, nowMs int64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Dish: %s\n", orNone(st.Dish))
	fmt.Fprintf(&b, "Current step: %s\n", orNone(st.Steps.Locked()))
	if p := st.Steps.Pending(); p != "" {
		fmt.Fprintf(&b, "Waiting to show: %s\n", p)
	}
	fmt.Fprintf(&b, "Camera confirms current step done: %t\n", st.Steps.FrameAllowsAdvance())
	if done := st.Steps.Completed(); len(done) > 0 {
		fmt.Fprintf(&b, "Completed steps: %s\n", strings.Join(done, " | "))
	}
	if len(st.Plan) > 0 {
		fmt.Fprintf(&b, "Plan:\n- %s\n", strings.Join(tail(st.Plan, historyContextEntries), "\n- "))
	}
	if len(st.Observations) > 0 {
		fmt.Fprintf(&b, "Observations:\n- %s\n", strings.Join(tail(st.Observations, historyContextEntries), "\n- "))
	}
	if h := st.Steps.History().Summary(historyContextEntries, nowMs); h != "" {
		fmt.Fprintf(&b, "Recent frames:\n%s\n", h)
	}
	if st.Speech.WaitingForAnswer() {
		fmt.Fprintf(&b, "Waiting for the cook to answer: %s\n", st.Speech.LastQuestion())
	}
	if st.RecipeSaved {
		b.WriteString("Recipe already saved this session.\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func instructionsFor(base string, st *session.State, nowMs int64) string {
	return base + "\n\nSession state:\n" + sessionContext(st, nowMs)
}

func visionPrompt(st *session.State, nowMs int64) string {
	var b strings.Builder
	b.WriteString("Judge this single kitchen camera frame against the current cooking step.\n")
	b.WriteString(`Reply with one JSON object: {"observation": "<=14 words", "step_status": "not_started|in_progress|complete|unclear", "confidence": 0..1, "reason": "<=18 words"}.`)
	b.WriteString("\n")
	b.WriteString(sessionContext(st, nowMs))
	return b.String()
}

func frameTurnText(st *session.State, a vision.Assessment) string {
	return fmt.Sprintf("New camera frame. Assessment: status=%s confidence=%.2f observation=%q reason=%q. Current step %s; camera confirms done: %t.",
		a.StepStatus, a.Confidence, a.Observation, a.Reason, orNone(st.Steps.Locked()), st.Steps.FrameAllowsAdvance())
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

func tail(list []string, n int) []string {
	if len(list) <= n {
		return list
	}
	return list[len(list)-n:]
}

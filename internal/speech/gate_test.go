package speech

import (
	"testing"
	"time"
)

var t0 = time.Date(2026, 5, 1, 18, 0, 0, 0, time.UTC)

func TestDuplicateRecent(t *testing.T) {
	g := NewGate(DefaultConfig())
	g.Record("Flip the pancake now.", t0)

	if r := g.ShouldSuppress("  flip the   PANCAKE now. ", t0.Add(30*time.Second)); r != ReasonDuplicateRecent {
		t.Fatalf("expected duplicate_recent, got %q", r)
	}
	if r := g.ShouldSuppress("Flip the pancake now.", t0.Add(121*time.Second)); r != "" {
		t.Fatalf("repeat after cooldown should be voiced, got %q", r)
	}
}

func TestAwaitingAnswer(t *testing.T) {
	g := NewGate(DefaultConfig())
	g.Record("Is the butter melted?", t0)
	if !g.WaitingForAnswer() || g.LastQuestion() != "Is the butter melted?" {
		t.Fatal("question should set waiting state")
	}
	if r := g.ShouldSuppress("Nice work so far.", t0.Add(5*time.Second)); r != ReasonAwaitingAnswer {
		t.Fatalf("expected awaiting_answer, got %q", r)
	}
	for _, at := range []time.Duration{10 * time.Second, 200 * time.Second} {
		if r := g.ShouldSuppress("Is the pan hot yet?", t0.Add(at)); r != ReasonAwaitingAnswer {
			t.Fatalf("question while waiting at +%s: expected awaiting_answer, got %q", at, r)
		}
	}
	if r := g.ShouldSuppress("Is something burning?", t0.Add(10*time.Second)); r != "" {
		t.Fatalf("urgent question should be voiced while waiting, got %q", r)
	}
	g.AnswerReceived()
	if r := g.ShouldSuppress("Nice work so far.", t0.Add(6*time.Second)); r != "" {
		t.Fatalf("expected voice after answer, got %q", r)
	}
}

func TestUrgentNeverSuppressed(t *testing.T) {
	g := NewGate(DefaultConfig())
	g.Record("Is the butter melted?", t0)
	g.Record("Careful, the oil is smoking.", t0)

	for _, text := range []string{
		"Careful, the oil is smoking.",
		"Stop! Turn the burner off.",
		"Watch the knife.",
		"Is something burning?",
		"Wash your hands after touching raw chicken.",
		"I smell gas, what kind of oil is that?",
	} {
		if r := g.ShouldSuppress(text, t0.Add(time.Second)); r != "" {
			t.Errorf("urgent %q suppressed as %q", text, r)
		}
		if r := g.CheckStep(text, "Whisk the batter.", false, t0.Add(time.Second)); r != "" {
			t.Errorf("urgent %q blocked by step gate as %q", text, r)
		}
	}
}

func TestPreferenceQuestionAlwaysSuppressed(t *testing.T) {
	g := NewGate(DefaultConfig())
	for _, text := range []string{
		"What kind of milk are you using?",
		"Which type of flour do you have?",
		"What brand of butter is that?",
		"Which sort of pan will you use?",
	} {
		if r := g.ShouldSuppress(text, t0); r != ReasonPreferenceQuestion {
			t.Errorf("%q: expected routine_preference_question, got %q", text, r)
		}
	}
	if r := g.ShouldSuppress("What temperature is the oven?", t0); r != "" {
		t.Fatalf("non-preference question should pass, got %q", r)
	}
}

func TestQuestionGap(t *testing.T) {
	g := NewGate(DefaultConfig())
	g.Record("Is the oven preheated?", t0)
	g.AnswerReceived()

	if r := g.ShouldSuppress("Do you have a whisk?", t0.Add(5*time.Minute)); r != ReasonQuestionGap {
		t.Fatalf("expected question_gap_too_short, got %q", r)
	}
	if r := g.ShouldSuppress("Good, keep stirring.", t0.Add(5*time.Minute)); r != "" {
		t.Fatalf("statements are not subject to the question gap, got %q", r)
	}
	if r := g.ShouldSuppress("Do you have a whisk?", t0.Add(11*time.Minute)); r != "" {
		t.Fatalf("question after the gap should pass, got %q", r)
	}
}

func TestCheckStep(t *testing.T) {
	g := NewGate(DefaultConfig())
	step := "Whisk the eggs in the bowl."

	if r := g.CheckStep("Now preheat the oven.", step, false, t0); r != ReasonUnrelatedToStep {
		t.Fatalf("expected unrelated_to_current_step, got %q", r)
	}
	if r := g.CheckStep("Keep whisking those eggs.", step, false, t0); r != "" {
		t.Fatalf("related reminder should pass, got %q", r)
	}
	g.Record("Keep whisking those eggs.", t0)
	if r := g.CheckStep("Whisk a little faster.", step, false, t0.Add(20*time.Second)); r != ReasonStepReminderTooSoon {
		t.Fatalf("expected step_reminder_too_soon, got %q", r)
	}
	if r := g.CheckStep("Whisk a little faster.", step, false, t0.Add(46*time.Second)); r != "" {
		t.Fatalf("reminder after interval should pass, got %q", r)
	}
	if r := g.CheckStep("Now preheat the oven.", step, true, t0); r != "" {
		t.Fatalf("open frame gate should allow anything, got %q", r)
	}
	if r := g.CheckStep("Anything else?", step, false, t0); r != "" {
		t.Fatalf("questions are not step-gated, got %q", r)
	}
	if r := g.CheckStep("Now preheat the oven.", "", false, t0); r != "" {
		t.Fatalf("no locked step means no step gate, got %q", r)
	}
}

func TestRelatesToContainment(t *testing.T) {
	if !RelatesTo("Melt butter", "Melt butter in the pan.", 0.9) {
		t.Fatal("containment should count as related")
	}
	if RelatesTo("", "Melt butter.", 0.1) {
		t.Fatal("empty text relates to nothing")
	}
}

func TestReset(t *testing.T) {
	g := NewGate(DefaultConfig())
	g.Record("Ready to start?", t0)
	g.Reset()
	if g.WaitingForAnswer() || g.LastQuestion() != "" || !g.LastSpokenAt().IsZero() {
		t.Fatal("reset should clear state")
	}
	if r := g.ShouldSuppress("Ready to start?", t0.Add(time.Second)); r != "" {
		t.Fatalf("nothing should be suppressed after reset, got %q", r)
	}
}

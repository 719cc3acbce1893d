package steplock

import (
	"strings"
	"testing"

	"yuzu/souschef/internal/vision"
)

func complete() vision.Assessment {
	return vision.Assessment{Observation: "Done.", StepStatus: vision.StatusComplete, Confidence: 0.9}
}

func inProgress() vision.Assessment {
	return vision.Assessment{Observation: "Working.", StepStatus: vision.StatusInProgress, Confidence: 0.8}
}

func TestSanitize(t *testing.T) {
	cases := map[string]string{
		"Next step: Crack the eggs into a bowl. Then whisk.": "Crack the eggs into a bowl.",
		"\n\n  Step 3: preheat the oven to 350F\nmore":      "preheat the oven to 350F.",
		"- Melt the butter!":                                "Melt the butter!",
		"Add 1.5 cups of flour to the bowl":                 "Add 1.5 cups of flour to the bowl.",
		"Stir stir stir stir stir stir stir stir stir stir stir stir stir stir": "Stir stir stir stir stir stir stir stir stir stir stir stir.",
		"Whisk the eggs, the milk, the sugar,":              "Whisk the eggs, the milk, the sugar.",
		"   \n  ":                                           "",
		"Next step: ...":                                    "",
	}
	for in, want := range cases {
		if got := Sanitize(in); got != want {
			t.Errorf("Sanitize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSanitizedStepsAreShortAndTerminated(t *testing.T) {
	inputs := []string{
		"one two three four five six seven eight nine ten eleven twelve thirteen fourteen",
		"Pour the batter, wait,",
		"Is the pan hot?",
		"Flip",
	}
	for _, in := range inputs {
		out := Sanitize(in)
		if out == "" {
			continue
		}
		if n := len(strings.Fields(out)); n > MaxStepWords {
			t.Errorf("Sanitize(%q) has %d words", in, n)
		}
		if last := out[len(out)-1]; last != '.' && last != '!' && last != '?' {
			t.Errorf("Sanitize(%q) = %q lacks terminal punctuation", in, out)
		}
	}
}

func TestTooBroad(t *testing.T) {
	broad := []string{
		"Analyze the pan.",
		"Gather all ingredients.",
		"Crack eggs then whisk.",
		"Whisk, pour, flip.",
		"Mix flour and sugar and salt.",
		"1. Crack the eggs.",
		"Next, heat the pan.",
	}
	for _, s := range broad {
		if !TooBroad(s) {
			t.Errorf("expected %q to be too broad", s)
		}
	}
	narrow := []string{"Crack the eggs into a bowl.", "Mix flour and sugar.", "Heat the pan, medium heat."}
	for _, s := range narrow {
		if TooBroad(s) {
			t.Errorf("expected %q to be accepted", s)
		}
	}
}

func TestProposeRejectsEmptyAndBroad(t *testing.T) {
	m := New(10, 0)
	if out := m.Propose("pancakes", "  "); out.Locked || out.Reason != ReasonEmpty {
		t.Fatalf("expected empty_step, got %+v", out)
	}
	if out := m.Propose("pancakes", "Gather the ingredients."); out.Locked || out.Reason != ReasonTooBroad {
		t.Fatalf("expected step_too_broad, got %+v", out)
	}
	if m.Locked() != "" {
		t.Fatalf("rejections must not lock, got %q", m.Locked())
	}
}

func TestEndToEndAdvance(t *testing.T) {
	m := New(10, 0)
	if !m.FrameAllowsAdvance() {
		t.Fatal("gate should be open with no locked step")
	}
	out := m.Propose("pancakes", "Grab 2 eggs.")
	if !out.Locked || out.Advanced || m.Locked() != "Grab 2 eggs." {
		t.Fatalf("first step should lock without advancing, got %+v", out)
	}

	m.IngestFrame(1000, complete())
	if !m.FrameAllowsAdvance() {
		t.Fatal("complete frame should open the gate")
	}

	out = m.Propose("pancakes", "Crack the eggs into a bowl.")
	if !out.Locked || !out.Advanced {
		t.Fatalf("expected advance, got %+v", out)
	}
	if m.Locked() != "Crack the eggs into a bowl." || m.Pending() != "" {
		t.Fatalf("unexpected state locked=%q pending=%q", m.Locked(), m.Pending())
	}
	if !m.IsCompleted("Grab 2 eggs.") {
		t.Fatal("previous step should be recorded as completed")
	}
}

func TestProposeGatedWhileNotVisuallyComplete(t *testing.T) {
	m := New(10, 0)
	m.Propose("pancakes", "Grab 2 eggs.")
	m.IngestFrame(1000, inProgress())
	if m.FrameAllowsAdvance() {
		t.Fatal("in-progress frame must close the gate")
	}

	out := m.Propose("pancakes", "Crack the eggs into a bowl.")
	if out.Locked || out.Reason != ReasonNotVisuallyDone {
		t.Fatalf("expected gate rejection, got %+v", out)
	}
	if out.CurrentStep != "Grab 2 eggs." || out.Candidate != "Crack the eggs into a bowl." || out.FrameStatus != vision.StatusInProgress {
		t.Fatalf("rejection should surface context, got %+v", out)
	}
	if m.Locked() != "Grab 2 eggs." {
		t.Fatalf("locked step must not change, got %q", m.Locked())
	}
	if m.Pending() != "Crack the eggs into a bowl." {
		t.Fatalf("candidate should be pending, got %q", m.Pending())
	}
	if len(m.Completed()) != 0 {
		t.Fatal("nothing should be completed")
	}
}

func TestFrameBeforeFirstLockDoesNotOpenGate(t *testing.T) {
	m := New(10, 0)
	m.IngestFrame(500, vision.Assessment{StepStatus: vision.StatusNotStarted})
	m.Propose("pancakes", "Grab 2 eggs.")
	if m.FrameAllowsAdvance() {
		t.Fatal("a new lock must wait for a frame about it")
	}

	out := m.Propose("pancakes", "Crack the eggs into a bowl.")
	if out.Locked || out.Reason != ReasonNotVisuallyDone {
		t.Fatalf("expected gate rejection, got %+v", out)
	}
	if m.Locked() != "Grab 2 eggs." || len(m.Completed()) != 0 {
		t.Fatalf("unexpected state locked=%q completed=%v", m.Locked(), m.Completed())
	}
}

func TestOneCompleteFrameAllowsOneAdvance(t *testing.T) {
	m := New(10, 0)
	m.Propose("pancakes", "Grab 2 eggs.")
	m.IngestFrame(1000, complete())

	if out := m.Propose("pancakes", "Crack the eggs into a bowl."); !out.Advanced {
		t.Fatalf("expected first advance, got %+v", out)
	}
	if m.FrameAllowsAdvance() {
		t.Fatal("gate should close after an advance")
	}
	out := m.Propose("pancakes", "Heat the pan on medium.")
	if out.Locked || out.Reason != ReasonNotVisuallyDone {
		t.Fatalf("second advance needs a new frame, got %+v", out)
	}
	if m.Locked() != "Crack the eggs into a bowl." {
		t.Fatalf("locked step must not change, got %q", m.Locked())
	}

	m.IngestFrame(2000, complete())
	if out := m.Propose("pancakes", "Heat the pan on medium."); !out.Advanced {
		t.Fatalf("expected advance after a fresh complete frame, got %+v", out)
	}
}

func TestProposeSameStepEditsInPlace(t *testing.T) {
	m := New(10, 0)
	m.Propose("pancakes", "Whisk the batter.")
	m.IngestFrame(1000, inProgress())

	out := m.Propose("pancakes", "Whisk the batter until smooth.")
	if !out.Locked || out.Advanced {
		t.Fatalf("same-step edit should lock without advancing, got %+v", out)
	}
	if m.Locked() != "Whisk the batter until smooth." {
		t.Fatalf("locked text should be updated, got %q", m.Locked())
	}
}

func TestProposeIdempotent(t *testing.T) {
	m := New(10, 0)
	m.Propose("pancakes", "Grab 2 eggs.")
	m.IngestFrame(1000, complete())
	for i := 0; i < 2; i++ {
		out := m.Propose("pancakes", "Grab 2 eggs.")
		if !out.Locked || out.Advanced {
			t.Fatalf("repeat proposal %d should not advance, got %+v", i, out)
		}
	}
	if len(m.Completed()) != 0 {
		t.Fatalf("repeating a step must not complete it, got %v", m.Completed())
	}
}

func TestCompletedRecordedOnce(t *testing.T) {
	m := New(10, 0)
	m.Propose("pancakes", "Grab 2 eggs.")
	m.IngestFrame(1, complete())
	m.Propose("pancakes", "Heat the pan.")
	m.IngestFrame(2, complete())
	m.Propose("pancakes", "Grab 2 eggs.")
	m.IngestFrame(3, complete())
	m.Propose("pancakes", "Pour the batter.")

	got := m.Completed()
	want := []string{"Grab 2 eggs.", "Heat the pan."}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestClearAndReset(t *testing.T) {
	m := New(10, 0)
	m.Propose("pancakes", "Grab 2 eggs.")
	m.IngestFrame(1, inProgress())
	m.Clear()
	if m.Locked() != "" || m.Pending() != "" {
		t.Fatal("clear should unlock")
	}
	if out := m.Propose("pancakes", "Heat the pan."); !out.Locked || out.Advanced {
		t.Fatalf("after clear the next step locks freely, got %+v", out)
	}
	m.Reset()
	if m.Locked() != "" || m.History().Len() != 0 || len(m.Completed()) != 0 {
		t.Fatal("reset should wipe everything")
	}
}

func TestFrameHistoryBounded(t *testing.T) {
	m := New(10, 0)
	for i := 0; i < 11; i++ {
		m.IngestFrame(int64(i), inProgress())
	}
	if m.History().Len() != 10 {
		t.Fatalf("expected 10 history entries, got %d", m.History().Len())
	}
}

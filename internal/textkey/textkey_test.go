package textkey

import "testing"

func TestNormalize(t *testing.T) {
	if got := Normalize("  Crack the EGGS, into a bowl! "); got != "crack the eggs into a bowl" {
		t.Fatalf("unexpected normalized text %q", got)
	}
}

func TestTokensStemsAndDropsStopWords(t *testing.T) {
	toks := Tokens("Whisking the eggs into a bowl")
	for _, want := range []string{"whisk", "egg", "bowl"} {
		if _, ok := toks[want]; !ok {
			t.Errorf("expected token %q in %v", want, toks)
		}
	}
	for _, unwanted := range []string{"the", "into", "a"} {
		if _, ok := toks[unwanted]; ok {
			t.Errorf("did not expect token %q", unwanted)
		}
	}
}

func TestOverlap(t *testing.T) {
	if got := Overlap("Grab 2 eggs.", "Crack the eggs into a bowl."); got != 0.5 {
		t.Fatalf("expected 0.5 overlap, got %v", got)
	}
	if got := Overlap("Whisk the batter.", "Whisk the batter until smooth."); got != 1 {
		t.Fatalf("expected full overlap, got %v", got)
	}
	if got := Overlap("", "anything"); got != 0 {
		t.Fatalf("expected zero overlap for empty text, got %v", got)
	}
}

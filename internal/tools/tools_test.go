package tools

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestDefinitionsCoverEveryTool(t *testing.T) {
	want := []string{Speak, StaySilent, SetTimer, CancelTimer, UpdatePlan, UpdateState,
		LookupRecipe, SetPanel, ClearPanel, SetOverlay, ClearOverlay, CompleteRecipe}
	defs := Definitions()
	if len(defs) != len(want) {
		t.Fatalf("expected %d definitions, got %d", len(want), len(defs))
	}
	for i, name := range want {
		if defs[i].Name != name || defs[i].Type != "function" {
			t.Errorf("definition %d = %+v, want %s", i, defs[i], name)
		}
	}
	silent := defs[1].Parameters["required"].([]string)
	if len(silent) != 1 || silent[0] != "reason" {
		t.Fatalf("stay_silent should require reason, got %v", silent)
	}
	if _, err := json.Marshal(defs); err != nil {
		t.Fatalf("definitions should marshal: %v", err)
	}
}

func TestParseArgs(t *testing.T) {
	a, err := ParseArgs(`{"message":"  hi  ","duration_seconds":"90","ttl_seconds":5}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if s, err := a.RequiredString("message"); err != nil || s != "hi" {
		t.Fatalf("unexpected message %q, %v", s, err)
	}
	if n, err := a.RequiredNumber("duration_seconds"); err != nil || n != 90 {
		t.Fatalf("numeric strings should parse, got %v, %v", n, err)
	}
	if n := a.OptionalNumber("ttl_seconds", 8); n != 5 {
		t.Fatalf("expected 5, got %v", n)
	}
	if n := a.OptionalNumber("missing", 8); n != 8 {
		t.Fatalf("expected default, got %v", n)
	}
	if _, err := a.RequiredString("label"); !errors.Is(err, ErrInvalidArgs) {
		t.Fatalf("missing string should be ErrInvalidArgs, got %v", err)
	}
	if _, err := ParseArgs("{nope"); !errors.Is(err, ErrInvalidArgs) {
		t.Fatalf("bad json should be ErrInvalidArgs, got %v", err)
	}
	if a, err := ParseArgs(""); err != nil || len(a) != 0 {
		t.Fatalf("empty args should decode to empty object, got %v, %v", a, err)
	}
}

func TestResultJSON(t *testing.T) {
	got := Fail("unknown_tool", map[string]any{"tool": "dance"}).JSON()
	var m map[string]any
	if err := json.Unmarshal([]byte(got), &m); err != nil {
		t.Fatalf("result not JSON: %v", err)
	}
	if m["ok"] != false || m["error"] != "unknown_tool" || m["tool"] != "dance" {
		t.Fatalf("unexpected result %v", m)
	}
	if r := OK(nil); r["ok"] != true {
		t.Fatalf("expected ok result, got %v", r)
	}
}

package timers

import (
	"errors"
	"testing"
	"time"
)

func TestSetFires(t *testing.T) {
	fired := make(chan Fired, 1)
	m := NewManager(func(f Fired) { fired <- f })

	tm, err := m.Set("s1", 0.01, "pasta")
	if err != nil {
		t.Fatalf("set: %v", err)
	}
	if tm.Label != "pasta" || !tm.EndsAt.After(tm.StartedAt) {
		t.Fatalf("unexpected timer %+v", tm)
	}
	select {
	case f := <-fired:
		if f.SessionID != "s1" || f.Label != "pasta" {
			t.Fatalf("unexpected fire %+v", f)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timer did not fire")
	}
	if len(m.Active("s1")) != 0 {
		t.Fatal("fired timer should be removed")
	}
}

func TestSetReplacesSameLabel(t *testing.T) {
	fired := make(chan Fired, 4)
	m := NewManager(func(f Fired) { fired <- f })

	if _, err := m.Set("s1", 0.02, "Rice"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Set("s1", 60, "rice"); err != nil {
		t.Fatal(err)
	}
	if n := len(m.Active("s1")); n != 1 {
		t.Fatalf("expected one timer after replace, got %d", n)
	}
	select {
	case f := <-fired:
		t.Fatalf("replaced timer fired: %+v", f)
	case <-time.After(100 * time.Millisecond):
	}
	m.CancelAll("s1")
}

func TestCancel(t *testing.T) {
	m := NewManager(nil)
	if m.Cancel("s1", "eggs") {
		t.Fatal("cancel of unknown timer should report false")
	}
	if _, err := m.Set("s1", 60, "eggs"); err != nil {
		t.Fatal(err)
	}
	if !m.Cancel("s1", " EGGS ") {
		t.Fatal("cancel should match label case-insensitively")
	}
	if _, err := m.Set("s1", 0, "eggs"); !errors.Is(err, ErrInvalidTimer) {
		t.Fatalf("expected ErrInvalidTimer, got %v", err)
	}
}

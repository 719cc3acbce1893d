package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	// Clear relevant envs
	for _, k := range []string{"PORT", "LOG_LEVEL", "SESSION_MAX_TOOL_ROUNDS", "SPEECH_REPEAT_COOLDOWN_SECS", "CATALOG_FUZZY_THRESHOLD"} {
		os.Unsetenv(k)
	}

	c := Load()

	if c.Server.Port != "8080" {
		t.Fatalf("expected default port 8080, got %q", c.Server.Port)
	}
	if c.Server.LogLevel != "info" {
		t.Fatalf("expected default log level info, got %q", c.Server.LogLevel)
	}
	if c.Session.MaxToolRounds != 8 || c.Session.VisionHistory != 10 || c.Session.SameStepThreshold != 0.65 {
		t.Fatalf("unexpected session defaults %+v", c.Session)
	}
	if c.Catalog.FuzzyThreshold != 0.62 {
		t.Fatalf("expected fuzzy threshold 0.62, got %v", c.Catalog.FuzzyThreshold)
	}
	sc := c.SpeechConfig()
	if sc.RepeatCooldown != 120*time.Second || sc.MinQuestionGap != 600*time.Second || sc.StepRelateThreshold != 0.25 {
		t.Fatalf("unexpected speech config %+v", sc)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("SESSION_MAX_TOOL_ROUNDS", "3")
	t.Setenv("SPEECH_STEP_REMINDER_SECS", "10")

	c := Load()
	if c.Server.Port != "9000" || c.Session.MaxToolRounds != 3 {
		t.Fatalf("env not applied: port=%s rounds=%d", c.Server.Port, c.Session.MaxToolRounds)
	}
	if c.SpeechConfig().StepReminderInterval != 10*time.Second {
		t.Fatalf("expected 10s reminder interval, got %v", c.SpeechConfig().StepReminderInterval)
	}
}

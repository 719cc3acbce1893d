package speech

import (
	"regexp"
	"strings"
	"time"

	"yuzu/souschef/internal/textkey"
)

// Suppression reasons.
const (
	ReasonDuplicateRecent     = "duplicate_recent"
	ReasonAwaitingAnswer      = "awaiting_answer"
	ReasonPreferenceQuestion  = "routine_preference_question"
	ReasonQuestionGap         = "question_gap_too_short"
	ReasonUnrelatedToStep     = "unrelated_to_current_step"
	ReasonStepReminderTooSoon = "step_reminder_too_soon"
)

// Config holds the gate's cooldowns and thresholds.
type Config struct {
	RepeatCooldown       time.Duration
	MinQuestionGap       time.Duration
	StepReminderInterval time.Duration
	StepRelateThreshold  float64
}

func DefaultConfig() Config {
	return Config{
		RepeatCooldown:       120 * time.Second,
		MinQuestionGap:       600 * time.Second,
		StepReminderInterval: 45 * time.Second,
		StepRelateThreshold:  0.25,
	}
}

var (
	urgentPattern     = regexp.MustCompile(`(?i)\b(?:stop|danger(?:ous)?|urgent|fire|smoke|smoking|burn(?:s|ing|t|ed)?|hot\s+oil|knife|raw\s+chicken|gas)\b`)
	preferencePattern = regexp.MustCompile(`(?i)\b(?:what|which)\b.*\b(?:kind|type|brand|sort)s?\b.*\b(?:milk|flour|pans?|oil|butter|sugar|salt)\b`)
	whitespace        = regexp.MustCompile(`\s+`)
)

// Gate decides whether a candidate utterance is voiced. It is not safe for
// concurrent use; the session lane serializes access.
type Gate struct {
	cfg Config

	lastSpokenKey    string
	lastSpokenAt     time.Time
	waitingForAnswer bool
	lastQuestionAt   time.Time
	lastQuestionText string
	lastRoutineAt    time.Time
}

func NewGate(cfg Config) *Gate {
	return &Gate{cfg: cfg}
}

// Reset forgets everything spoken so far.
func (g *Gate) Reset() {
	*g = Gate{cfg: g.cfg}
}

// ShouldSuppress returns a suppression reason, or "" when text may be voiced.
// Safety-critical text is never suppressed.
func (g *Gate) ShouldSuppress(text string, now time.Time) string {
	if IsUrgent(text) {
		return ""
	}
	key := TextKey(text)
	question := IsQuestion(text)

	if key != "" && key == g.lastSpokenKey && now.Sub(g.lastSpokenAt) < g.cfg.RepeatCooldown {
		return ReasonDuplicateRecent
	}
	// Covers a repeated question too: only urgent text gets past a pending
	// question, and urgent text returned above.
	if g.waitingForAnswer {
		return ReasonAwaitingAnswer
	}
	if preferencePattern.MatchString(text) {
		return ReasonPreferenceQuestion
	}
	if question && !g.lastQuestionAt.IsZero() && now.Sub(g.lastQuestionAt) < g.cfg.MinQuestionGap {
		return ReasonQuestionGap
	}
	return ""
}

// CheckStep gates routine narration while the locked step is not yet visually
// complete: it must relate to the locked step and respect the reminder interval.
func (g *Gate) CheckStep(text, lockedStep string, frameAllowsAdvance bool, now time.Time) string {
	if lockedStep == "" || frameAllowsAdvance || IsUrgent(text) || IsQuestion(text) {
		return ""
	}
	if !RelatesTo(text, lockedStep, g.cfg.StepRelateThreshold) {
		return ReasonUnrelatedToStep
	}
	if !g.lastRoutineAt.IsZero() && now.Sub(g.lastRoutineAt) < g.cfg.StepReminderInterval {
		return ReasonStepReminderTooSoon
	}
	return ""
}

// Record updates state after text was actually voiced.
func (g *Gate) Record(text string, now time.Time) {
	g.lastSpokenKey = TextKey(text)
	g.lastSpokenAt = now
	if IsQuestion(text) {
		g.waitingForAnswer = true
		g.lastQuestionAt = now
		g.lastQuestionText = strings.TrimSpace(text)
		return
	}
	if !IsUrgent(text) {
		g.lastRoutineAt = now
	}
}

// AnswerReceived clears the pending question.
func (g *Gate) AnswerReceived() {
	g.waitingForAnswer = false
}

func (g *Gate) WaitingForAnswer() bool { return g.waitingForAnswer }

func (g *Gate) LastQuestion() string { return g.lastQuestionText }

func (g *Gate) LastSpokenAt() time.Time { return g.lastSpokenAt }

// TextKey collapses whitespace and case-folds text.
func TextKey(text string) string {
	return strings.ToLower(strings.TrimSpace(whitespace.ReplaceAllString(text, " ")))
}

// IsUrgent reports whether text carries safety-critical content.
func IsUrgent(text string) bool {
	return urgentPattern.MatchString(text)
}

func IsQuestion(text string) bool {
	return strings.HasSuffix(strings.TrimSpace(text), "?")
}

// RelatesTo reports whether text talks about step, by token overlap or containment.
func RelatesTo(text, step string, threshold float64) bool {
	a, b := textkey.Normalize(text), textkey.Normalize(step)
	if a == "" || b == "" {
		return false
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return true
	}
	return textkey.Overlap(text, step) >= threshold
}

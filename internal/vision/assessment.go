package vision

import (
	"encoding/json"
	"strconv"
	"strings"
)

// StepStatus is the per-frame judgment of the locked step.
type StepStatus string

const (
	StatusNotStarted StepStatus = "not_started"
	StatusInProgress StepStatus = "in_progress"
	StatusComplete   StepStatus = "complete"
	StatusUnclear    StepStatus = "unclear"
)

const (
	maxObservationWords = 14
	maxReasonWords      = 18

	fallbackObservation = "No clear visual change."
	fallbackReason      = "Insufficient visual evidence."
	defaultConfidence   = 0.5
)

// Assessment is the coerced output of one vision classification call.
type Assessment struct {
	Observation string     `json:"observation"`
	StepStatus  StepStatus `json:"step_status"`
	Confidence  float64    `json:"confidence"`
	Reason      string     `json:"reason"`
}

// Valid reports whether s is one of the four known statuses.
func (s StepStatus) Valid() bool {
	switch s {
	case StatusNotStarted, StatusInProgress, StatusComplete, StatusUnclear:
		return true
	}
	return false
}

// ParseAssessment extracts an Assessment from free-form classifier output.
// It never fails: anything unreadable degrades to safe defaults.
func ParseAssessment(text string, stepLocked bool) Assessment {
	raw := decodeObject(text)

	a := Assessment{
		Observation: truncateWords(stringField(raw, "observation"), maxObservationWords),
		Reason:      truncateWords(stringField(raw, "reason"), maxReasonWords),
		Confidence:  confidenceField(raw),
		StepStatus:  StepStatus(strings.ToLower(strings.TrimSpace(stringField(raw, "step_status")))),
	}
	if a.Observation == "" {
		a.Observation = fallbackObservation
	}
	if a.Reason == "" {
		a.Reason = fallbackReason
	}
	if !a.StepStatus.Valid() {
		if stepLocked {
			a.StepStatus = StatusUnclear
		} else {
			a.StepStatus = StatusNotStarted
		}
	}
	return a
}

func decodeObject(text string) map[string]any {
	var m map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &m); err == nil && m != nil {
		return m
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		m = nil
		if err := json.Unmarshal([]byte(text[start:end+1]), &m); err == nil && m != nil {
			return m
		}
	}
	return map[string]any{}
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return strings.TrimSpace(s)
}

func confidenceField(m map[string]any) float64 {
	var c float64
	switch v := m["confidence"].(type) {
	case float64:
		c = v
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return defaultConfidence
		}
		c = f
	default:
		return defaultConfidence
	}
	if c != c { // NaN
		return defaultConfidence
	}
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

func truncateWords(s string, max int) string {
	words := strings.Fields(s)
	if len(words) <= max {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:max], " ") + "..."
}

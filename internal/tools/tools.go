package tools

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
)

// Tool names exposed to the conversational model.
const (
	Speak          = "speak"
	StaySilent     = "stay_silent"
	SetTimer       = "set_timer"
	CancelTimer    = "cancel_timer"
	UpdatePlan     = "update_plan"
	UpdateState    = "update_state"
	LookupRecipe   = "lookup_recipe"
	SetPanel       = "set_panel"
	ClearPanel     = "clear_panel"
	SetOverlay     = "set_overlay"
	ClearOverlay   = "clear_overlay"
	CompleteRecipe = "complete_recipe"
)

var ErrInvalidArgs = errors.New("invalid tool arguments")

// Definition is a function tool in the model's wire format.
type Definition struct {
	Type        string         `json:"type"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Result is the JSON object returned to the model for one call.
type Result map[string]any

func OK(fields map[string]any) Result {
	r := Result{"ok": true}
	for k, v := range fields {
		r[k] = v
	}
	return r
}

func Fail(msg string, fields map[string]any) Result {
	r := Result{"ok": false, "error": msg}
	for k, v := range fields {
		r[k] = v
	}
	return r
}

// JSON renders the result as a call output. Results are built from plain values
// so marshalling does not fail in practice.
func (r Result) JSON() string {
	b, err := json.Marshal(r)
	if err != nil {
		return `{"ok":false,"error":"unserializable result"}`
	}
	return string(b)
}

// Args is a decoded argument object.
type Args map[string]any

// ParseArgs decodes the model's argument string. Empty input is an empty object.
func ParseArgs(raw string) (Args, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Args{}, nil
	}
	var a Args
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgs, err)
	}
	if a == nil {
		a = Args{}
	}
	return a, nil
}

// RequiredString returns a non-blank string argument.
func (a Args) RequiredString(key string) (string, error) {
	s, ok := a[key].(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("%w: %s must be a non-empty string", ErrInvalidArgs, key)
	}
	return strings.TrimSpace(s), nil
}

func (a Args) OptionalString(key, def string) string {
	if s, ok := a[key].(string); ok && strings.TrimSpace(s) != "" {
		return strings.TrimSpace(s)
	}
	return def
}

// RequiredNumber accepts JSON numbers and numeric strings.
func (a Args) RequiredNumber(key string) (float64, error) {
	f, ok := number(a[key])
	if !ok {
		return 0, fmt.Errorf("%w: %s must be a number", ErrInvalidArgs, key)
	}
	return f, nil
}

func (a Args) OptionalNumber(key string, def float64) float64 {
	if f, ok := number(a[key]); ok {
		return f
	}
	return def
}

func number(v any) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case string:
		if _, err := fmt.Sscanf(strings.TrimSpace(t), "%g", &f); err != nil {
			return 0, false
		}
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func str(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

func object(props map[string]any, required ...string) map[string]any {
	if required == nil {
		required = []string{}
	}
	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"required":             required,
		"additionalProperties": false,
	}
}

func fn(name, desc string, params map[string]any) Definition {
	return Definition{Type: "function", Name: name, Description: desc, Parameters: params}
}

// Definitions lists every tool in a stable order.
func Definitions() []Definition {
	return []Definition{
		fn(Speak, "Say one short sentence out loud to the cook.",
			object(map[string]any{"message": str("What to say.")}, "message")),
		fn(StaySilent, "Choose not to speak this turn.",
			object(map[string]any{"reason": str("Why silence is right.")}, "reason")),
		fn(SetTimer, "Start a kitchen timer.",
			object(map[string]any{
				"duration_seconds": map[string]any{"type": "number", "description": "Timer length in seconds."},
				"label":            str("Short timer name."),
			}, "duration_seconds", "label")),
		fn(CancelTimer, "Cancel a running timer by label.",
			object(map[string]any{"label": str("Timer name.")}, "label")),
		fn(UpdatePlan, "Record a change to the cooking plan.",
			object(map[string]any{"changes": str("What changed.")}, "changes")),
		fn(UpdateState, "Record an observation about the kitchen.",
			object(map[string]any{"observation": str("What you noticed.")}, "observation")),
		fn(LookupRecipe, "Find a saved recipe by dish name.",
			object(map[string]any{"dish": str("Dish name.")}, "dish")),
		fn(SetPanel, "Show the single current step. New steps only lock once the camera confirms the current one.",
			object(map[string]any{
				"cooking":   str("Dish being cooked."),
				"next_step": str("One atomic, visually checkable action."),
			}, "cooking", "next_step")),
		fn(ClearPanel, "Remove the current step from the panel.", object(map[string]any{})),
		fn(SetOverlay, "Show a short transient overlay.",
			object(map[string]any{
				"text":        str("Overlay text."),
				"priority":    map[string]any{"type": "string", "enum": []string{"low", "normal", "high"}},
				"ttl_seconds": map[string]any{"type": "number", "description": "Seconds to show it."},
			}, "text")),
		fn(ClearOverlay, "Remove the overlay.", object(map[string]any{})),
		fn(CompleteRecipe, "Save the finished recipe once the cook confirmed the dish is done.",
			object(map[string]any{
				"dish":   str("Dish name."),
				"recipe": str("Full recipe as cooked."),
			}, "dish", "recipe")),
	}
}

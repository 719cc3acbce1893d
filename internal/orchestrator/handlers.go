package orchestrator

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"math"
	"time"

	"yuzu/souschef/internal/catalog"
	"yuzu/souschef/internal/session"
	"yuzu/souschef/internal/steplock"
	"yuzu/souschef/internal/tools"
)

type toolHandler func(ctx context.Context, st *session.State, args tools.Args) (tools.Result, error)

const (
	defaultOverlayTTL = 8
	minOverlayTTL     = 1
	maxOverlayTTL     = 120
)

// complete_recipe precondition failures.
const (
	errNoActiveSession        = "no_active_session"
	errCompletionNotConfirmed = "completion_not_confirmed"
	errAlreadySaved           = "already_saved"
	errDishMismatch           = "dish_mismatch"
)

func (o *Orchestrator) toolHandlers() map[string]toolHandler {
	return map[string]toolHandler{
		tools.Speak:          o.speak,
		tools.StaySilent:     o.staySilent,
		tools.SetTimer:       o.setTimer,
		tools.CancelTimer:    o.cancelTimer,
		tools.UpdatePlan:     o.updatePlan,
		tools.UpdateState:    o.updateState,
		tools.LookupRecipe:   o.lookupRecipe,
		tools.SetPanel:       o.setPanel,
		tools.ClearPanel:     o.clearPanel,
		tools.SetOverlay:     o.setOverlay,
		tools.ClearOverlay:   o.clearOverlay,
		tools.CompleteRecipe: o.completeRecipe,
	}
}

func (o *Orchestrator) speak(ctx context.Context, st *session.State, args tools.Args) (tools.Result, error) {
	text, err := args.RequiredString("message")
	if err != nil {
		return nil, err
	}
	now := o.now()
	reason := st.Speech.ShouldSuppress(text, now)
	if reason == "" {
		reason = st.Speech.CheckStep(text, st.Steps.Locked(), st.Steps.FrameAllowsAdvance(), now)
	}
	if reason != "" {
		metricSpeech.WithLabelValues(reason).Inc()
		o.events.AppendEvent(st.ID, "speech_suppressed", map[string]any{"text": text, "reason": reason})
		log.Printf("[orch] speech suppressed sid=%s reason=%s text=%q", st.ID, reason, text)
		return tools.OK(map[string]any{"spoken": false, "suppressed": true, "reason": reason}), nil
	}

	payload := map[string]any{"text": text}
	if o.voice != nil {
		audio, mime, err := o.voice.Synthesize(ctx, text)
		if err != nil {
			metricSpeech.WithLabelValues("tts_failed").Inc()
			log.Printf("[orch] tts failed sid=%s: %v", st.ID, err)
			return tools.Fail("tts_failed", map[string]any{"spoken": false, "detail": err.Error()}), nil
		}
		payload["audio_base64"] = base64.StdEncoding.EncodeToString(audio)
		payload["mime"] = mime
	}
	o.push(ctx, st.ID, MsgSpeech, payload)
	st.Speech.Record(text, now)
	metricSpeech.WithLabelValues("voiced").Inc()
	o.events.AppendEvent(st.ID, "speech_voiced", map[string]any{"text": text})
	return tools.OK(map[string]any{"spoken": true}), nil
}

func (o *Orchestrator) staySilent(_ context.Context, st *session.State, args tools.Args) (tools.Result, error) {
	reason, err := args.RequiredString("reason")
	if err != nil {
		return nil, err
	}
	st.AppendNote("silent: " + reason)
	return tools.OK(map[string]any{"silent": true}), nil
}

func (o *Orchestrator) setTimer(ctx context.Context, st *session.State, args tools.Args) (tools.Result, error) {
	secs, err := args.RequiredNumber("duration_seconds")
	if err != nil {
		return nil, err
	}
	label, err := args.RequiredString("label")
	if err != nil {
		return nil, err
	}
	if o.timers == nil {
		return tools.Fail("timers_unavailable", nil), nil
	}
	tm, err := o.timers.Set(st.ID, secs, label)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", tools.ErrInvalidArgs, err)
	}
	o.push(ctx, st.ID, MsgTimer, map[string]any{
		"action":           "set",
		"label":            tm.Label,
		"duration_seconds": tm.DurationSeconds,
		"ends_at_ms":       tm.EndsAt.UnixMilli(),
	})
	return tools.OK(map[string]any{
		"label":            tm.Label,
		"duration_seconds": tm.DurationSeconds,
		"started_at":       tm.StartedAt.UTC().Format(time.RFC3339),
		"ends_at":          tm.EndsAt.UTC().Format(time.RFC3339),
	}), nil
}

func (o *Orchestrator) cancelTimer(ctx context.Context, st *session.State, args tools.Args) (tools.Result, error) {
	label, err := args.RequiredString("label")
	if err != nil {
		return nil, err
	}
	if o.timers == nil {
		return tools.Fail("timers_unavailable", nil), nil
	}
	cancelled := o.timers.Cancel(st.ID, label)
	if cancelled {
		o.push(ctx, st.ID, MsgTimer, map[string]any{"action": "cancel", "label": label})
	}
	return tools.OK(map[string]any{"label": label, "cancelled": cancelled}), nil
}

func (o *Orchestrator) updatePlan(_ context.Context, st *session.State, args tools.Args) (tools.Result, error) {
	changes, err := args.RequiredString("changes")
	if err != nil {
		return nil, err
	}
	st.AppendPlan(changes)
	return tools.OK(map[string]any{"plan_entries": len(st.Plan)}), nil
}

func (o *Orchestrator) updateState(_ context.Context, st *session.State, args tools.Args) (tools.Result, error) {
	obs, err := args.RequiredString("observation")
	if err != nil {
		return nil, err
	}
	st.AppendObservation(obs)
	return tools.OK(map[string]any{"observations": len(st.Observations)}), nil
}

func (o *Orchestrator) lookupRecipe(ctx context.Context, _ *session.State, args tools.Args) (tools.Result, error) {
	dish, err := args.RequiredString("dish")
	if err != nil {
		return nil, err
	}
	entries, err := o.catalog.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("catalog list: %w", err)
	}
	m := catalog.LookupWithThreshold(dish, entries, o.fuzzyThreshold)
	if m.Entry == nil {
		return tools.OK(map[string]any{"found": false, "match_type": string(m.Type)}), nil
	}
	return tools.OK(map[string]any{
		"found":        true,
		"match_type":   string(m.Type),
		"score":        math.Round(m.Score*100) / 100,
		"dish":         m.Entry.Dish,
		"recipe":       m.Entry.RecipeText,
		"times_cooked": m.Entry.TimesCooked,
	}), nil
}

func (o *Orchestrator) setPanel(ctx context.Context, st *session.State, args tools.Args) (tools.Result, error) {
	step, err := args.RequiredString("next_step")
	if err != nil {
		return nil, err
	}
	dish := args.OptionalString("cooking", st.Dish)

	out := st.Steps.Propose(dish, step)
	if !out.Locked {
		metricStepProposals.WithLabelValues(out.Reason).Inc()
		o.events.AppendEvent(st.ID, "step_rejected", map[string]any{"reason": out.Reason, "candidate": out.Candidate})
		log.Printf("[orch] step rejected sid=%s reason=%s candidate=%q", st.ID, out.Reason, out.Candidate)
		fields := map[string]any{"locked": false}
		if out.Reason == steplock.ReasonNotVisuallyDone {
			fields["current_step"] = out.CurrentStep
			fields["candidate"] = out.Candidate
			fields["frame_status"] = string(out.FrameStatus)
		}
		return tools.Fail(out.Reason, fields), nil
	}

	outcome := "locked"
	if out.Advanced {
		outcome = "advanced"
	}
	metricStepProposals.WithLabelValues(outcome).Inc()
	o.events.AppendEvent(st.ID, "step_locked", map[string]any{"step": out.Step, "advanced": out.Advanced})
	o.push(ctx, st.ID, MsgPanel, map[string]any{"dish": dish, "step": out.Step, "advanced": out.Advanced})
	return tools.OK(map[string]any{"locked": true, "advanced": out.Advanced, "step": out.Step}), nil
}

func (o *Orchestrator) clearPanel(ctx context.Context, st *session.State, _ tools.Args) (tools.Result, error) {
	st.Steps.Clear()
	o.push(ctx, st.ID, MsgPanel, map[string]any{"dish": st.Dish, "step": "", "advanced": false})
	return tools.OK(nil), nil
}

func (o *Orchestrator) setOverlay(ctx context.Context, st *session.State, args tools.Args) (tools.Result, error) {
	text, err := args.RequiredString("text")
	if err != nil {
		return nil, err
	}
	priority := args.OptionalString("priority", "normal")
	switch priority {
	case "low", "normal", "high":
	default:
		return nil, fmt.Errorf("%w: priority must be low, normal or high", tools.ErrInvalidArgs)
	}
	ttl := math.Round(args.OptionalNumber("ttl_seconds", defaultOverlayTTL))
	ttl = math.Max(minOverlayTTL, math.Min(maxOverlayTTL, ttl))

	o.push(ctx, st.ID, MsgOverlay, map[string]any{"action": "show", "text": text, "priority": priority, "ttl_seconds": ttl})
	return tools.OK(map[string]any{"text": text, "priority": priority, "ttl_seconds": ttl}), nil
}

func (o *Orchestrator) clearOverlay(ctx context.Context, st *session.State, _ tools.Args) (tools.Result, error) {
	o.push(ctx, st.ID, MsgOverlay, map[string]any{"action": "clear"})
	return tools.OK(nil), nil
}

func (o *Orchestrator) completeRecipe(ctx context.Context, st *session.State, args tools.Args) (tools.Result, error) {
	dish, err := args.RequiredString("dish")
	if err != nil {
		return nil, err
	}
	recipe, err := args.RequiredString("recipe")
	if err != nil {
		return nil, err
	}
	notSaved := map[string]any{"saved": false}
	switch {
	case !st.Active():
		return tools.Fail(errNoActiveSession, notSaved), nil
	case !st.CompletionConfirmed:
		return tools.Fail(errCompletionNotConfirmed, notSaved), nil
	case st.RecipeSaved:
		return tools.Fail(errAlreadySaved, notSaved), nil
	case !o.sameDish(dish, st.Dish):
		return tools.Fail(errDishMismatch, map[string]any{"saved": false, "session_dish": st.Dish}), nil
	}

	entry, err := o.catalog.Save(ctx, st.Dish, recipe)
	if err != nil {
		log.Printf("[orch] recipe save failed sid=%s: %v", st.ID, err)
		return tools.Fail("save_failed", map[string]any{"saved": false, "detail": err.Error()}), nil
	}
	st.RecipeSaved = true
	metricRecipesSaved.Inc()
	o.events.AppendEvent(st.ID, "recipe_saved", map[string]any{"dish": entry.Dish, "times_cooked": entry.TimesCooked})
	return tools.OK(map[string]any{"saved": true, "dish": entry.Dish, "dish_key": entry.DishKey, "times_cooked": entry.TimesCooked}), nil
}

// sameDish accepts the model's dish name when it matches the session dish
// exactly or fuzzily.
func (o *Orchestrator) sameDish(claimed, sessionDish string) bool {
	a, b := catalog.NormalizeDishKey(claimed), catalog.NormalizeDishKey(sessionDish)
	if a == "" || b == "" {
		return false
	}
	return a == b || catalog.Score(a, b) >= o.fuzzyThreshold
}

package orchestrator

import (
	"context"
	"fmt"
	"log"

	"yuzu/souschef/internal/llm"
	"yuzu/souschef/internal/session"
	"yuzu/souschef/internal/tools"
)

// turn is the user side of the first model request for one event.
type turn struct {
	Text  string
	Image []byte
}

// resolve drives one event's tool-calling exchange until the model answers
// without calls. A model turn that still asks for tools once maxRounds turns
// were spent fails the event with ErrToolLoopExceeded; its calls are not run.
func (o *Orchestrator) resolve(ctx context.Context, st *session.State, t turn) error {
	if o.model == nil {
		return fmt.Errorf("%w: no model configured", llm.ErrNotConfigured)
	}
	req := llm.Request{
		Instructions: instructionsFor(o.instructions, st, o.now().UnixMilli()),
		PreviousID:   st.ContinuationID,
		Text:         t.Text,
		ImageJPEG:    t.Image,
		Tools:        o.toolDefs,
	}
	for round := 1; ; round++ {
		resp, err := o.model.Respond(ctx, req)
		if err != nil {
			// The conversation may now hold unanswered calls; start fresh next event.
			st.ContinuationID = ""
			return fmt.Errorf("model turn %d: %w", round, err)
		}
		st.ContinuationID = resp.ID

		if len(resp.Calls) == 0 {
			metricToolRounds.Observe(float64(round))
			if resp.Text != "" {
				st.AppendNote(resp.Text)
			}
			return nil
		}
		if round >= o.maxRounds {
			metricToolLoopExceeded.Inc()
			st.ContinuationID = ""
			o.events.AppendEvent(st.ID, "tool_loop_exceeded", map[string]any{"rounds": round, "pending_calls": len(resp.Calls)})
			log.Printf("[orch] tool loop exceeded sid=%s rounds=%d", st.ID, round)
			return ErrToolLoopExceeded
		}

		outputs := make([]llm.ToolOutput, 0, len(resp.Calls))
		for _, call := range resp.Calls {
			res := o.dispatch(ctx, st, call)
			outputs = append(outputs, llm.ToolOutput{CallID: call.CallID, Output: res.JSON()})
		}
		req = llm.Request{
			Instructions: instructionsFor(o.instructions, st, o.now().UnixMilli()),
			PreviousID:   st.ContinuationID,
			Results:      outputs,
			Tools:        o.toolDefs,
		}
	}
}

// dispatch runs one call. It never fails: errors become {ok:false} results.
func (o *Orchestrator) dispatch(ctx context.Context, st *session.State, call llm.FunctionCall) tools.Result {
	h, ok := o.handlers[call.Name]
	if !ok {
		metricToolCalls.WithLabelValues("unknown", "error").Inc()
		log.Printf("[orch] unknown tool sid=%s name=%q", st.ID, call.Name)
		return tools.Fail("unknown_tool", map[string]any{"tool": call.Name})
	}
	args, err := tools.ParseArgs(call.Arguments)
	var res tools.Result
	if err == nil {
		res, err = h(ctx, st, args)
	}
	if err != nil {
		log.Printf("[orch] tool error sid=%s tool=%s: %v", st.ID, call.Name, err)
		res = tools.Fail(err.Error(), nil)
	}
	status := "ok"
	if okv, _ := res["ok"].(bool); !okv {
		status = "rejected"
		if err != nil {
			status = "error"
		}
	}
	metricToolCalls.WithLabelValues(call.Name, status).Inc()
	o.events.AppendEvent(st.ID, "tool_call", map[string]any{"tool": call.Name, "status": status})
	return res
}

package main

import (
	"context"
	"encoding/base64"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"yuzu/souschef/internal/rpc"
)

func main() {
	orchAddr := flag.String("orch", ":9090", "Orchestrator gRPC address")
	sessionID := flag.String("session", "test-e2e-"+time.Now().Format("150405"), "Session ID")
	dish := flag.String("dish", "pancakes", "Dish to start the session with")
	text := flag.String("text", "What do I do first?", "Text to send as a user message")
	frame := flag.String("frame", "", "Optional JPEG file to send as a camera frame")
	timeout := flag.Duration("timeout", 60*time.Second, "Overall timeout")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	client := rpc.NewClient(*orchAddr)
	defer client.Close()

	fmt.Printf("=== E2E Internal Test ===\n")
	fmt.Printf("Session: %s\n", *sessionID)
	fmt.Printf("Dish: %q Text: %q\n\n", *dish, *text)

	fmt.Println("[1] Sending session_start...")
	submit(ctx, client, map[string]any{"session_id": *sessionID, "type": "session_start", "dish": *dish})

	fmt.Printf("[2] Sending user_message: %q\n", *text)
	submit(ctx, client, map[string]any{"session_id": *sessionID, "type": "user_message", "text": *text})

	if *frame != "" {
		jpeg, err := os.ReadFile(*frame)
		if err != nil {
			log.Fatalf("read frame: %v", err)
		}
		fmt.Printf("[3] Sending frame (%d bytes)...\n", len(jpeg))
		submit(ctx, client, map[string]any{
			"session_id":     *sessionID,
			"type":           "frame",
			"jpeg_base64":    base64.StdEncoding.EncodeToString(jpeg),
			"captured_at_ms": float64(time.Now().UnixMilli()),
		})
	}

	fmt.Println("\n[*] Final state")
	out, err := client.State(ctx, *sessionID)
	if err != nil {
		log.Fatalf("state: %v", err)
	}
	printState(out)
}

func submit(ctx context.Context, c *rpc.Client, req map[string]any) {
	var (
		out map[string]any
		err error
	)
	for attempt := 0; attempt < 3; attempt++ {
		if out, err = c.Submit(ctx, req); err == nil {
			break
		}
		log.Printf("submit %v failed (attempt %d): %v", req["type"], attempt+1, err)
		if rerr := c.Reconnect(ctx, attempt); rerr != nil {
			log.Fatalf("reconnect: %v", rerr)
		}
	}
	if err != nil {
		log.Fatalf("submit %v: %v", req["type"], err)
	}
	ts := time.Now().Format("15:04:05.000")
	if ok, _ := out["ok"].(bool); !ok {
		fmt.Printf("[%s] <- error: %v\n", ts, out["error"])
		return
	}
	fmt.Printf("[%s] <- ok\n", ts)
	if state, ok := out["state"].(map[string]any); ok {
		printState(map[string]any{"state": state})
	}
}

func printState(out map[string]any) {
	state, _ := out["state"].(map[string]any)
	fmt.Printf("    dish=%v locked=%q pending=%q waiting_for_answer=%v\n",
		state["dish"], state["locked_step"], state["pending_step"], state["waiting_for_answer"])
	if done, ok := state["completed_steps"].([]any); ok && len(done) > 0 {
		steps := make([]string, 0, len(done))
		for _, s := range done {
			steps = append(steps, fmt.Sprint(s))
		}
		fmt.Printf("    completed: %s\n", strings.Join(steps, " | "))
	}
}

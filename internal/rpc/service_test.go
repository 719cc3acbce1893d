package rpc

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"yuzu/souschef/internal/orchestrator"
	"yuzu/souschef/internal/session"
)

type fakeOrch struct {
	mu     sync.Mutex
	events []orchestrator.Event
	fail   error
}

func (f *fakeOrch) Handle(ctx context.Context, sid string, ev orchestrator.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return f.fail
}

func (f *fakeOrch) Snapshot(ctx context.Context, sid string) (session.Snapshot, error) {
	return session.Snapshot{ID: sid, Dish: "pancakes", CompletedSteps: []string{"Grab 2 eggs."}}, nil
}

func startServer(t *testing.T, orch Orchestrator) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	s := grpc.NewServer()
	Register(s, orch)
	go s.Serve(lis)
	t.Cleanup(s.Stop)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, err := grpc.DialContext(ctx, "bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestSubmitRunsEventAndReturnsState(t *testing.T) {
	orch := &fakeOrch{}
	conn := startServer(t, orch)
	c := &Client{conn: conn}
	ctx := context.Background()

	out, err := c.Submit(ctx, map[string]any{"session_id": "s1", "type": "session_start", "dish": "pancakes"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if out["ok"] != true {
		t.Fatalf("expected ok, got %v", out)
	}
	state := out["state"].(map[string]any)
	if state["dish"] != "pancakes" || len(state["completed_steps"].([]any)) != 1 {
		t.Fatalf("unexpected state %v", state)
	}
	if len(orch.events) != 1 || orch.events[0].Kind != orchestrator.KindSessionStart || orch.events[0].Dish != "pancakes" {
		t.Fatalf("unexpected events %+v", orch.events)
	}

	orch.fail = orchestrator.ErrToolLoopExceeded
	out, err = c.Submit(ctx, map[string]any{"session_id": "s1", "type": "user_message", "text": "hi"})
	if err != nil {
		t.Fatalf("event failure should not be an rpc error: %v", err)
	}
	if out["ok"] != false || out["error"] != "tool_loop_exceeded" {
		t.Fatalf("unexpected failure reply %v", out)
	}
}

func TestSubmitRejectsBadRequests(t *testing.T) {
	c := &Client{conn: startServer(t, &fakeOrch{})}
	ctx := context.Background()
	for _, req := range []map[string]any{
		{"type": "reset"},
		{"session_id": "s1", "type": "dance"},
		{"session_id": "s1", "type": "frame", "jpeg_base64": ""},
		{"session_id": "s1", "type": "timer_fired"},
	} {
		_, err := c.Submit(ctx, req)
		if status.Code(err) != codes.InvalidArgument {
			t.Errorf("request %v: expected InvalidArgument, got %v", req, err)
		}
	}
	if _, err := c.State(ctx, ""); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument for empty session, got %v", err)
	}
}

func TestHealthServing(t *testing.T) {
	conn := startServer(t, &fakeOrch{})
	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("expected SERVING, got %v", resp.GetStatus())
	}
}

func TestClientReconnectHonoursContext(t *testing.T) {
	c := NewClient("127.0.0.1:1")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.Reconnect(ctx, 3); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

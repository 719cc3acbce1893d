package rpc

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"yuzu/souschef/internal/orchestrator"
	"yuzu/souschef/internal/session"
)

const ServiceName = "souschef.v1.SessionControl"

// Orchestrator is the session runtime the service drives.
type Orchestrator interface {
	Handle(ctx context.Context, sessionID string, ev orchestrator.Event) error
	Snapshot(ctx context.Context, sessionID string) (session.Snapshot, error)
}

// ControlServer is the SessionControl service. Requests and responses are
// google.protobuf.Struct so no generated code is needed.
type ControlServer interface {
	Submit(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	State(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ControlServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Submit", Handler: unary("Submit", ControlServer.Submit)},
		{MethodName: "State", Handler: unary("State", ControlServer.State)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "souschef/v1/control.proto",
}

func unary(method string, call func(ControlServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ControlServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + method}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return call(srv.(ControlServer), ctx, req.(*structpb.Struct))
		})
	}
}

// Register installs SessionControl and the standard health service on s.
func Register(s *grpc.Server, orch Orchestrator) *grpchealth.Server {
	s.RegisterService(&serviceDesc, &Server{orch: orch})
	hs := grpchealth.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	return hs
}

type Server struct {
	orch Orchestrator
}

// Submit runs one event through the session lane and replies once it finished.
// Event failures are reported in the reply, not as RPC errors.
func (s *Server) Submit(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	sid, ev, err := decodeEvent(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	runErr := s.orch.Handle(ctx, sid, ev)
	if errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded) {
		return nil, status.FromContextError(runErr).Err()
	}
	return s.reply(ctx, sid, runErr)
}

func (s *Server) State(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	sid := strings.TrimSpace(req.GetFields()["session_id"].GetStringValue())
	if sid == "" {
		return nil, status.Error(codes.InvalidArgument, "missing session_id")
	}
	return s.reply(ctx, sid, nil)
}

func (s *Server) reply(ctx context.Context, sid string, runErr error) (*structpb.Struct, error) {
	snap, err := s.orch.Snapshot(ctx, sid)
	if err != nil {
		return nil, status.Error(codes.Unavailable, err.Error())
	}
	state, err := toMap(snap)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	out := map[string]any{"ok": runErr == nil, "state": state}
	if runErr != nil {
		out["error"] = runErr.Error()
	}
	resp, err := structpb.NewStruct(out)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return resp, nil
}

func decodeEvent(req *structpb.Struct) (string, orchestrator.Event, error) {
	f := req.GetFields()
	sid := strings.TrimSpace(f["session_id"].GetStringValue())
	if sid == "" {
		return "", orchestrator.Event{}, errors.New("missing session_id")
	}
	kind, err := orchestrator.ParseKind(f["type"].GetStringValue())
	if err != nil {
		return "", orchestrator.Event{}, err
	}
	ev := orchestrator.Event{
		Kind:         kind,
		Dish:         f["dish"].GetStringValue(),
		Text:         f["text"].GetStringValue(),
		CapturedAtMs: int64(f["captured_at_ms"].GetNumberValue()),
	}
	if kind == orchestrator.KindTimerFired {
		return "", orchestrator.Event{}, errors.New("timer_fired is server-side only")
	}
	if kind == orchestrator.KindFrame {
		jpeg, err := base64.StdEncoding.DecodeString(f["jpeg_base64"].GetStringValue())
		if err != nil || len(jpeg) == 0 {
			return "", orchestrator.Event{}, errors.New("frame needs jpeg_base64")
		}
		ev.JPEG = jpeg
	}
	return sid, ev, nil
}

// toMap turns a JSON-tagged value into Struct-compatible data.
func toMap(v any) (map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	err = json.Unmarshal(b, &m)
	return m, err
}

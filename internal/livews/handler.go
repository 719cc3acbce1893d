package livews

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	ws "nhooyr.io/websocket"

	"yuzu/souschef/internal/auth"
	"yuzu/souschef/internal/config"
	"yuzu/souschef/internal/orchestrator"
	"yuzu/souschef/internal/store"
)

const writeTimeout = 5 * time.Second

// Message is the inbound client envelope.
type Message struct {
	Type      string         `json:"type"`
	TsMs      int64          `json:"ts_ms"`
	SessionID string         `json:"session_id"`
	Seq       int64          `json:"seq"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// Submitter queues events onto a session's lane.
type Submitter interface {
	Submit(sessionID string, ev orchestrator.Event) <-chan error
}

type Server struct {
	Cfg   config.Config
	Store *store.Store
	Reg   *Registry
	Orch  Submitter
}

func NewServer(cfg config.Config, st *store.Store, reg *Registry, orch Submitter) *Server {
	return &Server{Cfg: cfg, Store: st, Reg: reg, Orch: orch}
}

func (s *Server) HandleLiveWS(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		http.Error(w, "missing session_id", http.StatusBadRequest)
		return
	}
	if s.Store.GetSession(sessionID) == nil {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}
	token := bearer(r)
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}
	skew := time.Duration(s.Cfg.Live.TokenSkewSecs) * time.Second
	if _, _, err := auth.ValidateLiveToken(s.Cfg.Live.TokenSecret, token, sessionID, time.Now(), skew); err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	c, err := ws.Accept(w, r, nil)
	if err != nil {
		log.Printf("[live] ws accept: %v", err)
		return
	}
	c.SetReadLimit(8 << 20)
	if s.Reg.Replace(sessionID, c) {
		s.Store.AppendEvent(sessionID, "live_replaced", nil)
	}
	s.Store.SetLiveConnected(sessionID, true)
	s.Store.AppendEvent(sessionID, "live_connected", nil)

	ctx := r.Context()
	for {
		typ, data, err := c.Read(ctx)
		if err != nil {
			break
		}
		if typ != ws.MessageText && typ != ws.MessageBinary {
			continue
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			s.Store.AppendEvent(sessionID, "live_msg_invalid", map[string]any{"error": err.Error()})
			continue
		}
		ev, err := toEvent(msg)
		if err != nil {
			s.Store.AppendEvent(sessionID, "live_msg_invalid", map[string]any{"type": msg.Type, "error": err.Error()})
			s.sendError(sessionID, msg, err)
			continue
		}
		done := s.Orch.Submit(sessionID, ev)
		go s.awaitResult(sessionID, msg, done)
	}
	_ = c.Close(ws.StatusNormalClosure, "done")
	s.Reg.Remove(sessionID, c)
	s.Store.SetLiveConnected(sessionID, false)
	s.Store.AppendEvent(sessionID, "live_disconnected", nil)
}

func (s *Server) awaitResult(sessionID string, msg Message, done <-chan error) {
	if err := <-done; err != nil {
		s.sendError(sessionID, msg, err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	_ = s.Reg.SendJSON(ctx, sessionID, orchestrator.Message{
		Type:      "ack",
		SessionID: sessionID,
		TsMs:      time.Now().UnixMilli(),
		Payload:   map[string]any{"seq": msg.Seq, "event": msg.Type},
	})
}

func (s *Server) sendError(sessionID string, msg Message, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	_ = s.Reg.SendJSON(ctx, sessionID, orchestrator.Message{
		Type:      "error",
		SessionID: sessionID,
		TsMs:      time.Now().UnixMilli(),
		Payload:   map[string]any{"seq": msg.Seq, "event": msg.Type, "error": err.Error()},
	})
}

var errBadFrame = errors.New("frame needs jpeg_base64")

// toEvent maps a client message onto an orchestrator event.
func toEvent(msg Message) (orchestrator.Event, error) {
	kind, err := orchestrator.ParseKind(msg.Type)
	if err != nil {
		return orchestrator.Event{}, err
	}
	ev := orchestrator.Event{Kind: kind}
	p := msg.Payload
	switch kind {
	case orchestrator.KindSessionStart:
		ev.Dish, _ = p["dish"].(string)
	case orchestrator.KindUserMessage:
		ev.Text, _ = p["text"].(string)
	case orchestrator.KindFrame:
		raw, _ := p["jpeg_base64"].(string)
		if i := strings.Index(raw, ","); strings.HasPrefix(raw, "data:") && i > 0 {
			raw = raw[i+1:]
		}
		jpeg, err := base64.StdEncoding.DecodeString(raw)
		if err != nil || len(jpeg) == 0 {
			return orchestrator.Event{}, errBadFrame
		}
		ev.JPEG = jpeg
		ev.CapturedAtMs = msg.TsMs
		if v, ok := p["captured_at_ms"].(float64); ok {
			ev.CapturedAtMs = int64(v)
		}
	case orchestrator.KindTimerFired:
		return orchestrator.Event{}, errors.New("timer_fired is server-side only")
	}
	return ev, nil
}

func bearer(r *http.Request) string {
	if authz := r.Header.Get("Authorization"); strings.HasPrefix(authz, "Bearer ") {
		return strings.TrimPrefix(authz, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

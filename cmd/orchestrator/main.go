package main

import (
	"context"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"

	"yuzu/souschef/internal/catalog"
	"yuzu/souschef/internal/config"
	"yuzu/souschef/internal/llm"
	"yuzu/souschef/internal/orchestrator"
	"yuzu/souschef/internal/rpc"
	"yuzu/souschef/internal/session"
	"yuzu/souschef/internal/store"
	"yuzu/souschef/internal/timers"
	"yuzu/souschef/internal/tts"
)

var (
	addr = flag.String("addr", "", "orchestrator listen addr (defaults to RPC_ADDR)")
)

// eventSink records outbound messages in the session event log; the headless
// control plane has no client socket to push to.
type eventSink struct{ st *store.Store }

func (s eventSink) Push(ctx context.Context, msg orchestrator.Message) error {
	log.Printf("[orch] push sid=%s type=%s", msg.SessionID, msg.Type)
	s.st.AppendEvent(msg.SessionID, "push_"+msg.Type, msg.Payload)
	return nil
}

func main() {
	flag.Parse()
	_ = godotenv.Load()
	cfg := config.Load()
	if *addr == "" {
		*addr = cfg.Server.RPCAddr
	}

	st := store.New()
	tm := timers.NewManager(nil)
	model := llm.NewClient(cfg.Model.BaseURL, cfg.Model.APIKey, cfg.Model.Model, cfg.Model.VisionModel, time.Duration(cfg.Model.TimeoutSecs)*time.Second)
	opts := orchestrator.Options{
		Model:          model,
		Vision:         model,
		Timers:         tm,
		Sink:           eventSink{st: st},
		Catalog:        catalog.NewFileStore(cfg.Catalog.Path),
		Events:         st,
		Instructions:   cfg.Model.Instructions,
		MaxToolRounds:  cfg.Session.MaxToolRounds,
		FuzzyThreshold: cfg.Catalog.FuzzyThreshold,
		LaneCapacity:   cfg.Session.LaneCapacity,
		Session: session.Options{
			HistorySize:       cfg.Session.VisionHistory,
			SameStepThreshold: cfg.Session.SameStepThreshold,
			Speech:            cfg.SpeechConfig(),
		},
	}
	if cfg.Eleven.APIKey != "" && cfg.Eleven.VoiceID != "" {
		opts.Voice = tts.NewClient(cfg.Eleven.BaseURL, cfg.Eleven.APIKey, cfg.Eleven.VoiceID, cfg.Eleven.ModelID, time.Duration(cfg.Eleven.TimeoutSecs)*time.Second)
	}
	orch := orchestrator.New(opts)
	tm.SetOnFire(orch.OnTimerFired)

	s := grpc.NewServer()
	hs := rpc.Register(s, orch)

	// health endpoints
	go func() {
		mux := http.NewServeMux()
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("ok\n")) })
		mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("ok\n")) })
		mux.Handle("/metrics", promhttp.Handler())
		log.Printf("orchestrator probes/metrics on %s", cfg.Server.MetricsAddr)
		_ = http.ListenAndServe(cfg.Server.MetricsAddr, mux)
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-sigc
		log.Printf("shutdown signal received; draining...")
		hs.Shutdown()
		s.GracefulStop()
		orch.Close()
	}()

	l, err := net.Listen("tcp", *addr)
	if err != nil {
		log.Fatalf("listen: %v", err)
	}
	log.Printf("orchestrator listening on %s", *addr)
	if err := s.Serve(l); err != nil {
		log.Fatalf("serve: %v", err)
	}
	<-stopped
	log.Printf("orchestrator stopped")
}

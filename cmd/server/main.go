package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"yuzu/souschef/internal/api"
	"yuzu/souschef/internal/catalog"
	"yuzu/souschef/internal/config"
	"yuzu/souschef/internal/livews"
	"yuzu/souschef/internal/llm"
	"yuzu/souschef/internal/orchestrator"
	"yuzu/souschef/internal/session"
	"yuzu/souschef/internal/store"
	"yuzu/souschef/internal/timers"
	"yuzu/souschef/internal/tts"
)

func main() {
	// Load .env file if present (ignored if missing)
	_ = godotenv.Load()

	cfg := config.Load()

	st := store.New()
	cat := catalog.NewFileStore(cfg.Catalog.Path)
	reg := livews.NewRegistry()
	tm := timers.NewManager(nil)

	model := llm.NewClient(cfg.Model.BaseURL, cfg.Model.APIKey, cfg.Model.Model, cfg.Model.VisionModel, secs(cfg.Model.TimeoutSecs))
	opts := orchestrator.Options{
		Model:          model,
		Vision:         model,
		Timers:         tm,
		Sink:           reg,
		Catalog:        cat,
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
		opts.Voice = tts.NewClient(cfg.Eleven.BaseURL, cfg.Eleven.APIKey, cfg.Eleven.VoiceID, cfg.Eleven.ModelID, secs(cfg.Eleven.TimeoutSecs))
	} else {
		log.Printf("ElevenLabs not configured; speech is text-only")
	}
	orch := orchestrator.New(opts)
	tm.SetOnFire(orch.OnTimerFired)

	h := api.NewHandlers(cfg, st, cat, orch)
	mux := http.NewServeMux()
	mux.Handle("/", api.NewRouter(h))
	mux.Handle("/metrics", promhttp.Handler())
	wss := livews.NewServer(cfg, st, reg, orch)
	mux.HandleFunc("/ws/live", wss.HandleLiveWS)

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           logMiddleware(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Graceful shutdown on SIGINT/SIGTERM
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)

	log.Printf("server starting on %s (catalog=%s model=%s)", addr, cfg.Catalog.Path, cfg.Model.Model)
	if err := serve(srv, orch.Close, sigc); err != nil {
		log.Println("server error:", err)
		os.Exit(1)
	}
	log.Printf("server stopped")
}

type httpServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// serve runs srv until a signal arrives, then stops it and calls drain.
// It returns only after drain has finished.
func serve(srv httpServer, drain func(), sigc <-chan os.Signal) error {
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-sigc
		log.Printf("shutdown signal received; stopping server...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
		// Lanes drain after the sockets are gone so no new events arrive.
		drain()
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	<-stopped
	return nil
}

func secs(n int) time.Duration { return time.Duration(n) * time.Second }

func logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(start))
	})
}

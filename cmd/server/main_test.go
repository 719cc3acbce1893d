package main

import (
	"context"
	"net/http"
	"os"
	"sync/atomic"
	"syscall"
	"testing"
	"time"
)

type fakeHTTPServer struct {
	shutdown chan struct{}
}

func (f *fakeHTTPServer) ListenAndServe() error {
	<-f.shutdown
	return http.ErrServerClosed
}

func (f *fakeHTTPServer) Shutdown(ctx context.Context) error {
	close(f.shutdown)
	return nil
}

func TestServeWaitsForDrain(t *testing.T) {
	srv := &fakeHTTPServer{shutdown: make(chan struct{})}
	var drained atomic.Bool
	drain := func() {
		time.Sleep(100 * time.Millisecond)
		drained.Store(true)
	}
	sigc := make(chan os.Signal, 1)
	sigc <- syscall.SIGTERM

	if err := serve(srv, drain, sigc); err != nil {
		t.Fatalf("serve: %v", err)
	}
	if !drained.Load() {
		t.Fatal("serve returned before the lanes were drained")
	}
}

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"yuzu/souschef/internal/catalog"
	"yuzu/souschef/internal/config"
	"yuzu/souschef/internal/health"
	"yuzu/souschef/internal/session"
	"yuzu/souschef/internal/store"
)

type mockOrch struct{}

func (mockOrch) Snapshot(ctx context.Context, id string) (session.Snapshot, error) {
	return session.Snapshot{ID: id, Dish: "pancakes", LockedStep: "Grab 2 eggs."}, nil
}

func newTestServer(t *testing.T) (*httptest.Server, *store.Store) {
	t.Helper()
	var cfg config.Config
	cfg.Live.TokenSecret = "secret"
	cfg.Live.TokenTTLMin = 10
	cfg.Catalog.FuzzyThreshold = catalog.DefaultFuzzyThreshold
	st := store.New()
	cat := catalog.NewMemoryStore()
	if _, err := cat.Save(context.Background(), "Banana Bread", "Mash bananas."); err != nil {
		t.Fatal(err)
	}
	h := NewHandlers(cfg, st, cat, mockOrch{})
	h.health = func(context.Context) health.HealthStatus { return health.HealthStatus{OK: true} }
	srv := httptest.NewServer(NewRouter(h))
	t.Cleanup(srv.Close)
	return srv, st
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var m map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return m
}

func TestUnknownSession404(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/sessions/unknown/live-token", "application/json", nil)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	resp, err = http.Get(srv.URL + "/sessions/unknown/events")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestCreateSessionAndState(t *testing.T) {
	srv, st := newTestServer(t)

	resp, err := http.Post(srv.URL+"/sessions", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	body := decode(t, resp)
	id, _ := body["session_id"].(string)
	if id == "" || body["live_token"] == "" {
		t.Fatalf("unexpected create response %v", body)
	}
	if st.GetSession(id) == nil {
		t.Fatal("session should be registered")
	}

	resp, err = http.Get(srv.URL + "/sessions/" + id + "/state")
	if err != nil {
		t.Fatal(err)
	}
	state := decode(t, resp)["state"].(map[string]any)
	if state["locked_step"] != "Grab 2 eggs." {
		t.Fatalf("unexpected state %v", state)
	}

	resp, err = http.Get(srv.URL + "/sessions/" + id + "/events")
	if err != nil {
		t.Fatal(err)
	}
	if evs := decode(t, resp)["events"].([]any); len(evs) != 1 {
		t.Fatalf("expected session_created event, got %v", evs)
	}
}

func TestRecipes(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/recipes/lookup?dish=banana%20bread")
	if err != nil {
		t.Fatal(err)
	}
	m := decode(t, resp)
	if m["match_type"] != "exact" {
		t.Fatalf("unexpected lookup %v", m)
	}
	resp, err = http.Get(srv.URL + "/recipes")
	if err != nil {
		t.Fatal(err)
	}
	if recs := decode(t, resp)["recipes"].([]any); len(recs) != 1 {
		t.Fatalf("expected one recipe, got %v", recs)
	}
	resp, err = http.Get(srv.URL + "/recipes/lookup")
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 without dish, got %d", resp.StatusCode)
	}
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"yuzu/souschef/internal/auth"
	"yuzu/souschef/internal/catalog"
	"yuzu/souschef/internal/config"
	"yuzu/souschef/internal/health"
	"yuzu/souschef/internal/session"
	"yuzu/souschef/internal/store"
	"yuzu/souschef/internal/types"
)

// Snapshotter reads a session's live state.
type Snapshotter interface {
	Snapshot(ctx context.Context, sessionID string) (session.Snapshot, error)
}

type Handlers struct {
	cfg     config.Config
	store   *store.Store
	catalog catalog.Store
	orch    Snapshotter
	health  func(ctx context.Context) health.HealthStatus
}

func NewHandlers(cfg config.Config, st *store.Store, cat catalog.Store, orch Snapshotter) *Handlers {
	return &Handlers{
		cfg:     cfg,
		store:   st,
		catalog: cat,
		orch:    orch,
		health:  func(ctx context.Context) health.HealthStatus { return health.CheckAll(ctx, cfg) },
	}
}

func (h *Handlers) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	id := uuid.New().String()
	sess := &types.Session{
		ID:        id,
		CreatedAt: time.Now().UTC(),
		Status:    types.StatusCreated,
	}
	if err := h.store.CreateSession(sess); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	h.store.AppendEvent(id, "session_created", nil)

	resp := map[string]any{"session_id": id}
	if h.cfg.Live.TokenSecret != "" {
		tok, exp, err := h.mintToken(id)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		resp["live_token"] = tok
		resp["live_token_exp"] = exp
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) HandleMintLiveToken(w http.ResponseWriter, r *http.Request, id string) {
	if h.store.GetSession(id) == nil {
		http.NotFound(w, r)
		return
	}
	tok, exp, err := h.mintToken(id)
	if errors.Is(err, auth.ErrNoSecret) {
		http.Error(w, "live auth not configured", http.StatusServiceUnavailable)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.store.AppendEvent(id, "live_token_minted", map[string]any{"exp": exp})
	writeJSON(w, http.StatusOK, map[string]any{"session_id": id, "token": tok, "exp": exp})
}

func (h *Handlers) HandleListEvents(w http.ResponseWriter, r *http.Request, id string) {
	if h.store.GetSession(id) == nil {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": id,
		"events":     h.store.ListEvents(id),
	})
}

func (h *Handlers) HandleSessionState(w http.ResponseWriter, r *http.Request, id string) {
	sess := h.store.GetSession(id)
	if sess == nil {
		http.NotFound(w, r)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	snap, err := h.orch.Snapshot(ctx, id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session": sess, "state": snap})
}

func (h *Handlers) HandleListRecipes(w http.ResponseWriter, r *http.Request) {
	entries, err := h.catalog.List(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"recipes": entries})
}

func (h *Handlers) HandleLookupRecipe(w http.ResponseWriter, r *http.Request) {
	dish := r.URL.Query().Get("dish")
	if dish == "" {
		http.Error(w, "missing dish", http.StatusBadRequest)
		return
	}
	entries, err := h.catalog.List(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	m := catalog.LookupWithThreshold(dish, entries, h.cfg.Catalog.FuzzyThreshold)
	writeJSON(w, http.StatusOK, map[string]any{
		"query":      dish,
		"match_type": m.Type,
		"score":      m.Score,
		"recipe":     m.Entry,
	})
}

func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	st := h.health(ctx)
	code := http.StatusOK
	if !st.OK {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, st)
}

func (h *Handlers) mintToken(id string) (string, int64, error) {
	exp := time.Now().Add(time.Duration(h.cfg.Live.TokenTTLMin) * time.Minute).Unix()
	tok, err := auth.GenerateLiveToken(h.cfg.Live.TokenSecret, id, exp)
	return tok, exp, err
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/vovakirdan/rps-arena/internal/metrics"
	"github.com/vovakirdan/rps-arena/internal/record"
	"github.com/vovakirdan/rps-arena/internal/stats"
)

// Profiles is the read side of the record store used by the HTTP API.
type Profiles interface {
	User(ctx context.Context, username string) (record.User, error)
	Games(ctx context.Context, ids []string) ([]record.GameRecord, error)
	HeadToHead(ctx context.Context, a, b string) (record.HeadToHead, error)
}

// statsResponse is the body of GET /api/users/{username}/stats.
type statsResponse struct {
	Username    string             `json:"username"`
	PlayerStats record.PlayerStats `json:"playerStats"`
	Stats       stats.Report       `json:"stats"`
}

// NewRouter wires the WebSocket endpoint, diagnostics and the read-only API.
func NewRouter(ws http.Handler, profiles Profiles, logger *log.Logger) chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.RequestID) // add X-Request-ID
	r.Use(chimw.RealIP)    // set RemoteAddr from X-Forwarded-For etc.
	r.Use(chimw.Recoverer) // recover from panics

	r.Handle("/ws", ws)
	r.Handle("/metrics", metrics.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	})

	api := &apiHandler{profiles: profiles, logger: logger}
	r.Route("/api", func(r chi.Router) {
		r.Use(chimw.Timeout(10 * time.Second))
		r.Get("/users/{username}", api.user)
		r.Get("/users/{username}/stats", api.stats)
		r.Get("/h2h/{a}/{b}", api.headToHead)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "path": r.URL.Path})
	})

	return r
}

type apiHandler struct {
	profiles Profiles
	logger   *log.Logger
}

func (a *apiHandler) user(w http.ResponseWriter, r *http.Request) {
	u, ok := a.loadUser(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (a *apiHandler) stats(w http.ResponseWriter, r *http.Request) {
	u, ok := a.loadUser(w, r)
	if !ok {
		return
	}
	games, err := a.profiles.Games(r.Context(), u.GameIDs)
	if err != nil {
		a.fail(w, "games", err)
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{
		Username:    u.Username,
		PlayerStats: u.Stats,
		Stats:       stats.Compute(u.Username, u.Friends, games),
	})
}

func (a *apiHandler) headToHead(w http.ResponseWriter, r *http.Request) {
	first, second := chi.URLParam(r, "a"), chi.URLParam(r, "b")
	if first == second {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "same_user"})
		return
	}
	h, err := a.profiles.HeadToHead(r.Context(), first, second)
	if err != nil {
		a.fail(w, "head_to_head", err)
		return
	}
	writeJSON(w, http.StatusOK, h)
}

func (a *apiHandler) loadUser(w http.ResponseWriter, r *http.Request) (record.User, bool) {
	name := chi.URLParam(r, "username")
	u, err := a.profiles.User(r.Context(), name)
	if errors.Is(err, record.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "username": name})
		return u, false
	}
	if err != nil {
		a.fail(w, "user", err)
		return u, false
	}
	return u, true
}

func (a *apiHandler) fail(w http.ResponseWriter, op string, err error) {
	metrics.StoreErrors.WithLabelValues(op).Inc()
	a.logger.Error("api store call failed", "op", op, "err", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "store_error"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

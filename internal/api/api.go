// Package api serves stored portfolio snapshots over HTTP, including a small
// tool-call surface for assistants.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sells-group/portfolio-cli/internal/store"
)

// Version is reported by the root endpoint.
const Version = "1.0.0"

// NewRouter builds the HTTP API router.
func NewRouter(repo store.PortfolioRepository) http.Handler {
	return newRouter(&handler{repo: repo, now: time.Now})
}

func newRouter(h *handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogging)
	r.Use(recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
	}))

	r.Get("/", h.root)
	r.Get("/health", h.health)

	// Portfolio snapshots
	r.Get("/api/portfolio", h.getPortfolioAt)
	r.Get("/api/portfolio/latest", h.getLatest)
	r.Get("/api/portfolio/history", h.getHistory)

	r.Get("/mcp/tools", h.listTools)
	r.Post("/mcp/call", h.callTool)

	return r
}

type handler struct {
	repo store.PortfolioRepository
	now  func() time.Time
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func (h *handler) root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "SBI Portfolio Tracker API",
		"version": Version,
		"status":  "running",
	})
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": h.now().UTC().Format(time.RFC3339),
	})
}

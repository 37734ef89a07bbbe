package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/drops-stats/drops/internal/domain"
	"github.com/drops-stats/drops/internal/service"
	"github.com/drops-stats/drops/internal/steamid"
)

// Handler provides HTTP handlers for the stats API
type Handler struct {
	service *service.StatsService
	logger  *slog.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(service *service.StatsService, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Router creates and configures the HTTP router
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(corsMiddleware)

	// Health check
	r.Get("/health", h.HealthCheck)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/stats", h.GetGlobalStats)
		r.Get("/top/{order}", h.GetTopStats)
		r.Get("/profile/{id}", h.GetPlayerStats)
		r.Get("/search", h.Search)
	})

	return r
}

// corsMiddleware adds CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, X-Request-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeSuccess writes a successful JSON response
func (h *Handler) writeSuccess(w http.ResponseWriter, data interface{}) {
	h.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
	})
}

// writeError maps an error to its status: bad input is the caller's
// fault, absence is a 404, everything else is a server error.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, steamid.ErrInvalidFormat),
		errors.Is(err, steamid.ErrOutOfRange),
		errors.Is(err, domain.ErrInvalidOrder):
		status = http.StatusBadRequest
	case domain.IsNotFoundError(err):
		status = http.StatusNotFound
	default:
		h.logger.Error("request failed", "path", r.URL.Path, "error", err)
	}
	h.writeJSON(w, status, APIResponse{
		Success: false,
		Error:   err.Error(),
	})
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "healthy"})
}

// GetGlobalStats returns the population-wide counters
func (h *Handler) GetGlobalStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.GlobalStats(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSuccess(w, stats)
}

// GetTopStats returns the leaderboard for one order
func (h *Handler) GetTopStats(w http.ResponseWriter, r *http.Request) {
	order, err := domain.ParseTopOrder(chi.URLParam(r, "order"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	top, err := h.service.TopStats(r.Context(), order)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSuccess(w, top)
}

// GetPlayerStats returns one player's counters and ranks. The path
// segment accepts any SteamID notation; anything that does not parse is
// treated as a vanity url and resolved.
func (h *Handler) GetPlayerStats(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "id")
	id, parseErr := steamid.Parse(raw)
	if parseErr != nil {
		var err error
		id, err = h.service.ResolveVanity(r.Context(), raw)
		if errors.Is(err, domain.ErrVanityNotFound) {
			// Not an id and not a vanity url: report the parse failure.
			h.writeError(w, r, parseErr)
			return
		}
		if err != nil {
			h.writeError(w, r, err)
			return
		}
	}

	stats, err := h.service.PlayerStats(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSuccess(w, stats)
}

// Search returns name-search results for the "search" query parameter
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("search")
	if query == "" {
		h.writeJSON(w, http.StatusBadRequest, APIResponse{
			Success: false,
			Error:   "missing search parameter",
		})
		return
	}

	results, err := h.service.Search(r.Context(), query)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if results == nil {
		results = []domain.SearchResult{}
	}
	h.writeSuccess(w, results)
}

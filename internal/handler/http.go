// Package handler serves the admin HTTP API.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/clicker-admin/internal/domain"
	"github.com/clicker-admin/internal/service"
	"github.com/clicker-admin/internal/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Pinger is a dependency checked by the readiness probe
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler provides HTTP handlers for the admin API
type Handler struct {
	admin  *service.AdminService
	hub    *websocket.Hub
	auth   *Authenticator
	checks map[string]Pinger
	logger *slog.Logger
}

// NewHandler creates a new HTTP handler. checks may be empty.
func NewHandler(admin *service.AdminService, hub *websocket.Hub, auth *Authenticator, checks map[string]Pinger, logger *slog.Logger) *Handler {
	return &Handler{
		admin:  admin,
		hub:    hub,
		auth:   auth,
		checks: checks,
		logger: logger,
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
	r.Get("/ready", h.ReadyCheck)

	// WebSocket endpoint
	r.With(h.authenticate).Get("/ws", h.HandleWebSocket)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", h.Login)

		r.Group(func(r chi.Router) {
			r.Use(h.authenticate)

			r.Get("/leaderboards/{category}", h.GetLeaderboard)

			r.Route("/players", func(r chi.Router) {
				r.Get("/", h.ListPlayers)

				r.Route("/{playerID}", func(r chi.Router) {
					r.Get("/", h.GetPlayer)
					r.Delete("/", h.DeletePlayer)
					r.Patch("/fields", h.EditField)
					r.Put("/username", h.RenamePlayer)
					r.Post("/ban", h.BanPlayer)
					r.Delete("/ban", h.UnbanPlayer)
				})
			})

			r.Post("/bulk", h.Bulk)
			r.Get("/links", h.ListLinks)
			r.Post("/announcements", h.Announce)
			r.Get("/stats", h.GetStats)
			r.Get("/audit", h.GetAudit)

			// WebSocket info endpoint
			r.Get("/ws/stats", h.GetWebSocketStats)
		})
	})

	return r
}

// corsMiddleware adds CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID")

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
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Warn("failed to encode response", "error", err)
	}
}

// writeSuccess writes a successful JSON response
func (h *Handler) writeSuccess(w http.ResponseWriter, data interface{}) {
	h.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
	})
}

// writeError writes an error JSON response
func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, APIResponse{
		Success: false,
		Error:   err.Error(),
	})
}

// writeServiceError maps a service error onto a status code
func (h *Handler) writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case domain.IsNotFoundError(err):
		h.writeError(w, http.StatusNotFound, err)
	case domain.IsClientError(err):
		h.writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, domain.ErrStoreUnavailable):
		h.logger.Error("store unavailable", "op", op, "error", err)
		h.writeError(w, http.StatusServiceUnavailable, domain.ErrStoreUnavailable)
	default:
		h.logger.Error("request failed", "op", op, "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
	}
}

// writeOutcomes reports a multi-location update. Partial failure is 207.
func (h *Handler) writeOutcomes(w http.ResponseWriter, playerID string, outcomes domain.Outcomes) {
	resp := APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"player_id": playerID,
			"steps":     outcomes,
		},
	}
	status := http.StatusOK
	if err := outcomes.Err(); err != nil {
		resp.Success = false
		resp.Error = err.Error()
		status = http.StatusMultiStatus
	}
	h.writeJSON(w, status, resp)
}

func decode(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return domain.ErrInvalidRequest
	}
	return nil
}

// HandleWebSocket handles WebSocket upgrade requests
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.ServeWs(h.hub, h.logger, w, r)
}

// GetWebSocketStats returns WebSocket connection statistics
func (h *Handler) GetWebSocketStats(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]interface{}{
		"total_connections":         h.hub.GetTotalConnections(),
		"players_subscribers":       h.hub.GetSubscriberCount(websocket.TopicPlayers),
		"announcements_subscribers": h.hub.GetSubscriberCount(websocket.TopicAnnouncements),
	})
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "healthy"})
}

// ReadyCheck pings every dependency
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := map[string]string{"status": "ready"}
	ready := true
	for name, p := range h.checks {
		if err := p.Ping(ctx); err != nil {
			h.logger.Warn("readiness check failed", "dependency", name, "error", err)
			status[name] = "unavailable"
			ready = false
			continue
		}
		status[name] = "ok"
	}

	if !ready {
		status["status"] = "not_ready"
		h.writeJSON(w, http.StatusServiceUnavailable, APIResponse{Success: false, Data: status, Error: "dependencies unavailable"})
		return
	}
	h.writeSuccess(w, status)
}

// LoginRequest is the operator login body
type LoginRequest struct {
	Username  string `json:"username"`
	LoginCode string `json:"login_code"`
}

// Login exchanges operator credentials for a session token
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	token, expires, err := h.auth.Login(req.Username, req.LoginCode)
	if errors.Is(err, domain.ErrUnauthorized) {
		h.logger.Warn("rejected admin login", "username", req.Username)
		h.writeError(w, http.StatusUnauthorized, err)
		return
	}
	if err != nil {
		h.writeServiceError(w, "login", err)
		return
	}

	h.writeSuccess(w, map[string]interface{}{
		"token":      token,
		"expires_at": expires.UTC().Format(time.RFC3339),
	})
}

// GetLeaderboard returns the sorted board for a category
func (h *Handler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")

	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}
	includeBanned, _ := strconv.ParseBool(r.URL.Query().Get("include_banned"))

	view, err := h.admin.Leaderboard(r.Context(), category, includeBanned, limit)
	if err != nil {
		h.writeServiceError(w, "leaderboard", err)
		return
	}
	h.writeSuccess(w, view)
}

// ListPlayers returns every registered player
func (h *Handler) ListPlayers(w http.ResponseWriter, r *http.Request) {
	players, err := h.admin.Players(r.Context())
	if err != nil {
		h.writeServiceError(w, "list players", err)
		return
	}
	h.writeSuccess(w, players)
}

// GetPlayer returns one player's save, ban flag and ranks
func (h *Handler) GetPlayer(w http.ResponseWriter, r *http.Request) {
	detail, err := h.admin.PlayerDetail(r.Context(), chi.URLParam(r, "playerID"))
	if err != nil {
		h.writeServiceError(w, "get player", err)
		return
	}
	h.writeSuccess(w, detail)
}

// EditFieldRequest overwrites one numeric field
type EditFieldRequest struct {
	Field string   `json:"field"`
	Value *float64 `json:"value"`
}

// EditField overwrites one editable field of a save
func (h *Handler) EditField(w http.ResponseWriter, r *http.Request) {
	var req EditFieldRequest
	if err := decode(r, &req); err != nil || req.Field == "" || req.Value == nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	playerID := chi.URLParam(r, "playerID")
	if err := h.admin.EditField(r.Context(), playerID, req.Field, *req.Value); err != nil {
		h.writeServiceError(w, "edit field", err)
		return
	}
	h.writeSuccess(w, map[string]interface{}{
		"player_id": playerID,
		"field":     req.Field,
		"value":     *req.Value,
	})
}

// RenameRequest sets a new username
type RenameRequest struct {
	Username string `json:"username"`
}

// RenamePlayer writes a new username to every location that stores it
func (h *Handler) RenamePlayer(w http.ResponseWriter, r *http.Request) {
	var req RenameRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	playerID := chi.URLParam(r, "playerID")
	outcomes, err := h.admin.RenamePlayer(r.Context(), playerID, req.Username)
	if err != nil {
		h.writeServiceError(w, "rename player", err)
		return
	}
	h.writeOutcomes(w, playerID, outcomes)
}

// BanPlayer hides a player from the public leaderboard
func (h *Handler) BanPlayer(w http.ResponseWriter, r *http.Request) {
	h.setBan(w, r, true)
}

// UnbanPlayer restores a player to the public leaderboard
func (h *Handler) UnbanPlayer(w http.ResponseWriter, r *http.Request) {
	h.setBan(w, r, false)
}

func (h *Handler) setBan(w http.ResponseWriter, r *http.Request, banned bool) {
	playerID := chi.URLParam(r, "playerID")
	if err := h.admin.SetBan(r.Context(), playerID, banned); err != nil {
		h.writeServiceError(w, "set ban", err)
		return
	}
	h.writeSuccess(w, map[string]interface{}{
		"player_id": playerID,
		"banned":    banned,
	})
}

// DeletePlayer removes a player from every collection
func (h *Handler) DeletePlayer(w http.ResponseWriter, r *http.Request) {
	playerID := chi.URLParam(r, "playerID")
	h.writeOutcomes(w, playerID, h.admin.DeletePlayer(r.Context(), playerID))
}

// Bulk applies one action to many players
func (h *Handler) Bulk(w http.ResponseWriter, r *http.Request) {
	var req domain.BulkRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	if len(req.PlayerIDs) == 0 {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	result, err := h.admin.Bulk(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, "bulk", err)
		return
	}
	h.writeSuccess(w, result)
}

// ListLinks returns linked chat accounts
func (h *Handler) ListLinks(w http.ResponseWriter, r *http.Request) {
	links, err := h.admin.Links(r.Context())
	if err != nil {
		h.writeServiceError(w, "list links", err)
		return
	}
	h.writeSuccess(w, links)
}

// AnnounceRequest queues a broadcast
type AnnounceRequest struct {
	Message string `json:"message"`
}

// Announce queues a message for the announcement relay
func (h *Handler) Announce(w http.ResponseWriter, r *http.Request) {
	var req AnnounceRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	a, err := h.admin.Announce(r.Context(), req.Message)
	if err != nil {
		h.writeServiceError(w, "announce", err)
		return
	}
	h.writeJSON(w, http.StatusAccepted, APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"id":         a.ID,
			"message":    a.Message,
			"created_at": a.CreatedAt,
		},
	})
}

// GetStats returns totals across every save
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.admin.Stats(r.Context())
	if err != nil {
		h.writeServiceError(w, "stats", err)
		return
	}
	h.writeSuccess(w, stats)
}

// GetAudit returns recent operator actions
func (h *Handler) GetAudit(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}

	events, err := h.admin.AuditTrail(r.Context(), r.URL.Query().Get("player_id"), limit)
	if err != nil {
		h.writeServiceError(w, "audit", err)
		return
	}
	h.writeSuccess(w, events)
}

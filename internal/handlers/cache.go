package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/benvon/focus-companion/internal/middleware"
	"github.com/benvon/focus-companion/internal/models"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// CacheAdmin is the maintenance surface of the response cache
type CacheAdmin interface {
	Stats(ctx context.Context) models.CacheStats
	Cleanup(ctx context.Context) (int, error)
	Clear(ctx context.Context, userID string) (int, error)
}

// CacheHandler serves cache maintenance endpoints
type CacheHandler struct {
	cache  CacheAdmin
	logger *zap.Logger
}

// NewCacheHandler creates a cache handler
func NewCacheHandler(cache CacheAdmin, logger *zap.Logger) *CacheHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheHandler{cache: cache, logger: logger}
}

// RegisterRoutes lets callers drop their own cached responses
func (h *CacheHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/cache", h.ClearOwn).Methods("DELETE")
}

// RegisterAdminRoutes registers administrator routes
func (h *CacheHandler) RegisterAdminRoutes(r *mux.Router) {
	r.HandleFunc("/cache/stats", h.Stats).Methods("GET")
	r.HandleFunc("/cache/cleanup", h.Cleanup).Methods("POST")
	r.HandleFunc("/cache", h.Clear).Methods("DELETE")
}

// RemovedResponse reports how many entries an operation removed
type RemovedResponse struct {
	Removed int `json:"removed"`
}

// Stats handles GET /admin/cache/stats
func (h *CacheHandler) Stats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.cache.Stats(r.Context()))
}

// Cleanup handles POST /admin/cache/cleanup
func (h *CacheHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	n, err := h.cache.Cleanup(r.Context())
	if err != nil {
		h.logger.Error("ai_cache_cleanup_failed", zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Cache cleanup failed")
		return
	}
	respondJSON(w, http.StatusOK, RemovedResponse{Removed: n})
}

// Clear handles DELETE /admin/cache[?user=<id>]
func (h *CacheHandler) Clear(w http.ResponseWriter, r *http.Request) {
	h.clear(w, r, strings.ToLower(strings.TrimSpace(r.URL.Query().Get("user"))))
}

// ClearOwn handles DELETE /cache for the caller
func (h *CacheHandler) ClearOwn(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}
	h.clear(w, r, user.ID)
}

func (h *CacheHandler) clear(w http.ResponseWriter, r *http.Request, userID string) {
	n, err := h.cache.Clear(r.Context(), userID)
	if err != nil {
		h.logger.Error("ai_cache_clear_failed", zap.String("user_id", userID), zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Cache clear failed")
		return
	}
	respondJSON(w, http.StatusOK, RemovedResponse{Removed: n})
}

package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/benvon/focus-companion/internal/middleware"
	"github.com/benvon/focus-companion/internal/models"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// UsageReporter exposes the limiter's counters and toggles
type UsageReporter interface {
	GetUsageStats(ctx context.Context, userID string) *models.UsageStats
	Features() map[models.Feature]bool
}

// LedgerReporter summarises the api_usage ledger
type LedgerReporter interface {
	Summary(ctx context.Context, since time.Time) ([]*models.UsageSummary, error)
}

// UsageHandler serves usage statistics and feature toggles
type UsageHandler struct {
	usage  UsageReporter
	ledger LedgerReporter
	logger *zap.Logger
}

// NewUsageHandler creates a usage handler. ledger may be nil when no database is configured.
func NewUsageHandler(usage UsageReporter, ledger LedgerReporter, logger *zap.Logger) *UsageHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UsageHandler{usage: usage, ledger: ledger, logger: logger}
}

// RegisterRoutes registers caller facing routes
func (h *UsageHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/usage", h.GetUsage).Methods("GET")
	r.HandleFunc("/features", h.GetFeatures).Methods("GET")
}

// RegisterAdminRoutes registers administrator routes
func (h *UsageHandler) RegisterAdminRoutes(r *mux.Router) {
	r.HandleFunc("/usage", h.GetUserUsage).Methods("GET")
	r.HandleFunc("/usage/ledger", h.GetLedger).Methods("GET")
}

// GetUsage handles GET /usage for the caller
func (h *UsageHandler) GetUsage(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}
	respondJSON(w, http.StatusOK, h.usage.GetUsageStats(r.Context(), user.ID))
}

// GetUserUsage handles GET /admin/usage?user=<id>
func (h *UsageHandler) GetUserUsage(w http.ResponseWriter, r *http.Request) {
	userID := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("user")))
	if userID == "" {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "user query parameter is required")
		return
	}
	respondJSON(w, http.StatusOK, h.usage.GetUsageStats(r.Context(), userID))
}

// FeatureState is one entry of the feature toggle listing
type FeatureState struct {
	Feature models.Feature `json:"feature"`
	Enabled bool           `json:"enabled"`
}

// GetFeatures handles GET /features
func (h *UsageHandler) GetFeatures(w http.ResponseWriter, r *http.Request) {
	toggles := h.usage.Features()
	out := make([]FeatureState, 0, len(models.AllFeatures))
	for _, f := range models.AllFeatures {
		out = append(out, FeatureState{Feature: f, Enabled: toggles[f]})
	}
	respondJSON(w, http.StatusOK, out)
}

// GetLedger handles GET /admin/usage/ledger?days=N
func (h *UsageHandler) GetLedger(w http.ResponseWriter, r *http.Request) {
	if h.ledger == nil {
		respondJSONError(w, http.StatusNotImplemented, "Not Implemented", "Usage ledger requires a database")
		return
	}
	days := 30
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 366 {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", "days must be between 1 and 366")
			return
		}
		days = n
	}
	summary, err := h.ledger.Summary(r.Context(), time.Now().AddDate(0, 0, -days))
	if err != nil {
		h.logger.Error("usage_ledger_summary_failed", zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to summarise usage")
		return
	}
	if summary == nil {
		summary = []*models.UsageSummary{}
	}
	respondJSON(w, http.StatusOK, summary)
}

package handlers

import (
	"context"
	"net/http"

	"github.com/benvon/focus-companion/internal/middleware"
	"github.com/benvon/focus-companion/internal/models"
	"github.com/benvon/focus-companion/internal/request"
	"github.com/benvon/focus-companion/internal/services/ai"
	"github.com/benvon/focus-companion/internal/validation"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Generator produces feature text for a user
type Generator interface {
	Generate(ctx context.Context, req ai.Request) (*ai.Result, error)
	CanUseFeature(ctx context.Context, feature models.Feature, userID string) (bool, string)
}

// AIHandler serves the generation endpoints
type AIHandler struct {
	assistant Generator
	logger    *zap.Logger
}

// NewAIHandler creates a new AI handler
func NewAIHandler(assistant Generator, logger *zap.Logger) *AIHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AIHandler{assistant: assistant, logger: logger}
}

// RegisterRoutes registers AI routes
func (h *AIHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/ai/{feature}", h.Generate).Methods("POST")
	r.HandleFunc("/ai/{feature}/availability", h.Availability).Methods("GET")
}

// AvailabilityResponse says whether the next request for a feature would reach the AI
type AvailabilityResponse struct {
	Feature models.Feature `json:"feature"`
	Allowed bool           `json:"allowed"`
	Reason  string         `json:"reason,omitempty"`
}

// Generate handles POST /ai/{feature}. It answers 200 with a cached, AI or
// fallback text; limits and provider failures are reported in the result.
func (h *AIHandler) Generate(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	feature, err := validation.ValidateFeature(mux.Vars(r)["feature"])
	if err != nil {
		respondJSONError(w, http.StatusNotFound, "Not Found", err.Error())
		return
	}

	input := &models.GenerateRequest{}
	if err := decodeJSON(r, input); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	if err := validation.Validate.Struct(input); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Validation Failed", validationMessage(err))
		return
	}
	validation.SanitizeGenerateRequest(input)

	result, err := h.assistant.Generate(r.Context(), ai.Request{
		UserID:  user.ID,
		Feature: feature,
		Input:   input,
	})
	if err != nil {
		h.logger.Error("ai_generate_failed",
			zap.String("feature", string(feature)),
			zap.String("request_id", request.RequestID(r.Context())),
			zap.Error(err),
		)
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Could not generate a response")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// Availability handles GET /ai/{feature}/availability
func (h *AIHandler) Availability(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}
	feature, err := validation.ValidateFeature(mux.Vars(r)["feature"])
	if err != nil {
		respondJSONError(w, http.StatusNotFound, "Not Found", err.Error())
		return
	}
	allowed, reason := h.assistant.CanUseFeature(r.Context(), feature, user.ID)
	respondJSON(w, http.StatusOK, AvailabilityResponse{Feature: feature, Allowed: allowed, Reason: reason})
}

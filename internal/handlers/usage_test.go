package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/benvon/focus-companion/internal/models"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
)

type fakeUsage struct {
	toggles map[models.Feature]bool
}

func (u *fakeUsage) GetUsageStats(_ context.Context, userID string) *models.UsageStats {
	return &models.UsageStats{UserID: userID, TodayCount: 3, TodayLimit: 20}
}

func (u *fakeUsage) Features() map[models.Feature]bool { return u.toggles }

type fakeLedger struct {
	since   time.Time
	summary []*models.UsageSummary
	err     error
}

func (l *fakeLedger) Summary(_ context.Context, since time.Time) ([]*models.UsageSummary, error) {
	l.since = since
	return l.summary, l.err
}

func TestUsageHandler_GetUsage(t *testing.T) {
	t.Parallel()
	r := mux.NewRouter()
	NewUsageHandler(&fakeUsage{}, nil, nil).RegisterRoutes(r)

	tests := []struct {
		name       string
		user       string
		wantStatus int
	}{
		{"caller stats", "ana@example.com", http.StatusOK},
		{"no user", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(http.MethodGet, "/usage", nil)
			if tt.user != "" {
				req = withUser(req, tt.user)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tt.wantStatus {
				t.Fatalf("Expected status %d, got %d", tt.wantStatus, w.Code)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			var body struct {
				Data models.UsageStats `json:"data"`
			}
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}
			if body.Data.UserID != tt.user || body.Data.TodayCount != 3 {
				t.Errorf("Unexpected stats %+v", body.Data)
			}
		})
	}
}

func TestUsageHandler_GetUserUsage(t *testing.T) {
	t.Parallel()
	r := mux.NewRouter()
	NewUsageHandler(&fakeUsage{}, nil, nil).RegisterAdminRoutes(r)

	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantUser   string
	}{
		{"normalises user", "?user=Ana@Example.com", http.StatusOK, "ana@example.com"},
		{"missing user", "", http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/usage"+tt.query, nil))
			if w.Code != tt.wantStatus {
				t.Fatalf("Expected status %d, got %d", tt.wantStatus, w.Code)
			}
			if tt.wantUser == "" {
				return
			}
			var body struct {
				Data models.UsageStats `json:"data"`
			}
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}
			if body.Data.UserID != tt.wantUser {
				t.Errorf("Expected user %s, got %s", tt.wantUser, body.Data.UserID)
			}
		})
	}
}

func TestUsageHandler_GetFeatures(t *testing.T) {
	t.Parallel()
	toggles := models.DefaultFeatureToggles()
	toggles[models.FeatureTaskPlanning] = false
	r := mux.NewRouter()
	NewUsageHandler(&fakeUsage{toggles: toggles}, nil, nil).RegisterRoutes(r)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/features", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var body struct {
		Data []FeatureState `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(body.Data) != len(models.AllFeatures) {
		t.Fatalf("Expected %d features, got %d", len(models.AllFeatures), len(body.Data))
	}
	for i, fs := range body.Data {
		if fs.Feature != models.AllFeatures[i] {
			t.Errorf("Expected feature %s at %d, got %s", models.AllFeatures[i], i, fs.Feature)
		}
		if fs.Feature == models.FeatureTaskPlanning && fs.Enabled {
			t.Error("Expected task_planning to be disabled")
		}
	}
}

func TestUsageHandler_GetLedger(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		ledger     *fakeLedger
		query      string
		wantStatus int
		wantDays   int
	}{
		{"no ledger", nil, "", http.StatusNotImplemented, 0},
		{"default window", &fakeLedger{}, "", http.StatusOK, 30},
		{"custom window", &fakeLedger{summary: []*models.UsageSummary{{UserID: "ana", Calls: 2, CostUSD: decimal.NewFromFloat(0.01)}}}, "?days=7", http.StatusOK, 7},
		{"bad days", &fakeLedger{}, "?days=0", http.StatusBadRequest, 0},
		{"not a number", &fakeLedger{}, "?days=week", http.StatusBadRequest, 0},
		{"store error", &fakeLedger{err: errors.New("db down")}, "", http.StatusInternalServerError, 30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var ledger LedgerReporter
			if tt.ledger != nil {
				ledger = tt.ledger
			}
			r := mux.NewRouter()
			NewUsageHandler(&fakeUsage{}, ledger, nil).RegisterAdminRoutes(r)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/usage/ledger"+tt.query, nil))
			if w.Code != tt.wantStatus {
				t.Fatalf("Expected status %d, got %d", tt.wantStatus, w.Code)
			}
			if tt.wantDays > 0 {
				want := time.Now().AddDate(0, 0, -tt.wantDays)
				if d := want.Sub(tt.ledger.since); d < 0 || d > time.Minute {
					t.Errorf("Expected window start near %v, got %v", want, tt.ledger.since)
				}
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			var body struct {
				Data []models.UsageSummary `json:"data"`
			}
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}
			if body.Data == nil {
				t.Error("Expected an empty list rather than null")
			}
		})
	}
}

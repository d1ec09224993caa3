package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CostPerToken is the flat per-token price used for cost estimates.
var CostPerToken = decimal.RequireFromString("0.000002")

// UsageEvent is the ledger row written for every real AI call.
type UsageEvent struct {
	ID           uuid.UUID       `json:"id"`
	UserID       string          `json:"user_id"`
	Feature      Feature         `json:"feature"`
	Model        string          `json:"model,omitempty"`
	TokensUsed   int             `json:"tokens_used"`
	CostUSD      decimal.Decimal `json:"cost_usd"`
	Success      bool            `json:"success"`
	ErrorMessage string          `json:"error_message,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// NewUsageEvent builds an event with its cost derived from tokens.
func NewUsageEvent(userID string, feature Feature, model string, tokens int, callErr error) *UsageEvent {
	ev := &UsageEvent{
		ID:         uuid.New(),
		UserID:     userID,
		Feature:    feature,
		Model:      model,
		TokensUsed: tokens,
		CostUSD:    EstimateCost(tokens),
		Success:    callErr == nil,
		CreatedAt:  time.Now().UTC(),
	}
	if callErr != nil {
		ev.ErrorMessage = callErr.Error()
	}
	return ev
}

// EstimateCost converts a token count into USD.
func EstimateCost(tokens int) decimal.Decimal {
	if tokens <= 0 {
		return decimal.Zero
	}
	return CostPerToken.Mul(decimal.NewFromInt(int64(tokens)))
}

// UsageSummary aggregates ledger rows for reporting.
type UsageSummary struct {
	UserID     string          `json:"user_id,omitempty"`
	Calls      int             `json:"calls"`
	Failures   int             `json:"failures"`
	TokensUsed int64           `json:"tokens_used"`
	CostUSD    decimal.Decimal `json:"cost_usd"`
}

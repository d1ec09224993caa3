package ai

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/benvon/focus-companion/internal/logger"
)

const (
	previewLength = 200
	// RedactedValue replaces the hidden part of a secret in logs.
	RedactedValue = "[REDACTED]"
	userHashChars = 16
)

// SanitizeAPIKey keeps the first and last four characters of a key. Keys too
// short to be safely partially shown are fully redacted.
func SanitizeAPIKey(apiKey string) string {
	switch {
	case apiKey == "":
		return ""
	case len(apiKey) <= 8:
		return RedactedValue
	default:
		return apiKey[:4] + RedactedValue + apiKey[len(apiKey)-4:]
	}
}

// SanitizePrompt returns a loggable preview of a rendered prompt.
func SanitizePrompt(prompt string, full bool) string {
	return preview(prompt, full)
}

// SanitizeResponse returns a loggable preview of a model response.
func SanitizeResponse(response string, full bool) string {
	return preview(response, full)
}

func preview(s string, full bool) string {
	limit := previewLength
	if full {
		limit = logger.MaxDebugContentLength
	}
	return logger.SanitizeString(s, limit)
}

// HashUserID derives a stable pseudonymous id so the provider can attribute
// abuse without seeing the caller's email.
func HashUserID(userID string) string {
	if userID == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(userID))
	return hex.EncodeToString(sum[:])[:userHashChars]
}

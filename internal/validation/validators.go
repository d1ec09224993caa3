package validation

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/benvon/focus-companion/internal/models"
	"github.com/go-playground/validator/v10"
)

var (
	// Validate is a shared validator instance
	Validate *validator.Validate
)

func init() {
	Validate = validator.New()

	if err := Validate.RegisterValidation("feature", validateFeature); err != nil {
		panic(fmt.Sprintf("failed to register feature validator: %v", err))
	}
}

// validateFeature validates that a string names a known feature
func validateFeature(fl validator.FieldLevel) bool {
	return models.Feature(fl.Field().String()).IsValid()
}

// SanitizeText sanitizes text input by trimming whitespace and removing control characters
func SanitizeText(text string) string {
	text = strings.TrimSpace(text)

	var sanitized strings.Builder
	for _, r := range text {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		sanitized.WriteRune(r)
	}

	return sanitized.String()
}

// ValidateFeature validates a feature name from a URL or CLI argument
func ValidateFeature(value string) (models.Feature, error) {
	f := models.Feature(value)
	if !f.IsValid() {
		names := make([]string, 0, len(models.AllFeatures))
		for _, known := range models.AllFeatures {
			names = append(names, string(known))
		}
		return "", fmt.Errorf("invalid feature: %s (must be one of %s)", value, strings.Join(names, ", "))
	}
	return f, nil
}

// SanitizeGenerateRequest trims free-text fields in place
func SanitizeGenerateRequest(req *models.GenerateRequest) {
	p := &req.Profile
	p.Goal = SanitizeText(p.Goal)
	p.Tone = SanitizeText(p.Tone)
	p.Availability = SanitizeText(p.Availability)
	p.Situation = SanitizeText(p.Situation)
	p.Energy = SanitizeText(p.Energy)
	p.SmallHabit = SanitizeText(p.SmallHabit)
	for i := range req.Moods {
		req.Moods[i].Note = SanitizeText(req.Moods[i].Note)
	}
	for i := range req.Checkins {
		req.Checkins[i].FocusToday = SanitizeText(req.Checkins[i].FocusToday)
	}
}

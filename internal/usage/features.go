package usage

import (
	"fmt"
	"os"

	"github.com/benvon/focus-companion/internal/models"
	"gopkg.in/yaml.v3"
)

// featureFile is the on-disk shape of a feature toggle override:
//
//	features:
//	  mood_analysis: true
//	  task_planning: false
//	limits:
//	  user_daily: 30
type featureFile struct {
	Features map[string]bool     `yaml:"features"`
	Limits   *models.UsageLimits `yaml:"limits"`
}

// Overrides holds the settings read from a feature file.
type Overrides struct {
	Features map[models.Feature]bool
	// Limits is nil when the file does not set any caps.
	Limits *models.UsageLimits
}

// LoadOverrides reads a YAML feature file. Features not named in the file keep
// their default toggle. Unknown feature names are rejected.
func LoadOverrides(path string) (*Overrides, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read feature file: %w", err)
	}
	return ParseOverrides(data)
}

// ParseOverrides decodes the YAML feature file format.
func ParseOverrides(data []byte) (*Overrides, error) {
	var raw featureFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse feature file: %w", err)
	}

	toggles := models.DefaultFeatureToggles()
	for name, on := range raw.Features {
		f := models.Feature(name)
		if !f.IsValid() {
			return nil, fmt.Errorf("parse feature file: unknown feature %q", name)
		}
		toggles[f] = on
	}
	return &Overrides{Features: toggles, Limits: raw.Limits}, nil
}

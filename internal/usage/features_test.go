package usage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/benvon/focus-companion/internal/models"
)

func TestParseOverrides(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		input      string
		wantErr    bool
		wantOn     []models.Feature
		wantOff    []models.Feature
		wantLimits *models.UsageLimits
	}{
		{
			name:    "empty file keeps defaults",
			input:   "",
			wantOn:  []models.Feature{models.FeatureGreeting, models.FeatureTaskPlanning},
			wantOff: []models.Feature{models.FeatureMoodAnalysis},
		},
		{
			name: "toggles merge over defaults",
			input: `features:
  mood_analysis: true
  greeting: false
`,
			wantOn:  []models.Feature{models.FeatureMoodAnalysis, models.FeatureEncouragement},
			wantOff: []models.Feature{models.FeatureGreeting, models.FeatureStressManagement},
		},
		{
			name: "limits",
			input: `limits:
  user_daily: 30
  user_monthly: 600
  global_daily: 150
  global_monthly: 3000
`,
			wantLimits: &models.UsageLimits{UserDaily: 30, UserMonthly: 600, GlobalDaily: 150, GlobalMonthly: 3000},
		},
		{
			name:    "unknown feature",
			input:   "features:\n  horoscope: true\n",
			wantErr: true,
		},
		{
			name:    "malformed yaml",
			input:   "features: [",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseOverrides([]byte(tt.input))
			if tt.wantErr {
				if err == nil {
					t.Fatal("Expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseOverrides: %v", err)
			}
			for _, f := range tt.wantOn {
				if !got.Features[f] {
					t.Errorf("Expected %s enabled", f)
				}
			}
			for _, f := range tt.wantOff {
				if got.Features[f] {
					t.Errorf("Expected %s disabled", f)
				}
			}
			if tt.wantLimits == nil {
				if got.Limits != nil {
					t.Errorf("Expected no limits, got %+v", got.Limits)
				}
			} else if got.Limits == nil || *got.Limits != *tt.wantLimits {
				t.Errorf("Expected limits %+v, got %+v", tt.wantLimits, got.Limits)
			}
		})
	}
}

func TestLoadOverrides_MissingFile(t *testing.T) {
	t.Parallel()
	if _, err := LoadOverrides(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestLoadOverrides_File(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "features.yaml")
	if err := os.WriteFile(path, []byte("features:\n  stress_management: true\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := LoadOverrides(path)
	if err != nil {
		t.Fatalf("LoadOverrides: %v", err)
	}
	if !got.Features[models.FeatureStressManagement] {
		t.Error("Expected stress_management enabled")
	}
}

package models

// Feature names a kind of generated text.
type Feature string

const (
	FeatureGreeting          Feature = "greeting"
	FeatureEncouragement     Feature = "encouragement"
	FeatureProductivityTip   Feature = "productivity_tip"
	FeatureWeeklySummary     Feature = "weekly_summary"
	FeatureTaskPlanning      Feature = "task_planning"
	FeatureMoodAnalysis      Feature = "mood_analysis"
	FeatureFocusOptimization Feature = "focus_optimization"
	FeatureStressManagement  Feature = "stress_management"
)

// AllFeatures lists every known feature in display order.
var AllFeatures = []Feature{
	FeatureGreeting,
	FeatureEncouragement,
	FeatureProductivityTip,
	FeatureWeeklySummary,
	FeatureTaskPlanning,
	FeatureMoodAnalysis,
	FeatureFocusOptimization,
	FeatureStressManagement,
}

// IsValid reports whether f is a known feature.
func (f Feature) IsValid() bool {
	for _, known := range AllFeatures {
		if f == known {
			return true
		}
	}
	return false
}

// DefaultFeatureToggles is the beta rollout: the cheaper daily features are on,
// the analysis features are off.
func DefaultFeatureToggles() map[Feature]bool {
	return map[Feature]bool{
		FeatureGreeting:          true,
		FeatureEncouragement:     true,
		FeatureProductivityTip:   true,
		FeatureWeeklySummary:     true,
		FeatureTaskPlanning:      true,
		FeatureMoodAnalysis:      false,
		FeatureFocusOptimization: false,
		FeatureStressManagement:  false,
	}
}

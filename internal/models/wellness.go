package models

import "time"

// DefaultIntensity is assumed for mood entries logged without an intensity.
const DefaultIntensity = 5

// DefaultGoal is used when a profile has no goal set.
const DefaultGoal = "Improve focus and productivity"

// Profile is the onboarding answers that personalise generated text.
type Profile struct {
	Goal           string   `json:"goal,omitempty" validate:"max=500"`
	Tone           string   `json:"tone,omitempty" validate:"max=100"`
	Availability   string   `json:"availability,omitempty" validate:"max=100"`
	Situation      string   `json:"situation,omitempty" validate:"max=100"`
	Energy         string   `json:"energy,omitempty" validate:"max=100"`
	SmallHabit     string   `json:"small_habit,omitempty" validate:"max=200"`
	EnergyDrainers []string `json:"energy_drainers,omitempty" validate:"max=20,dive,max=100"`
	JoySources     []string `json:"joy_sources,omitempty" validate:"max=20,dive,max=100"`
}

// GoalOrDefault returns the goal, or DefaultGoal when unset.
func (p Profile) GoalOrDefault() string {
	if p.Goal == "" {
		return DefaultGoal
	}
	return p.Goal
}

// ToneOrDefault returns the tone, or "Friendly" when unset.
func (p Profile) ToneOrDefault() string {
	if p.Tone == "" {
		return "Friendly"
	}
	return p.Tone
}

// MoodEntry is one mood log. Intensity is 1-10 and optional.
type MoodEntry struct {
	Moods     []string  `json:"moods,omitempty" validate:"max=10,dive,max=50"`
	Intensity *int      `json:"intensity,omitempty" validate:"omitempty,min=1,max=10"`
	Note      string    `json:"note,omitempty" validate:"max=1000"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// IntensityOrDefault returns the logged intensity or DefaultIntensity.
func (m MoodEntry) IntensityOrDefault() int {
	if m.Intensity == nil {
		return DefaultIntensity
	}
	return *m.Intensity
}

// Checkin is a daily check-in.
type Checkin struct {
	EnergyLevel    string    `json:"energy_level,omitempty" validate:"max=50"`
	SleepQuality   string    `json:"sleep_quality,omitempty" validate:"max=50"`
	CurrentFeeling string    `json:"current_feeling,omitempty" validate:"max=50"`
	DayProgress    string    `json:"day_progress,omitempty" validate:"max=50"`
	FocusToday     string    `json:"focus_today,omitempty" validate:"max=500"`
	Timestamp      time.Time `json:"timestamp,omitempty"`
}

// WeekAnalysis is the pre-aggregated week used by the weekly summary.
type WeekAnalysis struct {
	TotalCheckins    int      `json:"total_checkins" validate:"min=0"`
	TotalMoodEntries int      `json:"total_mood_entries" validate:"min=0"`
	ActiveDays       int      `json:"active_days" validate:"min=0,max=7"`
	EnergyPeakDays   []string `json:"energy_peak_days,omitempty" validate:"max=7"`
	TopMood          string   `json:"top_mood,omitempty" validate:"max=50"`
}

// GenerateRequest is the input for one generated text.
type GenerateRequest struct {
	Profile  Profile       `json:"profile"`
	Moods    []MoodEntry   `json:"moods,omitempty" validate:"max=50,dive"`
	Checkins []Checkin     `json:"checkins,omitempty" validate:"max=50,dive"`
	Week     *WeekAnalysis `json:"week,omitempty"`
}

// RecentMoods returns the last n mood entries.
func (r *GenerateRequest) RecentMoods(n int) []MoodEntry {
	if len(r.Moods) <= n {
		return r.Moods
	}
	return r.Moods[len(r.Moods)-n:]
}

// RecentCheckins returns the last n check-ins.
func (r *GenerateRequest) RecentCheckins(n int) []Checkin {
	if len(r.Checkins) <= n {
		return r.Checkins
	}
	return r.Checkins[len(r.Checkins)-n:]
}

// LatestCheckin returns the most recent check-in, or a zero value.
func (r *GenerateRequest) LatestCheckin() Checkin {
	if len(r.Checkins) == 0 {
		return Checkin{}
	}
	return r.Checkins[len(r.Checkins)-1]
}

// AverageIntensity averages the intensity of moods. ok is false for no entries.
func AverageIntensity(moods []MoodEntry) (avg float64, ok bool) {
	if len(moods) == 0 {
		return 0, false
	}
	sum := 0
	for _, m := range moods {
		sum += m.IntensityOrDefault()
	}
	return float64(sum) / float64(len(moods)), true
}

// MoodBand buckets an average intensity: >= 7 positive, >= 5 stable, else low.
type MoodBand string

const (
	MoodPositive MoodBand = "positive"
	MoodStable   MoodBand = "stable"
	MoodLow      MoodBand = "low"
)

// BandFor returns the band of an average intensity.
func BandFor(avg float64) MoodBand {
	switch {
	case avg >= 7:
		return MoodPositive
	case avg >= 5:
		return MoodStable
	default:
		return MoodLow
	}
}

// TimeOfDay is morning from 05:00, afternoon from 12:00 and evening from 18:00.
func TimeOfDay(t time.Time) string {
	h := t.Hour()
	switch {
	case h >= 5 && h < 12:
		return "morning"
	case h >= 12 && h < 18:
		return "afternoon"
	default:
		return "evening"
	}
}

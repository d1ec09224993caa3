package ai

import (
	"fmt"
	"strings"
	"time"

	"github.com/benvon/focus-companion/internal/models"
)

const (
	// DefaultTemperature is used by every feature except weekly_summary
	DefaultTemperature = 0.7

	notSpecified = "Not specified"
)

// Prompt is a fully built request for one feature.
type Prompt struct {
	Feature     models.Feature
	System      string
	User        string
	MaxTokens   int
	Temperature float64
	// JSON asks the provider for a JSON object response
	JSON bool
	// CacheFields are the request fields that identify an equivalent request
	CacheFields map[string]any
}

type promptSpec struct {
	system      string
	maxTokens   int
	temperature float64
	json        bool
	build       func(req *models.GenerateRequest, now time.Time) (string, map[string]any)
}

var promptSpecs = map[models.Feature]promptSpec{
	models.FeatureGreeting: {
		system:      "You are a supportive, encouraging assistant focused on helping users achieve their goals.",
		maxTokens:   100,
		temperature: DefaultTemperature,
		build:       greetingPrompt,
	},
	models.FeatureEncouragement: {
		system:      "You are an encouraging, supportive assistant helping users stay motivated.",
		maxTokens:   80,
		temperature: DefaultTemperature,
		build:       encouragementPrompt,
	},
	models.FeatureProductivityTip: {
		system:      "You are a productivity expert providing practical, personalized advice. Keep responses concise and actionable.",
		maxTokens:   150,
		temperature: DefaultTemperature,
		build:       productivityTipPrompt,
	},
	models.FeatureWeeklySummary: {
		system:      "You are a supportive wellness coach who celebrates progress and provides encouraging insights.",
		maxTokens:   400,
		temperature: 0.8,
		build:       weeklySummaryPrompt,
	},
	models.FeatureTaskPlanning: {
		system: "You are an expert productivity coach and life strategist with deep empathy and understanding of human psychology. " +
			"You specialize in creating thoughtful, personalized daily plans that help people feel empowered and make meaningful progress without feeling overwhelmed. " +
			"You understand that productivity is deeply personal and varies greatly based on energy, emotions, life circumstances, and individual preferences. " +
			"Your goal is to craft plans that feel like they were made specifically for this person in this moment.",
		maxTokens:   600,
		temperature: DefaultTemperature,
		json:        true,
		build:       taskPlanPrompt,
	},
	models.FeatureMoodAnalysis: {
		system:      "You are a supportive wellness assistant analyzing mood patterns to help users achieve their goals.",
		maxTokens:   200,
		temperature: DefaultTemperature,
		build:       moodAnalysisPrompt,
	},
	models.FeatureFocusOptimization: {
		system:      "You are a productivity expert providing focus optimization advice based on user patterns.",
		maxTokens:   150,
		temperature: DefaultTemperature,
		build:       focusOptimizationPrompt,
	},
	models.FeatureStressManagement: {
		system:      "You are a wellness expert providing stress management advice based on user patterns.",
		maxTokens:   150,
		temperature: DefaultTemperature,
		build:       stressManagementPrompt,
	},
}

// BuildPrompt renders the prompt for feature. now decides the time-of-day context.
func BuildPrompt(feature models.Feature, req *models.GenerateRequest, now time.Time) (*Prompt, error) {
	spec, ok := promptSpecs[feature]
	if !ok {
		return nil, fmt.Errorf("no prompt for feature %q", feature)
	}
	if req == nil {
		req = &models.GenerateRequest{}
	}
	user, fields := spec.build(req, now)
	return &Prompt{
		Feature:     feature,
		System:      spec.system,
		User:        user,
		MaxTokens:   spec.maxTokens,
		Temperature: spec.temperature,
		JSON:        spec.json,
		CacheFields: fields,
	}, nil
}

// EnergyTrend summarises the last three check-ins.
func EnergyTrend(checkins []models.Checkin) string {
	if len(checkins) == 0 {
		return "No recent data"
	}
	if len(checkins) > 3 {
		checkins = checkins[len(checkins)-3:]
	}
	var levels []string
	for _, c := range checkins {
		if c.EnergyLevel != "" {
			levels = append(levels, c.EnergyLevel)
		}
	}
	if len(levels) == 0 {
		return "No energy data available"
	}
	for _, l := range levels[1:] {
		if l != levels[0] {
			return "Varying energy levels"
		}
	}
	return "Consistently " + strings.ToLower(levels[0])
}

// MoodTrend summarises the last three mood entries.
func MoodTrend(moods []models.MoodEntry) string {
	if len(moods) > 3 {
		moods = moods[len(moods)-3:]
	}
	avg, ok := models.AverageIntensity(moods)
	if !ok {
		return "No recent data"
	}
	switch models.BandFor(avg) {
	case models.MoodPositive:
		return "Positive mood trend"
	case models.MoodStable:
		return "Stable mood"
	default:
		return "Lower mood trend"
	}
}

func moodSummary(moods []models.MoodEntry) string {
	avg, ok := models.AverageIntensity(moods)
	if !ok {
		return ""
	}
	switch models.BandFor(avg) {
	case models.MoodPositive:
		return "You've been in a positive mood recently"
	case models.MoodStable:
		return "Your mood has been stable"
	default:
		return "You've been experiencing some challenges"
	}
}

// mostCommonEnergy returns the most frequent energy level, earliest first on ties.
func mostCommonEnergy(checkins []models.Checkin) string {
	counts := make(map[string]int)
	best, bestCount := "", 0
	for _, c := range checkins {
		if c.EnergyLevel == "" {
			continue
		}
		counts[c.EnergyLevel]++
		if counts[c.EnergyLevel] > bestCount {
			best, bestCount = c.EnergyLevel, counts[c.EnergyLevel]
		}
	}
	return best
}

func checkinSummary(checkins []models.Checkin) string {
	if energy := mostCommonEnergy(checkins); energy != "" {
		return "Your energy has been " + strings.ToLower(energy)
	}
	return ""
}

func greetingPrompt(req *models.GenerateRequest, now time.Time) (string, map[string]any) {
	moods := req.RecentMoods(3)
	checkins := req.RecentCheckins(2)
	timeContext := models.TimeOfDay(now)
	summary := moodSummary(moods)

	mood := summary
	if mood == "" {
		mood = "Good"
	}
	prompt := fmt.Sprintf("Create a warm %s greeting for someone working on: %s\nTime: %s | Mood: %s\nKeep it personal and encouraging (1-2 sentences).",
		strings.ToLower(req.Profile.ToneOrDefault()), req.Profile.GoalOrDefault(), timeContext, mood)

	return prompt, map[string]any{
		"goal":            req.Profile.GoalOrDefault(),
		"tone":            req.Profile.ToneOrDefault(),
		"time_context":    timeContext,
		"mood_summary":    summary,
		"checkin_summary": checkinSummary(checkins),
		"recent_moods":    moods,
		"recent_checkins": checkins,
	}
}

func encouragementPrompt(req *models.GenerateRequest, _ time.Time) (string, map[string]any) {
	moods := req.RecentMoods(3)
	checkins := req.RecentCheckins(3)
	energy := checkinSummary(checkins)
	if energy == "" {
		energy = "Good energy"
	}

	prompt := fmt.Sprintf("Provide %s encouragement for someone with %s working on: %s\nEnergy trend: %s | Mood trend: %s\nWrite 1-2 motivating sentences.",
		strings.ToLower(req.Profile.ToneOrDefault()), strings.ToLower(energy), req.Profile.GoalOrDefault(),
		EnergyTrend(req.Checkins), MoodTrend(req.Moods))

	return prompt, map[string]any{
		"goal":         req.Profile.GoalOrDefault(),
		"tone":         req.Profile.ToneOrDefault(),
		"mood_data":    moods,
		"checkin_data": checkins,
		"energy_trend": EnergyTrend(req.Checkins),
		"mood_trend":   MoodTrend(req.Moods),
	}
}

func productivityTipPrompt(req *models.GenerateRequest, _ time.Time) (string, map[string]any) {
	p := req.Profile
	situation := valueOr(p.Situation, notSpecified)
	availability := valueOr(p.Availability, "1-2 hours")

	var b strings.Builder
	fmt.Fprintf(&b, "User goal: %s\n", p.GoalOrDefault())
	fmt.Fprintf(&b, "Situation: %s | Availability: %s\n", situation, availability)
	if len(p.EnergyDrainers) > 0 {
		fmt.Fprintf(&b, "Energy drainers: %s\n", strings.Join(p.EnergyDrainers, ", "))
	}
	fmt.Fprintf(&b, "Energy trend: %s | Mood trend: %s\n\n", EnergyTrend(req.Checkins), MoodTrend(req.Moods))
	b.WriteString("Please provide ONE specific, actionable productivity tip that considers their current situation and energy drainers. ")
	b.WriteString("Keep it practical, implementable, and concise (2-3 sentences max).")

	return b.String(), map[string]any{
		"profile":         p,
		"mood_data":       req.RecentMoods(7),
		"checkin_data":    req.RecentCheckins(7),
		"energy_drainers": p.EnergyDrainers,
		"situation":       situation,
		"availability":    availability,
	}
}

func weeklySummaryPrompt(req *models.GenerateRequest, _ time.Time) (string, map[string]any) {
	week := models.WeekAnalysis{}
	if req.Week != nil {
		week = *req.Week
	}
	peaks := week.EnergyPeakDays
	if len(peaks) > 3 {
		peaks = peaks[:3]
	}
	peakText := "N/A"
	if len(peaks) > 0 {
		peakText = strings.Join(peaks, ", ")
	}
	topMood := valueOr(week.TopMood, "N/A")

	prompt := fmt.Sprintf("Analyze weekly wellness data and provide encouraging insights.\n\n"+
		"User: %s | Tone: %s\n"+
		"Data: %d check-ins, %d moods, %d active days\n"+
		"Patterns: Energy peaks on %s | Top mood: %s\n\n"+
		"Write 2-3 encouraging paragraphs celebrating progress and suggesting improvements.",
		req.Profile.GoalOrDefault(), req.Profile.ToneOrDefault(),
		week.TotalCheckins, week.TotalMoodEntries, week.ActiveDays, peakText, topMood)

	return prompt, map[string]any{
		"goal": req.Profile.GoalOrDefault(),
		"tone": req.Profile.ToneOrDefault(),
		"week": week,
	}
}

func taskPlanPrompt(req *models.GenerateRequest, now time.Time) (string, map[string]any) {
	p := req.Profile
	c := req.LatestCheckin()
	period := models.TimeOfDay(now)
	moods := req.RecentMoods(3)
	recent := req.RecentCheckins(2)

	moodPattern := make([]string, 0, len(moods))
	for _, m := range moods {
		if len(m.Moods) == 0 {
			moodPattern = append(moodPattern, "Unknown")
			continue
		}
		moodPattern = append(moodPattern, strings.Join(m.Moods, ", "))
	}
	energyPattern := make([]string, 0, len(recent))
	for _, r := range recent {
		energyPattern = append(energyPattern, valueOr(r.EnergyLevel, "Unknown"))
	}

	var b strings.Builder
	b.WriteString("Create a deeply personalized plan that helps the user feel empowered, not overwhelmed, while making meaningful progress toward their goals.\n\n")
	b.WriteString("USER CONTEXT:\n")
	fmt.Fprintf(&b, "- Primary Goal: %s\n", p.GoalOrDefault())
	fmt.Fprintf(&b, "- Communication Style: %s\n", p.ToneOrDefault())
	fmt.Fprintf(&b, "- Available Time: %s\n", valueOr(p.Availability, "2-4 hours"))
	fmt.Fprintf(&b, "- Current Time: %s (%d:00)\n", period, now.Hour())
	fmt.Fprintf(&b, "- Life Situation: %s\n\n", valueOr(p.Situation, notSpecified))
	b.WriteString("CURRENT STATE:\n")
	fmt.Fprintf(&b, "- Sleep Quality: %s\n", valueOr(c.SleepQuality, notSpecified))
	fmt.Fprintf(&b, "- Energy Level: %s\n", valueOr(c.EnergyLevel, notSpecified))
	fmt.Fprintf(&b, "- Emotional State: %s\n", valueOr(c.CurrentFeeling, notSpecified))
	fmt.Fprintf(&b, "- Day Progress: %s\n", valueOr(c.DayProgress, notSpecified))
	fmt.Fprintf(&b, "- Main Focus: %s\n\n", valueOr(c.FocusToday, notSpecified))
	b.WriteString("PERSONAL PREFERENCES & PATTERNS:\n")
	fmt.Fprintf(&b, "- Energy Drainers (Avoid): %s\n", strings.Join(p.EnergyDrainers, ", "))
	fmt.Fprintf(&b, "- Joy Sources (Incorporate): %s\n", strings.Join(p.JoySources, ", "))
	fmt.Fprintf(&b, "- Small Habit: %s\n", p.SmallHabit)
	fmt.Fprintf(&b, "- Recent Mood Pattern: %s\n", strings.Join(moodPattern, "; "))
	fmt.Fprintf(&b, "- Recent Energy Pattern: %s\n\n", strings.Join(energyPattern, ", "))
	fmt.Fprintf(&b, "CREATE A PERSONALIZED %s PLAN THAT:\n", strings.ToUpper(period))
	b.WriteString("1. Breaks their main focus into 3-5 thoughtful, actionable steps\n")
	b.WriteString("2. Matches task complexity to their current energy and sleep\n")
	b.WriteString("3. Weaves in their joy sources and steers clear of their energy drainers\n")
	b.WriteString("4. Builds momentum, with each task leading naturally to the next\n\n")
	b.WriteString("FORMAT: Return a JSON object with keys \"tasks\" (array of strings), \"recommendations\" (array of strings), ")
	b.WriteString("\"estimated_duration\" (string), \"priority_order\" (\"energy_based\" or \"goal_based\") and \"personalized_note\" (string).")

	return b.String(), map[string]any{
		"time_period":     period,
		"current_hour":    now.Hour(),
		"profile":         p,
		"current_checkin": c,
		"recent_moods":    moods,
		"recent_checkins": recent,
	}
}

func moodAnalysisPrompt(req *models.GenerateRequest, _ time.Time) (string, map[string]any) {
	moods := req.RecentMoods(14)

	var b strings.Builder
	fmt.Fprintf(&b, "Analyze the following mood data for a user focused on: %s\n\n", req.Profile.GoalOrDefault())
	b.WriteString("Mood Entries:\n")
	writeMoods(&b, moods)
	b.WriteString("\nPlease provide:\n")
	b.WriteString("1. Key patterns in mood over time\n")
	b.WriteString("2. Correlation between mood and productivity\n")
	b.WriteString("3. Specific recommendations for improving mood and focus\n")
	b.WriteString("4. Encouraging insights based on positive trends\n\n")
	b.WriteString("Focus on actionable, supportive advice that aligns with their goal.")

	return b.String(), map[string]any{
		"goal":  req.Profile.GoalOrDefault(),
		"moods": moods,
	}
}

func focusOptimizationPrompt(req *models.GenerateRequest, _ time.Time) (string, map[string]any) {
	checkins := req.RecentCheckins(7)
	moods := req.RecentMoods(7)

	var b strings.Builder
	b.WriteString("Check-in Data:\n")
	writeCheckins(&b, checkins)
	b.WriteString("Mood Data:\n")
	writeMoods(&b, moods)
	b.WriteString("\nAnalyze patterns to provide focus optimization advice:\n")
	b.WriteString("1. Identify optimal times for deep work\n")
	b.WriteString("2. Suggest energy management strategies\n")
	b.WriteString("3. Recommend break patterns\n")
	b.WriteString("4. Address common focus blockers\n")
	b.WriteString("5. Provide environment optimization tips\n\n")
	b.WriteString("Base recommendations on actual user patterns and preferences.")

	return b.String(), map[string]any{
		"checkins": checkins,
		"moods":    moods,
	}
}

func stressManagementPrompt(req *models.GenerateRequest, _ time.Time) (string, map[string]any) {
	checkins := req.RecentCheckins(7)
	moods := req.RecentMoods(7)

	var b strings.Builder
	b.WriteString("Mood Data:\n")
	writeMoods(&b, moods)
	b.WriteString("Check-in Data:\n")
	writeCheckins(&b, checkins)
	b.WriteString("\nProvide stress management advice based on patterns:\n")
	b.WriteString("1. Identify stress triggers and patterns\n")
	b.WriteString("2. Suggest coping strategies\n")
	b.WriteString("3. Recommend preventive measures\n")
	b.WriteString("4. Provide relaxation techniques\n")
	b.WriteString("5. Suggest lifestyle adjustments\n\n")
	b.WriteString("Focus on practical, accessible stress management techniques.")

	return b.String(), map[string]any{
		"moods":           moods,
		"checkins":        checkins,
		"energy_drainers": req.Profile.EnergyDrainers,
	}
}

func writeMoods(b *strings.Builder, moods []models.MoodEntry) {
	if len(moods) == 0 {
		b.WriteString("- none recorded\n")
		return
	}
	for _, m := range moods {
		fmt.Fprintf(b, "- %s (intensity %d)", valueOr(strings.Join(m.Moods, ", "), "Unknown"), m.IntensityOrDefault())
		if m.Note != "" {
			fmt.Fprintf(b, ": %s", m.Note)
		}
		b.WriteString("\n")
	}
}

func writeCheckins(b *strings.Builder, checkins []models.Checkin) {
	if len(checkins) == 0 {
		b.WriteString("- none recorded\n")
		return
	}
	for _, c := range checkins {
		fmt.Fprintf(b, "- energy %s, sleep %s, feeling %s, progress %s\n",
			valueOr(c.EnergyLevel, "unknown"), valueOr(c.SleepQuality, "unknown"),
			valueOr(c.CurrentFeeling, "unknown"), valueOr(c.DayProgress, "unknown"))
	}
}

func valueOr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

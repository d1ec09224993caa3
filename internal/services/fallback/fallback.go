// Package fallback produces rule-based responses when the AI provider is not
// used, either because a cap was hit, the feature is off or the call failed.
package fallback

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/benvon/focus-companion/internal/models"
)

var productivityTips = []string{
	"💡 Try the Pomodoro Technique: 25 minutes of focused work, then a 5-minute break",
	"💡 Eliminate distractions by putting your phone in another room",
	"💡 Start with your most important task when your energy is highest",
	"💡 Take regular breaks to maintain focus and prevent burnout",
	"💡 Create a dedicated workspace to signal your brain it's time to focus",
	"💡 Use time-blocking to schedule specific tasks for specific times",
	"💡 Practice the 2-minute rule: if it takes less than 2 minutes, do it now",
	"💡 Batch similar tasks together to reduce context switching",
	"💡 Set clear, specific goals for each work session",
	"💡 Review and plan your day the night before",
}

var wellnessReminders = []string{
	"💧 Remember to stay hydrated throughout the day",
	"🌱 Take a moment to stretch and move your body",
	"😌 Practice deep breathing when you feel overwhelmed",
	"☀️ Get some natural light and fresh air",
	"🍎 Fuel your body with nutritious food",
	"😴 Prioritize good sleep for better focus tomorrow",
	"🎵 Listen to music that helps you focus",
	"🧘 Try a quick meditation or mindfulness exercise",
	"👥 Connect with someone who supports your goals",
	"🎯 Celebrate small wins and progress",
}

var weeklyMotivations = []string{
	"🚀 New week, new opportunities to make progress!",
	"🌟 You've got this! Every day is a chance to improve",
	"💪 Consistency beats perfection - keep showing up",
	"🎯 Small actions compound into big results",
	"🌈 Progress, not perfection, is the goal",
	"🔥 Your future self will thank you for today's efforts",
	"⭐ You're building habits that will serve you well",
	"🎊 Celebrate your commitment to growth and improvement",
}

var encouragementTemplates = map[string][]string{
	"morning": {
		"🌅 Good morning! Ready to tackle your goal: %s",
		"🌅 Rise and shine! Today is a new opportunity to work on: %s",
		"🌅 Morning! Let's start the day focused on: %s",
	},
	"afternoon": {
		"☀️ Good afternoon! How's your progress on: %s",
		"☀️ Afternoon check-in! Still working toward: %s",
		"☀️ Midday reminder: You're making progress on: %s",
	},
	"evening": {
		"🌆 Good evening! Reflect on your work toward: %s",
		"🌆 Evening! How did you do today with: %s",
		"🌆 Night check-in! Remember your focus on: %s",
	},
}

var goalReminders = []string{
	"🎯 Remember your goal: %s",
	"🎯 Every small step brings you closer to: %s",
	"🎯 Stay focused on what matters: %s",
	"🎯 Your progress toward %s is worth celebrating",
	"🎯 Keep moving forward with: %s",
}

var activitySuggestions = map[string][]string{
	"morning": {
		"🌅 Start with a 5-minute meditation",
		"📝 Write down your top 3 priorities for today",
		"🏃 Take a short walk to boost your energy",
		"📚 Read something inspiring for 10 minutes",
		"🎯 Set a specific, achievable goal for this morning",
	},
	"afternoon": {
		"☀️ Take a 10-minute break to recharge",
		"🚶 Go for a short walk outside",
		"💧 Drink a glass of water and stretch",
		"🎵 Listen to focus music for 15 minutes",
		"🧘 Do a quick breathing exercise",
	},
	"evening": {
		"🌆 Reflect on today's accomplishments",
		"📖 Read something relaxing before bed",
		"🛁 Take time to unwind and decompress",
		"📝 Plan tomorrow's priorities",
		"😴 Prepare for a good night's sleep",
	},
}

var joySuggestions = map[string]string{
	"Friends":        "👥 Connect with a friend or family member",
	"Movement":       "🏃‍♂️ Do some light exercise or stretching",
	"Creating":       "🎨 Spend time on a creative project",
	"Helping others": "🤝 Do something kind for someone else",
	"Nature":         "🌿 Spend time outdoors or with plants",
	"Rest":           "😌 Take a moment to rest and recharge",
	"Learning":       "📚 Read or learn something new",
}

var drainerTips = map[string]string{
	"Overwhelm":     "📝 Break tasks into smaller, manageable steps",
	"Lack of sleep": "😴 Prioritize getting 7-9 hours of sleep",
	"Isolation":     "👥 Reach out to someone for connection",
	"Criticism":     "💙 Practice self-compassion and positive self-talk",
	"Deadlines":     "⏰ Start tasks early to reduce deadline pressure",
}

var situationAdvice = map[string]string{
	"Freelancer":    "💼 As a freelancer, consider setting clear work boundaries and regular breaks",
	"New parent":    "👶 Parenting is demanding - remember to take care of yourself too",
	"PhD student":   "🎓 Research can be isolating - try to connect with colleagues regularly",
	"Full-time job": "🏢 Balance work demands with personal time and self-care",
	"Unemployed":    "💪 Use this time to build skills and maintain a positive routine",
}

const defaultSituationAdvice = "🌟 Focus on what you can control and celebrate small wins"

// moodWindow bounds which timestamped mood entries count as recent.
const moodWindow = 7 * 24 * time.Hour

// Generator builds fallback text. It is safe for concurrent use.
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// Option configures a Generator.
type Option func(*Generator)

// WithSeed makes choices deterministic.
func WithSeed(seed int64) Option {
	return func(g *Generator) { g.rng = rand.New(rand.NewSource(seed)) }
}

// New creates a Generator.
func New(opts ...Option) *Generator {
	g := &Generator{rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Generator) pick(options []string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return options[g.rng.Intn(len(options))]
}

func (g *Generator) sample(options []string, n int) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	idx := g.rng.Perm(len(options))
	if n > len(idx) {
		n = len(idx)
	}
	out := make([]string, 0, n)
	for _, i := range idx[:n] {
		out = append(out, options[i])
	}
	return out
}

// Generate returns the fallback text for feature. It never fails; unknown
// features get a wellness reminder.
func (g *Generator) Generate(feature models.Feature, req *models.GenerateRequest, now time.Time) string {
	if req == nil {
		req = &models.GenerateRequest{}
	}
	switch feature {
	case models.FeatureGreeting:
		return g.Greeting(req.Profile, now)
	case models.FeatureEncouragement:
		return g.Encouragement(req.Profile, now)
	case models.FeatureProductivityTip:
		return g.ProductivityTip()
	case models.FeatureMoodAnalysis:
		return MoodInsight(req.Moods, now)
	case models.FeatureWeeklySummary:
		return g.WeeklySummary(req)
	case models.FeatureTaskPlanning:
		return g.TaskPlanJSON(req, now)
	case models.FeatureFocusOptimization:
		return g.FocusSuggestion(req.Profile, now)
	case models.FeatureStressManagement:
		return g.StressSuggestion(req.Profile)
	default:
		return g.WellnessReminder()
	}
}

// Greeting is a time-of-day greeting shaped by the user's tone preference.
func (g *Generator) Greeting(p models.Profile, now time.Time) string {
	var greeting string
	switch models.TimeOfDay(now) {
	case "morning":
		greeting = "Good morning"
	case "afternoon":
		greeting = "Good afternoon"
	default:
		greeting = "Good evening"
	}

	var phrase string
	switch strings.ToLower(p.Tone) {
	case "gentle & supportive":
		phrase = "I'm here to support you"
	case "direct & motivating":
		phrase = "Let's make today productive"
	default:
		phrase = "Ready to help you focus"
	}
	return fmt.Sprintf("%s! %s on your goal: %s", greeting, phrase, p.GoalOrDefault())
}

// Encouragement is a time-of-day message that names the user's goal.
func (g *Generator) Encouragement(p models.Profile, now time.Time) string {
	return fmt.Sprintf(g.pick(encouragementTemplates[models.TimeOfDay(now)]), p.GoalOrDefault())
}

// ProductivityTip returns one general productivity tip.
func (g *Generator) ProductivityTip() string {
	return g.pick(productivityTips)
}

// WellnessReminder returns one general wellness reminder.
func (g *Generator) WellnessReminder() string {
	return g.pick(wellnessReminders)
}

// GoalReminder returns a reminder naming the user's goal.
func (g *Generator) GoalReminder(p models.Profile) string {
	return fmt.Sprintf(g.pick(goalReminders), p.GoalOrDefault())
}

// MoodInsight summarises mood entries from the last week. Entries without a
// timestamp are treated as recent.
func MoodInsight(moods []models.MoodEntry, now time.Time) string {
	if len(moods) == 0 {
		return "💡 Start tracking your mood to discover patterns and insights!"
	}
	recent := make([]models.MoodEntry, 0, len(moods))
	for _, m := range moods {
		if m.Timestamp.IsZero() || now.Sub(m.Timestamp) < moodWindow {
			recent = append(recent, m)
		}
	}
	avg, ok := models.AverageIntensity(recent)
	if !ok {
		return "💡 Log your mood regularly to see how it affects your focus and productivity!"
	}
	switch models.BandFor(avg) {
	case models.MoodPositive:
		return "🎉 Your mood has been positive recently! This is great for maintaining focus and productivity."
	case models.MoodStable:
		return "😊 Your mood has been stable. Consider what activities boost your energy and mood."
	default:
		return "💙 Your mood has been lower than usual. Remember to be kind to yourself and reach out for support if needed."
	}
}

// WeeklySummary is a motivation line plus the week's counts when known.
func (g *Generator) WeeklySummary(req *models.GenerateRequest) string {
	motivation := g.pick(weeklyMotivations)
	if req.Week == nil {
		return motivation
	}
	w := req.Week
	summary := fmt.Sprintf("This week you logged %d check-ins and %d mood entries across %d active days.",
		w.TotalCheckins, w.TotalMoodEntries, w.ActiveDays)
	if w.TopMood != "" {
		summary += fmt.Sprintf(" Your most common mood was %s.", strings.ToLower(w.TopMood))
	}
	return motivation + "\n\n" + summary + "\n\n" + g.GoalReminder(req.Profile)
}

// FocusSuggestion is a time-of-day activity plus advice for the user's situation.
func (g *Generator) FocusSuggestion(p models.Profile, now time.Time) string {
	return g.pick(activitySuggestions[models.TimeOfDay(now)]) + "\n" + SituationAdvice(p.Situation)
}

// StressSuggestion addresses the user's first known energy drainer, or gives a
// general reminder.
func (g *Generator) StressSuggestion(p models.Profile) string {
	if tips := DrainerTips(p.EnergyDrainers); len(tips) > 0 {
		return tips[0] + "\n" + "😌 Practice deep breathing when you feel overwhelmed"
	}
	return g.WellnessReminder()
}

// SituationAdvice returns advice for a known life situation.
func SituationAdvice(situation string) string {
	if advice, ok := situationAdvice[situation]; ok {
		return advice
	}
	return defaultSituationAdvice
}

// JoySuggestions maps joy sources to suggestions, skipping unknown ones.
func JoySuggestions(sources []string) []string {
	var out []string
	for _, s := range sources {
		if v, ok := joySuggestions[s]; ok {
			out = append(out, v)
		}
	}
	return out
}

// DrainerTips maps energy drainers to tips, skipping unknown ones.
func DrainerTips(drainers []string) []string {
	var out []string
	for _, d := range drainers {
		if v, ok := drainerTips[d]; ok {
			out = append(out, v)
		}
	}
	return out
}

// TaskPlanJSON renders TaskPlan as JSON, the same shape the AI is asked for.
func (g *Generator) TaskPlanJSON(req *models.GenerateRequest, now time.Time) string {
	data, err := json.Marshal(g.TaskPlan(req, now))
	if err != nil {
		return `{"tasks":[],"recommendations":[]}`
	}
	return string(data)
}

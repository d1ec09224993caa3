package fallback

import (
	"fmt"
	"time"

	"github.com/benvon/focus-companion/internal/models"
)

// TaskPlan is a structured plan for the rest of the day.
type TaskPlan struct {
	Tasks             []string `json:"tasks"`
	Recommendations   []string `json:"recommendations"`
	EstimatedDuration string   `json:"estimated_duration"`
	PriorityOrder     string   `json:"priority_order"`
	PersonalizedNote  string   `json:"personalized_note,omitempty"`
}

var (
	gentleMorningTasks = []string{
		"🌅 Gentle morning routine (10 min)",
		"💧 Hydrate with water",
		"🧘 Light stretching or meditation",
		"☕ Enjoy a warm beverage slowly",
		"🌱 Spend 5 minutes with plants or nature",
		"📖 Read something uplifting for 10 minutes",
	}
	productiveMorningTasks = []string{
		"🎯 Tackle your most important task first",
		"📝 Review and prioritize today's goals",
		"🏃‍♂️ Consider exercise if energy is high",
		"⚡ Use your peak energy for complex work",
		"📊 Plan your day with specific time blocks",
		"🎨 Start with creative or challenging tasks",
	}
	energyBoostTasks = []string{
		"☕ Have a healthy breakfast",
		"🚶‍♂️ Take a short walk outside",
		"📚 Start with lighter, more enjoyable tasks",
		"🍎 Eat a nutritious snack",
		"🌞 Get some natural light exposure",
		"🎵 Listen to energizing music",
	}
	highEnergyTasks = []string{
		"⚡ Use your high energy for complex tasks",
		"🎯 Break down your main goal into 2-3 key actions",
		"⏰ Set specific time blocks for focused work",
		"🚀 Tackle challenging projects first",
		"📈 Work on skill development",
		"🎨 Engage in creative problem-solving",
	}
)

func oneOf(v string, options ...string) bool {
	for _, o := range options {
		if v == o {
			return true
		}
	}
	return false
}

// TaskPlan builds a plan from the latest check-in, shaped by time of day.
func (g *Generator) TaskPlan(req *models.GenerateRequest, now time.Time) TaskPlan {
	checkin := req.LatestCheckin()
	focus := checkin.FocusToday
	if focus == "" {
		focus = req.Profile.GoalOrDefault()
	}

	switch models.TimeOfDay(now) {
	case "morning":
		return g.morningPlan(req.Profile, checkin, focus)
	case "afternoon":
		return afternoonPlan(req.Profile, checkin)
	default:
		return eveningPlan(checkin)
	}
}

func (g *Generator) morningPlan(p models.Profile, c models.Checkin, focus string) TaskPlan {
	sleep := valueOr(c.SleepQuality, "Good")
	energy := valueOr(c.EnergyLevel, "Good")
	plan := TaskPlan{PriorityOrder: "energy_based"}

	switch {
	case oneOf(sleep, "Poor", "Terrible"):
		plan.Tasks = append(plan.Tasks, g.sample(gentleMorningTasks, 3)...)
		plan.Recommendations = append(plan.Recommendations, "Start with gentle activities to build momentum")
	case oneOf(sleep, "Excellent", "Good"):
		plan.Tasks = append(plan.Tasks, g.sample(productiveMorningTasks, 3)...)
		plan.Recommendations = append(plan.Recommendations, "Great sleep! You're ready for focused work")
	}

	switch {
	case oneOf(energy, "Low", "Very low"):
		plan.Tasks = append(plan.Tasks, g.sample(energyBoostTasks, 3)...)
		plan.Recommendations = append(plan.Recommendations, "Build energy gradually with nourishing activities")
	case oneOf(energy, "High", "Good"):
		plan.Tasks = append(plan.Tasks, g.sample(highEnergyTasks, 3)...)
		plan.Recommendations = append(plan.Recommendations, "Perfect energy for productive deep work")
	}

	plan.Tasks = append(plan.Tasks, "🎯 Main focus: "+focus, "📋 Break this into 3 smaller steps")
	if joy := JoySuggestions(p.JoySources); len(joy) > 0 {
		plan.Tasks = append(plan.Tasks, "💫 Energy boost: "+joy[0])
	}
	if p.SmallHabit != "" && oneOf(p.Energy, "Low", "Very low") {
		plan.Recommendations = append(plan.Recommendations,
			fmt.Sprintf("🌱 Remember your small habit goal: %s. Even 5 minutes counts!", p.SmallHabit))
	}
	plan.Recommendations = append(plan.Recommendations, SituationAdvice(p.Situation))
	plan.EstimatedDuration = estimateDuration(energy, sleep)
	return plan
}

func afternoonPlan(p models.Profile, c models.Checkin) TaskPlan {
	energy := valueOr(c.EnergyLevel, "Good")
	progress := valueOr(c.DayProgress, "Good")
	plan := TaskPlan{PriorityOrder: "progress_based"}

	switch {
	case oneOf(progress, "Challenging", "Difficult"):
		plan.Tasks = append(plan.Tasks,
			"🔄 Review what's working and what's not",
			"📝 Break down remaining tasks into smaller chunks",
			"☕ Take a proper break to reset")
		plan.Recommendations = append(plan.Recommendations, "It's okay to adjust your approach")
	case oneOf(progress, "Great", "Good"):
		plan.Tasks = append(plan.Tasks,
			"🚀 Build on your momentum",
			"🎯 Focus on your next priority",
			"💡 Consider adding one more meaningful task")
		plan.Recommendations = append(plan.Recommendations, "Great progress! Keep the momentum going")
	}

	lowEnergy := oneOf(energy, "Low", "Very low")
	switch {
	case lowEnergy:
		plan.Tasks = append(plan.Tasks,
			"🍎 Have a healthy snack",
			"🚶‍♂️ Take a 10-minute walk",
			"📚 Switch to lighter, administrative tasks")
		plan.Recommendations = append(plan.Recommendations, "Focus on energy restoration and lighter tasks")
	case oneOf(energy, "High", "Good"):
		plan.Tasks = append(plan.Tasks,
			"⚡ Tackle your most challenging remaining task",
			"🎯 Deep work session (45-90 minutes)",
			"📊 Review and adjust your plan for the rest of the day")
		plan.Recommendations = append(plan.Recommendations, "Use your energy for focused, important work")
	}

	if tips := DrainerTips(p.EnergyDrainers); len(tips) > 0 {
		plan.Recommendations = append(plan.Recommendations, "💡 Avoid energy drainers: "+tips[0])
	}
	if joy := JoySuggestions(p.JoySources); len(joy) > 0 && lowEnergy {
		plan.Tasks = append(plan.Tasks, "💫 Quick energy boost: "+joy[0])
	}
	plan.EstimatedDuration = estimateDuration(energy, "Good")
	return plan
}

func eveningPlan(c models.Checkin) TaskPlan {
	plan := TaskPlan{PriorityOrder: "wellness_based", EstimatedDuration: "1-2 hours"}

	switch {
	case oneOf(c.CurrentFeeling, "Tired", "Stressed"):
		plan.Tasks = append(plan.Tasks,
			"🧘 Gentle evening routine",
			"📖 Light reading or listening",
			"🛁 Relaxing activity (bath, tea, etc.)")
		plan.Recommendations = append(plan.Recommendations, "Focus on rest and recovery")
	case oneOf(c.CurrentFeeling, "Accomplished", "Good"):
		plan.Tasks = append(plan.Tasks,
			"📝 Reflect on today's wins",
			"🎯 Plan tomorrow's priorities",
			"🎉 Celebrate your accomplishments")
		plan.Recommendations = append(plan.Recommendations, "Great day! Plan for tomorrow's success")
	}

	plan.Tasks = append(plan.Tasks,
		"🌙 Prepare for tomorrow",
		"📋 Review tomorrow's schedule",
		"😴 Wind down routine")
	return plan
}

func estimateDuration(energy, sleep string) string {
	switch {
	case oneOf(energy, "High", "Good") && oneOf(sleep, "Excellent", "Good"):
		return "4-6 hours of focused work"
	case energy == "Moderate":
		return "3-4 hours of moderate work"
	default:
		return "2-3 hours of lighter tasks"
	}
}

func valueOr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

package personalize

import (
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/Chandra-cc/personalized-learning/internal/models"
)

const (
	// experiencedYears is the experience above which beginner steps are skipped
	experiencedYears = 2

	beginnerFactor = 1.5
	advancedFactor = 1.5

	lowHoursPerWeek  = 7
	highHoursPerWeek = 14
	lowHoursFactor   = 1.2
	highHoursFactor  = 0.8

	electiveDuration = "1 week"
	electivePrefix   = "Elective: "
)

// styleResourceTypes maps a learning style to a resource type
var styleResourceTypes = map[models.LearningStyle]string{
	models.StyleVisual:    "video",
	models.StyleReading:   "documentation",
	models.StylePractical: "practice",
}

// ExperienceFilter drops steps marked "beginner" in their title or in any
// project difficulty when the user has more than two years of experience.
// The substring test is a placeholder heuristic over free text.
var ExperienceFilter = Stage{
	Name: "experience-filter",
	Apply: func(steps []models.PersonalizedStep, prefs *models.PreferenceProfile) []models.PersonalizedStep {
		years, ok := validNumber(prefs.YearsOfExperience, "years_of_experience")
		if !ok || years <= experiencedYears {
			return steps
		}
		out := steps[:0:0]
		for _, s := range steps {
			if isBeginnerStep(s) {
				continue
			}
			out = append(out, s)
		}
		return out
	},
}

// DurationRescale adjusts each step's duration for pace and weekly hours
var DurationRescale = Stage{
	Name: "duration-rescale",
	Apply: func(steps []models.PersonalizedStep, prefs *models.PreferenceProfile) []models.PersonalizedStep {
		f := newDurationFactors(prefs)
		for i := range steps {
			steps[i].Duration = f.rescale(steps[i].Duration)
		}
		return steps
	},
}

// ResourceAnnotation records a single recommended resource type per step
var ResourceAnnotation = Stage{
	Name: "resource-annotation",
	Apply: func(steps []models.PersonalizedStep, prefs *models.PreferenceProfile) []models.PersonalizedStep {
		kind := RecommendedType(prefs)
		if kind == "" {
			return steps
		}
		for i := range steps {
			if steps[i].Resources == nil {
				steps[i].Resources = models.Resources{}
			}
			steps[i].Resources[models.RecommendedTypeKey] = kind
		}
		return steps
	},
}

// CareerHighlight flags steps whose title mentions one of the career goals
var CareerHighlight = Stage{
	Name: "career-highlight",
	Apply: func(steps []models.PersonalizedStep, prefs *models.PreferenceProfile) []models.PersonalizedStep {
		goals := careerGoals(prefs)
		for i := range steps {
			for _, g := range goals {
				if titleMentions(steps[i].Title, g) {
					steps[i].HighlightForCareerGoal = true
					break
				}
			}
		}
		return steps
	},
}

// ElectiveSynthesis appends one elective per career goal that no surviving
// step title mentions, in declaration order
var ElectiveSynthesis = Stage{
	Name: "elective-synthesis",
	Apply: func(steps []models.PersonalizedStep, prefs *models.PreferenceProfile) []models.PersonalizedStep {
		// electives appended below never count as matches
		surviving := len(steps)
		for _, g := range careerGoals(prefs) {
			matched := false
			for _, s := range steps[:surviving] {
				if titleMentions(s.Title, g) {
					matched = true
					break
				}
			}
			if !matched {
				steps = append(steps, Elective(g))
			}
		}
		return steps
	},
}

// Elective builds the synthetic step for an unmatched career goal
func Elective(goal string) models.PersonalizedStep {
	return models.PersonalizedStep{
		Title:                  electivePrefix + goal,
		Duration:               electiveDuration,
		Description:            fmt.Sprintf("Explore topics related to %s to support your career goals.", goal),
		LearningObjectives:     []string{},
		Resources:              models.Resources{},
		SkillsGained:           []string{},
		Prerequisites:          []string{},
		HighlightForCareerGoal: true,
	}
}

// RecommendedType picks the resource type for a profile: the first
// preferred content type, else the learning style mapping, else "".
func RecommendedType(prefs *models.PreferenceProfile) string {
	if prefs == nil {
		return ""
	}
	for _, t := range prefs.PreferredContentTypes {
		if t = strings.TrimSpace(t); t != "" {
			return t
		}
	}
	return styleResourceTypes[models.LearningStyle(strings.ToLower(string(prefs.Style())))]
}

// RescaleDuration applies the duration stage to a single duration string
func RescaleDuration(duration string, prefs *models.PreferenceProfile) string {
	return newDurationFactors(prefs).rescale(duration)
}

type durationFactors struct {
	difficulty models.DifficultyLevel
	hours      float64
	hasHours   bool
}

func newDurationFactors(prefs *models.PreferenceProfile) durationFactors {
	var f durationFactors
	if prefs == nil {
		return f
	}
	if raw := prefs.Difficulty(); raw != "" {
		if d, ok := models.ParseDifficulty(string(raw)); ok {
			f.difficulty = d
		} else {
			slog.Warn("skipping difficulty adjustment",
				"field", "difficulty_preference",
				"value", raw,
				"error", models.ErrMalformedPreferenceData,
			)
		}
	}
	f.hours, f.hasHours = validNumber(prefs.AvailableHoursPerWeek, "available_hours_per_week")
	return f
}

// rescale leaves durations that are not exactly "<number> <unit>" unchanged
func (f durationFactors) rescale(duration string) string {
	parts := strings.Fields(duration)
	if len(parts) != 2 {
		return duration
	}
	n, err := strconv.ParseFloat(parts[0], 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return duration
	}

	switch f.difficulty {
	case models.DifficultyBeginner:
		n *= beginnerFactor
	case models.DifficultyAdvanced:
		// floored at one unit, but never longer than the original
		n = math.Max(n/advancedFactor, math.Min(n, 1))
	}

	if f.hasHours {
		switch {
		case f.hours < lowHoursPerWeek:
			n *= lowHoursFactor
		case f.hours > highHoursPerWeek:
			n *= highHoursFactor
		}
	}

	n = math.Round(n*10) / 10
	return strconv.FormatFloat(n, 'f', -1, 64) + " " + parts[1]
}

func isBeginnerStep(s models.PersonalizedStep) bool {
	if containsFold(s.Title, "beginner") {
		return true
	}
	for _, p := range s.Projects {
		if containsFold(p.Difficulty, "beginner") {
			return true
		}
	}
	return false
}

// careerGoals returns trimmed, non-empty career goals with case-insensitive
// duplicates removed
func careerGoals(prefs *models.PreferenceProfile) []string {
	if prefs == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(prefs.CareerGoals))
	out := make([]string, 0, len(prefs.CareerGoals))
	for _, g := range prefs.CareerGoals {
		g = strings.TrimSpace(g)
		key := strings.ToLower(g)
		if g == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, g)
	}
	return out
}

func titleMentions(title, goal string) bool {
	return containsFold(title, goal)
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func validNumber(v *float64, field string) (float64, bool) {
	if v == nil {
		return 0, false
	}
	if math.IsNaN(*v) || math.IsInf(*v, 0) || *v < 0 {
		slog.Warn("skipping preference adjustment",
			"field", field,
			"value", *v,
			"error", models.ErrMalformedPreferenceData,
		)
		return 0, false
	}
	return *v, true
}

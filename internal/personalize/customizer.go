// Package personalize turns catalog paths into per-user paths.
//
// Customization is an ordered pipeline of named stages. Each stage receives
// the output of the previous one and returns a new slice; catalog templates
// are deep-copied before the first stage runs and are never modified.
//
// Default stage order:
//
//	experience-filter   drop beginner steps for experienced users
//	duration-rescale    scale "<n> <unit>" by pace and weekly hours
//	resource-annotation set resources.recommended_type
//	career-highlight    flag steps whose title mentions a career goal
//	elective-synthesis  append electives for unmatched career goals
package personalize

import (
	"github.com/Chandra-cc/personalized-learning/internal/models"
)

// Stage is one named transformation of a personalized path
type Stage struct {
	Name  string
	Apply func(steps []models.PersonalizedStep, prefs *models.PreferenceProfile) []models.PersonalizedStep
}

// Pipeline is an ordered list of stages
type Pipeline []Stage

// DefaultPipeline returns the standard stage order
func DefaultPipeline() Pipeline {
	return Pipeline{
		ExperienceFilter,
		DurationRescale,
		ResourceAnnotation,
		CareerHighlight,
		ElectiveSynthesis,
	}
}

// Run materializes base and applies every stage. With nil prefs the base
// path is returned as a deep copy without running any stage.
func (p Pipeline) Run(base []models.StepTemplate, prefs *models.PreferenceProfile) []models.PersonalizedStep {
	steps := make([]models.PersonalizedStep, 0, len(base))
	for _, t := range base {
		steps = append(steps, t.Personalize())
	}
	if prefs == nil {
		return steps
	}
	return p.Apply(steps, prefs)
}

// Apply runs every stage over already materialized steps. steps is
// consumed; callers keep no reference to it.
func (p Pipeline) Apply(steps []models.PersonalizedStep, prefs *models.PreferenceProfile) []models.PersonalizedStep {
	if prefs == nil {
		return steps
	}
	for _, stage := range p {
		steps = stage.Apply(steps, prefs)
	}
	return steps
}

// EnhancedPipeline is applied to model-generated paths. Filtering and
// rescaling are left to the model.
func EnhancedPipeline() Pipeline {
	return Pipeline{
		ResourceAnnotation,
		CareerHighlight,
		ElectiveSynthesis,
	}
}

// Customize runs the default pipeline
func Customize(base []models.StepTemplate, prefs *models.PreferenceProfile) []models.PersonalizedStep {
	return DefaultPipeline().Run(base, prefs)
}

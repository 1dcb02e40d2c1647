package catalog

import (
	"github.com/Chandra-cc/personalized-learning/internal/models"
)

// Registry is the read-only goal → ordered steps catalog.
// It is built once at startup and never modified afterwards, so it is safe
// for concurrent use without locking.
type Registry struct {
	order []string
	goals map[string][]models.StepTemplate
}

// Goal is a named ordered sequence of step templates used to build a Registry
type Goal struct {
	Name  string
	Steps []models.StepTemplate
}

// New builds a registry from goals in iteration order. A later goal with
// the same name replaces the earlier steps but keeps the original position.
func New(goals ...Goal) *Registry {
	r := &Registry{goals: make(map[string][]models.StepTemplate, len(goals))}
	for _, g := range goals {
		if _, exists := r.goals[g.Name]; !exists {
			r.order = append(r.order, g.Name)
		}
		steps := make([]models.StepTemplate, len(g.Steps))
		copy(steps, g.Steps)
		r.goals[g.Name] = steps
	}
	return r
}

// Goals returns goal names in catalog order
func (r *Registry) Goals() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Steps returns the ordered steps of a goal. The returned slice is a copy;
// the templates' nested slices are shared and must be treated as read-only.
func (r *Registry) Steps(goal string) ([]models.StepTemplate, bool) {
	steps, ok := r.goals[goal]
	if !ok {
		return nil, false
	}
	out := make([]models.StepTemplate, len(steps))
	copy(out, steps)
	return out, true
}

// FirstStep returns the first step of a goal, or ErrEmptyCatalog
func (r *Registry) FirstStep(goal string) (models.StepTemplate, error) {
	steps := r.goals[goal]
	if len(steps) == 0 {
		return models.StepTemplate{}, models.ErrEmptyCatalog
	}
	return steps[0], nil
}

// Skills returns the union of skills gained across a goal's steps, in
// first-seen order
func (r *Registry) Skills(goal string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, step := range r.goals[goal] {
		for _, s := range step.SkillsGained {
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

// Len returns the number of goals
func (r *Registry) Len() int {
	return len(r.order)
}

// List returns a summary of every goal in catalog order
func (r *Registry) List() []models.GoalInfo {
	out := make([]models.GoalInfo, 0, len(r.order))
	for _, name := range r.order {
		skills := r.Skills(name)
		if skills == nil {
			skills = []string{}
		}
		out = append(out, models.GoalInfo{
			Name:       name,
			StepsCount: len(r.goals[name]),
			Skills:     skills,
		})
	}
	return out
}

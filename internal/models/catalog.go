package models

// RecommendedTypeKey is the resources entry written by the path customizer
const RecommendedTypeKey = "recommended_type"

// Project is an optional hands-on project attached to a step
type Project struct {
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description" yaml:"description"`
	Difficulty  string `json:"difficulty" yaml:"difficulty"` // beginner | intermediate | advanced
}

// Resources maps a resource type (primary, video_course, practice, ...) to a URL
type Resources map[string]string

// Clone returns an independent copy of the resource map
func (r Resources) Clone() Resources {
	out := make(Resources, len(r)+1)
	for k, v := range r {
		out[k] = v
	}
	return out
}

// StepTemplate is an immutable catalog-defined unit of a learning path.
// Templates are shared process-wide and must never be modified in place;
// use Personalize to obtain a per-user copy.
type StepTemplate struct {
	Title              string    `json:"title"`
	Duration           string    `json:"duration"` // "<number> <unit>", e.g. "2 weeks"
	Description        string    `json:"description"`
	Difficulty         string    `json:"difficulty,omitempty"`
	LearningObjectives []string  `json:"learning_objectives"`
	Resources          Resources `json:"resources"`
	SkillsGained       []string  `json:"skills_gained"`
	Prerequisites      []string  `json:"prerequisites"`
	Projects           []Project `json:"projects,omitempty"`
}

// Personalize deep-copies the template into a PersonalizedStep
func (t StepTemplate) Personalize() PersonalizedStep {
	return PersonalizedStep{
		Title:              t.Title,
		Duration:           t.Duration,
		Description:        t.Description,
		Difficulty:         t.Difficulty,
		LearningObjectives: cloneStrings(t.LearningObjectives),
		Resources:          t.Resources.Clone(),
		SkillsGained:       cloneStrings(t.SkillsGained),
		Prerequisites:      cloneStrings(t.Prerequisites),
		Projects:           cloneProjects(t.Projects),
	}
}

// HasSkill reports whether the step lists skill among its gained skills
func (t StepTemplate) HasSkill(skill string) bool {
	for _, s := range t.SkillsGained {
		if s == skill {
			return true
		}
	}
	return false
}

// GoalInfo summarizes a catalog goal for listing endpoints
type GoalInfo struct {
	Name       string   `json:"name"`
	StepsCount int      `json:"steps_count"`
	Skills     []string `json:"skills"`
}

func cloneStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func cloneProjects(in []Project) []Project {
	if len(in) == 0 {
		return nil
	}
	out := make([]Project, len(in))
	copy(out, in)
	return out
}

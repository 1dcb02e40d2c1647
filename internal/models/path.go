package models

// PersonalizedStep is a StepTemplate adapted to one user's preferences.
// It is rebuilt from the template on every path generation.
type PersonalizedStep struct {
	Title                  string    `json:"title"`
	Duration               string    `json:"duration"`
	Description            string    `json:"description"`
	Difficulty             string    `json:"difficulty,omitempty"`
	LearningObjectives     []string  `json:"learning_objectives"`
	Resources              Resources `json:"resources"`
	SkillsGained           []string  `json:"skills_gained"`
	Prerequisites          []string  `json:"prerequisites"`
	Projects               []Project `json:"projects,omitempty"`
	HighlightForCareerGoal bool      `json:"highlight_for_career_goal,omitempty"`
}

// RecommendedType returns the annotated resource type, if any
func (s PersonalizedStep) RecommendedType() (string, bool) {
	v, ok := s.Resources[RecommendedTypeKey]
	return v, ok
}

// Clone returns an independent copy of the step
func (s PersonalizedStep) Clone() PersonalizedStep {
	out := s
	out.LearningObjectives = cloneStrings(s.LearningObjectives)
	out.Resources = s.Resources.Clone()
	out.SkillsGained = cloneStrings(s.SkillsGained)
	out.Prerequisites = cloneStrings(s.Prerequisites)
	out.Projects = cloneProjects(s.Projects)
	return out
}

// ClonePath deep-copies a whole path
func ClonePath(path []PersonalizedStep) []PersonalizedStep {
	out := make([]PersonalizedStep, len(path))
	for i, s := range path {
		out[i] = s.Clone()
	}
	return out
}

// PathScore is a ranked alternative goal
type PathScore struct {
	Goal  string  `json:"goal"`
	Score float64 `json:"score"`
}

// RecommendationType distinguishes next-step suggestions
type RecommendationType string

const (
	RecommendationCurrentPath RecommendationType = "current_path"
	RecommendationRelatedPath RecommendationType = "related_path"
)

// Recommendation is a single next-step suggestion.
// current_path items carry StepIndex and Step; related_path items carry
// PathName, Score and FirstStep.
type Recommendation struct {
	Type      RecommendationType `json:"type"`
	StepIndex *int               `json:"step_index,omitempty"`
	Step      *PersonalizedStep  `json:"step,omitempty"`
	PathName  string             `json:"path_name,omitempty"`
	Score     float64            `json:"score,omitempty"`
	FirstStep *StepTemplate      `json:"first_step,omitempty"`
	Reason    string             `json:"reason"`
}

// SkillScore pairs a skill with an accumulated value
type SkillScore struct {
	Skill string  `json:"skill"`
	Score float64 `json:"score"`
}

// Insights summarizes a user's completed-step history
type Insights struct {
	AvgCompletionTime    float64      `json:"avg_completion_time"` // minutes
	TopSkills            []SkillScore `json:"top_performing_skills"`
	Velocity             float64      `json:"learning_velocity"` // steps per week
	TotalCompleted       int          `json:"total_steps_completed"`
	CurrentStreakDays    int          `json:"current_streak_days"`
	AverageComprehension float64      `json:"average_comprehension"`
}

// LearningPath is the stored path of a user together with its goal
type LearningPath struct {
	UserID   string             `json:"user_id,omitempty"`
	Goal     string             `json:"goal"`
	Steps    []PersonalizedStep `json:"learning_path"`
	Progress ProgressMap        `json:"progress,omitempty"`
	Enhanced bool               `json:"enhanced,omitempty"`
}

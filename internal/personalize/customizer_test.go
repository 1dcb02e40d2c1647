package personalize

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Chandra-cc/personalized-learning/internal/catalog"
	"github.com/Chandra-cc/personalized-learning/internal/models"
)

func ptr[T any](v T) *T { return &v }

func difficulty(d models.DifficultyLevel) *models.DifficultyLevel { return &d }

func style(s models.LearningStyle) *models.LearningStyle { return &s }

func webPath(t *testing.T) []models.StepTemplate {
	t.Helper()
	reg, err := catalog.Default()
	require.NoError(t, err)
	steps, ok := reg.Steps("Become a Web Developer")
	require.True(t, ok)
	return steps
}

func TestCustomize_NilPrefsIsIdentity(t *testing.T) {
	base := webPath(t)
	got := Customize(base, nil)

	require.Len(t, got, len(base))
	for i := range base {
		assert.Equal(t, base[i].Personalize(), got[i])
	}

	got[0].Resources["primary"] = "changed"
	assert.NotEqual(t, "changed", base[0].Resources["primary"], "template mutated through customized path")
}

func TestCustomize_AdvancedScenario(t *testing.T) {
	base := []models.StepTemplate{{Title: "HTML Basics", Duration: "2 weeks"}}
	prefs := &models.PreferenceProfile{
		DifficultyPreference:  difficulty(models.DifficultyAdvanced),
		AvailableHoursPerWeek: ptr(20.0),
	}

	got := Customize(base, prefs)
	require.Len(t, got, 1)
	assert.Equal(t, "1.1 weeks", got[0].Duration)
	assert.Equal(t, "2 weeks", base[0].Duration)
}

func TestCustomize_ExperiencedUserSkipsBeginnerSteps(t *testing.T) {
	base := []models.StepTemplate{
		{Title: "Beginner Python", Duration: "1 week"},
		{Title: "Statistics", Duration: "1 week", Projects: []models.Project{{Title: "Report", Difficulty: "Beginner"}}},
		{Title: "Machine Learning", Duration: "2 weeks", Projects: []models.Project{{Title: "Model", Difficulty: "advanced"}}},
	}

	got := Customize(base, &models.PreferenceProfile{YearsOfExperience: ptr(5.0)})
	require.Len(t, got, 1)
	assert.Equal(t, "Machine Learning", got[0].Title)

	for _, years := range []float64{0, 2} {
		got = Customize(base, &models.PreferenceProfile{YearsOfExperience: ptr(years)})
		assert.Len(t, got, 3, "years=%v", years)
	}
}

func TestCustomize_CatalogBeginnerStepsAbsent(t *testing.T) {
	got := Customize(webPath(t), &models.PreferenceProfile{YearsOfExperience: ptr(5.0)})
	for _, s := range got {
		assert.NotContains(t, s.Title, "beginner")
		for _, p := range s.Projects {
			assert.NotEqual(t, "beginner", p.Difficulty)
		}
	}
	assert.Len(t, got, 3)
}

func TestCustomize_ResourceAnnotation(t *testing.T) {
	base := []models.StepTemplate{{Title: "A", Duration: "1 week", Resources: models.Resources{"primary": "https://a"}}}

	tests := []struct {
		name  string
		prefs *models.PreferenceProfile
		want  string
	}{
		{"content type wins", &models.PreferenceProfile{PreferredContentTypes: []string{"interactive", "video"}, LearningStyle: style(models.StyleReading)}, "interactive"},
		{"visual style", &models.PreferenceProfile{LearningStyle: style(models.StyleVisual)}, "video"},
		{"reading style", &models.PreferenceProfile{LearningStyle: style(models.StyleReading)}, "documentation"},
		{"practical style", &models.PreferenceProfile{LearningStyle: style(models.StylePractical)}, "practice"},
		{"unknown style", &models.PreferenceProfile{LearningStyle: style("auditory")}, ""},
		{"nothing", &models.PreferenceProfile{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Customize(base, tt.prefs)
			kind, ok := got[0].RecommendedType()
			if tt.want == "" {
				assert.False(t, ok)
			} else {
				assert.Equal(t, tt.want, kind)
			}
			assert.Equal(t, "https://a", got[0].Resources["primary"])
		})
	}
}

func TestCustomize_CareerGoalsHighlightAndElectives(t *testing.T) {
	base := []models.StepTemplate{
		{Title: "JavaScript Essentials", Duration: "1 week"},
		{Title: "React Basics", Duration: "1 week"},
	}
	prefs := &models.PreferenceProfile{CareerGoals: []string{"react", "Cloud", "  ", "cloud", "DevOps"}}

	got := Customize(base, prefs)
	require.Len(t, got, 4)

	assert.False(t, got[0].HighlightForCareerGoal)
	assert.True(t, got[1].HighlightForCareerGoal)

	assert.Equal(t, "Elective: Cloud", got[2].Title)
	assert.Equal(t, "Elective: DevOps", got[3].Title)
	for _, e := range got[2:] {
		assert.True(t, e.HighlightForCareerGoal)
		assert.Equal(t, "1 week", e.Duration)
		assert.Empty(t, e.Resources)
		assert.Empty(t, e.Projects)
		assert.Contains(t, e.Description, e.Title[len("Elective: "):])
	}
}

func TestCustomize_ElectiveWhenMatchingStepWasFiltered(t *testing.T) {
	base := []models.StepTemplate{
		{Title: "Beginner React", Duration: "1 week"},
		{Title: "Node.js", Duration: "2 weeks"},
	}
	prefs := &models.PreferenceProfile{YearsOfExperience: ptr(4.0), CareerGoals: []string{"React"}}

	got := Customize(base, prefs)
	require.Len(t, got, 2)
	assert.Equal(t, "Node.js", got[0].Title)
	assert.Equal(t, "Elective: React", got[1].Title)
}

func TestCustomize_ElectivesDoNotMatchLaterGoals(t *testing.T) {
	base := []models.StepTemplate{{Title: "HTML Basics", Duration: "2 weeks"}}
	prefs := &models.PreferenceProfile{CareerGoals: []string{"Cloud Architecture", "Cloud"}}

	got := Customize(base, prefs)
	require.Len(t, got, 3)
	assert.Equal(t, "HTML Basics", got[0].Title)
	assert.Equal(t, "Elective: Cloud Architecture", got[1].Title)
	assert.Equal(t, "Elective: Cloud", got[2].Title)
}

func TestRescaleDuration(t *testing.T) {
	tests := []struct {
		name     string
		duration string
		prefs    *models.PreferenceProfile
		want     string
	}{
		{"beginner", "2 weeks", &models.PreferenceProfile{DifficultyPreference: difficulty(models.DifficultyBeginner)}, "3 weeks"},
		{"intermediate", "2 weeks", &models.PreferenceProfile{DifficultyPreference: difficulty(models.DifficultyIntermediate)}, "2 weeks"},
		{"advanced floors at one", "1 week", &models.PreferenceProfile{DifficultyPreference: difficulty(models.DifficultyAdvanced)}, "1 week"},
		{"few hours", "1 week", &models.PreferenceProfile{AvailableHoursPerWeek: ptr(5.0)}, "1.2 week"},
		{"many hours", "2 weeks", &models.PreferenceProfile{AvailableHoursPerWeek: ptr(15.0)}, "1.6 weeks"},
		{"boundary hours", "2 weeks", &models.PreferenceProfile{AvailableHoursPerWeek: ptr(14.0)}, "2 weeks"},
		{"beginner few hours", "1 week", &models.PreferenceProfile{DifficultyPreference: difficulty(models.DifficultyBeginner), AvailableHoursPerWeek: ptr(3.0)}, "1.8 week"},
		{"one token", "forever", &models.PreferenceProfile{DifficultyPreference: difficulty(models.DifficultyBeginner)}, "forever"},
		{"three tokens", "2 to 3 weeks", &models.PreferenceProfile{DifficultyPreference: difficulty(models.DifficultyBeginner)}, "2 to 3 weeks"},
		{"non numeric", "few weeks", &models.PreferenceProfile{DifficultyPreference: difficulty(models.DifficultyBeginner)}, "few weeks"},
		{"unknown difficulty", "2 weeks", &models.PreferenceProfile{DifficultyPreference: difficulty("expert")}, "2 weeks"},
		{"negative hours", "2 weeks", &models.PreferenceProfile{AvailableHoursPerWeek: ptr(-3.0)}, "2 weeks"},
		{"nan hours", "2 weeks", &models.PreferenceProfile{AvailableHoursPerWeek: ptr(math.NaN())}, "2 weeks"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RescaleDuration(tt.duration, tt.prefs))
		})
	}
}

func TestRescaleDuration_Monotonic(t *testing.T) {
	parse := func(t *testing.T, s string) float64 {
		t.Helper()
		var n float64
		var unit string
		_, err := fmt.Sscan(s, &n, &unit)
		require.NoError(t, err)
		return n
	}

	durations := []string{"0.5 week", "1 week", "1.5 weeks", "2 weeks", "3 weeks", "10 weeks"}
	hours := []*float64{nil, ptr(3.0), ptr(10.0), ptr(20.0)}

	for _, d := range durations {
		for _, h := range hours {
			none := parse(t, RescaleDuration(d, &models.PreferenceProfile{AvailableHoursPerWeek: h}))
			beginner := parse(t, RescaleDuration(d, &models.PreferenceProfile{DifficultyPreference: difficulty(models.DifficultyBeginner), AvailableHoursPerWeek: h}))
			advanced := parse(t, RescaleDuration(d, &models.PreferenceProfile{DifficultyPreference: difficulty(models.DifficultyAdvanced), AvailableHoursPerWeek: h}))

			assert.GreaterOrEqual(t, beginner, none, "beginner shortened %s", d)
			assert.LessOrEqual(t, advanced, none, "advanced lengthened %s", d)
		}
	}
}

func TestPipeline_StagesIndependentlyRunnable(t *testing.T) {
	steps := []models.PersonalizedStep{{Title: "Cloud Basics", Duration: "1 week"}}
	prefs := &models.PreferenceProfile{CareerGoals: []string{"cloud"}}

	got := Pipeline{CareerHighlight}.Run([]models.StepTemplate{{Title: "Cloud Basics", Duration: "1 week"}}, prefs)
	assert.True(t, got[0].HighlightForCareerGoal)

	got = ElectiveSynthesis.Apply(steps, prefs)
	assert.Len(t, got, 1)

	names := make([]string, 0)
	for _, s := range DefaultPipeline() {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"experience-filter", "duration-rescale", "resource-annotation", "career-highlight", "elective-synthesis"}, names)
}

func TestEnhancedPipeline(t *testing.T) {
	steps := []models.PersonalizedStep{{Title: "Beginner Cloud", Duration: "2 weeks"}}
	prefs := &models.PreferenceProfile{
		YearsOfExperience:    ptr(10.0),
		DifficultyPreference: difficulty(models.DifficultyBeginner),
		LearningStyle:        style(models.StyleVisual),
		CareerGoals:          []string{"cloud", "security"},
	}

	got := EnhancedPipeline().Apply(steps, prefs)
	require.Len(t, got, 2)
	assert.Equal(t, "2 weeks", got[0].Duration)
	assert.True(t, got[0].HighlightForCareerGoal)
	assert.Equal(t, "video", got[0].Resources[models.RecommendedTypeKey])
	assert.Equal(t, "Elective: security", got[1].Title)
}

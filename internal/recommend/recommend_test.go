package recommend

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Chandra-cc/personalized-learning/internal/catalog"
	"github.com/Chandra-cc/personalized-learning/internal/models"
)

const (
	webDev  = "Become a Web Developer"
	dataSci = "Become a Data Scientist"
)

func twoGoalCatalog() *catalog.Registry {
	return catalog.New(
		catalog.Goal{Name: webDev, Steps: []models.StepTemplate{
			{Title: "HTML, CSS Basics", Duration: "1 week", SkillsGained: []string{"HTML", "CSS"}},
			{Title: "JavaScript Essentials", Duration: "1 week", SkillsGained: []string{"JavaScript"}},
			{Title: "React Basics", Duration: "1 week", SkillsGained: []string{"React"}},
			{Title: "Backend with Node.js", Duration: "2 weeks", SkillsGained: []string{"Node.js", "JavaScript"}},
		}},
		catalog.Goal{Name: dataSci, Steps: []models.StepTemplate{
			{Title: "Python", Duration: "1 week", SkillsGained: []string{"Python"}},
			{Title: "Statistics", Duration: "2 weeks", SkillsGained: []string{"Statistics", "Pandas"}},
		}},
	)
}

func completed(idx int, score *float64, skills ...string) CompletedStep {
	done := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return CompletedStep{
		Record: models.StepProgressRecord{StepIndex: idx, StartedAt: done.Add(-time.Hour), CompletedAt: &done, ComprehensionScore: score},
		Step:   models.PersonalizedStep{Title: "step", SkillsGained: skills},
	}
}

func score(v float64) *float64 { return &v }

func TestAggregate_Weights(t *testing.T) {
	got := Aggregate([]CompletedStep{
		completed(0, nil, "HTML", "CSS"),
		completed(1, score(90), "JavaScript", "HTML"),
		completed(2, score(80), "React"),
	}, []string{"JavaScript", "Go"})

	assert.Equal(t, InterestWeights{
		"HTML":       2.5,
		"CSS":        1.0,
		"JavaScript": 3.5,
		"React":      1.0,
		"Go":         2.0,
	}, got)
}

func TestAggregate_IgnoresIncompleteRecords(t *testing.T) {
	in := completed(0, nil, "HTML")
	in.Record.CompletedAt = nil
	assert.Empty(t, Aggregate([]CompletedStep{in}, nil))
}

func TestAggregate_Additive(t *testing.T) {
	a := []CompletedStep{completed(0, nil, "HTML", "CSS"), completed(1, score(95), "JavaScript")}
	b := []CompletedStep{completed(2, score(85), "React", "JavaScript"), completed(3, nil, "HTML")}

	separate := Aggregate(a, nil)
	separate.Merge(Aggregate(b, nil))

	union := Aggregate(append(append([]CompletedStep{}, a...), b...), nil)
	assert.Equal(t, union, separate)
}

func TestPairCompleted_SkipsStaleAndIncomplete(t *testing.T) {
	done := time.Now()
	path := []models.PersonalizedStep{
		{Title: "A", SkillsGained: []string{"x"}},
		{Title: "B", SkillsGained: []string{"y"}},
	}
	records := []models.StepProgressRecord{
		{StepIndex: 0, CompletedAt: &done},
		{StepIndex: 1},
		{StepIndex: 5, CompletedAt: &done},
		{StepIndex: -1, CompletedAt: &done},
	}

	got := PairCompleted(records, path)
	require.Len(t, got, 1)
	assert.Equal(t, "A", got[0].Step.Title)
}

func TestRank_WebDeveloperScenario(t *testing.T) {
	weights := InterestWeights{"JavaScript": 2.0, "React": 1.5}

	got := Rank(weights, twoGoalCatalog(), "")
	require.Len(t, got, 1)
	assert.Equal(t, webDev, got[0].Goal)
	assert.InDelta(t, 3.5, got[0].Score, 1e-9)
}

func TestRank_ExcludesGoalAndSorts(t *testing.T) {
	reg, err := catalog.Default()
	require.NoError(t, err)

	weights := InterestWeights{"Python": 3, "JavaScript": 2, "React": 1.5, "SQL": 1, "Figma": 0.5}
	for _, exclude := range reg.Goals() {
		got := Rank(weights, reg, exclude)
		for i, ps := range got {
			assert.NotEqual(t, exclude, ps.Goal)
			assert.Greater(t, ps.Score, 0.0)
			if i > 0 {
				assert.GreaterOrEqual(t, got[i-1].Score, ps.Score)
			}
		}
	}
}

func TestRank_TiesAreAlphabetical(t *testing.T) {
	reg := catalog.New(
		catalog.Goal{Name: "Zeta", Steps: []models.StepTemplate{{Title: "z", SkillsGained: []string{"Go"}}}},
		catalog.Goal{Name: "Alpha", Steps: []models.StepTemplate{{Title: "a", SkillsGained: []string{"Go"}}}},
	)
	got := Rank(InterestWeights{"Go": 1}, reg, "")
	require.Len(t, got, 2)
	assert.Equal(t, "Alpha", got[0].Goal)
	assert.Equal(t, "Zeta", got[1].Goal)
}

func TestRank_EmptyWeights(t *testing.T) {
	assert.Empty(t, Rank(nil, twoGoalCatalog(), ""))
}

func TestNextSteps_EarliestIncompleteOnly(t *testing.T) {
	path := []models.PersonalizedStep{{Title: "one"}, {Title: "two"}, {Title: "three"}}
	in := NextInput{
		Goal:     webDev,
		Path:     path,
		Progress: models.ProgressMap{"0": true, "1": false},
	}

	got := NextSteps(in, twoGoalCatalog())
	require.Len(t, got, 1)
	assert.Equal(t, models.RecommendationCurrentPath, got[0].Type)
	require.NotNil(t, got[0].StepIndex)
	assert.Equal(t, 1, *got[0].StepIndex)
	assert.Equal(t, "two", got[0].Step.Title)
}

func TestNextSteps_CompletedPathRecommendsRelated(t *testing.T) {
	in := NextInput{
		Goal:     dataSci,
		Path:     []models.PersonalizedStep{{Title: "Python"}},
		Progress: models.ProgressMap{"0": true},
		Weights:  InterestWeights{"HTML": 3, "CSS": 2, "Python": 5},
	}

	got := NextSteps(in, twoGoalCatalog())
	require.Len(t, got, 1)
	assert.Equal(t, models.RecommendationRelatedPath, got[0].Type)
	assert.Equal(t, webDev, got[0].PathName)
	assert.InDelta(t, 5.0, got[0].Score, 1e-9)
	require.NotNil(t, got[0].FirstStep)
	assert.Equal(t, "HTML, CSS Basics", got[0].FirstStep.Title)
	assert.Equal(t, "Based on your interests in HTML, CSS", got[0].Reason)
}

func TestNextSteps_AtMostTwoRelatedPaths(t *testing.T) {
	reg, err := catalog.Default()
	require.NoError(t, err)

	weights := make(InterestWeights)
	for _, g := range reg.Goals() {
		for _, s := range reg.Skills(g) {
			weights.Add(s, 1)
		}
	}

	got := NextSteps(NextInput{Goal: reg.Goals()[0], Weights: weights}, reg)
	assert.Len(t, got, 2)
	for _, r := range got {
		assert.Equal(t, models.RecommendationRelatedPath, r.Type)
		assert.NotEqual(t, reg.Goals()[0], r.PathName)
	}
}

func TestNextSteps_GenericReasonAndEmptyGoal(t *testing.T) {
	reg := catalog.New(
		catalog.Goal{Name: "Empty"},
		catalog.Goal{Name: "Cloud", Steps: []models.StepTemplate{
			{Title: "Intro", SkillsGained: []string{"Linux"}},
			{Title: "AWS", SkillsGained: []string{"AWS"}},
		}},
	)

	got := NextSteps(NextInput{Weights: InterestWeights{"AWS": 2}}, reg)
	require.Len(t, got, 1)
	assert.Equal(t, "Cloud", got[0].PathName)
	assert.Equal(t, genericPathReason, got[0].Reason)
}

func TestInterestWeightsTop(t *testing.T) {
	w := InterestWeights{"b": 2, "a": 2, "c": 5, "d": 1}
	assert.Equal(t, []models.SkillScore{{Skill: "c", Score: 5}, {Skill: "a", Score: 2}}, w.Top(2))
	assert.Len(t, w.Top(-1), 4)
	assert.Empty(t, InterestWeights{}.Top(3))
}

package recommend

import (
	"sort"

	"github.com/Chandra-cc/personalized-learning/internal/models"
)

// Catalog is the read-only view of the goal catalog needed for ranking.
// *catalog.Registry satisfies it.
type Catalog interface {
	Goals() []string
	Skills(goal string) []string
	FirstStep(goal string) (models.StepTemplate, error)
}

// Rank scores every catalog goal except excludeGoal by the summed weight of
// the skills it teaches. Goals scoring zero are dropped. The result is
// sorted by descending score, then goal name.
func Rank(weights InterestWeights, cat Catalog, excludeGoal string) []models.PathScore {
	var scores []models.PathScore
	for _, goal := range cat.Goals() {
		if goal == excludeGoal {
			continue
		}
		var score float64
		for _, skill := range cat.Skills(goal) {
			score += weights[skill]
		}
		if score > 0 {
			scores = append(scores, models.PathScore{Goal: goal, Score: score})
		}
	}

	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].Goal < scores[j].Goal
	})
	return scores
}

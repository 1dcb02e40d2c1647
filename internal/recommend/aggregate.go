// Package recommend derives interest weights from completed steps and ranks
// catalog goals against them.
package recommend

import (
	"log/slog"
	"sort"

	"github.com/Chandra-cc/personalized-learning/internal/models"
)

const (
	skillWeight         = 1.0
	strongSkillWeight   = 1.5
	strongComprehension = 80.0
	interestWeight      = 2.0
)

// CompletedStep pairs a completed progress record with the path step it
// refers to
type CompletedStep struct {
	Record models.StepProgressRecord
	Step   models.PersonalizedStep
}

// InterestWeights maps a skill name to its accumulated affinity
type InterestWeights map[string]float64

// Add accumulates w onto skill
func (iw InterestWeights) Add(skill string, w float64) {
	iw[skill] += w
}

// Merge adds every weight of other into iw
func (iw InterestWeights) Merge(other InterestWeights) {
	for k, v := range other {
		iw[k] += v
	}
}

// Top returns up to n skills by descending weight. Equal weights are
// ordered by skill name.
func (iw InterestWeights) Top(n int) []models.SkillScore {
	out := make([]models.SkillScore, 0, len(iw))
	for k, v := range iw {
		out = append(out, models.SkillScore{Skill: k, Score: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Skill < out[j].Skill
	})
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// PairCompleted matches completed records to steps of the current path.
// Records whose index falls outside the path were written against an older
// path and are skipped.
func PairCompleted(records []models.StepProgressRecord, path []models.PersonalizedStep) []CompletedStep {
	out := make([]CompletedStep, 0, len(records))
	for _, rec := range records {
		if !rec.IsCompleted() {
			continue
		}
		if rec.StepIndex < 0 || rec.StepIndex >= len(path) {
			slog.Debug("skipping progress record",
				"user_id", rec.UserID,
				"step_index", rec.StepIndex,
				"path_len", len(path),
				"error", models.ErrStaleProgressIndex,
			)
			continue
		}
		out = append(out, CompletedStep{Record: rec, Step: path[rec.StepIndex]})
	}
	return out
}

// Aggregate builds interest weights from completed steps and explicit
// interests. Weights are additive and never normalized.
func Aggregate(completed []CompletedStep, explicitInterests []string) InterestWeights {
	weights := make(InterestWeights)
	for _, c := range completed {
		if !c.Record.IsCompleted() {
			continue
		}
		w := skillWeight
		if s := c.Record.ComprehensionScore; s != nil && *s > strongComprehension {
			w = strongSkillWeight
		}
		for _, skill := range c.Step.SkillsGained {
			weights.Add(skill, w)
		}
	}
	for _, interest := range explicitInterests {
		weights.Add(interest, interestWeight)
	}
	return weights
}

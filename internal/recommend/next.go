package recommend

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/Chandra-cc/personalized-learning/internal/models"
)

const (
	relatedPathLimit  = 2
	reasonSkillLimit  = 2
	continueReason    = "Continue your current learning path"
	genericPathReason = "Related to what you have been learning"
)

// NextInput is the materialized state needed to recommend next steps
type NextInput struct {
	Goal     string
	Path     []models.PersonalizedStep
	Progress models.ProgressMap
	Weights  InterestWeights
}

// NextSteps recommends the earliest incomplete step of the current path
// followed by up to two related goals.
func NextSteps(in NextInput, cat Catalog) []models.Recommendation {
	var recs []models.Recommendation

	for i := range in.Path {
		if in.Progress.Done(i) {
			continue
		}
		idx := i
		step := in.Path[i].Clone()
		recs = append(recs, models.Recommendation{
			Type:      models.RecommendationCurrentPath,
			StepIndex: &idx,
			Step:      &step,
			Reason:    continueReason,
		})
		break
	}

	added := 0
	for _, ps := range Rank(in.Weights, cat, in.Goal) {
		if added == relatedPathLimit {
			break
		}
		first, err := cat.FirstStep(ps.Goal)
		if err != nil {
			if !errors.Is(err, models.ErrEmptyCatalog) {
				slog.Warn("skipping related path", "goal", ps.Goal, "error", err)
			}
			continue
		}
		recs = append(recs, models.Recommendation{
			Type:      models.RecommendationRelatedPath,
			PathName:  ps.Goal,
			Score:     ps.Score,
			FirstStep: &first,
			Reason:    relatedReason(in.Weights, first),
		})
		added++
	}

	return recs
}

// relatedReason names up to two of the highest weighted skills taught by the
// goal's first step
func relatedReason(weights InterestWeights, first models.StepTemplate) string {
	var names []string
	for _, s := range weights.Top(-1) {
		if len(names) == reasonSkillLimit {
			break
		}
		if s.Score > 0 && first.HasSkill(s.Skill) {
			names = append(names, s.Skill)
		}
	}
	if len(names) == 0 {
		return genericPathReason
	}
	return "Based on your interests in " + strings.Join(names, ", ")
}

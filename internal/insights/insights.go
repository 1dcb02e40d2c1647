// Package insights summarizes a user's completed steps
package insights

import (
	"time"

	"github.com/Chandra-cc/personalized-learning/internal/models"
	"github.com/Chandra-cc/personalized-learning/internal/recommend"
)

const (
	topSkillCount = 3
	day           = 24 * time.Hour
)

// Estimate computes learning insights from completed steps. Incomplete
// records are ignored; an empty input yields zero values.
func Estimate(completed []recommend.CompletedStep) models.Insights {
	out := models.Insights{TopSkills: []models.SkillScore{}}

	var (
		count       int
		minutes     int
		scored      int
		scoreSum    float64
		earliest    time.Time
		latest      time.Time
		performance = make(recommend.InterestWeights)
		days        = make(map[time.Time]struct{})
	)

	for _, c := range completed {
		rec := c.Record
		if !rec.IsCompleted() {
			continue
		}
		count++
		minutes += rec.TimeSpent

		if s := rec.ComprehensionScore; s != nil && *s > 0 {
			scored++
			scoreSum += *s
			for _, skill := range c.Step.SkillsGained {
				performance.Add(skill, *s)
			}
		}

		start := rec.StartedAt
		if start.IsZero() {
			start = *rec.CompletedAt
		}
		if earliest.IsZero() || start.Before(earliest) {
			earliest = start
		}
		if rec.CompletedAt.After(latest) {
			latest = *rec.CompletedAt
		}
		days[calendarDay(*rec.CompletedAt)] = struct{}{}
	}

	if count == 0 {
		return out
	}

	out.TotalCompleted = count
	out.AvgCompletionTime = float64(minutes) / float64(count)
	out.TopSkills = performance.Top(topSkillCount)
	if scored > 0 {
		out.AverageComprehension = scoreSum / float64(scored)
	}

	if wholeDays := int(latest.Sub(earliest) / day); wholeDays > 0 {
		out.Velocity = float64(count) / (float64(wholeDays) / 7)
	}

	out.CurrentStreakDays = streak(days, calendarDay(latest))
	return out
}

// streak counts consecutive days with a completion, ending at last
func streak(days map[time.Time]struct{}, last time.Time) int {
	n := 0
	for d := last; ; d = d.AddDate(0, 0, -1) {
		if _, ok := days[d]; !ok {
			return n
		}
		n++
	}
}

func calendarDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

package models

import (
	"strconv"
	"time"
)

// StepProgressRecord tracks one user's progress on one step index.
// There is at most one record per (user, step index).
type StepProgressRecord struct {
	UserID             string     `json:"user_id"`
	StepIndex          int        `json:"step_index"`
	StartedAt          time.Time  `json:"started_at"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	TimeSpent          int        `json:"time_spent"` // minutes
	ResourceVisits     int        `json:"resource_visits"`
	DifficultyRating   *int       `json:"difficulty_rating,omitempty"`   // 1-5
	ComprehensionScore *float64   `json:"comprehension_score,omitempty"` // 0-100
	Notes              string     `json:"notes,omitempty"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// IsCompleted returns true once a completion time was recorded
func (r *StepProgressRecord) IsCompleted() bool {
	return r != nil && r.CompletedAt != nil
}

// ProgressMap marks completed step indices. Keys are zero-based indices
// serialized as strings.
type ProgressMap map[string]bool

// Done reports whether step index i is marked complete
func (m ProgressMap) Done(i int) bool {
	return m[strconv.Itoa(i)]
}

// Mark sets the completion flag for step index i
func (m ProgressMap) Mark(i int, done bool) {
	m[strconv.Itoa(i)] = done
}

// ProgressEventType names the kind of progress update
type ProgressEventType string

const (
	ProgressStart    ProgressEventType = "start"
	ProgressComplete ProgressEventType = "complete"
	ProgressTime     ProgressEventType = "time"
	ProgressVisit    ProgressEventType = "visit"
	ProgressFeedback ProgressEventType = "feedback"
)

// ProgressEvent is a single progress update sent by a client
type ProgressEvent struct {
	Type               ProgressEventType `json:"type" validate:"required,oneof=start complete time visit feedback"`
	StepIndex          int               `json:"step_index" validate:"min=0"`
	TimeSpent          int               `json:"time_spent,omitempty" validate:"min=0"`
	DifficultyRating   *int              `json:"difficulty_rating,omitempty" validate:"omitempty,min=1,max=5"`
	ComprehensionScore *float64          `json:"comprehension_score,omitempty" validate:"omitempty,min=0,max=100"`
	Notes              string            `json:"notes,omitempty" validate:"max=2000"`
	At                 *time.Time        `json:"at,omitempty"`
}

// Apply folds the event into rec. rec must already carry UserID and
// StepIndex. now is used when the event has no timestamp.
func (e ProgressEvent) Apply(rec *StepProgressRecord, now time.Time) {
	at := now
	if e.At != nil {
		at = *e.At
	}
	if rec.StartedAt.IsZero() {
		rec.StartedAt = at
	}

	switch e.Type {
	case ProgressStart:
		// started_at already set
	case ProgressComplete:
		if rec.CompletedAt == nil {
			done := at
			rec.CompletedAt = &done
		}
	case ProgressVisit:
		rec.ResourceVisits++
	}

	if e.TimeSpent > 0 {
		rec.TimeSpent += e.TimeSpent
	}
	if e.DifficultyRating != nil {
		v := *e.DifficultyRating
		rec.DifficultyRating = &v
	}
	if e.ComprehensionScore != nil {
		v := *e.ComprehensionScore
		rec.ComprehensionScore = &v
	}
	if e.Notes != "" {
		rec.Notes = e.Notes
	}
	rec.UpdatedAt = now
}

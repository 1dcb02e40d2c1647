package models

import "errors"

// Degradation taxonomy shared by the path core. Only ErrNoMatchingGoal is a
// terminal outcome; the others mark a single input that was skipped.
var (
	ErrNoMatchingGoal          = errors.New("no matching goal")
	ErrMalformedPreferenceData = errors.New("malformed preference data")
	ErrStaleProgressIndex      = errors.New("stale progress index")
	ErrEmptyCatalog            = errors.New("goal has no steps")
)

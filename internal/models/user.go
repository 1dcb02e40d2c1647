package models

import "time"

// User is a learner with a stored path and completion map
type User struct {
	ID           string             `json:"id"`
	Age          int                `json:"age"`
	Gender       string             `json:"gender"`
	Education    string             `json:"education"`
	Goal         string             `json:"goal"`
	LearningPath []PersonalizedStep `json:"learning_path"`
	Progress     ProgressMap        `json:"progress"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// ProfileSubmission is the body of the submit-profile request
type ProfileSubmission struct {
	Age         int              `json:"age" validate:"required,min=1,max=120"`
	Gender      string           `json:"gender" validate:"required,max=20"`
	Education   string           `json:"education" validate:"required,max=100"`
	Goal        string           `json:"goal" validate:"required,max=200"`
	Preferences *PreferenceInput `json:"preferences,omitempty"`
}

// SubmitProfileResponse is returned after a profile submission
type SubmitProfileResponse struct {
	Message      string             `json:"message"`
	UserID       string             `json:"user_id"`
	Goal         string             `json:"goal"`
	LearningPath []PersonalizedStep `json:"learning_path"`
	Warnings     []string           `json:"warnings,omitempty"`
}

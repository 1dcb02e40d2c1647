package storage

import (
	"context"
	"errors"
	"time"

	"github.com/Chandra-cc/personalized-learning/internal/models"
)

// ErrNotFound is returned by write operations whose target row is missing.
// Reads return nil, nil instead.
var ErrNotFound = errors.New("not found")

// ProgressUpdate is the result of recording one progress event
type ProgressUpdate struct {
	Record   models.StepProgressRecord `json:"record"`
	Progress models.ProgressMap        `json:"progress"`
}

// StaleProgress counts records removed by DeleteStaleProgress per user
type StaleProgress struct {
	UserID  string
	Removed int64
}

// Repository defines the interface for learning path persistence
type Repository interface {
	// Users
	CreateUser(ctx context.Context, u *models.User, prefs *models.PreferenceProfile) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	// ReplacePath stores a regenerated path. Progress flags for indices past
	// the new path length are dropped in the same transaction.
	ReplacePath(ctx context.Context, userID, goal string, path []models.PersonalizedStep) (models.ProgressMap, error)

	// Preferences
	GetPreferences(ctx context.Context, userID string) (*models.PreferenceProfile, error)
	UpsertPreferences(ctx context.Context, userID string, prefs *models.PreferenceProfile) error

	// Progress
	RecordProgress(ctx context.Context, userID string, ev models.ProgressEvent, now time.Time) (*ProgressUpdate, error)
	ListProgress(ctx context.Context, userID string) ([]models.StepProgressRecord, error)
	DeleteStaleProgress(ctx context.Context) ([]StaleProgress, error)

	// API Clients
	GetClientByApiKey(ctx context.Context, apiKey string) (*models.ApiClient, error)
	UpdateClientLastUsed(ctx context.Context, apiKey string) error

	// Health
	Ping(ctx context.Context) error
	Close() error
}

package learning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Chandra-cc/personalized-learning/internal/cache"
	"github.com/Chandra-cc/personalized-learning/internal/catalog"
	"github.com/Chandra-cc/personalized-learning/internal/enhancer"
	"github.com/Chandra-cc/personalized-learning/internal/feed"
	"github.com/Chandra-cc/personalized-learning/internal/insights"
	"github.com/Chandra-cc/personalized-learning/internal/matcher"
	"github.com/Chandra-cc/personalized-learning/internal/metrics"
	"github.com/Chandra-cc/personalized-learning/internal/models"
	"github.com/Chandra-cc/personalized-learning/internal/personalize"
	"github.com/Chandra-cc/personalized-learning/internal/recommend"
	"github.com/Chandra-cc/personalized-learning/internal/storage"
)

// Common errors
var (
	ErrUserNotFound = errors.New("user not found")
	ErrInvalidStep  = errors.New("step index outside current path")
)

const submitMessage = "User data submitted successfully"

// Service defines the learning path operations exposed to the API
type Service interface {
	SubmitProfile(ctx context.Context, sub models.ProfileSubmission) (*models.SubmitProfileResponse, error)
	GeneratePath(ctx context.Context, goalText, userID string) (*models.LearningPath, error)
	GetLearningPath(ctx context.Context, userID string) (*models.LearningPath, error)
	RegeneratePath(ctx context.Context, userID string) (*models.LearningPath, error)
	UpdatePreferences(ctx context.Context, userID string, in models.PreferenceInput) (*PreferencesUpdate, error)
	RecordProgress(ctx context.Context, userID string, ev models.ProgressEvent) (*storage.ProgressUpdate, error)
	RecommendNextSteps(ctx context.Context, userID string) ([]models.Recommendation, error)
	GetInsights(ctx context.Context, userID string) (*models.Insights, error)
	Goals() []models.GoalInfo
	Ping(ctx context.Context) error
}

// PreferencesUpdate is returned after preferences were stored
type PreferencesUpdate struct {
	Preferences  models.PreferenceProfile `json:"preferences"`
	LearningPath *models.LearningPath     `json:"learning_path"`
	Warnings     []string                 `json:"warnings,omitempty"`
}

// Option configures a PathService
type Option func(*PathService)

// WithEnhancer enables model-based path enhancement
func WithEnhancer(e enhancer.Enhancer) Option {
	return func(s *PathService) { s.enhancer = e }
}

// WithCache sets the generated path cache
func WithCache(c cache.PathCache) Option {
	return func(s *PathService) { s.cache = c }
}

// WithHub publishes recorded progress to live subscribers
func WithHub(h *feed.Hub) Option {
	return func(s *PathService) { s.hub = h }
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *PathService) { s.now = now }
}

// PathService implements Service over a Repository and the catalog
type PathService struct {
	repo     storage.Repository
	catalog  *catalog.Registry
	enhancer enhancer.Enhancer
	cache    cache.PathCache
	hub      *feed.Hub
	now      func() time.Time
}

// NewService creates a PathService
func NewService(repo storage.Repository, reg *catalog.Registry, opts ...Option) *PathService {
	s := &PathService{
		repo:    repo,
		catalog: reg,
		cache:   cache.Noop{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ping checks if the service is operational
func (s *PathService) Ping(ctx context.Context) error {
	if err := s.repo.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

// Goals lists catalog goals
func (s *PathService) Goals() []models.GoalInfo {
	return s.catalog.List()
}

// SubmitProfile creates a user with optional preferences and an initial
// path. An unmatched goal is stored as given with an empty path.
func (s *PathService) SubmitProfile(ctx context.Context, sub models.ProfileSubmission) (*models.SubmitProfileResponse, error) {
	var (
		prefs    *models.PreferenceProfile
		warnings []string
	)
	if sub.Preferences != nil {
		p, w := s.normalize(*sub.Preferences, "")
		prefs, warnings = &p, w
	}

	goal := sub.Goal
	gen, err := s.generate(ctx, sub.Goal, prefs, sub.Education)
	switch {
	case err == nil:
		goal = gen.Goal
	case errors.Is(err, models.ErrNoMatchingGoal):
		gen = &models.LearningPath{Goal: goal, Steps: []models.PersonalizedStep{}}
	default:
		return nil, err
	}

	now := s.now()
	user := &models.User{
		ID:           uuid.New().String(),
		Age:          sub.Age,
		Gender:       sub.Gender,
		Education:    sub.Education,
		Goal:         goal,
		LearningPath: gen.Steps,
		Progress:     models.ProgressMap{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.CreateUser(ctx, user, prefs); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("user profile submitted",
		"user_id", user.ID,
		"goal", goal,
		"steps", len(gen.Steps),
		"enhanced", gen.Enhanced,
	)

	return &models.SubmitProfileResponse{
		Message:      submitMessage,
		UserID:       user.ID,
		Goal:         goal,
		LearningPath: gen.Steps,
		Warnings:     warnings,
	}, nil
}

// GeneratePath resolves goalText and builds a path, personalized for userID
// when given. It is not persisted.
func (s *PathService) GeneratePath(ctx context.Context, goalText, userID string) (*models.LearningPath, error) {
	if userID == "" {
		return s.generate(ctx, goalText, nil, "")
	}

	user, prefs, err := s.loadUserAndPrefs(ctx, userID)
	if err != nil {
		return nil, err
	}
	path, err := s.generate(ctx, goalText, prefs, user.Education)
	if err != nil {
		return nil, err
	}
	path.UserID = userID
	return path, nil
}

// GetLearningPath returns the stored path of a user
func (s *PathService) GetLearningPath(ctx context.Context, userID string) (*models.LearningPath, error) {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &models.LearningPath{
		UserID:   user.ID,
		Goal:     user.Goal,
		Steps:    user.LearningPath,
		Progress: user.Progress,
	}, nil
}

// RegeneratePath rebuilds and stores the path from the user's goal and
// current preferences
func (s *PathService) RegeneratePath(ctx context.Context, userID string) (*models.LearningPath, error) {
	user, prefs, err := s.loadUserAndPrefs(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.regenerate(ctx, user, prefs)
}

// UpdatePreferences stores the user's preferences and regenerates the path.
// Malformed fields are dropped and reported as warnings.
func (s *PathService) UpdatePreferences(ctx context.Context, userID string, in models.PreferenceInput) (*PreferencesUpdate, error) {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	prefs, warnings := s.normalize(in, userID)
	if err := s.repo.UpsertPreferences(ctx, userID, &prefs); err != nil {
		return nil, fmt.Errorf("failed to store preferences: %w", err)
	}

	path, err := s.regenerate(ctx, user, &prefs)
	if err != nil {
		return nil, err
	}

	return &PreferencesUpdate{Preferences: prefs, LearningPath: path, Warnings: warnings}, nil
}

// RecordProgress stores a progress event and notifies live subscribers
func (s *PathService) RecordProgress(ctx context.Context, userID string, ev models.ProgressEvent) (*storage.ProgressUpdate, error) {
	upd, err := s.repo.RecordProgress(ctx, userID, ev, s.now())
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			return nil, ErrUserNotFound
		case errors.Is(err, models.ErrStaleProgressIndex):
			return nil, fmt.Errorf("%w: %v", ErrInvalidStep, err)
		}
		return nil, fmt.Errorf("failed to record progress: %w", err)
	}

	metrics.ProgressEvents.WithLabelValues(string(ev.Type)).Inc()
	slog.Info("progress recorded",
		"user_id", userID,
		"step_index", ev.StepIndex,
		"type", ev.Type,
		"completed", upd.Record.IsCompleted(),
	)

	if s.hub != nil {
		s.hub.Publish(feed.Update{UserID: userID, Record: upd.Record, Progress: upd.Progress})
	}
	return upd, nil
}

// RecommendNextSteps suggests the next step of the current path and
// related goals
func (s *PathService) RecommendNextSteps(ctx context.Context, userID string) ([]models.Recommendation, error) {
	st, err := s.loadState(ctx, userID)
	if err != nil {
		return nil, err
	}

	completed := recommend.PairCompleted(st.records, st.user.LearningPath)
	var interests []string
	if st.prefs != nil {
		interests = st.prefs.Interests
	}

	recs := recommend.NextSteps(recommend.NextInput{
		Goal:     st.user.Goal,
		Path:     st.user.LearningPath,
		Progress: st.user.Progress,
		Weights:  recommend.Aggregate(completed, interests),
	}, s.catalog)
	if recs == nil {
		recs = []models.Recommendation{}
	}
	return recs, nil
}

// GetInsights summarizes the user's completed steps
func (s *PathService) GetInsights(ctx context.Context, userID string) (*models.Insights, error) {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	records, err := s.repo.ListProgress(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list progress: %w", err)
	}

	out := insights.Estimate(recommend.PairCompleted(records, user.LearningPath))
	return &out, nil
}

// generate resolves the goal and builds a path without storing it
func (s *PathService) generate(ctx context.Context, goalText string, prefs *models.PreferenceProfile, education string) (*models.LearningPath, error) {
	goal, err := matcher.Resolve(goalText, s.catalog.Goals())
	if err != nil {
		metrics.GoalMisses.Inc()
		slog.Info("no catalog goal matched", "goal_text", goalText)
		return nil, err
	}

	base, _ := s.catalog.Steps(goal)
	if len(base) == 0 {
		slog.Warn("catalog goal has no steps", "goal", goal, "error", models.ErrEmptyCatalog)
		return &models.LearningPath{Goal: goal, Steps: []models.PersonalizedStep{}}, nil
	}

	if cached, err := s.cache.Get(ctx, goal, prefs); err != nil {
		slog.Warn("path cache read failed", "goal", goal, "error", err)
	} else if cached != nil {
		metrics.PathsGenerated.WithLabelValues("cache").Inc()
		return &models.LearningPath{Goal: goal, Steps: cached.Steps, Enhanced: cached.Enhanced}, nil
	}

	path := &models.LearningPath{Goal: goal, Steps: personalize.Customize(base, prefs)}
	source := "catalog"

	if s.enhancer != nil {
		steps, err := s.enhancer.Enhance(ctx, enhancer.Request{
			Goal:      goal,
			Education: education,
			Prefs:     prefs,
			Base:      models.ClonePath(path.Steps),
		})
		if err != nil {
			slog.Warn("path enhancement failed, using catalog path", "goal", goal, "error", err)
		} else {
			path.Steps = personalize.EnhancedPipeline().Apply(steps, prefs)
			path.Enhanced = true
			source = "enhanced"
		}
	}

	if err := s.cache.Set(ctx, goal, prefs, &cache.Entry{Steps: path.Steps, Enhanced: path.Enhanced}); err != nil {
		slog.Warn("path cache write failed", "goal", goal, "error", err)
	}
	metrics.PathsGenerated.WithLabelValues(source).Inc()
	return path, nil
}

// regenerate builds a fresh path for user and stores it. A goal that no
// longer matches the catalog yields an empty path.
func (s *PathService) regenerate(ctx context.Context, user *models.User, prefs *models.PreferenceProfile) (*models.LearningPath, error) {
	path, err := s.generate(ctx, user.Goal, prefs, user.Education)
	if err != nil {
		if !errors.Is(err, models.ErrNoMatchingGoal) {
			return nil, err
		}
		path = &models.LearningPath{Goal: user.Goal, Steps: []models.PersonalizedStep{}}
	}

	progress, err := s.repo.ReplacePath(ctx, user.ID, path.Goal, path.Steps)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to store learning path: %w", err)
	}

	slog.Info("learning path regenerated",
		"user_id", user.ID,
		"goal", path.Goal,
		"steps", len(path.Steps),
	)

	path.UserID = user.ID
	path.Progress = progress
	return path, nil
}

// normalize converts loose input, logging and returning the dropped fields
func (s *PathService) normalize(in models.PreferenceInput, userID string) (models.PreferenceProfile, []string) {
	prefs, issues := in.Normalize()
	var warnings []string
	for _, issue := range issues {
		slog.Warn("ignoring preference field", "user_id", userID, "error", issue)
		warnings = append(warnings, issue.Error())
	}
	prefs.UpdatedAt = s.now()
	return prefs, warnings
}

func (s *PathService) getUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (s *PathService) loadUserAndPrefs(ctx context.Context, userID string) (*models.User, *models.PreferenceProfile, error) {
	var (
		user  *models.User
		prefs *models.PreferenceProfile
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		user, err = s.getUser(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		prefs, err = s.repo.GetPreferences(gctx, userID)
		if err != nil {
			return fmt.Errorf("failed to get preferences: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return user, prefs, nil
}

type userState struct {
	user    *models.User
	prefs   *models.PreferenceProfile
	records []models.StepProgressRecord
}

// loadState reads user, preferences and progress concurrently
func (s *PathService) loadState(ctx context.Context, userID string) (*userState, error) {
	var st userState

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		st.user, st.prefs, err = s.loadUserAndPrefs(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		st.records, err = s.repo.ListProgress(gctx, userID)
		if err != nil {
			return fmt.Errorf("failed to list progress: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &st, nil
}

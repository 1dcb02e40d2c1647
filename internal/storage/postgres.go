package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Chandra-cc/personalized-learning/internal/models"
)

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
	DSN          string
	MaxOpenConns int32
	MaxIdleConns int32
	MaxLifetime  time.Duration
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(ctx context.Context, cfg PostgresConfig) (*PostgresRepository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}

	poolConfig.MaxConns = 25
	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = cfg.MaxOpenConns
	}
	poolConfig.MinConns = 5
	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = cfg.MaxIdleConns
	}
	poolConfig.MaxConnLifetime = 30 * time.Minute
	if cfg.MaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{pool: pool}, nil
}

// Pool exposes the connection pool for migrations
func (r *PostgresRepository) Pool() *pgxpool.Pool {
	return r.pool
}

// Ping checks database connectivity
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close closes the database connection pool
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// --- Users ---

// CreateUser inserts a user and, when given, its preferences in one transaction
func (r *PostgresRepository) CreateUser(ctx context.Context, u *models.User, prefs *models.PreferenceProfile) error {
	pathJSON, err := json.Marshal(u.LearningPath)
	if err != nil {
		return fmt.Errorf("failed to marshal learning path: %w", err)
	}
	if u.Progress == nil {
		u.Progress = models.ProgressMap{}
	}
	progressJSON, err := json.Marshal(u.Progress)
	if err != nil {
		return fmt.Errorf("failed to marshal progress: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO users (id, age, gender, education, goal, learning_path, progress, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	if _, err := tx.Exec(ctx, query,
		u.ID,
		u.Age,
		u.Gender,
		u.Education,
		u.Goal,
		pathJSON,
		progressJSON,
		u.CreatedAt,
		u.UpdatedAt,
	); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	if prefs != nil {
		if err := upsertPreferences(ctx, tx, u.ID, prefs); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit user: %w", err)
	}
	return nil
}

// GetUser retrieves a user by ID
func (r *PostgresRepository) GetUser(ctx context.Context, id string) (*models.User, error) {
	query := `
		SELECT id, age, gender, education, goal, learning_path, progress, created_at, updated_at
		FROM users
		WHERE id = $1
	`

	var u models.User
	var pathJSON, progressJSON []byte

	err := r.pool.QueryRow(ctx, query, id).Scan(
		&u.ID,
		&u.Age,
		&u.Gender,
		&u.Education,
		&u.Goal,
		&pathJSON,
		&progressJSON,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if err := json.Unmarshal(pathJSON, &u.LearningPath); err != nil {
		return nil, fmt.Errorf("failed to unmarshal learning path: %w", err)
	}
	if err := json.Unmarshal(progressJSON, &u.Progress); err != nil {
		return nil, fmt.Errorf("failed to unmarshal progress: %w", err)
	}
	if u.Progress == nil {
		u.Progress = models.ProgressMap{}
	}

	return &u, nil
}

// ReplacePath stores a regenerated path for a user
func (r *PostgresRepository) ReplacePath(ctx context.Context, userID, goal string, path []models.PersonalizedStep) (models.ProgressMap, error) {
	pathJSON, err := json.Marshal(path)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal learning path: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	progress, _, err := lockUser(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	kept := models.ProgressMap{}
	for i := range path {
		if progress.Done(i) {
			kept.Mark(i, true)
		}
	}
	progressJSON, err := json.Marshal(kept)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal progress: %w", err)
	}

	query := `
		UPDATE users
		SET goal = $2, learning_path = $3, progress = $4, updated_at = NOW()
		WHERE id = $1
	`
	if _, err := tx.Exec(ctx, query, userID, goal, pathJSON, progressJSON); err != nil {
		return nil, fmt.Errorf("failed to update learning path: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit learning path: %w", err)
	}
	return kept, nil
}

// lockUser reads a user's progress map and path length with a row lock
func lockUser(ctx context.Context, tx pgx.Tx, userID string) (models.ProgressMap, int, error) {
	var progressJSON []byte
	var pathLen int

	err := tx.QueryRow(ctx, `
		SELECT progress, jsonb_array_length(learning_path)
		FROM users
		WHERE id = $1
		FOR UPDATE
	`, userID).Scan(&progressJSON, &pathLen)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, 0, fmt.Errorf("user %s: %w", userID, ErrNotFound)
		}
		return nil, 0, fmt.Errorf("failed to lock user: %w", err)
	}

	progress := models.ProgressMap{}
	if err := json.Unmarshal(progressJSON, &progress); err != nil {
		return nil, 0, fmt.Errorf("failed to unmarshal progress: %w", err)
	}
	if progress == nil {
		progress = models.ProgressMap{}
	}
	return progress, pathLen, nil
}

// --- Preferences ---

// GetPreferences retrieves the preference profile of a user
func (r *PostgresRepository) GetPreferences(ctx context.Context, userID string) (*models.PreferenceProfile, error) {
	query := `
		SELECT difficulty_preference, learning_style, preferred_content_types,
		       available_hours_per_week, years_of_experience, career_goals, interests, updated_at
		FROM user_preferences
		WHERE user_id = $1
	`

	var p models.PreferenceProfile
	var difficulty, style sql.NullString
	var hours, years sql.NullFloat64
	var contentJSON, careerJSON, interestsJSON []byte

	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&difficulty,
		&style,
		&contentJSON,
		&hours,
		&years,
		&careerJSON,
		&interestsJSON,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get preferences: %w", err)
	}

	if difficulty.Valid {
		d := models.DifficultyLevel(difficulty.String)
		p.DifficultyPreference = &d
	}
	if style.Valid {
		s := models.LearningStyle(style.String)
		p.LearningStyle = &s
	}
	if hours.Valid {
		p.AvailableHoursPerWeek = &hours.Float64
	}
	if years.Valid {
		p.YearsOfExperience = &years.Float64
	}

	for _, f := range []struct {
		raw  []byte
		dest *[]string
		name string
	}{
		{contentJSON, &p.PreferredContentTypes, "preferred_content_types"},
		{careerJSON, &p.CareerGoals, "career_goals"},
		{interestsJSON, &p.Interests, "interests"},
	} {
		if f.raw == nil {
			continue
		}
		if err := json.Unmarshal(f.raw, f.dest); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s: %w", f.name, err)
		}
	}

	return &p, nil
}

// UpsertPreferences creates or replaces a user's preference profile
func (r *PostgresRepository) UpsertPreferences(ctx context.Context, userID string, prefs *models.PreferenceProfile) error {
	return upsertPreferences(ctx, r.pool, userID, prefs)
}

// execer is satisfied by both the pool and a transaction
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func upsertPreferences(ctx context.Context, db execer, userID string, p *models.PreferenceProfile) error {
	content, err := nullJSON(p.PreferredContentTypes)
	if err != nil {
		return err
	}
	career, err := nullJSON(p.CareerGoals)
	if err != nil {
		return err
	}
	interests, err := nullJSON(p.Interests)
	if err != nil {
		return err
	}

	var difficulty, style sql.NullString
	if p.DifficultyPreference != nil {
		difficulty = nullString(string(*p.DifficultyPreference))
	}
	if p.LearningStyle != nil {
		style = nullString(string(*p.LearningStyle))
	}

	query := `
		INSERT INTO user_preferences (
			user_id, difficulty_preference, learning_style, preferred_content_types,
			available_hours_per_week, years_of_experience, career_goals, interests, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			difficulty_preference = EXCLUDED.difficulty_preference,
			learning_style = EXCLUDED.learning_style,
			preferred_content_types = EXCLUDED.preferred_content_types,
			available_hours_per_week = EXCLUDED.available_hours_per_week,
			years_of_experience = EXCLUDED.years_of_experience,
			career_goals = EXCLUDED.career_goals,
			interests = EXCLUDED.interests,
			updated_at = NOW()
	`

	_, err = db.Exec(ctx, query,
		userID,
		difficulty,
		style,
		content,
		nullFloat(p.AvailableHoursPerWeek),
		nullFloat(p.YearsOfExperience),
		career,
		interests,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert preferences: %w", err)
	}
	return nil
}

// --- Progress ---

// RecordProgress applies ev to the (user, step) record under a row lock on
// the user, so concurrent events for one user are serialized. A completion
// also marks the step in the user's progress map.
func (r *PostgresRepository) RecordProgress(ctx context.Context, userID string, ev models.ProgressEvent, now time.Time) (*ProgressUpdate, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	progress, pathLen, err := lockUser(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	if ev.StepIndex < 0 || ev.StepIndex >= pathLen {
		return nil, fmt.Errorf("step %d of %d: %w", ev.StepIndex, pathLen, models.ErrStaleProgressIndex)
	}

	rec, err := getProgress(ctx, tx, userID, ev.StepIndex)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		rec = &models.StepProgressRecord{UserID: userID, StepIndex: ev.StepIndex}
	}
	ev.Apply(rec, now)

	upsert := `
		INSERT INTO step_progress (
			user_id, step_index, started_at, completed_at, time_spent, resource_visits,
			difficulty_rating, comprehension_score, notes, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (user_id, step_index) DO UPDATE SET
			started_at = EXCLUDED.started_at,
			completed_at = EXCLUDED.completed_at,
			time_spent = EXCLUDED.time_spent,
			resource_visits = EXCLUDED.resource_visits,
			difficulty_rating = EXCLUDED.difficulty_rating,
			comprehension_score = EXCLUDED.comprehension_score,
			notes = EXCLUDED.notes,
			updated_at = EXCLUDED.updated_at
	`
	if _, err := tx.Exec(ctx, upsert,
		rec.UserID,
		rec.StepIndex,
		rec.StartedAt,
		nullTime(rec.CompletedAt),
		rec.TimeSpent,
		rec.ResourceVisits,
		nullInt(rec.DifficultyRating),
		nullFloat(rec.ComprehensionScore),
		nullString(rec.Notes),
		rec.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("failed to upsert progress: %w", err)
	}

	if rec.IsCompleted() && !progress.Done(rec.StepIndex) {
		progress.Mark(rec.StepIndex, true)
		progressJSON, err := json.Marshal(progress)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal progress: %w", err)
		}
		if _, err := tx.Exec(ctx,
			`UPDATE users SET progress = $2, updated_at = NOW() WHERE id = $1`,
			userID, progressJSON,
		); err != nil {
			return nil, fmt.Errorf("failed to update progress map: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit progress: %w", err)
	}

	return &ProgressUpdate{Record: *rec, Progress: progress}, nil
}

const progressColumns = `
	user_id, step_index, started_at, completed_at, time_spent, resource_visits,
	difficulty_rating, comprehension_score, notes, updated_at
`

func getProgress(ctx context.Context, tx pgx.Tx, userID string, stepIndex int) (*models.StepProgressRecord, error) {
	query := `SELECT ` + progressColumns + `
		FROM step_progress
		WHERE user_id = $1 AND step_index = $2
		FOR UPDATE
	`
	rec, err := scanProgress(tx.QueryRow(ctx, query, userID, stepIndex))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get progress: %w", err)
	}
	return rec, nil
}

// ListProgress returns every progress record of a user ordered by step index
func (r *PostgresRepository) ListProgress(ctx context.Context, userID string) ([]models.StepProgressRecord, error) {
	query := `SELECT ` + progressColumns + `
		FROM step_progress
		WHERE user_id = $1
		ORDER BY step_index
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list progress: %w", err)
	}
	defer rows.Close()

	var records []models.StepProgressRecord
	for rows.Next() {
		rec, err := scanProgress(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan progress: %w", err)
		}
		records = append(records, *rec)
	}

	return records, rows.Err()
}

// DeleteStaleProgress removes records whose step index is past the end of
// the owner's current path
func (r *PostgresRepository) DeleteStaleProgress(ctx context.Context) ([]StaleProgress, error) {
	query := `
		WITH removed AS (
			DELETE FROM step_progress sp
			USING users u
			WHERE sp.user_id = u.id
			  AND sp.step_index >= jsonb_array_length(u.learning_path)
			RETURNING sp.user_id
		)
		SELECT user_id, COUNT(*) FROM removed GROUP BY user_id
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to delete stale progress: %w", err)
	}
	defer rows.Close()

	var out []StaleProgress
	for rows.Next() {
		var s StaleProgress
		if err := rows.Scan(&s.UserID, &s.Removed); err != nil {
			return nil, fmt.Errorf("failed to scan stale progress: %w", err)
		}
		out = append(out, s)
	}

	return out, rows.Err()
}

func scanProgress(row pgx.Row) (*models.StepProgressRecord, error) {
	var rec models.StepProgressRecord
	var completedAt sql.NullTime
	var rating sql.NullInt32
	var comprehension sql.NullFloat64
	var notes sql.NullString

	err := row.Scan(
		&rec.UserID,
		&rec.StepIndex,
		&rec.StartedAt,
		&completedAt,
		&rec.TimeSpent,
		&rec.ResourceVisits,
		&rating,
		&comprehension,
		&notes,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if completedAt.Valid {
		rec.CompletedAt = &completedAt.Time
	}
	if rating.Valid {
		v := int(rating.Int32)
		rec.DifficultyRating = &v
	}
	if comprehension.Valid {
		rec.ComprehensionScore = &comprehension.Float64
	}
	rec.Notes = notes.String

	return &rec, nil
}

// --- API Clients ---

// GetClientByApiKey retrieves an API client by its key
func (r *PostgresRepository) GetClientByApiKey(ctx context.Context, apiKey string) (*models.ApiClient, error) {
	query := `
		SELECT id, name, api_key, is_active, created_at, last_used_at, permissions
		FROM api_clients
		WHERE api_key = $1
	`

	var client models.ApiClient
	var lastUsedAt sql.NullTime
	var permissionsJSON []byte

	err := r.pool.QueryRow(ctx, query, apiKey).Scan(
		&client.ID,
		&client.Name,
		&client.ApiKey,
		&client.IsActive,
		&client.CreatedAt,
		&lastUsedAt,
		&permissionsJSON,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get api client: %w", err)
	}

	if lastUsedAt.Valid {
		client.LastUsedAt = &lastUsedAt.Time
	}
	if permissionsJSON != nil {
		if err := json.Unmarshal(permissionsJSON, &client.Permissions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal permissions: %w", err)
		}
	}

	return &client, nil
}

// UpdateClientLastUsed updates the last_used_at timestamp for a client
func (r *PostgresRepository) UpdateClientLastUsed(ctx context.Context, apiKey string) error {
	query := `UPDATE api_clients SET last_used_at = NOW() WHERE api_key = $1`

	if _, err := r.pool.Exec(ctx, query, apiKey); err != nil {
		return fmt.Errorf("failed to update client last_used_at: %w", err)
	}
	return nil
}

// Helper functions for nullable values

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func nullInt(i *int) sql.NullInt32 {
	if i == nil {
		return sql.NullInt32{}
	}
	return sql.NullInt32{Int32: int32(*i), Valid: true}
}

// nullJSON encodes a list, keeping nil as SQL NULL so absent fields stay
// absent on read
func nullJSON(v []string) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal list: %w", err)
	}
	return b, nil
}

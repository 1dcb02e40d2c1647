package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Chandra-cc/personalized-learning/internal/config"
	"github.com/Chandra-cc/personalized-learning/internal/feed"
	"github.com/Chandra-cc/personalized-learning/internal/learning"
	"github.com/Chandra-cc/personalized-learning/internal/models"
	"github.com/Chandra-cc/personalized-learning/internal/services"
	"github.com/Chandra-cc/personalized-learning/internal/storage"
)

const (
	readerKey = "lp_reader_key_0001"
	writerKey = "lp_writer_key_0002"
	knownUser = "user-1"
)

type fakeClients struct {
	clients map[string]*models.ApiClient
}

func (f *fakeClients) GetClientByApiKey(_ context.Context, key string) (*models.ApiClient, error) {
	return f.clients[key], nil
}

func (f *fakeClients) UpdateClientLastUsed(context.Context, string) error { return nil }

type fakeService struct {
	mu       sync.Mutex
	hub      *feed.Hub
	pingErr  error
	progress models.ProgressMap
	events   []models.ProgressEvent
}

func (f *fakeService) SubmitProfile(_ context.Context, sub models.ProfileSubmission) (*models.SubmitProfileResponse, error) {
	return &models.SubmitProfileResponse{
		Message:      "User data submitted successfully",
		UserID:       knownUser,
		Goal:         sub.Goal,
		LearningPath: []models.PersonalizedStep{{Title: "Step", Duration: "1 week"}},
	}, nil
}

func (f *fakeService) GeneratePath(_ context.Context, goal, _ string) (*models.LearningPath, error) {
	if goal != "web developer" {
		return nil, models.ErrNoMatchingGoal
	}
	return &models.LearningPath{Goal: "Become a Web Developer", Steps: []models.PersonalizedStep{{Title: "HTML"}}}, nil
}

func (f *fakeService) GetLearningPath(_ context.Context, userID string) (*models.LearningPath, error) {
	if userID != knownUser {
		return nil, learning.ErrUserNotFound
	}
	return &models.LearningPath{UserID: userID, Goal: "Become a Web Developer", Steps: []models.PersonalizedStep{{Title: "HTML"}, {Title: "JS"}}}, nil
}

func (f *fakeService) RegeneratePath(ctx context.Context, userID string) (*models.LearningPath, error) {
	return f.GetLearningPath(ctx, userID)
}

func (f *fakeService) UpdatePreferences(_ context.Context, userID string, in models.PreferenceInput) (*learning.PreferencesUpdate, error) {
	if userID != knownUser {
		return nil, learning.ErrUserNotFound
	}
	prefs, issues := in.Normalize()
	var warnings []string
	for _, e := range issues {
		warnings = append(warnings, e.Error())
	}
	return &learning.PreferencesUpdate{Preferences: prefs, LearningPath: &models.LearningPath{Goal: "g"}, Warnings: warnings}, nil
}

func (f *fakeService) RecordProgress(_ context.Context, userID string, ev models.ProgressEvent) (*storage.ProgressUpdate, error) {
	if userID != knownUser {
		return nil, learning.ErrUserNotFound
	}
	if ev.StepIndex > 1 {
		return nil, fmt.Errorf("%w: step %d", learning.ErrInvalidStep, ev.StepIndex)
	}

	f.mu.Lock()
	f.events = append(f.events, ev)
	if f.progress == nil {
		f.progress = models.ProgressMap{}
	}
	rec := models.StepProgressRecord{UserID: userID, StepIndex: ev.StepIndex}
	ev.Apply(&rec, time.Now())
	if rec.IsCompleted() {
		f.progress.Mark(ev.StepIndex, true)
	}
	upd := &storage.ProgressUpdate{Record: rec, Progress: models.ProgressMap{}}
	for k, v := range f.progress {
		upd.Progress[k] = v
	}
	f.mu.Unlock()

	if f.hub != nil {
		f.hub.Publish(feed.Update{UserID: userID, Record: upd.Record, Progress: upd.Progress})
	}
	return upd, nil
}

func (f *fakeService) RecommendNextSteps(_ context.Context, userID string) ([]models.Recommendation, error) {
	if userID != knownUser {
		return nil, learning.ErrUserNotFound
	}
	idx := 0
	return []models.Recommendation{{Type: models.RecommendationCurrentPath, StepIndex: &idx, Reason: "Continue your current learning path"}}, nil
}

func (f *fakeService) GetInsights(_ context.Context, userID string) (*models.Insights, error) {
	if userID != knownUser {
		return nil, errors.New("database is on fire")
	}
	return &models.Insights{TopSkills: []models.SkillScore{}}, nil
}

func (f *fakeService) Goals() []models.GoalInfo {
	return []models.GoalInfo{{Name: "Become a Web Developer", StepsCount: 4, Skills: []string{"HTML5"}}}
}

func (f *fakeService) Ping(context.Context) error { return f.pingErr }

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *apiError       `json:"error"`
}

func newTestServer(t *testing.T, svc *fakeService, deps *services.Registry) *Server {
	t.Helper()
	clients := &fakeClients{clients: map[string]*models.ApiClient{
		readerKey: {ID: 1, Name: "dashboard", ApiKey: readerKey, IsActive: true, Permissions: []string{models.PermPathsRead}},
		writerKey: {ID: 2, Name: "frontend", ApiKey: writerKey, IsActive: true, Permissions: []string{"paths:*", models.PermProgressWrite}},
		"lp_disabled_key": {ID: 3, Name: "old", IsActive: false, Permissions: []string{"*"}},
	}}
	cfg := config.ServerConfig{RequestTimeout: 5 * time.Second, AllowedOrigins: []string{"*"}}
	return NewServer(cfg, config.RateLimitConfig{}, svc, clients, deps, svc.hub)
}

func do(t *testing.T, h http.Handler, method, path, key string, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

func TestHealthAndReady(t *testing.T) {
	deps := services.NewRegistry()
	deps.Register(services.NewCheckFunc("redis", func(context.Context) error { return nil }))
	svc := &fakeService{}
	h := newTestServer(t, svc, deps).Router()

	rec, env := do(t, h, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)

	rec, env = do(t, h, http.MethodGet, "/ready", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"redis":"ok"`)

	deps.Register(services.NewCheckFunc("postgres", func(context.Context) error { return errors.New("connection refused") }))
	rec, env = do(t, h, http.MethodGet, "/ready", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.False(t, env.Success)
	assert.Contains(t, string(env.Data), "connection refused")
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestServer(t, &fakeService{}, nil).Router()
	do(t, h, http.MethodGet, "/health", "", "")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "learning_path_http_requests_total")
}

func TestAuthentication(t *testing.T) {
	h := newTestServer(t, &fakeService{}, nil).Router()

	tests := []struct {
		name   string
		key    string
		method string
		path   string
		body   string
		status int
		code   string
	}{
		{"missing key", "", http.MethodGet, "/api/v1/goals", "", http.StatusUnauthorized, "missing_api_key"},
		{"unknown key", "lp_nope_nope_nope", http.MethodGet, "/api/v1/goals", "", http.StatusUnauthorized, "invalid_api_key"},
		{"inactive client", "lp_disabled_key", http.MethodGet, "/api/v1/goals", "", http.StatusUnauthorized, "client_inactive"},
		{"read-only client writes", readerKey, http.MethodPost, "/api/v1/users/" + knownUser + "/progress", `{"type":"start","step_index":0}`, http.StatusForbidden, "permission_denied"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := do(t, h, tt.method, tt.path, tt.key, tt.body)
			assert.Equal(t, tt.status, rec.Code)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.code, env.Error.Code)
		})
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/goals", nil)
	req.Header.Set("X-API-Key", readerKey)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSubmitProfile(t *testing.T) {
	h := newTestServer(t, &fakeService{}, nil).Router()

	rec, env := do(t, h, http.MethodPost, "/api/v1/users", writerKey,
		`{"age":25,"gender":"female","education":"Bachelor","goal":"web developer","preferences":{"available_hours_per_week":"10"}}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, env.Success)

	var resp models.SubmitProfileResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, knownUser, resp.UserID)
	assert.Equal(t, "User data submitted successfully", resp.Message)

	rec, env = do(t, h, http.MethodPost, "/api/v1/users", writerKey, `{"age":25,"gender":"f"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", env.Error.Code)
	assert.Contains(t, env.Error.Message, "education")
	assert.Contains(t, env.Error.Message, "goal")

	rec, env = do(t, h, http.MethodPost, "/api/v1/users", writerKey, `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request", env.Error.Code)
}

func TestGeneratePath(t *testing.T) {
	h := newTestServer(t, &fakeService{}, nil).Router()

	rec, env := do(t, h, http.MethodGet, "/api/v1/learning-path?goal=web+developer", readerKey, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"learning_path"`)

	rec, env = do(t, h, http.MethodGet, "/api/v1/learning-path?goal=cooking", readerKey, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "no_matching_goal", env.Error.Code)

	rec, env = do(t, h, http.MethodGet, "/api/v1/learning-path", readerKey, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", env.Error.Code)
}

func TestUserRoutes(t *testing.T) {
	h := newTestServer(t, &fakeService{}, nil).Router()

	tests := []struct {
		name   string
		key    string
		method string
		path   string
		body   string
		status int
		code   string
	}{
		{"get path", readerKey, http.MethodGet, "/api/v1/users/user-1/learning-path", "", http.StatusOK, ""},
		{"unknown user path", readerKey, http.MethodGet, "/api/v1/users/ghost/learning-path", "", http.StatusNotFound, "user_not_found"},
		{"regenerate", writerKey, http.MethodPost, "/api/v1/users/user-1/learning-path/regenerate", "", http.StatusOK, ""},
		{"preferences", writerKey, http.MethodPut, "/api/v1/users/user-1/preferences", `{"difficulty_preference":"advanced"}`, http.StatusOK, ""},
		{"progress", writerKey, http.MethodPost, "/api/v1/users/user-1/progress", `{"type":"complete","step_index":0,"time_spent":30}`, http.StatusOK, ""},
		{"progress stale step", writerKey, http.MethodPost, "/api/v1/users/user-1/progress", `{"type":"start","step_index":7}`, http.StatusBadRequest, "invalid_step"},
		{"progress bad type", writerKey, http.MethodPost, "/api/v1/users/user-1/progress", `{"type":"jump","step_index":0}`, http.StatusBadRequest, "validation_error"},
		{"progress bad score", writerKey, http.MethodPost, "/api/v1/users/user-1/progress", `{"type":"feedback","step_index":0,"comprehension_score":120}`, http.StatusBadRequest, "validation_error"},
		{"recommendations", readerKey, http.MethodGet, "/api/v1/users/user-1/recommendations", "", http.StatusOK, ""},
		{"insights", readerKey, http.MethodGet, "/api/v1/users/user-1/insights", "", http.StatusOK, ""},
		{"insights failure", readerKey, http.MethodGet, "/api/v1/users/ghost/insights", "", http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := do(t, h, tt.method, tt.path, tt.key, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.code == "" {
				assert.True(t, env.Success)
				return
			}
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.code, env.Error.Code)
		})
	}
}

func TestUpdatePreferences_ReportsWarnings(t *testing.T) {
	h := newTestServer(t, &fakeService{}, nil).Router()

	rec, env := do(t, h, http.MethodPut, "/api/v1/users/user-1/preferences", writerKey,
		`{"years_of_experience":"lots","interests":"go, sql"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var upd learning.PreferencesUpdate
	require.NoError(t, json.Unmarshal(env.Data, &upd))
	assert.Len(t, upd.Warnings, 1)
	assert.Equal(t, []string{"go", "sql"}, upd.Preferences.Interests)
}

func TestProgressStream(t *testing.T) {
	svc := &fakeService{hub: feed.NewHub()}
	ts := httptest.NewServer(newTestServer(t, svc, nil).Router())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/users/user-1/progress/stream"
	header := http.Header{"X-API-Key": []string{writerKey}}
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var hello StreamMessage
	require.NoError(t, conn.ReadJSON(&hello))
	assert.Equal(t, msgConnected, hello.Type)
	require.NotNil(t, hello.LearningPath)
	assert.Len(t, hello.LearningPath.Steps, 2)

	require.NoError(t, conn.WriteJSON(StreamMessage{
		Type:  msgEvent,
		Event: &models.ProgressEvent{Type: models.ProgressComplete, StepIndex: 1},
	}))

	got := map[string]StreamMessage{}
	for len(got) < 2 {
		var msg StreamMessage
		require.NoError(t, conn.ReadJSON(&msg))
		got[msg.Type] = msg
	}
	require.Contains(t, got, msgAck)
	require.Contains(t, got, msgProgress)
	require.NotNil(t, got[msgProgress].Update)
	assert.True(t, got[msgProgress].Update.Progress.Done(1))

	// updates recorded elsewhere are pushed too
	_, err = svc.RecordProgress(context.Background(), knownUser, models.ProgressEvent{Type: models.ProgressVisit, StepIndex: 0})
	require.NoError(t, err)
	var pushed StreamMessage
	require.NoError(t, conn.ReadJSON(&pushed))
	assert.Equal(t, msgProgress, pushed.Type)
	assert.Equal(t, 1, pushed.Update.Record.ResourceVisits)

	require.NoError(t, conn.WriteJSON(StreamMessage{Type: "resize"}))
	var rejected StreamMessage
	require.NoError(t, conn.ReadJSON(&rejected))
	assert.Equal(t, msgError, rejected.Type)
}

func TestProgressStream_UnknownUser(t *testing.T) {
	svc := &fakeService{hub: feed.NewHub()}
	ts := httptest.NewServer(newTestServer(t, svc, nil).Router())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/users/ghost/progress/stream"
	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"X-API-Key": []string{readerKey}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

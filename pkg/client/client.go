// Package client is a Go SDK for the learning path API
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/Chandra-cc/personalized-learning/internal/models"
)

// Client is a Go SDK for the learning path API
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Option configures the client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the client timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new learning path API client
func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError is an error reported by the API envelope
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (HTTP %d): %s - %s", e.Status, e.Code, e.Message)
}

// IsNotFound reports whether err is a 404 from the API
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// PreferencesUpdate is returned by UpdatePreferences
type PreferencesUpdate struct {
	Preferences  models.PreferenceProfile `json:"preferences"`
	LearningPath *models.LearningPath     `json:"learning_path"`
	Warnings     []string                 `json:"warnings,omitempty"`
}

// ProgressUpdate is returned by RecordProgress
type ProgressUpdate struct {
	Record   models.StepProgressRecord `json:"record"`
	Progress models.ProgressMap        `json:"progress"`
}

// SubmitProfile creates a user and its initial learning path
func (c *Client) SubmitProfile(ctx context.Context, req models.ProfileSubmission) (*models.SubmitProfileResponse, error) {
	var out models.SubmitProfileResponse
	if err := c.call(ctx, http.MethodPost, "/api/v1/users", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GeneratePath builds a path for a free-text goal without storing it.
// userID is optional and personalizes the path with that user's preferences.
func (c *Client) GeneratePath(ctx context.Context, goal, userID string) (*models.LearningPath, error) {
	q := url.Values{"goal": []string{goal}}
	if userID != "" {
		q.Set("user_id", userID)
	}
	var out models.LearningPath
	if err := c.call(ctx, http.MethodGet, "/api/v1/learning-path?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetLearningPath retrieves the stored path of a user
func (c *Client) GetLearningPath(ctx context.Context, userID string) (*models.LearningPath, error) {
	var out models.LearningPath
	if err := c.call(ctx, http.MethodGet, userPath(userID, "learning-path"), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RegeneratePath rebuilds a user's path from the stored goal and preferences
func (c *Client) RegeneratePath(ctx context.Context, userID string) (*models.LearningPath, error) {
	var out models.LearningPath
	if err := c.call(ctx, http.MethodPost, userPath(userID, "learning-path/regenerate"), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdatePreferences replaces a user's preferences and regenerates the path
func (c *Client) UpdatePreferences(ctx context.Context, userID string, in models.PreferenceInput) (*PreferencesUpdate, error) {
	var out PreferencesUpdate
	if err := c.call(ctx, http.MethodPut, userPath(userID, "preferences"), in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RecordProgress sends one progress event
func (c *Client) RecordProgress(ctx context.Context, userID string, ev models.ProgressEvent) (*ProgressUpdate, error) {
	var out ProgressUpdate
	if err := c.call(ctx, http.MethodPost, userPath(userID, "progress"), ev, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Recommendations retrieves next-step suggestions for a user
func (c *Client) Recommendations(ctx context.Context, userID string) ([]models.Recommendation, error) {
	var out struct {
		Recommendations []models.Recommendation `json:"recommendations"`
	}
	if err := c.call(ctx, http.MethodGet, userPath(userID, "recommendations"), nil, &out); err != nil {
		return nil, err
	}
	return out.Recommendations, nil
}

// Insights retrieves a user's learning summary
func (c *Client) Insights(ctx context.Context, userID string) (*models.Insights, error) {
	var out models.Insights
	if err := c.call(ctx, http.MethodGet, userPath(userID, "insights"), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Goals lists the catalog goals
func (c *Client) Goals(ctx context.Context) ([]models.GoalInfo, error) {
	var out struct {
		Goals []models.GoalInfo `json:"goals"`
		Total int               `json:"total"`
	}
	if err := c.call(ctx, http.MethodGet, "/api/v1/goals", nil, &out); err != nil {
		return nil, err
	}
	return out.Goals, nil
}

// Health checks if the service is healthy
func (c *Client) Health(ctx context.Context) error {
	return c.call(ctx, http.MethodGet, "/health", nil, nil)
}

func userPath(userID, rest string) string {
	return "/api/v1/users/" + url.PathEscape(userID) + "/" + rest
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *APIError       `json:"error"`
}

// call sends in as the JSON body (when non-nil) and decodes the envelope
// data into out (when non-nil)
func (c *Client) call(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	status, resp, err := c.doRequest(ctx, method, path, body)
	if err != nil {
		return err
	}

	var env envelope
	if err := json.Unmarshal(resp, &env); err != nil {
		if status >= 400 {
			return fmt.Errorf("HTTP %d: %s", status, string(resp))
		}
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if !env.Success || status >= 400 {
		apiErr := &APIError{Status: status, Code: "unknown", Message: string(resp)}
		if env.Error != nil {
			apiErr.Code, apiErr.Message = env.Error.Code, env.Error.Message
		}
		return apiErr
	}

	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("failed to unmarshal response data: %w", err)
	}
	return nil
}

// doRequest performs an HTTP request
func (c *Client) doRequest(ctx context.Context, method, path string, body io.Reader) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp.StatusCode, respBody, nil
}

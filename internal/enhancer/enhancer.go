// Package enhancer optionally rewrites a deterministic learning path with a
// language model. Callers treat every error as "use the deterministic path".
package enhancer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"

	"github.com/Chandra-cc/personalized-learning/internal/metrics"
	"github.com/Chandra-cc/personalized-learning/internal/models"
)

// ErrInvalidResponse is returned when the model output holds no usable step
var ErrInvalidResponse = errors.New("enhancer returned no valid steps")

// Request is the context handed to the model
type Request struct {
	Goal      string
	Education string
	Prefs     *models.PreferenceProfile
	Base      []models.PersonalizedStep
}

// Enhancer rewrites a path. Implementations must not modify req.Base.
type Enhancer interface {
	Enhance(ctx context.Context, req Request) ([]models.PersonalizedStep, error)
}

// Completer sends a single prompt to a chat model
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// Options configures an LLMEnhancer
type Options struct {
	Timeout          time.Duration
	MaxSteps         int
	FailureThreshold int
	OpenTimeout      time.Duration
}

// LLMEnhancer asks a chat model for a refined path behind a circuit breaker
type LLMEnhancer struct {
	completer Completer
	breaker   *gobreaker.CircuitBreaker[[]models.PersonalizedStep]
	timeout   time.Duration
	maxSteps  int
}

// New creates an LLMEnhancer
func New(completer Completer, opts Options) *LLMEnhancer {
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = 8
	}
	if opts.FailureThreshold <= 0 {
		opts.FailureThreshold = 3
	}
	threshold := uint32(opts.FailureThreshold)

	breaker := gobreaker.NewCircuitBreaker[[]models.PersonalizedStep](gobreaker.Settings{
		Name:        "path-enhancer",
		MaxRequests: 1,
		Interval:    5 * time.Minute,
		Timeout:     opts.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("enhancer circuit state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})

	return &LLMEnhancer{
		completer: completer,
		breaker:   breaker,
		timeout:   opts.Timeout,
		maxSteps:  opts.MaxSteps,
	}
}

// Enhance returns the model's path or an error
func (e *LLMEnhancer) Enhance(ctx context.Context, req Request) ([]models.PersonalizedStep, error) {
	steps, err := e.breaker.Execute(func() ([]models.PersonalizedStep, error) {
		if e.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, e.timeout)
			defer cancel()
		}

		prompt, err := buildPrompt(req)
		if err != nil {
			return nil, err
		}
		out, err := e.completer.Complete(ctx, systemPrompt, prompt)
		if err != nil {
			return nil, fmt.Errorf("completion failed: %w", err)
		}
		return parseSteps(out, e.maxSteps)
	})
	if err != nil {
		metrics.EnhancerFallbacks.WithLabelValues(fallbackReason(err)).Inc()
		return nil, err
	}
	return steps, nil
}

func fallbackReason(err error) string {
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "open"
	case errors.Is(err, ErrInvalidResponse):
		return "invalid"
	default:
		return "error"
	}
}

const systemPrompt = "You are a curriculum designer. Reply with a JSON array of learning steps only."

type promptContext struct {
	Goal                  string   `json:"goal"`
	Education             string   `json:"education,omitempty"`
	Difficulty            string   `json:"difficulty,omitempty"`
	LearningStyle         string   `json:"learning_style,omitempty"`
	PreferredContentTypes []string `json:"preferred_content_types,omitempty"`
	AvailableHoursPerWeek *float64 `json:"available_hours_per_week,omitempty"`
	YearsOfExperience     *float64 `json:"years_of_experience,omitempty"`
	CareerGoals           []string `json:"career_goals,omitempty"`
}

func buildPrompt(req Request) (string, error) {
	pc := promptContext{Goal: req.Goal, Education: req.Education}
	if p := req.Prefs; p != nil {
		pc.Difficulty = string(p.Difficulty())
		pc.LearningStyle = string(p.Style())
		pc.PreferredContentTypes = p.PreferredContentTypes
		pc.AvailableHoursPerWeek = p.AvailableHoursPerWeek
		pc.YearsOfExperience = p.YearsOfExperience
		pc.CareerGoals = p.CareerGoals
	}

	userCtx, err := json.MarshalIndent(pc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal prompt context: %w", err)
	}
	base, err := json.MarshalIndent(req.Base, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal base path: %w", err)
	}

	var b strings.Builder
	b.WriteString("Refine this learning path for the learner below.\n\n")
	b.WriteString("Learner:\n")
	b.Write(userCtx)
	b.WriteString("\n\nBase path:\n")
	b.Write(base)
	b.WriteString("\n\nKeep durations in the form \"<number> <unit>\". ")
	b.WriteString("Each step needs title, duration, description and learning_objectives; ")
	b.WriteString("resources, prerequisites and skills_gained are optional.")
	return b.String(), nil
}

type rawStep struct {
	Title              *string           `json:"title"`
	Duration           *string           `json:"duration"`
	Description        *string           `json:"description"`
	LearningObjectives []string          `json:"learning_objectives"`
	Resources          map[string]string `json:"resources"`
	Prerequisites      []string          `json:"prerequisites"`
	SkillsGained       []string          `json:"skills_gained"`
}

// parseSteps extracts the first JSON array in out and keeps the steps that
// carry every required field
func parseSteps(out string, limit int) ([]models.PersonalizedStep, error) {
	start, end := strings.Index(out, "["), strings.LastIndex(out, "]")
	if start == -1 || end < start {
		return nil, fmt.Errorf("no JSON array in response: %w", ErrInvalidResponse)
	}

	var raw []rawStep
	if err := json.Unmarshal([]byte(out[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("decode response: %v: %w", err, ErrInvalidResponse)
	}

	steps := make([]models.PersonalizedStep, 0, len(raw))
	for _, r := range raw {
		if len(steps) == limit {
			break
		}
		if !present(r.Title) || !present(r.Duration) || !present(r.Description) || r.LearningObjectives == nil {
			continue
		}
		steps = append(steps, models.PersonalizedStep{
			Title:              strings.TrimSpace(*r.Title),
			Duration:           strings.TrimSpace(*r.Duration),
			Description:        strings.TrimSpace(*r.Description),
			LearningObjectives: orEmpty(r.LearningObjectives),
			Resources:          models.Resources(r.Resources).Clone(),
			Prerequisites:      orEmpty(r.Prerequisites),
			SkillsGained:       orEmpty(r.SkillsGained),
		})
	}
	if len(steps) == 0 {
		return nil, ErrInvalidResponse
	}
	return steps, nil
}

func present(s *string) bool {
	return s != nil && strings.TrimSpace(*s) != ""
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

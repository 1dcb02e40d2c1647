package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/Chandra-cc/personalized-learning/internal/learning"
	"github.com/Chandra-cc/personalized-learning/internal/models"
)

const maxBodyBytes = 1 << 20

// Response helpers

type apiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *apiError   `json:"error,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: false,
		Error: &apiError{
			Code:    code,
			Message: message,
		},
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

// respondServiceError maps service errors to status codes. action completes
// the sentence "failed to ..." for unexpected errors.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error, action string) {
	switch {
	case errors.Is(err, learning.ErrUserNotFound):
		respondError(w, http.StatusNotFound, "user_not_found", "user not found")
	case errors.Is(err, models.ErrNoMatchingGoal):
		respondError(w, http.StatusNotFound, "no_matching_goal", "no learning path matches the requested goal")
	case errors.Is(err, learning.ErrInvalidStep):
		respondError(w, http.StatusBadRequest, "invalid_step", err.Error())
	default:
		slog.Error("failed to "+action,
			"error", err,
			"user_id", chi.URLParam(r, "userId"),
			"client", clientName(r.Context()),
		)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to "+action)
	}
}

// newValidator reports field names as they appear in JSON
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeBody decodes and validates a JSON body, writing the error response
// itself. It returns false when the handler should stop.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return false
	}
	if err := s.validate.Struct(v); err != nil {
		respondError(w, http.StatusBadRequest, "validation_error", validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s: %s", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}

// Health handlers

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	ready := true

	if err := s.service.Ping(r.Context()); err != nil {
		slog.Warn("readiness check failed", "dependency", "service", "error", err)
		checks["service"] = err.Error()
		ready = false
	} else {
		checks["service"] = "ok"
	}

	for name, err := range s.deps.HealthCheckAll(r.Context()) {
		if err != nil {
			slog.Warn("readiness check failed", "dependency", name, "error", err)
			checks[name] = err.Error()
			ready = false
			continue
		}
		checks[name] = "ok"
	}

	if !ready {
		respondJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status": "not_ready",
			"checks": checks,
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ready",
		"checks": checks,
	})
}

// Catalog handlers

func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request) {
	goals := s.service.Goals()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"goals": goals,
		"total": len(goals),
	})
}

func (s *Server) handleGeneratePath(w http.ResponseWriter, r *http.Request) {
	goal := strings.TrimSpace(r.URL.Query().Get("goal"))
	if goal == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "goal is required")
		return
	}

	path, err := s.service.GeneratePath(r.Context(), goal, r.URL.Query().Get("user_id"))
	if err != nil {
		respondServiceError(w, r, err, "generate learning path")
		return
	}
	respondJSON(w, http.StatusOK, path)
}

// User handlers

func (s *Server) handleSubmitProfile(w http.ResponseWriter, r *http.Request) {
	var req models.ProfileSubmission
	if !s.decodeBody(w, r, &req) {
		return
	}

	resp, err := s.service.SubmitProfile(r.Context(), req)
	if err != nil {
		respondServiceError(w, r, err, "submit user data")
		return
	}
	respondJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleGetLearningPath(w http.ResponseWriter, r *http.Request) {
	path, err := s.service.GetLearningPath(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		respondServiceError(w, r, err, "get learning path")
		return
	}
	respondJSON(w, http.StatusOK, path)
}

func (s *Server) handleRegeneratePath(w http.ResponseWriter, r *http.Request) {
	path, err := s.service.RegeneratePath(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		respondServiceError(w, r, err, "regenerate learning path")
		return
	}
	respondJSON(w, http.StatusOK, path)
}

func (s *Server) handleUpdatePreferences(w http.ResponseWriter, r *http.Request) {
	var in models.PreferenceInput
	if !s.decodeBody(w, r, &in) {
		return
	}

	upd, err := s.service.UpdatePreferences(r.Context(), chi.URLParam(r, "userId"), in)
	if err != nil {
		respondServiceError(w, r, err, "update preferences")
		return
	}
	respondJSON(w, http.StatusOK, upd)
}

func (s *Server) handleRecordProgress(w http.ResponseWriter, r *http.Request) {
	var ev models.ProgressEvent
	if !s.decodeBody(w, r, &ev) {
		return
	}

	upd, err := s.service.RecordProgress(r.Context(), chi.URLParam(r, "userId"), ev)
	if err != nil {
		respondServiceError(w, r, err, "record progress")
		return
	}
	respondJSON(w, http.StatusOK, upd)
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	recs, err := s.service.RecommendNextSteps(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		respondServiceError(w, r, err, "get recommendations")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"recommendations": recs,
	})
}

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	insights, err := s.service.GetInsights(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		respondServiceError(w, r, err, "get insights")
		return
	}
	respondJSON(w, http.StatusOK, insights)
}

package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/hperssn/mockinterview/internal/auth"
	"github.com/hperssn/mockinterview/internal/config"
	"github.com/hperssn/mockinterview/internal/domain"
	"github.com/hperssn/mockinterview/internal/metrics"
	"github.com/hperssn/mockinterview/internal/runner"
	"github.com/hperssn/mockinterview/internal/storage"
	"github.com/hperssn/mockinterview/internal/summary"
)

type authResponse struct {
	Message string        `json:"message"`
	Token   string        `json:"token"`
	User    *storage.User `json:"user"`
}

func register(svc *auth.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req auth.RegisterInput
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		user, token, err := svc.Register(r.Context(), req)
		if err != nil {
			respondAuthError(w, err)
			return
		}

		respondJSON(w, authResponse{Message: "User created successfully", Token: token, User: user}, http.StatusCreated)
	}
}

func login(svc *auth.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req auth.LoginInput
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		user, token, err := svc.Login(r.Context(), req)
		if err != nil {
			respondAuthError(w, err)
			return
		}

		respondJSON(w, authResponse{Message: "Login successful", Token: token, User: user}, http.StatusOK)
	}
}

func verify(svc *auth.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := svc.User(r.Context(), &auth.Claims{UserID: GetUserId(r)})
		if err != nil {
			if errors.Is(err, auth.ErrInvalidToken) {
				respondError(w, "User not found", http.StatusNotFound)
				return
			}
			respondAuthError(w, err)
			return
		}

		respondJSON(w, map[string]any{"user": user}, http.StatusOK)
	}
}

func startInterview(m *runner.SessionManager, defaults config.InterviewConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			InterviewType   string `json:"interviewType"`
			QuestionCount   *int   `json:"questionCount"`
			QuestionSeconds *int   `json:"questionDurationSeconds"`
		}

		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		count := defaults.QuestionCount
		if req.QuestionCount != nil {
			count = *req.QuestionCount
		}
		seconds := defaults.QuestionSeconds
		if req.QuestionSeconds != nil {
			seconds = *req.QuestionSeconds
		}

		session, err := m.For(GetUserId(r)).Start(domain.InterviewType(req.InterviewType), count, seconds)
		if err != nil {
			respondRunnerError(w, err)
			return
		}

		respondJSON(w, session, http.StatusCreated)
	}
}

func currentInterview(m *runner.SessionManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, err := m.For(GetUserId(r)).Snapshot()
		if err != nil {
			respondRunnerError(w, err)
			return
		}

		respondJSON(w, session, http.StatusOK)
	}
}

func submitResponse(m *runner.SessionManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			AudioRef string `json:"audioRef"`
		}

		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		resp, err := m.For(GetUserId(r)).Submit(r.Context(), req.AudioRef)
		if err != nil {
			respondRunnerError(w, err)
			return
		}

		respondJSON(w, resp, http.StatusOK)
	}
}

func skipQuestion(m *runner.SessionManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := m.For(GetUserId(r)).Skip()
		if err != nil {
			respondRunnerError(w, err)
			return
		}

		respondJSON(w, resp, http.StatusOK)
	}
}

func nextQuestion(m *runner.SessionManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, err := m.For(GetUserId(r)).Advance()
		if err != nil {
			respondRunnerError(w, err)
			return
		}

		respondJSON(w, session, http.StatusOK)
	}
}

func finishInterview(m *runner.SessionManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		overall, err := m.For(GetUserId(r)).Finish()
		if err != nil {
			respondRunnerError(w, err)
			return
		}

		respondJSON(w, overall, http.StatusOK)
	}
}

func endInterview(m *runner.SessionManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if c, ok := m.Lookup(GetUserId(r)); ok {
			c.End()
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func interviewSummary(m *runner.SessionManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		overall, err := m.For(GetUserId(r)).Summary()
		if err != nil {
			respondRunnerError(w, err)
			return
		}

		respondJSON(w, overall, http.StatusOK)
	}
}

func interviewReport(m *runner.SessionManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now()

		report, err := m.For(GetUserId(r)).Report(now)
		if err != nil {
			respondRunnerError(w, err)
			return
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="`+summary.ReportFilename(now)+`"`)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(report))
	}
}

func interviewHistory(repo storage.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessions, err := repo.ListSessions(r.Context(), GetUserId(r), storage.HistoryLimit)
		if err != nil {
			log.Error().Err(err).Msg("Failed to list interview history")
			respondError(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		if sessions == nil {
			sessions = []storage.SessionRecord{}
		}

		respondJSON(w, sessions, http.StatusOK)
	}
}

func storedInterview(repo storage.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "sessionId")

		session, err := repo.GetSession(r.Context(), id, GetUserId(r))
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				respondError(w, "Session not found", http.StatusNotFound)
				return
			}
			log.Error().Err(err).Str("sessionId", id).Msg("Failed to load interview session")
			respondError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		respondJSON(w, session, http.StatusOK)
	}
}

func metricsSnapshot(m *metrics.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, m.GetSnapshot(), http.StatusOK)
	}
}

func healthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}

func respondRunnerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, runner.ErrInvalidConfig):
		respondError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, runner.ErrStaleSubmission):
		respondError(w, "Time is up for this question; the answer was not recorded", http.StatusConflict)
	case errors.Is(err, runner.ErrInvalidTransition):
		respondError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, runner.ErrNoSession):
		respondError(w, "No interview session", http.StatusNotFound)
	case errors.Is(err, runner.ErrSessionDiscarded):
		respondError(w, err.Error(), http.StatusGone)
	default:
		log.Error().Err(err).Msg("Interview request failed")
		respondError(w, "Internal server error", http.StatusInternalServerError)
	}
}

func respondAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrValidation):
		respondError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, auth.ErrInvalidCredentials):
		respondError(w, "Invalid credentials", http.StatusUnauthorized)
	case errors.Is(err, auth.ErrUserExists):
		respondError(w, err.Error(), http.StatusConflict)
	default:
		log.Error().Err(err).Msg("Auth request failed")
		respondError(w, "Internal server error", http.StatusInternalServerError)
	}
}

func respondJSON(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func respondError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

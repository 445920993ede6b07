package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"github.com/hperssn/mockinterview/internal/auth"
	"github.com/hperssn/mockinterview/internal/config"
	"github.com/hperssn/mockinterview/internal/domain"
	"github.com/hperssn/mockinterview/internal/http"
	"github.com/hperssn/mockinterview/internal/metrics"
	"github.com/hperssn/mockinterview/internal/runner"
	"github.com/hperssn/mockinterview/internal/scoring"
	"github.com/hperssn/mockinterview/internal/storage"
	"github.com/hperssn/mockinterview/internal/summary"
)

type fixedScorer struct {
	scores []int
}

func (s *fixedScorer) Score(context.Context, scoring.Submission) (scoring.Result, error) {
	score := 50
	if len(s.scores) > 0 {
		score, s.scores = s.scores[0], s.scores[1:]
	}
	return scoring.Result{Score: score, Feedback: scoring.Tier(score)}, nil
}

type ServerSuite struct {
	suite.Suite
	repo     *storage.SQLiteRepository
	recorder *storage.Recorder
	manager  *runner.SessionManager
	svc      *auth.Service
	handler  http.Handler
	token    string
}

func TestServerSuite(t *testing.T) {
	suite.Run(t, new(ServerSuite))
}

func (s *ServerSuite) SetupTest() {
	var err error
	s.repo, err = storage.NewSQLiteRepository(filepath.Join(s.T().TempDir(), "server.db"))
	s.Require().NoError(err)

	s.recorder = storage.NewRecorder(s.repo, 0)
	s.svc = auth.NewService(s.repo, "test-secret", time.Hour)
	s.build(runner.Options{
		Scorer: &fixedScorer{scores: []int{55, 90}},
		Tick:   time.Hour,
	})

	rec := s.do(http.MethodPost, "/api/auth/register", "", auth.RegisterInput{
		Username:  "linus",
		Email:     "linus@example.com",
		Password:  "penguin",
		FirstName: "Linus",
		LastName:  "Torvalds",
	})
	s.Require().Equal(http.StatusCreated, rec.Code)

	var body struct {
		Token string `json:"token"`
	}
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	s.token = body.Token
}

// build wires a fresh session manager and router over the suite's store.
func (s *ServerSuite) build(opts runner.Options) {
	if s.manager != nil {
		s.manager.Close()
	}

	m := metrics.NewMetrics()
	opts.Recorder = s.recorder
	opts.Metrics = m
	s.manager = runner.NewSessionManager(opts)

	s.handler = newRouter(deps{
		manager:  s.manager,
		repo:     s.repo,
		auth:     s.svc,
		metrics:  m,
		limiter:  httpapi.NewRateLimiter(100, time.Minute),
		defaults: config.InterviewConfig{QuestionCount: 10, QuestionSeconds: 120},
	})
}

func (s *ServerSuite) TearDownTest() {
	s.manager.Close()
	s.recorder.Close()
	s.repo.Close()
}

func (s *ServerSuite) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *ServerSuite) TestInterviewFlow() {
	rec := s.do(http.MethodPost, "/api/interview/start", s.token, map[string]any{
		"interviewType":           "general",
		"questionCount":           3,
		"questionDurationSeconds": 30,
	})
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())

	var started domain.Session
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &started))
	s.Len(started.Questions, 3)
	s.Equal(domain.PhaseTiming, started.Phase)

	rec = s.do(http.MethodPost, "/api/interview/current/response", s.token, map[string]string{"audioRef": "clip-1"})
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(http.MethodPost, "/api/interview/current/next", s.token, nil)
	s.Require().Equal(http.StatusOK, rec.Code)

	rec = s.do(http.MethodPost, "/api/interview/current/skip", s.token, nil)
	s.Require().Equal(http.StatusOK, rec.Code)

	rec = s.do(http.MethodPost, "/api/interview/current/response", s.token, map[string]string{"audioRef": "clip-3"})
	s.Require().Equal(http.StatusOK, rec.Code)

	rec = s.do(http.MethodPost, "/api/interview/current/finish", s.token, nil)
	s.Require().Equal(http.StatusOK, rec.Code)

	var overall summary.Overall
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &overall))
	s.Equal(73, overall.OverallScore)
	s.Equal(2, overall.QuestionsAnswered)

	rec = s.do(http.MethodGet, "/api/interview/current/summary", s.token, nil)
	s.Equal(http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/api/interview/current/report", s.token, nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Header().Get("Content-Disposition"), "interview-report-")
	s.True(strings.HasPrefix(rec.Header().Get("Content-Type"), "text/plain"))
	s.Contains(rec.Body.String(), "Total Score: 73/100")

	// History is written asynchronously.
	s.Eventually(func() bool {
		rec := s.do(http.MethodGet, "/api/interview/history", s.token, nil)
		var list []storage.SessionRecord
		if rec.Code != http.StatusOK || json.Unmarshal(rec.Body.Bytes(), &list) != nil {
			return false
		}
		return len(list) == 1 && len(list[0].Responses) == 3 && list[0].TotalScore != nil
	}, 2*time.Second, 10*time.Millisecond)

	rec = s.do(http.MethodGet, "/api/interview/"+started.ID, s.token, nil)
	s.Require().Equal(http.StatusOK, rec.Code)

	var stored storage.SessionRecord
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &stored))
	s.Equal("clip-1", stored.Responses[0].AudioRef)
}

func (s *ServerSuite) TestStartValidation() {
	rec := s.do(http.MethodPost, "/api/interview/start", s.token, map[string]any{"questionCount": 0})
	s.Equal(http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/api/interview/start", s.token, map[string]any{"questionDurationSeconds": -1})
	s.Equal(http.StatusBadRequest, rec.Code)

	// Defaults apply when the fields are omitted.
	rec = s.do(http.MethodPost, "/api/interview/start", s.token, map[string]any{"interviewType": "technical"})
	s.Require().Equal(http.StatusCreated, rec.Code)

	var started domain.Session
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &started))
	s.Len(started.Questions, 10)
	s.Equal(120, started.QuestionSeconds)

	rec = s.do(http.MethodPost, "/api/interview/start", s.token, map[string]any{"interviewType": "technical"})
	s.Equal(http.StatusConflict, rec.Code)
}

func (s *ServerSuite) TestTransitionErrors() {
	rec := s.do(http.MethodGet, "/api/interview/current", s.token, nil)
	s.Equal(http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodPost, "/api/interview/current/next", s.token, nil)
	s.Equal(http.StatusConflict, rec.Code)

	rec = s.do(http.MethodPost, "/api/interview/current/end", s.token, nil)
	s.Equal(http.StatusNoContent, rec.Code)

	rec = s.do(http.MethodPost, "/api/interview/start", s.token, map[string]any{"questionCount": 2, "questionDurationSeconds": 30})
	s.Require().Equal(http.StatusCreated, rec.Code)

	rec = s.do(http.MethodGet, "/api/interview/current/summary", s.token, nil)
	s.Equal(http.StatusConflict, rec.Code)

	rec = s.do(http.MethodPost, "/api/interview/current/end", s.token, nil)
	s.Equal(http.StatusNoContent, rec.Code)
	rec = s.do(http.MethodPost, "/api/interview/current/end", s.token, nil)
	s.Equal(http.StatusNoContent, rec.Code)

	rec = s.do(http.MethodGet, "/api/interview/current", s.token, nil)
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *ServerSuite) TestStaleSubmission() {
	s.build(runner.Options{
		Scorer:           &fixedScorer{},
		Tick:             time.Millisecond,
		AutoAdvanceDelay: time.Hour,
	})

	rec := s.do(http.MethodPost, "/api/interview/start", s.token, map[string]any{"questionCount": 2, "questionDurationSeconds": 1})
	s.Require().Equal(http.StatusCreated, rec.Code)

	s.Require().Eventually(func() bool {
		rec := s.do(http.MethodGet, "/api/interview/current", s.token, nil)
		var snap domain.Session
		return json.Unmarshal(rec.Body.Bytes(), &snap) == nil && snap.Phase == domain.PhaseAwaitingFeedback
	}, 2*time.Second, time.Millisecond)

	rec = s.do(http.MethodPost, "/api/interview/current/response", s.token, map[string]string{"audioRef": "late"})
	s.Equal(http.StatusConflict, rec.Code)
	s.Contains(rec.Body.String(), "Time is up")

	rec = s.do(http.MethodGet, "/api/interview/current", s.token, nil)
	var snap domain.Session
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &snap))
	s.Len(snap.Responses, 1)
	s.True(snap.Responses[0].TimedOut)
}

func (s *ServerSuite) TestAuthRequired() {
	rec := s.do(http.MethodGet, "/api/interview/current", "", nil)
	s.Equal(http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodGet, "/api/interview/current", "not-a-token", nil)
	s.Equal(http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodGet, "/api/auth/verify", s.token, nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `"username":"linus"`)
	s.NotContains(rec.Body.String(), "password")
}

func (s *ServerSuite) TestAuthErrors() {
	rec := s.do(http.MethodPost, "/api/auth/login", "", auth.LoginInput{Email: "linus@example.com", Password: "nope-nope"})
	s.Equal(http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodPost, "/api/auth/login", "", auth.LoginInput{Email: "linus@example.com", Password: "penguin"})
	s.Equal(http.StatusOK, rec.Code)

	rec = s.do(http.MethodPost, "/api/auth/register", "", auth.RegisterInput{
		Username: "linus", Email: "linus@example.com", Password: "penguin", FirstName: "L", LastName: "T",
	})
	s.Equal(http.StatusConflict, rec.Code)

	rec = s.do(http.MethodPost, "/api/auth/register", "", auth.RegisterInput{Username: "x"})
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *ServerSuite) TestHistoryScopedToUser() {
	rec := s.do(http.MethodPost, "/api/auth/register", "", auth.RegisterInput{
		Username: "other", Email: "other@example.com", Password: "secret1", FirstName: "O", LastName: "T",
	})
	s.Require().Equal(http.StatusCreated, rec.Code)
	var body struct {
		Token string `json:"token"`
	}
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))

	rec = s.do(http.MethodPost, "/api/interview/start", s.token, map[string]any{"questionCount": 1, "questionDurationSeconds": 30})
	s.Require().Equal(http.StatusCreated, rec.Code)
	var started domain.Session
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &started))

	s.Eventually(func() bool {
		_, err := s.repo.GetSession(context.Background(), started.ID, started.UserID)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	rec = s.do(http.MethodGet, "/api/interview/"+started.ID, body.Token, nil)
	s.Equal(http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodGet, "/api/interview/history", body.Token, nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.JSONEq(`[]`, rec.Body.String())
}

func TestHealthz(t *testing.T) {
	rec := httptest.NewRecorder()
	healthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBearerToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, bearerToken(req))

	req.Header.Set("Authorization", "Basic abc")
	assert.Empty(t, bearerToken(req))

	req.Header.Set("Authorization", "bearer abc.def")
	assert.Equal(t, "abc.def", bearerToken(req))
}

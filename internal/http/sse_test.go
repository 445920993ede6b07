package httpapi

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hperssn/mockinterview/internal/domain"
	"github.com/hperssn/mockinterview/internal/runner"
	"github.com/hperssn/mockinterview/internal/scoring"
)

type instantScorer struct{}

func (instantScorer) Score(context.Context, scoring.Submission) (scoring.Result, error) {
	return scoring.Result{Score: 64, Feedback: "Good answer!"}, nil
}

func TestStreamInterviewEvents(t *testing.T) {
	manager := runner.NewSessionManager(runner.Options{Scorer: instantScorer{}, Tick: time.Hour})
	defer manager.Close()

	r := chi.NewRouter()
	r.Use(RequestLogger)
	r.Get("/events", StreamInterviewEvents(manager, func(*http.Request) string { return "alice" }))

	srv := httptest.NewServer(r)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	c := manager.For("alice")
	_, err = c.Start(domain.InterviewTechnical, 1, 30)
	require.NoError(t, err)
	_, err = c.Submit(ctx, "clip-1")
	require.NoError(t, err)

	var types []runner.EventType
	var scored runner.Event
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() && len(types) < 3 {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev runner.Event
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev))
		types = append(types, ev.Type)
		if ev.Type == runner.EventScored {
			scored = ev
		}
	}

	assert.Equal(t, []runner.EventType{runner.EventStarted, runner.EventScoring, runner.EventScored}, types)
	require.NotNil(t, scored.Response)
	require.NotNil(t, scored.Response.Score)
	assert.Equal(t, 64, *scored.Response.Score)
	assert.Equal(t, domain.PhaseAwaitingFeedback, scored.Phase)
}

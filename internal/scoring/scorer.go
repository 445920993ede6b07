// Package scoring turns a captured answer into a score and feedback text.
package scoring

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/hperssn/mockinterview/internal/domain"
)

var ErrMissingQuestionContext = errors.New("missing question context")

type Submission struct {
	Question *domain.Question
	AudioRef string
	TimedOut bool
}

type Result struct {
	Score    int
	Feedback string
}

// Scorer evaluates a single answer. Implementations may block and must
// honour ctx cancellation.
type Scorer interface {
	Score(ctx context.Context, sub Submission) (Result, error)
}

var suggestions = []string{
	"Try to provide specific examples from your experience.",
	"Consider structuring your answer with clear points.",
	"Think about the STAR method (Situation, Task, Action, Result) for behavioral questions.",
	"Be more specific about your technical knowledge and experience.",
}

// PlaceholderScorer does no analysis of the answer at all. It draws a score
// and canned feedback from its random source after a simulated processing
// delay, and stands in until a real evaluator exists.
type PlaceholderScorer struct {
	mu         sync.Mutex
	rnd        *rand.Rand
	minLatency time.Duration
	maxLatency time.Duration
}

func NewPlaceholderScorer(r *rand.Rand, minLatency, maxLatency time.Duration) *PlaceholderScorer {
	if r == nil {
		r = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if maxLatency < minLatency {
		maxLatency = minLatency
	}
	return &PlaceholderScorer{
		rnd:        r,
		minLatency: minLatency,
		maxLatency: maxLatency,
	}
}

func (s *PlaceholderScorer) Score(ctx context.Context, sub Submission) (Result, error) {
	if sub.Question == nil {
		return Result{}, ErrMissingQuestionContext
	}

	if d := s.latency(); d > 0 {
		t := time.NewTimer(d)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return Result{}, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	score := drawScore(s.rnd)
	return Result{
		Score:    score,
		Feedback: buildFeedback(s.rnd, score, sub.Question.ExpectedKeywords),
	}, nil
}

func (s *PlaceholderScorer) latency() time.Duration {
	span := s.maxLatency - s.minLatency
	if span <= 0 {
		return s.minLatency
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.minLatency + time.Duration(s.rnd.Int63n(int64(span)))
}

func drawScore(r *rand.Rand) int {
	base := r.Float64()*40 + 30
	bonus := r.Float64() * 30
	return int(math.Min(math.Round(base+bonus), 100))
}

func buildFeedback(r *rand.Rand, score int, keywords []string) string {
	var b strings.Builder
	b.WriteString(Tier(score))

	var mentioned []string
	for _, k := range keywords {
		if r.Float64() > 0.7 {
			mentioned = append(mentioned, k)
		}
	}
	if len(mentioned) > 0 {
		b.WriteString(fmt.Sprintf("You mentioned relevant concepts like %s. ", strings.Join(mentioned, ", ")))
	}

	b.WriteString(suggestions[r.Intn(len(suggestions))])
	return b.String()
}

// Tier returns the opening feedback sentence for a score.
func Tier(score int) string {
	switch {
	case score >= 80:
		return "Excellent answer! You demonstrated strong understanding and provided comprehensive insights. "
	case score >= 60:
		return "Good answer with solid points. Consider providing more specific examples. "
	case score >= 40:
		return "Your answer shows some understanding but could be more detailed. "
	default:
		return "Your answer needs more depth and specific examples. "
	}
}

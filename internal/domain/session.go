package domain

import (
	"time"

	"github.com/google/uuid"
)

type Phase string

const (
	PhaseIdle             Phase = "idle"
	PhaseTiming           Phase = "timing"
	PhaseScoring          Phase = "scoring"
	PhaseAwaitingFeedback Phase = "awaiting_feedback"
	PhaseCompleted        Phase = "completed"
)

// InProgress reports whether the phase belongs to a running interview.
func (p Phase) InProgress() bool {
	switch p {
	case PhaseTiming, PhaseScoring, PhaseAwaitingFeedback:
		return true
	}
	return false
}

// Session is the state of one interview attempt. Scores holds the score of
// every scored response in order; AppendResponse keeps the two in step.
type Session struct {
	ID              string        `json:"id"`
	UserID          string        `json:"userId"`
	InterviewType   InterviewType `json:"interviewType"`
	Questions       []Question    `json:"questions"`
	CurrentIdx      int           `json:"currentIndex"`
	Responses       []Response    `json:"responses"`
	Scores          []int         `json:"scores"`
	StartedAt       time.Time     `json:"startedAt"`
	CompletedAt     time.Time     `json:"completedAt,omitzero"`
	QuestionCount   int           `json:"questionCount"`
	QuestionSeconds int           `json:"questionDurationSeconds"`
	Phase           Phase         `json:"phase"`
	RemainingSec    int           `json:"remainingSeconds"`
}

func NewSession(id, userID string, t InterviewType, questions []Question, count, seconds int, now time.Time) *Session {
	if id == "" {
		id = uuid.New().String()
	}

	return &Session{
		ID:              id,
		UserID:          userID,
		InterviewType:   t,
		Questions:       questions,
		CurrentIdx:      0,
		Responses:       make([]Response, 0, len(questions)),
		Scores:          make([]int, 0, len(questions)),
		StartedAt:       now,
		QuestionCount:   count,
		QuestionSeconds: seconds,
		Phase:           PhaseTiming,
		RemainingSec:    seconds,
	}
}

func (s *Session) Current() *Question {
	if s.CurrentIdx < 0 || s.CurrentIdx >= len(s.Questions) {
		return nil
	}
	return &s.Questions[s.CurrentIdx]
}

func (s *Session) IsLast() bool {
	return s.CurrentIdx+1 >= len(s.Questions)
}

// Answered reports whether the current question already has a response.
func (s *Session) Answered() bool {
	return len(s.Responses) > s.CurrentIdx
}

func (s *Session) AppendResponse(r Response) {
	s.Responses = append(s.Responses, r)
	if r.Scored() {
		s.Scores = append(s.Scores, *r.Score)
	}
}

func (s *Session) AnsweredCount() int {
	n := 0
	for _, r := range s.Responses {
		if !r.Skipped {
			n++
		}
	}
	return n
}

// Clone returns a deep copy safe to hand to readers.
func (s *Session) Clone() *Session {
	c := *s
	c.Questions = make([]Question, len(s.Questions))
	for i, q := range s.Questions {
		q.ExpectedKeywords = append([]string(nil), q.ExpectedKeywords...)
		c.Questions[i] = q
	}
	c.Responses = make([]Response, len(s.Responses))
	for i, r := range s.Responses {
		if r.Score != nil {
			v := *r.Score
			r.Score = &v
		}
		c.Responses[i] = r
	}
	c.Scores = append([]int(nil), s.Scores...)
	return &c
}

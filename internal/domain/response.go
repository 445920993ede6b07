package domain

import "time"

// Response is created once per question transition and never mutated.
type Response struct {
	QuestionIndex int       `json:"questionIndex"`
	QuestionText  string    `json:"question"`
	AudioRef      string    `json:"audioRef,omitempty"`
	Score         *int      `json:"score,omitempty"`
	Feedback      string    `json:"feedback,omitempty"`
	Skipped       bool      `json:"skipped"`
	TimedOut      bool      `json:"timedOut"`
	Timestamp     time.Time `json:"timestamp"`
}

func (r Response) Scored() bool {
	return !r.Skipped && r.Score != nil
}

func NewSkippedResponse(idx int, q Question, at time.Time) Response {
	return Response{
		QuestionIndex: idx,
		QuestionText:  q.Text,
		Skipped:       true,
		Timestamp:     at,
	}
}

func NewScoredResponse(idx int, q Question, audioRef string, score int, feedback string, timedOut bool, at time.Time) Response {
	s := score
	return Response{
		QuestionIndex: idx,
		QuestionText:  q.Text,
		AudioRef:      audioRef,
		Score:         &s,
		Feedback:      feedback,
		TimedOut:      timedOut,
		Timestamp:     at,
	}
}

package storage

import (
	"time"

	"github.com/hperssn/mockinterview/internal/domain"
	"github.com/hperssn/mockinterview/internal/summary"
)

type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	CreatedAt    time.Time `json:"createdAt"`
	LastLogin    time.Time `json:"lastLogin"`
}

type SessionRecord struct {
	ID                string                    `json:"id"`
	UserID            string                    `json:"userId"`
	InterviewType     domain.InterviewType      `json:"interviewType"`
	Questions         []domain.Question         `json:"questions"`
	Responses         []domain.Response         `json:"responses"`
	TotalScore        *int                      `json:"totalScore,omitempty"`
	TotalTime         *int                      `json:"totalTime,omitempty"`
	QuestionsAnswered *int                      `json:"questionsAnswered,omitempty"`
	Categories        []summary.CategorySummary `json:"categories,omitempty"`
	CreatedAt         time.Time                 `json:"createdAt"`
	CompletedAt       *time.Time                `json:"completedAt,omitempty"`
}

// FromDomainSession converts a freshly started session into the record
// stored by CreateSession. Responses are appended separately.
func FromDomainSession(s *domain.Session) *SessionRecord {
	questions := make([]domain.Question, len(s.Questions))
	copy(questions, s.Questions)

	return &SessionRecord{
		ID:            s.ID,
		UserID:        s.UserID,
		InterviewType: s.InterviewType,
		Questions:     questions,
		CreatedAt:     s.StartedAt,
	}
}

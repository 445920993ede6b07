package storage

import (
	"context"
	"errors"
	"time"

	"github.com/hperssn/mockinterview/internal/domain"
	"github.com/hperssn/mockinterview/internal/summary"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")

	errQueueFull      = errors.New("recorder queue full")
	errRecorderClosed = errors.New("recorder closed")
)

// HistoryLimit caps ListSessions when the caller passes no limit.
const HistoryLimit = 10

type Repository interface {
	CreateSession(ctx context.Context, record *SessionRecord) (string, error)

	AppendResponse(ctx context.Context, sessionID, userID string, r domain.Response) error

	CompleteSession(ctx context.Context, sessionID, userID string, o summary.Overall, completedAt time.Time) error

	// ListSessions returns the user's most recent sessions, newest first,
	// without audio references.
	ListSessions(ctx context.Context, userID string, limit int) ([]SessionRecord, error)

	GetSession(ctx context.Context, sessionID, userID string) (*SessionRecord, error)

	CreateUser(ctx context.Context, u *User) error

	GetUserByEmail(ctx context.Context, email string) (*User, error)

	GetUserByID(ctx context.Context, id string) (*User, error)

	TouchLastLogin(ctx context.Context, id string, at time.Time) error

	Close() error
}

package runner

import (
	"github.com/hperssn/mockinterview/internal/domain"
	"github.com/hperssn/mockinterview/internal/summary"
)

type EventType string

const (
	EventStarted   EventType = "started"
	EventTick      EventType = "tick"
	EventTimedOut  EventType = "timed_out"
	EventScoring   EventType = "scoring"
	EventScored    EventType = "scored"
	EventSkipped   EventType = "skipped"
	EventAdvanced  EventType = "advanced"
	EventCompleted EventType = "completed"
	EventEnded     EventType = "ended"
)

// subscriberBuffer is the per-subscriber event backlog; events beyond it
// are dropped for that subscriber.
const subscriberBuffer = 32

type Event struct {
	Type      EventType        `json:"type"`
	SessionID string           `json:"sessionId"`
	Index     int              `json:"index"`
	Phase     domain.Phase     `json:"phase"`
	Remaining int              `json:"remainingSeconds"`
	Response  *domain.Response `json:"response,omitempty"`
	Summary   *summary.Overall `json:"summary,omitempty"`
}

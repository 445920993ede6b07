package metrics

import (
	"sync"
	"time"
)

type Metrics struct {
	mu                  sync.RWMutex
	sessionsStarted     int64
	sessionsCompleted   int64
	sessionsEnded       int64
	responsesScored     int64
	questionsSkipped    int64
	questionsTimedOut   int64
	persistenceFailures int64
	lastUpdateTime      time.Time
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	SessionsStarted     int64     `json:"sessionsStarted"`
	SessionsCompleted   int64     `json:"sessionsCompleted"`
	SessionsEnded       int64     `json:"sessionsEnded"`
	ResponsesScored     int64     `json:"responsesScored"`
	QuestionsSkipped    int64     `json:"questionsSkipped"`
	QuestionsTimedOut   int64     `json:"questionsTimedOut"`
	PersistenceFailures int64     `json:"persistenceFailures"`
	LastUpdateTime      time.Time `json:"lastUpdateTime"`
}

func NewMetrics() *Metrics {
	return &Metrics{
		lastUpdateTime: time.Now(),
	}
}

func (m *Metrics) inc(counter *int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	*counter++
	m.lastUpdateTime = time.Now()
}

func (m *Metrics) IncrementSessionsStarted() {
	m.inc(&m.sessionsStarted)
}

func (m *Metrics) IncrementSessionsCompleted() {
	m.inc(&m.sessionsCompleted)
}

func (m *Metrics) IncrementSessionsEnded() {
	m.inc(&m.sessionsEnded)
}

func (m *Metrics) IncrementResponsesScored() {
	m.inc(&m.responsesScored)
}

func (m *Metrics) IncrementQuestionsSkipped() {
	m.inc(&m.questionsSkipped)
}

func (m *Metrics) IncrementQuestionsTimedOut() {
	m.inc(&m.questionsTimedOut)
}

func (m *Metrics) IncrementPersistenceFailures() {
	m.inc(&m.persistenceFailures)
}

func (m *Metrics) GetSnapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Snapshot{
		SessionsStarted:     m.sessionsStarted,
		SessionsCompleted:   m.sessionsCompleted,
		SessionsEnded:       m.sessionsEnded,
		ResponsesScored:     m.responsesScored,
		QuestionsSkipped:    m.questionsSkipped,
		QuestionsTimedOut:   m.questionsTimedOut,
		PersistenceFailures: m.persistenceFailures,
		LastUpdateTime:      m.lastUpdateTime,
	}
}

package runner

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	cleanupInterval = 5 * time.Minute
	// IdleTimeout is how long a controller may sit without activity before
	// it is ended and dropped.
	IdleTimeout = time.Hour
)

// SessionManager holds one Controller per user.
type SessionManager struct {
	mu          sync.Mutex
	controllers map[string]*Controller
	opts        Options
	idleTimeout time.Duration

	stop     chan struct{}
	stopOnce sync.Once
}

func NewSessionManager(opts Options) *SessionManager {
	m := &SessionManager{
		controllers: make(map[string]*Controller),
		opts:        opts.withDefaults(),
		idleTimeout: IdleTimeout,
		stop:        make(chan struct{}),
	}

	go m.cleanupLoop(cleanupInterval)

	return m
}

func (m *SessionManager) cleanupLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.cleanupIdle()
		case <-m.stop:
			return
		}
	}
}

func (m *SessionManager) cleanupIdle() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.opts.Now().Add(-m.idleTimeout)
	removed := 0

	for userID, c := range m.controllers {
		if c.LastActivity().Before(cutoff) {
			c.Close()
			delete(m.controllers, userID)
			removed++
		}
	}

	if removed > 0 {
		log.Debug().Int("removed", removed).Msg("Dropped idle interview controllers")
	}
	return removed
}

// For returns the user's controller, creating it on first use.
func (m *SessionManager) For(userID string) *Controller {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.controllers[userID]
	if !ok {
		c = NewController(userID, m.opts)
		m.controllers[userID] = c
	}
	return c
}

// Lookup returns the user's controller without creating one.
func (m *SessionManager) Lookup(userID string) (*Controller, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.controllers[userID]
	return c, ok
}

func (m *SessionManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.controllers)
}

// Close stops the cleanup loop and ends every session.
func (m *SessionManager) Close() {
	m.stopOnce.Do(func() {
		close(m.stop)
	})

	m.mu.Lock()
	defer m.mu.Unlock()

	for userID, c := range m.controllers {
		c.Close()
		delete(m.controllers, userID)
	}
}

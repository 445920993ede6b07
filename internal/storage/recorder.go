package storage

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hperssn/mockinterview/internal/domain"
	"github.com/hperssn/mockinterview/internal/summary"
)

const (
	// DefaultQueueSize bounds the number of pending writes.
	DefaultQueueSize = 256
	// OpTimeout bounds a single repository call made by the recorder.
	OpTimeout = 5 * time.Second
)

type op struct {
	kind      string
	sessionID string
	run       func(ctx context.Context) error
}

// Recorder persists session progress in the background. Writes are applied
// in submission order by a single worker; failures are logged and counted
// but never returned to the caller.
type Recorder struct {
	repo  Repository
	queue chan op

	onFailure func(kind string, err error)

	closeOnce sync.Once
	done      chan struct{}
}

func NewRecorder(repo Repository, queueSize int) *Recorder {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	r := &Recorder{
		repo:  repo,
		queue: make(chan op, queueSize),
		done:  make(chan struct{}),
	}
	go r.loop()
	return r
}

// SetOnFailure registers a callback invoked for every failed or dropped
// write. It must be set before the first write is enqueued.
func (r *Recorder) SetOnFailure(fn func(kind string, err error)) {
	r.onFailure = fn
}

func (r *Recorder) CreateSession(s *domain.Session) {
	record := FromDomainSession(s)
	r.enqueue(op{
		kind:      "create_session",
		sessionID: s.ID,
		run: func(ctx context.Context) error {
			_, err := r.repo.CreateSession(ctx, record)
			return err
		},
	})
}

func (r *Recorder) AppendResponse(sessionID, userID string, resp domain.Response) {
	r.enqueue(op{
		kind:      "append_response",
		sessionID: sessionID,
		run: func(ctx context.Context) error {
			return r.repo.AppendResponse(ctx, sessionID, userID, resp)
		},
	})
}

func (r *Recorder) CompleteSession(sessionID, userID string, o summary.Overall, completedAt time.Time) {
	r.enqueue(op{
		kind:      "complete_session",
		sessionID: sessionID,
		run: func(ctx context.Context) error {
			return r.repo.CompleteSession(ctx, sessionID, userID, o, completedAt)
		},
	})
}

func (r *Recorder) enqueue(o op) {
	defer func() {
		// Close raced with a late write.
		if recover() != nil {
			r.fail(o, errRecorderClosed)
		}
	}()

	select {
	case r.queue <- o:
	default:
		r.fail(o, errQueueFull)
	}
}

func (r *Recorder) loop() {
	defer close(r.done)

	for o := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), OpTimeout)
		err := o.run(ctx)
		cancel()
		if err != nil {
			r.fail(o, err)
		}
	}
}

func (r *Recorder) fail(o op, err error) {
	log.Warn().
		Err(err).
		Str("op", o.kind).
		Str("sessionId", o.sessionID).
		Msg("Persistence unavailable, continuing without it")

	if r.onFailure != nil {
		r.onFailure(o.kind, err)
	}
}

// Close stops accepting writes and waits for queued ones to drain.
func (r *Recorder) Close() {
	r.closeOnce.Do(func() {
		close(r.queue)
	})
	<-r.done
}

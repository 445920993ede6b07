package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hperssn/mockinterview/internal/domain"
	"github.com/hperssn/mockinterview/internal/metrics"
	"github.com/hperssn/mockinterview/internal/scoring"
	"github.com/hperssn/mockinterview/internal/summary"
)

var (
	ErrInvalidConfig     = errors.New("invalid interview configuration")
	ErrInvalidTransition = errors.New("action not allowed in the current interview state")
	ErrStaleSubmission   = errors.New("question already timed out")
	ErrSessionDiscarded  = errors.New("interview ended before the answer was scored")
	ErrNoSession         = errors.New("no interview session")
)

const (
	DefaultTick             = time.Second
	DefaultAutoAdvanceDelay = 2 * time.Second
)

// timeoutFeedback is recorded when a timed-out answer could not be scored.
const timeoutFeedback = "Time's up! Moving to next question..."

// Recorder receives session progress for persistence. Calls must not block.
type Recorder interface {
	CreateSession(s *domain.Session)
	AppendResponse(sessionID, userID string, r domain.Response)
	CompleteSession(sessionID, userID string, o summary.Overall, completedAt time.Time)
}

type Options struct {
	Catalog          domain.Catalog
	Scorer           scoring.Scorer
	Recorder         Recorder
	Metrics          *metrics.Metrics
	Tick             time.Duration
	AutoAdvanceDelay time.Duration
	Now              func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Catalog == nil {
		o.Catalog = domain.DefaultCatalog()
	}
	if o.Scorer == nil {
		o.Scorer = scoring.NewPlaceholderScorer(nil, time.Second, 3*time.Second)
	}
	if o.Metrics == nil {
		o.Metrics = metrics.NewMetrics()
	}
	if o.Tick <= 0 {
		o.Tick = DefaultTick
	}
	if o.AutoAdvanceDelay <= 0 {
		o.AutoAdvanceDelay = DefaultAutoAdvanceDelay
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

type countdown struct {
	cancel chan struct{}
}

// ticket identifies the question a scoring call belongs to.
type ticket struct {
	sessionID string
	index     int
	question  domain.Question
}

// Controller drives one user's interview. All state lives behind mu; the
// countdown goroutine, scoring completions and the auto-advance timer all
// re-check their ticket or timer identity under mu before touching state.
type Controller struct {
	mu     sync.Mutex
	userID string
	opts   Options

	session *domain.Session
	result  *summary.Overall

	expiredIdx  int
	countdown   *countdown
	autoAdvance *time.Timer
	autoToken   uint64
	scoreCancel context.CancelFunc

	subs    map[int]chan Event
	nextSub int

	lastActivity time.Time
}

func NewController(userID string, opts Options) *Controller {
	opts = opts.withDefaults()
	return &Controller{
		userID:       userID,
		opts:         opts,
		expiredIdx:   -1,
		subs:         make(map[int]chan Event),
		lastActivity: opts.Now(),
	}
}

// Start begins a new interview. questionCount is truncated to the catalog
// size; unknown interview types use the general catalog.
func (c *Controller) Start(t domain.InterviewType, questionCount, questionSeconds int) (*domain.Session, error) {
	if questionCount <= 0 {
		return nil, fmt.Errorf("%w: question count must be positive, got %d", ErrInvalidConfig, questionCount)
	}
	if questionSeconds <= 0 {
		return nil, fmt.Errorf("%w: question duration must be positive, got %d", ErrInvalidConfig, questionSeconds)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != nil && c.session.Phase.InProgress() {
		return nil, fmt.Errorf("%w: an interview is already in progress", ErrInvalidTransition)
	}

	questions, resolved, fellBack := c.opts.Catalog.QuestionsFor(t, questionCount)
	if fellBack {
		log.Warn().
			Str("requested", string(t)).
			Str("using", string(resolved)).
			Msg("Unknown interview type, falling back to default catalog")
	}
	if len(questions) == 0 {
		return nil, fmt.Errorf("%w: catalog for %s is empty", ErrInvalidConfig, resolved)
	}

	s := domain.NewSession("", c.userID, resolved, questions, questionCount, questionSeconds, c.opts.Now())
	c.session = s
	c.result = nil
	c.expiredIdx = -1
	c.touch()

	c.armCountdown()

	if c.opts.Recorder != nil {
		c.opts.Recorder.CreateSession(s.Clone())
	}
	c.opts.Metrics.IncrementSessionsStarted()
	c.emit(EventStarted, nil, nil)

	log.Info().
		Str("sessionId", s.ID).
		Str("userId", c.userID).
		Str("type", string(resolved)).
		Int("questions", len(questions)).
		Int("seconds", questionSeconds).
		Msg("Interview started")

	return s.Clone(), nil
}

// Submit scores the captured answer for the current question. It blocks
// until scoring finishes, ctx is cancelled or the session is ended.
func (c *Controller) Submit(ctx context.Context, audioRef string) (domain.Response, error) {
	c.mu.Lock()
	if err := c.checkAnswerable(); err != nil {
		c.mu.Unlock()
		return domain.Response{}, err
	}

	c.stopCountdown()
	sctx, t := c.beginScoring(ctx)
	c.mu.Unlock()

	return c.score(sctx, t, audioRef, false)
}

// Skip records the current question as skipped without scoring it and moves
// on, completing the session after the last question.
func (c *Controller) Skip() (domain.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkAnswerable(); err != nil {
		return domain.Response{}, err
	}

	c.stopCountdown()

	s := c.session
	resp := domain.NewSkippedResponse(s.CurrentIdx, *s.Current(), c.opts.Now())
	s.AppendResponse(resp)
	c.touch()

	if c.opts.Recorder != nil {
		c.opts.Recorder.AppendResponse(s.ID, s.UserID, resp)
	}
	c.opts.Metrics.IncrementQuestionsSkipped()
	c.emit(EventSkipped, &resp, nil)

	c.moveOn()
	return resp, nil
}

// Advance moves from the feedback view to the next question, or completes
// the session after the last one.
func (c *Controller) Advance() (*domain.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil || c.session.Phase != domain.PhaseAwaitingFeedback {
		return nil, c.transitionError("advance")
	}

	c.moveOn()
	c.touch()
	return c.session.Clone(), nil
}

// Finish completes the session and returns its summary. Calling it again
// after completion returns the same summary.
func (c *Controller) Finish() (summary.Overall, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return summary.Overall{}, c.transitionError("finish")
	}
	switch c.session.Phase {
	case domain.PhaseCompleted:
		return *c.result, nil
	case domain.PhaseTiming, domain.PhaseAwaitingFeedback:
		c.complete()
		c.touch()
		return *c.result, nil
	default:
		return summary.Overall{}, c.transitionError("finish")
	}
}

// End abandons the session without aggregating it. Pending timers are
// cancelled and an in-flight scoring result will be discarded. Ending an
// idle controller is a no-op.
func (c *Controller) End() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.end()
}

func (c *Controller) end() {
	if c.session == nil {
		return
	}

	c.stopCountdown()
	c.stopAutoAdvance()
	if c.scoreCancel != nil {
		c.scoreCancel()
		c.scoreCancel = nil
	}

	wasRunning := c.session.Phase.InProgress()
	if wasRunning {
		c.session.Phase = domain.PhaseIdle
		c.emit(EventEnded, nil, nil)
		c.opts.Metrics.IncrementSessionsEnded()
		log.Info().
			Str("sessionId", c.session.ID).
			Str("userId", c.userID).
			Msg("Interview ended early")
	}

	c.session = nil
	c.result = nil
	c.expiredIdx = -1
	c.touch()
}

// Snapshot returns a copy of the current session.
func (c *Controller) Snapshot() (*domain.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return nil, ErrNoSession
	}
	return c.session.Clone(), nil
}

func (c *Controller) Phase() domain.Phase {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return domain.PhaseIdle
	}
	return c.session.Phase
}

// Summary returns the frozen summary of a completed session.
func (c *Controller) Summary() (summary.Overall, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return summary.Overall{}, ErrNoSession
	}
	if c.result == nil {
		return summary.Overall{}, c.transitionError("summarize")
	}
	return *c.result, nil
}

// Report renders the text report of a completed session.
func (c *Controller) Report(date time.Time) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return "", ErrNoSession
	}
	if c.result == nil {
		return "", c.transitionError("report")
	}
	return summary.Report(c.session, *c.result, date), nil
}

// Subscribe returns a channel of state changes and a function that stops
// the subscription. Slow subscribers miss events rather than block.
func (c *Controller) Subscribe() (<-chan Event, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextSub
	c.nextSub++
	ch := make(chan Event, subscriberBuffer)
	c.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if sub, ok := c.subs[id]; ok {
				delete(c.subs, id)
				close(sub)
			}
		})
	}
}

// Close ends any session and closes every subscription.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.end()
	for id, ch := range c.subs {
		delete(c.subs, id)
		close(ch)
	}
}

func (c *Controller) LastActivity() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActivity
}

// checkAnswerable reports whether the current question accepts an answer.
// Caller holds mu.
func (c *Controller) checkAnswerable() error {
	if c.session == nil {
		return fmt.Errorf("%w: no interview in progress", ErrInvalidTransition)
	}
	if c.expiredIdx == c.session.CurrentIdx && c.session.Phase.InProgress() {
		return ErrStaleSubmission
	}
	if c.session.Phase != domain.PhaseTiming {
		return c.transitionError("answer")
	}
	return nil
}

func (c *Controller) transitionError(action string) error {
	phase := domain.PhaseIdle
	if c.session != nil {
		phase = c.session.Phase
	}
	return fmt.Errorf("%w: cannot %s while %s", ErrInvalidTransition, action, phase)
}

// beginScoring moves to the scoring phase and returns the context the scorer
// runs under. Caller holds mu.
func (c *Controller) beginScoring(parent context.Context) (context.Context, ticket) {
	ctx, cancel := context.WithCancel(parent)
	c.scoreCancel = cancel

	s := c.session
	s.Phase = domain.PhaseScoring
	c.emit(EventScoring, nil, nil)

	return ctx, ticket{
		sessionID: s.ID,
		index:     s.CurrentIdx,
		question:  *s.Current(),
	}
}

// score runs the scorer outside the lock and applies the result only if the
// ticket still matches the live session.
func (c *Controller) score(ctx context.Context, t ticket, audioRef string, timedOut bool) (domain.Response, error) {
	q := t.question
	res, err := c.opts.Scorer.Score(ctx, scoring.Submission{
		Question: &q,
		AudioRef: audioRef,
		TimedOut: timedOut,
	})

	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.session
	if s == nil || s.ID != t.sessionID || s.CurrentIdx != t.index || s.Phase != domain.PhaseScoring {
		log.Debug().
			Str("sessionId", t.sessionID).
			Int("index", t.index).
			Msg("Discarding score for abandoned question")
		return domain.Response{}, ErrSessionDiscarded
	}

	if c.scoreCancel != nil {
		c.scoreCancel()
		c.scoreCancel = nil
	}

	var resp domain.Response
	switch {
	case err == nil:
		resp = domain.NewScoredResponse(t.index, q, audioRef, res.Score, res.Feedback, timedOut, c.opts.Now())
		c.opts.Metrics.IncrementResponsesScored()
	case timedOut:
		log.Warn().Err(err).Str("sessionId", s.ID).Msg("Scoring timed-out answer failed")
		resp = domain.Response{
			QuestionIndex: t.index,
			QuestionText:  q.Text,
			Feedback:      timeoutFeedback,
			TimedOut:      true,
			Timestamp:     c.opts.Now(),
		}
	default:
		// The question is still open; let the user answer again.
		s.Phase = domain.PhaseTiming
		c.resumeCountdown()
		return domain.Response{}, fmt.Errorf("score answer: %w", err)
	}

	s.AppendResponse(resp)
	s.Phase = domain.PhaseAwaitingFeedback
	c.touch()

	if c.opts.Recorder != nil {
		c.opts.Recorder.AppendResponse(s.ID, s.UserID, resp)
	}
	c.emit(EventScored, &resp, nil)

	if timedOut {
		c.scheduleAutoAdvance()
	}
	return resp, nil
}

// moveOn advances to the next question or completes the session. Caller
// holds mu.
func (c *Controller) moveOn() {
	c.stopAutoAdvance()

	s := c.session
	if s.IsLast() {
		c.complete()
		return
	}

	s.CurrentIdx++
	s.Phase = domain.PhaseTiming
	c.armCountdown()
	c.emit(EventAdvanced, nil, nil)
}

// complete freezes the session and aggregates it. Caller holds mu.
func (c *Controller) complete() {
	c.stopCountdown()
	c.stopAutoAdvance()

	s := c.session
	now := c.opts.Now()
	s.Phase = domain.PhaseCompleted
	s.CompletedAt = now
	s.RemainingSec = 0

	o := summary.Summarize(s, now)
	c.result = &o

	if c.opts.Recorder != nil {
		c.opts.Recorder.CompleteSession(s.ID, s.UserID, o, now)
	}
	c.opts.Metrics.IncrementSessionsCompleted()
	c.emit(EventCompleted, nil, &o)

	log.Info().
		Str("sessionId", s.ID).
		Int("score", o.OverallScore).
		Int("answered", o.QuestionsAnswered).
		Msg("Interview completed")
}

// armCountdown starts a fresh countdown for the current question.
func (c *Controller) armCountdown() {
	c.session.RemainingSec = c.session.QuestionSeconds
	c.expiredIdx = -1
	c.resumeCountdown()
}

// resumeCountdown counts down from the session's remaining seconds. Caller
// holds mu.
func (c *Controller) resumeCountdown() {
	c.stopCountdown()

	cd := &countdown{cancel: make(chan struct{})}
	c.countdown = cd

	go c.runCountdown(cd, c.session.RemainingSec)
}

func (c *Controller) runCountdown(cd *countdown, remaining int) {
	ticker := time.NewTicker(c.opts.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			remaining--
			if remaining > 0 {
				if !c.tick(cd, remaining) {
					return
				}
				continue
			}
			c.expire(cd)
			return

		case <-cd.cancel:
			return
		}
	}
}

func (c *Controller) tick(cd *countdown, remaining int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.countdown != cd {
		return false
	}
	c.session.RemainingSec = remaining
	c.emit(EventTick, nil, nil)
	return true
}

// expire is the timer-driven submission of an empty answer. Once it has
// claimed the question, manual submits and skips for it are stale.
func (c *Controller) expire(cd *countdown) {
	c.mu.Lock()
	if c.countdown != cd || c.session == nil || c.session.Phase != domain.PhaseTiming {
		c.mu.Unlock()
		return
	}
	c.countdown = nil

	s := c.session
	s.RemainingSec = 0
	c.expiredIdx = s.CurrentIdx
	c.opts.Metrics.IncrementQuestionsTimedOut()
	c.emit(EventTimedOut, nil, nil)

	ctx, t := c.beginScoring(context.Background())
	c.mu.Unlock()

	if _, err := c.score(ctx, t, "", true); err != nil && !errors.Is(err, ErrSessionDiscarded) {
		log.Warn().Err(err).Str("sessionId", t.sessionID).Msg("Timed-out answer not recorded")
	}
}

// stopCountdown cancels the running countdown, if any. Caller holds mu.
func (c *Controller) stopCountdown() {
	if c.countdown == nil {
		return
	}
	close(c.countdown.cancel)
	c.countdown = nil
}

func (c *Controller) scheduleAutoAdvance() {
	c.stopAutoAdvance()

	c.autoToken++
	token := c.autoToken
	c.autoAdvance = time.AfterFunc(c.opts.AutoAdvanceDelay, func() {
		c.mu.Lock()
		defer c.mu.Unlock()

		if c.autoToken != token || c.session == nil || c.session.Phase != domain.PhaseAwaitingFeedback {
			return
		}
		c.autoAdvance = nil
		c.moveOn()
	})
}

func (c *Controller) stopAutoAdvance() {
	c.autoToken++
	if c.autoAdvance != nil {
		c.autoAdvance.Stop()
		c.autoAdvance = nil
	}
}

// emit publishes an event to every subscriber without blocking. Caller
// holds mu.
func (c *Controller) emit(typ EventType, resp *domain.Response, o *summary.Overall) {
	if len(c.subs) == 0 || c.session == nil {
		return
	}

	ev := Event{
		Type:      typ,
		SessionID: c.session.ID,
		Index:     c.session.CurrentIdx,
		Phase:     c.session.Phase,
		Remaining: c.session.RemainingSec,
		Response:  resp,
		Summary:   o,
	}
	for _, ch := range c.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (c *Controller) touch() {
	c.lastActivity = c.opts.Now()
}

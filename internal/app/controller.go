package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"car-picker/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// QuizAPI is the remote quiz server.
type QuizAPI interface {
	FetchQuestion(ctx context.Context, difficulty domain.Difficulty, timer int) (domain.Question, error)
	SubmitAnswer(ctx context.Context, submission domain.AnswerSubmission) (domain.AnswerResult, error)
	Leaderboard(ctx context.Context) (domain.Leaderboard, error)
}

// PreferenceStore persists client-local settings and the player name.
type PreferenceStore interface {
	LoadSettings(ctx context.Context) (domain.Settings, error)
	SaveSettings(ctx context.Context, settings domain.Settings) error
	LoadPlayer(ctx context.Context) (string, error)
	SavePlayer(ctx context.Context, name string) error
}

// HistoryRecorder keeps resolved attempts.
type HistoryRecorder interface {
	Record(ctx context.Context, attempt domain.Attempt) error
	Recent(ctx context.Context, limit int) ([]domain.Attempt, error)
}

// Option configures a Controller.
type Option func(*Controller)

func WithLogger(log zerolog.Logger) Option {
	return func(c *Controller) { c.log = log }
}

// WithTick overrides the countdown interval (one second by default).
func WithTick(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.tick = d
		}
	}
}

// WithClock is used by tests for deterministic attempt timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

func WithSessionID(id string) Option {
	return func(c *Controller) { c.id = id }
}

// resolution is the applied server verdict for the active question.
type resolution struct {
	correctLabel string
}

// Controller owns one quiz session: question lifecycle, countdown, answer
// submission, local statistics and the cached leaderboard. All exported
// methods are safe for concurrent use; network calls run without the lock.
type Controller struct {
	api     QuizAPI
	prefs   PreferenceStore
	history HistoryRecorder
	log     zerolog.Logger
	tick    time.Duration
	now     func() time.Time
	id      string
	sf      singleflight.Group
	lbSeq   atomic.Uint64
	bg      sync.WaitGroup

	baseCtx    context.Context
	cancelBase context.CancelFunc

	mu          sync.Mutex
	closed      bool
	phase       Phase
	generation  uint64
	settings    domain.Settings
	player      string
	question    *domain.Question
	selected    int
	remaining   int
	timedOut    bool
	pending     *domain.AnswerSubmission
	result      *resolution
	stats       domain.Stats
	score       *domain.ServerScore
	leaderboard []domain.LeaderboardEntry
	lbApplied   uint64
	feedback    Feedback
	countdown   context.CancelFunc
	subscribers map[chan View]struct{}
}

// NewController creates an idle session. history may be nil.
func NewController(api QuizAPI, prefs PreferenceStore, history HistoryRecorder, opts ...Option) *Controller {
	c := &Controller{
		api:         api,
		prefs:       prefs,
		history:     history,
		log:         zerolog.Nop(),
		tick:        time.Second,
		now:         time.Now,
		id:          uuid.NewString(),
		phase:       PhaseIdle,
		settings:    domain.DefaultSettings(),
		selected:    -1,
		subscribers: make(map[chan View]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.baseCtx, c.cancelBase = context.WithCancel(context.Background())
	c.log = c.log.With().Str("session", c.id).Logger()
	return c
}

// ID identifies the session in logs and history.
func (c *Controller) ID() string { return c.id }

// Start loads persisted preferences, refreshes the leaderboard in the
// background and requests the first question.
func (c *Controller) Start(ctx context.Context) error {
	settings, err := c.prefs.LoadSettings(ctx)
	if err != nil {
		c.log.Warn().Err(err).Msg("load settings failed, using defaults")
		settings = domain.DefaultSettings()
	}
	player, err := c.prefs.LoadPlayer(ctx)
	if err != nil {
		c.log.Warn().Err(err).Msg("load player failed")
		player = ""
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return domain.ErrClosed
	}
	c.settings = settings.Normalize()
	c.player = strings.TrimSpace(player)
	c.publishLocked()
	c.mu.Unlock()

	c.refreshAsync(false)
	return c.Next(ctx)
}

// Next abandons the current question, if any, and loads a new one. It is
// rejected while a load or submission is in flight.
func (c *Controller) Next(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return domain.ErrClosed
	}
	if c.phase == PhaseLoading || c.phase == PhaseSubmitting {
		c.mu.Unlock()
		return domain.ErrBusy
	}
	c.stopCountdownLocked()
	c.generation++
	gen := c.generation
	c.phase = PhaseLoading
	c.question = nil
	c.selected = -1
	c.remaining = 0
	c.timedOut = false
	c.pending = nil
	c.result = nil
	c.feedback = Feedback{Message: msgLoading}
	settings := c.settings
	c.publishLocked()
	c.mu.Unlock()

	q, err := c.api.FetchQuestion(ctx, settings.Difficulty, settings.Timer)
	if err == nil {
		err = q.Validate()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || gen != c.generation {
		return domain.ErrClosed
	}
	if err != nil {
		c.phase = PhaseIdle
		c.feedback = Feedback{Message: msgLoadError, Tone: ToneTimeout}
		c.publishLocked()
		c.log.Error().Err(err).Str("difficulty", string(settings.Difficulty)).Msg("load question failed")
		return fmt.Errorf("load question: %w", err)
	}

	c.question = &q
	c.phase = PhaseAwaitingSelection
	c.remaining = domain.ClampTimer(float64(q.Timeout))
	c.feedback = Feedback{Message: msgReady}
	c.startCountdownLocked(gen)
	c.publishLocked()
	c.log.Debug().Str("question", q.ID).Int("timeout", c.remaining).Msg("question loaded")
	return nil
}

// Select sets the tentative selection, replacing any earlier one.
func (c *Controller) Select(index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkAnswerableLocked(); err != nil {
		return err
	}
	if c.timedOut {
		return domain.ErrAlreadyAnswered
	}
	if index < 0 || index >= len(c.question.Options) {
		return domain.ErrInvalidSelection
	}
	c.selected = index
	c.publishLocked()
	return nil
}

// Submit sends the tentative selection. Without a selection it only sets
// feedback; the countdown keeps running and nothing is sent.
func (c *Controller) Submit(ctx context.Context) error {
	c.mu.Lock()
	if err := c.checkAnswerableLocked(); err != nil {
		c.mu.Unlock()
		return err
	}

	var sub domain.AnswerSubmission
	switch {
	case c.timedOut:
		// a failed timeout submission can only be re-sent as a timeout
		sub = c.beginSubmitLocked(c.correctOptionLocked(), true)
	case c.selected < 0:
		c.feedback = Feedback{Message: msgSelect, Tone: ToneTimeout}
		c.publishLocked()
		c.mu.Unlock()
		return domain.ErrNoSelection
	default:
		sub = c.beginSubmitLocked(c.question.Options[c.selected], false)
	}
	gen := c.generation
	c.mu.Unlock()

	return c.send(ctx, gen, sub)
}

// Retry re-sends the last submission that failed.
func (c *Controller) Retry(ctx context.Context) error {
	c.mu.Lock()
	if err := c.checkAnswerableLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	if c.pending == nil {
		c.mu.Unlock()
		return domain.ErrNothingToRetry
	}
	prev := *c.pending
	sub := c.beginSubmitLocked(prev.Answer, prev.Timeout)
	gen := c.generation
	c.mu.Unlock()

	return c.send(ctx, gen, sub)
}

// correctOptionLocked is the offered option matching the correct label.
func (c *Controller) correctOptionLocked() domain.Option {
	if i := c.question.CorrectIndex(); i >= 0 {
		return c.question.Options[i]
	}
	return c.question.Correct
}

func (c *Controller) checkAnswerableLocked() error {
	if c.closed {
		return domain.ErrClosed
	}
	switch c.phase {
	case PhaseSubmitting:
		return domain.ErrBusy
	case PhaseResolved:
		return domain.ErrAlreadyAnswered
	case PhaseIdle, PhaseLoading:
		return domain.ErrNoQuestion
	}
	return nil
}

// beginSubmitLocked moves to Submitting and cancels the countdown.
func (c *Controller) beginSubmitLocked(answer domain.Option, timedOut bool) domain.AnswerSubmission {
	c.stopCountdownLocked()
	c.phase = PhaseSubmitting
	c.pending = nil
	if timedOut {
		c.timedOut = true
		c.feedback = Feedback{Message: msgTimeout, Tone: ToneTimeout}
	}

	var player *string
	if c.player != "" {
		name := c.player
		player = &name
	}
	sub := domain.AnswerSubmission{
		QuestionID: c.question.ID,
		Difficulty: c.question.Difficulty,
		Answer:     answer,
		Player:     player,
		Timeout:    timedOut,
	}
	c.publishLocked()
	return sub
}

func (c *Controller) send(ctx context.Context, gen uint64, sub domain.AnswerSubmission) error {
	res, err := c.api.SubmitAnswer(ctx, sub)

	c.mu.Lock()
	if c.closed || gen != c.generation {
		c.mu.Unlock()
		return domain.ErrClosed
	}
	if err != nil {
		c.phase = PhaseAwaitingSelection
		c.pending = &sub
		c.feedback = Feedback{Message: msgSubmitError, Tone: ToneTimeout}
		c.publishLocked()
		c.mu.Unlock()
		c.log.Warn().Err(err).Str("question", sub.QuestionID).Bool("timeout", sub.Timeout).Msg("submit answer failed")
		return fmt.Errorf("submit answer: %w", err)
	}

	correct := res.Correct && !sub.Timeout
	c.stats.Record(correct)
	c.phase = PhaseResolved
	c.result = &resolution{correctLabel: res.CorrectAnswer.Label}
	switch {
	case sub.Timeout:
		c.feedback = Feedback{Message: msgTimeout, Tone: ToneTimeout}
	case correct:
		c.feedback = Feedback{Message: msgCorrect, Tone: ToneCorrect}
	default:
		c.feedback = Feedback{Message: msgWrong, Tone: ToneWrong}
	}
	if res.Score != nil {
		score := *res.Score
		c.score = &score
	}
	attempt := domain.Attempt{
		ID:            uuid.NewString(),
		SessionID:     c.id,
		QuestionID:    sub.QuestionID,
		Difficulty:    sub.Difficulty,
		Answer:        sub.Answer.Label,
		CorrectAnswer: res.CorrectAnswer.Label,
		Correct:       correct,
		TimedOut:      sub.Timeout,
		Player:        c.player,
		AnsweredAt:    c.now().UTC(),
	}
	c.publishLocked()
	c.mu.Unlock()

	c.log.Info().
		Str("question", sub.QuestionID).
		Bool("correct", correct).
		Bool("timeout", sub.Timeout).
		Msg("answer resolved")

	if c.history != nil {
		if err := c.history.Record(c.baseCtx, attempt); err != nil {
			c.log.Warn().Err(err).Msg("record attempt failed")
		}
	}
	if res.Score != nil {
		c.refreshAsync(true)
	}
	return nil
}

// RefreshLeaderboard fetches the leaderboard. Concurrent calls share one request.
func (c *Controller) RefreshLeaderboard(ctx context.Context) error {
	return c.refreshLeaderboard(ctx, false)
}

type leaderboardFetch struct {
	seq uint64
	lb  domain.Leaderboard
}

// refreshLeaderboard with fresh set starts a new request instead of joining
// one already in flight, so a score change is never answered with an older
// ranking. Responses are applied in request order.
func (c *Controller) refreshLeaderboard(ctx context.Context, fresh bool) error {
	if fresh {
		c.sf.Forget("leaderboard")
	}
	v, err, _ := c.sf.Do("leaderboard", func() (interface{}, error) {
		seq := c.lbSeq.Add(1)
		lb, err := c.api.Leaderboard(ctx)
		return leaderboardFetch{seq: seq, lb: lb}, err
	})
	if err != nil {
		return fmt.Errorf("refresh leaderboard: %w", err)
	}
	fetch := v.(leaderboardFetch)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return domain.ErrClosed
	}
	if fetch.seq <= c.lbApplied {
		return nil
	}
	c.lbApplied = fetch.seq
	c.leaderboard = append([]domain.LeaderboardEntry{}, fetch.lb.Entries...)
	c.publishLocked()
	return nil
}

func (c *Controller) refreshAsync(fresh bool) {
	c.bg.Add(1)
	go func() {
		defer c.bg.Done()
		if err := c.refreshLeaderboard(c.baseCtx, fresh); err != nil {
			c.log.Warn().Err(err).Msg("leaderboard refresh failed")
		}
	}()
}

// UpdateSettings normalizes and persists settings. A change of difficulty or
// timer abandons the current question and loads a new one. It is rejected
// with ErrBusy, and nothing changes, while a load or submission is in flight.
func (c *Controller) UpdateSettings(ctx context.Context, settings domain.Settings) error {
	settings = settings.Normalize()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return domain.ErrClosed
	}
	if c.phase == PhaseLoading || c.phase == PhaseSubmitting {
		c.mu.Unlock()
		return domain.ErrBusy
	}
	prev := c.settings
	c.settings = settings
	c.publishLocked()
	c.mu.Unlock()

	if err := c.prefs.SaveSettings(ctx, settings); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	if prev.Difficulty != settings.Difficulty || prev.Timer != settings.Timer {
		return c.Next(ctx)
	}
	return nil
}

// ToggleTheme flips the theme and persists it.
func (c *Controller) ToggleTheme(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return domain.ErrClosed
	}
	c.settings = c.settings.ToggleTheme()
	settings := c.settings
	c.publishLocked()
	c.mu.Unlock()

	if err := c.prefs.SaveSettings(ctx, settings); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// SetPlayer stores the display name sent with answers. Empty means anonymous.
func (c *Controller) SetPlayer(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return domain.ErrClosed
	}
	c.player = name
	c.feedback = Feedback{Message: msgPlayerSaved}
	c.publishLocked()
	c.mu.Unlock()

	if err := c.prefs.SavePlayer(ctx, name); err != nil {
		return fmt.Errorf("save player: %w", err)
	}
	return nil
}

// Close tears the session down: the countdown is canceled, subscribers are
// closed and background refreshes are awaited.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.generation++
	c.stopCountdownLocked()
	c.cancelBase()
	for ch := range c.subscribers {
		delete(c.subscribers, ch)
		close(ch)
	}
	c.mu.Unlock()

	c.bg.Wait()
}

package app_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"car-picker/internal/app"
	"car-picker/internal/domain"
	"car-picker/internal/infra/memory"
	"car-picker/internal/transport/api"
	"car-picker/internal/transport/api/apitest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = 2 * time.Second

type fixture struct {
	srv     *apitest.Server
	prefs   *memory.PrefsStore
	history *memory.HistoryStore
	ctrl    *app.Controller
}

func newFixture(t *testing.T, wrap func(app.QuizAPI) app.QuizAPI, opts ...app.Option) *fixture {
	t.Helper()
	srv := apitest.NewServer()
	t.Cleanup(srv.Close)

	client, err := api.NewClient(srv.URL, 0)
	require.NoError(t, err)
	var quiz app.QuizAPI = client
	if wrap != nil {
		quiz = wrap(client)
	}

	f := &fixture{srv: srv, prefs: memory.NewPrefsStore(), history: memory.NewHistoryStore(10)}
	f.ctrl = app.NewController(quiz, f.prefs, f.history, opts...)
	t.Cleanup(f.ctrl.Close)
	return f
}

func (f *fixture) phase() app.Phase {
	return f.ctrl.Snapshot().Phase
}

// alwaysCorrect reports every answer as correct, including timeouts.
type alwaysCorrect struct {
	app.QuizAPI
}

func (a alwaysCorrect) SubmitAnswer(ctx context.Context, sub domain.AnswerSubmission) (domain.AnswerResult, error) {
	res, err := a.QuizAPI.SubmitAnswer(ctx, sub)
	res.Correct = err == nil
	return res, err
}

func TestCorrectAnswerResolvesQuestion(t *testing.T) {
	f := newFixture(t, nil)
	f.srv.Enqueue(apitest.SampleQuestion("q1", 20, 1))
	ctx := context.Background()

	require.NoError(t, f.ctrl.SetPlayer(ctx, "  Alice "))
	require.NoError(t, f.ctrl.Start(ctx))
	assert.Equal(t, app.PhaseAwaitingSelection, f.phase())
	assert.Equal(t, 20, f.ctrl.Snapshot().Remaining)

	require.NoError(t, f.ctrl.Select(1))
	require.NoError(t, f.ctrl.Submit(ctx))

	v := f.ctrl.Snapshot()
	assert.Equal(t, app.PhaseResolved, v.Phase)
	assert.Equal(t, domain.Stats{Correct: 1, Attempts: 1, Streak: 1}, v.Stats)
	assert.Equal(t, 100, v.Accuracy)
	assert.Equal(t, app.ToneCorrect, v.Feedback.Tone)
	for i, opt := range v.Options {
		assert.True(t, opt.Disabled, "option %d must be locked", i)
		assert.Equal(t, i == 1, opt.Correct, "option %d", i)
		assert.False(t, opt.Wrong)
	}
	require.NotNil(t, v.Score)
	assert.Equal(t, "Alice", v.Score.Player)

	answers := f.srv.Answers()
	require.Len(t, answers, 1)
	assert.Equal(t, "Toyota", answers[0].Answer.Label)
	assert.False(t, answers[0].Timeout)
	require.NotNil(t, answers[0].Player)
	assert.Equal(t, "Alice", *answers[0].Player)

	assert.Eventually(t, func() bool {
		return len(f.ctrl.Snapshot().Leaderboard) == 1
	}, waitFor, 5*time.Millisecond)
}

func TestWrongAnswerMarksSelection(t *testing.T) {
	f := newFixture(t, nil)
	f.srv.Enqueue(apitest.SampleQuestion("q1", 20, 1))
	ctx := context.Background()

	require.NoError(t, f.ctrl.Start(ctx))
	require.NoError(t, f.ctrl.Select(3))
	require.NoError(t, f.ctrl.Submit(ctx))

	v := f.ctrl.Snapshot()
	assert.Equal(t, domain.Stats{Correct: 0, Attempts: 1, Streak: 0}, v.Stats)
	assert.Equal(t, app.ToneWrong, v.Feedback.Tone)
	assert.True(t, v.Options[1].Correct)
	assert.True(t, v.Options[3].Wrong)
	assert.Nil(t, v.Score, "anonymous players get no server score")
}

func TestSubmitWithoutSelectionStaysAwaiting(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	require.NoError(t, f.ctrl.Start(ctx))

	err := f.ctrl.Submit(ctx)
	assert.ErrorIs(t, err, domain.ErrNoSelection)

	v := f.ctrl.Snapshot()
	assert.Equal(t, app.PhaseAwaitingSelection, v.Phase)
	assert.Equal(t, "Choose one of the options before submitting.", v.Feedback.Message)
	assert.True(t, v.CanSubmit)
	assert.Empty(t, f.srv.Answers())
}

func TestCountdownExpirySubmitsTimeoutOnce(t *testing.T) {
	f := newFixture(t, func(q app.QuizAPI) app.QuizAPI { return alwaysCorrect{q} }, app.WithTick(2*time.Millisecond))
	q := apitest.SampleQuestion("q1", 10, 2)
	// the server may send only the label for the correct answer
	q.Correct = domain.Option{Label: q.Correct.Label}
	f.srv.Enqueue(q)

	require.NoError(t, f.ctrl.Start(context.Background()))
	require.Eventually(t, func() bool { return f.phase() == app.PhaseResolved }, waitFor, time.Millisecond)

	// give a stray second tick the chance to misbehave
	time.Sleep(20 * time.Millisecond)

	answers := f.srv.Answers()
	require.Len(t, answers, 1)
	assert.True(t, answers[0].Timeout)
	assert.Equal(t, q.Correct.Label, answers[0].Answer.Label)
	assert.Equal(t, "BMW", answers[0].Answer.Make, "timeout sends the offered option")

	v := f.ctrl.Snapshot()
	assert.Equal(t, domain.Stats{Correct: 0, Attempts: 1, Streak: 0}, v.Stats)
	assert.Equal(t, app.ToneTimeout, v.Feedback.Tone)
	assert.Equal(t, 0, v.Remaining)
	assert.True(t, v.Options[2].Correct)
}

func TestTimeoutBreaksStreak(t *testing.T) {
	f := newFixture(t, nil, app.WithTick(2*time.Millisecond))
	ctx := context.Background()
	f.srv.Enqueue(apitest.SampleQuestion("q1", 60, 0), apitest.SampleQuestion("q2", 10, 0))

	require.NoError(t, f.ctrl.Start(ctx))
	require.NoError(t, f.ctrl.Select(0))
	require.NoError(t, f.ctrl.Submit(ctx))
	assert.Equal(t, 1, f.ctrl.Snapshot().Stats.Streak)

	require.NoError(t, f.ctrl.Next(ctx))
	require.NoError(t, f.ctrl.Select(0))
	require.Eventually(t, func() bool { return f.phase() == app.PhaseResolved }, waitFor, time.Millisecond)

	v := f.ctrl.Snapshot()
	assert.Equal(t, domain.Stats{Correct: 1, Attempts: 2, Streak: 0}, v.Stats)
	assert.Equal(t, 50, v.Accuracy)
	assert.False(t, v.Options[0].Wrong, "selected option matches the correct label")
}

func TestLastSelectionWins(t *testing.T) {
	f := newFixture(t, nil)
	f.srv.Enqueue(apitest.SampleQuestion("q1", 20, 0))
	ctx := context.Background()

	require.NoError(t, f.ctrl.Start(ctx))
	require.NoError(t, f.ctrl.Select(0))
	require.NoError(t, f.ctrl.Select(2))
	assert.True(t, f.ctrl.Snapshot().Options[2].Selected)
	assert.False(t, f.ctrl.Snapshot().Options[0].Selected)
	assert.ErrorIs(t, f.ctrl.Select(7), domain.ErrInvalidSelection)

	require.NoError(t, f.ctrl.Submit(ctx))
	answers := f.srv.Answers()
	require.Len(t, answers, 1)
	assert.Equal(t, "BMW", answers[0].Answer.Label)
}

func TestSubmitCancelsCountdown(t *testing.T) {
	f := newFixture(t, nil, app.WithTick(2*time.Millisecond))
	f.srv.Enqueue(apitest.SampleQuestion("q1", 10, 0))
	ctx := context.Background()

	require.NoError(t, f.ctrl.Start(ctx))
	require.NoError(t, f.ctrl.Select(1))

	release := f.srv.HoldAnswers()
	done := make(chan error, 1)
	go func() { done <- f.ctrl.Submit(ctx) }()

	require.Eventually(t, func() bool { return f.phase() == app.PhaseSubmitting }, waitFor, time.Millisecond)
	assert.ErrorIs(t, f.ctrl.Select(0), domain.ErrBusy)
	assert.ErrorIs(t, f.ctrl.Submit(ctx), domain.ErrBusy)
	assert.ErrorIs(t, f.ctrl.Next(ctx), domain.ErrBusy)

	// well past the 10 tick budget
	time.Sleep(60 * time.Millisecond)
	release()
	require.NoError(t, <-done)

	answers := f.srv.Answers()
	require.Len(t, answers, 1)
	assert.False(t, answers[0].Timeout)
	assert.ErrorIs(t, f.ctrl.Select(0), domain.ErrAlreadyAnswered)
}

func TestQuestionLoadFailureIsRecoverable(t *testing.T) {
	f := newFixture(t, nil)
	f.srv.FailQuestions(1)
	ctx := context.Background()

	err := f.ctrl.Start(ctx)
	require.Error(t, err)

	v := f.ctrl.Snapshot()
	assert.Equal(t, app.PhaseIdle, v.Phase)
	assert.Equal(t, "Unable to load a question. Refresh and try again.", v.Feedback.Message)
	assert.True(t, v.CanAdvance)
	assert.Equal(t, 1, f.srv.QuestionCalls(), "no automatic retry")
	assert.ErrorIs(t, f.ctrl.Submit(ctx), domain.ErrNoQuestion)

	require.NoError(t, f.ctrl.Next(ctx))
	assert.Equal(t, app.PhaseAwaitingSelection, f.phase())
}

func TestSubmitFailureAllowsRetry(t *testing.T) {
	f := newFixture(t, nil)
	f.srv.Enqueue(apitest.SampleQuestion("q1", 20, 1))
	f.srv.FailAnswers(1)
	ctx := context.Background()

	require.NoError(t, f.ctrl.Start(ctx))
	assert.ErrorIs(t, f.ctrl.Retry(ctx), domain.ErrNothingToRetry)
	require.NoError(t, f.ctrl.Select(1))
	require.Error(t, f.ctrl.Submit(ctx))

	v := f.ctrl.Snapshot()
	assert.Equal(t, app.PhaseAwaitingSelection, v.Phase)
	assert.True(t, v.CanRetry)
	assert.True(t, v.CanAdvance)
	assert.Equal(t, domain.Stats{}, v.Stats)
	assert.Equal(t, "Unable to submit the answer right now. Please try again shortly.", v.Feedback.Message)

	require.NoError(t, f.ctrl.Retry(ctx))
	v = f.ctrl.Snapshot()
	assert.Equal(t, app.PhaseResolved, v.Phase)
	assert.Equal(t, domain.Stats{Correct: 1, Attempts: 1, Streak: 1}, v.Stats)

	answers := f.srv.Answers()
	require.Len(t, answers, 2)
	assert.Equal(t, answers[0].Answer, answers[1].Answer)
}

func TestFailedSubmitAllowsNewChoice(t *testing.T) {
	f := newFixture(t, nil)
	f.srv.Enqueue(apitest.SampleQuestion("q1", 20, 2))
	f.srv.FailAnswers(1)
	ctx := context.Background()

	require.NoError(t, f.ctrl.Start(ctx))
	require.NoError(t, f.ctrl.Select(0))
	require.Error(t, f.ctrl.Submit(ctx))

	v := f.ctrl.Snapshot()
	assert.True(t, v.CanRetry)
	assert.True(t, v.CanSubmit)

	require.NoError(t, f.ctrl.Select(2))
	require.NoError(t, f.ctrl.Submit(ctx))
	assert.Equal(t, app.PhaseResolved, f.phase())

	answers := f.srv.Answers()
	require.Len(t, answers, 2)
	assert.Equal(t, "Audi", answers[0].Answer.Label)
	assert.Equal(t, "BMW", answers[1].Answer.Label)
	assert.Equal(t, domain.Stats{Correct: 1, Attempts: 1, Streak: 1}, f.ctrl.Snapshot().Stats)
}

func TestFailedTimeoutRetriesAsTimeout(t *testing.T) {
	f := newFixture(t, nil, app.WithTick(2*time.Millisecond))
	f.srv.Enqueue(apitest.SampleQuestion("q1", 10, 1))
	f.srv.FailAnswers(1)
	ctx := context.Background()

	require.NoError(t, f.ctrl.Start(ctx))
	require.Eventually(t, func() bool { return f.ctrl.Snapshot().CanRetry }, waitFor, time.Millisecond)
	assert.False(t, f.ctrl.Snapshot().CanSubmit, "a timed out question only retries")
	assert.ErrorIs(t, f.ctrl.Select(0), domain.ErrAlreadyAnswered)

	require.NoError(t, f.ctrl.Submit(ctx))
	answers := f.srv.Answers()
	require.Len(t, answers, 2)
	assert.True(t, answers[1].Timeout)
	assert.Equal(t, domain.Stats{Attempts: 1}, f.ctrl.Snapshot().Stats)
}

func TestLeaderboardFailureIsSwallowed(t *testing.T) {
	f := newFixture(t, nil)
	f.srv.Enqueue(apitest.SampleQuestion("q1", 20, 0))
	f.srv.FailLeaderboard(true)
	ctx := context.Background()

	require.NoError(t, f.ctrl.SetPlayer(ctx, "Dana"))
	require.NoError(t, f.ctrl.Start(ctx))
	require.NoError(t, f.ctrl.Select(0))
	require.NoError(t, f.ctrl.Submit(ctx))

	assert.Eventually(t, func() bool { return f.srv.LeaderboardCalls() >= 2 }, waitFor, 5*time.Millisecond)
	assert.Equal(t, app.PhaseResolved, f.phase())
	assert.Error(t, f.ctrl.RefreshLeaderboard(ctx))
}

func TestUpdateSettingsReloadsOnDifficultyOrTimer(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	require.NoError(t, f.ctrl.Start(ctx))
	first := f.ctrl.Snapshot().Question.ID

	settings := f.ctrl.Snapshot().Settings
	settings.Font = "mono"
	require.NoError(t, f.ctrl.UpdateSettings(ctx, settings))
	assert.Equal(t, first, f.ctrl.Snapshot().Question.ID, "font change keeps the question")

	settings.Difficulty = domain.DifficultyMake
	settings.Timer = 5
	require.NoError(t, f.ctrl.UpdateSettings(ctx, settings))

	v := f.ctrl.Snapshot()
	assert.NotEqual(t, first, v.Question.ID)
	assert.Equal(t, domain.DifficultyMake, v.Question.Difficulty)
	assert.Equal(t, domain.MinTimer, v.Settings.Timer)
	assert.Equal(t, "10", f.srv.LastTimer())

	stored, err := f.prefs.LoadSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, v.Settings, stored)

	require.NoError(t, f.ctrl.ToggleTheme(ctx))
	stored, _ = f.prefs.LoadSettings(ctx)
	assert.Equal(t, domain.ThemeLight, stored.Theme)
}

// heldFetch blocks question requests until gate is closed.
type heldFetch struct {
	app.QuizAPI
	once    sync.Once
	entered chan struct{}
	gate    chan struct{}
}

func (h *heldFetch) FetchQuestion(ctx context.Context, d domain.Difficulty, timer int) (domain.Question, error) {
	h.once.Do(func() { close(h.entered) })
	<-h.gate
	return h.QuizAPI.FetchQuestion(ctx, d, timer)
}

func TestUpdateSettingsRejectedWhileLoading(t *testing.T) {
	held := &heldFetch{entered: make(chan struct{}), gate: make(chan struct{})}
	f := newFixture(t, func(q app.QuizAPI) app.QuizAPI {
		held.QuizAPI = q
		return held
	})
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- f.ctrl.Start(ctx) }()
	<-held.entered
	require.Equal(t, app.PhaseLoading, f.phase())

	err := f.ctrl.UpdateSettings(ctx, domain.Settings{Difficulty: domain.DifficultyMake, Timer: 30})
	assert.ErrorIs(t, err, domain.ErrBusy)
	assert.Equal(t, domain.DefaultSettings(), f.ctrl.Snapshot().Settings)
	stored, err := f.prefs.LoadSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultSettings(), stored)

	close(held.gate)
	require.NoError(t, <-done)

	v := f.ctrl.Snapshot()
	assert.Equal(t, domain.DifficultyMakeModelYear, v.Settings.Difficulty)
	assert.Equal(t, v.Settings.Difficulty, v.Question.Difficulty)
}

func TestUpdateSettingsRejectedWhileSubmitting(t *testing.T) {
	f := newFixture(t, nil)
	f.srv.Enqueue(apitest.SampleQuestion("q1", 20, 1))
	ctx := context.Background()

	require.NoError(t, f.ctrl.Start(ctx))
	require.NoError(t, f.ctrl.Select(1))

	release := f.srv.HoldAnswers()
	done := make(chan error, 1)
	go func() { done <- f.ctrl.Submit(ctx) }()
	require.Eventually(t, func() bool { return f.phase() == app.PhaseSubmitting }, waitFor, time.Millisecond)

	err := f.ctrl.UpdateSettings(ctx, domain.Settings{Difficulty: domain.DifficultyMakeModel})
	assert.ErrorIs(t, err, domain.ErrBusy)
	stored, err := f.prefs.LoadSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultSettings(), stored)

	release()
	require.NoError(t, <-done)
	v := f.ctrl.Snapshot()
	assert.Equal(t, app.PhaseResolved, v.Phase)
	assert.Equal(t, domain.DefaultSettings(), v.Settings)
	assert.Equal(t, 1, f.srv.QuestionCalls(), "no reload after the answer")
}

func TestInvalidQuestionIsRejected(t *testing.T) {
	f := newFixture(t, nil)
	duplicated := apitest.SampleQuestion("dup", 20, 0)
	duplicated.Options[1].Label = duplicated.Options[0].Label
	missing := apitest.SampleQuestion("missing", 20, 0)
	missing.Correct = domain.Option{Make: "Tesla", Label: "Tesla"}
	f.srv.Enqueue(duplicated, missing)
	ctx := context.Background()

	assert.ErrorIs(t, f.ctrl.Start(ctx), domain.ErrInvalidQuestion)
	v := f.ctrl.Snapshot()
	assert.Equal(t, app.PhaseIdle, v.Phase)
	assert.Nil(t, v.Question)
	assert.Equal(t, "Unable to load a question. Refresh and try again.", v.Feedback.Message)

	assert.ErrorIs(t, f.ctrl.Next(ctx), domain.ErrInvalidQuestion)
	assert.Equal(t, app.PhaseIdle, f.phase())
	assert.ErrorIs(t, f.ctrl.Select(0), domain.ErrNoQuestion)

	require.NoError(t, f.ctrl.Next(ctx))
	assert.Equal(t, app.PhaseAwaitingSelection, f.phase())
}

func TestStartUsesPersistedPreferences(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	require.NoError(t, f.prefs.SaveSettings(ctx, domain.Settings{Difficulty: domain.DifficultyMakeModel, Theme: domain.ThemeLight, Font: "noto", Timer: 42}))
	require.NoError(t, f.prefs.SavePlayer(ctx, "Eve"))

	require.NoError(t, f.ctrl.Start(ctx))
	v := f.ctrl.Snapshot()
	assert.Equal(t, "Eve", v.Player)
	assert.Equal(t, domain.DifficultyMakeModel, v.Question.Difficulty)
	assert.Equal(t, 42, v.Remaining)
	assert.Equal(t, "42", f.srv.LastTimer())
}

func TestResolvedAttemptIsRecorded(t *testing.T) {
	at := time.Date(2024, 11, 22, 9, 30, 0, 0, time.UTC)
	f := newFixture(t, nil, app.WithClock(func() time.Time { return at }), app.WithSessionID("s-1"))
	f.srv.Enqueue(apitest.SampleQuestion("q1", 20, 1))
	ctx := context.Background()

	require.NoError(t, f.ctrl.Start(ctx))
	require.NoError(t, f.ctrl.Select(0))
	require.NoError(t, f.ctrl.Submit(ctx))

	recent, err := f.history.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	a := recent[0]
	assert.Equal(t, "s-1", a.SessionID)
	assert.Equal(t, "q1", a.QuestionID)
	assert.Equal(t, "Audi", a.Answer)
	assert.Equal(t, "Toyota", a.CorrectAnswer)
	assert.False(t, a.Correct)
	assert.True(t, a.AnsweredAt.Equal(at))
	assert.NotEmpty(t, a.ID)
}

func TestNextAbandonsQuestionAndCountdown(t *testing.T) {
	f := newFixture(t, nil, app.WithTick(5*time.Millisecond))
	f.srv.Enqueue(apitest.SampleQuestion("q1", 10, 0), apitest.SampleQuestion("q2", 60, 0))
	ctx := context.Background()

	require.NoError(t, f.ctrl.Start(ctx))
	require.NoError(t, f.ctrl.Next(ctx))
	assert.Equal(t, "q2", f.ctrl.Snapshot().Question.ID)

	// the first countdown would have expired after 50ms
	time.Sleep(120 * time.Millisecond)
	assert.Empty(t, f.srv.Answers())
	assert.Equal(t, app.PhaseAwaitingSelection, f.phase())
}

func TestCloseStopsCountdown(t *testing.T) {
	f := newFixture(t, nil, app.WithTick(2*time.Millisecond))
	f.srv.Enqueue(apitest.SampleQuestion("q1", 10, 0))

	require.NoError(t, f.ctrl.Start(context.Background()))
	f.ctrl.Close()
	time.Sleep(60 * time.Millisecond)

	assert.Empty(t, f.srv.Answers())
	assert.ErrorIs(t, f.ctrl.Next(context.Background()), domain.ErrClosed)
}

func TestSubscribeStreamsViews(t *testing.T) {
	f := newFixture(t, nil)
	f.srv.Enqueue(apitest.SampleQuestion("q1", 20, 0))

	views, cancel := f.ctrl.Subscribe()
	defer cancel()
	first := <-views
	assert.Equal(t, app.PhaseIdle, first.Phase)
	assert.Empty(t, first.Options)

	require.NoError(t, f.ctrl.Next(context.Background()))

	deadline := time.After(waitFor)
	for {
		select {
		case v := <-views:
			if v.Phase == app.PhaseAwaitingSelection {
				assert.Len(t, v.Options, 4)
				assert.Equal(t, "q1", v.Question.ID)
				return
			}
		case <-deadline:
			t.Fatal("no awaiting-selection view received")
		}
	}
}

func TestOptionIndexForKey(t *testing.T) {
	cases := map[string]int{"1": 0, "5": 4, "9": 8, "0": 9}
	for key, want := range cases {
		got, ok := app.OptionIndexForKey(key)
		assert.True(t, ok, key)
		assert.Equal(t, want, got, key)
	}
	_, ok := app.OptionIndexForKey("x")
	assert.False(t, ok)
	_, ok = app.OptionIndexForKey("12")
	assert.False(t, ok)
}

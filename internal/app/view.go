package app

import "car-picker/internal/domain"

// Phase is the state of the active question.
type Phase string

const (
	PhaseIdle              Phase = "idle"
	PhaseLoading           Phase = "loading"
	PhaseAwaitingSelection Phase = "awaiting_selection"
	PhaseSubmitting        Phase = "submitting"
	PhaseResolved          Phase = "resolved"
)

// Tone classifies feedback for styling.
type Tone string

const (
	ToneNone    Tone = ""
	ToneCorrect Tone = "correct"
	ToneWrong   Tone = "wrong"
	ToneTimeout Tone = "timeout"
)

const (
	msgLoading     = "Fetching a new question..."
	msgReady       = "Select the best answer and press submit."
	msgSelect      = "Choose one of the options before submitting."
	msgTimeout     = "Time is up. This question counts as incorrect."
	msgLoadError   = "Unable to load a question. Refresh and try again."
	msgSubmitError = "Unable to submit the answer right now. Please try again shortly."
	msgCorrect     = "Correct! Nice work."
	msgWrong       = "Incorrect. Study the details and try the next one."
	msgPlayerSaved = "Nickname saved."
)

// Feedback is the transient message shown to the user.
type Feedback struct {
	Message string `json:"message"`
	Tone    Tone   `json:"tone"`
}

// QuestionView is the part of a question safe to show before it is resolved.
type QuestionView struct {
	ID         string            `json:"id"`
	Difficulty domain.Difficulty `json:"difficulty"`
	Prompt     string            `json:"prompt"`
	ImageURL   string            `json:"imageUrl"`
}

// OptionView is one rendered option.
type OptionView struct {
	Index    int    `json:"index"`
	Label    string `json:"label"`
	Selected bool   `json:"selected"`
	Correct  bool   `json:"correct"`
	Wrong    bool   `json:"wrong"`
	Disabled bool   `json:"disabled"`
}

// View is an immutable snapshot of the session for rendering.
type View struct {
	SessionID   string                    `json:"sessionId"`
	Phase       Phase                     `json:"phase"`
	Question    *QuestionView             `json:"question,omitempty"`
	Options     []OptionView              `json:"options"`
	Remaining   int                       `json:"remaining"`
	Feedback    Feedback                  `json:"feedback"`
	Stats       domain.Stats              `json:"stats"`
	Accuracy    int                       `json:"accuracy"`
	Score       *domain.ServerScore       `json:"score,omitempty"`
	Leaderboard []domain.LeaderboardEntry `json:"leaderboard"`
	Settings    domain.Settings           `json:"settings"`
	Player      string                    `json:"player"`
	CanSubmit   bool                      `json:"canSubmit"`
	CanRetry    bool                      `json:"canRetry"`
	CanAdvance  bool                      `json:"canAdvance"`
}

// OptionIndexForKey maps the digit keys 1..9 and 0 onto option indexes 0..9.
func OptionIndexForKey(key string) (int, bool) {
	if len(key) != 1 || key[0] < '0' || key[0] > '9' {
		return 0, false
	}
	if key[0] == '0' {
		return 9, true
	}
	return int(key[0]-'1'), true
}

func (c *Controller) snapshotLocked() View {
	v := View{
		SessionID:   c.id,
		Phase:       c.phase,
		Remaining:   c.remaining,
		Feedback:    c.feedback,
		Stats:       c.stats,
		Accuracy:    c.stats.Accuracy(),
		Leaderboard: append([]domain.LeaderboardEntry(nil), c.leaderboard...),
		Settings:    c.settings,
		Player:      c.player,
		CanSubmit:   c.phase == PhaseAwaitingSelection && !c.timedOut,
		CanRetry:    c.phase == PhaseAwaitingSelection && c.pending != nil,
		CanAdvance:  c.phase != PhaseLoading && c.phase != PhaseSubmitting,
	}
	if c.score != nil {
		score := *c.score
		v.Score = &score
	}
	if c.question == nil {
		v.Options = []OptionView{}
		return v
	}

	q := c.question
	prompt := q.Difficulty.Prompt()
	v.Question = &QuestionView{ID: q.ID, Difficulty: q.Difficulty, Prompt: prompt, ImageURL: q.ImageURL}
	v.Options = make([]OptionView, len(q.Options))
	locked := c.phase != PhaseAwaitingSelection || c.timedOut
	for i, opt := range q.Options {
		ov := OptionView{Index: i, Label: opt.Label, Selected: i == c.selected, Disabled: locked}
		if c.result != nil {
			ov.Correct = opt.Label == c.result.correctLabel
			ov.Wrong = i == c.selected && !ov.Correct
		}
		v.Options[i] = ov
	}
	return v
}

// Snapshot returns the current view.
func (c *Controller) Snapshot() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Subscribe returns a channel of views, starting with the current one.
// Slow readers only miss intermediate views. The cancel func must be called.
func (c *Controller) Subscribe() (<-chan View, func()) {
	ch := make(chan View, 8)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	c.subscribers[ch] = struct{}{}
	ch <- c.snapshotLocked()
	c.mu.Unlock()

	cancel := func() {
		c.mu.Lock()
		if _, ok := c.subscribers[ch]; ok {
			delete(c.subscribers, ch)
			close(ch)
		}
		c.mu.Unlock()
	}
	return ch, cancel
}

func (c *Controller) publishLocked() {
	if len(c.subscribers) == 0 {
		return
	}
	v := c.snapshotLocked()
	for ch := range c.subscribers {
		select {
		case ch <- v:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- v
		}
	}
}

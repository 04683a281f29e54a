package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"car-picker/internal/app"
	"car-picker/internal/domain"
)

// textRenderer prints views to a terminal. Countdown ticks only print a
// short line; other changes redraw the question block.
type textRenderer struct {
	mu       sync.Mutex
	out      io.Writer
	imageURL func(string) string
	last     *app.View
}

func newTextRenderer(out io.Writer, imageURL func(string) string) *textRenderer {
	return &textRenderer{out: out, imageURL: imageURL}
}

func (r *textRenderer) Render(v app.View) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.last
	r.last = &v

	if prev != nil && onlyTicked(*prev, v) {
		if v.Remaining > 0 && (v.Remaining <= 5 || v.Remaining%10 == 0) {
			fmt.Fprintf(r.out, "  %ds left\n", v.Remaining)
		}
		return
	}
	// leaderboard updates are printed on request only
	if prev != nil && prev.Remaining == v.Remaining && sameShape(*prev, v) {
		return
	}
	r.printView(v)
}

func (r *textRenderer) printView(v app.View) {
	var b strings.Builder
	if v.Question != nil && (v.Phase == app.PhaseAwaitingSelection || v.Phase == app.PhaseResolved) {
		fmt.Fprintf(&b, "\n%s\n", v.Question.Prompt)
		if v.Question.ImageURL != "" {
			fmt.Fprintf(&b, "  image: %s\n", r.imageURL(v.Question.ImageURL))
		}
		for _, opt := range v.Options {
			fmt.Fprintf(&b, "  %s %d) %s\n", optionMarker(opt), opt.Index+1, opt.Label)
		}
		if v.Phase == app.PhaseAwaitingSelection && !v.CanRetry {
			fmt.Fprintf(&b, "  %ds left\n", v.Remaining)
		}
	}
	if v.Feedback.Message != "" {
		fmt.Fprintf(&b, "%s %s\n", toneMarker(v.Feedback.Tone), v.Feedback.Message)
	}
	if v.Phase == app.PhaseResolved {
		fmt.Fprintf(&b, "Score: %s\n", statsLine(v))
	}
	io.WriteString(r.out, b.String())
}

func (r *textRenderer) printLeaderboard(entries []domain.LeaderboardEntry) {
	io.WriteString(r.out, formatLeaderboard(entries))
}

// PrintLeaderboard prints entries outside the view stream.
func (r *textRenderer) PrintLeaderboard(entries []domain.LeaderboardEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.printLeaderboard(entries)
}

// Printf writes a line without interleaving with a redraw.
func (r *textRenderer) Printf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, format, args...)
}

func formatLeaderboard(entries []domain.LeaderboardEntry) string {
	var b strings.Builder
	b.WriteString("Leaderboard\n")
	if len(entries) == 0 {
		b.WriteString("  no scores yet\n")
		return b.String()
	}
	for i, e := range entries {
		fmt.Fprintf(&b, "  %2d. %-16s %5d pts  %3d%%\n", i+1, e.Player, e.Points, e.AccuracyPercent())
	}
	return b.String()
}

func statsLine(v app.View) string {
	line := fmt.Sprintf("%d/%d correct, accuracy %d%%, streak %d",
		v.Stats.Correct, v.Stats.Attempts, v.Accuracy, v.Stats.Streak)
	if v.Score != nil {
		line += fmt.Sprintf(" | server: %d pts, %d%%", v.Score.Points, v.Score.AccuracyPercent())
	}
	return line
}

func optionMarker(opt app.OptionView) string {
	switch {
	case opt.Correct:
		return "[+]"
	case opt.Wrong:
		return "[x]"
	case opt.Selected:
		return "[*]"
	default:
		return "[ ]"
	}
}

func toneMarker(t app.Tone) string {
	switch t {
	case app.ToneCorrect:
		return "+"
	case app.ToneWrong:
		return "x"
	case app.ToneTimeout:
		return "!"
	default:
		return "-"
	}
}

// onlyTicked reports whether the countdown is the only change.
func onlyTicked(prev, next app.View) bool {
	return prev.Remaining != next.Remaining && sameShape(prev, next)
}

func sameShape(prev, next app.View) bool {
	if prev.Phase != next.Phase || prev.Feedback != next.Feedback || prev.Settings != next.Settings ||
		prev.Player != next.Player || prev.Stats != next.Stats || len(prev.Options) != len(next.Options) {
		return false
	}
	if (prev.Question == nil) != (next.Question == nil) {
		return false
	}
	if prev.Question != nil && prev.Question.ID != next.Question.ID {
		return false
	}
	for i := range prev.Options {
		if prev.Options[i] != next.Options[i] {
			return false
		}
	}
	return true
}

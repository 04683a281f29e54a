package cli

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"car-picker/internal/app"
	"car-picker/internal/transport/api/apitest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func globalArgs(t *testing.T, apiURL, stateDir string) []string {
	return []string{
		"--config", filepath.Join(t.TempDir(), "missing.yaml"),
		"--api", apiURL,
		"--state-dir", stateDir,
		"--log-level", "error",
	}
}

func TestPlaySessionPersistsPlayerAndScores(t *testing.T) {
	quiz := apitest.NewServer()
	defer quiz.Close()
	quiz.Enqueue(apitest.SampleQuestion("q1", 20, 1))
	state := t.TempDir()
	args := globalArgs(t, quiz.URL, state)

	out, err := execute(t, "name alice\n2\n\nl\nq\n", append(args, "play")...)
	require.NoError(t, err)
	assert.Contains(t, out, "Toyota")
	assert.Contains(t, out, "Correct! Nice work.")
	assert.Contains(t, out, "alice")
	assert.Contains(t, out, "Session: 1/1 correct, accuracy 100%, streak 1")

	out, err = execute(t, "", append(args, "player")...)
	require.NoError(t, err)
	assert.Equal(t, "alice\n", out)

	out, err = execute(t, "", append(args, "leaderboard")...)
	require.NoError(t, err)
	assert.Contains(t, out, "alice")
	assert.Contains(t, out, "10 pts")

	out, err = execute(t, "", append(args, "leaderboard", "reset")...)
	require.NoError(t, err)
	assert.Equal(t, "cleared 1 players\n", out)
}

func TestPlayReportsUnknownCommand(t *testing.T) {
	quiz := apitest.NewServer()
	defer quiz.Close()
	args := globalArgs(t, quiz.URL, t.TempDir())

	out, err := execute(t, "x\n\nq\n", append(args, "play")...)
	require.NoError(t, err)
	assert.Contains(t, out, `! unknown command "x"`)
	assert.Contains(t, out, "Choose one of the options before submitting.")
	assert.Contains(t, out, "Session: 0/0 correct")
}

func TestSettingsSetClampsAndPersists(t *testing.T) {
	quiz := apitest.NewServer()
	defer quiz.Close()
	args := globalArgs(t, quiz.URL, t.TempDir())

	out, err := execute(t, "", append(args, "settings", "set", "--timer", "90", "--difficulty", "make", "--theme", "light")...)
	require.NoError(t, err)
	assert.Contains(t, out, "timer: 60")

	out, err = execute(t, "", append(args, "settings", "show")...)
	require.NoError(t, err)
	assert.Contains(t, out, "difficulty: make\n")
	assert.Contains(t, out, "theme: light")
	assert.Contains(t, out, "timer: 60")

	_, err = execute(t, "", append(args, "settings", "set", "--difficulty", "colour")...)
	require.Error(t, err)
}

func TestEphemeralHistoryIsEmpty(t *testing.T) {
	quiz := apitest.NewServer()
	defer quiz.Close()
	args := append(globalArgs(t, quiz.URL, t.TempDir()), "--ephemeral")

	out, err := execute(t, "", append(args, "history")...)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out, "\n"))
	assert.Contains(t, out, "CORRECT ANSWER")

	help, err := execute(t, "", "history", "--help")
	require.NoError(t, err)
	assert.Contains(t, help, "needs state.history set to redis or postgres")
}

func TestRendererPrintsTicksSparingly(t *testing.T) {
	var out bytes.Buffer
	r := newTextRenderer(&out, func(s string) string { return "http://quiz" + s })

	base := app.View{
		Phase:     app.PhaseAwaitingSelection,
		Question:  &app.QuestionView{ID: "q1", Prompt: "Pick the correct manufacturer for this car.", ImageURL: "/a.jpg"},
		Options:   []app.OptionView{{Index: 0, Label: "Audi"}, {Index: 1, Label: "Kia"}},
		Remaining: 20,
	}
	r.Render(base)
	assert.Contains(t, out.String(), "image: http://quiz/a.jpg")
	assert.Contains(t, out.String(), "[ ] 2) Kia")

	out.Reset()
	for _, rem := range []int{19, 18, 10, 4} {
		v := base
		v.Remaining = rem
		r.Render(v)
	}
	assert.Equal(t, "  10s left\n  4s left\n", out.String())

	out.Reset()
	v := base
	v.Remaining = 4
	v.Options = []app.OptionView{{Index: 0, Label: "Audi"}, {Index: 1, Label: "Kia", Selected: true}}
	r.Render(v)
	assert.Contains(t, out.String(), "[*] 2) Kia")
}

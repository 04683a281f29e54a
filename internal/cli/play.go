package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"car-picker/internal/app"
	"car-picker/internal/domain"
	"github.com/spf13/cobra"
)

const playHelp = `keys: 1-9/0 select, enter or s submit, n next, r retry, l leaderboard,
      t theme, name <player> set nickname, q quit`

func newPlayCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "play",
		Short: "Play the quiz in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newAPIClient(rt.cfg)
			if err != nil {
				return err
			}
			b, err := openBackends(cmd.Context(), rt.cfg)
			if err != nil {
				return err
			}
			defer b.Close()

			session := rt.newSession(client, b)
			defer session.Close()
			renderer := newTextRenderer(cmd.OutOrStdout(), client.ResolveImageURL)
			return runPlay(cmd.Context(), session, renderer, cmd.InOrStdin())
		},
	}
}

// runPlay drives one session from line-oriented input until quit or EOF.
func runPlay(ctx context.Context, session *app.Controller, renderer *textRenderer, in io.Reader) error {
	if ctx == nil {
		ctx = context.Background()
	}
	views, cancel := session.Subscribe()
	rendered := make(chan struct{})
	go func() {
		defer close(rendered)
		for v := range views {
			renderer.Render(v)
		}
	}()

	renderer.Printf("%s\n", playHelp)
	if err := session.Start(ctx); err != nil {
		reportError(renderer, err)
	}

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		quit, err := handleLine(ctx, session, renderer, strings.TrimSpace(scanner.Text()))
		if err != nil {
			reportError(renderer, err)
		}
		if quit {
			break
		}
	}

	cancel()
	<-rendered
	renderer.Printf("Session: %s\n", statsLine(session.Snapshot()))
	return scanner.Err()
}

func handleLine(ctx context.Context, session *app.Controller, renderer *textRenderer, line string) (bool, error) {
	if idx, ok := app.OptionIndexForKey(line); ok {
		return false, session.Select(idx)
	}
	switch {
	case line == "" || line == "s":
		return false, session.Submit(ctx)
	case line == "n":
		return false, session.Next(ctx)
	case line == "r":
		return false, session.Retry(ctx)
	case line == "l":
		err := session.RefreshLeaderboard(ctx)
		renderer.PrintLeaderboard(session.Snapshot().Leaderboard)
		return false, err
	case line == "t":
		return false, session.ToggleTheme(ctx)
	case strings.HasPrefix(line, "name "):
		return false, session.SetPlayer(ctx, strings.TrimPrefix(line, "name "))
	case line == "q" || line == "quit":
		return true, nil
	default:
		return false, fmt.Errorf("unknown command %q", line)
	}
}

// reportError prints an error unless the view already explains it.
func reportError(renderer *textRenderer, err error) {
	switch {
	case errors.Is(err, domain.ErrNoSelection):
		return
	case errors.Is(err, context.Canceled):
		return
	}
	renderer.Printf("! %v\n", err)
}

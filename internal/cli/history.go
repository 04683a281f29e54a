package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newHistoryCmd(rt *runtime) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent answers (needs the redis or postgres history backend)",
		Long: `List recent answers recorded by play and serve sessions.

The default memory backend keeps answers for one process only, so this
command needs state.history set to redis or postgres to show past sessions.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if rt.cfg.State.History == "memory" || rt.cfg.State.History == "" {
				rt.log.Warn().Msg("history backend is memory; set state.history to redis or postgres to keep answers")
			}
			b, err := openBackends(cmd.Context(), rt.cfg)
			if err != nil {
				return err
			}
			defer b.Close()

			attempts, err := b.history.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "WHEN\tDIFFICULTY\tANSWER\tCORRECT ANSWER\tRESULT")
			for _, a := range attempts {
				result := "wrong"
				switch {
				case a.TimedOut:
					result = "timeout"
				case a.Correct:
					result = "correct"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					a.AnsweredAt.Local().Format(time.DateTime), a.Difficulty, a.Answer, a.CorrectAnswer, result)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of attempts to show")
	return cmd
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newLeaderboardCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Print the server leaderboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newAPIClient(rt.cfg)
			if err != nil {
				return err
			}
			lb, err := client.Leaderboard(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatLeaderboard(lb.Entries))
			return nil
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Clear every score on the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newAPIClient(rt.cfg)
			if err != nil {
				return err
			}
			cleared, err := client.ResetLeaderboard(cmd.Context())
			if err != nil {
				return err
			}
			rt.log.Info().Int("cleared", cleared).Msg("leaderboard reset")
			fmt.Fprintf(cmd.OutOrStdout(), "cleared %d players\n", cleared)
			return nil
		},
	})
	return cmd
}

package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newPlayerCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "player [name]",
		Short: "Show or set the nickname sent with answers",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := openBackends(cmd.Context(), rt.cfg)
			if err != nil {
				return err
			}
			defer b.Close()

			out := cmd.OutOrStdout()
			if len(args) == 0 {
				name, err := b.prefs.LoadPlayer(cmd.Context())
				if err != nil {
					return err
				}
				if name == "" {
					name = "(anonymous)"
				}
				fmt.Fprintln(out, name)
				return nil
			}
			name := strings.TrimSpace(args[0])
			if err := b.prefs.SavePlayer(cmd.Context(), name); err != nil {
				return err
			}
			fmt.Fprintf(out, "nickname saved: %s\n", name)
			return nil
		},
	}
}

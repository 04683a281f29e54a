package cli

import (
	"car-picker/internal/infra/postgres"
	"github.com/spf13/cobra"
)

// newMigrateCmd applies the answer history migrations.
func newMigrateCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations for the postgres history backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			applied, err := postgres.Migrate(cmd.Context(), rt.cfg.Postgres.URL)
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				rt.log.Info().Msg("database already up to date")
				return nil
			}
			rt.log.Info().Strs("migrations", applied).Msg("migrations applied")
			return nil
		},
	}
}

package cli

import (
	"fmt"
	"strconv"

	"car-picker/internal/domain"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newSettingsCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change saved quiz settings",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the saved settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := openBackends(cmd.Context(), rt.cfg)
			if err != nil {
				return err
			}
			defer b.Close()
			settings, err := b.prefs.LoadSettings(cmd.Context())
			if err != nil {
				rt.log.Warn().Err(err).Msg("load settings failed, showing defaults")
			}
			out, err := yaml.Marshal(settings.Normalize())
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	})

	var (
		difficulty string
		theme      string
		font       string
		timer      string
	)
	set := &cobra.Command{
		Use:   "set",
		Short: "Change saved settings; unset flags keep their value",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := openBackends(cmd.Context(), rt.cfg)
			if err != nil {
				return err
			}
			defer b.Close()
			settings, err := b.prefs.LoadSettings(cmd.Context())
			if err != nil {
				rt.log.Warn().Err(err).Msg("load settings failed, starting from defaults")
				settings = domain.DefaultSettings()
			}
			if difficulty != "" {
				d, err := domain.ParseDifficulty(difficulty)
				if err != nil {
					return fmt.Errorf("difficulty %q: %w", difficulty, err)
				}
				settings.Difficulty = d
			}
			if theme != "" {
				if theme != domain.ThemeDark && theme != domain.ThemeLight {
					return fmt.Errorf("theme must be %s or %s", domain.ThemeDark, domain.ThemeLight)
				}
				settings.Theme = theme
			}
			if font != "" {
				settings.Font = font
			}
			if timer != "" {
				v, err := strconv.ParseFloat(timer, 64)
				if err != nil {
					return fmt.Errorf("timer %q: %w", timer, err)
				}
				settings.Timer = domain.ClampTimer(v)
			}
			settings = settings.Normalize()
			if err := b.prefs.SaveSettings(cmd.Context(), settings); err != nil {
				return err
			}
			out, err := yaml.Marshal(settings)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
	set.Flags().StringVar(&difficulty, "difficulty", "", "make, make_model or make_model_year")
	set.Flags().StringVar(&theme, "theme", "", "dark or light")
	set.Flags().StringVar(&font, "font", "", "display font name")
	set.Flags().StringVar(&timer, "timer", "", "seconds per question, clamped to 10-60")
	cmd.AddCommand(set)
	return cmd
}

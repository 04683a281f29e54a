package cli

import (
	"io"
	"os"
	"time"

	"car-picker/internal/config"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// runtime is the resolved configuration shared by every subcommand.
type runtime struct {
	configPath string
	apiURL     string
	stateDir   string
	logLevel   string
	ephemeral  bool

	cfg config.Config
	log zerolog.Logger
}

// Execute runs the CLI.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	envConfig := os.Getenv(config.EnvPrefix + "CONFIG")
	if envConfig == "" {
		envConfig = "config/config.yaml"
	}

	rt := &runtime{}
	cmd := &cobra.Command{
		Use:          "car-picker",
		Short:        "Car identification quiz client",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return rt.load(cmd.ErrOrStderr())
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&rt.configPath, "config", envConfig, "path to YAML config")
	flags.StringVar(&rt.apiURL, "api", "", "quiz server base URL (overrides config)")
	flags.StringVar(&rt.stateDir, "state-dir", "", "directory for saved settings (overrides config)")
	flags.StringVar(&rt.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.BoolVar(&rt.ephemeral, "ephemeral", false, "keep settings and history in memory only")

	cmd.AddCommand(newPlayCmd(rt))
	cmd.AddCommand(newServeCmd(rt))
	cmd.AddCommand(newLeaderboardCmd(rt))
	cmd.AddCommand(newSettingsCmd(rt))
	cmd.AddCommand(newPlayerCmd(rt))
	cmd.AddCommand(newHistoryCmd(rt))
	cmd.AddCommand(newMigrateCmd(rt))
	return cmd
}

func (rt *runtime) load(logOut io.Writer) error {
	if err := config.LoadDotEnv(".env"); err != nil {
		return err
	}
	cfg, err := config.Load(rt.configPath)
	if err != nil {
		return err
	}
	if rt.apiURL != "" {
		cfg.API.URL = rt.apiURL
	}
	if rt.stateDir != "" {
		cfg.State.Dir = rt.stateDir
	}
	if rt.logLevel != "" {
		cfg.Log.Level = rt.logLevel
	}
	if rt.ephemeral {
		cfg.State.Backend = "memory"
		cfg.State.History = "memory"
	}
	rt.cfg = cfg
	rt.log = newLogger(cfg, logOut)
	return nil
}

func newLogger(cfg config.Config, out io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil || cfg.Log.Level == "" {
		level = zerolog.InfoLevel
	}
	if cfg.Log.Console {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

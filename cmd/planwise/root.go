package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/crzyc98/planwise-navigator-sub019/cmd/planwise/internal"
	"github.com/crzyc98/planwise-navigator-sub019/internal/config"
	"github.com/crzyc98/planwise-navigator-sub019/internal/observability"
)

// appConfig and appLogger are resolved once by loadConfig before any
// subcommand runs.
var (
	appConfig *config.Config
	appLogger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "planwise",
	Short: "Planwise Navigator - workforce simulation pipeline",
	Long: `Planwise Navigator drives multi-year workforce simulations: it
initializes the simulation database, runs each plan year through its
foundation, event-generation, and state-accumulation stages, validates
every stage's output, and checkpoints progress so interrupted runs
resume where they left off.`,
	PersistentPreRunE: loadConfig,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

// Execute runs the root command with signal handling
func Execute(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return rootCmd.ExecuteContext(ctx)
}

// loadConfig resolves the home directory and configuration before any
// command runs, and builds the process logger from the logging settings.
func loadConfig(cmd *cobra.Command, args []string) error {
	flags, err := ParseGlobalFlags(cmd)
	if err != nil {
		return err
	}

	homeDir := resolveHomeDir(flags)
	configFile := flags.ConfigFile
	if configFile == "" {
		configFile = config.DefaultConfigPath(homeDir)
	}

	// init creates the config file itself; version and help need none
	if cmd.Name() == "init" || cmd.Name() == "version" || cmd.Name() == "help" {
		return nil
	}

	loader := config.NewConfigLoader(config.NewValidator())
	cfg, err := loader.LoadWithDefaults(configFile)
	if err != nil {
		return internal.WrapError(internal.ExitConfigError, "failed to load configuration", err)
	}

	// Without a config file, anchor the default paths to the chosen home
	if _, statErr := os.Stat(configFile); os.IsNotExist(statErr) && homeDir != cfg.Core.HomeDir {
		rebaseConfig(cfg, homeDir)
	}

	appConfig = cfg
	appLogger = newLogger(cfg, flags)
	return nil
}

// resolveHomeDir picks the home directory from the flag, the environment,
// or the default, in that order.
func resolveHomeDir(flags *GlobalFlags) string {
	if flags.HomeDir != "" {
		return flags.HomeDir
	}
	if env := os.Getenv("PLANWISE_HOME"); env != "" {
		return env
	}
	return config.DefaultHomeDir()
}

// rebaseConfig points the default file locations at a non-default home.
func rebaseConfig(cfg *config.Config, homeDir string) {
	cfg.Core.HomeDir = homeDir
	cfg.Core.DataDir = filepath.Join(homeDir, "data")
	cfg.Database.Path = filepath.Join(homeDir, "data", "simulation.db")
	cfg.Checkpoints.Dir = filepath.Join(homeDir, "data", "checkpoints")
}

// newLogger builds the process logger. Verbose lowers the level to debug,
// quiet raises it to error; both override the configured level.
func newLogger(cfg *config.Config, flags *GlobalFlags) *slog.Logger {
	level := cfg.Logging.Level
	if flags.IsVerbose() {
		level = "debug"
	} else if flags.IsQuiet() {
		level = "error"
	}
	return slog.New(observability.NewHandler(cfg.Logging.Format, os.Stderr, observability.ParseLevel(level)))
}

func init() {
	RegisterGlobalFlags(rootCmd)

	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(checkpointsCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
}

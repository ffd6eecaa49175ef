package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/crzyc98/planwise-navigator-sub019/cmd/planwise/internal"
	"github.com/crzyc98/planwise-navigator-sub019/internal/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the planwise workspace and initialize the database",
	Long: `Create the planwise home directory with its data and checkpoint
directories and a starter config.yaml, then run the self-healing database
initialization: load the seed reference tables and build the foundation
tables via the transformation engine.

Safe to run repeatedly: an initialized database is left untouched.`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config.yaml with defaults")
}

func runInit(cmd *cobra.Command, args []string) error {
	flags, err := ParseGlobalFlags(cmd)
	if err != nil {
		return err
	}
	p := internal.NewPrinter(flags.GetOutputFormat(), cmd.OutOrStdout())

	homeDir := resolveHomeDir(flags)
	cfg := config.DefaultConfig()
	rebaseConfig(cfg, homeDir)

	for _, dir := range []string{homeDir, cfg.Core.DataDir, cfg.Checkpoints.Dir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return internal.WrapError(internal.ExitError, fmt.Sprintf("failed to create %s", dir), err)
		}
	}

	configFile := flags.ConfigFile
	if configFile == "" {
		configFile = config.DefaultConfigPath(homeDir)
	}

	wrote, err := writeStarterConfig(configFile, cfg, initForce)
	if err != nil {
		return err
	}
	if wrote {
		_ = p.Success("Created " + configFile)
	} else {
		p.Line("Config %s already exists (use --force to overwrite)", configFile)
		// Honor whatever the existing file says
		loaded, err := config.NewConfigLoader(config.NewValidator()).Load(configFile)
		if err != nil {
			return internal.WrapError(internal.ExitConfigError, "failed to load existing configuration", err)
		}
		cfg = loaded
	}

	appConfig = cfg
	appLogger = newLogger(cfg, flags)

	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	eng := newEngineRunner(0)
	result, err := newInitializer(db, eng).EnsureInitialized(cmd.Context())
	if err != nil {
		return err
	}

	switch {
	case result.AlreadyInitialized:
		_ = p.Success("Database already initialized")
	default:
		_ = p.Success(fmt.Sprintf("Database initialized in %s (seeds loaded: %t, foundation built: %t)",
			result.Duration.Round(10*time.Millisecond), result.SeedLoaded, result.FoundationBuilt))
	}
	return nil
}

// writeStarterConfig writes the default configuration as YAML unless the
// file already exists. Returns whether a file was written.
func writeStarterConfig(path string, cfg *config.Config, force bool) (bool, error) {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return false, nil
		}
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return false, internal.WrapError(internal.ExitConfigError, "failed to encode starter config", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return false, internal.WrapError(internal.ExitError, "failed to create config directory", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return false, internal.WrapError(internal.ExitError, "failed to write starter config", err)
	}
	return true, nil
}

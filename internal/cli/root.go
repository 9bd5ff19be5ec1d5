// Package cli provides the medcoder command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/PipeOpsHQ/medical-coder-api/config"
)

// BuildInfo is set at build time via ldflags.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

type globalFlags struct {
	configPath string
	envFile    string
	logLevel   string
}

// app carries what every subcommand needs once PersistentPreRunE ran.
type app struct {
	flags     globalFlags
	cfg       *config.Config
	logger    zerolog.Logger
	logCloser io.Closer
}

func newRootCmd(a *app, info BuildInfo) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "medcoder",
		Short: "Run, batch and query medical coding runs",
		Long: `medcoder serves the medical coding run API, drains queued batch cases,
and looks up persisted runs by run or patient id.`,
		Version: formatVersion(info),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd.ErrOrStderr())
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return a.close()
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&a.flags.configPath, "config", "c", "", "path to a YAML or JSON config file")
	cmd.PersistentFlags().StringVar(&a.flags.envFile, "env-file", ".env", "dotenv file loaded before configuration")
	cmd.PersistentFlags().StringVar(&a.flags.logLevel, "log-level", "", "override log.level (debug, info, warn, error)")

	cmd.AddCommand(
		newServeCmd(a),
		newWorkerCmd(a),
		newSubmitCmd(a),
		newHistoryCmd(a),
		newRunsCmd(a),
	)
	return cmd
}

func (a *app) init(stderr io.Writer) error {
	if err := loadEnvFile(a.flags.envFile); err != nil {
		return err
	}
	cfg, err := config.Load(a.flags.configPath)
	if err != nil {
		return err
	}
	if lvl := strings.TrimSpace(a.flags.logLevel); lvl != "" {
		cfg.Log.Level = strings.ToLower(lvl)
	}
	logger, closer, err := newLogger(cfg.Log, stderr)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	a.logCloser = closer
	return nil
}

func (a *app) close() error {
	if a.logCloser == nil {
		return nil
	}
	err := a.logCloser.Close()
	a.logCloser = nil
	return err
}

// loadEnvFile loads path into the environment without overriding variables
// that are already set. A missing file is not an error.
func loadEnvFile(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

func formatVersion(info BuildInfo) string {
	if info.Version == "" {
		info.Version = "dev"
	}
	if info.Commit == "" {
		info.Commit = "none"
	}
	if info.Date == "" {
		info.Date = "unknown"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", info.Version, info.Commit, info.Date)
}

// Execute runs the root command with the provided context and build info.
func Execute(ctx context.Context, info BuildInfo) error {
	a := &app{}
	cmd := newRootCmd(a, info)
	err := cmd.ExecuteContext(ctx)
	_ = a.close()
	return err
}

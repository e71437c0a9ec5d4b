// Package cli implements the memquiz command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/studygarden/memquiz"
	"github.com/studygarden/memquiz/core/config"
	"github.com/studygarden/memquiz/core/model"
	"github.com/studygarden/memquiz/core/session"
	"github.com/studygarden/memquiz/pkg/logging"
)

var (
	configPath string
	logLevel   string
	logFormat  string
	userID     string

	grade      string
	unit       string
	difficulty string
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:           "memquiz",
	Short:         "Quiz client for a spreadsheet-backed question bank",
	Long:          "memquiz loads questions from a quiz backend, records answers and keeps a local session summary. Requests fall back across the configured endpoints.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.InitLogger(logLevel, logFormat, nil)
	},
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: $MEMQUIZ_CONFIG or ~/.memquiz/config.yaml)")
	RootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	RootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "console", "Log format (console, json)")
	RootCmd.PersistentFlags().StringVarP(&userID, "user", "u", "", "User id (overrides session.user_id)")
}

// addFilterFlags registers the question filters on cmd.
func addFilterFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&grade, "grade", "", "Grade filter")
	cmd.Flags().StringVar(&unit, "unit", "", "Unit filter")
	cmd.Flags().StringVar(&difficulty, "difficulty", "", "Difficulty filter")
}

func filters(cfg *config.FileConfig) model.Filters {
	return model.Filters{UserID: cfg.Session.UserID, Grade: grade, Unit: unit, Difficulty: difficulty}
}

// loadConfig resolves the config file. A missing default file is not an
// error: the configuration then comes from the environment alone.
func loadConfig() (*config.FileConfig, error) {
	path := configPath
	explicit := path != ""
	if !explicit {
		if env := os.Getenv("MEMQUIZ_CONFIG"); env != "" {
			path, explicit = env, true
		} else if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, ".memquiz", "config.yaml")
		}
	}

	var (
		cfg *config.FileConfig
		err error
	)
	switch {
	case explicit || (path != "" && fileExists(path)):
		cfg, err = config.LoadFileConfig(path)
	default:
		cfg, err = config.FromEnv()
	}
	if err != nil {
		return nil, err
	}

	if userID != "" {
		cfg.Session.UserID = userID
	}
	return cfg, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func openApp(ctx context.Context, opts ...memquiz.Option) (*memquiz.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return memquiz.New(ctx, cfg, opts...)
}

// withEngine runs fn against an engine that reports to the console.
func withEngine(cmd *cobra.Command, fn func(ctx context.Context, e *session.Engine, app *memquiz.App) error) error {
	ctx := cmd.Context()
	app, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logging.GetLogger().Warn("failed to close store", "error", err)
		}
	}()

	p := newConsolePresenter(cmd.OutOrStdout(), cmd.ErrOrStderr(), filters(app.Config))
	e := app.NewEngine(ctx, p)
	defer e.Close()
	return fn(ctx, e, app)
}

// Execute runs RootCmd and reports a failure on stderr.
func Execute(ctx context.Context) int {
	if err := RootCmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintf(RootCmd.ErrOrStderr(), "error: %v\n", err)
		}
		return 1
	}
	return 0
}

// errReported marks a failure whose details the console presenter has
// already printed.
var errReported = errors.New("reported")

func reported(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", errReported, err)
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"

	"github.com/studygarden/memquiz"
	"github.com/studygarden/memquiz/internal/tui"
	"github.com/studygarden/memquiz/pkg/logging"
	"github.com/studygarden/memquiz/pkg/metrics"
)

func init() {
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Start an interactive quiz session",
		RunE:  runPlay,
	}
	cmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address, e.g. 127.0.0.1:9464")
	cmd.Flags().String("log-file", "", "Log file (default: ~/.memquiz/memquiz.log)")
	addFilterFlags(cmd)

	RootCmd.AddCommand(cmd)
}

func runPlay(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
	logFile, _ := cmd.Flags().GetString("log-file")

	// The terminal belongs to the UI; logs go to a file.
	f, err := openLogFile(logFile)
	if err != nil {
		return err
	}
	defer f.Close()
	logger := logging.InitLogger(logLevel, logFormat, zapcore.AddSync(f))

	opts := []memquiz.Option{memquiz.WithLogger(logger)}
	var collector *metrics.Collector
	if metricsAddr != "" {
		collector = metrics.New()
		opts = append(opts, memquiz.WithMetrics(collector))
	}

	app, err := openApp(ctx, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Warn("failed to close store", "error", err)
		}
	}()

	if collector != nil {
		stop, err := serveMetrics(metricsAddr, collector, logger)
		if err != nil {
			return err
		}
		defer stop()
	}

	return tui.Run(ctx, app, filters(app.Config))
}

func openLogFile(path string) (*os.File, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		path = filepath.Join(home, ".memquiz", "memquiz.log")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

func serveMetrics(addr string, c *metrics.Collector, logger logging.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", ln.Addr().String())

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

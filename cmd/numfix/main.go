// Command numfix normalizes, deduplicates and groups line-oriented records.
//
//	numfix process [files...] [--fix] [--json] [--config job.yaml] [-o out]
//	numfix serve [--addr :3000]
//	numfix validate --config job.yaml
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"numfix/internal/config"
	"numfix/internal/logging"
	"numfix/internal/metrics"
	"numfix/internal/metrics/datadog"

	// Export backends register themselves with the storage factory.
	_ "numfix/internal/storage/all"
)

// backendCloser is the metrics backend as this command manages it.
type backendCloser interface {
	metrics.Backend
	Close() error
}

// deps are the external seams of the command.
type deps struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	NewLogger      func(verbose bool) (*zap.Logger, error)
	BackendFactory func(ctx context.Context, jobName string, tags []string, flushEvery time.Duration) (backendCloser, error)
	Getenv         func(string) string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], deps{
		Stdin:     os.Stdin,
		Stdout:    os.Stdout,
		Stderr:    os.Stderr,
		NewLogger: logging.New,
		BackendFactory: func(ctx context.Context, jobName string, tags []string, flushEvery time.Duration) (backendCloser, error) {
			return datadog.NewBackend(ctx, datadog.Options{
				JobName:    jobName,
				Tags:       tags,
				FlushEvery: flushEvery,
			})
		},
		Getenv: os.Getenv,
	})
	stop()
	os.Exit(code)
}

// exitError carries a specific exit code out of a cobra RunE.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func usageErr(format string, a ...any) error {
	return &exitError{code: 2, err: fmt.Errorf(format, a...)}
}

// app is the state shared by all subcommands of one invocation.
type app struct {
	d       deps
	verbose bool
	log     *zap.Logger
}

// run executes the command line and returns an exit code.
//
// Exit codes:
//   - 0: success.
//   - 1: the run failed (I/O, export, server).
//   - 2: usage or configuration error.
func run(ctx context.Context, args []string, d deps) int {
	if d.Stdin == nil {
		d.Stdin = os.Stdin
	}
	if d.Stdout == nil {
		d.Stdout = io.Discard
	}
	if d.Stderr == nil {
		d.Stderr = io.Discard
	}
	if d.NewLogger == nil {
		d.NewLogger = func(bool) (*zap.Logger, error) { return zap.NewNop(), nil }
	}
	if d.Getenv == nil {
		d.Getenv = os.Getenv
	}

	a := &app{d: d}
	root := a.rootCmd()
	root.SetArgs(args)
	root.SetIn(d.Stdin)
	root.SetOut(d.Stdout)
	root.SetErr(d.Stderr)

	err := root.ExecuteContext(ctx)
	if a.log != nil {
		_ = a.log.Sync()
	}
	if err == nil {
		return 0
	}

	fmt.Fprintf(d.Stderr, "numfix: %v\n", err)
	var ee *exitError
	switch {
	case errors.As(err, &ee):
		return ee.code
	case errors.Is(err, config.ErrInvalid):
		return 2
	default:
		return 1
	}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "numfix",
		Short:         "Normalize, deduplicate and group line-oriented records",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log, err := a.d.NewLogger(a.verbose)
			if err != nil {
				return usageErr("init logger: %w", err)
			}
			a.log = log
			return nil
		},
	}
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logs")
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &exitError{code: 2, err: err}
	})

	root.AddCommand(a.processCmd(), a.serveCmd(), a.validateCmd())
	return root
}

// startMetrics installs the configured metrics backend. The returned stop
// function flushes and uninstalls it. A backend that fails to initialize is
// logged and replaced by the no-op backend.
func (a *app) startMetrics(ctx context.Context, jobName string, m config.Metrics) func() {
	if m.Backend != config.MetricsDatadog || a.d.BackendFactory == nil {
		return func() {}
	}

	tags := append(append([]string(nil), m.Tags...), datadog.ParseTagsCSV(a.d.Getenv("METRICS_TAGS"))...)
	b, err := a.d.BackendFactory(ctx, jobName, tags, m.FlushEvery())
	if err != nil {
		a.log.Warn("metrics backend unavailable; using nop", zap.Error(err))
		return func() {}
	}
	a.log.Info("metrics enabled", zap.String("backend", m.Backend), zap.String("job", jobName), zap.Strings("tags", tags))
	metrics.SetBackend(b)

	return func() {
		if err := b.Close(); err != nil {
			a.log.Warn("metrics close", zap.Error(err))
		}
		metrics.SetBackend(nil)
	}
}

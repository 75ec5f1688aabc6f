package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"numfix/internal/config"
	"numfix/internal/pipeline"
	"numfix/internal/source"
)

type processFlags struct {
	fix     bool
	asJSON  bool
	cfgPath string
	out     string
}

func (a *app) processCmd() *cobra.Command {
	var f processFlags
	cmd := &cobra.Command{
		Use:   "process [files...]",
		Short: "Process files (or stdin) and print the report",
		Long: `Process each file independently and print its report.

With no files the job's source is used; with no config that is stdin.
Reports are written in argument order. Several text reports are separated
by "==> file <==" headers; JSON reports are written one per line.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runProcess(cmd, f, args)
		},
	}
	fl := cmd.Flags()
	fl.BoolVar(&f.fix, "fix", false, "repair identifiers to the 234 prefix form")
	fl.BoolVar(&f.asJSON, "json", false, "write the JSON report instead of text")
	fl.StringVar(&f.cfgPath, "config", "", "job config (.json, .yaml)")
	fl.StringVarP(&f.out, "output", "o", "", "output path (default stdout)")
	return cmd
}

// baseJob merges the config file with the flags that were explicitly set.
func baseJob(cmd *cobra.Command, f processFlags) (config.Job, error) {
	var job config.Job
	if f.cfgPath != "" {
		j, err := config.Load(f.cfgPath)
		if err != nil {
			return config.Job{}, usageErr("%w", err)
		}
		job = j
	}
	fl := cmd.Flags()
	if fl.Changed("fix") || f.cfgPath == "" {
		job.FixNumbers = f.fix
	}
	if fl.Changed("json") {
		job.Output.Format = config.FormatText
		if f.asJSON {
			job.Output.Format = config.FormatJSON
		}
	}
	if fl.Changed("output") {
		job.Output.Path = f.out
	}
	return job.WithDefaults(), nil
}

func (a *app) runProcess(cmd *cobra.Command, f processFlags, files []string) error {
	ctx := cmd.Context()
	job, err := baseJob(cmd, f)
	if err != nil {
		return err
	}
	if err := config.Check(job); err != nil {
		return err
	}

	stop := a.startMetrics(ctx, job.Job, job.Metrics)
	defer stop()

	if len(files) == 0 {
		r := pipeline.Runner{
			Loader: source.NewLoader(nil, a.d.Stdin, a.log),
			Stdout: cmd.OutOrStdout(),
			Log:    a.log,
		}
		_, err := r.Run(ctx, job)
		return err
	}

	// Each file renders into its own buffer; the buffers are written out in
	// argument order once every run has finished.
	bufs := make([]bytes.Buffer, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, path := range files {
		fileJob := job
		fileJob.Source = config.Source{Kind: config.SourceFile, Path: path, Options: job.Source.Options}
		if job.Source.Kind == config.SourceHTML {
			fileJob.Source.Kind = config.SourceHTML
		}
		fileJob.Output.Path = ""

		g.Go(func() error {
			r := pipeline.Runner{
				Loader: source.NewLoader(nil, nil, a.log),
				Stdout: &bufs[i],
				Log:    a.log.With(zap.String("file", path)),
			}
			if _, err := r.Run(gctx, fileJob); err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	return writeOutputs(cmd.OutOrStdout(), job.Output, files, bufs)
}

func writeOutputs(stdout io.Writer, out config.Output, files []string, bufs []bytes.Buffer) (err error) {
	w := stdout
	if out.Path != "" && out.Path != "-" {
		fh, err := os.Create(out.Path)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := fh.Close(); err == nil {
				err = cerr
			}
		}()
		w = fh
	}

	headers := len(files) > 1 && out.Format != config.FormatJSON
	for i := range bufs {
		if headers {
			if i > 0 {
				if _, err := io.WriteString(w, "\n"); err != nil {
					return err
				}
			}
			if _, err := fmt.Fprintf(w, "==> %s <==\n", files[i]); err != nil {
				return err
			}
		}
		if _, err := bufs[i].WriteTo(w); err != nil {
			return err
		}
	}
	return nil
}

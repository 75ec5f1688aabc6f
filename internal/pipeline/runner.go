package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"numfix/internal/config"
	"numfix/internal/export"
	"numfix/internal/metrics"
	"numfix/internal/report"
	"numfix/internal/source"
)

// Step names reported to metrics.
const (
	StepLoad    = "load"
	StepProcess = "process"
	StepOutput  = "output"
	StepExport  = "export"
)

// Runner executes jobs. The zero value reads stdin, writes stdout, logs
// nothing and exports through storage.New.
type Runner struct {
	Loader   *source.Loader
	Stdout   io.Writer
	Log      *zap.Logger
	Open     export.Opener
	NewRunID func() string
}

func (r *Runner) deps() (*source.Loader, io.Writer, *zap.Logger, func() string) {
	log := r.Log
	if log == nil {
		log = zap.NewNop()
	}
	loader := r.Loader
	if loader == nil {
		loader = source.NewLoader(nil, nil, log)
	}
	stdout := r.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	newID := r.NewRunID
	if newID == nil {
		newID = export.NewRunID
	}
	return loader, stdout, log, newID
}

// Run validates job, then loads, processes, writes and optionally exports.
// Configuration problems wrap config.ErrInvalid; an empty source wraps
// ErrNoInput.
func (r *Runner) Run(ctx context.Context, job config.Job) (rep report.Report, err error) {
	job = job.WithDefaults()
	if err := config.Check(job); err != nil {
		return report.Report{}, err
	}

	loader, stdout, log, newID := r.deps()
	runID := newID()
	log = log.With(zap.String("job", job.Job), zap.String("run_id", runID))

	start := time.Now()
	defer func() {
		if err != nil {
			log.Error("run failed", zap.Error(err), zap.Duration("took", time.Since(start)))
			return
		}
		log.Info("run done",
			zap.Int("total_lines", rep.Stats.TotalLines),
			zap.Int("unique_lines", rep.Stats.UniqueLines),
			zap.Int("groups", rep.Stats.GroupCount),
			zap.Duration("took", time.Since(start)),
		)
	}()

	var text string
	err = step(StepLoad, func() error {
		var lerr error
		text, lerr = loader.Load(ctx, job.Source)
		return lerr
	})
	if err != nil {
		return report.Report{}, fmt.Errorf("load source: %w", err)
	}

	err = step(StepProcess, func() error {
		var perr error
		rep, perr = ProcessInput(text, job.FixNumbers)
		return perr
	})
	if err != nil {
		return report.Report{}, err
	}
	metrics.RecordReport(rep.Stats.TotalLines, rep.Stats.UniqueLines, rep.Stats.GroupCount)

	err = step(StepOutput, func() error {
		return writeOutput(job.Output, stdout, rep)
	})
	if err != nil {
		return rep, fmt.Errorf("write output: %w", err)
	}

	if job.Export.Enabled() {
		err = step(StepExport, func() error {
			sink := export.Sink{Config: job.Export, Open: r.Open, Log: log.With(zap.String("component", "export"))}
			_, serr := sink.Write(ctx, runID, rep)
			return serr
		})
		if err != nil {
			return rep, err
		}
	}
	return rep, nil
}

func step(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	metrics.RecordStep(name, err, time.Since(start))
	return err
}

func writeOutput(out config.Output, stdout io.Writer, rep report.Report) (err error) {
	w := stdout
	if out.Path != "" && out.Path != "-" {
		f, err := os.Create(out.Path)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := f.Close(); err == nil {
				err = cerr
			}
		}()
		w = f
	}
	return WriteReport(w, rep, out.Format)
}

// WriteReport renders rep as text (the report lines plus a trailing newline
// when non-empty) or as one JSON document.
func WriteReport(w io.Writer, rep report.Report, format string) error {
	if format == config.FormatJSON {
		return report.Encode(w, rep)
	}
	if rep.Text == "" {
		return nil
	}
	_, err := io.WriteString(w, rep.Text+"\n")
	return err
}

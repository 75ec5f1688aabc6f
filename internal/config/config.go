// Package config defines the job configuration consumed by cmd/numfix and
// the pipeline runner.
//
// A job is loaded from JSON (".json") or YAML (".yaml", ".yml"). Field names
// are identical in both encodings.
package config

import "time"

// Job describes one run: where the text comes from, whether identifiers are
// repaired, where the report goes and which side channels are enabled.
type Job struct {
	Job        string  `json:"job" yaml:"job"`
	FixNumbers bool    `json:"fix_numbers" yaml:"fix_numbers"`
	Source     Source  `json:"source" yaml:"source"`
	Output     Output  `json:"output" yaml:"output"`
	Export     Export  `json:"export" yaml:"export"`
	Metrics    Metrics `json:"metrics" yaml:"metrics"`
}

// Source kinds.
const (
	SourceFile  = "file"
	SourceStdin = "stdin"
	SourceHTTP  = "http"
	SourceHTML  = "html"
)

// Source selects the input text.
//
// Options understood by every kind:
//   - encoding: utf-8 (default), utf-16, windows-1252, iso-8859-1
//
// Kind-specific options:
//   - http, html: timeout_ms (default 30000)
//   - html: selector (default "pre, textarea")
type Source struct {
	Kind    string  `json:"kind" yaml:"kind"`
	Path    string  `json:"path,omitempty" yaml:"path,omitempty"`
	URL     string  `json:"url,omitempty" yaml:"url,omitempty"`
	Options Options `json:"options,omitempty" yaml:"options,omitempty"`
}

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Output selects where the rendered report is written. An empty Path or "-"
// means stdout.
type Output struct {
	Path   string `json:"path,omitempty" yaml:"path,omitempty"`
	Format string `json:"format,omitempty" yaml:"format,omitempty"`
}

// Export writes the finished report into a database table. An empty Kind
// disables export.
type Export struct {
	Kind   string `json:"kind,omitempty" yaml:"kind,omitempty"` // sqlite | postgres | mssql
	DSN    string `json:"dsn,omitempty" yaml:"dsn,omitempty"`
	Table  string `json:"table,omitempty" yaml:"table,omitempty"`
	Dedupe bool   `json:"dedupe,omitempty" yaml:"dedupe,omitempty"`
}

// Enabled reports whether an export backend is configured.
func (e Export) Enabled() bool { return e.Kind != "" }

// Metrics backends.
const (
	MetricsNone    = "none"
	MetricsDatadog = "datadog"
)

// Metrics configures the metrics backend.
type Metrics struct {
	Backend      string   `json:"backend,omitempty" yaml:"backend,omitempty"`
	Tags         []string `json:"tags,omitempty" yaml:"tags,omitempty"`
	FlushEveryMS int      `json:"flush_every_ms,omitempty" yaml:"flush_every_ms,omitempty"`
}

// FlushEvery returns the configured flush period, or 0 for the backend default.
func (m Metrics) FlushEvery() time.Duration {
	if m.FlushEveryMS <= 0 {
		return 0
	}
	return time.Duration(m.FlushEveryMS) * time.Millisecond
}

const (
	DefaultJobName     = "numfix"
	DefaultExportTable = "numfix_report"
)

// WithDefaults fills unset fields. It never overrides explicit values.
func (j Job) WithDefaults() Job {
	if j.Job == "" {
		j.Job = DefaultJobName
	}
	if j.Source.Kind == "" {
		if j.Source.Path != "" {
			j.Source.Kind = SourceFile
		} else {
			j.Source.Kind = SourceStdin
		}
	}
	if j.Output.Format == "" {
		j.Output.Format = FormatText
	}
	if j.Export.Enabled() && j.Export.Table == "" {
		j.Export.Table = DefaultExportTable
	}
	if j.Metrics.Backend == "" {
		j.Metrics.Backend = MetricsNone
	}
	return j
}

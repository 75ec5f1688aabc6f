package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalid is returned (wrapped) when a job has at least one error issue.
var ErrInvalid = errors.New("invalid configuration")

// Severity of a validation issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one validation finding at a dotted config path.
type Issue struct {
	Severity Severity
	Path     string
	Message  string
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s: %s", i.Severity, i.Path, i.Message)
}

var (
	tableNameRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

	knownEncodings = map[string]bool{
		"utf-8": true, "utf8": true,
		"utf-16": true, "utf16": true,
		"windows-1252": true, "cp1252": true,
		"iso-8859-1": true, "latin1": true,
	}
)

// Validate inspects j (after WithDefaults) and returns every issue found.
func Validate(j Job) []Issue {
	var out []Issue
	add := func(sev Severity, path, format string, a ...any) {
		out = append(out, Issue{Severity: sev, Path: path, Message: fmt.Sprintf(format, a...)})
	}

	switch j.Source.Kind {
	case SourceFile:
		if j.Source.Path == "" {
			add(SeverityError, "source.path", "required for kind=file")
		}
	case SourceStdin:
	case SourceHTTP:
		if !strings.HasPrefix(j.Source.URL, "http://") && !strings.HasPrefix(j.Source.URL, "https://") {
			add(SeverityError, "source.url", "must be an http(s) URL for kind=http")
		}
	case SourceHTML:
		if j.Source.Path == "" && j.Source.URL == "" {
			add(SeverityError, "source", "kind=html needs path or url")
		}
	default:
		add(SeverityError, "source.kind", "unsupported kind %q", j.Source.Kind)
	}

	if enc := strings.ToLower(j.Source.Options.String("encoding", "utf-8")); !knownEncodings[enc] {
		add(SeverityError, "source.options.encoding", "unsupported encoding %q", enc)
	}

	switch j.Output.Format {
	case FormatText, FormatJSON:
	default:
		add(SeverityError, "output.format", "must be text or json, got %q", j.Output.Format)
	}

	if j.Export.Enabled() {
		switch j.Export.Kind {
		case "sqlite", "postgres", "mssql":
		default:
			add(SeverityError, "export.kind", "unsupported kind %q", j.Export.Kind)
		}
		if j.Export.DSN == "" {
			add(SeverityError, "export.dsn", "required when export.kind is set")
		}
		if !tableNameRE.MatchString(j.Export.Table) {
			add(SeverityError, "export.table", "invalid table name %q", j.Export.Table)
		}
	} else if j.Export.Dedupe {
		add(SeverityWarning, "export.dedupe", "ignored without export.kind")
	}

	switch j.Metrics.Backend {
	case MetricsNone:
		if len(j.Metrics.Tags) > 0 {
			add(SeverityWarning, "metrics.tags", "ignored with backend=none")
		}
	case MetricsDatadog:
	default:
		add(SeverityError, "metrics.backend", "unsupported backend %q", j.Metrics.Backend)
	}

	return out
}

// Check returns a wrapped ErrInvalid listing the error issues, or nil.
func Check(j Job) error {
	var msgs []string
	for _, iss := range Validate(j) {
		if iss.Severity == SeverityError {
			msgs = append(msgs, iss.Path+": "+iss.Message)
		}
	}
	if len(msgs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
}

// Package metrics is the backend-agnostic metrics facade used by numfix.
//
// Core code only calls the helpers in this file; a concrete backend (see
// metrics/datadog) is installed once at startup with SetBackend. Until then a
// no-op backend swallows everything.
package metrics

import (
	"strconv"
	"sync"
	"time"
)

// Labels are metric dimensions.
type Labels map[string]string

// Backend receives metric samples.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
	Flush() error
}

// Metric names. Backends may ignore names they do not know.
const (
	RecordsTotal        = "numfix_records_total"
	GroupsTotal         = "numfix_groups_total"
	RunsTotal           = "numfix_runs_total"
	StepTotal           = "numfix_step_total"
	StepDurationSeconds = "numfix_step_duration_seconds"
	ExportRowsTotal     = "numfix_export_rows_total"

	HTTPRequestsTotal          = "numfix_http_requests_total"
	HTTPErrorsTotal            = "numfix_http_errors_total"
	HTTPRequestDurationSeconds = "numfix_http_request_duration_seconds"
	HTTPResponseBytes          = "numfix_http_response_bytes"
)

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs b as the process-wide backend. A nil b restores the
// no-op backend.
func SetBackend(b Backend) {
	if b == nil {
		b = nopBackend{}
	}
	mu.Lock()
	backend = b
	mu.Unlock()
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// Flush flushes the installed backend.
func Flush() error { return current().Flush() }

// RecordStep counts a pipeline step and observes its duration.
func RecordStep(step string, err error, d time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	l := Labels{"step": step, "status": status}
	b := current()
	b.IncCounter(StepTotal, 1, l)
	b.ObserveHistogram(StepDurationSeconds, d.Seconds(), l)
}

// RecordReport publishes the line statistics of one finished run.
func RecordReport(total, unique, groups int) {
	b := current()
	b.IncCounter(RunsTotal, 1, nil)
	b.IncCounter(RecordsTotal, float64(total), Labels{"kind": "total"})
	b.IncCounter(RecordsTotal, float64(unique), Labels{"kind": "unique"})
	b.IncCounter(RecordsTotal, float64(total-unique), Labels{"kind": "duplicate"})
	b.IncCounter(GroupsTotal, float64(groups), nil)
}

// RecordExport counts rows written by an exporter.
func RecordExport(backendKind string, rows int64) {
	current().IncCounter(ExportRowsTotal, float64(rows), Labels{"backend": backendKind})
}

// RecordHTTP records one HTTP exchange, either served by httpapi or issued by
// a source. status 0 means the request failed before a response arrived.
func RecordHTTP(route string, status int, err error, d time.Duration, respBytes int64) {
	st := "error"
	if status > 0 {
		st = strconv.Itoa(status)
	}
	l := Labels{"route": route, "status": st}
	b := current()
	b.IncCounter(HTTPRequestsTotal, 1, l)
	if err != nil || status >= 400 || status == 0 {
		b.IncCounter(HTTPErrorsTotal, 1, l)
	}
	b.ObserveHistogram(HTTPRequestDurationSeconds, d.Seconds(), l)
	if respBytes >= 0 {
		b.ObserveHistogram(HTTPResponseBytes, float64(respBytes), l)
	}
}

package datadog

import (
	"context"
	"errors"
	"net/http"
	"os"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"numfix/internal/metrics"

	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"
)

// fakeSubmitter captures payloads submitted by Backend.Flush().
type fakeSubmitter struct {
	mu       sync.Mutex
	payloads []datadogV2.MetricPayload
	err      error
}

func (f *fakeSubmitter) SubmitMetrics(ctx context.Context, body datadogV2.MetricPayload, params ...datadogV2.SubmitMetricsOptionalParameters) (datadogV2.IntakePayloadAccepted, *http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, body)
	return datadogV2.IntakePayloadAccepted{}, nil, f.err
}

func (f *fakeSubmitter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payloads)
}

func (f *fakeSubmitter) last() (datadogV2.MetricPayload, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.payloads) == 0 {
		return datadogV2.MetricPayload{}, false
	}
	return f.payloads[len(f.payloads)-1], true
}

func newTestBackend(t *testing.T, fs *fakeSubmitter) *Backend {
	t.Helper()
	b, err := NewBackend(context.Background(), Options{
		JobName:   "job1",
		submitter: fs,
		now:       func() time.Time { return time.Unix(1000, 0) },
		newTicker: func(time.Duration) *time.Ticker { return time.NewTicker(24 * time.Hour) },
	})
	if err != nil {
		t.Fatalf("NewBackend() err=%v", err)
	}
	return b
}

func contains(ss []string, want string) bool {
	for _, s := range ss {
		if s == want {
			return true
		}
	}
	return false
}

func seriesByName(series []datadogV2.MetricSeries, name string) []datadogV2.MetricSeries {
	var out []datadogV2.MetricSeries
	for _, s := range series {
		if s.Metric == name {
			out = append(out, s)
		}
	}
	return out
}

// TestResolveEnvTag verifies environment-tag precedence and defaults.
func TestResolveEnvTag(t *testing.T) {
	oldENV := os.Getenv("ENV")
	oldDDENV := os.Getenv("DD_ENV")
	t.Cleanup(func() {
		_ = os.Setenv("ENV", oldENV)
		_ = os.Setenv("DD_ENV", oldDDENV)
	})

	tests := []struct {
		name string
		env  string
		dd   string
		want string
	}{
		{name: "ENV_wins", env: "prod", dd: "stage", want: "env:prod"},
		{name: "DD_ENV_used_when_ENV_empty", env: "", dd: "stage", want: "env:stage"},
		{name: "whitespace_ignored", env: "   ", dd: "\n\t", want: "env:unknown"},
		{name: "default_unknown", env: "", dd: "", want: "env:unknown"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_ = os.Setenv("ENV", tc.env)
			_ = os.Setenv("DD_ENV", tc.dd)
			if got := resolveEnvTag(); got != tc.want {
				t.Fatalf("resolveEnvTag()=%q, want %q", got, tc.want)
			}
		})
	}
}

func TestWrapInitErr(t *testing.T) {
	if got := wrapInitErr(nil); got != nil {
		t.Fatalf("wrapInitErr(nil)=%v, want nil", got)
	}
	in := errors.New("boom")
	got := wrapInitErr(in)
	if got == nil || !strings.Contains(got.Error(), "datadog metrics init:") {
		t.Fatalf("wrapInitErr prefix missing: %v", got)
	}
	if !errors.Is(got, in) {
		t.Fatalf("wrapInitErr did not wrap original error: got=%v", got)
	}
}

func TestNewBackend_NilContext(t *testing.T) {
	//nolint:staticcheck // nil context is the case under test
	if _, err := NewBackend(nil, Options{submitter: &fakeSubmitter{}}); err == nil {
		t.Fatalf("NewBackend(nil) err=nil, want error")
	}
}

func TestPairKeyRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		a, b string
	}{
		{name: "normal", a: "format", b: "ok"},
		{name: "route", a: "/api/process", b: "200"},
		{name: "empty_first", a: "", b: "ok"},
		{name: "both_empty", a: "", b: ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			a, b := splitPairKey(pairKey(tc.a, tc.b))
			if a != tc.a || b != tc.b {
				t.Fatalf("roundtrip got=(%q,%q), want=(%q,%q)", a, b, tc.a, tc.b)
			}
		})
	}

	t.Run("split_without_separator_defaults_unknown", func(t *testing.T) {
		a, b := splitPairKey("no-sep")
		if a != "no-sep" || b != "unknown" {
			t.Fatalf("splitPairKey()=(%q,%q), want=(%q,%q)", a, b, "no-sep", "unknown")
		}
	})
}

func TestWithTags(t *testing.T) {
	base := []string{"env:test", "job:numfix"}
	got := withTags(base, "step:format", "status:ok")
	want := []string{"env:test", "job:numfix", "step:format", "status:ok"}

	if !reflect.DeepEqual(got, want) {
		t.Fatalf("withTags()=%v, want %v", got, want)
	}
	got[0] = "env:mutated"
	if base[0] == "env:mutated" {
		t.Fatalf("withTags output aliases base slice")
	}
}

func TestPercentileNearestRank(t *testing.T) {
	tests := []struct {
		name string
		s    []float64
		p    float64
		want float64
	}{
		{name: "empty", s: nil, p: 0.50, want: 0},
		{name: "single", s: []float64{7}, p: 0.95, want: 7},
		{name: "p_le_0", s: []float64{1, 2, 3}, p: -1, want: 1},
		{name: "p_ge_1", s: []float64{1, 2, 3}, p: 2, want: 3},
		{name: "median", s: []float64{1, 2, 3, 4, 5}, p: 0.50, want: 3},
		{name: "p90_small_n", s: []float64{1, 2, 3, 4, 5}, p: 0.90, want: 5},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := percentileNearestRank(tc.s, tc.p); got != tc.want {
				t.Fatalf("percentileNearestRank(%v,%v)=%v, want %v", tc.s, tc.p, got, tc.want)
			}
		})
	}
}

func TestAddPercentiles_DoesNotMutateInput(t *testing.T) {
	orig := []float64{5, 1, 3, 2, 4}
	in := append([]float64(nil), orig...)

	var series []datadogV2.MetricSeries
	addPercentiles(&series, "numfix.step.duration_seconds", in, []string{"step:format"}, 999)

	if len(series) != 6 {
		t.Fatalf("series.len=%d, want 6", len(series))
	}
	if !reflect.DeepEqual(in, orig) {
		t.Fatalf("samples mutated: got %v, want %v", in, orig)
	}
	max := seriesByName(series, "numfix.step.duration_seconds.max")
	if len(max) != 1 || *max[0].Points[0].Value != 5 {
		t.Fatalf("max series=%v", max)
	}
}

func TestAddPercentiles_EmptyIsNoop(t *testing.T) {
	var series []datadogV2.MetricSeries
	addPercentiles(&series, "x", nil, nil, 1)
	if len(series) != 0 {
		t.Fatalf("series.len=%d, want 0", len(series))
	}
}

func TestNewBackend_Defaults(t *testing.T) {
	fs := &fakeSubmitter{}
	b, err := NewBackend(context.Background(), Options{
		Tags:      []string{"service:numfix"},
		submitter: fs,
		newTicker: func(time.Duration) *time.Ticker { return time.NewTicker(24 * time.Hour) },
	})
	if err != nil {
		t.Fatalf("NewBackend() err=%v, want nil", err)
	}
	defer func() { _ = b.Close() }()

	if !contains(b.baseTags, "job:numfix") {
		t.Fatalf("baseTags missing job:numfix: %v", b.baseTags)
	}
	if !contains(b.baseTags, "service:numfix") {
		t.Fatalf("baseTags missing service:numfix: %v", b.baseTags)
	}
	if b.flushEvery != 60*time.Second {
		t.Fatalf("flushEvery=%s, want 60s", b.flushEvery)
	}
}

func TestFlush_SubmitsAndResets(t *testing.T) {
	fs := &fakeSubmitter{}
	b := newTestBackend(t, fs)
	defer func() { _ = b.Close() }()

	metrics.SetBackend(b)
	t.Cleanup(func() { metrics.SetBackend(nil) })

	metrics.RecordReport(5, 3, 2)
	metrics.RecordStep("format", nil, 500*time.Millisecond)
	metrics.RecordExport("sqlite", 3)
	metrics.RecordHTTP("/api/process", 200, nil, 100*time.Millisecond, 42)

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() err=%v, want nil", err)
	}
	if fs.count() != 1 {
		t.Fatalf("submit calls=%d, want 1", fs.count())
	}
	if !b.snapshotAndReset().isEmpty() {
		t.Fatalf("buffers not reset after Flush")
	}

	payload, _ := fs.last()
	for _, w := range []string{
		"numfix.runs.total",
		"numfix.groups.total",
		"numfix.records.total",
		"numfix.export.rows.total",
		"numfix.step.total",
		"numfix.step.duration_seconds.p50",
		"numfix.http.requests.total",
		"numfix.http.request_duration_seconds.p99",
		"numfix.http.response_bytes.max",
	} {
		if len(seriesByName(payload.Series, w)) == 0 {
			t.Fatalf("payload missing metric %q", w)
		}
	}
	if got := seriesByName(payload.Series, "numfix.http.errors.total"); len(got) != 0 {
		t.Fatalf("unexpected error series for 200: %v", got)
	}

	records := seriesByName(payload.Series, "numfix.records.total")
	if len(records) != 3 {
		t.Fatalf("records series=%d, want 3 (duplicate, total, unique)", len(records))
	}
	if !contains(records[0].Tags, "kind:duplicate") || *records[0].Points[0].Value != 2 {
		t.Fatalf("first records series=%v tags=%v", *records[0].Points[0].Value, records[0].Tags)
	}
}

func TestFlush_NoDataDoesNotSubmit(t *testing.T) {
	fs := &fakeSubmitter{}
	b := newTestBackend(t, fs)
	defer func() { _ = b.Close() }()

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() err=%v", err)
	}
	if fs.count() != 0 {
		t.Fatalf("submit calls=%d, want 0", fs.count())
	}
}

func TestFlush_SubmitError(t *testing.T) {
	fs := &fakeSubmitter{err: errors.New("403")}
	b := newTestBackend(t, fs)

	b.IncCounter(metrics.RunsTotal, 1, nil)
	err := b.Flush()
	if err == nil || !strings.Contains(err.Error(), "datadog submit") {
		t.Fatalf("Flush() err=%v, want datadog submit error", err)
	}
	if !b.snapshotAndReset().isEmpty() {
		t.Fatalf("buffers kept after failed submit")
	}

	fs.err = nil
	if err := b.Close(); err != nil {
		t.Fatalf("Close() err=%v", err)
	}
}

func TestIgnoresUnknownAndInvalidSamples(t *testing.T) {
	fs := &fakeSubmitter{}
	b := newTestBackend(t, fs)
	defer func() { _ = b.Close() }()

	b.IncCounter("something_else", 1, nil)
	b.IncCounter(metrics.RunsTotal, 0, nil)
	b.IncCounter(metrics.RecordsTotal, 1, metrics.Labels{})
	b.ObserveHistogram(metrics.StepDurationSeconds, -1, metrics.Labels{"step": "x"})

	if !b.snapshotAndReset().isEmpty() {
		t.Fatalf("invalid samples were buffered")
	}
}

func TestClose_FinalFlush(t *testing.T) {
	fs := &fakeSubmitter{}
	b := newTestBackend(t, fs)

	b.IncCounter(metrics.HTTPErrorsTotal, 1, metrics.Labels{"route": "/api/process", "status": "400"})
	if err := b.Close(); err != nil {
		t.Fatalf("Close() err=%v", err)
	}
	payload, ok := fs.last()
	if !ok {
		t.Fatalf("Close did not submit")
	}
	errs := seriesByName(payload.Series, "numfix.http.errors.total")
	if len(errs) != 1 || !contains(errs[0].Tags, "route:/api/process") || !contains(errs[0].Tags, "status:400") {
		t.Fatalf("errors series=%v", errs)
	}
}

func TestParseTagsCSV(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{in: "", want: nil},
		{in: "env:prod", want: []string{"env:prod"}},
		{in: " env:prod , ,service:numfix ", want: []string{"env:prod", "service:numfix"}},
	}
	for _, tc := range tests {
		if got := ParseTagsCSV(tc.in); !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("ParseTagsCSV(%q)=%v, want %v", tc.in, got, tc.want)
		}
	}
}

// Package datadog implements a Datadog backend for the internal/metrics package.
//
// Samples are buffered in memory under a mutex and submitted on a ticker
// (default once per minute) and once more on Close. A short CLI run therefore
// submits exactly once, while `numfix serve` produces a regular time series.
//
// Flush snapshots and resets the buffers under the lock, then submits outside
// of it, so request handlers never wait on the network.
package datadog

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	dd "github.com/DataDog/datadog-api-client-go/v2/api/datadog"
	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"

	"numfix/internal/metrics"
)

// Options controls Datadog backend configuration.
type Options struct {
	// JobName becomes tag "job:<name>" on every metric. Defaults to "numfix".
	JobName string

	// Tags are extra Datadog tags (e.g. "service:numfix").
	Tags []string

	// FlushEvery controls how often buffered metrics are submitted.
	// If <= 0, defaults to 60 seconds.
	FlushEvery time.Duration

	// Unexported test seams.
	now       func() time.Time
	newTicker func(d time.Duration) *time.Ticker
	submitter metricsSubmitter
}

// metricsSubmitter is the subset of *datadogV2.MetricsApi used by Flush.
type metricsSubmitter interface {
	SubmitMetrics(ctx context.Context, body datadogV2.MetricPayload, params ...datadogV2.SubmitMetricsOptionalParameters) (datadogV2.IntakePayloadAccepted, *http.Response, error)
}

// Backend implements metrics.Backend for Datadog.
type Backend struct {
	api metricsSubmitter
	ctx context.Context

	flushEvery time.Duration
	stopCh     chan struct{}
	doneCh     chan struct{}

	baseTags []string

	now       func() time.Time
	newTicker func(d time.Duration) *time.Ticker

	mu  sync.Mutex
	buf buffers
}

// buffers holds one collection window. Keys of the two-part maps are built
// with pairKey.
type buffers struct {
	runs         float64
	groups       float64
	records      map[string]float64 // kind -> count
	exportRows   map[string]float64 // backend -> rows
	steps        map[string]float64 // step,status -> count
	stepDur      map[string][]float64
	httpRequests map[string]float64 // route,status -> count
	httpErrors   map[string]float64
	httpDur      map[string][]float64
	httpBytes    map[string][]float64
}

func newBuffers() buffers {
	return buffers{
		records:      make(map[string]float64),
		exportRows:   make(map[string]float64),
		steps:        make(map[string]float64),
		stepDur:      make(map[string][]float64),
		httpRequests: make(map[string]float64),
		httpErrors:   make(map[string]float64),
		httpDur:      make(map[string][]float64),
		httpBytes:    make(map[string][]float64),
	}
}

func (s buffers) isEmpty() bool {
	return s.runs == 0 &&
		s.groups == 0 &&
		len(s.records) == 0 &&
		len(s.exportRows) == 0 &&
		len(s.steps) == 0 &&
		len(s.stepDur) == 0 &&
		len(s.httpRequests) == 0 &&
		len(s.httpErrors) == 0 &&
		len(s.httpDur) == 0 &&
		len(s.httpBytes) == 0
}

func resolveEnvTag() string {
	if v := strings.TrimSpace(os.Getenv("ENV")); v != "" {
		return "env:" + v
	}
	if v := strings.TrimSpace(os.Getenv("DD_ENV")); v != "" {
		return "env:" + v
	}
	return "env:unknown"
}

// NewBackend constructs a Datadog backend using the official client and
// starts its flush loop. Credentials and site come from the client's usual
// DD_API_KEY / DD_SITE environment variables.
func NewBackend(parent context.Context, opts Options) (*Backend, error) {
	if parent == nil {
		return nil, wrapInitErr(fmt.Errorf("nil context"))
	}

	job := opts.JobName
	if job == "" {
		job = "numfix"
	}

	flushEvery := opts.FlushEvery
	if flushEvery <= 0 {
		flushEvery = 60 * time.Second
	}

	baseTags := make([]string, 0, 2+len(opts.Tags))
	baseTags = append(baseTags, resolveEnvTag(), "job:"+job)
	baseTags = append(baseTags, opts.Tags...)

	nowFn := opts.now
	if nowFn == nil {
		nowFn = time.Now
	}
	newTicker := opts.newTicker
	if newTicker == nil {
		newTicker = time.NewTicker
	}

	submitter := opts.submitter
	if submitter == nil {
		submitter = datadogV2.NewMetricsApi(dd.NewAPIClient(dd.NewConfiguration()))
	}

	b := &Backend{
		api:        submitter,
		ctx:        dd.NewDefaultContext(parent),
		flushEvery: flushEvery,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
		baseTags:   baseTags,
		now:        nowFn,
		newTicker:  newTicker,
		buf:        newBuffers(),
	}

	go b.loop()
	return b, nil
}

func (b *Backend) loop() {
	defer close(b.doneCh)

	t := b.newTicker(b.flushEvery)
	defer t.Stop()

	for {
		select {
		case <-t.C:
			_ = b.Flush()
		case <-b.stopCh:
			return
		}
	}
}

// Close stops the flush loop and performs one final Flush. Call it once.
func (b *Backend) Close() error {
	close(b.stopCh)
	<-b.doneCh
	return b.Flush()
}

// IncCounter implements metrics.Backend. Unknown names are dropped.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if delta <= 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	switch name {
	case metrics.RunsTotal:
		b.buf.runs += delta
	case metrics.GroupsTotal:
		b.buf.groups += delta
	case metrics.RecordsTotal:
		kind := labels["kind"]
		if kind == "" {
			return
		}
		b.buf.records[kind] += delta
	case metrics.ExportRowsTotal:
		b.buf.exportRows[orUnknown(labels["backend"])] += delta
	case metrics.StepTotal:
		b.buf.steps[pairKey(labels["step"], labels["status"])] += delta
	case metrics.HTTPRequestsTotal:
		b.buf.httpRequests[pairKey(labels["route"], orUnknown(labels["status"]))] += delta
	case metrics.HTTPErrorsTotal:
		b.buf.httpErrors[pairKey(labels["route"], orUnknown(labels["status"]))] += delta
	}
}

// ObserveHistogram implements metrics.Backend. Unknown names are dropped.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if value < 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	switch name {
	case metrics.StepDurationSeconds:
		k := pairKey(labels["step"], labels["status"])
		b.buf.stepDur[k] = append(b.buf.stepDur[k], value)
	case metrics.HTTPRequestDurationSeconds:
		k := pairKey(labels["route"], orUnknown(labels["status"]))
		b.buf.httpDur[k] = append(b.buf.httpDur[k], value)
	case metrics.HTTPResponseBytes:
		k := pairKey(labels["route"], orUnknown(labels["status"]))
		b.buf.httpBytes[k] = append(b.buf.httpBytes[k], value)
	}
}

func (b *Backend) snapshotAndReset() buffers {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := b.buf
	b.buf = newBuffers()
	return s
}

// Flush submits buffered metrics and resets the buffers. Buffers are reset
// even when submission fails; nothing is retried.
func (b *Backend) Flush() error {
	snap := b.snapshotAndReset()
	if snap.isEmpty() {
		return nil
	}

	payload := datadogV2.MetricPayload{Series: b.buildSeries(snap, b.now().Unix())}
	_, _, err := b.api.SubmitMetrics(b.ctx, payload, *datadogV2.NewSubmitMetricsOptionalParameters())
	if err != nil {
		return fmt.Errorf("datadog submit: %w", err)
	}
	return nil
}

// buildSeries is pure so the naming and tagging contract can be tested
// without a network.
func (b *Backend) buildSeries(s buffers, nowUnix int64) []datadogV2.MetricSeries {
	series := make([]datadogV2.MetricSeries, 0, 16+len(s.records)+len(s.steps)*7)

	if s.runs != 0 {
		series = append(series, countSeries("numfix.runs.total", s.runs, b.baseTags, nowUnix))
	}
	if s.groups != 0 {
		series = append(series, countSeries("numfix.groups.total", s.groups, b.baseTags, nowUnix))
	}
	for _, kind := range sortedKeys(s.records) {
		series = append(series, countSeries("numfix.records.total", s.records[kind], withTags(b.baseTags, "kind:"+kind), nowUnix))
	}
	for _, backend := range sortedKeys(s.exportRows) {
		series = append(series, countSeries("numfix.export.rows.total", s.exportRows[backend], withTags(b.baseTags, "backend:"+backend), nowUnix))
	}
	for _, k := range sortedKeys(s.steps) {
		step, status := splitPairKey(k)
		series = append(series, countSeries("numfix.step.total", s.steps[k], withTags(b.baseTags, "step:"+step, "status:"+status), nowUnix))
	}
	for _, k := range sortedKeys(s.stepDur) {
		step, status := splitPairKey(k)
		addPercentiles(&series, "numfix.step.duration_seconds", s.stepDur[k], withTags(b.baseTags, "step:"+step, "status:"+status), nowUnix)
	}
	for _, k := range sortedKeys(s.httpRequests) {
		series = append(series, countSeries("numfix.http.requests.total", s.httpRequests[k], httpTags(b.baseTags, k), nowUnix))
	}
	for _, k := range sortedKeys(s.httpErrors) {
		series = append(series, countSeries("numfix.http.errors.total", s.httpErrors[k], httpTags(b.baseTags, k), nowUnix))
	}
	for _, k := range sortedKeys(s.httpDur) {
		addPercentiles(&series, "numfix.http.request_duration_seconds", s.httpDur[k], httpTags(b.baseTags, k), nowUnix)
	}
	for _, k := range sortedKeys(s.httpBytes) {
		addPercentiles(&series, "numfix.http.response_bytes", s.httpBytes[k], httpTags(b.baseTags, k), nowUnix)
	}

	return series
}

// addPercentiles appends p50/p90/p95/p99/max/samples gauges for samples. It
// sorts a copy and does nothing for an empty slice.
func addPercentiles(series *[]datadogV2.MetricSeries, metricPrefix string, samples []float64, tags []string, nowUnix int64) {
	if len(samples) == 0 {
		return
	}
	cp := append([]float64(nil), samples...)
	sort.Float64s(cp)

	*series = append(*series,
		gaugeSeries(metricPrefix+".p50", percentileNearestRank(cp, 0.50), tags, nowUnix),
		gaugeSeries(metricPrefix+".p90", percentileNearestRank(cp, 0.90), tags, nowUnix),
		gaugeSeries(metricPrefix+".p95", percentileNearestRank(cp, 0.95), tags, nowUnix),
		gaugeSeries(metricPrefix+".p99", percentileNearestRank(cp, 0.99), tags, nowUnix),
		gaugeSeries(metricPrefix+".max", cp[len(cp)-1], tags, nowUnix),
		gaugeSeries(metricPrefix+".samples", float64(len(cp)), tags, nowUnix),
	)
}

func countSeries(metric string, value float64, tags []string, nowUnix int64) datadogV2.MetricSeries {
	return datadogV2.MetricSeries{
		Metric: metric,
		Type:   datadogV2.METRICINTAKETYPE_COUNT.Ptr(),
		Points: []datadogV2.MetricPoint{
			{Timestamp: dd.PtrInt64(nowUnix), Value: dd.PtrFloat64(value)},
		},
		Tags: tags,
	}
}

func gaugeSeries(metric string, value float64, tags []string, nowUnix int64) datadogV2.MetricSeries {
	return datadogV2.MetricSeries{
		Metric: metric,
		Type:   datadogV2.METRICINTAKETYPE_GAUGE.Ptr(),
		Points: []datadogV2.MetricPoint{
			{Timestamp: dd.PtrInt64(nowUnix), Value: dd.PtrFloat64(value)},
		},
		Tags: tags,
	}
}

func httpTags(base []string, k string) []string {
	route, status := splitPairKey(k)
	return withTags(base, "route:"+route, "status:"+status)
}

func pairKey(a, b string) string {
	return a + "\x00" + b
}

func splitPairKey(k string) (a, b string) {
	parts := strings.SplitN(k, "\x00", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return k, "unknown"
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

func withTags(base []string, extras ...string) []string {
	out := make([]string, 0, len(base)+len(extras))
	out = append(out, base...)
	out = append(out, extras...)
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// percentileNearestRank expects s sorted ascending.
func percentileNearestRank(s []float64, p float64) float64 {
	n := len(s)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return s[0]
	}
	if p >= 1 {
		return s[n-1]
	}
	idx := int(p*float64(n-1) + 0.5)
	if idx >= n {
		idx = n - 1
	}
	return s[idx]
}

var _ metrics.Backend = (*Backend)(nil)

// ParseTagsCSV parses comma-separated tags like "env:prod,service:numfix".
func ParseTagsCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func wrapInitErr(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("datadog metrics init: %w", err)
}

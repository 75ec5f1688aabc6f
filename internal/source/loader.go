// Package source reads the input text of a job from a file, stdin, an HTTP
// URL, or an HTML page, and decodes it to a Go string.
package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"numfix/internal/config"
	"numfix/internal/metrics"
)

const (
	// DefaultTimeout applies to http and html sources without timeout_ms.
	DefaultTimeout = 30 * time.Second

	// MaxBytes caps how much input a single source may return.
	MaxBytes = 50 << 20
)

// Loader opens sources with a shared HTTP client.
type Loader struct {
	client *http.Client
	stdin  io.Reader
	log    *zap.Logger
}

// NewLoader creates a Loader. A nil client uses http.DefaultClient, a nil
// stdin uses os.Stdin, and a nil log discards.
func NewLoader(client *http.Client, stdin io.Reader, log *zap.Logger) *Loader {
	if client == nil {
		client = http.DefaultClient
	}
	if stdin == nil {
		stdin = os.Stdin
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Loader{client: client, stdin: stdin, log: log}
}

// Load returns the decoded text for src.
func (l *Loader) Load(ctx context.Context, src config.Source) (string, error) {
	raw, err := l.read(ctx, src)
	if err != nil {
		return "", err
	}

	text, err := Decode(raw, src.Options.String("encoding", "utf-8"))
	if err != nil {
		return "", err
	}

	if src.Kind == config.SourceHTML {
		text, err = ExtractText(text, src.Options.String("selector", DefaultSelector))
		if err != nil {
			return "", err
		}
	}

	l.log.Debug("source loaded",
		zap.String("kind", src.Kind),
		zap.Int("bytes", len(raw)),
		zap.Int("chars", len(text)),
	)
	return text, nil
}

func (l *Loader) read(ctx context.Context, src config.Source) ([]byte, error) {
	switch src.Kind {
	case config.SourceFile:
		return readFile(src.Path)
	case config.SourceStdin:
		b, err := readLimited(l.stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return b, nil
	case config.SourceHTTP:
		return l.fetch(ctx, src)
	case config.SourceHTML:
		if src.URL != "" {
			return l.fetch(ctx, src)
		}
		return readFile(src.Path)
	default:
		return nil, fmt.Errorf("unsupported source kind %q", src.Kind)
	}
}

func readFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}
	defer f.Close()

	b, err := readLimited(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return b, nil
}

func readLimited(r io.Reader) ([]byte, error) {
	b, err := io.ReadAll(io.LimitReader(r, MaxBytes+1))
	if err != nil {
		return nil, err
	}
	if len(b) > MaxBytes {
		return nil, fmt.Errorf("input exceeds %d bytes", MaxBytes)
	}
	return b, nil
}

// fetch GETs src.URL. Non-2xx responses are errors carrying the status and
// up to 4KB of body.
func (l *Loader) fetch(ctx context.Context, src config.Source) ([]byte, error) {
	timeout := src.Options.DurationMS("timeout_ms", DefaultTimeout)
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", "numfix/1.0")

	start := time.Now()
	resp, err := l.client.Do(req)
	if err != nil {
		metrics.RecordHTTP("source", 0, err, time.Since(start), -1)
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		metrics.RecordHTTP("source", resp.StatusCode, nil, time.Since(start), int64(len(body)))
		return nil, fmt.Errorf("http status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	b, err := readLimited(resp.Body)
	metrics.RecordHTTP("source", resp.StatusCode, err, time.Since(start), int64(len(b)))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	l.log.Debug("source fetched", zap.String("url", src.URL), zap.Int("status", resp.StatusCode), zap.Duration("took", time.Since(start)))
	return b, nil
}

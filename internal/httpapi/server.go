// Package httpapi exposes the pipeline over HTTP:
//
//	POST /api/process  {"text": "...", "fixNumbers": true} -> report JSON
//	GET  /healthz      -> "ok"
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// MaxBodyBytes caps request bodies.
const MaxBodyBytes = 50 << 20

// DefaultAddr is used when no listen address is configured.
const DefaultAddr = ":3000"

// Server holds the routes and their shared dependencies.
type Server struct {
	log *zap.Logger
	mux *http.ServeMux
}

// New builds a Server. A nil log discards.
func New(log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{log: log, mux: http.NewServeMux()}
	s.mux.HandleFunc("/api/process", s.handleProcess)
	s.mux.HandleFunc("/healthz", s.handleHealthz)
	return s
}

// Handler returns the routes wrapped in logging, CORS and panic recovery.
func (s *Server) Handler() http.Handler {
	return s.logging(cors(s.recoverer(s.mux)))
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully, giving in-flight requests up to shutdownTimeout.
func (s *Server) Serve(ctx context.Context, ln net.Listener, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.Info("listening", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// ListenAndServe listens on addr (DefaultAddr when empty) and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln, 10*time.Second)
}

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"floppy/internal/blobstore"
	"floppy/internal/ledger"
)

const (
	readHeaderTimeout = 5 * time.Second
	readTimeout       = 5 * time.Minute
	writeTimeout      = 5 * time.Minute
	idleTimeout       = 60 * time.Second
	shutdownTimeout   = 10 * time.Second
)

// Store is the blob store as seen by the HTTP layer.
type Store interface {
	blobstore.BlobStore
	Usage(ctx context.Context) (blobstore.Usage, error)
	Root() string
	PublicURL() string
}

// Guardian runs throttled retention sweeps.
type Guardian interface {
	Check(ctx context.Context, interval time.Duration) error
	LastCheck() time.Time
}

// Ledger reports storage events.
type Ledger interface {
	Totals(ctx context.Context) (ledger.Totals, error)
	History(ctx context.Context, key string) ([]blobstore.Event, error)
}

// Server wraps HTTP handlers for the floppy upload service.
type Server struct {
	addr             string
	store            Store
	guardian         Guardian
	guardianInterval time.Duration
	ledger           Ledger
	metrics          http.Handler
	maxUploadBytes   int64
	logger           *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(s *Server) { s.logger = l } }

// WithLedger enables ledger totals in /v1/info.
func WithLedger(l Ledger) Option { return func(s *Server) { s.ledger = l } }

// WithMetricsHandler mounts h at /metrics.
func WithMetricsHandler(h http.Handler) Option { return func(s *Server) { s.metrics = h } }

// WithGuardianInterval sets how often request handlers let the guardian
// sweep.
func WithGuardianInterval(d time.Duration) Option {
	return func(s *Server) { s.guardianInterval = d }
}

// WithMaxUploadBytes sets the ceiling used when reading upload bodies. It
// should match the store's ceiling.
func WithMaxUploadBytes(n int64) Option { return func(s *Server) { s.maxUploadBytes = n } }

// New creates a new server instance.
func New(addr string, store Store, guardian Guardian, opts ...Option) *Server {
	s := &Server{
		addr:             addr,
		store:            store,
		guardian:         guardian,
		guardianInterval: time.Hour,
		maxUploadBytes:   blobstore.DefaultMaxBlobBytes,
		logger:           slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed handler with request logging.
func (s *Server) Handler() http.Handler {
	return s.withRequestLogging(s.routes())
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log().Info("starting server", "addr", s.addr, "root", s.store.Root(), "public_url", s.store.PublicURL())
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log().Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ListenAddr converts a listen setting into an address. Both host:port and
// URLs such as http://0.0.0.0:8000 are accepted.
func ListenAddr(value string) (string, error) {
	if value == "" {
		return "", fmt.Errorf("listen address is required")
	}
	if u, err := url.Parse(value); err == nil && u.Host != "" {
		return u.Host, nil
	}
	if _, _, err := net.SplitHostPort(value); err != nil {
		return "", fmt.Errorf("invalid listen address %q: %w", value, err)
	}
	return value, nil
}

// checkRetention gives the guardian a chance to sweep. Failures never block
// the request.
func (s *Server) checkRetention(r *http.Request) {
	if s.guardian == nil {
		return
	}
	if err := s.guardian.Check(r.Context(), s.guardianInterval); err != nil {
		s.log().WarnContext(r.Context(), "retention check failed", "error", err)
	}
}

func (s *Server) log() *slog.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return slog.Default()
}

// Package httpapi exposes certificate verification over HTTP. It plays the
// caller's part of the publish workflow: it enforces upload limits, skips
// non-image certificates, stores the upload privately for the duration of
// one verification and removes it afterwards.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ahrav/credcheck/internal/domain"
	"github.com/ahrav/credcheck/internal/logging"
	"github.com/ahrav/credcheck/internal/ports"
)

// Routes served by the API.
const (
	RouteVerify  = "/api/v1/certificates/verify"
	RouteHealth  = "/healthz"
	RouteMetrics = "/metrics"
)

// Verifier runs one certificate verification. *application.Coordinator
// implements it.
type Verifier interface {
	VerifyCertificateCredential(ctx context.Context, certificatePath, credentialID, skillTitle string) (*domain.VerificationResult, error)
}

// Server is a thin wrapper over chi and the stdlib http.Server.
type Server struct {
	cfg      Config
	verifier Verifier
	logger   logging.Logger
	metrics  ports.MetricsCollector
	mux      *chi.Mux
	srv      *http.Server
}

// NewServer creates a Server. gatherer backs /metrics and may be nil to
// leave the route unmounted; logger and collector may be nil.
func NewServer(
	cfg Config,
	verifier Verifier,
	logger logging.Logger,
	collector ports.MetricsCollector,
	gatherer prometheus.Gatherer,
) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}

	s := &Server{
		cfg:      cfg,
		verifier: verifier,
		logger:   logger,
		metrics:  collector,
		mux:      chi.NewRouter(),
	}

	s.mux.Use(chimw.RequestID, chimw.RealIP, s.accessLog, chimw.Recoverer)
	s.mux.Get(RouteHealth, s.handleHealth)
	s.mux.Post(RouteVerify, s.handleVerify)
	if gatherer != nil {
		s.mux.Handle(RouteMetrics, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	s.srv = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.mux }

// Run serves until ctx is done, then shuts down gracefully within
// Config.ShutdownTimeout.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.logger.Info("http listening", logging.String("addr", ln.Addr().String()))

	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// captureWriter records the status written by a handler.
type captureWriter struct {
	http.ResponseWriter
	status int
}

func (cw *captureWriter) WriteHeader(code int) {
	cw.status = code
	cw.ResponseWriter.WriteHeader(code)
}

// accessLog logs every request and counts it by route pattern and status.
func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cw := &captureWriter{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(cw, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		if s.metrics != nil {
			s.metrics.RecordCounter("http_requests_total", 1, map[string]string{
				"route": route,
				"code":  strconv.Itoa(cw.status),
			})
		}
		s.logger.Info("request done",
			logging.String("request_id", chimw.GetReqID(r.Context())),
			logging.String("method", r.Method),
			logging.String("route", route),
			logging.Int("status", cw.status),
			logging.Duration("elapsed", time.Since(start)),
		)
	})
}

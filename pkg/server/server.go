package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Layr-Labs/signature-validator-go/pkg/verifier"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

/*
Server exposes a Verifier over HTTP.

Endpoints:
  POST /v1/validate:
    - Request: { params: [{type, value}] | encodedParams, nonce, signature }
    - Validates the signature against the validator set and consumes the nonce
    - 200 { valid, signer, nonce } on success
    - 400 malformed input, 401 signer is not a validator, 409 nonce already used

  POST /v1/authority:
    - Request: { digest, signature }
    - Stateless membership check over a bare digest, no nonce involvement
    - 200 { signedByAuthority }

  GET /health:
    - Ledger health and number of consumed nonces

  GET /metrics:
    - Prometheus text format, served only when a registry is configured

Every response carries an X-Request-Id header which is also attached to log lines.
*/

const (
	RequestIDHeader = "X-Request-Id"

	readHeaderTimeout = 10 * time.Second
	maxRequestBytes   = 1 << 20
)

type requestIDKey struct{}

// Server handles HTTP requests for the verifier
type Server struct {
	verifier   *verifier.Verifier
	logger     *zap.Logger
	router     *mux.Router
	httpServer *http.Server
}

// NewServer creates a new server instance. registry may be nil, in which case /metrics is not served.
func NewServer(v *verifier.Verifier, registry *prometheus.Registry, port int, logger *zap.Logger) *Server {
	s := &Server{
		verifier: v,
		logger:   logger,
		router:   mux.NewRouter(),
	}

	s.router.Use(s.requestIDMiddleware)

	s.router.HandleFunc("/v1/validate", s.handleValidate).Methods(http.MethodPost)
	s.router.HandleFunc("/v1/authority", s.handleAuthority).Methods(http.MethodPost)
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	if registry != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	return s
}

// Start starts the HTTP server
func (s *Server) Start() error {
	go func() {
		s.logger.Sugar().Infow("Starting HTTP server", "port", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			s.logger.Sugar().Errorw("HTTP server error", "error", err)
		}
	}()
	return nil
}

// Stop gracefully stops the HTTP server, waiting for in-flight requests until ctx is done
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// GetHandler returns the HTTP handler (for testing)
func (s *Server) GetHandler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if _, err := uuid.Parse(requestID); err != nil {
			requestID = uuid.New().String()
		}
		w.Header().Set(RequestIDHeader, requestID)
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, requestID)))
	})
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

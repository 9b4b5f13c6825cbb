// Package server exposes the cipher over HTTP.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/polisai/polis-cipher/pkg/config"
	"github.com/polisai/polis-cipher/pkg/domain"
	"github.com/polisai/polis-cipher/pkg/keygen"
	"github.com/polisai/polis-cipher/pkg/policy"
	"github.com/polisai/polis-cipher/pkg/storage"
)

// Options configures a Server. Config is required; the remaining fields fall
// back to in-memory or default implementations.
type Options struct {
	Config    *config.Config
	Logger    *slog.Logger
	Keys      storage.KeyStore
	Generator keygen.Generator
	Metrics   *Metrics
	// Now drives rate limiting; nil means time.Now.
	Now       func() time.Time
}

// Server serves the codec API.
type Server struct {
	logger    *slog.Logger
	keys      storage.KeyStore
	generator keygen.Generator
	metrics   *Metrics
	limiter   *rateLimiter
	handler   http.Handler

	mu       sync.RWMutex
	cfg      *config.Config
	filter   policy.Filter
	listener net.Listener

	httpServer *http.Server
	stopOnce   sync.Once
}

// New builds a Server, compiling the configured policy and installing the
// configured keys.
func New(ctx context.Context, opts Options) (*Server, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("%w: server requires a configuration", domain.ErrConfigInvalid)
	}

	s := &Server{
		logger:    opts.Logger,
		keys:      opts.Keys,
		generator: opts.Generator,
		metrics:   opts.Metrics,
		limiter:   newRateLimiter(opts.Now),
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.keys == nil {
		s.keys = storage.NewMemoryKeyStore()
	}
	if s.generator == nil {
		s.generator = keygen.Random{}
	}
	if s.metrics == nil {
		s.metrics = NewMetrics()
	}

	if err := s.apply(ctx, opts.Config); err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	s.setupRoutes(mux)
	s.handler = requestIDMiddleware(accessLogMiddleware(s.logger, otelhttp.NewHandler(mux, "polis-cipher")))

	return s, nil
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Reload swaps in a new configuration. Policy and keys are validated before
// anything changes, so a failed reload leaves the running state untouched.
func (s *Server) Reload(ctx context.Context, cfg *config.Config) error {
	if err := s.apply(ctx, cfg); err != nil {
		s.metrics.RecordConfigReload("failure")
		return err
	}
	s.metrics.RecordConfigReload("success")
	s.logger.Info("Configuration applied", "keys", len(cfg.Keys), "policy_modules", len(cfg.Policy.Modules))
	return nil
}

func (s *Server) apply(ctx context.Context, cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	engine, err := buildEngine(ctx, cfg.Policy)
	if err != nil {
		return err
	}

	keys := make([]domain.StoredKey, 0, len(cfg.Keys))
	for _, k := range cfg.Keys {
		keys = append(keys, domain.StoredKey{ID: k.ID, Name: k.Name, Value: k.Value})
	}
	if err := s.keys.Sync(ctx, keys); err != nil {
		return fmt.Errorf("install configured keys: %w", err)
	}
	s.refreshKeyGauge(ctx)

	s.mu.Lock()
	s.cfg = cfg
	s.filter = policy.NewChain(policy.LengthLimit(), engine)
	s.mu.Unlock()

	s.limiter.configure(cfg.Server.RateLimit)
	return nil
}

func buildEngine(ctx context.Context, cfg config.PolicyConfig) (*policy.Engine, error) {
	modules := policy.DefaultModules()
	if len(cfg.Modules) > 0 {
		var err error
		modules, err = policy.ReadModules(cfg.Modules)
		if err != nil {
			return nil, err
		}
	}

	engine, err := policy.NewEngine(ctx, policy.EngineOptions{
		Entrypoint:      cfg.Entrypoint,
		Modules:         modules,
		CacheMaxEntries: cfg.CacheMaxEntries,
	})
	if err != nil {
		return nil, fmt.Errorf("build policy engine: %w", err)
	}
	return engine, nil
}

func (s *Server) snapshot() (*config.Config, policy.Filter) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg, s.filter
}

func (s *Server) refreshKeyGauge(ctx context.Context) {
	if keys, err := s.keys.List(ctx); err == nil {
		s.metrics.SetKeysStored(len(keys))
	}
}

// Start listens on the configured address and serves until ctx is cancelled
// or Stop is called.
func (s *Server) Start(ctx context.Context) error {
	cfg, _ := s.snapshot()

	listener, err := net.Listen("tcp", cfg.Server.Address)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Server.Address, err)
	}
	if cfg.Server.TLS.Enabled() {
		tlsConfig, err := buildTLSConfig(cfg.Server.TLS)
		if err != nil {
			_ = listener.Close()
			return err
		}
		listener = tls.NewListener(listener, tlsConfig)
	}

	s.mu.Lock()
	s.listener = listener
	s.httpServer = &http.Server{
		Handler:      s.handler,
		ReadTimeout:  cfg.Server.ReadTimeout.Std(),
		WriteTimeout: cfg.Server.WriteTimeout.Std(),
	}
	httpServer := s.httpServer
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server starting", "addr", listener.Addr().String(), "tls", cfg.Server.TLS.Enabled())
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Std())
		defer cancel()
		return s.Stop(shutdownCtx)
	}
}

// Addr returns the listening address once Start has bound it.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop gracefully shuts the HTTP server down.
func (s *Server) Stop(ctx context.Context) error {
	var err error
	s.stopOnce.Do(func() {
		s.logger.Info("Stopping codec server")

		s.mu.RLock()
		httpServer := s.httpServer
		s.mu.RUnlock()

		if httpServer != nil {
			if stopErr := httpServer.Shutdown(ctx); stopErr != nil {
				s.logger.Error("Failed to shut down HTTP server", "error", stopErr)
				err = stopErr
			}
		}
	})
	return err
}

func (s *Server) setupRoutes(mux *http.ServeMux) {
	route := func(pattern, endpoint string, handler http.HandlerFunc) {
		mux.Handle(pattern, s.metrics.Middleware(endpoint, s.rateLimit(endpoint, handler)))
	}

	route("POST /v1/encode", "encode", s.handleCodec(domain.OperationEncode))
	route("POST /v1/decode", "decode", s.handleCodec(domain.OperationDecode))
	route("POST /v1/keys", "keys", s.handleCreateKey)
	route("GET /v1/keys", "keys", s.handleListKeys)
	route("DELETE /v1/keys/{id}", "key", s.handleDeleteKey)
	mux.Handle("GET /healthz", s.metrics.Middleware("health", http.HandlerFunc(s.handleHealth)))
	mux.Handle("GET /metrics", s.metrics.Handler())
}

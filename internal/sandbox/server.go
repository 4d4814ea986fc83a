// Package sandbox serves the Consul kv and agent endpoints from in-memory
// stores so the SDK and CLI can run without a real agent.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	agentmock "github.com/consulvault/consul_sdk_go/pkg/agent/mock"
	kvmock "github.com/consulvault/consul_sdk_go/pkg/kv/mock"
)

// DefaultDatacenter is the only datacenter the sandbox answers for.
const DefaultDatacenter = "dc1"

// FailConfig injects errors into a fraction of requests.
type FailConfig struct {
	Rate float64
	Code int
}

// Option configures a Server.
type Option func(*Server)

// WithLatency delays every request by d.
func WithLatency(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.latency = d
		}
	}
}

// WithFailure enables failure injection.
func WithFailure(cfg FailConfig) Option {
	return func(s *Server) {
		s.fail = cfg
	}
}

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithDatacenter renames the local datacenter.
func WithDatacenter(dc string) Option {
	return func(s *Server) {
		if dc != "" {
			s.datacenter = dc
		}
	}
}

// Server is an HTTP front end over the kv and agent mocks.
type Server struct {
	kv         *kvmock.Mock
	agent      *agentmock.Mock
	latency    time.Duration
	fail       FailConfig
	logger     *slog.Logger
	datacenter string
}

// New builds a Server. Nil stores are replaced with empty ones.
func New(kv *kvmock.Mock, ag *agentmock.Mock, opts ...Option) *Server {
	s := &Server{
		kv:         kv,
		agent:      ag,
		logger:     slog.New(slog.DiscardHandler),
		datacenter: DefaultDatacenter,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.kv == nil {
		s.kv = kvmock.New()
	}
	if s.agent == nil {
		s.agent = agentmock.New(agentmock.WithDatacenter(s.datacenter))
	}
	return s
}

// KV returns the backing key/value store.
func (s *Server) KV() *kvmock.Mock { return s.kv }

// Agent returns the backing agent registry.
func (s *Server) Agent() *agentmock.Mock { return s.agent }

// Datacenter returns the name of the local datacenter.
func (s *Server) Datacenter() string { return s.datacenter }

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/kv/", s.handleKVGet)
	mux.HandleFunc("PUT /v1/kv/", s.handleKVPut)
	mux.HandleFunc("DELETE /v1/kv/", s.handleKVDelete)
	mux.HandleFunc("PUT /v1/agent/service/register", s.handleServiceRegister)
	mux.HandleFunc("PUT /v1/agent/service/deregister/{id}", s.handleServiceDeregister)
	mux.HandleFunc("GET /v1/agent/services", s.handleServices)
	mux.HandleFunc("PUT /v1/agent/check/register", s.handleCheckRegister)
	mux.HandleFunc("PUT /v1/agent/check/deregister/{id}", s.handleCheckDeregister)
	mux.HandleFunc("GET /v1/agent/checks", s.handleChecks)
	return s.withMiddleware(mux)
}

// ListenAndServe serves on addr until ctx is canceled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("sandbox: listen %s: %w", addr, err)
	}
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("sandbox listening", "addr", ln.Addr().String(), "datacenter", s.datacenter)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (s *Server) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.logger.Debug("sandbox request", "method", r.Method, "path", r.URL.Path, "query", r.URL.RawQuery)
		if s.latency > 0 {
			select {
			case <-time.After(s.latency):
			case <-r.Context().Done():
				return
			}
		}
		if s.fail.Rate > 0 && rand.Float64() < s.fail.Rate {
			status := s.fail.Code
			if status == 0 {
				status = http.StatusInternalServerError
			}
			s.logger.Warn("sandbox failure injected", "method", r.Method, "path", r.URL.Path, "status", status)
			http.Error(w, "failure injected", status)
			return
		}
		if dc := r.URL.Query().Get("dc"); dc != "" && dc != s.datacenter {
			http.Error(w, "No path to datacenter", http.StatusInternalServerError)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ParseFailConfig reads "rate=<float>,code=<status>".
func ParseFailConfig(raw string) (FailConfig, error) {
	if strings.TrimSpace(raw) == "" {
		return FailConfig{}, nil
	}
	cfg := FailConfig{Code: http.StatusInternalServerError}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value, ok := strings.Cut(part, "=")
		if !ok {
			return FailConfig{}, fmt.Errorf("sandbox: invalid fail segment %q", part)
		}
		value = strings.TrimSpace(value)
		switch strings.TrimSpace(name) {
		case "rate":
			rate, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return FailConfig{}, fmt.Errorf("sandbox: fail rate: %w", err)
			}
			if rate < 0 || rate > 1 {
				return FailConfig{}, fmt.Errorf("sandbox: fail rate %v out of range [0,1]", rate)
			}
			cfg.Rate = rate
		case "code":
			code, err := strconv.Atoi(value)
			if err != nil {
				return FailConfig{}, fmt.Errorf("sandbox: fail code: %w", err)
			}
			if code < 100 || code > 599 {
				return FailConfig{}, fmt.Errorf("sandbox: fail code %d is not an HTTP status", code)
			}
			cfg.Code = code
		default:
			return FailConfig{}, fmt.Errorf("sandbox: unknown fail key %q", name)
		}
	}
	return cfg, nil
}

package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/teemow/telecal/internal/instrumentation"
)

// WebServerConfig holds the dependencies of the OAuth web process.
type WebServerConfig struct {
	Addr    string
	OAuth   *OAuthHandler
	Health  *HealthChecker
	Logger  *slog.Logger
	Metrics *instrumentation.Metrics
}

// WebServer is the public HTTP listener of the authorization flow.
type WebServer struct {
	httpServer *http.Server
	health     *HealthChecker
	logger     *slog.Logger
}

// NewWebServer wires routes and middleware.
func NewWebServer(cfg WebServerConfig) (*WebServer, error) {
	if cfg.OAuth == nil {
		return nil, fmt.Errorf("oauth handler is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	cfg.OAuth.Register(mux)
	if cfg.Health != nil {
		cfg.Health.RegisterHealthEndpoints(mux)
	}

	handler := instrumentHandler(securityHeaders(mux), logger, cfg.Metrics)

	return &WebServer{
		health: cfg.Health,
		logger: logger,
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
	}, nil
}

// Handler returns the fully wrapped handler.
func (s *WebServer) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start serves until Shutdown.
func (s *WebServer) Start() error {
	s.logger.Info("starting web server", slog.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Serve is Start on an existing listener.
func (s *WebServer) Serve(l net.Listener) error {
	s.logger.Info("starting web server", slog.String("addr", l.Addr().String()))
	return s.httpServer.Serve(l)
}

// Shutdown marks the server as draining and waits for in-flight requests.
func (s *WebServer) Shutdown(ctx context.Context) error {
	if s.health != nil {
		s.health.SetShuttingDown()
	}
	s.logger.Info("shutting down web server")
	return s.httpServer.Shutdown(ctx)
}

// ValidatePublicURL checks that the externally visible base URL is usable as
// an OAuth redirect target. Plain HTTP is only accepted for loopback hosts.
func ValidatePublicURL(baseURL string) error {
	if baseURL == "" {
		return fmt.Errorf("public URL cannot be empty")
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("invalid public URL: %w", err)
	}

	switch u.Scheme {
	case "https":
		return nil
	case "http":
		host := u.Hostname()
		if host != "localhost" && host != "127.0.0.1" && host != "::1" {
			return fmt.Errorf("public URL must use HTTPS outside localhost (got: %s)", baseURL)
		}
		return nil
	default:
		return fmt.Errorf("invalid URL scheme %q: must be http (localhost only) or https", u.Scheme)
	}
}

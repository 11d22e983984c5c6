package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/wastetrack/forecast-worker/config"
	httpx "github.com/wastetrack/forecast-worker/internal/http"
	"golang.org/x/net/netutil"
)

// HTTPServerConfig contains configuration for the admin HTTP server.
type HTTPServerConfig struct {
	HTTP     config.HTTPConfig
	Services ServiceContainer
	DB       *sql.DB
	Logger   *slog.Logger
}

// NewHTTPServer builds the admin API server without starting it.
func NewHTTPServer(cfg HTTPServerConfig) *http.Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	services := httpx.RouterServices{
		Jobs:         cfg.Services.Jobs,
		Ratios:       cfg.Services.Ratios,
		Metrics:      cfg.Services.Observability.MetricsHandler,
		MaxBodyBytes: cfg.HTTP.MaxBodyBytes,
		Logger:       logger,
	}
	if cfg.DB != nil {
		services.DB = cfg.DB
	}

	addr := cfg.HTTP.Addr
	// Guard against empty addr to avoid listening on Go default
	if addr == "" {
		addr = ":8080"
	}

	return &http.Server{
		Addr:              addr,
		Handler:           httpx.NewRouter(services),
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}
}

// ServeConfig controls ServeHTTP.
type ServeConfig struct {
	Server          *http.Server
	MaxConnections  int // 0 disables the cap
	ShutdownTimeout time.Duration
	Logger          *slog.Logger
	// Listener overrides net.Listen on Server.Addr; tests pass a loopback listener.
	Listener net.Listener
}

// ServeHTTP serves until ctx ends, then shuts the server down gracefully.
func ServeHTTP(ctx context.Context, cfg ServeConfig) error {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ln := cfg.Listener
	if ln == nil {
		var err error
		ln, err = net.Listen("tcp", cfg.Server.Addr)
		if err != nil {
			return fmt.Errorf("listen %s: %w", cfg.Server.Addr, err)
		}
	}
	if cfg.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, cfg.MaxConnections)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting HTTP server", "addr", ln.Addr().String(), "max_connections", cfg.MaxConnections)
		errCh <- cfg.Server.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	return ShutdownHTTPServer(ShutdownConfig{Server: cfg.Server, Timeout: cfg.ShutdownTimeout, Logger: logger})
}

// ShutdownConfig contains dependencies for HTTP server shutdown.
type ShutdownConfig struct {
	Server  *http.Server
	Timeout time.Duration
	Logger  *slog.Logger
}

// ShutdownHTTPServer gracefully shuts down the HTTP server.
func ShutdownHTTPServer(cfg ShutdownConfig) error {
	if cfg.Server == nil {
		return nil
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("shutting down HTTP server")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := cfg.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("HTTP server stopped")
	}

	return nil
}

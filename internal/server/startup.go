package server

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"
)

const (
	shutdownTimeout              = 30 * time.Second
	observabilityShutdownTimeout = 5 * time.Second
)

// Start serves until ctx is cancelled or the listener fails, then shuts down
// gracefully. Background watchers are started first and stopped on exit.
// Everything the server owns is released on every return path.
func (s *Server) Start(ctx context.Context) error {
	tlsConfig, err := s.buildTLSConfig()
	if err != nil {
		s.releaseResources()
		return fmt.Errorf("failed to set up TLS: %w", err)
	}

	addr := net.JoinHostPort(s.Host, s.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		TLSConfig:    tlsConfig,
		ReadTimeout:  s.ReadTimeout,
		WriteTimeout: s.WriteTimeout,
		IdleTimeout:  s.IdleTimeout,
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		s.releaseResources()
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	if err := s.startWatchers(); err != nil {
		_ = listener.Close()
		s.releaseResources()
		return err
	}

	s.displayServerInfo(os.Stdout, listener.Addr().String())
	return s.serve(ctx, httpServer, listener)
}

func (s *Server) serve(ctx context.Context, httpServer *http.Server, listener net.Listener) error {
	serverErrors := make(chan error, 1)
	go func() {
		s.Logger.Info("Starting HTTP server",
			"address", listener.Addr().String(),
			"tls_enabled", httpServer.TLSConfig != nil)

		var err error
		if httpServer.TLSConfig != nil {
			err = httpServer.ServeTLS(listener, "", "")
		} else {
			err = httpServer.Serve(listener)
		}
		if err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
		close(serverErrors)
	}()

	select {
	case err, ok := <-serverErrors:
		s.releaseResources()
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		s.Logger.Info("Received shutdown signal, starting graceful shutdown")
		return s.performGracefulShutdown(httpServer)
	}
}

func (s *Server) performGracefulShutdown(httpServer *http.Server) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.Logger.Info("Shutting down HTTP server...")
	err := httpServer.Shutdown(shutdownCtx)
	if err != nil {
		s.Logger.LogError(err, "Failed to shutdown server gracefully, forcing close")
		err = httpServer.Close()
	}

	s.releaseResources()
	if err == nil {
		s.Logger.Info("Server shutdown completed successfully")
	}
	return err
}

func (s *Server) startWatchers() error {
	if s.KeyWatcher != nil {
		if err := s.KeyWatcher.Start(); err != nil {
			return fmt.Errorf("failed to start key watcher: %w", err)
		}
	}
	if s.PromptWatcher != nil {
		if err := s.PromptWatcher.Start(); err != nil {
			return fmt.Errorf("failed to start prompt watcher: %w", err)
		}
	}
	return nil
}

// Close releases what the server owns without serving. Use it when Start is
// never reached; Start releases on its own.
func (s *Server) Close() {
	s.releaseResources()
}

// releaseResources stops everything the server owns besides the listener.
// Only the first call does any work.
func (s *Server) releaseResources() {
	s.releaseOnce.Do(s.release)
}

func (s *Server) release() {
	if s.KeyWatcher != nil {
		if err := s.KeyWatcher.Stop(); err != nil {
			s.Logger.LogError(err, "Failed to stop key watcher")
		}
	}
	if s.PromptWatcher != nil {
		if err := s.PromptWatcher.Stop(); err != nil {
			s.Logger.LogError(err, "Failed to stop prompt watcher")
		}
	}
	if s.RateLimiter != nil {
		s.RateLimiter.Close()
		s.Logger.Info("Rate limiter cleaned up")
	}
	if err := s.Service.Close(); err != nil {
		s.Logger.LogError(err, "Failed to close AI service")
	}

	ctx, cancel := context.WithTimeout(context.Background(), observabilityShutdownTimeout)
	defer cancel()
	if err := s.Observability.Shutdown(ctx); err != nil {
		s.Logger.LogError(err, "Failed to shutdown observability")
	}
}

// displayServerInfo prints the endpoints and the protections in effect
func (s *Server) displayServerInfo(out io.Writer, addr string) {
	scheme := "http"
	if s.tlsEnabled() {
		scheme = "https"
	}
	fmt.Fprintf(out, "Starting server on %s://%s\n", scheme, addr)
	fmt.Fprintf(out, "AI provider: %s (model: %s)\n", s.Service.ProviderName(), s.Service.Model())
	if !s.Service.CredentialConfigured() {
		fmt.Fprintln(out, "WARNING: no AI credential configured, analysis requests will fail")
	}

	fmt.Fprintln(out, "Available endpoints:")
	fmt.Fprintf(out, "  POST %-28s - Analyze resume against a job description\n", AnalyzePath)
	fmt.Fprintf(out, "  POST %-28s - Same, hosted-function path\n", FunctionsAnalyzePath)
	fmt.Fprintf(out, "  GET  %-28s - Health check\n", "/health")
	fmt.Fprintf(out, "  GET  %-28s - Server statistics\n", "/stats")

	if s.MaxRequestSize > 0 {
		fmt.Fprintf(out, "Request size limit: %d bytes (%.1f MB)\n", s.MaxRequestSize, float64(s.MaxRequestSize)/(1024*1024))
	} else {
		fmt.Fprintln(out, "Request size limit: DISABLED")
	}

	if s.RateLimit != nil && s.RateLimit.Enabled {
		fmt.Fprintf(out, "Rate limiting: ENABLED (%d requests/min, burst: %d)\n",
			s.RateLimit.RequestsPerMin, s.RateLimit.BurstCapacity)
	} else {
		fmt.Fprintln(out, "Rate limiting: DISABLED")
	}

	if s.KeyWatcher != nil {
		fmt.Fprintln(out, "Gateway key rotation: watching Vault")
	}
	if s.PromptWatcher != nil {
		fmt.Fprintln(out, "Prompt hot reload: ENABLED")
	}
}

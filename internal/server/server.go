package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/BioHazard786/warpcall/internal/config"
	"github.com/BioHazard786/warpcall/internal/metrics"
	"github.com/BioHazard786/warpcall/internal/signaling"
)

// Endpoint names used in logs.
const (
	EndpointHTTP  = "http"
	EndpointHTTPS = "https"
)

// Server runs the plaintext and TLS endpoints around one router, so a
// peer can reach any other peer whichever endpoint either of them used.
type Server struct {
	cfg      *config.Server
	log      *slog.Logger
	router   *signaling.Router
	metrics  *metrics.Metrics
	upgrader websocket.Upgrader
	tls      *tls.Config
}

// LoadCredentials reads the certificate and key for the TLS endpoint.
func LoadCredentials(certFile, keyFile string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("load tls credentials (%s, %s): %w", certFile, keyFile, err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// New loads the TLS credentials and prepares both endpoints. A credential
// failure is returned here so the process never starts half-configured.
func New(cfg *config.Server, router *signaling.Router, m *metrics.Metrics, logger *slog.Logger) (*Server, error) {
	tlsCfg, err := LoadCredentials(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, err
	}
	return newServer(cfg, router, m, logger, tlsCfg), nil
}

func newServer(cfg *config.Server, router *signaling.Router, m *metrics.Metrics, logger *slog.Logger, tlsCfg *tls.Config) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:      cfg,
		log:      logger,
		router:   router,
		metrics:  m,
		upgrader: newUpgrader(cfg.AllowedOrigins),
		tls:      tlsCfg,
	}
}

// Handler returns the HTTP handler for one endpoint.
func (s *Server) Handler(endpoint string) http.Handler {
	return s.routes(endpoint)
}

// ListenAndServe binds both endpoints and serves until ctx is done, then
// shuts them down gracefully. A bind failure on either endpoint is returned
// before anything is served.
func (s *Server) ListenAndServe(ctx context.Context) error {
	plainLn, err := net.Listen("tcp", s.cfg.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.HTTPAddr, err)
	}
	secureLn, err := net.Listen("tcp", s.cfg.HTTPSAddr)
	if err != nil {
		plainLn.Close()
		return fmt.Errorf("listen %s: %w", s.cfg.HTTPSAddr, err)
	}
	return s.Serve(ctx, plainLn, secureLn)
}

// Serve serves the plaintext endpoint on plainLn and the TLS endpoint on
// secureLn until ctx is done or either server fails.
func (s *Server) Serve(ctx context.Context, plainLn, secureLn net.Listener) error {
	plain := &http.Server{
		Handler:           s.Handler(EndpointHTTP),
		ReadHeaderTimeout: 5 * time.Second,
	}
	secure := &http.Server{
		Handler:           s.Handler(EndpointHTTPS),
		ReadHeaderTimeout: 5 * time.Second,
		TLSConfig:         s.tls,
	}

	errCh := make(chan error, 2)
	go func() {
		s.log.Info("server is listening", "endpoint", EndpointHTTP, "addr", plainLn.Addr().String())
		errCh <- plain.Serve(plainLn)
	}()
	go func() {
		s.log.Info("server is listening", "endpoint", EndpointHTTPS, "addr", secureLn.Addr().String())
		errCh <- secure.Serve(tls.NewListener(secureLn, s.tls))
	}()

	var serveErr error
	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = err
		}
	case <-ctx.Done():
		s.log.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	// Upgraded websocket connections are hijacked and not tracked by
	// Shutdown; they end when the router stops.
	for name, srv := range map[string]*http.Server{EndpointHTTP: plain, EndpointHTTPS: secure} {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Error("http server shutdown failed", "endpoint", name, "err", err)
		}
	}

	return serveErr
}

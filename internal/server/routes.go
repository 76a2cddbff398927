package server

import (
	"embed"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/BioHazard786/warpcall/internal/metrics"
	"github.com/BioHazard786/warpcall/internal/signaling"
)

//go:embed static
var staticFiles embed.FS

// newUpgrader configures the websocket upgrader. An empty allowedOrigins
// list accepts any origin.
func newUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  64 * 1024, // 64 KB
		WriteBufferSize: 64 * 1024, // 64 KB
		CheckOrigin: func(r *http.Request) bool {
			return originAllowed(r.Header.Get("Origin"), allowedOrigins)
		},
	}
}

func originAllowed(origin string, allowed []string) bool {
	if len(allowed) == 0 || origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	for _, a := range allowed {
		if a == "*" || strings.EqualFold(a, origin) || strings.EqualFold(a, u.Host) {
			return true
		}
	}
	return false
}

// ServeWs returns an http.HandlerFunc that upgrades the request and hands
// the connection to the router under a freshly assigned peer id.
// endpoint names the listener ("http" or "https") for logging.
func ServeWs(router *signaling.Router, upgrader websocket.Upgrader, endpoint string, logger *slog.Logger) http.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("failed to upgrade connection", "endpoint", endpoint, "remote_addr", r.RemoteAddr, "err", err)
			return
		}

		id := signaling.PeerID(uuid.NewString())
		logger.Debug("websocket accepted", "peer", id, "endpoint", endpoint, "remote_addr", conn.RemoteAddr().String())

		client := signaling.NewClient(id, endpoint, router, conn)
		// Serve blocks until the connection closes; net/http already runs
		// each request on its own goroutine.
		client.Serve()
	}
}

// healthCheckHandler reports liveness.
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Signaling server is healthy."))
}

// staticHandler serves dir when set, else the embedded browser client.
func staticHandler(dir string) http.Handler {
	if dir != "" {
		return http.FileServer(http.Dir(dir))
	}
	sub, err := fs.Sub(staticFiles, "static")
	if err != nil {
		// The embed directive guarantees the directory exists.
		panic(err)
	}
	return http.FileServer(http.FS(sub))
}

// routes builds the handler shared by one endpoint.
func (s *Server) routes(endpoint string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthCheckHandler)
	mux.Handle("GET /metrics", metrics.PrometheusHandler(s.metrics, s.router.Registry().Len))
	mux.HandleFunc("GET /ws", ServeWs(s.router, s.upgrader, endpoint, s.log))
	mux.Handle("GET /", staticHandler(s.cfg.StaticDir))

	return chain(mux,
		recoverMiddleware(s.log),
		requestLoggerMiddleware(s.log, endpoint),
	)
}

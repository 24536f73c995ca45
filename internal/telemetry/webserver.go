package telemetry

import (
	"context"
	"net/http"
	"time"

	"github.com/strigiform/skeeterhawk/internal/logging"
)

// WebServer exposes hub history, live updates, and health over HTTP.
type WebServer struct {
	srv    *http.Server
	hub    *Hub
	logger logging.Logger
}

// NewWebServer builds an HTTP server over the hub's endpoints.
func NewWebServer(addr string, hub *Hub, logger logging.Logger) *WebServer {
	if logger == nil {
		logger = logging.Nop()
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/history", hub.handleHistory)
	mux.HandleFunc("/api/latest", hub.handleLatest)
	mux.HandleFunc("/api/live", hub.handleLive)
	mux.HandleFunc("/api/health", hub.handleHealth)

	return &WebServer{
		hub:    hub,
		logger: logger.With(logging.F("subsystem", "telemetry")),
		srv:    &http.Server{Addr: addr, Handler: mux},
	}
}

// Start listens until the context is canceled, then shuts down gracefully.
func (w *WebServer) Start(ctx context.Context) {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := w.srv.Shutdown(shutdownCtx); err != nil {
			w.logger.Warn("web telemetry shutdown", logging.F("err", err))
		}
	}()

	w.logger.Info("web telemetry listening", logging.F("addr", w.srv.Addr))
	if err := w.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		w.logger.Error("web telemetry server", logging.F("err", err))
	}
}

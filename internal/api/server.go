// Package api wires the HTTP router: method+path dispatch, the
// standard-header/access-log/recover middleware chain, and the queue
// and message handlers that call into the engine layer.
package api

import (
	"net/http"

	"github.com/oriys/mqs/internal/engine"
	"github.com/oriys/mqs/internal/logging"
	"github.com/oriys/mqs/internal/metrics"
	"github.com/oriys/mqs/internal/store"
	"github.com/oriys/mqs/internal/tracing"
)

// ServerConfig contains the dependencies StartHTTPServer wires into the
// router.
type ServerConfig struct {
	Repo           store.Repository
	QueueEngine    *engine.QueueEngine
	MessageEngine  *engine.MessageEngine
	MaxMessageSize int64
}

// NewRouter builds the mux and middleware chain for cfg, without
// starting a listener; StartHTTPServer is the usual entry point, but
// tests construct a router directly against httptest.
func NewRouter(cfg ServerConfig) http.Handler {
	mux := http.NewServeMux()

	qh := &queueHandlers{engine: cfg.QueueEngine}
	mh := &messageHandlers{engine: cfg.MessageEngine}

	mux.HandleFunc("GET /health", healthHandler(cfg.Repo))
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("GET /queues", qh.list)
	mux.HandleFunc("PUT /queues/{name}", qh.create)
	mux.HandleFunc("POST /queues/{name}", qh.update)
	mux.HandleFunc("GET /queues/{name}", qh.describe)
	mux.HandleFunc("DELETE /queues/{name}", qh.delete)

	mux.HandleFunc("POST /messages/{queue}", mh.publish)
	mux.HandleFunc("GET /messages/{queue}", mh.receive)
	mux.HandleFunc("DELETE /messages/{id}", mh.delete)

	var handler http.Handler = mux
	handler = recoverMiddleware(handler)
	handler = accessLog(handler)
	handler = standardHeaders(handler)
	handler = tracing.HTTPMiddleware(handler)
	if cfg.MaxMessageSize > 0 {
		handler = maxBodySize(cfg.MaxMessageSize, handler)
	}
	return handler
}

// StartHTTPServer builds the router and starts listening on addr in a
// background goroutine, returning the *http.Server so the caller can
// shut it down gracefully.
func StartHTTPServer(addr string, cfg ServerConfig) *http.Server {
	server := &http.Server{
		Addr:    addr,
		Handler: NewRouter(cfg),
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Op().Error("HTTP server error", "error", err)
		}
	}()

	return server
}

package api

import (
	"net/http"
	"time"

	"github.com/oriys/mqs/internal/logging"
)

// standardHeaders sets the response headers every reply, including error
// paths, must carry.
func standardHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", "mqs")
		w.Header().Set("Connection", "keep-alive")
		next.ServeHTTP(w, r)
	})
}

// maxBodySize caps the request body at limit bytes; once a handler reads
// past the limit, the read fails with *http.MaxBytesError, which the
// publish handler maps to a 413.
func maxBodySize(limit int64, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, limit)
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// accessLog logs one line per request at the operational level, mirroring
// the daemon's ambient logging rather than the caller-facing JSON/trace-id
// logger that is out of scope here.
func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logging.Op().Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// recoverMiddleware converts a handler panic into a 500 instead of
// crashing the whole process, logging the recovered value.
func recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logging.Op().Error("panic recovered", "method", r.Method, "path", r.URL.Path, "recover", rec)
				writeJSON(w, http.StatusInternalServerError, nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

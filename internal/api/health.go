package api

import (
	"context"
	"net/http"
	"time"

	"github.com/oriys/mqs/internal/store"
)

// healthHandler reports "green" when the repository is reachable and
// "red" otherwise; it always replies with status 200, leaving callers
// to check the body rather than the status code.
func healthHandler(repo store.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		if err := repo.Ping(ctx); err != nil {
			w.Write([]byte("red"))
			return
		}
		w.Write([]byte("green"))
	}
}

package v1

import (
	"net/http"
	"sync/atomic"
)

// HealthzHandler reports liveness. It answers 200 as long as the process
// serves HTTP.
func HealthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}
}

// ReadyzHandler returns 200 when server is ready, 503 otherwise.
//
// The ready flag is set by the app runtime after the listener is bound and
// the job workers are running. It is cleared again on shutdown.
func ReadyzHandler(ready *atomic.Bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ready != nil && ready.Load() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("Ready"))
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("Not Ready"))
		}
	}
}

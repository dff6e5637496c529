package localserver

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
)

type statusRecorder struct {
	http.ResponseWriter
	Status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.Status = status
	r.ResponseWriter.WriteHeader(status)
}

func (ls *localServer) requestLoggingHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, Status: 200}

		// Correlates a host app request with the agent's log lines
		requestID := uuid.NewString()
		w.Header().Set("X-Request-Id", requestID)

		defer func() {
			ls.slogger.Log(r.Context(), slog.LevelDebug,
				"request log",
				"request_id", requestID,
				"path", r.URL.Path,
				"method", r.Method,
				"status", recorder.Status,
			)
		}()

		next.ServeHTTP(recorder, r)
	})
}

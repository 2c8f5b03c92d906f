package middleware

import (
	"net/http"
	"time"

	"ride-dispatch/internal/shared/util"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Logging prints one access-log line per request.
func Logging(log *util.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.HTTP(rec.status, time.Since(start), r.Host, r.Method, r.URL.Path)
	})
}

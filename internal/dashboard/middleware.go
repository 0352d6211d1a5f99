package dashboard

import (
	"net/http"
	"strconv"
	"time"
)

// requireAuth gates a handler on an active session. Without one the
// request is sent back to the sign-in page, mirroring the 401 teardown
// on the upstream side.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.sessions.IsActive() {
			s.logger.Debug("unauthenticated request, redirecting", "path", r.URL.Path)
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		next(w, r)
	}
}

// statusRecorder captures the response status for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// withMetrics instruments a handler with request count, duration and
// in-flight gauges. The route pattern is used as the path label so
// cardinality stays bounded.
func (s *Server) withMetrics(pattern string, next http.HandlerFunc) http.HandlerFunc {
	if s.metrics == nil {
		return next
	}

	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		s.metrics.HTTPRequestsInFlight.WithLabelValues(r.Method, pattern).Inc()
		defer s.metrics.HTTPRequestsInFlight.WithLabelValues(r.Method, pattern).Dec()

		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(recorder, r)

		s.metrics.HTTPRequestsTotal.WithLabelValues(
			r.Method, pattern, strconv.Itoa(recorder.status)).Inc()
		s.metrics.HTTPRequestDuration.WithLabelValues(
			r.Method, pattern).Observe(time.Since(start).Seconds())
	}
}

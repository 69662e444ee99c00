package api

import (
	"context"
	"net/http"
	"time"

	"github.com/platinummonkey/dernek/pkg/httputil"
	"github.com/platinummonkey/dernek/pkg/observability"
)

const readinessTimeout = 3 * time.Second

// liveness always answers 200 while the process serves requests
func (s *Server) liveness(w http.ResponseWriter, r *http.Request) {
	_ = httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": observability.StatusHealthy})
}

// readiness pings the registered dependencies. Only an unhealthy critical dependency fails it.
func (s *Server) readiness(w http.ResponseWriter, r *http.Request) {
	if s.deps.Health == nil {
		s.liveness(w, r)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	status := s.deps.Health.Check(ctx)
	code := http.StatusOK
	if status.Status == observability.StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	_ = httputil.WriteJSON(w, code, status)
}

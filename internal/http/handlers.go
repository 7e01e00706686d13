package http

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"babywallet/internal/log"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	}).Write(w)
}

// schemaVersioner is implemented by stores that track migrations.
type schemaVersioner interface {
	SchemaVersion(ctx context.Context) (uint, bool, error)
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	code := http.StatusOK
	checks := map[string]string{"store": "ok"}

	if err := s.svc.Store().Ping(ctx); err != nil {
		s.logger.WarnContext(ctx, "Readiness check failed",
			log.FieldComponent, log.ComponentStorage,
			log.FieldError, err.Error())
		checks["store"] = "unavailable"
		status = "not_ready"
		code = http.StatusServiceUnavailable
	}

	if v, ok := s.svc.Store().(schemaVersioner); ok {
		version, dirty, err := v.SchemaVersion(ctx)
		switch {
		case err != nil:
			s.logger.WarnContext(ctx, "Schema version check failed",
				log.FieldComponent, log.ComponentStorage,
				log.FieldError, err.Error())
			checks["schema"] = "unavailable"
		case dirty:
			checks["schema"] = fmt.Sprintf("dirty at %d", version)
		default:
			checks["schema"] = strconv.FormatUint(uint64(version), 10)
		}
		if err != nil || dirty {
			status = "not_ready"
			code = http.StatusServiceUnavailable
		}
	}

	NewJSONResponse().Status(code).Body(map[string]any{
		"status": status,
		"checks": checks,
	}).Write(w)
}

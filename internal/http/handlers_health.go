package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"billing/internal/log"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.startedAt).Round(time.Second).String(),
	})
}

// handleReady checks templates and every registered dependency.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	for _, rc := range s.readiness {
		if err := rc.Check(ctx); err != nil {
			checks[rc.Name] = fmt.Sprintf("failed: %v", err)
			status = "not_ready"
			httpStatus = http.StatusServiceUnavailable
			s.logger.WarnContext(r.Context(), "Readiness check failed", "check", rc.Name, log.FieldError, err)
			continue
		}
		checks[rc.Name] = "ok"
	}

	checks["view_cache"] = map[string]any{
		"entries": s.viewCache.Size(),
		"status":  "ok",
	}
	checks["rate_limiter"] = map[string]any{
		"active_clients": s.rateLimiter.ActiveClients(),
		"status":         "ok",
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"revision":  s.svc.Revision(),
		"checks":    checks,
	})
}

// handleMetrics writes counters in the Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	traceMetrics := s.traceMiddleware.GetMetrics()
	rateLimitMetrics := s.rateLimiter.GetMetrics()
	cacheStats := s.viewCache.Stats()

	invoices := -1
	if summary, err := s.svc.Summary(r.Context()); err == nil {
		invoices = summary.Count
	} else {
		s.logger.WarnContext(r.Context(), "Metrics could not count invoices", log.FieldError, err)
	}

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	metric := func(name, kind, help string, value any) {
		fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		fmt.Fprintf(w, "# TYPE %s %s\n", name, kind)
		fmt.Fprintf(w, "%s %v\n\n", name, value)
	}

	metric("http_requests_total", "counter", "Total number of HTTP requests", traceMetrics.TotalRequests)
	metric("http_client_errors_total", "counter", "Responses with a 4xx status", traceMetrics.ClientErrors)
	metric("http_server_errors_total", "counter", "Responses with a 5xx status", traceMetrics.ServerErrors)
	metric("http_request_duration_avg_ms", "gauge", "Average response time in milliseconds", traceMetrics.AverageResponseTime.Milliseconds())

	metric("invoices", "gauge", "Invoices currently stored", invoices)
	metric("invoices_saved_total", "counter", "Invoices created or edited", s.invoicesSaved.Load())
	metric("invoices_deleted_total", "counter", "Confirmed invoice deletions", s.invoicesDeleted.Load())
	metric("store_revision", "gauge", "Store revision, bumped on every change", s.svc.Revision())
	metric("registrations_total", "counter", "Accepted registration forms", s.registrations.Load())

	metric("view_cache_hits_total", "counter", "View cache hits", cacheStats.Hits)
	metric("view_cache_misses_total", "counter", "View cache misses", cacheStats.Misses)
	metric("view_cache_evictions_total", "counter", "View cache evictions", cacheStats.Evictions)
	metric("view_cache_entries", "gauge", "Current view cache entries", cacheStats.Size)

	metric("rate_limited_requests_total", "counter", "Requests rejected by the rate limiter", rateLimitMetrics.LimitedRequests)
	metric("active_rate_limit_clients", "gauge", "Currently tracked rate limit clients", rateLimitMetrics.ClientCount)
	metric("suspicious_requests_total", "counter", "Suspicious requests detected", s.securityDetector.SuspiciousRequests())

	if s.publisherHealthy != nil {
		connected := 0
		if s.publisherHealthy() {
			connected = 1
		}
		metric("amqp_connected", "gauge", "Whether the invoice event publisher is connected", connected)
	}

	metric("uptime_seconds", "gauge", "Application uptime in seconds", int64(time.Since(s.startedAt).Seconds()))
}

// Package gateway - stats.go assembles the diagnostic report.
package gateway

import (
	"time"

	"github.com/compresr/assist-gateway/internal/cache"
	"github.com/compresr/assist-gateway/internal/monitoring"
	"github.com/compresr/assist-gateway/internal/queue"
)

// StatsResponse is the structured report behind the stats command.
type StatsResponse struct {
	monitoring.StatsResponse

	Cache     cache.Stats `json:"cache"`
	Queue     queue.Stats `json:"queue"`
	RateLimit struct {
		Remaining    int   `json:"remaining"`
		RetryAfterMs int64 `json:"retry_after_ms"`
	} `json:"rate_limit"`
	Backend struct {
		BaseURL   string `json:"base_url"`
		Probed    bool   `json:"probed"`
		Available bool   `json:"available"`
		Reason    string `json:"reason,omitempty"`
		CheckedAt string `json:"checked_at,omitempty"`
	} `json:"backend"`
}

// FullStats returns counters plus the state of every component.
func (g *Gateway) FullStats() StatsResponse {
	resp := StatsResponse{
		StatsResponse: g.metrics.FullStats(),
		Cache:         g.cache.Stats(),
		Queue:         g.queue.Stats(),
	}
	resp.RateLimit.Remaining = g.limiter.Remaining()
	resp.RateLimit.RetryAfterMs = g.limiter.RetryAfter().Milliseconds()

	resp.Backend.BaseURL = g.client.BaseURL()
	if st, ok := g.health.Status(); ok {
		resp.Backend.Probed = true
		resp.Backend.Available = st.Available
		resp.Backend.Reason = st.Reason
		resp.Backend.CheckedAt = st.CheckedAt.Format(time.RFC3339)
	}
	return resp
}

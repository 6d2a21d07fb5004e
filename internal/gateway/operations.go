package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tidwall/sjson"

	"github.com/compresr/assist-gateway/internal/transport"
)

// =============================================================================
// HEALTH
// =============================================================================

// HealthAsync reports backend availability through cb. The response is
// {"available":true,"checked_at":...}; an unhealthy backend is ErrUnavailable.
func (g *Gateway) HealthAsync(ctx context.Context, cb Callback) {
	g.start(ctx, &call{op: "health"}, cb, func(ctx context.Context, c *call, done Callback) {
		if err := g.gate(ctx); err != nil {
			done(nil, err)
			return
		}
		st, _ := g.health.Status()
		resp, err := sjson.SetBytes([]byte(`{"available":true}`), "checked_at", st.CheckedAt.Format(time.RFC3339))
		if err != nil {
			done(nil, err)
			return
		}
		done(resp, nil)
	})
}

// Health is the blocking form of HealthAsync.
func (g *Gateway) Health(ctx context.Context) (json.RawMessage, error) {
	return wait(ctx, func(cb Callback) { g.HealthAsync(ctx, cb) })
}

// =============================================================================
// GENERIC REQUEST
// =============================================================================

// RequestAsync POSTs body to endpoint. body must be JSON-encodable; it is sent
// as-is without secret redaction.
func (g *Gateway) RequestAsync(ctx context.Context, endpoint string, body any, cb Callback) {
	c := &call{op: "request", method: transport.MethodPost, endpoint: endpoint, body: body, cacheable: true}
	g.start(ctx, c, cb, func(ctx context.Context, c *call, done Callback) {
		if err := g.gate(ctx); err != nil {
			done(nil, err)
			return
		}
		g.dispatch(ctx, c, done)
	})
}

// Request is the blocking form of RequestAsync.
func (g *Gateway) Request(ctx context.Context, endpoint string, body any) (json.RawMessage, error) {
	return wait(ctx, func(cb Callback) { g.RequestAsync(ctx, endpoint, body, cb) })
}

// =============================================================================
// CODE OPERATIONS
// =============================================================================

// AnalyzeAsync sends code for analysis.
func (g *Gateway) AnalyzeAsync(ctx context.Context, code, fileType, filePath string, cb Callback) {
	g.codeOp(ctx, "analyze", EndpointAnalyze, code, fileType, filePath, nil, cb)
}

// Analyze is the blocking form of AnalyzeAsync.
func (g *Gateway) Analyze(ctx context.Context, code, fileType, filePath string) (json.RawMessage, error) {
	return wait(ctx, func(cb Callback) { g.AnalyzeAsync(ctx, code, fileType, filePath, cb) })
}

// OptimizeAsync asks the backend for optimization suggestions.
func (g *Gateway) OptimizeAsync(ctx context.Context, code, fileType, filePath string, cb Callback) {
	g.codeOp(ctx, "optimize", EndpointOptimize, code, fileType, filePath, nil, cb)
}

// Optimize is the blocking form of OptimizeAsync.
func (g *Gateway) Optimize(ctx context.Context, code, fileType, filePath string) (json.RawMessage, error) {
	return wait(ctx, func(cb Callback) { g.OptimizeAsync(ctx, code, fileType, filePath, cb) })
}

// GenerateTestsAsync asks the backend for tests. An empty framework lets the
// backend pick one.
func (g *Gateway) GenerateTestsAsync(ctx context.Context, code, fileType, filePath, framework string, cb Callback) {
	var extra map[string]string
	if framework != "" {
		extra = map[string]string{"framework": framework}
	}
	g.codeOp(ctx, "generate_tests", EndpointGenerateTests, code, fileType, filePath, extra, cb)
}

// GenerateTests is the blocking form of GenerateTestsAsync.
func (g *Gateway) GenerateTests(ctx context.Context, code, fileType, filePath, framework string) (json.RawMessage, error) {
	return wait(ctx, func(cb Callback) { g.GenerateTestsAsync(ctx, code, fileType, filePath, framework, cb) })
}

func (g *Gateway) codeOp(ctx context.Context, op, endpoint, code, fileType, filePath string, extra map[string]string, cb Callback) {
	c := &call{op: op, method: transport.MethodPost, endpoint: endpoint, cacheable: true}
	g.start(ctx, c, cb, func(ctx context.Context, c *call, done Callback) {
		if err := g.gate(ctx); err != nil {
			done(nil, err)
			return
		}
		clean, err := g.sanitizer.Sanitize(code)
		if err != nil {
			done(nil, err)
			return
		}
		body, err := g.codeBody(clean, fileType, filePath, extra)
		if err != nil {
			done(nil, err)
			return
		}
		c.body = body
		g.dispatch(ctx, c, done)
	})
}

// codeBody builds {"code":..,"file_type":..[,"file_path":..][,extra...]}.
// file_path is only included when the privacy settings allow it.
func (g *Gateway) codeBody(code, fileType, filePath string, extra map[string]string) (json.RawMessage, error) {
	body := []byte(`{}`)
	var err error
	if body, err = sjson.SetBytes(body, "code", code); err != nil {
		return nil, fmt.Errorf("building request body: %w", err)
	}
	if body, err = sjson.SetBytes(body, "file_type", fileType); err != nil {
		return nil, fmt.Errorf("building request body: %w", err)
	}
	if g.cfg.Privacy.SendFilePaths && filePath != "" {
		if body, err = sjson.SetBytes(body, "file_path", filePath); err != nil {
			return nil, fmt.Errorf("building request body: %w", err)
		}
	}
	for k, v := range extra {
		if body, err = sjson.SetBytes(body, k, v); err != nil {
			return nil, fmt.Errorf("building request body: %w", err)
		}
	}
	return json.RawMessage(body), nil
}

// =============================================================================
// METRICS
// =============================================================================

// GetMetricsAsync fetches backend metrics. Metrics are never cached.
func (g *Gateway) GetMetricsAsync(ctx context.Context, cb Callback) {
	c := &call{op: "metrics", method: transport.MethodGet, endpoint: EndpointMetrics}
	g.start(ctx, c, cb, func(ctx context.Context, c *call, done Callback) {
		if err := g.gate(ctx); err != nil {
			done(nil, err)
			return
		}
		g.dispatch(ctx, c, done)
	})
}

// GetMetrics is the blocking form of GetMetricsAsync.
func (g *Gateway) GetMetrics(ctx context.Context) (json.RawMessage, error) {
	return wait(ctx, func(cb Callback) { g.GetMetricsAsync(ctx, cb) })
}

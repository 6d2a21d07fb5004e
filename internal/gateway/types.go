// Package gateway types - types shared by the facade operations.
package gateway

import (
	"encoding/json"

	"github.com/compresr/assist-gateway/internal/transport"
)

// =============================================================================
// ENDPOINTS
// =============================================================================

const (
	EndpointAnalyze       = "/api/analyze"
	EndpointOptimize      = "/api/optimize"
	EndpointGenerateTests = "/api/generate-tests"
	EndpointMetrics       = "/api/metrics"
)

// =============================================================================
// CALLBACKS
// =============================================================================

// Callback receives the outcome of an async operation. Exactly one of resp
// and err is non-nil. It is called exactly once, on a goroutine owned by the
// gateway.
type Callback func(resp json.RawMessage, err error)

// =============================================================================
// PIPELINE CONTEXT - Carries one call through the pipeline
// =============================================================================

// call is one logical operation travelling through the pipeline.
type call struct {
	op        string // operation name for logs and errors
	id        string // request id, sent as X-Request-ID
	method    string
	endpoint  string
	body      any
	cacheable bool
}

func (c *call) request() transport.Request {
	return transport.Request{
		Method:    c.method,
		Endpoint:  c.endpoint,
		Body:      c.body,
		RequestID: c.id,
	}
}

// Package config - defaults.go centralizes magic numbers and default values.
//
// DESIGN: All default values that appear in multiple places should be defined here.
// This makes configuration more maintainable and auditable.
package config

import "time"

// =============================================================================
// BACKEND
// =============================================================================

// DefaultBaseURL is the local intelligence backend address.
const DefaultBaseURL = "http://127.0.0.1:8765"

// DefaultCommand is the HTTP client binary invoked by the transport.
const DefaultCommand = "curl"

// DefaultRequestTimeoutMs bounds every backend request.
const DefaultRequestTimeoutMs = 30000

// DefaultHealthTimeoutMs is the short timeout used by the health probe.
const DefaultHealthTimeoutMs = 2000

// HealthTTL is how long a health probe result is reused.
const HealthTTL = 30 * time.Second

// APIKeyEnv is the environment variable holding the backend API key.
const APIKeyEnv = "ASSIST_GATEWAY_API_KEY"

// BaseURLEnv overrides the backend base URL.
const BaseURLEnv = "ASSIST_GATEWAY_BASE_URL"

// =============================================================================
// CACHE
// =============================================================================

// DefaultCacheTTLSeconds is how long a backend response is served from cache.
const DefaultCacheTTLSeconds = 300

// DefaultCacheMaxEntries caps the response cache.
const DefaultCacheMaxEntries = 100

// =============================================================================
// RATE LIMITING
// =============================================================================

// DefaultMaxRequestsPerWindow is the number of admissions per window.
const DefaultMaxRequestsPerWindow = 30

// DefaultWindowSeconds is the sliding window length.
const DefaultWindowSeconds = 60

// DefaultBurstSize is accepted for forward compatibility; admission ignores it.
const DefaultBurstSize = 5

// =============================================================================
// BACKPRESSURE QUEUE
// =============================================================================

// DefaultQueueMaxSize bounds the number of deferred requests.
const DefaultQueueMaxSize = 50

// DefaultBackoffBaseMs is the first retry delay after a denied admission.
const DefaultBackoffBaseMs = 1000

// DefaultBackoffMaxMs caps the exponential retry delay.
const DefaultBackoffMaxMs = 30000

// QueueYield is the pause between two dispatched queue items.
const QueueYield = time.Millisecond

// =============================================================================
// PRIVACY
// =============================================================================

// DefaultMaxPayloadBytes is the largest sanitized payload sent upstream (100KB).
const DefaultMaxPayloadBytes = 100 * 1024

// MaxErrorBodyLogLen limits backend output quoted in logs to prevent bloat.
const MaxErrorBodyLogLen = 500

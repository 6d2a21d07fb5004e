// Package gateway - errors.go defines the failure taxonomy of the facade.
//
// Errors owned by component packages (sanitize, queue, transport) are returned
// as-is so callers can match them with errors.Is/As; Kind maps any of them to
// a stable name for logs, metrics and notifications.
package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/compresr/assist-gateway/internal/queue"
	"github.com/compresr/assist-gateway/internal/sanitize"
	"github.com/compresr/assist-gateway/internal/transport"
)

var (
	// ErrDisabled is returned by every operation when the gateway is turned off.
	ErrDisabled = errors.New("AI gateway is disabled")
	// ErrUnavailable is wrapped with the probe's reason when the backend is unhealthy.
	ErrUnavailable = errors.New("AI backend unavailable")
	// ErrRateLimited is returned when admission is denied and queueing is off.
	ErrRateLimited = errors.New("rate limit exceeded")
	// ErrClosed is returned for calls made after Close and for requests still queued at Close.
	ErrClosed = queue.ErrClosed
)

// UnexpectedError is a fault caught by the error boundary.
type UnexpectedError struct {
	Op    string
	Value any // the recovered panic value
}

func (e *UnexpectedError) Error() string {
	return fmt.Sprintf("unexpected error in %s: %v", e.Op, e.Value)
}

// Unwrap exposes the panic value when it was itself an error.
func (e *UnexpectedError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// Error kinds returned by Kind.
const (
	KindDisabled        = "disabled"
	KindUnavailable     = "unavailable"
	KindEmptyPayload    = "empty_payload"
	KindPayloadTooLarge = "payload_too_large"
	KindRateLimited     = "rate_limited"
	KindQueueFull       = "queue_full"
	KindQueueTimeout    = "queue_timeout"
	KindClosed          = "closed"
	KindEncode          = "encode_error"
	KindRequestFailed   = "request_failed"
	KindDecode          = "decode_error"
	KindCanceled        = "canceled"
	KindUnexpected      = "unexpected"
)

// Kind names the taxonomy entry of err. It returns "" for nil.
func Kind(err error) string {
	if err == nil {
		return ""
	}

	var (
		unexpected *UnexpectedError
		tooLarge   *sanitize.PayloadTooLargeError
		encodeErr  *transport.EncodeError
		failed     *transport.RequestFailedError
		decodeErr  *transport.DecodeError
	)
	switch {
	case errors.As(err, &unexpected):
		return KindUnexpected
	case errors.Is(err, ErrDisabled):
		return KindDisabled
	case errors.Is(err, ErrUnavailable):
		return KindUnavailable
	case errors.Is(err, sanitize.ErrEmptyPayload):
		return KindEmptyPayload
	case errors.As(err, &tooLarge):
		return KindPayloadTooLarge
	case errors.Is(err, ErrRateLimited):
		return KindRateLimited
	case errors.Is(err, queue.ErrQueueFull):
		return KindQueueFull
	case errors.Is(err, queue.ErrQueueTimeout):
		return KindQueueTimeout
	case errors.Is(err, queue.ErrClosed):
		return KindClosed
	case errors.As(err, &encodeErr):
		return KindEncode
	case errors.As(err, &failed):
		return KindRequestFailed
	case errors.As(err, &decodeErr):
		return KindDecode
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	default:
		return KindUnexpected
	}
}

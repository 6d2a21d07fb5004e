// Package sanitize scrubs secrets from outgoing code payloads and enforces
// the maximum payload size.
//
// DESIGN: Redaction always runs before the size check. A payload that only
// fits after redaction is accepted, and size errors never describe content
// that still contains secrets.
//
// FILES:
//   - sanitize.go: Sanitizer and errors
//   - rules.go:    Ordered redaction rule table
package sanitize

import (
	"errors"
	"fmt"

	"github.com/compresr/assist-gateway/internal/config"
)

// ErrEmptyPayload is returned for an empty code payload.
var ErrEmptyPayload = errors.New("empty payload")

// PayloadTooLargeError reports a redacted payload above the configured limit.
type PayloadTooLargeError struct {
	Actual int
	Max    int
}

func (e *PayloadTooLargeError) Error() string {
	return fmt.Sprintf("payload too large: %d bytes exceeds limit of %d bytes", e.Actual, e.Max)
}

// Result is the outcome of a successful sanitization.
type Result struct {
	Code       string
	Redactions map[string]int // rule name -> matches replaced
}

// Redacted reports the total number of replacements.
func (r Result) Redacted() int {
	n := 0
	for _, c := range r.Redactions {
		n += c
	}
	return n
}

// Sanitizer applies a rule table and a size limit. It holds no mutable
// state and is safe for concurrent use.
type Sanitizer struct {
	rules    []Rule
	redact   bool
	maxBytes int
}

// New creates a sanitizer from the privacy settings using DefaultRules.
func New(cfg config.PrivacyConfig) *Sanitizer {
	return NewWithRules(cfg, DefaultRules)
}

// NewWithRules creates a sanitizer with a custom rule table.
func NewWithRules(cfg config.PrivacyConfig, rules []Rule) *Sanitizer {
	return &Sanitizer{
		rules:    rules,
		redact:   cfg.RedactSecrets,
		maxBytes: cfg.MaxPayloadBytes,
	}
}

// Sanitize returns code with secrets redacted.
func (s *Sanitizer) Sanitize(code string) (string, error) {
	res, err := s.SanitizeDetailed(code)
	if err != nil {
		return "", err
	}
	return res.Code, nil
}

// SanitizeDetailed is Sanitize plus per-rule redaction counts.
func (s *Sanitizer) SanitizeDetailed(code string) (Result, error) {
	if code == "" {
		return Result{}, ErrEmptyPayload
	}

	res := Result{Code: code}
	if s.redact {
		res.Code, res.Redactions = applyRules(s.rules, code)
	}

	if s.maxBytes > 0 && len(res.Code) > s.maxBytes {
		return Result{}, &PayloadTooLargeError{Actual: len(res.Code), Max: s.maxBytes}
	}
	return res, nil
}

// Redact applies DefaultRules to s without any size check.
func Redact(s string) string {
	out, _ := applyRules(DefaultRules, s)
	return out
}

func applyRules(rules []Rule, s string) (string, map[string]int) {
	var counts map[string]int
	for _, r := range rules {
		n := 0
		s = r.Pattern.ReplaceAllStringFunc(s, func(match string) string {
			if r.Accept != nil && !r.Accept(match) {
				return match
			}
			repl := r.Pattern.ReplaceAllString(match, r.Replacement)
			if repl != match {
				n++
			}
			return repl
		})
		if n > 0 {
			if counts == nil {
				counts = make(map[string]int)
			}
			counts[r.Name] += n
		}
	}
	return s, counts
}

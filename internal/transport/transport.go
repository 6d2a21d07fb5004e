// Package transport executes one backend request per process invocation.
//
// DESIGN: Every request is an argument vector handed to exec without a shell.
// Method, headers and URL are discrete argv elements and the JSON body is
// streamed to the HTTP client's stdin (curl --data-binary @-), so request
// content can never be parsed as shell syntax or as a command-line flag.
//
// FILES:
//   - transport.go: Client, argv construction, response validation
//   - runner.go:    Runner interface and the os/exec implementation
//   - errors.go:    EncodeError, RequestFailedError, DecodeError
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"

	"github.com/compresr/assist-gateway/internal/config"
	"github.com/compresr/assist-gateway/internal/utils"
)

// curlTimeoutExit is curl's exit status for "operation timed out".
const curlTimeoutExit = 28

const (
	MethodGet  = "GET"
	MethodPost = "POST"
)

// Request is one backend call.
type Request struct {
	Method    string // defaults to POST
	Endpoint  string // path appended to the base URL, e.g. /api/analyze
	Body      any    // JSON-encodable; nil sends no body
	RequestID string // sent as X-Request-ID when set
}

// Client builds and runs backend requests.
type Client struct {
	runner  Runner
	command string
	baseURL string
	apiKey  string
}

// Option configures a Client.
type Option func(*Client)

// WithRunner replaces the process runner.
func WithRunner(r Runner) Option {
	return func(c *Client) {
		c.runner = r
	}
}

// New creates a client for the configured backend.
func New(cfg config.BackendConfig, opts ...Option) *Client {
	c := &Client{
		runner:  ExecRunner{},
		command: cfg.Command,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
	}
	if c.command == "" {
		c.command = config.DefaultCommand
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Execute sends req and returns the JSON response body.
//
// Errors: *EncodeError when Body cannot be serialized, *RequestFailedError on
// timeout or non-zero exit, *DecodeError when stdout is not JSON.
func (c *Client) Execute(ctx context.Context, req Request, timeout time.Duration) (json.RawMessage, error) {
	var body []byte
	if req.Body != nil {
		b, err := utils.MarshalNoEscape(req.Body)
		if err != nil {
			return nil, &EncodeError{Err: err}
		}
		body = b
	}

	argv := c.Argv(req, timeout, body != nil)
	log.Debug().
		Str("request_id", req.RequestID).
		Str("cmd", c.DisplayCommand(argv)).
		Int("body_bytes", len(body)).
		Msg("transport: executing request")

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	res, err := c.runner.Run(runCtx, argv, body)
	elapsed := time.Since(start)

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			log.Warn().Str("request_id", req.RequestID).Dur("timeout", timeout).Msg("transport: request timed out")
			return nil, &RequestFailedError{ExitCode: -1, Timeout: true, Err: context.DeadlineExceeded}
		}
		return nil, &RequestFailedError{ExitCode: -1, Err: err}
	}

	if res.ExitCode != 0 {
		log.Warn().
			Str("request_id", req.RequestID).
			Int("exit_code", res.ExitCode).
			Str("stderr", truncate(res.Stderr)).
			Str("body", truncate(res.Stdout)).
			Msg("transport: request failed")
		return nil, &RequestFailedError{ExitCode: res.ExitCode, Timeout: res.ExitCode == curlTimeoutExit}
	}

	out := bytes.TrimSpace(res.Stdout)
	if len(out) == 0 || !gjson.ValidBytes(out) {
		log.Warn().Str("request_id", req.RequestID).Int("bytes", len(out)).Msg("transport: response is not JSON")
		return nil, &DecodeError{Size: len(out)}
	}

	log.Debug().
		Str("request_id", req.RequestID).
		Dur("elapsed", elapsed).
		Int("response_bytes", len(out)).
		Msg("transport: request completed")

	return json.RawMessage(append([]byte(nil), out...)), nil
}

// Argv returns the argument vector for req. When hasBody is true the body is
// expected on stdin.
func (c *Client) Argv(req Request, timeout time.Duration, hasBody bool) []string {
	method := req.Method
	if method == "" {
		method = MethodPost
	}

	argv := []string{
		c.command,
		"--silent", "--show-error",
		"--fail-with-body",
		"--request", method,
		"--header", "Accept: application/json",
	}
	if hasBody {
		argv = append(argv, "--header", "Content-Type: application/json")
	}
	if c.apiKey != "" {
		argv = append(argv, "--header", "X-API-Key: "+c.apiKey)
	}
	if req.RequestID != "" {
		argv = append(argv, "--header", "X-Request-ID: "+req.RequestID)
	}
	if timeout > 0 {
		argv = append(argv, "--max-time", fmt.Sprintf("%.3f", timeout.Seconds()))
	}
	if hasBody {
		argv = append(argv, "--data-binary", "@-")
	}
	// "--url" keeps an endpoint starting with "-" from being read as a flag.
	argv = append(argv, "--url", c.baseURL+req.Endpoint)
	return argv
}

// DisplayCommand renders argv as a copy-pasteable command line for logs.
// The API key is masked. The result is never executed.
func (c *Client) DisplayCommand(argv []string) string {
	parts := make([]string, len(argv))
	for i, arg := range argv {
		if c.apiKey != "" && strings.Contains(arg, c.apiKey) {
			arg = strings.ReplaceAll(arg, c.apiKey, utils.MaskKey(c.apiKey))
		}
		parts[i] = utils.ShellQuote(arg)
	}
	return strings.Join(parts, " ")
}

func truncate(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > config.MaxErrorBodyLogLen {
		return s[:config.MaxErrorBodyLogLen] + "..."
	}
	return s
}

// Serve mode - a long-lived gateway driven over stdio.
//
// Each stdin line is one JSON request:
//
//	{"id":1,"op":"analyze","code":"...","file_type":"go","file_path":"main.go"}
//
// Each stdout line is a response or a notification:
//
//	{"id":1,"result":{...}}
//	{"id":1,"error":{"kind":"rate_limited","message":"..."}}
//	{"notify":{"level":"warn","message":"..."}}
//
// Requests run concurrently; responses are written in completion order.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/compresr/assist-gateway/internal/gateway"
	"github.com/compresr/assist-gateway/internal/host"
	"github.com/compresr/assist-gateway/internal/monitoring"
)

const (
	kindInvalidRequest = "invalid_request"
	maxLineBytes       = 16 * 1024 * 1024
)

func runServe(args []string) int {
	opts, err := parseArgs(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if opts.help {
		printHelp()
		return 0
	}

	srv := newServer(os.Stdout)
	gw, err := setup(opts, gateway.WithNotifier(host.NotifierFunc(srv.notify)))
	if err != nil {
		printError(err.Error())
		return 1
	}
	srv.gw = gw
	defer func() { _ = gw.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.metricsAddr != "" {
		httpSrv := metricsServer(opts.metricsAddr, gw)
		go func() {
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Str("addr", opts.metricsAddr).Msg("serve: metrics server failed")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = httpSrv.Shutdown(shutdownCtx)
		}()
		printInfo("Metrics on http://" + opts.metricsAddr + "/metrics")
	}

	printSuccess("Gateway ready, reading requests from stdin")

	errCh := make(chan error, 1)
	go func() { errCh <- srv.serve(ctx, os.Stdin) }()

	select {
	case err := <-errCh:
		if err != nil {
			printError(err.Error())
			return 1
		}
	case <-ctx.Done():
		printInfo("Shutting down")
	}
	return 0
}

// metricsServer exposes the gateway's counters in Prometheus format.
func metricsServer(addr string, gw *gateway.Gateway) *http.Server {
	reg := prometheus.NewRegistry()
	reg.MustRegister(monitoring.NewCollector(gw.Metrics(), gw.Gauges))

	mux := http.NewServeMux()
	mux.Handle("/metrics", monitoring.Handler(reg))
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// server dispatches stdin requests onto the async gateway API.
type server struct {
	gw *gateway.Gateway

	mu  sync.Mutex
	out io.Writer

	wg sync.WaitGroup
}

func newServer(out io.Writer) *server {
	return &server{out: out}
}

// serve reads requests until EOF, then waits for in-flight calls.
func (s *server) serve(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		s.handle(ctx, line)
	}
	s.wg.Wait()

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading requests: %w", err)
	}
	return nil
}

// handle starts one request. The reply is written when it completes.
func (s *server) handle(ctx context.Context, line []byte) {
	if !gjson.ValidBytes(line) {
		s.writeError("", kindInvalidRequest, "request is not valid JSON")
		return
	}
	req := gjson.ParseBytes(line)
	id := req.Get("id").Raw

	s.wg.Add(1)
	cb := func(resp json.RawMessage, err error) {
		defer s.wg.Done()
		if err != nil {
			s.writeError(id, gateway.Kind(err), err.Error())
			return
		}
		s.writeResult(id, resp)
	}

	code := req.Get("code").String()
	fileType := req.Get("file_type").String()
	filePath := req.Get("file_path").String()

	switch op := req.Get("op").String(); op {
	case "health":
		s.gw.HealthAsync(ctx, cb)
	case "analyze":
		s.gw.AnalyzeAsync(ctx, code, fileType, filePath, cb)
	case "optimize":
		s.gw.OptimizeAsync(ctx, code, fileType, filePath, cb)
	case "generate_tests":
		s.gw.GenerateTestsAsync(ctx, code, fileType, filePath, req.Get("framework").String(), cb)
	case "metrics":
		s.gw.GetMetricsAsync(ctx, cb)
	case "request":
		endpoint := req.Get("endpoint").String()
		body := req.Get("body")
		if endpoint == "" || !body.Exists() {
			s.wg.Done()
			s.writeError(id, kindInvalidRequest, "request needs endpoint and body")
			return
		}
		s.gw.RequestAsync(ctx, endpoint, json.RawMessage(body.Raw), cb)
	case "stats":
		data, err := json.Marshal(s.gw.FullStats())
		cb(data, err)
	case "clear_cache":
		s.gw.ClearCache()
		cb(json.RawMessage(`{"cleared":true}`), nil)
	default:
		s.wg.Done()
		s.writeError(id, kindInvalidRequest, fmt.Sprintf("unknown op: %q", op))
	}
}

// notify forwards gateway notifications to the client.
func (s *server) notify(message string, level host.Level) {
	out := []byte(`{}`)
	out, _ = sjson.SetBytes(out, "notify.level", level.String())
	out, _ = sjson.SetBytes(out, "notify.message", message)
	s.writeLine(out)
}

func (s *server) writeResult(id string, resp json.RawMessage) {
	out := withID(id)
	raw := []byte(resp)
	if len(raw) == 0 {
		raw = []byte("null")
	}
	out, err := sjson.SetRawBytes(out, "result", raw)
	if err != nil {
		s.writeError(id, gateway.KindDecode, err.Error())
		return
	}
	s.writeLine(out)
}

func (s *server) writeError(id, kind, message string) {
	out := withID(id)
	out, _ = sjson.SetBytes(out, "error.kind", kind)
	out, _ = sjson.SetBytes(out, "error.message", message)
	s.writeLine(out)
}

func (s *server) writeLine(line []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.out.Write(append(line, '\n')); err != nil {
		log.Warn().Err(err).Msg("serve: failed to write response")
	}
}

// withID starts a reply object echoing the request id, if there was one.
func withID(id string) []byte {
	out := []byte(`{}`)
	if id != "" {
		out, _ = sjson.SetRawBytes(out, "id", []byte(id))
	}
	return out
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/term"

	"github.com/compresr/assist-gateway/internal/gateway"
	"github.com/compresr/assist-gateway/internal/tui"
)

var errUsage = errors.New("usage error")

// runOneShot executes a single command and prints its JSON result.
func runOneShot(cmd string, args []string) int {
	opts, err := parseArgs(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if opts.help {
		printHelp()
		return 0
	}
	if opts.metricsAddr != "" {
		printWarn("--metrics-addr is only used by 'serve'")
	}

	gw, err := setup(opts)
	if err != nil {
		printError(err.Error())
		return 1
	}
	defer func() { _ = gw.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cmd == "stats" && !opts.jsonOut && term.IsTerminal(int(os.Stdout.Fd())) {
		tui.RenderStatus(os.Stdout, gw.FullStats(), gw.Config().RateLimit.MaxRequestsPerWindow, time.Now(), true)
		return 0
	}

	resp, err := runCommand(ctx, gw, cmd, opts, os.Stdin)
	if err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		printError(fmt.Sprintf("%s: %v", gateway.Kind(err), err))
		return 1
	}
	if err := writeJSON(os.Stdout, resp); err != nil {
		printError(err.Error())
		return 1
	}
	return 0
}

// runCommand maps a CLI command onto the blocking gateway facade.
func runCommand(ctx context.Context, gw *gateway.Gateway, cmd string, opts cliOptions, stdin io.Reader) (json.RawMessage, error) {
	switch cmd {
	case "health":
		return gw.Health(ctx)

	case "metrics":
		return gw.GetMetrics(ctx)

	case "stats":
		return json.Marshal(gw.FullStats())

	case "analyze", "optimize", "tests":
		src, err := readSource(opts, stdin)
		if err != nil {
			return nil, err
		}
		switch cmd {
		case "analyze":
			return gw.Analyze(ctx, src.code, src.fileType, src.path)
		case "optimize":
			return gw.Optimize(ctx, src.code, src.fileType, src.path)
		default:
			return gw.GenerateTests(ctx, src.code, src.fileType, src.path, opts.framework)
		}

	case "request":
		if len(opts.positional) != 2 {
			return nil, fmt.Errorf("%w: request requires ENDPOINT and JSON", errUsage)
		}
		endpoint, body := opts.positional[0], opts.positional[1]
		if !strings.HasPrefix(endpoint, "/") {
			return nil, fmt.Errorf("%w: endpoint must start with '/': %s", errUsage, endpoint)
		}
		if !gjson.Valid(body) {
			return nil, fmt.Errorf("%w: body is not valid JSON", errUsage)
		}
		return gw.Request(ctx, endpoint, json.RawMessage(body))
	}
	return nil, fmt.Errorf("%w: unknown command: %s", errUsage, cmd)
}

type source struct {
	code     string
	fileType string
	path     string
}

// readSource reads the FILE argument, or stdin when it is "-".
func readSource(opts cliOptions, stdin io.Reader) (source, error) {
	if len(opts.positional) != 1 {
		return source{}, fmt.Errorf("%w: expected exactly one FILE argument", errUsage)
	}
	path := opts.positional[0]

	var data []byte
	var err error
	if path == "-" {
		if opts.fileType == "" {
			return source{}, fmt.Errorf("%w: --type is required when reading from stdin", errUsage)
		}
		data, err = io.ReadAll(stdin)
		path = ""
	} else {
		// #nosec G304 -- path is supplied by the operator
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return source{}, fmt.Errorf("reading source: %w", err)
	}

	ft := opts.fileType
	if ft == "" {
		ft = fileTypeFor(path)
	}
	return source{code: string(data), fileType: ft, path: path}, nil
}

package main

import (
	"fmt"
	"os"
)

// Version is set at build time with -ldflags "-X main.Version=...".
var Version = "dev"

func main() {
	if len(os.Args) < 2 {
		printHelp()
		os.Exit(1)
	}

	cmd, args := os.Args[1], os.Args[2:]
	switch cmd {
	case "-h", "--help", "help":
		printHelp()
	case "-v", "--version", "version":
		fmt.Println("assist-gateway", Version)
	case "serve":
		os.Exit(runServe(args))
	case "health", "analyze", "optimize", "tests", "metrics", "request", "stats":
		os.Exit(runOneShot(cmd, args))
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command: %s\n\n", cmd)
		printHelp()
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Println("AI request gateway for editor integrations")
	fmt.Println()
	fmt.Println("Usage: assist-gateway COMMAND [OPTIONS] [ARGS]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve                     Read JSON requests from stdin, one per line")
	fmt.Println("  health                    Probe the backend")
	fmt.Println("  analyze FILE              Analyze a source file")
	fmt.Println("  optimize FILE             Suggest optimizations for a source file")
	fmt.Println("  tests FILE                Generate tests for a source file")
	fmt.Println("  metrics                   Fetch backend metrics")
	fmt.Println("  request ENDPOINT JSON     POST a raw JSON body to an endpoint")
	fmt.Println("  stats                     Print gateway configuration and counters")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  -c, --config FILE         Config file (YAML)")
	fmt.Println("  -d, --debug               Enable debug logging")
	fmt.Println("  -t, --type TYPE           File type (default: from extension)")
	fmt.Println("  --framework NAME          Test framework for 'tests'")
	fmt.Println("  --json                    Print stats as JSON even on a terminal")
	fmt.Println("  --metrics-addr ADDR       Serve Prometheus metrics on ADDR (serve only)")
	fmt.Println("  -h, --help                Show this help")
	fmt.Println()
	fmt.Println("Environment:")
	fmt.Println("  ASSIST_GATEWAY_API_KEY    Backend API key")
	fmt.Println("  ASSIST_GATEWAY_BASE_URL   Backend base URL")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  assist-gateway health")
	fmt.Println("  assist-gateway analyze main.go")
	fmt.Println("  assist-gateway tests calc.py --framework pytest")
	fmt.Println(`  assist-gateway request /api/explain '{"symbol":"main"}'`)
	fmt.Println("  assist-gateway serve --metrics-addr 127.0.0.1:9464")
}

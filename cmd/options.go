package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/compresr/assist-gateway/internal/config"
	"github.com/compresr/assist-gateway/internal/gateway"
	"github.com/compresr/assist-gateway/internal/monitoring"
)

// cliOptions holds parsed command-line flags.
type cliOptions struct {
	configPath  string
	debug       bool
	fileType    string
	framework   string
	metricsAddr string
	jsonOut     bool
	help        bool
	positional  []string
}

// parseArgs parses flags and positional arguments. Flags may appear anywhere.
func parseArgs(args []string) (cliOptions, error) {
	var opts cliOptions

	value := func(i int, flag string) (string, error) {
		if i+1 < len(args) {
			return args[i+1], nil
		}
		return "", fmt.Errorf("%s requires a value", flag)
	}

	i := 0
	for i < len(args) {
		arg := args[i]
		switch arg {
		case "-h", "--help":
			opts.help = true
			i++
		case "-d", "--debug":
			opts.debug = true
			i++
		case "--json":
			opts.jsonOut = true
			i++
		case "-c", "--config":
			v, err := value(i, arg)
			if err != nil {
				return opts, err
			}
			opts.configPath = v
			i += 2
		case "-t", "--type":
			v, err := value(i, arg)
			if err != nil {
				return opts, err
			}
			opts.fileType = v
			i += 2
		case "--framework":
			v, err := value(i, arg)
			if err != nil {
				return opts, err
			}
			opts.framework = v
			i += 2
		case "--metrics-addr":
			v, err := value(i, arg)
			if err != nil {
				return opts, err
			}
			opts.metricsAddr = v
			i += 2
		case "--":
			opts.positional = append(opts.positional, args[i+1:]...)
			i = len(args)
		default:
			if strings.HasPrefix(arg, "-") && arg != "-" {
				return opts, fmt.Errorf("unknown option: %s", arg)
			}
			opts.positional = append(opts.positional, arg)
			i++
		}
	}
	return opts, nil
}

// loadConfig loads the config and applies CLI overrides.
func loadConfig(opts cliOptions) (config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if opts.debug {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

// setup loads configuration, initializes logging and builds the gateway.
func setup(opts cliOptions, gwOpts ...gateway.Option) (*gateway.Gateway, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	monitoring.InitLogger(cfg.Log.Level, cfg.Log.Pretty)
	return gateway.New(cfg, gwOpts...)
}

var fileTypes = map[string]string{
	".go":    "go",
	".py":    "python",
	".js":    "javascript",
	".jsx":   "javascript",
	".mjs":   "javascript",
	".ts":    "typescript",
	".tsx":   "typescript",
	".rs":    "rust",
	".lua":   "lua",
	".rb":    "ruby",
	".java":  "java",
	".kt":    "kotlin",
	".c":     "c",
	".h":     "c",
	".cc":    "cpp",
	".cpp":   "cpp",
	".hpp":   "cpp",
	".cs":    "csharp",
	".php":   "php",
	".sh":    "sh",
	".swift": "swift",
	".sql":   "sql",
}

// fileTypeFor maps a path to the editor-style file type name.
func fileTypeFor(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ft, ok := fileTypes[ext]; ok {
		return ft
	}
	return strings.TrimPrefix(ext, ".")
}

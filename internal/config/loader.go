package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// envRefPattern matches ${VAR} and ${VAR:-default}.
var envRefPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// ExpandEnvWithDefaults replaces ${VAR} and ${VAR:-default} references.
// Unset variables without a default expand to the empty string.
func ExpandEnvWithDefaults(s string) string {
	return envRefPattern.ReplaceAllStringFunc(s, func(ref string) string {
		m := envRefPattern.FindStringSubmatch(ref)
		if v, ok := os.LookupEnv(m[1]); ok && v != "" {
			return v
		}
		return m[2]
	})
}

// LoadEnvFiles loads .env files into the process environment.
// Existing variables win; missing files are ignored.
func LoadEnvFiles(paths ...string) {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Load(p)
		}
	}
}

// DefaultEnvFiles returns the .env locations checked by Load.
func DefaultEnvFiles() []string {
	files := []string{".env"}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		files = append(files, filepath.Join(home, ".config", "assist-gateway", ".env"))
	}
	return files
}

// Parse decodes YAML overrides, merges them with the defaults and validates.
func Parse(data []byte) (Config, error) {
	expanded := ExpandEnvWithDefaults(string(data))

	var p Partial
	if err := yaml.Unmarshal([]byte(expanded), &p); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg := applyEnv(Merge(Default(), p))
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Load reads the config at path. An empty path yields the defaults with
// environment overrides applied. .env files are loaded first.
func Load(path string) (Config, error) {
	LoadEnvFiles(DefaultEnvFiles()...)

	if path == "" {
		return Parse(nil)
	}

	// #nosec G304 -- path is supplied by the operator
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("config file not found: %s", path)
		}
		return Config{}, fmt.Errorf("reading config: %w", err)
	}
	return Parse(data)
}

// applyEnv fills backend settings from the environment when the file left them unset.
func applyEnv(cfg Config) Config {
	if cfg.Backend.APIKey == "" {
		cfg.Backend.APIKey = strings.TrimSpace(os.Getenv(APIKeyEnv))
	}
	if v := strings.TrimSpace(os.Getenv(BaseURLEnv)); v != "" && cfg.Backend.BaseURL == DefaultBaseURL {
		cfg.Backend.BaseURL = v
	}
	cfg.Backend.BaseURL = strings.TrimRight(cfg.Backend.BaseURL, "/")
	return cfg
}

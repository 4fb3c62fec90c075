package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration values. Server address and session token
// persist in the config file; logging knobs come from the environment only.
type Config struct {
	ServerURL string `yaml:"serverUrl"`
	Email     string `yaml:"email,omitempty"`
	Token     string `yaml:"token,omitempty"`

	LogFile  string     `yaml:"-"`
	LogLevel slog.Level `yaml:"-"`
}

// Path returns the config file location, ~/.config/doctran/config.yaml on
// most systems.
func Path() (string, error) {
	if p := os.Getenv("DOCTRAN_CONFIG"); p != "" {
		return p, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolving config dir: %w", err)
	}
	return filepath.Join(dir, "doctran", "config.yaml"), nil
}

// Load reads the config file (when present), a .env file in the working
// directory (when present), and environment variables, with the environment
// taking precedence.
func Load() (Config, error) {
	// Missing .env is the normal case.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Debug("skipping .env", "error", err)
	}

	cfg := Config{
		ServerURL: "http://localhost:8000",
		LogFile:   getEnv("DOCTRAN_LOG_FILE", filepath.Join(os.TempDir(), "doctran.log")),
		LogLevel:  parseLogLevel(getEnv("DOCTRAN_LOG_LEVEL", "INFO")),
	}

	path, err := Path()
	if err != nil {
		return cfg, err
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing %s: %w", path, err)
		}
	case !errors.Is(err, os.ErrNotExist):
		return cfg, fmt.Errorf("reading %s: %w", path, err)
	}

	if url := os.Getenv("DOCTRAN_SERVER_URL"); url != "" {
		cfg.ServerURL = url
	}
	if token := os.Getenv("DOCTRAN_TOKEN"); token != "" {
		cfg.Token = token
	}
	return cfg, nil
}

// Save writes the config file, creating its directory if needed. Mode 0600
// because the file carries the session token.
func (c Config) Save() error {
	path, err := Path()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Package config provides application configuration management with support for environment variables, command-line flags, and .env files.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config holds the application configuration.
type Config struct {
	App    AppConfig
	Logger LoggerConfig
	Client ClientConfig
	Dev    DevServerConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// ClientConfig holds the jam client configuration.
type ClientConfig struct {
	// ServerURL is the base URL of the jam server (HTTP API).
	ServerURL string
	// WSURL is the websocket endpoint for broadcast events.
	// Derived from ServerURL when not set explicitly.
	WSURL string
	// JamID is the jam session to open on startup.
	JamID string
	// DisplayName is this client's captain name, used to suppress
	// notifications about the client's own captain sign-ups.
	DisplayName string
	// HighlightDuration is how long a rank-change highlight stays visible.
	HighlightDuration time.Duration
	// Grouping enables banger/ballad grouping in the derived view.
	Grouping bool
	// SortMode is "votes" or "least-played".
	SortMode string
}

// DevServerConfig holds the development server configuration.
type DevServerConfig struct {
	Port         string
	DataPath     string        // Badger database directory
	ReadTimeout  time.Duration // HTTP read timeout (default: 15s)
	WriteTimeout time.Duration // HTTP write timeout (default: 15s)
	IdleTimeout  time.Duration // HTTP idle timeout (default: 60s)
}

// LoadConfig loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func LoadConfig() (*Config, error) {
	// Define command-line flags.
	env := flag.String("env", "", "Environment (development, staging, production)")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error)")
	serverURL := flag.String("server-url", "", "Base URL of the jam server")
	wsURL := flag.String("ws-url", "", "Websocket endpoint for broadcast events")
	jamID := flag.String("jam", "", "Jam session id to open")
	displayName := flag.String("name", "", "Display name for captain sign-ups")
	highlightDuration := flag.String("highlight-duration", "", "Rank-change highlight duration (default: 15s)")
	grouping := flag.String("grouping", "", "Group the queue by banger/ballad (default: true)")
	sortMode := flag.String("sort", "", "Queue sort mode: votes or least-played (default: votes)")

	devPort := flag.String("dev-port", "", "Development server port (default: 8080)")
	devDataPath := flag.String("dev-data-path", "", "Development server data directory")

	envFile := flag.String("env-file", ".env", "Path to .env file")

	flag.Parse()

	// Load .env file if it exists (silently ignore if not found).
	_ = loadEnvFile(*envFile)

	// Build config with proper precedence.
	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Client: ClientConfig{
			ServerURL:   getConfigValue(*serverURL, "JAM_SERVER_URL", "http://localhost:8080"),
			WSURL:       getConfigValue(*wsURL, "JAM_WS_URL", ""),
			JamID:       getConfigValue(*jamID, "JAM_ID", ""),
			DisplayName: getConfigValue(*displayName, "JAM_DISPLAY_NAME", ""),
			Grouping:    getBoolConfigValue(*grouping, "JAM_GROUPING", true),
			SortMode:    getConfigValue(*sortMode, "JAM_SORT_MODE", "votes"),
		},
		Dev: DevServerConfig{
			Port: getConfigValue(*devPort, "DEV_SERVER_PORT", "8080"),
		},
	}

	// Parse highlight duration.
	highlightStr := getConfigValue(*highlightDuration, "JAM_HIGHLIGHT_DURATION", "15s")
	highlight, err := time.ParseDuration(highlightStr)
	if err != nil {
		return nil, fmt.Errorf("invalid highlight duration %q: %w", highlightStr, err)
	}
	cfg.Client.HighlightDuration = highlight

	// Parse dev server timeouts.
	readTimeoutStr := getConfigValue("", "DEV_SERVER_READ_TIMEOUT", "15s")
	cfg.Dev.ReadTimeout, err = time.ParseDuration(readTimeoutStr)
	if err != nil {
		return nil, fmt.Errorf("invalid read timeout %q: %w", readTimeoutStr, err)
	}

	writeTimeoutStr := getConfigValue("", "DEV_SERVER_WRITE_TIMEOUT", "15s")
	cfg.Dev.WriteTimeout, err = time.ParseDuration(writeTimeoutStr)
	if err != nil {
		return nil, fmt.Errorf("invalid write timeout %q: %w", writeTimeoutStr, err)
	}

	idleTimeoutStr := getConfigValue("", "DEV_SERVER_IDLE_TIMEOUT", "60s")
	cfg.Dev.IdleTimeout, err = time.ParseDuration(idleTimeoutStr)
	if err != nil {
		return nil, fmt.Errorf("invalid idle timeout %q: %w", idleTimeoutStr, err)
	}

	// Derive the websocket URL from the server URL when not set.
	if cfg.Client.WSURL == "" {
		cfg.Client.WSURL = deriveWSURL(cfg.Client.ServerURL)
	}

	// Expand the dev data path.
	if err := cfg.expandDevDataPath(getConfigValue(*devDataPath, "DEV_SERVER_DATA_PATH", "")); err != nil {
		return nil, fmt.Errorf("invalid dev data path: %w", err)
	}

	// Validate configuration.
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Client.ServerURL == "" {
		return errors.New("server URL is required")
	}

	validSorts := map[string]bool{
		"votes":        true,
		"least-played": true,
	}
	if !validSorts[c.Client.SortMode] {
		return fmt.Errorf("invalid sort mode: %s (must be votes or least-played)", c.Client.SortMode)
	}

	if c.Client.HighlightDuration <= 0 {
		return errors.New("highlight duration must be positive")
	}

	return nil
}

// deriveWSURL converts an HTTP base URL into the matching websocket endpoint.
func deriveWSURL(serverURL string) string {
	ws := serverURL
	switch {
	case strings.HasPrefix(ws, "https://"):
		ws = "wss://" + strings.TrimPrefix(ws, "https://")
	case strings.HasPrefix(ws, "http://"):
		ws = "ws://" + strings.TrimPrefix(ws, "http://")
	}
	return strings.TrimRight(ws, "/") + "/ws"
}

// expandDevDataPath expands ~ and makes the path absolute.
// Defaults to ~/JamQueue/dev-data when not specified.
func (c *Config) expandDevDataPath(path string) error {
	if path == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		c.Dev.DataPath = filepath.Join(homeDir, "JamQueue", "dev-data")
		return nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	c.Dev.DataPath = filepath.Clean(path)
	return nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	// Priority 1: Command-line flag.
	if flagValue != "" {
		return flagValue
	}

	// Priority 2: Environment variable.
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}

	// Priority 3: Default value.
	return defaultValue
}

// getBoolConfigValue returns a bool from flag, env var, or default.
// Accepts: "true", "1", "yes" (case-insensitive) as true; anything else is false.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	strValue = strings.ToLower(strValue)
	return strValue == "true" || strValue == "1" || strValue == "yes"
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments.
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=value.
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Remove quotes if present.
		value = strings.Trim(value, `"'`)

		// Only set if not already set (env vars take precedence over .env file).
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}

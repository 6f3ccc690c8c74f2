// Package config loads client and dev-server configuration and sets up
// logging.
package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Config holds the chat client configuration shared by the customer widget
// and the operator console.
type Config struct {
	// ServerURL is the base URL of the storefront REST API.
	ServerURL string `yaml:"server_url"`
	// ChannelURL is the websocket endpoint of the realtime channel. Empty
	// means "derive from ServerURL" (http→ws, path /ws).
	ChannelURL string `yaml:"channel_url"`
	// Token is the stored session credential. TokenFile, when set, is read
	// instead so the credential can live outside the config file.
	Token     string `yaml:"token"`
	TokenFile string `yaml:"token_file"`

	// Logging. The TUIs own stderr, so client logs go to the file only.
	LogFile  string     `yaml:"log_file"`
	LogLevel slog.Level `yaml:"-"`

	logLevelName string
}

// Load builds the client configuration: defaults, then the YAML config file
// (if present), then environment overrides.
func Load() (Config, error) {
	cfg := Config{
		ServerURL: "http://localhost:8686",
		LogFile:   defaultLogFile(),
		LogLevel:  slog.LevelInfo,
	}

	if path := ConfigFilePath(); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return Config{}, err
		}
	}

	cfg.ServerURL = getEnv("CHATKIT_SERVER_URL", cfg.ServerURL)
	cfg.ChannelURL = getEnv("CHATKIT_CHANNEL_URL", cfg.ChannelURL)
	cfg.Token = getEnv("CHATKIT_TOKEN", cfg.Token)
	cfg.TokenFile = getEnv("CHATKIT_TOKEN_FILE", cfg.TokenFile)
	cfg.LogFile = getEnv("CHATKIT_LOG_FILE", cfg.LogFile)
	if lvl := os.Getenv("CHATKIT_LOG_LEVEL"); lvl != "" {
		cfg.logLevelName = lvl
	}
	if cfg.logLevelName != "" {
		cfg.LogLevel = ParseLogLevel(cfg.logLevelName)
	}

	return cfg, nil
}

// Credential returns the session token, reading TokenFile when configured.
func (c Config) Credential() (string, error) {
	if c.TokenFile != "" {
		raw, err := os.ReadFile(c.TokenFile)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(raw)), nil
	}
	return strings.TrimSpace(c.Token), nil
}

// DevConfig holds the dev server configuration.
type DevConfig struct {
	Addr string
	// Secret signs and verifies HS256 chat credentials.
	Secret string
	// AllowedOrigin is the storefront SPA origin allowed by CORS.
	AllowedOrigin string
	// AMQPURL enables the broker event mirror when non-empty.
	AMQPURL      string
	AMQPExchange string

	LogFile  string
	LogLevel slog.Level
}

// LoadDev reads dev-server configuration from environment variables.
func LoadDev() DevConfig {
	return DevConfig{
		Addr:          getEnv("CHATKIT_DEVD_ADDR", ":8686"),
		Secret:        getEnv("CHATKIT_DEVD_SECRET", "chatkit-dev-secret"),
		AllowedOrigin: getEnv("CHATKIT_DEVD_ORIGIN", "http://localhost:5173"),
		AMQPURL:       os.Getenv("CHATKIT_DEVD_AMQP_URL"),
		AMQPExchange:  getEnv("CHATKIT_DEVD_AMQP_EXCHANGE", "plushhaven.chat"),
		LogFile:       os.Getenv("CHATKIT_DEVD_LOG_FILE"),
		LogLevel:      ParseLogLevel(getEnv("CHATKIT_DEVD_LOG_LEVEL", "INFO")),
	}
}

// ConfigFilePath returns the YAML config file location, or "" when the home
// directory cannot be determined. CHATKIT_CONFIG overrides.
func ConfigFilePath() string {
	if path := os.Getenv("CHATKIT_CONFIG"); path != "" {
		return path
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "chatkit", "config.yaml")
}

func defaultLogFile() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "chatkit.log")
	}
	return filepath.Join(dir, "chatkit", "chatkit.log")
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// ParseLogLevel maps a level name to a slog level, defaulting to INFO.
func ParseLogLevel(s string) slog.Level {
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

// Package cli provides the command-line entry points for the chat widget
// and the operator console.
package cli

import (
	"fmt"
	"log/slog"

	"github.com/plushhaven/chatkit/internal/api"
	"github.com/plushhaven/chatkit/internal/config"
	"github.com/plushhaven/chatkit/internal/identity"
	"github.com/plushhaven/chatkit/internal/realtime"
)

// Version is set at build time.
var Version = "0.1.0"

// Global flags shared by both binaries. Flags override the config file and
// environment.
var (
	flagServer    string
	flagToken     string
	flagTokenFile string
	flagLogLevel  string
)

// runtime holds everything a TUI needs before its program starts: the
// verified identity, the REST client, the realtime connection, and the
// logger. The TUIs own the terminal, so logs go to the file only.
type runtime struct {
	cfg     config.Config
	self    identity.Identity
	client  *api.Client
	conn    *realtime.Conn
	log     *slog.Logger
	cleanup func() error
}

// bootstrap loads configuration, resolves the credential once, and builds
// the shared client plumbing. The identity is decoded from the token here
// and never re-derived afterwards.
func bootstrap() (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if flagServer != "" {
		cfg.ServerURL = flagServer
	}
	if flagToken != "" {
		cfg.Token = flagToken
		cfg.TokenFile = ""
	}
	if flagTokenFile != "" {
		cfg.TokenFile = flagTokenFile
	}
	if flagLogLevel != "" {
		cfg.LogLevel = config.ParseLogLevel(flagLogLevel)
	}

	log, cleanup := config.SetupTUILogger(cfg.LogFile, cfg.LogLevel)

	token, err := cfg.Credential()
	if err != nil {
		_ = cleanup()
		return nil, fmt.Errorf("read credential: %w", err)
	}
	self, err := identity.FromToken(token)
	if err != nil {
		_ = cleanup()
		return nil, fmt.Errorf("decode credential: %w", err)
	}

	channelURL := cfg.ChannelURL
	if channelURL == "" {
		channelURL = realtime.DeriveChannelURL(cfg.ServerURL)
	}

	return &runtime{
		cfg:     cfg,
		self:    self,
		client:  api.New(cfg.ServerURL, token),
		conn:    realtime.NewConn(channelURL, token, log),
		log:     log,
		cleanup: cleanup,
	}, nil
}

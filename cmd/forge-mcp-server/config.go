package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/forgemcp/forge-mcp-server/catalog"
	"github.com/forgemcp/forge-mcp-server/ghub"
	"github.com/forgemcp/forge-mcp-server/internal/logctx"
	"github.com/forgemcp/forge-mcp-server/server"
	"github.com/forgemcp/forge-mcp-server/tools"
)

// gitHubConfig is shared by both transports. The token is env-only so
// it never shows up in process listings.
type gitHubConfig struct {
	Token              string        `env:"FORGE_MCP_GITHUB_TOKEN"`
	Host               string        `env:"FORGE_MCP_GITHUB_HOST"`
	Toolsets           []string      `env:"FORGE_MCP_TOOLSETS"`
	DynamicToolsets    bool          `env:"FORGE_MCP_DYNAMIC_TOOLSETS,default=false"`
	ReadOnly           bool          `env:"FORGE_MCP_READ_ONLY,default=false"`
	MinRequestInterval time.Duration `env:"FORGE_MCP_MIN_REQUEST_INTERVAL,default=100ms"`
	LogFile            string        `env:"FORGE_MCP_LOG_FILE"`
	Debug              bool          `env:"FORGE_MCP_DEBUG,default=false"`
}

func gitHubConfigFromEnv() gitHubConfig {
	var cfg gitHubConfig
	// Every field has a usable zero value; decode errors only mean
	// nothing was set.
	_ = envdecode.Decode(&cfg)
	return cfg
}

func (c *gitHubConfig) validate() error {
	if c.Token == "" {
		return fmt.Errorf("a GitHub token is required; set FORGE_MCP_GITHUB_TOKEN")
	}
	if c.MinRequestInterval < 0 {
		return fmt.Errorf("minimum request interval must not be negative")
	}
	return nil
}

// newLogger writes structured logs to stderr or the configured file.
// Stdout is never an option: the stdio transport owns it.
func newLogger(cfg gitHubConfig) (*slog.Logger, io.Closer, error) {
	var out io.Writer = os.Stderr
	var closer io.Closer
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		out = f
		closer = f
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	h := logctx.Handler{Handler: slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})}
	return slog.New(h), closer, nil
}

// buildFactory wires the GitHub client, the tool registry, and the
// per-session server builder.
func buildFactory(cfg gitHubConfig, logger *slog.Logger) (func(onActivity func()) (*mcp.Server, error), error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	throttle := ghub.NewThrottle(cfg.MinRequestInterval)
	client, err := ghub.NewClient(cfg.Host, cfg.Token, version, throttle)
	if err != nil {
		return nil, err
	}

	groups := tools.Inventory(&tools.Deps{Client: client, Logger: logger})

	mode := catalog.ModeFull
	if !cfg.DynamicToolsets && len(cfg.Toolsets) > 0 {
		groups, err = filterGroups(groups, cfg.Toolsets)
		if err != nil {
			return nil, err
		}
	}

	registry, err := catalog.NewRegistry(groups, cfg.ReadOnly)
	if err != nil {
		return nil, err
	}

	// Preload ids are checked here so a bad --toolsets value fails the
	// process at startup instead of failing every session create.
	var preload []string
	if cfg.DynamicToolsets {
		mode = catalog.ModeRestricted
		preload, err = resolvePreload(registry, cfg.Toolsets)
		if err != nil {
			return nil, err
		}
	}

	return func(onActivity func()) (*mcp.Server, error) {
		core, err := server.New(server.Options{
			Version:    version,
			Registry:   registry,
			Mode:       mode,
			Preload:    preload,
			Logger:     logger,
			OnActivity: onActivity,
		})
		if err != nil {
			return nil, err
		}
		return core.Server, nil
	}, nil
}

// resolvePreload validates the dynamic-mode preload list against the
// registry. The "all" keyword is meaningless when groups load on
// demand, so it is dropped.
func resolvePreload(registry *catalog.Registry, ids []string) ([]string, error) {
	var preload []string
	var unknown []string
	for _, id := range ids {
		if id == "all" {
			continue
		}
		if !registry.Has(id) {
			unknown = append(unknown, id)
			continue
		}
		preload = append(preload, id)
	}
	if len(unknown) > 0 {
		return nil, fmt.Errorf("unrecognized toolsets: %v", unknown)
	}
	return preload, nil
}

// filterGroups narrows the inventory in full mode. The "all" keyword
// keeps everything.
func filterGroups(groups []catalog.Group, ids []string) ([]catalog.Group, error) {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id == "all" {
			return groups, nil
		}
		want[id] = true
	}

	var out []catalog.Group
	for _, g := range groups {
		if want[g.ID] {
			out = append(out, g)
			delete(want, g.ID)
		}
	}
	if len(want) > 0 {
		unknown := make([]string, 0, len(want))
		for id := range want {
			unknown = append(unknown, id)
		}
		return nil, fmt.Errorf("unrecognized toolsets: %v", unknown)
	}
	return out, nil
}

// Package server builds the per-session MCP server: one *mcp.Server
// per connected client, carrying that session's tool visibility view.
// Tool visibility is session state, so servers are never shared.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/forgemcp/forge-mcp-server/catalog"
	"github.com/forgemcp/forge-mcp-server/internal/logctx"
)

const serverName = "forge-mcp-server"

// Options configures one session core.
type Options struct {
	Version  string
	Registry *catalog.Registry
	Mode     catalog.Mode
	// Preload lists group ids visible from the start in restricted
	// mode. Empty means the context group.
	Preload []string
	Logger  *slog.Logger
	// OnActivity fires on every inbound message. Transports use it
	// for idle accounting.
	OnActivity func()
}

// Core is a single session's server and visibility state.
type Core struct {
	Server *mcp.Server
	View   *catalog.View

	logger *slog.Logger
}

// New builds a connected-ready server with the catalog tools, the
// session's visible group tools, and the gating and activity
// middleware.
func New(opts Options) (*Core, error) {
	if opts.Registry == nil {
		return nil, fmt.Errorf("server: registry is required")
	}

	preload := opts.Preload
	if opts.Mode == catalog.ModeRestricted && len(preload) == 0 {
		preload = []string{"context"}
	}
	view, err := catalog.NewView(opts.Registry, opts.Mode, preload)
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	serverOpts := &mcp.ServerOptions{
		Instructions: instructions(opts.Mode),
		Logger:       logger,
	}
	if opts.Mode == catalog.ModeRestricted {
		// Most tools appear only after an explicit load, so the tool
		// capability must be advertised up front.
		serverOpts.HasTools = true
	}

	c := &Core{
		Server: mcp.NewServer(&mcp.Implementation{Name: serverName, Version: opts.Version}, serverOpts),
		View:   view,
		logger: logger,
	}

	c.Server.AddReceivingMiddleware(activityMiddleware(opts.OnActivity))
	c.Server.AddReceivingMiddleware(c.gatingMiddleware())

	if err := c.registerCatalogTools(); err != nil {
		return nil, err
	}
	for _, e := range view.Visible() {
		e.Attach(c.Server)
	}
	return c, nil
}

func instructions(mode catalog.Mode) string {
	if mode == catalog.ModeFull {
		return "This server exposes GitHub tools. All tool groups are loaded."
	}
	return "This server exposes GitHub tools organized into groups that load on demand. " +
		"Call list_tool_groups to see what is available, search_tool_catalog to find a tool " +
		"by name or description, and load_tool_groups to make a group's tools callable. " +
		"The tool list changes as groups load; re-list tools after loading."
}

// activityMiddleware notifies the owning transport of inbound traffic.
func activityMiddleware(onActivity func()) mcp.Middleware {
	return func(next mcp.MethodHandler) mcp.MethodHandler {
		return func(ctx context.Context, method string, req mcp.Request) (mcp.Result, error) {
			if onActivity != nil {
				onActivity()
			}
			return next(ctx, method, req)
		}
	}
}

// gatingMiddleware intercepts calls to cataloged tools the session has
// not loaded. The reply is a successful exchange whose payload names
// the missing group so callers can recover without parsing prose.
func (c *Core) gatingMiddleware() mcp.Middleware {
	return func(next mcp.MethodHandler) mcp.MethodHandler {
		return func(ctx context.Context, method string, req mcp.Request) (mcp.Result, error) {
			if method != "tools/call" {
				return next(ctx, method, req)
			}
			call, ok := req.(*mcp.CallToolRequest)
			if !ok || call.Params == nil {
				return next(ctx, method, req)
			}

			name := call.Params.Name
			verdict := c.View.Gate(name)
			if !verdict.Known || verdict.Allowed {
				// Unknown names fall through to the protocol error.
				return next(ctx, method, req)
			}

			ctx = logctx.WithToolCallData(ctx, &logctx.ToolCallData{ToolName: name, Group: verdict.RequiredGroup})
			c.logger.InfoContext(ctx, "tool.call.gated")

			payload, err := json.Marshal(map[string]string{
				"error": fmt.Sprintf("tool %q is not loaded; load tool group %q first via %s",
					name, verdict.RequiredGroup, catalog.ToolLoadGroups),
				"required_group": verdict.RequiredGroup,
			})
			if err != nil {
				return nil, err
			}
			return &mcp.CallToolResult{
				Content: []mcp.Content{&mcp.TextContent{Text: string(payload)}},
				IsError: true,
			}, nil
		}
	}
}

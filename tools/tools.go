// Package tools defines the GitHub tool groups served to MCP clients.
// Handlers call the shared REST client and return raw API payloads as
// JSON text; upstream failures become tool-level error results, never
// transport errors.
package tools

import (
	"encoding/json"
	"fmt"
	"log/slog"

	gogithub "github.com/google/go-github/v79/github"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/forgemcp/forge-mcp-server/catalog"
)

// Deps carries what every tool handler needs.
type Deps struct {
	Client *gogithub.Client
	Logger *slog.Logger
}

// Inventory returns every tool group in its canonical order.
func Inventory(d *Deps) []catalog.Group {
	return []catalog.Group{
		contextGroup(d),
		reposGroup(d),
		issuesGroup(d),
		pullRequestsGroup(d),
		actionsGroup(d),
		searchGroup(d),
	}
}

func (d *Deps) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return d.Logger
}

// resultJSON marshals the upstream payload into a text content block.
func resultJSON(v any) (*mcp.CallToolResult, any, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("marshal tool result: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(b)}},
	}, nil, nil
}

// resultErr reports an upstream failure to the model without failing
// the MCP exchange.
func resultErr(d *Deps, action string, err error) (*mcp.CallToolResult, any, error) {
	d.logger().Warn("tool.call.upstream_fail", slog.String("action", action), slog.String("err", err.Error()))
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("%s: %s", action, err)}},
		IsError: true,
	}, nil, nil
}

// pageOpts clamps client-supplied pagination.
func pageOpts(page, perPage int) gogithub.ListOptions {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 30
	}
	if perPage > 100 {
		perPage = 100
	}
	return gogithub.ListOptions{Page: page, PerPage: perPage}
}

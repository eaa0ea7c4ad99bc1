package server

import (
	"context"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/forgemcp/forge-mcp-server/catalog"
)

type listGroupsInput struct{}

type listGroupsOutput struct {
	Groups []catalog.GroupSummary `json:"groups"`
}

type loadGroupsInput struct {
	Groups []string `json:"groups" jsonschema:"Tool group ids to load"`
}

type searchCatalogInput struct {
	Query string `json:"query" jsonschema:"Text to match against group and tool names and descriptions"`
}

// registerCatalogTools adds the always-visible discovery tools. They
// are registered in every mode; in full mode loading is a no-op since
// everything is already visible.
func (c *Core) registerCatalogTools() error {
	listSchema, err := jsonschema.For[listGroupsInput](nil)
	if err != nil {
		return fmt.Errorf("schema for %s: %w", catalog.ToolListGroups, err)
	}
	mcp.AddTool(c.Server, &mcp.Tool{
		Name: catalog.ToolListGroups,
		Description: "List every tool group with its id, description, load state, and tool count. " +
			"Groups must be loaded with " + catalog.ToolLoadGroups + " before their tools can be called.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true, IdempotentHint: true},
		InputSchema: listSchema,
	}, c.handleListGroups)

	loadSchema, err := jsonschema.For[loadGroupsInput](nil)
	if err != nil {
		return fmt.Errorf("schema for %s: %w", catalog.ToolLoadGroups, err)
	}
	mcp.AddTool(c.Server, &mcp.Tool{
		Name: catalog.ToolLoadGroups,
		Description: "Load one or more tool groups, making their tools visible and callable. " +
			"Loading is additive and idempotent; groups stay loaded for the rest of the session.",
		Annotations: &mcp.ToolAnnotations{IdempotentHint: true},
		InputSchema: loadSchema,
	}, c.handleLoadGroups)

	searchSchema, err := jsonschema.For[searchCatalogInput](nil)
	if err != nil {
		return fmt.Errorf("schema for %s: %w", catalog.ToolSearchCatalog, err)
	}
	mcp.AddTool(c.Server, &mcp.Tool{
		Name: catalog.ToolSearchCatalog,
		Description: "Search the tool catalog by keyword. Returns matching groups and tools " +
			"without loading anything.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true, IdempotentHint: true},
		InputSchema: searchSchema,
	}, c.handleSearchCatalog)

	return nil
}

func (c *Core) handleListGroups(ctx context.Context, req *mcp.CallToolRequest, in listGroupsInput) (*mcp.CallToolResult, listGroupsOutput, error) {
	return nil, listGroupsOutput{Groups: c.View.Summaries()}, nil
}

func (c *Core) handleLoadGroups(ctx context.Context, req *mcp.CallToolRequest, in loadGroupsInput) (*mcp.CallToolResult, catalog.LoadResult, error) {
	res, fresh := c.View.Load(in.Groups)

	// Registering on the live server makes the SDK notify the client
	// that the tool list changed. Delivery is best effort; the list
	// tools operation remains the source of truth.
	for _, e := range fresh {
		e.Attach(c.Server)
	}
	if len(fresh) > 0 {
		c.logger.InfoContext(ctx, "catalog.load.ok")
	}
	if len(res.Unknown) > 0 {
		c.logger.InfoContext(ctx, "catalog.load.unknown_groups")
	}
	return nil, res, nil
}

func (c *Core) handleSearchCatalog(ctx context.Context, req *mcp.CallToolRequest, in searchCatalogInput) (*mcp.CallToolResult, catalog.SearchResult, error) {
	return nil, c.View.Search(in.Query), nil
}

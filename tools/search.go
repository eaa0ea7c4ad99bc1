package tools

import (
	"context"

	gogithub "github.com/google/go-github/v79/github"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/forgemcp/forge-mcp-server/catalog"
)

type searchInput struct {
	Query   string `json:"query" jsonschema:"Search query using GitHub search syntax"`
	Page    int    `json:"page,omitempty" jsonschema:"Page number (1-based)"`
	PerPage int    `json:"per_page,omitempty" jsonschema:"Results per page (max 100)"`
}

func searchGroup(d *Deps) catalog.Group {
	searchOpts := func(in searchInput) *gogithub.SearchOptions {
		return &gogithub.SearchOptions{ListOptions: pageOpts(in.Page, in.PerPage)}
	}

	return catalog.Group{
		ID:          "search",
		Title:       "Search",
		Description: "Search repositories, issues, and code across GitHub",
		Entries: []catalog.Entry{
			catalog.NewEntry(&mcp.Tool{
				Name:        "search_repositories",
				Description: "Search for repositories using GitHub search syntax.",
				Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
			}, func(ctx context.Context, req *mcp.CallToolRequest, in searchInput) (*mcp.CallToolResult, any, error) {
				result, _, err := d.Client.Search.Repositories(ctx, in.Query, searchOpts(in))
				if err != nil {
					return resultErr(d, "search repositories", err)
				}
				return resultJSON(result)
			}),
			catalog.NewEntry(&mcp.Tool{
				Name:        "search_issues",
				Description: "Search for issues and pull requests using GitHub search syntax.",
				Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
			}, func(ctx context.Context, req *mcp.CallToolRequest, in searchInput) (*mcp.CallToolResult, any, error) {
				result, _, err := d.Client.Search.Issues(ctx, in.Query, searchOpts(in))
				if err != nil {
					return resultErr(d, "search issues", err)
				}
				return resultJSON(result)
			}),
			catalog.NewEntry(&mcp.Tool{
				Name:        "search_code",
				Description: "Search for code across repositories using GitHub search syntax.",
				Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
			}, func(ctx context.Context, req *mcp.CallToolRequest, in searchInput) (*mcp.CallToolResult, any, error) {
				result, _, err := d.Client.Search.Code(ctx, in.Query, searchOpts(in))
				if err != nil {
					return resultErr(d, "search code", err)
				}
				return resultJSON(result)
			}),
		},
	}
}

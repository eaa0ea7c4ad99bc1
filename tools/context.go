package tools

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/forgemcp/forge-mcp-server/catalog"
)

type getMeInput struct{}

func contextGroup(d *Deps) catalog.Group {
	return catalog.Group{
		ID:          "context",
		Title:       "Context",
		Description: "Identity and context of the authenticated GitHub user",
		Entries: []catalog.Entry{
			catalog.NewEntry(&mcp.Tool{
				Name:        "get_me",
				Description: "Get the profile of the authenticated GitHub user. Useful for resolving the current login before other calls.",
				Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
			}, func(ctx context.Context, req *mcp.CallToolRequest, in getMeInput) (*mcp.CallToolResult, any, error) {
				user, _, err := d.Client.Users.Get(ctx, "")
				if err != nil {
					return resultErr(d, "get authenticated user", err)
				}
				return resultJSON(user)
			}),
		},
	}
}

package tools

import (
	"context"

	gogithub "github.com/google/go-github/v79/github"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/forgemcp/forge-mcp-server/catalog"
)

type getPullRequestInput struct {
	Owner  string `json:"owner" jsonschema:"Repository owner"`
	Repo   string `json:"repo" jsonschema:"Repository name"`
	Number int    `json:"number" jsonschema:"Pull request number"`
}

type listPullRequestsInput struct {
	Owner   string `json:"owner" jsonschema:"Repository owner"`
	Repo    string `json:"repo" jsonschema:"Repository name"`
	State   string `json:"state,omitempty" jsonschema:"Filter by state: open, closed, or all (default open)"`
	Page    int    `json:"page,omitempty" jsonschema:"Page number (1-based)"`
	PerPage int    `json:"per_page,omitempty" jsonschema:"Results per page (max 100)"`
}

type mergePullRequestInput struct {
	Owner         string `json:"owner" jsonschema:"Repository owner"`
	Repo          string `json:"repo" jsonschema:"Repository name"`
	Number        int    `json:"number" jsonschema:"Pull request number"`
	CommitMessage string `json:"commit_message,omitempty" jsonschema:"Extra detail for the merge commit message"`
	MergeMethod   string `json:"merge_method,omitempty" jsonschema:"Merge method: merge, squash, or rebase"`
}

func pullRequestsGroup(d *Deps) catalog.Group {
	return catalog.Group{
		ID:          "pull_requests",
		Title:       "Pull Requests",
		Description: "Read and merge pull requests",
		Entries: []catalog.Entry{
			catalog.NewEntry(&mcp.Tool{
				Name:        "get_pull_request",
				Description: "Get details of a pull request.",
				Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
			}, func(ctx context.Context, req *mcp.CallToolRequest, in getPullRequestInput) (*mcp.CallToolResult, any, error) {
				pr, _, err := d.Client.PullRequests.Get(ctx, in.Owner, in.Repo, in.Number)
				if err != nil {
					return resultErr(d, "get pull request", err)
				}
				return resultJSON(pr)
			}),
			catalog.NewEntry(&mcp.Tool{
				Name:        "list_pull_requests",
				Description: "List pull requests in a repository.",
				Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
			}, func(ctx context.Context, req *mcp.CallToolRequest, in listPullRequestsInput) (*mcp.CallToolResult, any, error) {
				prs, _, err := d.Client.PullRequests.List(ctx, in.Owner, in.Repo, &gogithub.PullRequestListOptions{
					State:       in.State,
					ListOptions: pageOpts(in.Page, in.PerPage),
				})
				if err != nil {
					return resultErr(d, "list pull requests", err)
				}
				return resultJSON(prs)
			}),
			catalog.NewWriteEntry(&mcp.Tool{
				Name:        "merge_pull_request",
				Description: "Merge a pull request. This permanently changes the target branch.",
			}, func(ctx context.Context, req *mcp.CallToolRequest, in mergePullRequestInput) (*mcp.CallToolResult, any, error) {
				result, _, err := d.Client.PullRequests.Merge(ctx, in.Owner, in.Repo, in.Number, in.CommitMessage, &gogithub.PullRequestOptions{
					MergeMethod: in.MergeMethod,
				})
				if err != nil {
					return resultErr(d, "merge pull request", err)
				}
				return resultJSON(result)
			}),
		},
	}
}

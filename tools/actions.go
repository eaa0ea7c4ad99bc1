package tools

import (
	"context"

	gogithub "github.com/google/go-github/v79/github"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/forgemcp/forge-mcp-server/catalog"
)

type listWorkflowsInput struct {
	Owner   string `json:"owner" jsonschema:"Repository owner"`
	Repo    string `json:"repo" jsonschema:"Repository name"`
	Page    int    `json:"page,omitempty" jsonschema:"Page number (1-based)"`
	PerPage int    `json:"per_page,omitempty" jsonschema:"Results per page (max 100)"`
}

type listWorkflowRunsInput struct {
	Owner   string `json:"owner" jsonschema:"Repository owner"`
	Repo    string `json:"repo" jsonschema:"Repository name"`
	Branch  string `json:"branch,omitempty" jsonschema:"Only runs for this branch"`
	Status  string `json:"status,omitempty" jsonschema:"Only runs with this status (e.g. completed, in_progress)"`
	Page    int    `json:"page,omitempty" jsonschema:"Page number (1-based)"`
	PerPage int    `json:"per_page,omitempty" jsonschema:"Results per page (max 100)"`
}

func actionsGroup(d *Deps) catalog.Group {
	return catalog.Group{
		ID:          "actions",
		Title:       "Actions",
		Description: "Inspect GitHub Actions workflows and runs",
		Entries: []catalog.Entry{
			catalog.NewEntry(&mcp.Tool{
				Name:        "list_workflows",
				Description: "List workflows defined in a repository.",
				Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
			}, func(ctx context.Context, req *mcp.CallToolRequest, in listWorkflowsInput) (*mcp.CallToolResult, any, error) {
				opts := pageOpts(in.Page, in.PerPage)
				workflows, _, err := d.Client.Actions.ListWorkflows(ctx, in.Owner, in.Repo, &opts)
				if err != nil {
					return resultErr(d, "list workflows", err)
				}
				return resultJSON(workflows)
			}),
			catalog.NewEntry(&mcp.Tool{
				Name:        "list_workflow_runs",
				Description: "List workflow runs in a repository, optionally filtered by branch or status.",
				Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
			}, func(ctx context.Context, req *mcp.CallToolRequest, in listWorkflowRunsInput) (*mcp.CallToolResult, any, error) {
				runs, _, err := d.Client.Actions.ListRepositoryWorkflowRuns(ctx, in.Owner, in.Repo, &gogithub.ListWorkflowRunsOptions{
					Branch:      in.Branch,
					Status:      in.Status,
					ListOptions: pageOpts(in.Page, in.PerPage),
				})
				if err != nil {
					return resultErr(d, "list workflow runs", err)
				}
				return resultJSON(runs)
			}),
		},
	}
}

package tools

import (
	"context"

	gogithub "github.com/google/go-github/v79/github"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/forgemcp/forge-mcp-server/catalog"
)

type getIssueInput struct {
	Owner  string `json:"owner" jsonschema:"Repository owner"`
	Repo   string `json:"repo" jsonschema:"Repository name"`
	Number int    `json:"number" jsonschema:"Issue number"`
}

type listIssuesInput struct {
	Owner   string `json:"owner" jsonschema:"Repository owner"`
	Repo    string `json:"repo" jsonschema:"Repository name"`
	State   string `json:"state,omitempty" jsonschema:"Filter by state: open, closed, or all (default open)"`
	Page    int    `json:"page,omitempty" jsonschema:"Page number (1-based)"`
	PerPage int    `json:"per_page,omitempty" jsonschema:"Results per page (max 100)"`
}

type createIssueInput struct {
	Owner     string   `json:"owner" jsonschema:"Repository owner"`
	Repo      string   `json:"repo" jsonschema:"Repository name"`
	Title     string   `json:"title" jsonschema:"Issue title"`
	Body      string   `json:"body,omitempty" jsonschema:"Issue body in Markdown"`
	Labels    []string `json:"labels,omitempty" jsonschema:"Labels to apply"`
	Assignees []string `json:"assignees,omitempty" jsonschema:"Logins to assign"`
}

type addIssueCommentInput struct {
	Owner  string `json:"owner" jsonschema:"Repository owner"`
	Repo   string `json:"repo" jsonschema:"Repository name"`
	Number int    `json:"number" jsonschema:"Issue or pull request number"`
	Body   string `json:"body" jsonschema:"Comment body in Markdown"`
}

func issuesGroup(d *Deps) catalog.Group {
	return catalog.Group{
		ID:          "issues",
		Title:       "Issues",
		Description: "Read, create, and comment on issues",
		Entries: []catalog.Entry{
			catalog.NewEntry(&mcp.Tool{
				Name:        "get_issue",
				Description: "Get details of an issue.",
				Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
			}, func(ctx context.Context, req *mcp.CallToolRequest, in getIssueInput) (*mcp.CallToolResult, any, error) {
				issue, _, err := d.Client.Issues.Get(ctx, in.Owner, in.Repo, in.Number)
				if err != nil {
					return resultErr(d, "get issue", err)
				}
				return resultJSON(issue)
			}),
			catalog.NewEntry(&mcp.Tool{
				Name:        "list_issues",
				Description: "List issues in a repository.",
				Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
			}, func(ctx context.Context, req *mcp.CallToolRequest, in listIssuesInput) (*mcp.CallToolResult, any, error) {
				issues, _, err := d.Client.Issues.ListByRepo(ctx, in.Owner, in.Repo, &gogithub.IssueListByRepoOptions{
					State:       in.State,
					ListOptions: pageOpts(in.Page, in.PerPage),
				})
				if err != nil {
					return resultErr(d, "list issues", err)
				}
				return resultJSON(issues)
			}),
			catalog.NewWriteEntry(&mcp.Tool{
				Name:        "create_issue",
				Description: "Create a new issue in a repository.",
			}, func(ctx context.Context, req *mcp.CallToolRequest, in createIssueInput) (*mcp.CallToolResult, any, error) {
				issueReq := &gogithub.IssueRequest{
					Title: gogithub.Ptr(in.Title),
				}
				if in.Body != "" {
					issueReq.Body = gogithub.Ptr(in.Body)
				}
				if len(in.Labels) > 0 {
					issueReq.Labels = &in.Labels
				}
				if len(in.Assignees) > 0 {
					issueReq.Assignees = &in.Assignees
				}
				issue, _, err := d.Client.Issues.Create(ctx, in.Owner, in.Repo, issueReq)
				if err != nil {
					return resultErr(d, "create issue", err)
				}
				return resultJSON(issue)
			}),
			catalog.NewWriteEntry(&mcp.Tool{
				Name:        "add_issue_comment",
				Description: "Add a comment to an issue or pull request.",
			}, func(ctx context.Context, req *mcp.CallToolRequest, in addIssueCommentInput) (*mcp.CallToolResult, any, error) {
				comment, _, err := d.Client.Issues.CreateComment(ctx, in.Owner, in.Repo, in.Number, &gogithub.IssueComment{
					Body: gogithub.Ptr(in.Body),
				})
				if err != nil {
					return resultErr(d, "add issue comment", err)
				}
				return resultJSON(comment)
			}),
		},
	}
}

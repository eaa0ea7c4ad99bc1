package tools

import (
	"context"

	gogithub "github.com/google/go-github/v79/github"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/forgemcp/forge-mcp-server/catalog"
)

type getRepositoryInput struct {
	Owner string `json:"owner" jsonschema:"Repository owner (user or organization)"`
	Repo  string `json:"repo" jsonschema:"Repository name"`
}

type listRepositoriesInput struct {
	Page    int `json:"page,omitempty" jsonschema:"Page number (1-based)"`
	PerPage int `json:"per_page,omitempty" jsonschema:"Results per page (max 100)"`
}

type getFileContentsInput struct {
	Owner string `json:"owner" jsonschema:"Repository owner"`
	Repo  string `json:"repo" jsonschema:"Repository name"`
	Path  string `json:"path" jsonschema:"Path to the file or directory"`
	Ref   string `json:"ref,omitempty" jsonschema:"Branch, tag, or commit SHA (default branch if omitted)"`
}

type listBranchesInput struct {
	Owner   string `json:"owner" jsonschema:"Repository owner"`
	Repo    string `json:"repo" jsonschema:"Repository name"`
	Page    int    `json:"page,omitempty" jsonschema:"Page number (1-based)"`
	PerPage int    `json:"per_page,omitempty" jsonschema:"Results per page (max 100)"`
}

type listCommitsInput struct {
	Owner   string `json:"owner" jsonschema:"Repository owner"`
	Repo    string `json:"repo" jsonschema:"Repository name"`
	SHA     string `json:"sha,omitempty" jsonschema:"Branch or commit SHA to start from"`
	Path    string `json:"path,omitempty" jsonschema:"Only commits touching this path"`
	Page    int    `json:"page,omitempty" jsonschema:"Page number (1-based)"`
	PerPage int    `json:"per_page,omitempty" jsonschema:"Results per page (max 100)"`
}

func reposGroup(d *Deps) catalog.Group {
	return catalog.Group{
		ID:          "repos",
		Title:       "Repositories",
		Description: "Browse repositories, file contents, branches, and commit history",
		Entries: []catalog.Entry{
			catalog.NewEntry(&mcp.Tool{
				Name:        "get_repository",
				Description: "Get details of a repository.",
				Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
			}, func(ctx context.Context, req *mcp.CallToolRequest, in getRepositoryInput) (*mcp.CallToolResult, any, error) {
				repo, _, err := d.Client.Repositories.Get(ctx, in.Owner, in.Repo)
				if err != nil {
					return resultErr(d, "get repository", err)
				}
				return resultJSON(repo)
			}),
			catalog.NewEntry(&mcp.Tool{
				Name:        "list_repositories",
				Description: "List repositories accessible to the authenticated user.",
				Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
			}, func(ctx context.Context, req *mcp.CallToolRequest, in listRepositoriesInput) (*mcp.CallToolResult, any, error) {
				repos, _, err := d.Client.Repositories.ListByAuthenticatedUser(ctx, &gogithub.RepositoryListByAuthenticatedUserOptions{
					ListOptions: pageOpts(in.Page, in.PerPage),
				})
				if err != nil {
					return resultErr(d, "list repositories", err)
				}
				return resultJSON(repos)
			}),
			catalog.NewEntry(&mcp.Tool{
				Name:        "get_file_contents",
				Description: "Get the contents of a file or the listing of a directory in a repository.",
				Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
			}, func(ctx context.Context, req *mcp.CallToolRequest, in getFileContentsInput) (*mcp.CallToolResult, any, error) {
				file, dir, _, err := d.Client.Repositories.GetContents(ctx, in.Owner, in.Repo, in.Path, &gogithub.RepositoryContentGetOptions{Ref: in.Ref})
				if err != nil {
					return resultErr(d, "get file contents", err)
				}
				if file != nil {
					return resultJSON(file)
				}
				return resultJSON(dir)
			}),
			catalog.NewEntry(&mcp.Tool{
				Name:        "list_branches",
				Description: "List branches in a repository.",
				Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
			}, func(ctx context.Context, req *mcp.CallToolRequest, in listBranchesInput) (*mcp.CallToolResult, any, error) {
				branches, _, err := d.Client.Repositories.ListBranches(ctx, in.Owner, in.Repo, &gogithub.BranchListOptions{
					ListOptions: pageOpts(in.Page, in.PerPage),
				})
				if err != nil {
					return resultErr(d, "list branches", err)
				}
				return resultJSON(branches)
			}),
			catalog.NewEntry(&mcp.Tool{
				Name:        "list_commits",
				Description: "List commits in a repository, optionally scoped to a ref or path.",
				Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
			}, func(ctx context.Context, req *mcp.CallToolRequest, in listCommitsInput) (*mcp.CallToolResult, any, error) {
				commits, _, err := d.Client.Repositories.ListCommits(ctx, in.Owner, in.Repo, &gogithub.CommitsListOptions{
					SHA:         in.SHA,
					Path:        in.Path,
					ListOptions: pageOpts(in.Page, in.PerPage),
				})
				if err != nil {
					return resultErr(d, "list commits", err)
				}
				return resultJSON(commits)
			}),
		},
	}
}

package catalog

import (
	"context"
	"reflect"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type noArgs struct{}

func entry(name, desc string) Entry {
	return NewEntry(&mcp.Tool{Name: name, Description: desc},
		func(ctx context.Context, req *mcp.CallToolRequest, in noArgs) (*mcp.CallToolResult, any, error) {
			return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: name}}}, nil, nil
		})
}

func writeEntry(name, desc string) Entry {
	e := entry(name, desc)
	e.Write = true
	return e
}

func testGroups() []Group {
	return []Group{
		{ID: "context", Title: "Context", Description: "Identity of the authenticated user", Entries: []Entry{
			entry("get_me", "Get the authenticated user"),
		}},
		{ID: "repos", Title: "Repositories", Description: "Repository browsing", Entries: []Entry{
			entry("get_repository", "Get a repository"),
			entry("list_branches", "List branches in a repository"),
		}},
		{ID: "issues", Title: "Issues", Description: "Issue reading and writing", Entries: []Entry{
			entry("get_issue", "Get an issue"),
			writeEntry("create_issue", "Create an issue"),
		}},
	}
}

func mustRegistry(t *testing.T, groups []Group, readOnly bool) *Registry {
	t.Helper()
	reg, err := NewRegistry(groups, readOnly)
	if err != nil {
		t.Fatalf("NewRegistry() unexpected error: %v", err)
	}
	return reg
}

func TestNewRegistry_Validation(t *testing.T) {
	tests := []struct {
		name   string
		groups []Group
	}{
		{name: "empty group id", groups: []Group{{ID: "", Entries: []Entry{entry("a", "")}}}},
		{name: "duplicate group id", groups: []Group{
			{ID: "repos", Entries: []Entry{entry("a", "")}},
			{ID: "repos", Entries: []Entry{entry("b", "")}},
		}},
		{name: "group without tools", groups: []Group{{ID: "repos"}}},
		{name: "reserved tool name", groups: []Group{
			{ID: "repos", Entries: []Entry{entry(ToolLoadGroups, "")}},
		}},
		{name: "duplicate tool in same group", groups: []Group{
			{ID: "repos", Entries: []Entry{entry("a", ""), entry("a", "")}},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewRegistry(tt.groups, false); err == nil {
				t.Fatal("NewRegistry() expected error, got nil")
			}
		})
	}
}

func TestNewRegistry_FirstRegistrationWins(t *testing.T) {
	reg := mustRegistry(t, []Group{
		{ID: "first", Entries: []Entry{entry("shared_tool", "")}},
		{ID: "second", Entries: []Entry{entry("shared_tool", ""), entry("own_tool", "")}},
	}, false)

	owner, ok := reg.Owner("shared_tool")
	if !ok || owner != "first" {
		t.Fatalf("Owner(shared_tool) = %q, %v; want first, true", owner, ok)
	}
	if n := len(reg.Tools("second")); n != 1 {
		t.Fatalf("Tools(second) has %d entries, want 1 (duplicate dropped)", n)
	}
}

func TestNewRegistry_ReadOnlyDropsWriteTools(t *testing.T) {
	reg := mustRegistry(t, testGroups(), true)

	if _, ok := reg.Entry("create_issue"); ok {
		t.Error("Entry(create_issue) present in read-only registry")
	}
	if _, ok := reg.Entry("get_issue"); !ok {
		t.Error("Entry(get_issue) missing from read-only registry")
	}
	if _, ok := reg.Owner("create_issue"); ok {
		t.Error("Owner(create_issue) present in read-only registry")
	}
}

func TestView_VisibleSortedAndScoped(t *testing.T) {
	reg := mustRegistry(t, testGroups(), false)
	v, err := NewView(reg, ModeRestricted, []string{"repos"})
	if err != nil {
		t.Fatalf("NewView() unexpected error: %v", err)
	}

	var names []string
	for _, e := range v.Visible() {
		names = append(names, e.Def.Name)
	}
	want := []string{"get_repository", "list_branches"}
	if !reflect.DeepEqual(names, want) {
		t.Fatalf("Visible() = %v, want %v", names, want)
	}
}

func TestView_FullModeSeesEverything(t *testing.T) {
	reg := mustRegistry(t, testGroups(), false)
	v, err := NewView(reg, ModeFull, nil)
	if err != nil {
		t.Fatalf("NewView() unexpected error: %v", err)
	}

	if got, want := len(v.Visible()), 5; got != want {
		t.Fatalf("Visible() returned %d entries, want %d", got, want)
	}
	verdict := v.Gate("create_issue")
	if !verdict.Allowed || !verdict.Known {
		t.Fatalf("Gate(create_issue) = %+v, want allowed and known", verdict)
	}
}

func TestView_UnknownPreload(t *testing.T) {
	reg := mustRegistry(t, testGroups(), false)
	if _, err := NewView(reg, ModeRestricted, []string{"nope"}); err == nil {
		t.Fatal("NewView() expected error for unknown preload group")
	}
}

func TestView_GateVerdicts(t *testing.T) {
	reg := mustRegistry(t, testGroups(), false)
	v, err := NewView(reg, ModeRestricted, []string{"context"})
	if err != nil {
		t.Fatalf("NewView() unexpected error: %v", err)
	}

	if verdict := v.Gate("get_me"); !verdict.Allowed {
		t.Errorf("Gate(get_me) = %+v, want allowed", verdict)
	}
	if verdict := v.Gate("no_such_tool"); verdict.Known || verdict.Allowed {
		t.Errorf("Gate(no_such_tool) = %+v, want unknown", verdict)
	}

	verdict := v.Gate("get_issue")
	if verdict.Allowed || !verdict.Known {
		t.Fatalf("Gate(get_issue) = %+v, want known and locked", verdict)
	}
	if verdict.RequiredGroup != "issues" {
		t.Errorf("Gate(get_issue).RequiredGroup = %q, want issues", verdict.RequiredGroup)
	}
}

func TestView_LoadPartitionAndIdempotence(t *testing.T) {
	reg := mustRegistry(t, testGroups(), false)
	v, err := NewView(reg, ModeRestricted, nil)
	if err != nil {
		t.Fatalf("NewView() unexpected error: %v", err)
	}

	res, fresh := v.Load([]string{"repos", "bogus", "issues", "repos"})
	if want := []string{"issues", "repos"}; !reflect.DeepEqual(res.Loaded, want) {
		t.Errorf("Load().Loaded = %v, want %v", res.Loaded, want)
	}
	if want := []string{"bogus"}; !reflect.DeepEqual(res.Unknown, want) {
		t.Errorf("Load().Unknown = %v, want %v", res.Unknown, want)
	}
	if got, want := len(fresh), 4; got != want {
		t.Errorf("Load() unlocked %d entries, want %d", got, want)
	}

	// Loading again reports success but unlocks nothing new.
	res, fresh = v.Load([]string{"repos"})
	if want := []string{"repos"}; !reflect.DeepEqual(res.Loaded, want) {
		t.Errorf("second Load().Loaded = %v, want %v", res.Loaded, want)
	}
	if len(fresh) != 0 {
		t.Errorf("second Load() unlocked %d entries, want 0", len(fresh))
	}
	if !v.IsLoaded("repos") || !v.IsLoaded("issues") {
		t.Error("loaded groups lost after repeated load")
	}
}

func TestView_Summaries(t *testing.T) {
	reg := mustRegistry(t, testGroups(), false)
	v, err := NewView(reg, ModeRestricted, []string{"context"})
	if err != nil {
		t.Fatalf("NewView() unexpected error: %v", err)
	}

	sums := v.Summaries()
	if len(sums) != 3 {
		t.Fatalf("Summaries() returned %d groups, want 3", len(sums))
	}
	// Declaration order, not alphabetical.
	if sums[0].ID != "context" || sums[1].ID != "repos" || sums[2].ID != "issues" {
		t.Fatalf("Summaries() order = %s,%s,%s", sums[0].ID, sums[1].ID, sums[2].ID)
	}
	if !sums[0].Loaded || sums[1].Loaded {
		t.Error("Summaries() loaded flags wrong")
	}
	if sums[1].ToolCount != 2 {
		t.Errorf("Summaries() repos tool_count = %d, want 2", sums[1].ToolCount)
	}
}

func TestView_Search(t *testing.T) {
	reg := mustRegistry(t, testGroups(), false)
	v, err := NewView(reg, ModeRestricted, nil)
	if err != nil {
		t.Fatalf("NewView() unexpected error: %v", err)
	}

	res := v.Search("ISSUE")
	if len(res.Groups) != 1 || res.Groups[0].ID != "issues" {
		t.Fatalf("Search(ISSUE).Groups = %+v, want the issues group", res.Groups)
	}
	if len(res.Tools) != 2 {
		t.Fatalf("Search(ISSUE).Tools returned %d, want 2", len(res.Tools))
	}
	if res.Tools[0].Name != "create_issue" || res.Tools[0].Group != "issues" {
		t.Errorf("Search(ISSUE).Tools[0] = %+v", res.Tools[0])
	}

	// Searching never loads anything.
	if v.IsLoaded("issues") {
		t.Error("Search() changed visibility")
	}

	if res := v.Search("   "); len(res.Groups) != 0 || len(res.Tools) != 0 {
		t.Errorf("Search(blank) = %+v, want empty", res)
	}
}

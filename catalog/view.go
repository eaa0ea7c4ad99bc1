package catalog

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Mode selects whether a session sees the whole inventory up front or
// unlocks groups on demand.
type Mode int

const (
	// ModeFull exposes every tool from the start. Load requests are
	// accepted but change nothing.
	ModeFull Mode = iota
	// ModeRestricted exposes only the catalog management tools plus
	// preloaded groups; other groups must be loaded explicitly.
	ModeRestricted
)

// Verdict is the gating decision for a single tool call.
type Verdict struct {
	Allowed bool
	Known   bool
	// RequiredGroup names the group that must be loaded before the
	// call is allowed. Set only when Known and not Allowed.
	RequiredGroup string
}

// LoadResult partitions a load request into group ids that are now
// loaded (including already-loaded ones) and ids the registry does not
// know.
type LoadResult struct {
	Loaded  []string `json:"loaded"`
	Unknown []string `json:"unknown"`
}

// GroupSummary describes one group for listing and search payloads.
type GroupSummary struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Loaded      bool   `json:"loaded"`
	ToolCount   int    `json:"tool_count"`
}

// ToolSummary describes one tool for search payloads.
type ToolSummary struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Group       string `json:"group"`
}

// SearchResult is the payload of a catalog search.
type SearchResult struct {
	Groups []GroupSummary `json:"groups"`
	Tools  []ToolSummary  `json:"tools"`
}

// View is one session's visibility state over a shared registry. The
// loaded set only grows; groups are never unloaded.
type View struct {
	reg  *Registry
	mode Mode

	mu     sync.Mutex
	loaded map[string]bool
}

// NewView creates a view with the given preloaded groups. Unknown
// preload ids are a configuration error.
func NewView(reg *Registry, mode Mode, preload []string) (*View, error) {
	v := &View{
		reg:    reg,
		mode:   mode,
		loaded: make(map[string]bool),
	}
	for _, id := range preload {
		if !reg.Has(id) {
			return nil, fmt.Errorf("catalog: unknown preload group %q", id)
		}
		v.loaded[id] = true
	}
	return v, nil
}

// Mode returns the view's visibility mode.
func (v *View) Mode() Mode { return v.mode }

// IsLoaded reports whether the group's tools are visible.
func (v *View) IsLoaded(group string) bool {
	if v.mode == ModeFull {
		return v.reg.Has(group)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.loaded[group]
}

// Visible returns the entries the session may list and call, sorted by
// tool name.
func (v *View) Visible() []Entry {
	var out []Entry
	if v.mode == ModeFull {
		for _, g := range v.reg.Groups() {
			out = append(out, g.Entries...)
		}
	} else {
		v.mu.Lock()
		for _, g := range v.reg.Groups() {
			if v.loaded[g.ID] {
				out = append(out, g.Entries...)
			}
		}
		v.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Def.Name < out[j].Def.Name })
	return out
}

// Gate decides whether a tool call may proceed.
func (v *View) Gate(tool string) Verdict {
	group, known := v.reg.Owner(tool)
	if !known {
		return Verdict{}
	}
	if v.mode == ModeFull {
		return Verdict{Allowed: true, Known: true}
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.loaded[group] {
		return Verdict{Allowed: true, Known: true}
	}
	return Verdict{Known: true, RequiredGroup: group}
}

// Load marks the named groups as loaded and returns the partition plus
// the entries that just became visible. Loading is idempotent; in full
// mode nothing new can become visible.
func (v *View) Load(groups []string) (LoadResult, []Entry) {
	var res LoadResult
	var fresh []Entry

	v.mu.Lock()
	seen := make(map[string]bool, len(groups))
	for _, id := range groups {
		if seen[id] {
			continue
		}
		seen[id] = true
		if !v.reg.Has(id) {
			res.Unknown = append(res.Unknown, id)
			continue
		}
		res.Loaded = append(res.Loaded, id)
		if v.mode == ModeFull || v.loaded[id] {
			continue
		}
		v.loaded[id] = true
		fresh = append(fresh, v.reg.Tools(id)...)
	}
	v.mu.Unlock()

	sort.Strings(res.Loaded)
	sort.Strings(res.Unknown)
	return res, fresh
}

// Summaries returns every group in declaration order with the view's
// loaded flags.
func (v *View) Summaries() []GroupSummary {
	groups := v.reg.Groups()
	out := make([]GroupSummary, 0, len(groups))
	for _, g := range groups {
		out = append(out, GroupSummary{
			ID:          g.ID,
			Title:       g.Title,
			Description: g.Description,
			Loaded:      v.IsLoaded(g.ID),
			ToolCount:   len(g.Entries),
		})
	}
	return out
}

// Search matches the query case-insensitively against group ids,
// titles and descriptions, and against tool names and descriptions.
// Results keep declaration order for groups and name order for tools.
// Searching never changes visibility.
func (v *View) Search(query string) SearchResult {
	q := strings.ToLower(strings.TrimSpace(query))
	res := SearchResult{
		Groups: []GroupSummary{},
		Tools:  []ToolSummary{},
	}
	if q == "" {
		return res
	}

	match := func(fields ...string) bool {
		for _, f := range fields {
			if strings.Contains(strings.ToLower(f), q) {
				return true
			}
		}
		return false
	}

	for _, g := range v.reg.Groups() {
		if match(g.ID, g.Title, g.Description) {
			res.Groups = append(res.Groups, GroupSummary{
				ID:          g.ID,
				Title:       g.Title,
				Description: g.Description,
				Loaded:      v.IsLoaded(g.ID),
				ToolCount:   len(g.Entries),
			})
		}
		for _, e := range g.Entries {
			if match(e.Def.Name, e.Def.Description) {
				res.Tools = append(res.Tools, ToolSummary{
					Name:        e.Def.Name,
					Description: e.Def.Description,
					Group:       g.ID,
				})
			}
		}
	}
	sort.Slice(res.Tools, func(i, j int) bool { return res.Tools[i].Name < res.Tools[j].Name })
	return res
}

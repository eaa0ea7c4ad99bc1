// Package catalog holds the tool inventory: named groups of tools, an
// immutable registry built once at startup, and per-session views that
// track which groups a client has loaded.
package catalog

import (
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Names of the catalog management tools. They are always visible when
// lazy loading is enabled and no group may claim them.
const (
	ToolListGroups    = "list_tool_groups"
	ToolLoadGroups    = "load_tool_groups"
	ToolSearchCatalog = "search_tool_catalog"
)

var reservedNames = map[string]bool{
	ToolListGroups:    true,
	ToolLoadGroups:    true,
	ToolSearchCatalog: true,
}

// Entry is a single tool owned by a group. Write entries are dropped
// when the registry is built read-only.
type Entry struct {
	Def   *mcp.Tool
	Write bool

	attach func(s *mcp.Server)
}

// NewEntry wraps a typed tool handler into a catalog entry. Attachment
// to a live server is deferred so the same entry can be registered on
// any number of per-session servers.
func NewEntry[In, Out any](def *mcp.Tool, h mcp.ToolHandlerFor[In, Out]) Entry {
	return Entry{
		Def:    def,
		attach: func(s *mcp.Server) { mcp.AddTool(s, def, h) },
	}
}

// NewWriteEntry marks the entry as mutating upstream state.
func NewWriteEntry[In, Out any](def *mcp.Tool, h mcp.ToolHandlerFor[In, Out]) Entry {
	e := NewEntry(def, h)
	e.Write = true
	return e
}

// Attach registers the entry's tool and handler on a live server.
func (e Entry) Attach(s *mcp.Server) { e.attach(s) }

// Group is a named set of tools that load together.
type Group struct {
	ID          string
	Title       string
	Description string
	Entries     []Entry
}

// Registry is the validated, immutable tool inventory. Group order is
// declaration order; a tool name registered by two groups belongs to
// the first.
type Registry struct {
	groups []Group
	byID   map[string]int
	owner  map[string]string
	byName map[string]Entry
}

// NewRegistry validates and freezes the inventory. With readOnly set,
// write entries are dropped before validation.
func NewRegistry(groups []Group, readOnly bool) (*Registry, error) {
	r := &Registry{
		byID:   make(map[string]int),
		owner:  make(map[string]string),
		byName: make(map[string]Entry),
	}
	for _, g := range groups {
		if g.ID == "" {
			return nil, fmt.Errorf("catalog: group with empty id")
		}
		if _, dup := r.byID[g.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate group %q", g.ID)
		}
		if len(g.Entries) == 0 {
			return nil, fmt.Errorf("catalog: group %q has no tools", g.ID)
		}

		kept := g
		kept.Entries = nil
		for _, e := range g.Entries {
			if e.Def == nil || e.Def.Name == "" {
				return nil, fmt.Errorf("catalog: group %q has a tool without a name", g.ID)
			}
			if reservedNames[e.Def.Name] {
				return nil, fmt.Errorf("catalog: group %q claims reserved tool name %q", g.ID, e.Def.Name)
			}
			if owner, claimed := r.owner[e.Def.Name]; claimed {
				if owner == g.ID {
					return nil, fmt.Errorf("catalog: group %q registers tool %q twice", g.ID, e.Def.Name)
				}
				// First registration wins across groups.
				continue
			}
			if readOnly && e.Write {
				continue
			}
			r.owner[e.Def.Name] = g.ID
			r.byName[e.Def.Name] = e
			kept.Entries = append(kept.Entries, e)
		}

		r.byID[g.ID] = len(r.groups)
		r.groups = append(r.groups, kept)
	}
	return r, nil
}

// Has reports whether the group id exists.
func (r *Registry) Has(group string) bool {
	_, ok := r.byID[group]
	return ok
}

// Groups returns the groups in declaration order.
func (r *Registry) Groups() []Group {
	return r.groups
}

// Tools returns the effective entries of a group.
func (r *Registry) Tools(group string) []Entry {
	i, ok := r.byID[group]
	if !ok {
		return nil
	}
	return r.groups[i].Entries
}

// Owner returns the group owning the named tool.
func (r *Registry) Owner(tool string) (string, bool) {
	g, ok := r.owner[tool]
	return g, ok
}

// Entry returns the named tool's entry.
func (r *Registry) Entry(tool string) (Entry, bool) {
	e, ok := r.byName[tool]
	return e, ok
}

package tool

import (
	"errors"
	"fmt"

	"github.com/hupe1980/agentcore/model"
)

// ErrDuplicateTool is returned when two tools share a name.
var ErrDuplicateTool = errors.New("duplicate tool")

// Catalog is a read-only set of tools queried by name. It is built once and
// safe for concurrent reads.
type Catalog struct {
	order  []string
	byName map[string]Tool
}

// NewCatalog builds a catalog; names must be unique and non-empty.
func NewCatalog(tools ...Tool) (*Catalog, error) {
	c := &Catalog{byName: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		name := t.Name()
		if name == "" {
			return nil, errors.New("tool with empty name")
		}
		if _, exists := c.byName[name]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTool, name)
		}
		c.byName[name] = t
		c.order = append(c.order, name)
	}
	return c, nil
}

// MustCatalog is like NewCatalog but panics on error.
func MustCatalog(tools ...Tool) *Catalog {
	c, err := NewCatalog(tools...)
	if err != nil {
		panic(err)
	}
	return c
}

// Get returns the tool registered under name.
func (c *Catalog) Get(name string) (Tool, bool) {
	if c == nil {
		return nil, false
	}
	t, ok := c.byName[name]
	return t, ok
}

// Names returns tool names in registration order.
func (c *Catalog) Names() []string {
	if c == nil {
		return nil
	}
	return append([]string(nil), c.order...)
}

// Definitions returns model tool definitions. When names is non-empty only
// those tools are included; unknown names are skipped.
func (c *Catalog) Definitions(names ...string) []model.ToolDefinition {
	if c == nil {
		return nil
	}
	if len(names) == 0 {
		names = c.order
	}
	defs := make([]model.ToolDefinition, 0, len(names))
	for _, name := range names {
		t, ok := c.byName[name]
		if !ok {
			continue
		}
		defs = append(defs, Definition(t))
	}
	return defs
}

// Definition converts a tool into its model definition.
func Definition(t Tool) model.ToolDefinition {
	return model.NewToolDefinition(t.Name(), t.Description(), t.Parameters())
}

// Subset returns a catalog restricted to names. An empty list returns c.
func (c *Catalog) Subset(names ...string) *Catalog {
	if c == nil || len(names) == 0 {
		return c
	}
	sub := &Catalog{byName: make(map[string]Tool, len(names))}
	for _, name := range names {
		t, ok := c.byName[name]
		if !ok {
			continue
		}
		if _, dup := sub.byName[name]; dup {
			continue
		}
		sub.byName[name] = t
		sub.order = append(sub.order, name)
	}
	return sub
}

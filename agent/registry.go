package agent

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hupe1980/agentcore/core"
)

// ErrDuplicateAgent is returned when two descriptors share an identifier.
var ErrDuplicateAgent = errors.New("duplicate agent")

// ErrInvalidDescriptor is returned for descriptors without an identifier.
var ErrInvalidDescriptor = errors.New("invalid agent descriptor")

// Registry is an immutable core.Registry built from a fixed set of descriptors.
type Registry struct {
	order []string
	byID  map[string]core.AgentDescriptor
}

var _ core.Registry = (*Registry)(nil)

// NewRegistry validates descriptors and freezes them. The root agent is added
// with default settings when absent.
func NewRegistry(descs ...core.AgentDescriptor) (*Registry, error) {
	r := &Registry{byID: make(map[string]core.AgentDescriptor, len(descs)+1)}
	for _, d := range descs {
		d.ID = strings.TrimSpace(d.ID)
		if d.ID == "" {
			return nil, fmt.Errorf("%w: empty id", ErrInvalidDescriptor)
		}
		if _, exists := r.byID[d.ID]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateAgent, d.ID)
		}
		if d.Name == "" {
			d.Name = d.ID
		}
		d.Skills = append([]string(nil), d.Skills...)
		d.Tools = append([]string(nil), d.Tools...)
		r.byID[d.ID] = d
		r.order = append(r.order, d.ID)
	}
	if _, ok := r.byID[core.RootAgent]; !ok {
		r.byID[core.RootAgent] = core.AgentDescriptor{ID: core.RootAgent, Name: core.RootAgent}
		r.order = append([]string{core.RootAgent}, r.order...)
	}
	return r, nil
}

// MustRegistry is like NewRegistry but panics on error.
func MustRegistry(descs ...core.AgentDescriptor) *Registry {
	r, err := NewRegistry(descs...)
	if err != nil {
		panic(err)
	}
	return r
}

// Resolve implements core.Registry.
func (r *Registry) Resolve(id string) (core.AgentDescriptor, error) {
	d, ok := r.byID[id]
	if !ok {
		return core.AgentDescriptor{}, fmt.Errorf("%w: %s", core.ErrAgentNotFound, id)
	}
	return copyDescriptor(d), nil
}

// List implements core.Registry.
func (r *Registry) List() []core.AgentDescriptor {
	out := make([]core.AgentDescriptor, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, copyDescriptor(r.byID[id]))
	}
	return out
}

// Delegates returns the invocable agents of r other than self, in listing
// order.
func Delegates(r core.Registry, self string) []core.AgentDescriptor {
	if r == nil {
		return nil
	}
	var out []core.AgentDescriptor
	for _, d := range r.List() {
		if d.Invocable && d.ID != self {
			out = append(out, d)
		}
	}
	return out
}

func copyDescriptor(d core.AgentDescriptor) core.AgentDescriptor {
	d.Skills = append([]string(nil), d.Skills...)
	d.Tools = append([]string(nil), d.Tools...)
	return d
}

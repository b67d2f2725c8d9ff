package tool

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"
	contractx "github.com/tanpawarit/portfolio-copilot/agent/contract"
)

// InvokeFunc runs one capability with model-supplied arguments.
type InvokeFunc func(ctx context.Context, args map[string]any) (any, error)

// Capability is one named operation the model may request.
type Capability struct {
	Name        string
	Description string
	Params      map[string]*schema.ParameterInfo
	Invoke      InvokeFunc
}

func (c Capability) Info() *schema.ToolInfo {
	params := c.Params
	if params == nil {
		params = map[string]*schema.ParameterInfo{}
	}
	return &schema.ToolInfo{
		Name:        c.Name,
		Desc:        c.Description,
		ParamsOneOf: schema.NewParamsOneOfByParams(params),
	}
}

// Registry is an immutable, ordered set of capabilities built for one request.
type Registry struct {
	ordered []Capability
	byName  map[string]Capability
}

// NewRegistry rejects duplicate or empty names and nil invoke functions.
func NewRegistry(caps ...Capability) (*Registry, error) {
	r := &Registry{
		ordered: make([]Capability, 0, len(caps)),
		byName:  make(map[string]Capability, len(caps)),
	}
	for _, c := range caps {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: capability name is empty", contractx.ErrValidation)
		}
		if c.Invoke == nil {
			return nil, fmt.Errorf("%w: capability=%s has no invoke func", contractx.ErrValidation, name)
		}
		if _, dup := r.byName[name]; dup {
			return nil, fmt.Errorf("%w: %q", contractx.ErrDuplicateCapability, name)
		}
		c.Name = name
		r.ordered = append(r.ordered, c)
		r.byName[name] = c
	}
	return r, nil
}

func (r *Registry) Lookup(name string) (Capability, bool) {
	if r == nil {
		return Capability{}, false
	}
	c, ok := r.byName[name]
	return c, ok
}

// Descriptors returns the model-facing tool infos in registration order.
func (r *Registry) Descriptors() []*schema.ToolInfo {
	if r == nil {
		return nil
	}
	out := make([]*schema.ToolInfo, 0, len(r.ordered))
	for _, c := range r.ordered {
		out = append(out, c.Info())
	}
	return out
}

func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.ordered))
	for _, c := range r.ordered {
		out = append(out, c.Name)
	}
	return out
}

func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.ordered)
}

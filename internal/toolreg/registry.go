// Package toolreg holds the tool registry: stable tool names mapped to
// parameter signatures and callables. Tool names are immutable identifiers;
// the remote discovery path reports exactly what the local registry holds.
package toolreg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// ErrUnknownTool means the requested tool name is not registered.
var ErrUnknownTool = errors.New("unknown tool")

// ArgumentError names the parameter that failed validation. The callable is
// never invoked when one of these is returned.
type ArgumentError struct {
	Param  string
	Reason string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("invalid argument %q: %s", e.Param, e.Reason)
}

const (
	TypeString  = "string"
	TypeInteger = "integer"
	TypeNumber  = "number"
	TypeBoolean = "boolean"
)

type Param struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required"`
	Default     any    `json:"default,omitempty"`
}

type Descriptor struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Params      []Param `json:"params"`
}

// Handler executes a tool. The returned string is the canonical serialized
// payload, identical on the direct and remote paths.
type Handler func(ctx context.Context, args map[string]any) (string, error)

type entry struct {
	desc    Descriptor
	handler Handler
}

// Registry is write-once at startup, read-mostly after.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]entry
	order []string
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]entry)}
}

func (r *Registry) Register(desc Descriptor, handler Handler) error {
	if desc.Name == "" {
		return errors.New("tool name is required")
	}
	if handler == nil {
		return fmt.Errorf("tool %s: handler is required", desc.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[desc.Name]; exists {
		return fmt.Errorf("tool %s already registered", desc.Name)
	}
	r.tools[desc.Name] = entry{desc: desc, handler: handler}
	r.order = append(r.order, desc.Name)
	return nil
}

// Resolve returns the descriptor and callable for a name.
func (r *Registry) Resolve(name string) (Descriptor, Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.tools[name]
	if !ok {
		return Descriptor{}, nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	return e.desc, e.handler, nil
}

// List returns all descriptors in registration order.
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name].desc)
	}
	return out
}

// Invoke validates the arguments against the descriptor, then calls the tool.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]any) (string, error) {
	desc, handler, err := r.Resolve(name)
	if err != nil {
		return "", err
	}
	checked, err := ValidateArgs(desc, args)
	if err != nil {
		return "", err
	}
	return handler(ctx, checked)
}

// SchemaJSON renders the descriptor as a JSON schema for protocol discovery.
// The remote tool list is generated from these same bytes, so names and
// parameter names can never drift between the two paths.
func (d Descriptor) SchemaJSON() json.RawMessage {
	properties := make(map[string]any, len(d.Params))
	var required []string
	for _, p := range d.Params {
		prop := map[string]any{"type": p.Type}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		if p.Default != nil {
			prop["default"] = p.Default
		}
		properties[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	raw, _ := json.Marshal(schema)
	return raw
}

// Package dispatch is the boundary the reasoning component calls through. It
// offers two interchangeable strategies behind one interface: a direct
// in-process call into the tool registry, and a remote strategy that
// discovers the tool list once over the session protocol and invokes through
// it. Both accept and return the same shapes, so call sites never change when
// the strategy does.
package dispatch

import (
	"context"
	"fmt"

	"github.com/croftbay/pgscout/internal/toolreg"
)

// Invoker invokes named tools with validated arguments. Results are the
// canonical serialized payload, identical across strategies.
type Invoker interface {
	// Tools lists the available tool descriptors.
	Tools(ctx context.Context) ([]toolreg.Descriptor, error)
	// Invoke calls one tool by name.
	Invoke(ctx context.Context, name string, args map[string]any) (string, error)
	Close() error
}

// ToolError is a tool failure reported over the remote path, carrying the
// original kind and message from the error envelope.
type ToolError struct {
	Kind    string
	Message string
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

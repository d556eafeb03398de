package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/croftbay/pgscout/internal/toolreg"
	"github.com/croftbay/pgscout/internal/toolsvc"
)

// Remote dispatches over the session protocol. The first use performs the
// handshake and one discovery call; the descriptor cache then validates
// arguments locally before any request goes out. When the server no longer
// recognizes the session, Remote re-handshakes and retries the call exactly
// once before surfacing the error.
type Remote struct {
	newClient func() (*client.Client, error)

	mu     sync.Mutex
	client *client.Client
	tools  []toolreg.Descriptor
	byName map[string]toolreg.Descriptor
}

// NewRemote dispatches against a streamable HTTP endpoint such as
// "http://localhost:8010/mcp".
func NewRemote(endpoint string) *Remote {
	return &Remote{
		newClient: func() (*client.Client, error) {
			return client.NewStreamableHttpClient(endpoint)
		},
	}
}

// NewInProcess wires the remote strategy straight into an MCP server without
// a network hop. Used in tests and embedded setups; the protocol framing is
// identical to the HTTP path.
func NewInProcess(srv *server.MCPServer) *Remote {
	return &Remote{
		newClient: func() (*client.Client, error) {
			return client.NewInProcessClient(srv)
		},
	}
}

// connect performs the handshake and populates the descriptor cache.
// Callers hold r.mu.
func (r *Remote) connect(ctx context.Context) error {
	if r.client != nil {
		return nil
	}

	c, err := r.newClient()
	if err != nil {
		return fmt.Errorf("creating protocol client: %w", err)
	}
	if err := c.Start(ctx); err != nil {
		c.Close()
		return fmt.Errorf("starting transport: %w", err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{
		Name:    "pgscout-dispatch",
		Version: toolsvc.ServerVersion,
	}
	if _, err := c.Initialize(ctx, initReq); err != nil {
		c.Close()
		return fmt.Errorf("handshake: %w", err)
	}

	listed, err := c.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		c.Close()
		return fmt.Errorf("discovering tools: %w", err)
	}

	r.client = c
	r.tools = r.tools[:0]
	r.byName = make(map[string]toolreg.Descriptor, len(listed.Tools))
	for _, t := range listed.Tools {
		desc := descriptorFromTool(t)
		r.tools = append(r.tools, desc)
		r.byName[desc.Name] = desc
	}
	return nil
}

// reset drops the dead session so the next call re-handshakes.
// Callers hold r.mu.
func (r *Remote) reset() {
	if r.client != nil {
		r.client.Close()
		r.client = nil
	}
}

func (r *Remote) Tools(ctx context.Context) ([]toolreg.Descriptor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.connect(ctx); err != nil {
		return nil, err
	}
	out := make([]toolreg.Descriptor, len(r.tools))
	copy(out, r.tools)
	return out, nil
}

func (r *Remote) Invoke(ctx context.Context, name string, args map[string]any) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.connect(ctx); err != nil {
		return "", err
	}

	// Fast local failure before anything crosses the wire.
	desc, known := r.byName[name]
	if !known {
		return "", fmt.Errorf("%w: %s", toolreg.ErrUnknownTool, name)
	}
	if _, err := toolreg.ValidateArgs(desc, args); err != nil {
		return "", err
	}

	result, err := r.call(ctx, name, args)
	if err != nil {
		// A ToolError came back over a working session; retrying would
		// run the statement again.
		var te *ToolError
		if errors.As(err, &te) || ctx.Err() != nil {
			return "", err
		}
		// The session may have idled out; one re-handshake, one retry.
		r.reset()
		if cerr := r.connect(ctx); cerr != nil {
			return "", cerr
		}
		result, err = r.call(ctx, name, args)
		if err != nil {
			return "", err
		}
	}
	return result, nil
}

func (r *Remote) call(ctx context.Context, name string, args map[string]any) (string, error) {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	res, err := r.client.CallTool(ctx, req)
	if err != nil {
		return "", err
	}

	text := firstText(res.Content)
	if res.IsError {
		if kind, message, ok := toolsvc.DecodeError(text); ok {
			return "", &ToolError{Kind: kind, Message: message}
		}
		return "", &ToolError{Kind: toolsvc.KindProtocolError, Message: text}
	}
	return text, nil
}

func (r *Remote) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reset()
	return nil
}

func firstText(content []mcp.Content) string {
	for _, item := range content {
		if tc, ok := mcp.AsTextContent(item); ok {
			return tc.Text
		}
	}
	return ""
}

// descriptorFromTool rebuilds a registry descriptor from a discovered tool.
// Descriptors are immutable value objects, never live proxies.
func descriptorFromTool(t mcp.Tool) toolreg.Descriptor {
	desc := toolreg.Descriptor{
		Name:        t.Name,
		Description: t.Description,
	}

	required := make(map[string]bool, len(t.InputSchema.Required))
	for _, name := range t.InputSchema.Required {
		required[name] = true
	}

	names := make([]string, 0, len(t.InputSchema.Properties))
	for name := range t.InputSchema.Properties {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		param := toolreg.Param{Name: name, Required: required[name]}
		if prop, ok := t.InputSchema.Properties[name].(map[string]any); ok {
			if typ, ok := prop["type"].(string); ok {
				param.Type = typ
			}
			if d, ok := prop["description"].(string); ok {
				param.Description = d
			}
			param.Default = prop["default"]
		}
		desc.Params = append(desc.Params, param)
	}
	return desc
}

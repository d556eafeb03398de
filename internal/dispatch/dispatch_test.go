package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"testing"

	"github.com/mark3labs/mcp-go/client"

	"github.com/croftbay/pgscout/internal/inspect"
	"github.com/croftbay/pgscout/internal/toolreg"
	"github.com/croftbay/pgscout/internal/toolsvc"
)

// testRegistry mirrors the real tool surface with handlers that need no
// database, so both strategies can be driven end to end in-process.
func testRegistry(t *testing.T) *toolreg.Registry {
	t.Helper()
	reg := toolreg.NewRegistry()

	mustRegister := func(desc toolreg.Descriptor, h toolreg.Handler) {
		if err := reg.Register(desc, h); err != nil {
			t.Fatalf("register %s: %v", desc.Name, err)
		}
	}

	mustRegister(toolreg.Descriptor{
		Name:        "list_tables",
		Description: "List all tables",
		Params: []toolreg.Param{
			{Name: "schema", Type: toolreg.TypeString, Description: "Optional schema filter"},
		},
	}, func(ctx context.Context, args map[string]any) (string, error) {
		list := &inspect.TableList{
			TotalTables: 1,
			Tables: []inspect.TableDescriptor{
				{Schema: "public", Name: "actor", FullName: "public.actor", EstimatedRows: 200},
			},
		}
		b, err := json.MarshalIndent(list, "", "  ")
		return string(b), err
	})

	mustRegister(toolreg.Descriptor{
		Name:        "execute_sql",
		Description: "Execute SQL",
		Params: []toolreg.Param{
			{Name: "query", Type: toolreg.TypeString, Required: true},
		},
	}, func(ctx context.Context, args map[string]any) (string, error) {
		query, _ := args["query"].(string)
		if query == "not sql" {
			return "", &inspect.QueryError{
				SQL: query,
				Err: errors.New(`syntax error at or near "not"`),
			}
		}
		rs := &inspect.ResultSet{
			Columns:  []string{"?column?"},
			Rows:     []map[string]any{{"?column?": 1}},
			RowCount: 1,
		}
		b, err := json.MarshalIndent(rs, "", "  ")
		return string(b), err
	})

	return reg
}

func strategies(t *testing.T) (*Direct, *Remote) {
	t.Helper()
	reg := testRegistry(t)
	direct := NewDirect(reg)
	remote := NewInProcess(toolsvc.NewMCPServer(reg))
	t.Cleanup(func() { remote.Close() })
	return direct, remote
}

func paramNames(d toolreg.Descriptor) []string {
	names := make([]string, len(d.Params))
	for i, p := range d.Params {
		names[i] = p.Name
	}
	sort.Strings(names)
	return names
}

func TestDiscoveryMatchesLocalRegistry(t *testing.T) {
	direct, remote := strategies(t)
	ctx := context.Background()

	local, err := direct.Tools(ctx)
	if err != nil {
		t.Fatalf("direct Tools: %v", err)
	}
	discovered, err := remote.Tools(ctx)
	if err != nil {
		t.Fatalf("remote Tools: %v", err)
	}

	if len(local) != len(discovered) {
		t.Fatalf("tool counts differ: local %d, remote %d", len(local), len(discovered))
	}

	byName := make(map[string]toolreg.Descriptor, len(discovered))
	for _, d := range discovered {
		byName[d.Name] = d
	}
	for _, l := range local {
		r, ok := byName[l.Name]
		if !ok {
			t.Errorf("tool %q missing from remote discovery", l.Name)
			continue
		}
		lp, rp := paramNames(l), paramNames(r)
		if len(lp) != len(rp) {
			t.Errorf("%s: parameter counts differ: %v vs %v", l.Name, lp, rp)
			continue
		}
		for i := range lp {
			if lp[i] != rp[i] {
				t.Errorf("%s: parameter %q != %q", l.Name, lp[i], rp[i])
			}
		}
	}
}

func TestStrategiesReturnIdenticalBytes(t *testing.T) {
	direct, remote := strategies(t)
	ctx := context.Background()

	calls := []struct {
		tool string
		args map[string]any
	}{
		{"list_tables", map[string]any{}},
		{"list_tables", map[string]any{"schema": "public"}},
		{"execute_sql", map[string]any{"query": "SELECT 1"}},
	}

	for _, call := range calls {
		viaDirect, err := direct.Invoke(ctx, call.tool, call.args)
		if err != nil {
			t.Fatalf("direct %s: %v", call.tool, err)
		}
		viaRemote, err := remote.Invoke(ctx, call.tool, call.args)
		if err != nil {
			t.Fatalf("remote %s: %v", call.tool, err)
		}
		if viaDirect != viaRemote {
			t.Errorf("%s payloads differ:\ndirect: %s\nremote: %s", call.tool, viaDirect, viaRemote)
		}
	}
}

func TestErrorKindSurvivesTheWire(t *testing.T) {
	direct, remote := strategies(t)
	ctx := context.Background()
	args := map[string]any{"query": "not sql"}

	_, directErr := direct.Invoke(ctx, "execute_sql", args)
	var qe *inspect.QueryError
	if !errors.As(directErr, &qe) {
		t.Fatalf("direct err = %v, want *inspect.QueryError", directErr)
	}

	_, remoteErr := remote.Invoke(ctx, "execute_sql", args)
	var te *ToolError
	if !errors.As(remoteErr, &te) {
		t.Fatalf("remote err = %v, want *ToolError", remoteErr)
	}
	if te.Kind != toolsvc.KindQueryError {
		t.Errorf("remote kind = %q, want %q", te.Kind, toolsvc.KindQueryError)
	}
	if te.Message != qe.Error() {
		t.Errorf("remote message %q differs from direct %q", te.Message, qe.Error())
	}
}

func TestRemoteValidatesLocally(t *testing.T) {
	_, remote := strategies(t)
	ctx := context.Background()

	_, err := remote.Invoke(ctx, "no_such_tool", nil)
	if !errors.Is(err, toolreg.ErrUnknownTool) {
		t.Fatalf("err = %v, want ErrUnknownTool", err)
	}

	_, err = remote.Invoke(ctx, "execute_sql", map[string]any{"query": 42})
	var ae *toolreg.ArgumentError
	if !errors.As(err, &ae) {
		t.Fatalf("err = %v, want *ArgumentError", err)
	}
	if ae.Param != "query" {
		t.Errorf("offending param = %q, want query", ae.Param)
	}
}

func TestRemoteMissingRequiredArgument(t *testing.T) {
	_, remote := strategies(t)

	_, err := remote.Invoke(context.Background(), "execute_sql", map[string]any{})
	var ae *toolreg.ArgumentError
	if !errors.As(err, &ae) {
		t.Fatalf("err = %v, want *ArgumentError", err)
	}
}

func TestRemoteRecoversLostSessionWithOneHandshake(t *testing.T) {
	srv := toolsvc.NewMCPServer(testRegistry(t))

	var handshakes int
	remote := &Remote{
		newClient: func() (*client.Client, error) {
			handshakes++
			return client.NewInProcessClient(srv)
		},
	}
	t.Cleanup(func() { remote.Close() })
	ctx := context.Background()

	first, err := remote.Invoke(ctx, "list_tables", map[string]any{})
	if err != nil {
		t.Fatalf("first invoke: %v", err)
	}
	if handshakes != 1 {
		t.Fatalf("handshakes = %d, want 1", handshakes)
	}

	// Kill the live session out from under the strategy; the next call's
	// transport failure must trigger one re-handshake, then succeed.
	remote.client.Close()

	second, err := remote.Invoke(ctx, "list_tables", map[string]any{})
	if err != nil {
		t.Fatalf("invoke after lost session: %v", err)
	}
	if second != first {
		t.Errorf("payload changed across re-handshake:\nfirst:  %s\nsecond: %s", first, second)
	}
	if handshakes != 2 {
		t.Errorf("handshakes = %d, want exactly one re-handshake", handshakes)
	}
}

func TestRemoteSurfacesReconnectFailure(t *testing.T) {
	srv := toolsvc.NewMCPServer(testRegistry(t))

	dialErr := errors.New("endpoint unreachable")
	var dials int
	remote := &Remote{
		newClient: func() (*client.Client, error) {
			dials++
			if dials > 1 {
				return nil, dialErr
			}
			return client.NewInProcessClient(srv)
		},
	}
	t.Cleanup(func() { remote.Close() })
	ctx := context.Background()

	if _, err := remote.Invoke(ctx, "list_tables", map[string]any{}); err != nil {
		t.Fatalf("first invoke: %v", err)
	}

	remote.client.Close()

	_, err := remote.Invoke(ctx, "list_tables", map[string]any{})
	if !errors.Is(err, dialErr) {
		t.Fatalf("err = %v, want the reconnect failure", err)
	}
	if dials != 2 {
		t.Errorf("dials = %d, want one retry then surface", dials)
	}
}

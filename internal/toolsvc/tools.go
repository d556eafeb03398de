// Package toolsvc defines the four database tools, binds them to the
// metadata operations, and bridges the registry onto an MCP server.
package toolsvc

import (
	"context"
	"encoding/json"

	"github.com/croftbay/pgscout/internal/audit"
	"github.com/croftbay/pgscout/internal/inspect"
	"github.com/croftbay/pgscout/internal/toolreg"
)

// NewRegistry builds the tool registry for one inspector. Tool names and
// parameter names are part of the compatibility contract with the calling
// agent and never change.
func NewRegistry(in *inspect.Inspector, auditStore *audit.Store) *toolreg.Registry {
	reg := toolreg.NewRegistry()

	register := func(desc toolreg.Descriptor, h toolreg.Handler) {
		// Registration happens once at startup with static descriptors;
		// a failure here is a programming error.
		if err := reg.Register(desc, audit.Wrap(auditStore, desc.Name, h)); err != nil {
			panic(err)
		}
	}

	register(toolreg.Descriptor{
		Name:        "list_tables",
		Description: "List all tables in the database with estimated row counts (planner statistics, not exact). Optionally filter by schema name.",
		Params: []toolreg.Param{
			{Name: "schema", Type: toolreg.TypeString, Description: "Optional schema name filter"},
		},
	}, func(ctx context.Context, args map[string]any) (string, error) {
		list, err := in.ListTables(ctx, stringArg(args, "schema"))
		if err != nil {
			return "", err
		}
		return marshalPayload(list)
	})

	register(toolreg.Descriptor{
		Name:        "describe_table",
		Description: "Get detailed information about a table: columns, data types, nullability, key roles and column statistics.",
		Params: []toolreg.Param{
			{Name: "table_name", Type: toolreg.TypeString, Required: true, Description: "Name of the table to describe (can include schema like 'public.actor')"},
			{Name: "schema", Type: toolreg.TypeString, Description: "Optional schema name if not included in table_name"},
		},
	}, func(ctx context.Context, args map[string]any) (string, error) {
		desc, err := in.DescribeTable(ctx, stringArg(args, "table_name"), stringArg(args, "schema"))
		if err != nil {
			return "", err
		}
		return marshalPayload(desc)
	})

	register(toolreg.Descriptor{
		Name:        "get_table_sample",
		Description: "Get a sample of rows from a table (maximum 1000 rows; larger limits are clamped).",
		Params: []toolreg.Param{
			{Name: "table_name", Type: toolreg.TypeString, Required: true, Description: "Name of the table to sample (can include schema like 'public.actor')"},
			{Name: "limit", Type: toolreg.TypeInteger, Default: 5, Description: "Number of rows to return (capped at 1000)"},
			{Name: "schema", Type: toolreg.TypeString, Description: "Optional schema name if not included in table_name"},
		},
	}, func(ctx context.Context, args map[string]any) (string, error) {
		rs, err := in.SampleTable(ctx, stringArg(args, "table_name"), intArg(args, "limit", 5), stringArg(args, "schema"))
		if err != nil {
			return "", err
		}
		return marshalPayload(rs)
	})

	register(toolreg.Descriptor{
		Name:        "execute_sql",
		Description: "Execute an SQL statement on the PostgreSQL database. Supports SELECT, INSERT, UPDATE, DELETE, and other SQL commands.",
		Params: []toolreg.Param{
			{Name: "query", Type: toolreg.TypeString, Required: true, Description: "The SQL statement to execute"},
		},
	}, func(ctx context.Context, args map[string]any) (string, error) {
		res, err := in.ExecuteSQL(ctx, stringArg(args, "query"))
		if err != nil {
			return "", err
		}
		return marshalPayload(res)
	})

	return reg
}

// marshalPayload is the single serialization point for tool results. Both
// dispatch paths emit these exact bytes.
func marshalPayload(v any) (string, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func stringArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}

func intArg(args map[string]any, key string, def int) int {
	switch v := args[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	case json.Number:
		n, _ := v.Int64()
		return int(n)
	default:
		return def
	}
}

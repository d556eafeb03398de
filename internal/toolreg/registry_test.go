package toolreg

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func testDescriptor() Descriptor {
	return Descriptor{
		Name:        "sample_table",
		Description: "Sample rows from a table",
		Params: []Param{
			{Name: "table_name", Type: TypeString, Required: true},
			{Name: "limit", Type: TypeInteger, Default: 5},
			{Name: "schema", Type: TypeString},
		},
	}
}

func echoHandler(ctx context.Context, args map[string]any) (string, error) {
	b, _ := json.Marshal(args)
	return string(b), nil
}

func TestRegisterAndResolve(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(testDescriptor(), echoHandler); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	desc, handler, err := r.Resolve("sample_table")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if desc.Name != "sample_table" || handler == nil {
		t.Errorf("unexpected resolve result: %+v", desc)
	}
}

func TestResolveUnknown(t *testing.T) {
	r := NewRegistry()
	_, _, err := r.Resolve("nope")
	if !errors.Is(err, ErrUnknownTool) {
		t.Fatalf("err = %v, want ErrUnknownTool", err)
	}
}

func TestRegisterDuplicate(t *testing.T) {
	r := NewRegistry()
	r.Register(testDescriptor(), echoHandler)
	if err := r.Register(testDescriptor(), echoHandler); err == nil {
		t.Fatal("expected error on duplicate registration")
	}
}

func TestListOrder(t *testing.T) {
	r := NewRegistry()
	names := []string{"list_tables", "describe_table", "get_table_sample", "execute_sql"}
	for _, n := range names {
		r.Register(Descriptor{Name: n, Description: n}, echoHandler)
	}
	list := r.List()
	if len(list) != len(names) {
		t.Fatalf("List returned %d descriptors, want %d", len(list), len(names))
	}
	for i, d := range list {
		if d.Name != names[i] {
			t.Errorf("List[%d] = %s, want %s", i, d.Name, names[i])
		}
	}
}

func TestValidateArgs(t *testing.T) {
	desc := testDescriptor()

	tests := []struct {
		name      string
		args      map[string]any
		wantParam string // empty means no error expected
	}{
		{"all valid", map[string]any{"table_name": "actor", "limit": float64(10)}, ""},
		{"missing required", map[string]any{"limit": 3}, "table_name"},
		{"unknown param", map[string]any{"table_name": "actor", "bogus": 1}, "bogus"},
		{"wrong type", map[string]any{"table_name": 42}, "table_name"},
		{"fractional integer", map[string]any{"table_name": "actor", "limit": 2.5}, "limit"},
		{"json number", map[string]any{"table_name": "actor", "limit": json.Number("7")}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateArgs(desc, tt.args)
			if tt.wantParam == "" {
				if err != nil {
					t.Fatalf("ValidateArgs failed: %v", err)
				}
				return
			}
			var ae *ArgumentError
			if !errors.As(err, &ae) {
				t.Fatalf("err = %v, want *ArgumentError", err)
			}
			if ae.Param != tt.wantParam {
				t.Errorf("offending param = %q, want %q", ae.Param, tt.wantParam)
			}
		})
	}
}

func TestValidateArgsAppliesDefaults(t *testing.T) {
	checked, err := ValidateArgs(testDescriptor(), map[string]any{"table_name": "actor"})
	if err != nil {
		t.Fatalf("ValidateArgs failed: %v", err)
	}
	if checked["limit"] != 5 {
		t.Errorf("limit default = %v, want 5", checked["limit"])
	}
	if _, ok := checked["schema"]; ok {
		t.Error("absent optional without default should stay absent")
	}
}

func TestInvokeValidationStopsHandler(t *testing.T) {
	r := NewRegistry()
	called := false
	r.Register(testDescriptor(), func(ctx context.Context, args map[string]any) (string, error) {
		called = true
		return "", nil
	})

	_, err := r.Invoke(context.Background(), "sample_table", map[string]any{"limit": 1})
	var ae *ArgumentError
	if !errors.As(err, &ae) {
		t.Fatalf("err = %v, want *ArgumentError", err)
	}
	if called {
		t.Error("handler was invoked despite invalid arguments")
	}
}

func TestSchemaJSON(t *testing.T) {
	raw := testDescriptor().SchemaJSON()

	var schema struct {
		Type       string                    `json:"type"`
		Properties map[string]map[string]any `json:"properties"`
		Required   []string                  `json:"required"`
	}
	if err := json.Unmarshal(raw, &schema); err != nil {
		t.Fatalf("schema is not valid JSON: %v", err)
	}
	if schema.Type != "object" {
		t.Errorf("schema type = %q", schema.Type)
	}
	if len(schema.Properties) != 3 {
		t.Errorf("properties = %d, want 3", len(schema.Properties))
	}
	if len(schema.Required) != 1 || schema.Required[0] != "table_name" {
		t.Errorf("required = %v, want [table_name]", schema.Required)
	}
	if schema.Properties["limit"]["default"] != float64(5) {
		t.Errorf("limit default = %v", schema.Properties["limit"]["default"])
	}
}

package tools

import (
	"context"
	"testing"
)

func TestRegistryRegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	tool := staticTool{name: "search_items", description: "search catalog items", schema: map[string]any{"type": "object"}}

	if err := r.Register(tool); err != nil {
		t.Fatalf("register tool: %v", err)
	}

	got, ok := r.Lookup("search_items")
	if !ok {
		t.Fatalf("expected tool lookup to succeed")
	}
	if got.Name() != "search_items" {
		t.Fatalf("expected tool name search_items, got %q", got.Name())
	}
}

func TestRegistryRegisterRejectsDuplicate(t *testing.T) {
	r := NewRegistry()
	tool := staticTool{name: "search_items"}
	if err := r.Register(tool); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := r.Register(tool); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
}

func TestToolDefinitionsSerializesSchema(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"item_id": map[string]any{"type": "string"},
		},
	}
	tool := staticTool{name: "add_line", description: "Add a line item", schema: schema}

	defs := ToolDefinitions([]Tool{tool})
	if len(defs) != 1 {
		t.Fatalf("expected 1 definition, got %d", len(defs))
	}
	if defs[0].Name != "add_line" {
		t.Fatalf("expected name add_line, got %q", defs[0].Name)
	}
	if defs[0].Description != "Add a line item" {
		t.Fatalf("expected description to round trip")
	}
	if got := defs[0].Parameters["type"]; got != "object" {
		t.Fatalf("expected schema type object, got %#v", got)
	}
}

func TestEligibleTools_FiltersByEligibility(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(staticTool{name: "always_on"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.Register(gatedTool{staticTool: staticTool{name: "table_reservations.create"}, eligible: false}); err != nil {
		t.Fatalf("register: %v", err)
	}

	eligible, err := r.EligibleTools(context.Background(), EligibilityContext{ActiveAddons: map[string]bool{}})
	if err != nil {
		t.Fatalf("eligible tools: %v", err)
	}
	if len(eligible) != 1 || eligible[0].Name() != "always_on" {
		t.Fatalf("expected only the ungated tool, got %#v", eligible)
	}
}

func TestOkAndFailEnvelopes(t *testing.T) {
	ok := Ok("order accepted", map[string]any{"order_id": "abc"})
	if !ok.Success || ok.Error != nil {
		t.Fatalf("expected successful envelope, got %#v", ok)
	}

	fail := Fail("INSUFFICIENT_STOCK", "not enough coke in stock")
	if fail.Success || fail.Error == nil || fail.Error.Code != "INSUFFICIENT_STOCK" {
		t.Fatalf("expected failure envelope with code, got %#v", fail)
	}
}

type staticTool struct {
	name        string
	description string
	schema      map[string]any
	permission  Permission
	result      *ToolResult
	err         error
}

func (t staticTool) Name() string        { return t.name }
func (t staticTool) Description() string { return t.description }
func (t staticTool) Schema() map[string]any {
	if t.schema == nil {
		return map[string]any{"type": "object"}
	}
	return t.schema
}
func (t staticTool) Permission() Permission { return t.permission }
func (t staticTool) Execute(_ context.Context, _ map[string]any) (*ToolResult, error) {
	if t.err != nil {
		return nil, t.err
	}
	if t.result != nil {
		return t.result, nil
	}
	return Ok("ok", nil), nil
}

type gatedTool struct {
	staticTool
	eligible bool
}

func (t gatedTool) Eligible(_ context.Context, _ EligibilityContext) (bool, error) {
	return t.eligible, nil
}

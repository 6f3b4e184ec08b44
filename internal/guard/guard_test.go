package guard

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahmadsadek12/convoyd/internal/tools"
)

type fakeTool struct {
	name       string
	permission tools.Permission
	validator  string
}

func (t fakeTool) Name() string            { return t.name }
func (t fakeTool) Description() string     { return t.name }
func (t fakeTool) Schema() map[string]any  { return map[string]any{"type": "object"} }
func (t fakeTool) Permission() tools.Permission { return t.permission }
func (t fakeTool) Execute(_ context.Context, _ map[string]any) (*tools.ToolResult, error) {
	return tools.Ok("ok", nil), nil
}
func (t fakeTool) RequiredValidatorName() string { return t.validator }

func newTestSequencer(t *testing.T) *Sequencer {
	t.Helper()
	registry := tools.NewRegistry()
	require.NoError(t, registry.Register(fakeTool{name: "validate_cart_for_confirmation", permission: tools.ReadOnly}))
	require.NoError(t, registry.Register(fakeTool{name: "confirm_order", permission: tools.Mutating, validator: "validate_cart_for_confirmation"}))
	require.NoError(t, registry.Register(fakeTool{name: "add_line", permission: tools.Mutating}))
	require.NoError(t, registry.Register(fakeTool{name: "search_items", permission: tools.ReadOnly}))
	return NewSequencer(registry)
}

func TestSequencer_MutationRequiresImmediatelyPrecedingValidator(t *testing.T) {
	sq := newTestSequencer(t)

	// Nothing ran yet: the mutation is unvalidated.
	assert.ErrorIs(t, sq.Check("confirm_order"), ErrPreconditionMissing)

	sq.Record("validate_cart_for_confirmation", true)
	assert.NoError(t, sq.Check("confirm_order"))
}

func TestSequencer_InterveningCallBreaksTheWindow(t *testing.T) {
	sq := newTestSequencer(t)
	sq.Record("validate_cart_for_confirmation", true)
	sq.Record("search_items", true)
	assert.ErrorIs(t, sq.Check("confirm_order"), ErrPreconditionMissing)
}

func TestSequencer_FailedValidatorDoesNotUnlock(t *testing.T) {
	sq := newTestSequencer(t)
	sq.Record("validate_cart_for_confirmation", false)
	assert.ErrorIs(t, sq.Check("confirm_order"), ErrPreconditionMissing)
}

func TestSequencer_ToolsWithoutDeclaredValidatorPass(t *testing.T) {
	sq := newTestSequencer(t)
	// Mutating but with no declared validator (e.g. add_line).
	assert.NoError(t, sq.Check("add_line"))
	// Read-only tools always pass.
	assert.NoError(t, sq.Check("search_items"))
	// Unregistered names are left for the dispatch loop's unknown-tool path.
	assert.NoError(t, sq.Check("never_registered"))
}

func TestSequencer_ResetClearsTheTurn(t *testing.T) {
	sq := newTestSequencer(t)
	sq.Record("validate_cart_for_confirmation", true)
	require.NoError(t, sq.Check("confirm_order"))

	sq.Reset()
	assert.ErrorIs(t, sq.Check("confirm_order"), ErrPreconditionMissing)
}

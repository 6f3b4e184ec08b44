// Package guard enforces the mandatory-ordering rule: a mutating tool call
// must be immediately preceded, within the same turn, by a successful call
// to its declared validator. Each mutating tool declares its own
// precondition, so new tools register their pairing instead of a central
// table having to know every one.
package guard

import (
	"fmt"

	"github.com/ahmadsadek12/convoyd/internal/tools"
)

// ErrPreconditionMissing is returned when a mutating tool's call is not
// immediately preceded by a successful call to its required validator.
var ErrPreconditionMissing = fmt.Errorf("guard: required validator was not called immediately before this tool")

// Call is one step of the turn's ordered tool-call record, the minimal
// shape the Sequencer needs to check ordering.
type Call struct {
	ToolName string
	Success  bool
}

// Sequencer tracks the ordered sequence of tool calls made in one turn and
// enforces the mandatory-ordering precondition before a mutating call runs.
type Sequencer struct {
	registry *tools.Registry
	history  []Call
}

// NewSequencer builds a Sequencer against a tool registry.
func NewSequencer(registry *tools.Registry) *Sequencer {
	return &Sequencer{registry: registry}
}

// Reset clears the recorded history; call at the start of each new turn.
func (sq *Sequencer) Reset() {
	sq.history = nil
}

// Check verifies toolName may run next, given the calls recorded so far.
// Read-only tools and tools without a RequiredValidator always pass.
func (sq *Sequencer) Check(toolName string) error {
	tool, ok := sq.registry.Lookup(toolName)
	if !ok {
		return nil
	}
	if tool.Permission() != tools.Mutating {
		return nil
	}
	rv, ok := tool.(tools.RequiredValidator)
	if !ok {
		return nil
	}
	required := rv.RequiredValidatorName()
	if required == "" {
		return nil
	}
	if len(sq.history) == 0 {
		return fmt.Errorf("%w: %s requires %s immediately before it", ErrPreconditionMissing, toolName, required)
	}
	last := sq.history[len(sq.history)-1]
	if last.ToolName != required || !last.Success {
		return fmt.Errorf("%w: %s requires a successful call to %s immediately before it", ErrPreconditionMissing, toolName, required)
	}
	return nil
}

// Record appends a completed tool call to the turn's history.
func (sq *Sequencer) Record(toolName string, success bool) {
	sq.history = append(sq.history, Call{ToolName: toolName, Success: success})
}

// Package tools defines the Tool interface, Registry, and ToolResult
// consumed by the dispatch loop, plus the optional interfaces a tool can
// implement to gate its own visibility or require the mandatory-ordering
// guard.
package tools

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/ahmadsadek12/convoyd/internal/provider"
)

// Permission classifies whether a tool mutates business state. Mutating
// tools are subject to the mandatory-ordering guard: they must be
// immediately preceded, in the same turn, by their declared validator.
type Permission int

const (
	// ReadOnly tools never mutate state and run unconditionally.
	ReadOnly Permission = iota
	// Mutating tools change business state; one that declares a required
	// validator runs only right after that validator.
	Mutating
)

// Tool is the core executable action exposed to the LLM.
type Tool interface {
	Name() string
	Description() string
	Schema() map[string]any
	Permission() Permission
	Execute(ctx context.Context, args map[string]any) (*ToolResult, error)
}

// EligibilityChecker is implemented by tools whose presence in the catalog
// depends on tenant state (addon active, business type, opening hours). A
// tool with no EligibilityChecker is always offered.
type EligibilityChecker interface {
	Eligible(ctx context.Context, tenantCtx EligibilityContext) (bool, error)
}

// EligibilityContext carries the tenant facts eligibility predicates
// consult. It is intentionally small; tools read more detail themselves if
// eligible.
type EligibilityContext struct {
	BusinessID   string
	BusinessType string
	ActiveAddons map[string]bool
}

// RequiredValidator is implemented by mutating tools that name the
// validator tool which must run immediately before them in the same turn.
// A tool that returns "", or does not implement the interface at all (e.g.
// request_human_assistance and the cart tools), has no required validator.
type RequiredValidator interface {
	RequiredValidatorName() string
}

// ToolResult is the normalized `{success, message?, error?, payload?}`
// envelope returned to the LLM.
type ToolResult struct {
	Success bool           `json:"success"`
	Message string         `json:"message,omitempty"`
	Error   *ResultError   `json:"error,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
}

// ResultError is the machine-readable error carried by a failed ToolResult.
type ResultError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Ok builds a successful ToolResult.
func Ok(message string, payload map[string]any) *ToolResult {
	return &ToolResult{Success: true, Message: message, Payload: payload}
}

// Fail builds a failed ToolResult carrying a machine-readable code.
func Fail(code, message string) *ToolResult {
	return &ToolResult{Success: false, Error: &ResultError{Code: code, Message: message}}
}

// Registry stores tools by unique name.
type Registry struct {
	byName map[string]Tool
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Tool)}
}

// Register adds a tool by unique name.
func (r *Registry) Register(tool Tool) error {
	if tool == nil {
		return errors.New("tool cannot be nil")
	}
	name := tool.Name()
	if name == "" {
		return errors.New("tool name cannot be empty")
	}
	if _, exists := r.byName[name]; exists {
		return fmt.Errorf("tool %s already registered", name)
	}
	r.byName[name] = tool
	return nil
}

// Lookup returns a tool by name.
func (r *Registry) Lookup(name string) (Tool, bool) {
	tool, ok := r.byName[name]
	return tool, ok
}

// Tools returns all registered tools in stable name order.
func (r *Registry) Tools() []Tool {
	keys := make([]string, 0, len(r.byName))
	for name := range r.byName {
		keys = append(keys, name)
	}
	sort.Strings(keys)

	out := make([]Tool, 0, len(keys))
	for _, name := range keys {
		out = append(out, r.byName[name])
	}
	return out
}

// EligibleTools returns the subset of registered tools whose eligibility
// predicate passes for tenantCtx. Tools with no EligibilityChecker are
// always included.
func (r *Registry) EligibleTools(ctx context.Context, tenantCtx EligibilityContext) ([]Tool, error) {
	all := r.Tools()
	out := make([]Tool, 0, len(all))
	for _, tool := range all {
		checker, ok := tool.(EligibilityChecker)
		if !ok {
			out = append(out, tool)
			continue
		}
		eligible, err := checker.Eligible(ctx, tenantCtx)
		if err != nil {
			return nil, fmt.Errorf("eligibility check for %s: %w", tool.Name(), err)
		}
		if eligible {
			out = append(out, tool)
		}
	}
	return out, nil
}

// ToolDefinitions converts tools into LLM request tool definitions.
func ToolDefinitions(toolList []Tool) []provider.ToolDefinition {
	defs := make([]provider.ToolDefinition, 0, len(toolList))
	for _, tool := range toolList {
		defs = append(defs, provider.ToolDefinition{
			Name:        tool.Name(),
			Description: tool.Description(),
			Parameters:  tool.Schema(),
		})
	}
	return defs
}

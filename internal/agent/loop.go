package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ahmadsadek12/convoyd/internal/guard"
	"github.com/ahmadsadek12/convoyd/internal/logging"
	"github.com/ahmadsadek12/convoyd/internal/metrics"
	"github.com/ahmadsadek12/convoyd/internal/provider"
	"github.com/ahmadsadek12/convoyd/internal/tools"
)

const defaultMaxIterations = 6

// apologyMessage is synthesized when the tool loop exhausts its iteration
// cap without the model producing a final answer.
const apologyMessage = "Sorry, I'm having trouble completing that right now. Could you try again or rephrase your request?"

// Run drives one conversational turn's bounded tool-dispatch loop: it sends
// the conversation to the model, executes any tool calls the model requests
// against toolCatalog (subject to sequencer's mandatory-validator-ordering
// guard), feeds results back, and repeats until the model returns final
// text or maxIterations is reached.
func Run(
	ctx context.Context,
	modelProvider provider.Provider,
	toolCatalog []tools.Tool,
	sequencer *guard.Sequencer,
	llmCallTimeout time.Duration,
	systemPrompt string,
	messages []provider.ChatMessage,
	maxIterations int,
	m *metrics.EngineMetrics,
	onUsage func(provider.TokenUsage) error,
) (*provider.ChatResponse, []provider.ChatMessage, error) {
	if modelProvider == nil {
		return nil, nil, fmt.Errorf("provider is required")
	}
	if maxIterations <= 0 {
		maxIterations = defaultMaxIterations
	}
	if sequencer != nil {
		sequencer.Reset()
	}

	byName := make(map[string]tools.Tool, len(toolCatalog))
	for _, t := range toolCatalog {
		byName[t.Name()] = t
	}
	toolDefs := tools.ToolDefinitions(toolCatalog)

	history := append([]provider.ChatMessage(nil), messages...)
	totalUsage := provider.TokenUsage{}

	for i := 0; i < maxIterations; i++ {
		if err := ctx.Err(); err != nil {
			return nil, history, err
		}

		callCtx := ctx
		var cancel context.CancelFunc
		if llmCallTimeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, llmCallTimeout)
		}
		resp, err := modelProvider.Chat(callCtx, provider.ChatRequest{
			SystemPrompt: systemPrompt,
			Messages:     history,
			Tools:        toolDefs,
		})
		if cancel != nil {
			cancel()
		}
		if err != nil {
			return nil, history, fmt.Errorf("llm request: %w", err)
		}

		totalUsage.InputTokens += resp.Usage.InputTokens
		totalUsage.OutputTokens += resp.Usage.OutputTokens
		totalUsage.TotalTokens += resp.Usage.TotalTokens
		if onUsage != nil {
			if err := onUsage(resp.Usage); err != nil {
				logging.Logger().Warn("failed to record llm usage", "err", err)
			}
		}

		if len(resp.ToolCalls) == 0 {
			if resp.Content != "" {
				history = append(history, provider.ChatMessage{Role: provider.RoleAssistant, Content: resp.Content})
			}
			resp.Usage = totalUsage
			if m != nil {
				m.ToolLoopIterations.Observe(float64(i + 1))
			}
			return resp, history, nil
		}

		history = append(history, provider.ChatMessage{
			Role:      provider.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		for _, call := range resp.ToolCalls {
			if err := ctx.Err(); err != nil {
				return nil, history, err
			}
			history = append(history, executeToolCall(ctx, byName, sequencer, call, m))
		}
	}

	if m != nil {
		m.ToolLoopCapHits.Inc()
		m.ToolLoopIterations.Observe(float64(maxIterations))
	}
	history = append(history, provider.ChatMessage{Role: provider.RoleAssistant, Content: apologyMessage})
	return &provider.ChatResponse{Content: apologyMessage, Usage: totalUsage}, history, nil
}

// executeToolCall runs one model-requested tool call and returns the
// provider.ChatMessage carrying its serialized ToolResult, enforcing the
// mandatory-ordering precondition before any mutating tool actually runs.
func executeToolCall(ctx context.Context, byName map[string]tools.Tool, sequencer *guard.Sequencer, call provider.ToolCall, m *metrics.EngineMetrics) provider.ChatMessage {
	tool, ok := byName[call.Name]
	if !ok {
		return toolResultMessage(call.ID, tools.Fail("UNKNOWN_TOOL", fmt.Sprintf("unknown tool %q", call.Name)))
	}

	if sequencer != nil {
		if err := sequencer.Check(call.Name); err != nil {
			sequencer.Record(call.Name, false)
			if m != nil {
				m.ToolCallsTotal.WithLabelValues(call.Name, "precondition_missing").Inc()
			}
			return toolResultMessage(call.ID, tools.Fail("PRECONDITION_MISSING", err.Error()))
		}
	}

	args := map[string]any{}
	if strings.TrimSpace(call.Arguments) != "" {
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			if sequencer != nil {
				sequencer.Record(call.Name, false)
			}
			return toolResultMessage(call.ID, tools.Fail("INVALID_ARGUMENTS", fmt.Sprintf("invalid arguments for %s: %v", call.Name, err)))
		}
	}

	result, err := tool.Execute(ctx, args)
	if err != nil {
		// Tool executors never panic; an error returned here is an upstream/
		// transient failure, not a validation outcome.
		if sequencer != nil {
			sequencer.Record(call.Name, false)
		}
		if m != nil {
			m.ToolCallsTotal.WithLabelValues(call.Name, "error").Inc()
		}
		return toolResultMessage(call.ID, tools.Fail("TOOL_ERROR", err.Error()))
	}

	if sequencer != nil {
		sequencer.Record(call.Name, result.Success)
	}
	if m != nil {
		outcome := "success"
		if !result.Success {
			outcome = "failure"
		}
		m.ToolCallsTotal.WithLabelValues(call.Name, outcome).Inc()
	}
	return toolResultMessage(call.ID, result)
}

func toolResultMessage(toolCallID string, result *tools.ToolResult) provider.ChatMessage {
	encoded, err := json.Marshal(result)
	content := string(encoded)
	if err != nil {
		content = fmt.Sprintf(`{"success":false,"error":{"code":"ENCODE_ERROR","message":%q}}`, err.Error())
	}
	return provider.ChatMessage{Role: provider.RoleTool, ToolCallID: toolCallID, Content: content}
}

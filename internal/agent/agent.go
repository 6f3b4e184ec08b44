// Package agent implements the tool-dispatching conversational engine:
// per-turn tenant/context resolution, eligibility-gated tool catalog
// construction, the bounded LLM/tool loop, and session persistence, driven
// from one Agent per process and shared across every tenant dispatcher.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ahmadsadek12/convoyd/internal/catalog"
	"github.com/ahmadsadek12/convoyd/internal/guard"
	"github.com/ahmadsadek12/convoyd/internal/identity"
	"github.com/ahmadsadek12/convoyd/internal/metrics"
	"github.com/ahmadsadek12/convoyd/internal/orders"
	"github.com/ahmadsadek12/convoyd/internal/provider"
	"github.com/ahmadsadek12/convoyd/internal/runtime"
	"github.com/ahmadsadek12/convoyd/internal/session"
	"github.com/ahmadsadek12/convoyd/internal/tools"
)

const defaultRequestTimeout = 30 * time.Second

// Agent is the process-wide tool-dispatching engine. It holds no
// per-customer mutable state; everything customer-specific is loaded from
// and persisted to the session store on every turn, so one Agent is safe to
// share across every per-session dispatcher in internal/runtime.
type Agent struct {
	provider provider.Provider
	registry *tools.Registry
	identity *identity.Store
	catalog  *catalog.Store
	orders   *orders.Store
	sessions *session.Store
	metrics  *metrics.EngineMetrics

	maxIter          int
	requestTimeout   time.Duration
	llmCallTimeout   time.Duration
	maxContextTokens int
	recentMessages   int
	historyLimit     int
}

// New builds the process-wide Agent.
func New(
	modelProvider provider.Provider,
	registry *tools.Registry,
	identityStore *identity.Store,
	catalogStore *catalog.Store,
	orderStore *orders.Store,
	sessionStore *session.Store,
	m *metrics.EngineMetrics,
	maxIterations int,
	requestTimeout time.Duration,
	llmCallTimeout time.Duration,
	maxContextTokens int,
	recentMessages int,
) *Agent {
	if maxIterations <= 0 {
		maxIterations = defaultMaxIterations
	}
	if requestTimeout <= 0 {
		requestTimeout = defaultRequestTimeout
	}
	if recentMessages <= 0 {
		recentMessages = 20
	}
	return &Agent{
		provider:         modelProvider,
		registry:         registry,
		identity:         identityStore,
		catalog:          catalogStore,
		orders:           orderStore,
		sessions:         sessionStore,
		metrics:          m,
		maxIter:          maxIterations,
		requestTimeout:   requestTimeout,
		llmCallTimeout:   llmCallTimeout,
		maxContextTokens: maxContextTokens,
		recentMessages:   recentMessages,
		historyLimit:     200,
	}
}

// HandleMessage implements runtime.Handler: resolve tenant context, guard
// on a human-locked session, assemble the eligibility-gated tool catalog
// and prompt context, run the bounded tool loop, and persist + emit the
// final reply.
func (a *Agent) HandleMessage(ctx context.Context, w runtime.ResponseWriter, msg *runtime.Message) error {
	if w == nil {
		return errors.New("response writer is required")
	}
	if msg == nil || strings.TrimSpace(msg.Text) == "" {
		return nil
	}

	turnCtx, cancel := context.WithTimeout(ctx, a.requestTimeout)
	defer cancel()

	tenantCtx, err := a.identity.ResolveContext(turnCtx, msg.OwnerUserID, msg.CustomerPhone, msg.Platform)
	if err != nil {
		if errors.Is(err, identity.ErrEngineDisabled) {
			return w.WriteMessage(ctx, "This business isn't available to chat with right now.")
		}
		return fmt.Errorf("resolve tenant context: %w", err)
	}
	businessID := tenantCtx.Business.BusinessID()

	sess, err := a.sessions.GetOrCreate(turnCtx, businessID, msg.CustomerPhone, msg.Platform)
	if err != nil {
		return fmt.Errorf("get or create session: %w", err)
	}

	if sess.State == session.StateHumanLocked {
		// The engine must not invoke the LLM while a human owns the
		// conversation; it still records the customer's message.
		return a.sessions.AppendMessage(turnCtx, sess.ID, session.SenderCustomer, msg.Text)
	}

	addons, err := a.identity.ListActiveAddons(turnCtx, businessID)
	if err != nil {
		return fmt.Errorf("list active addons: %w", err)
	}
	eligible, err := a.registry.EligibleTools(turnCtx, tools.EligibilityContext{
		BusinessID:   businessID,
		BusinessType: tenantCtx.Business.BusinessType,
		ActiveAddons: addons,
	})
	if err != nil {
		return fmt.Errorf("build eligible tool catalog: %w", err)
	}

	branchID := ""
	if tenantCtx.Branch != nil {
		branchID = tenantCtx.Branch.ID
	}
	now := time.Now()
	hours, err := a.catalog.EffectiveOpeningHours(turnCtx, businessID, branchID, int(now.Weekday()))
	if err != nil {
		return fmt.Errorf("load opening hours: %w", err)
	}

	var cartOrder *orders.Order
	var cartItems []orders.OrderItem
	if a.orders != nil {
		cartOrder, cartItems, err = a.orders.GetCart(turnCtx, businessID, msg.OwnerUserID, msg.CustomerPhone)
		if err != nil {
			return fmt.Errorf("load cart snapshot: %w", err)
		}
	}

	pc := PromptContext{
		Business:     tenantCtx.Business,
		Branch:       tenantCtx.Branch,
		OpeningHours: hours,
		Terminology:  catalog.TermFor(tenantCtx.Business.BusinessType),
		Cart:         cartOrder,
		CartItems:    cartItems,
		SessionState: sess.State,
		Now:          now,
	}
	systemPrompt := BuildSystemPrompt(pc)

	pastMessages, err := a.sessions.History(turnCtx, sess.ID, a.historyLimit)
	if err != nil {
		return fmt.Errorf("load session history: %w", err)
	}
	history := toProviderHistory(pastMessages)
	messages := appendUserMessage(history, msg.Text)
	messages, _ = sanitizeToolTurns(messages)

	compacted, err := a.compactHistoryIfNeeded(turnCtx, systemPrompt, messages)
	if err != nil {
		return fmt.Errorf("compact history: %w", err)
	}

	toolCtx := tools.WithTenant(turnCtx, tools.TenantContext{
		BusinessID:    businessID,
		OwnerUserID:   msg.OwnerUserID,
		BranchID:      branchID,
		CustomerPhone: msg.CustomerPhone,
		Platform:      msg.Platform,
		SessionID:     sess.ID,
		BusinessType:  tenantCtx.Business.BusinessType,
		Timezone:      tenantCtx.Business.Timezone,
	})

	sequencer := guard.NewSequencer(a.registry)
	resp, _, err := Run(
		toolCtx,
		a.provider,
		eligible,
		sequencer,
		a.llmCallTimeout,
		systemPrompt,
		compacted,
		a.maxIter,
		a.metrics,
		nil,
	)
	if err != nil {
		return fmt.Errorf("tool dispatch loop: %w", err)
	}
	if resp == nil {
		return fmt.Errorf("agent run returned a nil response")
	}

	if err := a.sessions.AppendMessage(turnCtx, sess.ID, session.SenderCustomer, msg.Text); err != nil {
		return fmt.Errorf("append customer message: %w", err)
	}
	if err := a.sessions.AppendMessage(turnCtx, sess.ID, session.SenderBot, resp.Content); err != nil {
		return fmt.Errorf("append bot message: %w", err)
	}
	return w.WriteMessage(ctx, resp.Content)
}

// recordUsage is a hook for future per-tenant usage accounting. The engine
// tracks no cost budget today; context_compaction's summarization calls
// still report usage here so that hook point exists without threading a
// callback through every internal Chat call.
func (a *Agent) recordUsage(provider.TokenUsage) {}

// toProviderHistory maps a session's persisted transcript onto provider
// chat roles: customer messages become user turns, bot and employee
// messages become assistant turns. System-sender rows are operational
// annotations, not conversational turns, and are not replayed to the model.
func toProviderHistory(messages []session.Message) []provider.ChatMessage {
	out := make([]provider.ChatMessage, 0, len(messages))
	for _, m := range messages {
		switch m.Sender {
		case session.SenderCustomer:
			out = append(out, provider.ChatMessage{Role: provider.RoleUser, Content: m.Body})
		case session.SenderBot, session.SenderEmployee:
			out = append(out, provider.ChatMessage{Role: provider.RoleAssistant, Content: m.Body})
		}
	}
	return out
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/rs/zerolog"

	"github.com/ahmadsadek12/convoyd/internal/agent"
	"github.com/ahmadsadek12/convoyd/internal/archive"
	"github.com/ahmadsadek12/convoyd/internal/cart"
	"github.com/ahmadsadek12/convoyd/internal/catalog"
	"github.com/ahmadsadek12/convoyd/internal/coldstore"
	"github.com/ahmadsadek12/convoyd/internal/config"
	"github.com/ahmadsadek12/convoyd/internal/dbx"
	"github.com/ahmadsadek12/convoyd/internal/dispatch"
	"github.com/ahmadsadek12/convoyd/internal/identity"
	"github.com/ahmadsadek12/convoyd/internal/lock"
	"github.com/ahmadsadek12/convoyd/internal/metrics"
	"github.com/ahmadsadek12/convoyd/internal/orders"
	"github.com/ahmadsadek12/convoyd/internal/provider"
	"github.com/ahmadsadek12/convoyd/internal/reservations"
	"github.com/ahmadsadek12/convoyd/internal/runtime"
	"github.com/ahmadsadek12/convoyd/internal/scheduler"
	"github.com/ahmadsadek12/convoyd/internal/session"
	"github.com/ahmadsadek12/convoyd/internal/support"
	"github.com/ahmadsadek12/convoyd/internal/tools"
	"github.com/ahmadsadek12/convoyd/internal/validate"
	"github.com/ahmadsadek12/convoyd/internal/webhook"
)

// app bundles every process-wide component, wired once from cfg and shared
// across the serve and worker entrypoints so both commands assemble the
// exact same object graph instead of drifting copies of the same wiring.
type app struct {
	cfg *config.Config

	db        *dbx.DB
	coldStore *coldstore.Store
	locks     *lock.Client

	identity     *identity.Store
	catalogStore *catalog.Store
	orderStore   *orders.Store
	reservations *reservations.Store
	sessions     *session.Store
	support      *support.Store
	cartManager  *cart.Manager

	dispatcher *dispatch.Dispatcher
	manager    *runtime.DispatcherManager

	archivePipeline *archive.Pipeline
	schedulerSvc    *scheduler.Service

	integrations *dispatch.IntegrationStore
	rotator      *dispatch.TokenRotator
}

// newApp wires the full object graph from cfg. Callers close the returned
// app when done; close stops the session dispatchers and closes the
// Postgres pool and the Redis client. The Mongo cold-store client is not
// closed by close.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	db, err := dbx.Open(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.StmtTimeout = cfg.Engine.DBCallTimeout

	coldStore, err := coldstore.Open(ctx, cfg.ColdStore)
	if err != nil {
		return nil, fmt.Errorf("open cold store: %w", err)
	}

	locks := lock.New(cfg.Redis)

	engineMetrics := metrics.NewEngineMetrics()
	orderMetrics := metrics.NewOrderMetrics()
	reservationMetrics := metrics.NewReservationMetrics()
	schedulerMetrics := metrics.NewSchedulerMetrics()

	identityStore := identity.NewStore(db)
	catalogStore := catalog.NewStore(db)
	orderStore := orders.NewStore(db, catalogStore, orderMetrics)
	reservationStore := reservations.NewStore(db, catalogStore, reservationMetrics)
	sessionStore := session.NewStore(db)
	supportStore := support.NewStore(db)
	cartManager := cart.NewManager(db, catalogStore, orderStore)
	checker := validate.NewChecker(catalogStore)

	registry, err := tools.NewStandardRegistry(catalogStore, cartManager, orderStore, reservationStore, supportStore, sessionStore, checker)
	if err != nil {
		return nil, fmt.Errorf("build tool registry: %w", err)
	}

	llmProvider, err := provider.NewProviderFromConfig(cfg.DefaultLLM())
	if err != nil {
		return nil, fmt.Errorf("build llm provider: %w", err)
	}

	conversationalAgent := agent.New(
		llmProvider, registry, identityStore, catalogStore, orderStore, sessionStore, engineMetrics,
		cfg.Engine.MaxToolIterations, cfg.Engine.TurnDeadline, cfg.Engine.LLMCallTimeout,
		cfg.DefaultLLM().MaxTokens, 20,
	)

	dispatchManager := runtime.NewDispatcherManager(conversationalAgent, 32)

	integrations := dispatch.NewIntegrationStore(db)
	dispatcher := dispatch.New(integrations, map[string]dispatch.SenderFactory{
		"telegram":  dispatch.NewTelegramSenderFactory(),
		"whatsapp":  dispatch.NewWhatsAppSenderFactory(),
		"instagram": dispatch.NewInstagramSenderFactory(),
		"facebook":  dispatch.NewFacebookSenderFactory(),
	})
	rotator := dispatch.NewTokenRotator(integrations, locks, dispatcher)

	archivePipeline := archive.New(orderStore, coldStore)
	completer := scheduler.NewScheduledRequestCompleter(orderStore, cfg.Scheduler.BatchSize, schedulerMetrics)
	archiveWorker := scheduler.NewArchiveWorker(orderStore, archivePipeline, cfg.Scheduler.BatchSize, cfg.Scheduler.ArchiveOrderAge, schedulerMetrics)
	sessionReaper := scheduler.NewSessionReaper(sessionStore, cfg.Engine.IdleSessionTimeout)
	schedulerSvc, err := scheduler.NewService(completer, archiveWorker, sessionReaper, locks, cfg.Scheduler.CompleterInterval, cfg.Scheduler.ArchiveCron)
	if err != nil {
		return nil, fmt.Errorf("build scheduler service: %w", err)
	}

	return &app{
		cfg:             cfg,
		db:              db,
		coldStore:       coldStore,
		locks:           locks,
		identity:        identityStore,
		catalogStore:    catalogStore,
		orderStore:      orderStore,
		reservations:    reservationStore,
		sessions:        sessionStore,
		support:         supportStore,
		cartManager:     cartManager,
		dispatcher:      dispatcher,
		manager:         dispatchManager,
		archivePipeline: archivePipeline,
		schedulerSvc:    schedulerSvc,
		integrations:    integrations,
		rotator:         rotator,
	}, nil
}

// router assembles the HTTP surface over the app's wired components.
func (a *app) router() http.Handler {
	inbound := webhook.NewInboundHandler(webhook.NewDeduplicator(), a.integrations, a.dispatcher, a.manager)
	admin := webhook.NewAdminHandler(a.identity, a.catalogStore, a.orderStore, a.reservations, a.coldStore, a.rotator)
	return webhook.NewRouter(httpLogger(), inbound, admin, a.cfg.HTTP.BearerTokens)
}

func httpLogger() zerolog.Logger {
	return zerolog.New(os.Stdout).With().Timestamp().Str("component", "http").Logger()
}

func (a *app) close() {
	a.manager.StopAll()
	_ = a.db.Close()
	_ = a.locks.Close()
}

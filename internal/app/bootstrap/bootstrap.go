package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	offerledger "hearth/contexts/agent-routing/offer-ledger"
	offerpostgres "hearth/contexts/agent-routing/offer-ledger/adapters/postgres"
	notificationservice "hearth/contexts/engagement/notification-service"
	notificationpostgres "hearth/contexts/engagement/notification-service/adapters/postgres"
	commissionengine "hearth/contexts/finance-core/commission-engine"
	gatewayadapter "hearth/contexts/finance-core/commission-engine/adapters/gateway"
	commissionpostgres "hearth/contexts/finance-core/commission-engine/adapters/postgres"
	moderationservice "hearth/contexts/moderation-safety/moderation-service"
	classifieradapter "hearth/contexts/moderation-safety/moderation-service/adapters/classifier"
	moderationpostgres "hearth/contexts/moderation-safety/moderation-service/adapters/postgres"
	"hearth/internal/platform/config"
	"hearth/internal/platform/db"
	"hearth/internal/platform/httpserver"
	"hearth/internal/platform/realtime"
	"hearth/internal/platform/tasks"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

type APIApp struct {
	server   *httpserver.Server
	postgres *db.Postgres
	logger   *slog.Logger
}

type WorkerApp struct {
	postgres      *db.Postgres
	rdb           *redis.Client
	processor     *tasks.TaskProcessor
	relayInterval time.Duration
	logger        *slog.Logger
}

type builtModules struct {
	offers        offerledger.Module
	commissions   commissionengine.Module
	moderation    moderationservice.Module
	notifications notificationservice.Module
}

func buildModules(cfg config.Config, pg *db.Postgres, logger *slog.Logger) builtModules {
	bus := realtime.NewBus(logger)
	notificationRepo := notificationpostgres.NewRepository(pg.DB)
	notifications := notificationservice.NewModule(notificationservice.Dependencies{
		Repository:  notificationRepo,
		Bus:         bus,
		Clock:       notificationpostgres.SystemClock{},
		IDGenerator: notificationpostgres.UUIDGenerator{},
		Logger:      logger,
	})

	commissionRepo := commissionpostgres.NewRepository(pg.DB, logger)
	commissions := commissionengine.NewModule(commissionengine.Dependencies{
		Repository:     commissionRepo,
		Gateway:        gatewayadapter.New(cfg.PaymentGatewayURL, cfg.PaymentGatewayAPIKey),
		Accounts:       commissionpostgres.NewAgentAccounts(pg.DB),
		Dedup:          commissionRepo,
		Outbox:         commissionRepo,
		Clock:          commissionpostgres.SystemClock{},
		IDGenerator:    commissionpostgres.UUIDGenerator{},
		GatewayTimeout: cfg.GatewayTimeout,
		Logger:         logger,
	})

	offerRepo := offerpostgres.NewRepository(pg.DB, logger)
	offers := offerledger.NewModule(offerledger.Dependencies{
		Repository:  offerRepo,
		Outbox:      offerRepo,
		Agents:      offerpostgres.NewAgentDirectory(pg.DB),
		Commissions: commissionCreator{service: commissions.Service},
		Clock:       offerpostgres.SystemClock{},
		IDGenerator: offerpostgres.UUIDGenerator{},
		Logger:      logger,
	})

	moderationRepo := moderationpostgres.NewRepository(pg.DB, logger)
	moderation := moderationservice.NewModule(moderationservice.Dependencies{
		Repository:        moderationRepo,
		Classifier:        classifieradapter.New(cfg.ClassifierURL, cfg.ClassifierAPIKey),
		Moderators:        moderationpostgres.NewModeratorDirectory(pg.DB),
		Notifications:     moderationNotifier{service: notifications.Service},
		Idempotency:       moderationRepo,
		Clock:             moderationpostgres.SystemClock{},
		IDGenerator:       moderationpostgres.UUIDGenerator{},
		ClassifierTimeout: cfg.ClassifierTimeout,
		IdempotencyTTL:    cfg.IdempotencyTTL,
		Logger:            logger,
	})

	return builtModules{
		offers:        offers,
		commissions:   commissions,
		moderation:    moderation,
		notifications: notifications,
	}
}

func BuildAPI() (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "api")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	modules := buildModules(cfg, pg, logger)
	server := httpserver.New(
		httpserver.Modules{
			Offers:        modules.offers,
			Commissions:   modules.commissions,
			Moderation:    modules.moderation,
			Notifications: modules.notifications,
		},
		logger,
		normalizeAddr(cfg.HTTPPort),
		cfg.PaymentWebhookSecret,
	)
	return &APIApp{
		server:   server,
		postgres: pg,
		logger:   logger,
	}, nil
}

func BuildWorker() (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "worker")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	modules := buildModules(cfg, pg, logger)
	offerRepo := offerpostgres.NewRepository(pg.DB, logger)
	commissionRepo := commissionpostgres.NewRepository(pg.DB, logger)

	sweep := commissionengine.NewReconcileSweep(
		commissionRepo,
		modules.commissions.Service.Gateway,
		modules.commissions.Service,
		logger,
	)
	sweep.StaleAfter = cfg.ReconcileStaleAfter

	return &WorkerApp{
		postgres: pg,
		rdb:      redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}),
		processor: &tasks.TaskProcessor{
			OfferRelay:      offerledger.NewOutboxRelay(offerRepo, offerNotifier{service: modules.notifications.Service}, commissionCreator{service: modules.commissions.Service}, logger),
			CommissionRelay: commissionengine.NewOutboxRelay(commissionRepo, commissionNotifier{service: modules.notifications.Service}, logger),
			ReconcileSweep:  sweep,
			Logger:          logger,
		},
		relayInterval: cfg.OutboxPollInterval,
		logger:        logger,
	}, nil
}

func (a *APIApp) Run(_ context.Context) error {
	a.logger.Info("api app started",
		"event", "bootstrap_api_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
	)
	return a.server.Start()
}

func (a *APIApp) Close() error {
	if a.postgres != nil {
		return a.postgres.Close()
	}
	return nil
}

func (w *WorkerApp) Run(ctx context.Context) error {
	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"relay_interval", w.relayInterval.String(),
	)

	errCh := make(chan error, 2)
	go func() {
		errCh <- tasks.SetupScheduler(w.rdb, w.relayInterval, w.logger)
	}()
	go func() {
		errCh <- tasks.SetupServer(w.rdb, w.processor)
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

func (w *WorkerApp) Close() error {
	if w.rdb != nil {
		_ = w.rdb.Close()
	}
	if w.postgres != nil {
		return w.postgres.Close()
	}
	return nil
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}

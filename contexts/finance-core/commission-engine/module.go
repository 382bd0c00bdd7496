package commissionengine

import (
	"log/slog"
	"time"

	httpadapter "hearth/contexts/finance-core/commission-engine/adapters/http"
	"hearth/contexts/finance-core/commission-engine/adapters/memory"
	"hearth/contexts/finance-core/commission-engine/application"
	"hearth/contexts/finance-core/commission-engine/application/workers"
	"hearth/contexts/finance-core/commission-engine/ports"
)

type Module struct {
	Handler httpadapter.Handler
	Service application.Service
	Store   *memory.Store
	Gateway *memory.Gateway
}

type Dependencies struct {
	Repository     ports.Repository
	Gateway        ports.PaymentGateway
	Accounts       ports.AgentAccounts
	Dedup          ports.EventDedup
	Outbox         ports.OutboxWriter
	Clock          ports.Clock
	IDGenerator    ports.IDGenerator
	GatewayTimeout time.Duration
	Logger         *slog.Logger
}

func NewModule(deps Dependencies) Module {
	service := application.Service{
		Repo:           deps.Repository,
		Gateway:        deps.Gateway,
		Accounts:       deps.Accounts,
		Dedup:          deps.Dedup,
		Outbox:         deps.Outbox,
		Clock:          deps.Clock,
		IDGen:          deps.IDGenerator,
		GatewayTimeout: deps.GatewayTimeout,
		Logger:         deps.Logger,
	}
	return Module{
		Handler: httpadapter.Handler{
			Service: service,
			Logger:  deps.Logger,
		},
		Service: service,
	}
}

func NewInMemoryModule(logger *slog.Logger) Module {
	store := memory.NewStore()
	gateway := memory.NewGateway()
	module := NewModule(Dependencies{
		Repository:  store,
		Gateway:     gateway,
		Accounts:    store,
		Dedup:       store,
		Outbox:      store,
		Clock:       store,
		IDGenerator: store,
		Logger:      logger,
	})
	module.Store = store
	module.Gateway = gateway
	return module
}

// NewOutboxRelay builds the worker that drains pending commission events into
// the notification fanout.
func NewOutboxRelay(outbox ports.OutboxRepository, publisher ports.NotificationPublisher, logger *slog.Logger) workers.OutboxRelay {
	return workers.OutboxRelay{
		Outbox:    outbox,
		Publisher: publisher,
		BatchSize: 100,
		Logger:    logger,
	}
}

// NewReconcileSweep builds the worker that polls the gateway for commissions
// stuck in processing.
func NewReconcileSweep(repo ports.Repository, gateway ports.PaymentGateway, service application.Service, logger *slog.Logger) workers.ReconcileSweep {
	return workers.ReconcileSweep{
		Repo:      repo,
		Gateway:   gateway,
		Service:   service,
		BatchSize: 50,
		Logger:    logger,
	}
}

package offerledger

import (
	"log/slog"

	httpadapter "hearth/contexts/agent-routing/offer-ledger/adapters/http"
	"hearth/contexts/agent-routing/offer-ledger/adapters/memory"
	"hearth/contexts/agent-routing/offer-ledger/application"
	"hearth/contexts/agent-routing/offer-ledger/application/workers"
	"hearth/contexts/agent-routing/offer-ledger/ports"
)

type Module struct {
	Handler httpadapter.Handler
	Service application.Service
	Store   *memory.Store
}

type Dependencies struct {
	Repository  ports.Repository
	Outbox      ports.OutboxWriter
	Agents      ports.AgentDirectory
	Commissions ports.CommissionCreator
	Clock       ports.Clock
	IDGenerator ports.IDGenerator
	Logger      *slog.Logger
}

func NewModule(deps Dependencies) Module {
	service := application.Service{
		Repo:        deps.Repository,
		Outbox:      deps.Outbox,
		Agents:      deps.Agents,
		Commissions: deps.Commissions,
		Clock:       deps.Clock,
		IDGen:       deps.IDGenerator,
		Logger:      deps.Logger,
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
	module := NewModule(Dependencies{
		Repository:  store,
		Outbox:      store,
		Agents:      store,
		Commissions: store,
		Clock:       store,
		IDGenerator: store,
		Logger:      logger,
	})
	module.Store = store
	return module
}

// NewOutboxRelay builds the worker that drains pending offer events into the
// notification fanout and replays commission creation for accepted offers.
func NewOutboxRelay(outbox ports.OutboxRepository, publisher ports.NotificationPublisher, commissions ports.CommissionCreator, logger *slog.Logger) workers.OutboxRelay {
	return workers.OutboxRelay{
		Outbox:      outbox,
		Publisher:   publisher,
		Commissions: commissions,
		BatchSize:   100,
		Logger:      logger,
	}
}

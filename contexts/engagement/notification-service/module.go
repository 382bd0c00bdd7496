package notificationservice

import (
	"log/slog"

	httpadapter "hearth/contexts/engagement/notification-service/adapters/http"
	"hearth/contexts/engagement/notification-service/adapters/memory"
	"hearth/contexts/engagement/notification-service/application"
	"hearth/contexts/engagement/notification-service/ports"
)

type Module struct {
	Handler httpadapter.Handler
	Service application.Service
	Store   *memory.Store
	Bus     *memory.Bus
}

type Dependencies struct {
	Repository  ports.Repository
	Bus         ports.RealtimeBus
	Clock       ports.Clock
	IDGenerator ports.IDGenerator
	Logger      *slog.Logger
}

func NewModule(deps Dependencies) Module {
	service := application.Service{
		Repo:   deps.Repository,
		Bus:    deps.Bus,
		Clock:  deps.Clock,
		IDGen:  deps.IDGenerator,
		Logger: deps.Logger,
	}
	return Module{
		Handler: httpadapter.Handler{Service: service, Logger: deps.Logger},
		Service: service,
	}
}

func NewInMemoryModule(logger *slog.Logger) Module {
	store := memory.NewStore()
	bus := memory.NewBus()
	module := NewModule(Dependencies{
		Repository:  store,
		Bus:         bus,
		Clock:       store,
		IDGenerator: store,
		Logger:      logger,
	})
	module.Store = store
	module.Bus = bus
	return module
}

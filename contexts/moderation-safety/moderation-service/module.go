package moderationservice

import (
	"log/slog"
	"time"

	httpadapter "hearth/contexts/moderation-safety/moderation-service/adapters/http"
	"hearth/contexts/moderation-safety/moderation-service/adapters/memory"
	"hearth/contexts/moderation-safety/moderation-service/application"
	"hearth/contexts/moderation-safety/moderation-service/ports"
)

type Module struct {
	Handler    httpadapter.Handler
	Service    application.Service
	Store      *memory.Store
	Classifier *memory.Classifier
}

type Dependencies struct {
	Repository        ports.Repository
	Classifier        ports.ContentClassifier
	Moderators        ports.ModeratorDirectory
	Notifications     ports.NotificationPublisher
	Idempotency       ports.IdempotencyStore
	Clock             ports.Clock
	IDGenerator       ports.IDGenerator
	ClassifierTimeout time.Duration
	IdempotencyTTL    time.Duration
	Logger            *slog.Logger
}

func NewModule(deps Dependencies) Module {
	engine := application.RuleEngine{
		Repo:              deps.Repository,
		Classifier:        deps.Classifier,
		ClassifierTimeout: deps.ClassifierTimeout,
		Logger:            deps.Logger,
	}
	service := application.Service{
		Repo:           deps.Repository,
		Rules:          engine,
		Moderators:     deps.Moderators,
		Notifications:  deps.Notifications,
		Idempotency:    deps.Idempotency,
		Clock:          deps.Clock,
		IDGen:          deps.IDGenerator,
		IdempotencyTTL: deps.IdempotencyTTL,
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
	classifier := memory.NewClassifier()
	module := NewModule(Dependencies{
		Repository:     store,
		Classifier:     classifier,
		Moderators:     store,
		Notifications:  store,
		Idempotency:    store,
		Clock:          store,
		IDGenerator:    store,
		IdempotencyTTL: 7 * 24 * time.Hour,
		Logger:         logger,
	})
	module.Store = store
	module.Classifier = classifier
	return module
}

package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	offerworkers "hearth/contexts/agent-routing/offer-ledger/application/workers"
	commissionworkers "hearth/contexts/finance-core/commission-engine/application/workers"
)

const (
	TypeOutboxRelay         = "outbox:relay"
	TypeCommissionReconcile = "commission:reconcile_sweep"
)

const (
	OutboxSourceOffers      = "offers"
	OutboxSourceCommissions = "commissions"
)

func NewClient(rdb *redis.Client) *asynq.Client {
	return asynq.NewClient(asynq.RedisClientOpt{
		Addr:     rdb.Options().Addr,
		Password: rdb.Options().Password,
		DB:       rdb.Options().DB,
	})
}

// TaskProcessor holds the per-context workers the background process drives.
type TaskProcessor struct {
	OfferRelay      offerworkers.OutboxRelay
	CommissionRelay commissionworkers.OutboxRelay
	ReconcileSweep  commissionworkers.ReconcileSweep
	Logger          *slog.Logger
}

type OutboxRelayPayload struct {
	Source string `json:"source"`
}

func NewOutboxRelayTask(source string) (*asynq.Task, error) {
	payload, err := json.Marshal(OutboxRelayPayload{Source: source})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeOutboxRelay, payload), nil
}

func NewCommissionReconcileTask() *asynq.Task {
	return asynq.NewTask(TypeCommissionReconcile, nil)
}

func (p *TaskProcessor) HandleOutboxRelayTask(ctx context.Context, t *asynq.Task) error {
	var payload OutboxRelayPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal outbox relay payload: %v: %w", err, asynq.SkipRetry)
	}

	switch payload.Source {
	case OutboxSourceOffers:
		return p.OfferRelay.RunOnce(ctx)
	case OutboxSourceCommissions:
		return p.CommissionRelay.RunOnce(ctx)
	default:
		return fmt.Errorf("unknown outbox source %q: %w", payload.Source, asynq.SkipRetry)
	}
}

func (p *TaskProcessor) HandleCommissionReconcileTask(ctx context.Context, _ *asynq.Task) error {
	return p.ReconcileSweep.RunOnce(ctx)
}

// SetupServer configures the asynq server and blocks processing tasks.
func SetupServer(rdb *redis.Client, processor *TaskProcessor) error {
	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     rdb.Options().Addr,
			Password: rdb.Options().Password,
			DB:       rdb.Options().DB,
		},
		asynq.Config{
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(_ context.Context, task *asynq.Task, err error) {
				if processor.Logger != nil {
					processor.Logger.Error("task failed",
						"event", "task_failed",
						"module", "internal/platform/tasks",
						"layer", "platform",
						"task_type", task.Type(),
						"error", err.Error(),
					)
				}
			}),
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeOutboxRelay, processor.HandleOutboxRelayTask)
	mux.HandleFunc(TypeCommissionReconcile, processor.HandleCommissionReconcileTask)
	return srv.Run(mux)
}

// SetupScheduler registers the periodic tasks and blocks running them.
func SetupScheduler(rdb *redis.Client, relayInterval time.Duration, logger *slog.Logger) error {
	scheduler := asynq.NewScheduler(
		asynq.RedisClientOpt{
			Addr:     rdb.Options().Addr,
			Password: rdb.Options().Password,
			DB:       rdb.Options().DB,
		},
		&asynq.SchedulerOpts{},
	)

	if relayInterval < time.Second {
		relayInterval = time.Second
	}
	every := fmt.Sprintf("@every %s", relayInterval)

	offerTask, err := NewOutboxRelayTask(OutboxSourceOffers)
	if err != nil {
		return err
	}
	commissionTask, err := NewOutboxRelayTask(OutboxSourceCommissions)
	if err != nil {
		return err
	}

	if _, err := scheduler.Register(every, offerTask); err != nil {
		return err
	}
	if _, err := scheduler.Register(every, commissionTask); err != nil {
		return err
	}
	if _, err := scheduler.Register("@every 5m", NewCommissionReconcileTask()); err != nil {
		return err
	}

	if logger != nil {
		logger.Info("scheduler configured",
			"event", "scheduler_configured",
			"module", "internal/platform/tasks",
			"layer", "platform",
			"relay_interval", relayInterval.String(),
		)
	}
	return scheduler.Run()
}

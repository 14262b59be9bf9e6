package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"menupay/internal/logger"
	"menupay/internal/models"
	"menupay/internal/services/settlement"

	"github.com/hibiken/asynq"
)

// Settler is the part of the settlement service the worker drives.
type Settler interface {
	RunSchedule(ctx context.Context, businessID, processorID uint) (*settlement.RunResult, error)
	DueSchedules(ctx context.Context) ([]settlement.Pair, error)
}

// Enqueuer is satisfied by *asynq.Client.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type Handlers struct {
	settler   Settler
	enqueuer  Enqueuer
	uniqueFor time.Duration
}

func NewHandlers(settler Settler, enqueuer Enqueuer, uniqueFor time.Duration) *Handlers {
	if settler == nil {
		panic("settler is required")
	}
	if enqueuer == nil {
		panic("enqueuer is required")
	}
	if uniqueFor <= 0 {
		uniqueFor = time.Hour
	}
	return &Handlers{settler: settler, enqueuer: enqueuer, uniqueFor: uniqueFor}
}

// Register mounts the handlers on mux.
func (h *Handlers) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeSettlementRun, h.HandleSettlementRun)
	mux.HandleFunc(TypeSettlementSweep, h.HandleSettlementSweep)
}

func (h *Handlers) HandleSettlementRun(ctx context.Context, t *asynq.Task) error {
	var p SettlementRunPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("invalid settlement payload: %v: %w", err, asynq.SkipRetry)
	}
	log := logger.SW("business_id", p.BusinessID, "processor_id", p.ProcessorID)

	result, err := h.settler.RunSchedule(ctx, p.BusinessID, p.ProcessorID)
	switch {
	case errors.Is(err, models.ErrScheduleLocked):
		// Another run owns the pair; the next sweep picks it up again.
		log.Infow("no payout this cycle", "reason", "locked")
		return nil
	case errors.Is(err, models.ErrProcessorNotFound):
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	case err != nil:
		log.Errorw("settlement run failed", "error", err)
		return err
	}

	if result.Payout != nil {
		log.Infow("settlement run produced payout", "payout_id", result.Payout.PublicID, "net", result.Payout.NetAmount)
	}
	return nil
}

// HandleSettlementSweep enqueues a run for every due pair.
func (h *Handlers) HandleSettlementSweep(ctx context.Context, _ *asynq.Task) error {
	due, err := h.settler.DueSchedules(ctx)
	if err != nil {
		return err
	}

	var enqueued, skipped int
	for _, pair := range due {
		ok, err := h.EnqueueRun(ctx, pair.BusinessID, pair.ProcessorID)
		if err != nil {
			return err
		}
		if ok {
			enqueued++
		} else {
			skipped++
		}
	}
	logger.S().Infow("settlement sweep done", "due", len(due), "enqueued", enqueued, "already_queued", skipped)
	return nil
}

// EnqueueRun queues a run for a pair. It reports false when one is already
// queued.
func (h *Handlers) EnqueueRun(ctx context.Context, businessID, processorID uint) (bool, error) {
	task, err := NewSettlementRunTask(SettlementRunPayload{BusinessID: businessID, ProcessorID: processorID}, h.uniqueFor)
	if err != nil {
		return false, err
	}
	if _, err := h.enqueuer.EnqueueContext(ctx, task); err != nil {
		if errors.Is(err, asynq.ErrDuplicateTask) {
			return false, nil
		}
		return false, fmt.Errorf("failed to enqueue settlement run: %w", err)
	}
	return true, nil
}

// RegisterSweep schedules the periodic sweep on spec (cron or "@every").
func RegisterSweep(scheduler *asynq.Scheduler, spec string) (string, error) {
	id, err := scheduler.Register(spec, NewSettlementSweepTask())
	if err != nil {
		return "", fmt.Errorf("failed to register settlement sweep: %w", err)
	}
	return id, nil
}

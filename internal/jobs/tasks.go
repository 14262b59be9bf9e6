// Package jobs defines the background settlement tasks run by the worker.
package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// Task types
const (
	TypeSettlementRun   = "settlement:run"
	TypeSettlementSweep = "settlement:sweep"
)

// QueueSettlement is the queue every settlement task goes to.
const QueueSettlement = "settlement"

// SettlementRunPayload names the pair to settle.
type SettlementRunPayload struct {
	BusinessID  uint `json:"business_id"`
	ProcessorID uint `json:"processor_id"`
}

// NewSettlementRunTask builds a run task. Unique keeps a second copy for the
// same pair out of the queue while the first is pending.
func NewSettlementRunTask(p SettlementRunPayload, uniqueFor time.Duration) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode settlement payload: %w", err)
	}
	return asynq.NewTask(TypeSettlementRun, payload,
		asynq.Queue(QueueSettlement),
		asynq.MaxRetry(3),
		asynq.Unique(uniqueFor),
	), nil
}

func NewSettlementSweepTask() *asynq.Task {
	return asynq.NewTask(TypeSettlementSweep, nil, asynq.Queue(QueueSettlement), asynq.MaxRetry(1))
}

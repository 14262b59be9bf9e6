package settlement

import (
	"context"
	"time"

	"menupay/internal/models"
	"menupay/internal/repositories/cache"
)

// Service is the settlement and payout scheduler.
type Service interface {
	// RunSchedule aggregates the settleable payments of a pair into a
	// pending payout. It returns models.ErrScheduleLocked when another run
	// holds the pair.
	RunSchedule(ctx context.Context, businessID, processorID uint) (*RunResult, error)
	// DueSchedules lists the pairs whose schedule period elapsed.
	DueSchedules(ctx context.Context) ([]Pair, error)

	GetSchedule(ctx context.Context, businessID, processorID uint) (*models.PayoutSchedule, error)
	UpdateSchedule(ctx context.Context, businessID, processorID uint, upd ScheduleUpdate) (*models.PayoutSchedule, error)

	ListPayouts(ctx context.Context, businessID uint, status string, limit, offset int) ([]models.Payout, int64, error)
	GetPayout(ctx context.Context, businessID, payoutID uint) (*models.Payout, []models.Payment, error)
	RetryPayout(ctx context.Context, businessID, payoutID uint) (*models.Payout, error)
	UpdatePayoutStatus(ctx context.Context, payoutID uint, upd StatusUpdate) (*models.Payout, error)

	Report(ctx context.Context, businessID uint, from, to time.Time) (*Report, error)
}

// Locker guards a pair against concurrent runs. TryAcquire returns a nil
// lock when someone else holds key.
type Locker interface {
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (cache.Lock, error)
}

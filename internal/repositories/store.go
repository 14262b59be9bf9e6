package repositories

import (
	"context"

	"gorm.io/gorm"
)

// Store groups the repositories over one database handle. A Store obtained
// inside Transaction is bound to that transaction.
type Store interface {
	Processors() ProcessorRepository
	Payments() PaymentRepository
	Refunds() RefundRepository
	WebhookEvents() WebhookEventRepository
	Schedules() ScheduleRepository
	Payouts() PayoutRepository
	Adjustments() AdjustmentRepository
	Orders() OrderRepository

	Transaction(ctx context.Context, fn func(tx Store) error) error
	Ping(ctx context.Context) error
}

type store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) Store {
	if db == nil {
		panic("db is required")
	}
	return &store{db: db}
}

func (s *store) Processors() ProcessorRepository       { return &processorRepository{db: s.db} }
func (s *store) Payments() PaymentRepository           { return &paymentRepository{db: s.db} }
func (s *store) Refunds() RefundRepository             { return &refundRepository{db: s.db} }
func (s *store) WebhookEvents() WebhookEventRepository { return &webhookEventRepository{db: s.db} }
func (s *store) Schedules() ScheduleRepository         { return &scheduleRepository{db: s.db} }
func (s *store) Payouts() PayoutRepository             { return &payoutRepository{db: s.db} }
func (s *store) Adjustments() AdjustmentRepository     { return &adjustmentRepository{db: s.db} }
func (s *store) Orders() OrderRepository               { return &orderRepository{db: s.db} }

// Transaction runs fn atomically; any error rolls every write back.
func (s *store) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&store{db: tx})
	})
}

func (s *store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

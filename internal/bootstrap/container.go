// Package bootstrap builds the shared dependency graph used by the server,
// the settlement worker and the seeder.
package bootstrap

import (
	"fmt"

	"menupay/internal/config"
	"menupay/internal/events"
	"menupay/internal/logger"
	"menupay/internal/repositories"
	"menupay/internal/repositories/cache"
	"menupay/internal/services/gateway"
	"menupay/internal/services/payment"
	"menupay/internal/services/processor"
	"menupay/internal/services/refund"
	"menupay/internal/services/settlement"
	"menupay/internal/services/webhook"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Container owns the process-wide connections and services.
type Container struct {
	Config    config.Config
	DB        *gorm.DB
	Store     repositories.Store
	Redis     *redis.Client
	Publisher events.Publisher
	Adapters  *gateway.Registry

	Processors processor.Service
	Payments   payment.Service
	Refunds    refund.Service
	Webhooks   webhook.Service
	Settlement settlement.Service

	closers []func() error
}

// New connects to postgres and redis and wires every service.
func New(cfg config.Config) (*Container, error) {
	settlementCfg, err := settlementConfig(cfg)
	if err != nil {
		return nil, err
	}
	sealer, err := gateway.NewSealer(cfg.CredentialsKey)
	if err != nil {
		return nil, fmt.Errorf("CREDENTIALS_KEY: %w", err)
	}

	c := &Container{Config: cfg}

	db, err := repositories.InitDB(&cfg)
	if err != nil {
		return nil, err
	}
	c.DB = db
	c.closers = append(c.closers, func() error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	})
	c.Store = repositories.NewStore(db)

	c.Redis = cache.NewRedisClient(&cache.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	c.closers = append(c.closers, c.Redis.Close)

	c.Publisher = events.NoopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		kafka, err := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopicPrefix)
		if err != nil {
			c.Close()
			return nil, err
		}
		c.Publisher = kafka
		c.closers = append(c.closers, kafka.Close)
	} else {
		logger.L().Warn("KAFKA_BROKERS not set, domain events are dropped")
	}

	c.Adapters = gateway.NewRegistry(
		gateway.NewCardAdapter(cfg.AdapterTimeout, cfg.StripeAPIURL),
		gateway.NewUPIAdapter(cfg.UPIBaseURL, cfg.AdapterTimeout),
		gateway.NewWalletAdapter(cfg.WalletBaseURL, cfg.AdapterTimeout),
	)

	c.Processors = processor.NewService(c.Store.Processors(), sealer)
	c.Payments = payment.NewService(c.Store, c.Processors, c.Adapters, c.Publisher,
		payment.Config{AdapterTimeout: cfg.AdapterTimeout}, payment.LogMetricsCollector{})
	c.Refunds = refund.NewService(c.Store, c.Processors, c.Adapters, c.Publisher,
		refund.Config{AdapterTimeout: cfg.AdapterTimeout})
	c.Webhooks = webhook.NewService(c.Store, c.Processors, c.Adapters, c.Publisher,
		webhook.Config{Timeout: cfg.WebhookTimeout})
	c.Settlement = settlement.NewService(c.Store, cache.NewLockService(c.Redis, "menupay:"), c.Publisher, settlementCfg)

	return c, nil
}

// Close releases connections in reverse order of creation.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			logger.SW("error", err).Warn("failed to close resource")
		}
	}
	c.closers = nil
}

func settlementConfig(cfg config.Config) (settlement.Config, error) {
	pct, err := decimal.NewFromString(cfg.PlatformFeePercent)
	if err != nil {
		return settlement.Config{}, fmt.Errorf("invalid PLATFORM_FEE_PERCENT %q: %w", cfg.PlatformFeePercent, err)
	}
	if pct.IsNegative() || pct.GreaterThan(decimal.NewFromInt(100)) {
		return settlement.Config{}, fmt.Errorf("PLATFORM_FEE_PERCENT must be between 0 and 100, got %s", pct)
	}
	return settlement.Config{
		PlatformFeePercent: pct,
		PlatformFixedFee:   cfg.PlatformFixedFee,
		PayoutFixedFee:     cfg.PayoutFixedFee,
		DefaultFrequency:   cfg.DefaultFrequency,
		DefaultThreshold:   cfg.DefaultThreshold,
		DefaultMaxHoldDays: cfg.DefaultMaxHoldDays,
		LockTTL:            cfg.SettlementLockTTL,
	}, nil
}

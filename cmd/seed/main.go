// Package main seeds a development business with processor configs and a
// few orders to pay, then prints an owner token for it.
package main

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"menupay/internal/bootstrap"
	"menupay/internal/config"
	"menupay/internal/logger"
	"menupay/internal/models"
	"menupay/internal/services/gateway"
	"menupay/internal/services/processor"
	"menupay/internal/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type processorSeed struct {
	variant    models.ProcessorVariant
	priority   int
	feePercent string
	fixedFee   int64
	creds      gateway.Credentials
}

func main() {
	config.LoadEnv()
	cfg := config.Load()

	if err := logger.Init(cfg.IsProduction()); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	businessID := uint(config.GetIntEnv("SEED_BUSINESS_ID", 1))
	orderCount := config.GetIntEnv("SEED_ORDERS", 3)

	c, err := bootstrap.New(cfg)
	if err != nil {
		logger.SW("error", err).Fatal("failed to initialize dependencies")
	}
	defer c.Close()

	ctx := context.Background()

	existing, err := c.Processors.List(ctx, businessID)
	if err != nil {
		logger.SW("error", err).Fatal("failed to list processors")
	}
	have := make(map[models.ProcessorVariant]bool, len(existing))
	for _, p := range existing {
		have[p.Variant] = true
	}

	for _, seed := range processorSeeds() {
		log := logger.SW("business_id", businessID, "variant", seed.variant)
		if have[seed.variant] {
			log.Info("processor already configured")
			continue
		}
		if seed.creds.SecretKey == "" {
			log.Info("no credentials in environment, skipping")
			continue
		}
		pct, err := decimal.NewFromString(seed.feePercent)
		if err != nil {
			log.Errorw("invalid fee percent", "value", seed.feePercent)
			continue
		}

		p, err := c.Processors.Create(ctx, processor.CreateRequest{
			BusinessID:  businessID,
			Variant:     string(seed.variant),
			Priority:    seed.priority,
			FeePercent:  pct,
			FixedFee:    seed.fixedFee,
			Credentials: seed.creds,
		})
		if err != nil {
			log.Errorw("failed to create processor", "error", err)
			continue
		}
		if _, err := c.Processors.Activate(ctx, businessID, p.ID); err != nil {
			log.Errorw("failed to activate processor", "processor_id", p.ID, "error", err)
			continue
		}
		log.Infow("processor seeded", "processor_id", p.ID)
	}

	for i := 0; i < orderCount; i++ {
		order := &models.Order{
			ID:          "ord_" + uuid.NewString(),
			BusinessID:  businessID,
			Amount:      int64(1000 * (i + 1)),
			Currency:    config.GetEnv("SEED_CURRENCY", "USD"),
			Description: fmt.Sprintf("Seed order %d", i+1),
		}
		if err := c.Store.Orders().Create(ctx, order); err != nil {
			logger.SW("error", err).Fatal("failed to create order")
		}
		logger.SW("order_id", order.ID, "amount", order.Amount).Info("order seeded")
	}

	logger.L().Info("seed complete")

	if !cfg.IsProduction() {
		token, err := utils.GenerateToken(cfg.JWTSecret, models.UserClaims{
			UserID:      uint(config.GetIntEnv("SEED_USER_ID", 1)),
			BusinessID:  businessID,
			Role:        models.RoleOwner,
			Permissions: models.GetDefaultPermissions(models.RoleOwner),
		}, 24*time.Hour)
		if err != nil {
			logger.SW("error", err).Fatal("failed to sign owner token")
		}
		fmt.Printf("owner token for business %d:\n%s\n", businessID, token)
	}
}

func processorSeeds() []processorSeed {
	return []processorSeed{
		{
			variant:    models.VariantCard,
			priority:   1,
			feePercent: config.GetEnv("SEED_CARD_FEE_PERCENT", "2.9"),
			fixedFee:   int64(config.GetIntEnv("SEED_CARD_FIXED_FEE", 30)),
			creds: gateway.Credentials{
				SecretKey:     config.GetEnv("SEED_CARD_SECRET_KEY", ""),
				PublicKey:     config.GetEnv("SEED_CARD_PUBLIC_KEY", ""),
				WebhookSecret: config.GetEnv("SEED_CARD_WEBHOOK_SECRET", ""),
			},
		},
		{
			variant:    models.VariantUPI,
			priority:   2,
			feePercent: config.GetEnv("SEED_UPI_FEE_PERCENT", "2"),
			creds: gateway.Credentials{
				SecretKey:     config.GetEnv("SEED_UPI_KEY_SECRET", ""),
				PublicKey:     config.GetEnv("SEED_UPI_KEY_ID", ""),
				WebhookSecret: config.GetEnv("SEED_UPI_WEBHOOK_SECRET", ""),
			},
		},
		{
			variant:    models.VariantWallet,
			priority:   3,
			feePercent: config.GetEnv("SEED_WALLET_FEE_PERCENT", "1.5"),
			creds: gateway.Credentials{
				SecretKey:  config.GetEnv("SEED_WALLET_SALT_KEY", ""),
				MerchantID: config.GetEnv("SEED_WALLET_MERCHANT_ID", ""),
				SaltIndex:  strconv.Itoa(config.GetIntEnv("SEED_WALLET_SALT_INDEX", 1)),
			},
		},
	}
}

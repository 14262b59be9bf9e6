package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"menupay/internal/models"
	"menupay/internal/repositories"
	"menupay/internal/repositories/repotest"
	"menupay/internal/services/gateway"
	"menupay/internal/services/processor"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const upiSecret = "upi_webhook_secret"

type fixture struct {
	db      *gorm.DB
	store   repositories.Store
	svc     Service
	cfg     *models.PaymentProcessorConfig
	payment *models.Payment
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	db, store := repotest.Open(t)

	sealer, err := gateway.NewSealer("webhook-test-key")
	require.NoError(t, err)
	processors := processor.NewService(store.Processors(), sealer)

	cfg, err := processors.Create(ctx, processor.CreateRequest{
		BusinessID:  1,
		Variant:     "upi",
		Priority:    1,
		Credentials: gateway.Credentials{PublicKey: "key", SecretKey: "secret", WebhookSecret: upiSecret},
	})
	require.NoError(t, err)
	cfg, err = processors.Activate(ctx, 1, cfg.ID)
	require.NoError(t, err)

	f := &fixture{db: db, store: store, cfg: cfg}
	f.payment = f.addPayment(t, "order-1", "plink_1", models.PaymentStatusPending)

	registry := gateway.NewRegistry(gateway.NewUPIAdapter("http://upi.invalid", time.Second))
	f.svc = NewService(store, processors, registry, nil, Config{Timeout: 5 * time.Second})
	return f
}

func (f *fixture) addPayment(t *testing.T, orderID, ref, status string) *models.Payment {
	t.Helper()
	p := &models.Payment{
		PublicID:          uuid.NewString(),
		OrderID:           orderID,
		BusinessID:        1,
		ProcessorConfigID: f.cfg.ID,
		Variant:           models.VariantUPI,
		ProviderReference: ref,
		Amount:            10000,
		Currency:          "INR",
		Status:            status,
	}
	_, err := f.store.Payments().CreateIfAbsent(context.Background(), p)
	require.NoError(t, err)
	return p
}

func (f *fixture) reload(t *testing.T, id uint) *models.Payment {
	t.Helper()
	p, err := f.store.Payments().GetByID(context.Background(), id)
	require.NoError(t, err)
	return p
}

func signed(body string) ([]byte, string) {
	mac := hmac.New(sha256.New, []byte(upiSecret))
	mac.Write([]byte(body))
	return []byte(body), hex.EncodeToString(mac.Sum(nil))
}

func paidEvent(eventID, link string) ([]byte, string) {
	return signed(fmt.Sprintf(`{"id":%q,"event":"payment_link.paid","payload":{"payment_link":{"id":%q,"amount_paid":10000}}}`, eventID, link))
}

func TestService_HandleWebhookSucceeded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	body, sig := paidEvent("ev_1", "plink_1")
	result, err := f.svc.HandleWebhook(ctx, "upi", body, sig, nil)
	require.NoError(t, err)
	assert.True(t, result.Processed)
	assert.Equal(t, string(gateway.EventPaymentSucceeded), result.EventType)
	assert.Equal(t, models.EventOutcomeApplied, result.Outcome)
	assert.Equal(t, f.payment.PublicID, result.PaymentID)

	p := f.reload(t, f.payment.ID)
	assert.Equal(t, models.PaymentStatusSucceeded, p.Status)
	assert.True(t, p.SettlementEligible)
	require.NotNil(t, p.CapturedAt)
	require.NotNil(t, p.CapturedOrderID)
	assert.Equal(t, "order-1", *p.CapturedOrderID)
	assert.Equal(t, "ev_1", p.LastEventID)
}

func TestService_HandleWebhookDuplicateDelivery(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	body, sig := paidEvent("ev_dup", "plink_1")
	first, err := f.svc.HandleWebhook(ctx, "upi", body, sig, nil)
	require.NoError(t, err)
	assert.True(t, first.Processed)

	second, err := f.svc.HandleWebhook(ctx, "upi", body, sig, nil)
	require.NoError(t, err)
	assert.False(t, second.Processed)
	assert.Equal(t, "ev_dup", second.EventID)

	events, err := f.store.WebhookEvents().ListByPayment(ctx, f.payment.ID)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestService_HandleWebhookInvalidSignature(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	body, _ := paidEvent("ev_bad", "plink_1")
	_, err := f.svc.HandleWebhook(ctx, "upi", body, "deadbeef", nil)
	assert.ErrorIs(t, err, models.ErrInvalidSignature)

	assert.Equal(t, models.PaymentStatusPending, f.reload(t, f.payment.ID).Status)
	var count int64
	require.NoError(t, f.db.Model(&models.WebhookEvent{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestService_HandleWebhookFailedAfterSucceededIsIgnored(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	body, sig := paidEvent("ev_ok", "plink_1")
	_, err := f.svc.HandleWebhook(ctx, "upi", body, sig, nil)
	require.NoError(t, err)

	body, sig = signed(`{"id":"ev_late","event":"payment_link.expired","payload":{"payment_link":{"id":"plink_1"}}}`)
	result, err := f.svc.HandleWebhook(ctx, "upi", body, sig, nil)
	require.NoError(t, err)
	assert.True(t, result.Processed)
	assert.Equal(t, models.EventOutcomeIgnored, result.Outcome)

	assert.Equal(t, models.PaymentStatusSucceeded, f.reload(t, f.payment.ID).Status)
}

func TestService_HandleWebhookUnknownEventType(t *testing.T) {
	f := newFixture(t)

	body, sig := signed(`{"id":"ev_other","event":"settlement.processed","payload":{}}`)
	result, err := f.svc.HandleWebhook(context.Background(), "upi", body, sig, nil)
	require.NoError(t, err)
	assert.True(t, result.Processed)
	assert.Equal(t, string(gateway.EventUnknown), result.EventType)
	assert.Equal(t, models.EventOutcomeIgnored, result.Outcome)
}

func TestService_HandleWebhookUnknownPaymentIsRetryable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	body, sig := paidEvent("ev_early", "plink_later")
	_, err := f.svc.HandleWebhook(ctx, "upi", body, sig, nil)
	assert.ErrorIs(t, err, models.ErrPaymentNotFound)

	later := f.addPayment(t, "order-2", "plink_later", models.PaymentStatusPending)
	result, err := f.svc.HandleWebhook(ctx, "upi", body, sig, nil)
	require.NoError(t, err)
	assert.True(t, result.Processed)
	assert.Equal(t, models.PaymentStatusSucceeded, f.reload(t, later.ID).Status)
}

func TestService_HandleWebhookSecondCaptureConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	other := f.addPayment(t, "order-1", "plink_2", models.PaymentStatusPending)

	body, sig := paidEvent("ev_a", "plink_1")
	_, err := f.svc.HandleWebhook(ctx, "upi", body, sig, nil)
	require.NoError(t, err)

	body, sig = paidEvent("ev_b", "plink_2")
	result, err := f.svc.HandleWebhook(ctx, "upi", body, sig, nil)
	require.NoError(t, err)
	assert.Equal(t, models.EventOutcomeConflict, result.Outcome)
	assert.Equal(t, models.PaymentStatusPending, f.reload(t, other.ID).Status)
}

func TestService_HandleWebhookSettlesPendingRefund(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	body, sig := paidEvent("ev_paid", "plink_1")
	_, err := f.svc.HandleWebhook(ctx, "upi", body, sig, nil)
	require.NoError(t, err)

	pending := &models.PaymentRefund{
		PublicID:         uuid.NewString(),
		PaymentID:        f.payment.ID,
		Amount:           4000,
		Status:           models.RefundStatusPending,
		ProviderRefundID: "rfnd_1",
	}
	require.NoError(t, f.store.Refunds().Create(ctx, pending))

	body, sig = signed(`{"id":"ev_rf","event":"refund.processed","payload":{"refund":{"id":"rfnd_1","amount":4000,"payment_link_id":"plink_1"}}}`)
	result, err := f.svc.HandleWebhook(ctx, "upi", body, sig, nil)
	require.NoError(t, err)
	assert.Equal(t, models.EventOutcomeApplied, result.Outcome)

	p := f.reload(t, f.payment.ID)
	assert.Equal(t, models.PaymentStatusPartiallyRefunded, p.Status)
	assert.Equal(t, int64(4000), p.RefundedAmount)

	r, err := f.store.Refunds().GetByID(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RefundStatusSucceeded, r.Status)
}

func TestService_HandleWebhookProviderInitiatedRefund(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	body, sig := paidEvent("ev_paid", "plink_1")
	_, err := f.svc.HandleWebhook(ctx, "upi", body, sig, nil)
	require.NoError(t, err)

	body, sig = signed(`{"id":"ev_dash","event":"refund.processed","payload":{"refund":{"id":"rfnd_dash","amount":10000,"payment_link_id":"plink_1"}}}`)
	result, err := f.svc.HandleWebhook(ctx, "upi", body, sig, nil)
	require.NoError(t, err)
	assert.Equal(t, models.EventOutcomeApplied, result.Outcome)

	p := f.reload(t, f.payment.ID)
	assert.Equal(t, models.PaymentStatusRefunded, p.Status)
	assert.False(t, p.SettlementEligible)

	refunds, err := f.store.Refunds().ListByPayment(ctx, f.payment.ID)
	require.NoError(t, err)
	require.Len(t, refunds, 1)
	assert.Equal(t, "rfnd_dash", refunds[0].ProviderRefundID)
}

func TestService_HandleWebhookProcessorMismatch(t *testing.T) {
	f := newFixture(t)
	body, sig := paidEvent("ev_1", "plink_1")

	id := f.cfg.ID
	_, err := f.svc.HandleWebhook(context.Background(), "wallet", body, sig, &id)
	assert.ErrorIs(t, err, gateway.ErrUnsupportedVariant)

	_, err = f.svc.HandleWebhook(context.Background(), "bitcoin", body, sig, nil)
	assert.ErrorIs(t, err, gateway.ErrUnsupportedVariant)

	missing := uint(999)
	_, err = f.svc.HandleWebhook(context.Background(), "upi", body, sig, &missing)
	assert.ErrorIs(t, err, models.ErrProcessorNotFound)
}

func stripeSigned(secret, body string) ([]byte, string) {
	now := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(fmt.Sprintf("%d.%s", now, body)))
	return []byte(body), fmt.Sprintf("t=%d,v1=%s", now, hex.EncodeToString(mac.Sum(nil)))
}

func TestService_HandleWebhookCardDeclineThenSuccess(t *testing.T) {
	ctx := context.Background()
	_, store := repotest.Open(t)
	sealer, err := gateway.NewSealer("webhook-test-key")
	require.NoError(t, err)
	processors := processor.NewService(store.Processors(), sealer)

	cfg, err := processors.Create(ctx, processor.CreateRequest{
		BusinessID:  1,
		Variant:     "card",
		Priority:    1,
		Credentials: gateway.Credentials{SecretKey: "sk_test", WebhookSecret: "whsec_card"},
	})
	require.NoError(t, err)
	_, err = processors.Activate(ctx, 1, cfg.ID)
	require.NoError(t, err)

	payment := &models.Payment{
		PublicID:          uuid.NewString(),
		OrderID:           "order-card",
		BusinessID:        1,
		ProcessorConfigID: cfg.ID,
		Variant:           models.VariantCard,
		ProviderReference: "pi_1",
		Amount:            10000,
		Currency:          "USD",
		Status:            models.PaymentStatusProcessing,
	}
	_, err = store.Payments().CreateIfAbsent(ctx, payment)
	require.NoError(t, err)

	svc := NewService(store, processors, gateway.NewRegistry(gateway.NewCardAdapter(time.Second, "")), nil, Config{Timeout: 5 * time.Second})

	body, sig := stripeSigned("whsec_card", `{"id":"evt_decline","object":"event","type":"payment_intent.payment_failed",`+
		`"data":{"object":{"id":"pi_1","object":"payment_intent","amount":10000,"status":"requires_payment_method","last_payment_error":{"message":"Your card was declined."}}}}`)
	declined, err := svc.HandleWebhook(ctx, "card", body, sig, nil)
	require.NoError(t, err)
	assert.Equal(t, models.EventOutcomeApplied, declined.Outcome)

	got, err := store.Payments().GetByID(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusProcessing, got.Status)
	assert.Equal(t, "Your card was declined.", got.FailureReason)

	body, sig = stripeSigned("whsec_card", `{"id":"evt_paid","object":"event","type":"payment_intent.succeeded",`+
		`"data":{"object":{"id":"pi_1","object":"payment_intent","amount":10000,"amount_received":10000,"status":"succeeded"}}}`)
	paid, err := svc.HandleWebhook(ctx, "card", body, sig, nil)
	require.NoError(t, err)
	assert.Equal(t, models.EventOutcomeApplied, paid.Outcome)

	got, err = store.Payments().GetByID(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusSucceeded, got.Status)
	assert.True(t, got.SettlementEligible)
	assert.Empty(t, got.FailureReason)

	captured, err := store.Payments().HasCaptured(ctx, "order-card")
	require.NoError(t, err)
	assert.True(t, captured)
}

func TestService_HandleWebhookSharedSecretResolvesOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sealer, err := gateway.NewSealer("webhook-test-key")
	require.NoError(t, err)
	processors := processor.NewService(f.store.Processors(), sealer)
	other, err := processors.Create(ctx, processor.CreateRequest{
		BusinessID:  2,
		Variant:     "upi",
		Priority:    1,
		Credentials: gateway.Credentials{PublicKey: "key2", SecretKey: "secret2", WebhookSecret: upiSecret},
	})
	require.NoError(t, err)
	_, err = processors.Activate(ctx, 2, other.ID)
	require.NoError(t, err)

	owned := &models.Payment{
		PublicID:          uuid.NewString(),
		OrderID:           "order-b2",
		BusinessID:        2,
		ProcessorConfigID: other.ID,
		Variant:           models.VariantUPI,
		ProviderReference: "plink_b2",
		Amount:            10000,
		Currency:          "INR",
		Status:            models.PaymentStatusPending,
	}
	_, err = f.store.Payments().CreateIfAbsent(ctx, owned)
	require.NoError(t, err)

	body, sig := paidEvent("ev_b2", "plink_b2")
	result, err := f.svc.HandleWebhook(ctx, "upi", body, sig, nil)
	require.NoError(t, err)
	assert.Equal(t, models.EventOutcomeApplied, result.Outcome)
	assert.Equal(t, owned.PublicID, result.PaymentID)
	assert.Equal(t, models.PaymentStatusSucceeded, f.reload(t, owned.ID).Status)

	events, err := f.store.WebhookEvents().ListByPayment(ctx, owned.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, other.ID, events[0].ProcessorConfigID)
}

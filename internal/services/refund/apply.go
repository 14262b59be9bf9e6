package refund

import (
	"context"
	"fmt"
	"time"

	"menupay/internal/models"
	"menupay/internal/repositories"
)

// Apply books a confirmed refund against its payment. payment must be
// locked by the caller's transaction. It returns the payment's new status.
//
// A refund on a payment already attached to a payout cannot reduce that
// payout, so it becomes a clawback adjustment on the next one.
func Apply(ctx context.Context, tx repositories.Store, payment *models.Payment, r *models.PaymentRefund, now time.Time) (string, error) {
	refunded := payment.RefundedAmount + r.Amount
	if refunded > payment.Amount {
		refunded = payment.Amount
	}
	to := models.PaymentStatusPartiallyRefunded
	if refunded == payment.Amount {
		to = models.PaymentStatusRefunded
	}

	updates := map[string]interface{}{
		"refunded_amount":    refunded,
		"refund_reason":      r.Reason,
		"provider_refund_id": r.ProviderRefundID,
	}
	if to == models.PaymentStatusRefunded && payment.PayoutID == nil {
		updates["settlement_eligible"] = false
	}

	ok, err := tx.Payments().Transition(ctx, payment.ID, to, updates)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("payment %d in status %s: %w", payment.ID, payment.Status, repositories.ErrStaleWrite)
	}

	if err := tx.Refunds().Update(ctx, r.ID, map[string]interface{}{
		"status":             models.RefundStatusSucceeded,
		"provider_refund_id": r.ProviderRefundID,
		"updated_at":         now,
	}); err != nil {
		return "", err
	}

	if payment.PayoutID != nil {
		err := tx.Adjustments().Create(ctx, &models.SettlementAdjustment{
			BusinessID:        payment.BusinessID,
			ProcessorConfigID: payment.ProcessorConfigID,
			PaymentID:         payment.ID,
			RefundID:          r.ID,
			Amount:            r.Amount,
			Reason:            fmt.Sprintf("refund %s on settled payment %s", r.PublicID, payment.PublicID),
		})
		if err != nil {
			return "", err
		}
	}

	payment.Status = to
	payment.RefundedAmount = refunded
	payment.RefundReason = r.Reason
	payment.ProviderRefundID = r.ProviderRefundID
	if v, ok := updates["settlement_eligible"]; ok {
		payment.SettlementEligible = v.(bool)
	}
	r.Status = models.RefundStatusSucceeded
	return to, nil
}

// Package routes defines the API routing configuration.
package routes

import (
	"menupay/internal/handlers"
	"menupay/internal/middleware"
	"menupay/internal/models"

	"github.com/gofiber/fiber/v2"
)

// Handlers groups every HTTP handler the router mounts.
type Handlers struct {
	Payments   *handlers.PaymentHandler
	Webhooks   *handlers.WebhookHandler
	Processors *handlers.ProcessorHandler
	Payouts    *handlers.PayoutHandler
	Health     *handlers.HealthHandler
}

// SetupRoutes configures all application routes.
func SetupRoutes(app *fiber.App, h Handlers, auth *middleware.AuthMiddleware) {
	app.Get("/health", h.Health.HealthCheck)

	// Provider callbacks authenticate by signature, not by token.
	webhooks := app.Group("/webhooks")
	webhooks.Post("/:variant", h.Webhooks.Handle)
	webhooks.Post("/:variant/:processorID", h.Webhooks.Handle)

	api := app.Group("/api", auth.Handler)

	business := api.Group("/businesses/:businessID", middleware.BusinessAccess("businessID"))
	setupProcessorRoutes(business, h.Processors, h.Payouts)
	setupPaymentRoutes(business, h.Payments)
	setupPayoutRoutes(business, h.Payouts)

	admin := api.Group("/admin", middleware.AdminAuthMiddleware)
	admin.Patch("/payouts/:payoutID/status", h.Payouts.UpdatePayoutStatus)
}

func setupProcessorRoutes(router fiber.Router, h *handlers.ProcessorHandler, payouts *handlers.PayoutHandler) {
	processors := router.Group("/processors", middleware.HasPermission(models.PermissionProcessorWrite))
	processors.Get("/", h.List)
	processors.Post("/", h.Create)
	processors.Get("/:processorID", h.Get)
	processors.Patch("/:processorID", h.Update)
	processors.Post("/:processorID/activate", h.Activate)
	processors.Post("/:processorID/disconnect", h.Disconnect)

	// Group middleware matches by prefix, so schedules live outside
	// /processors to keep their own permissions.
	schedules := router.Group("/schedules")
	schedules.Get("/:processorID", middleware.HasPermission(models.PermissionPayoutRead), payouts.GetSchedule)
	schedules.Patch("/:processorID", middleware.HasPermission(models.PermissionPayoutWrite), payouts.UpdateSchedule)
	schedules.Post("/:processorID/run", middleware.HasPermission(models.PermissionPayoutWrite), payouts.RunSchedule)
}

func setupPaymentRoutes(router fiber.Router, h *handlers.PaymentHandler) {
	payments := router.Group("/payments")
	payments.Get("/", h.ListPayments)
	payments.Post("/", middleware.HasPermission(models.PermissionPaymentWrite), h.CreatePayment)
	payments.Get("/:paymentID", h.GetPayment)
	payments.Get("/:paymentID/refunds", h.ListRefunds)
	payments.Post("/:paymentID/refunds", middleware.HasPermission(models.PermissionRefundWrite), h.CreateRefund)
}

func setupPayoutRoutes(router fiber.Router, h *handlers.PayoutHandler) {
	payouts := router.Group("/payouts", middleware.HasPermission(models.PermissionPayoutRead))
	payouts.Get("/", h.ListPayouts)
	payouts.Get("/:payoutID", h.GetPayout)
	payouts.Post("/:payoutID/retry", middleware.HasPermission(models.PermissionPayoutWrite), h.RetryPayout)

	router.Get("/reports/settlement", middleware.HasPermission(models.PermissionPayoutRead), h.Report)
}

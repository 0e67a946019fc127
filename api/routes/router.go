package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/adhera-labs/adhera-backend/api/controllers"
	webhookcontrollers "github.com/adhera-labs/adhera-backend/api/controllers/webhooks"
	"github.com/adhera-labs/adhera-backend/api/middleware"
	checkoutsvc "github.com/adhera-labs/adhera-backend/internal/checkout"
	"github.com/adhera-labs/adhera-backend/internal/entitlements"
	"github.com/adhera-labs/adhera-backend/internal/proof"
	"github.com/adhera-labs/adhera-backend/internal/reconcile"
	stripewebhook "github.com/adhera-labs/adhera-backend/internal/webhooks/stripe"
	"github.com/adhera-labs/adhera-backend/pkg/config"
	"github.com/adhera-labs/adhera-backend/pkg/db"
	"github.com/adhera-labs/adhera-backend/pkg/logger"
	"github.com/adhera-labs/adhera-backend/pkg/redis"
	"github.com/adhera-labs/adhera-backend/pkg/stripe"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisP redis.Pinger,
	checkoutService *checkoutsvc.Service,
	reconcileService reconcile.Service,
	entitlementService entitlements.Service,
	proofResolver *proof.Resolver,
	stripeClient *stripe.Client,
	stripeWebhookService *stripewebhook.Service,
	stripeWebhookGuard *stripewebhook.IdempotencyGuard,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisP))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/webhooks", func(r chi.Router) {
			r.Post("/stripe", webhookcontrollers.StripeWebhook(stripeWebhookService, stripeClient, stripeWebhookGuard, logg))
		})

		r.Post("/checkout/session", controllers.CheckoutSession(checkoutService, logg))
		r.Post("/payments/confirm", controllers.PaymentConfirm(reconcileService, logg))
		r.Get("/receipts/{sessionID}", controllers.Receipt(proofResolver, logg))

		r.Route("/memberships", func(r chi.Router) {
			r.Get("/status/{subjectID}/{subjectType}", controllers.MembershipStatus(entitlementService, logg))
			r.Post("/{id}/terminate", controllers.MembershipTerminate(entitlementService, logg))
			r.Delete("/{id}", controllers.MembershipDelete(entitlementService, logg))
		})
	})

	return r
}

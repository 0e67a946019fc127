package controllers

import (
	"net/http"

	"github.com/adhera-labs/adhera-backend/api/responses"
	"github.com/adhera-labs/adhera-backend/api/validators"
	"github.com/adhera-labs/adhera-backend/internal/reconcile"
	pkgerrors "github.com/adhera-labs/adhera-backend/pkg/errors"
	"github.com/adhera-labs/adhera-backend/pkg/logger"
)

type paymentConfirmRequest struct {
	SessionID string `json:"session_id" validate:"required"`
}

// PaymentConfirm is the client-side confirmation channel. It verifies the
// session with the provider and reconciles it into an entitlement; replays
// return the existing entitlement.
func PaymentConfirm(svc reconcile.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reconcile service unavailable"))
			return
		}

		var req paymentConfirmRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		result, err := svc.ReconcileSession(ctx, req.SessionID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		status := http.StatusCreated
		if result.AlreadyProcessed {
			status = http.StatusOK
		}
		responses.WriteSuccessStatus(w, status, result)
	}
}

package controllers

import (
	"net/http"

	"github.com/adhera-labs/adhera-backend/api/responses"
	"github.com/adhera-labs/adhera-backend/api/validators"
	"github.com/adhera-labs/adhera-backend/internal/checkout"
	pkgerrors "github.com/adhera-labs/adhera-backend/pkg/errors"
	"github.com/adhera-labs/adhera-backend/pkg/logger"
)

type checkoutSessionRequest struct {
	Kind          string `json:"kind" validate:"required,oneof=membership training"`
	PriceID       string `json:"price_id" validate:"required"`
	UserID        string `json:"user_id,omitempty"`
	AssociationID string `json:"association_id,omitempty"`
	TrainingID    string `json:"training_id,omitempty"`
}

// CheckoutSession opens a hosted payment page for a membership or a
// training purchase.
func CheckoutSession(svc *checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var req checkoutSessionRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var session *checkout.Session
		var err error
		switch req.Kind {
		case "training":
			session, err = svc.StartTraining(ctx, checkout.TrainingInput{
				PriceID:    req.PriceID,
				UserID:     req.UserID,
				TrainingID: req.TrainingID,
			})
		default:
			session, err = svc.StartMembership(ctx, checkout.MembershipInput{
				PriceID:       req.PriceID,
				UserID:        req.UserID,
				AssociationID: req.AssociationID,
			})
		}
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, session)
	}
}

package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/adhera-labs/adhera-backend/api/responses"
	"github.com/adhera-labs/adhera-backend/api/validators"
	"github.com/adhera-labs/adhera-backend/internal/entitlements"
	"github.com/adhera-labs/adhera-backend/pkg/enums"
	pkgerrors "github.com/adhera-labs/adhera-backend/pkg/errors"
	"github.com/adhera-labs/adhera-backend/pkg/logger"
)

// MembershipStatus returns every membership linked to a subject with its
// current activity flags.
func MembershipStatus(svc entitlements.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "entitlement service unavailable"))
			return
		}

		subjectID := chi.URLParam(r, "subjectID")
		if subjectID == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "subject id required"))
			return
		}
		subjectType, err := enums.ParseSubjectType(chi.URLParam(r, "subjectType"))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid subject type"))
			return
		}

		statuses, err := svc.StatusForSubject(ctx, subjectType, subjectID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, statuses)
	}
}

// MembershipTerminate cancels the renewal of an active membership.
func MembershipTerminate(svc entitlements.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "entitlement service unavailable"))
			return
		}

		membershipID, err := membershipIDParam(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if err := svc.CancelRenewal(ctx, membershipID); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "renewal_cancelled"})
	}
}

type membershipDeleteRequest struct {
	SubjectType string `json:"subject_type" validate:"required,oneof=user association"`
	SubjectID   string `json:"subject_id" validate:"required"`
}

// MembershipDelete unlinks the subject from the membership and removes the
// row once no other subject references it. Deleting an already-deleted
// membership succeeds.
func MembershipDelete(svc entitlements.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "entitlement service unavailable"))
			return
		}

		membershipID, err := membershipIDParam(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var req membershipDeleteRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		subjectType, err := enums.ParseSubjectType(req.SubjectType)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid subject type"))
			return
		}

		if err := svc.Delete(ctx, membershipID, subjectType, req.SubjectID); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

func membershipIDParam(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "id")
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "membership id required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid membership id")
	}
	return id, nil
}

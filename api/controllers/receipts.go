package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/adhera-labs/adhera-backend/api/responses"
	"github.com/adhera-labs/adhera-backend/internal/proof"
	pkgerrors "github.com/adhera-labs/adhera-backend/pkg/errors"
	"github.com/adhera-labs/adhera-backend/pkg/logger"
)

// Receipt looks up (and resolves on demand) the proof-of-payment document
// for a checkout session. When every fallback is spent the response carries
// the raw payment facts instead of a document.
func Receipt(resolver *proof.Resolver, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if resolver == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "proof resolver unavailable"))
			return
		}

		sessionID := chi.URLParam(r, "sessionID")
		resolution, err := resolver.ResolveBySession(ctx, sessionID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, resolution)
	}
}

package stripewebhook

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v84"

	"github.com/adhera-labs/adhera-backend/internal/reconcile"
	pkgerrors "github.com/adhera-labs/adhera-backend/pkg/errors"
	"github.com/adhera-labs/adhera-backend/pkg/logger"
)

// reconciler converges a confirmed checkout session into an entitlement.
type reconciler interface {
	ReconcileSession(ctx context.Context, sessionID string) (*reconcile.Result, error)
}

// ServiceParams configure the webhook event service.
type ServiceParams struct {
	Reconciler reconciler
	Logger     *logger.Logger
}

// Service translates provider webhook events into reconciliation calls.
// Business rejections are swallowed so the provider stops redelivering;
// only retryable infrastructure failures surface as errors.
type Service struct {
	reconciler reconciler
	logg       *logger.Logger
}

// NewService builds the webhook event service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Reconciler == nil {
		return nil, fmt.Errorf("reconciler required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Service{reconciler: params.Reconciler, logg: params.Logger}, nil
}

// HandleEvent processes a verified webhook event.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "event is required")
	}

	switch event.Type {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
		return s.handleSessionCompleted(ctx, event)
	default:
		s.logg.Info(ctx, fmt.Sprintf("ignoring event type %s", event.Type))
		return nil
	}
}

func (s *Service) handleSessionCompleted(ctx context.Context, event *stripe.Event) error {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		s.logg.Warn(ctx, "event payload is not a checkout session; dropping")
		return nil
	}

	ctx = s.logg.WithSessionID(ctx, session.ID)
	result, err := s.reconciler.ReconcileSession(ctx, session.ID)
	if err != nil {
		if isRetryable(err) {
			return err
		}
		s.logg.Warn(ctx, "session rejected during reconciliation; acknowledging event")
		return nil
	}

	if result.AlreadyProcessed {
		s.logg.Info(ctx, "session already reconciled")
	}
	return nil
}

// isRetryable reports whether redelivering the event could succeed.
func isRetryable(err error) bool {
	typed := pkgerrors.As(err)
	if typed == nil {
		return true
	}
	return pkgerrors.MetadataFor(typed.Code()).Retryable
}

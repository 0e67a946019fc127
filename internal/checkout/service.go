package checkout

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v84"

	"github.com/adhera-labs/adhera-backend/internal/catalog"
	"github.com/adhera-labs/adhera-backend/internal/reconcile"
	"github.com/adhera-labs/adhera-backend/pkg/enums"
	pkgerrors "github.com/adhera-labs/adhera-backend/pkg/errors"
	"github.com/adhera-labs/adhera-backend/pkg/logger"
)

// providerClient is the subset of payment operations checkout needs.
type providerClient interface {
	CreateCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// directoryClient answers whether a subject currently holds an active
// member status, which unlocks the training discount.
type directoryClient interface {
	HasActiveMemberStatus(ctx context.Context, subjectID string) (bool, error)
}

// MembershipInput describes a membership purchase to start.
type MembershipInput struct {
	PriceID       string
	UserID        string
	AssociationID string
	TargetStatus  enums.MemberStatus
}

// TrainingInput describes a training purchase to start.
type TrainingInput struct {
	PriceID    string
	UserID     string
	TrainingID string
}

// Session is the hosted payment page handed back to the client.
type Session struct {
	ID           string `json:"session_id"`
	URL          string `json:"url"`
	AmountCents  int64  `json:"amount_cents"`
	MemberPriced bool   `json:"member_priced"`
}

// ServiceParams groups checkout service dependencies.
type ServiceParams struct {
	Provider  providerClient
	Directory directoryClient
	Logger    *logger.Logger
	Currency  string
}

// Service creates provider checkout sessions with the metadata that
// reconciliation later reads back.
type Service struct {
	provider  providerClient
	directory directoryClient
	logg      *logger.Logger
	currency  string
}

// NewService builds the checkout service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Provider == nil {
		return nil, fmt.Errorf("provider client required")
	}
	if params.Directory == nil {
		return nil, fmt.Errorf("directory client required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	currency := params.Currency
	if currency == "" {
		currency = "eur"
	}
	return &Service{
		provider:  params.Provider,
		directory: params.Directory,
		logg:      params.Logger,
		currency:  currency,
	}, nil
}

// StartMembership opens a hosted checkout for a membership period.
func (s *Service) StartMembership(ctx context.Context, input MembershipInput) (*Session, error) {
	entry, ok := catalog.Lookup(input.PriceID)
	if !ok || !entry.IsMembership() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown membership price %q", input.PriceID))
	}
	if input.UserID == "" && input.AssociationID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "a user or association subject is required")
	}
	if input.UserID != "" && input.AssociationID != "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "subject must be a user or an association, not both")
	}

	targetStatus := input.TargetStatus
	if targetStatus == "" {
		targetStatus = enums.StatusForTier(entry.Tier)
	}

	amount := entry.BaseCents
	meta := reconcile.Metadata{
		Kind:            enums.TransactionKindMembership,
		UserID:          input.UserID,
		AssociationID:   input.AssociationID,
		PriceID:         entry.PriceID,
		OriginalCents:   amount,
		DiscountedCents: amount,
		TargetStatus:    targetStatus,
	}

	session, err := s.createSession(ctx, fmt.Sprintf("Membership (%s)", entry.Tier), amount, meta)
	if err != nil {
		return nil, err
	}
	return &Session{ID: session.ID, URL: session.URL, AmountCents: amount}, nil
}

// StartTraining opens a hosted checkout for a training purchase. Active
// members pay the discounted price; a directory outage falls back to the
// base price rather than blocking the sale.
func (s *Service) StartTraining(ctx context.Context, input TrainingInput) (*Session, error) {
	entry, ok := catalog.Lookup(input.PriceID)
	if !ok || !entry.IsTraining() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown training price %q", input.PriceID))
	}
	if input.UserID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if input.TrainingID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "training id is required")
	}

	isMember, err := s.directory.HasActiveMemberStatus(ctx, input.UserID)
	if err != nil {
		s.logg.Warn(ctx, "member status lookup failed; charging base price")
		isMember = false
	}

	amount := entry.FinalPriceCents(isMember)
	meta := reconcile.Metadata{
		Kind:            enums.TransactionKindTraining,
		UserID:          input.UserID,
		TrainingID:      input.TrainingID,
		PriceID:         entry.PriceID,
		OriginalCents:   entry.BaseCents,
		DiscountedCents: entry.FinalPriceCents(true),
		IsMember:        isMember,
	}

	session, err := s.createSession(ctx, fmt.Sprintf("Training (%dh)", entry.Hours), amount, meta)
	if err != nil {
		return nil, err
	}
	return &Session{ID: session.ID, URL: session.URL, AmountCents: amount, MemberPriced: isMember}, nil
}

func (s *Service) createSession(ctx context.Context, description string, amountCents int64, meta reconcile.Metadata) (*stripe.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Quantity: stripe.Int64(1),
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(s.currency),
					UnitAmount: stripe.Int64(amountCents),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(description),
					},
				},
			},
		},
		Metadata: reconcile.BuildMetadata(meta),
	}

	session, err := s.provider.CreateCheckoutSession(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create checkout session")
	}
	return session, nil
}

package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/adhera-labs/adhera-backend/internal/catalog"
	"github.com/adhera-labs/adhera-backend/internal/notify"
	"github.com/adhera-labs/adhera-backend/pkg/db"
	"github.com/adhera-labs/adhera-backend/pkg/db/models"
	"github.com/adhera-labs/adhera-backend/pkg/enums"
	pkgerrors "github.com/adhera-labs/adhera-backend/pkg/errors"
	"github.com/adhera-labs/adhera-backend/pkg/logger"
)

// Memberships run exactly one year from creation; never recomputed.
const membershipDuration = 365 * 24 * time.Hour

// providerClient is the subset of Stripe operations reconciliation needs.
type providerClient interface {
	GetCheckoutSession(ctx context.Context, id string) (*stripe.CheckoutSession, error)
}

type repository interface {
	FindMembershipBySession(ctx context.Context, sessionID string) (*models.Membership, error)
	CreateMembershipWithSubject(ctx context.Context, membership *models.Membership, subjectType enums.SubjectType, subjectID string) error
	FindTrainingBySession(ctx context.Context, userID, sessionID string) (*models.TrainingPurchase, error)
	CreateTraining(ctx context.Context, purchase *models.TrainingPurchase) error
}

// directoryClient is the subset of subject-directory operations reconciliation needs.
type directoryClient interface {
	SetStatusForMembership(ctx context.Context, subjectID string, status enums.MemberStatus) error
	SetStatusConnected(ctx context.Context, subjectID string) error
	Email(ctx context.Context, subjectID string) (string, error)
}

type notifier interface {
	Dispatch(ctx context.Context, msg notify.Message) bool
}

// ProofScheduler queues an out-of-band proof resolution for a fresh
// entitlement. Implementations must not block the caller.
type ProofScheduler interface {
	Schedule(kind enums.TransactionKind, entitlementID uuid.UUID, sessionID string)
}

// Result reports what reconciling a session produced.
type Result struct {
	Kind               enums.TransactionKind `json:"kind"`
	MembershipID       *uuid.UUID            `json:"membership_id,omitempty"`
	TrainingPurchaseID *uuid.UUID            `json:"training_purchase_id,omitempty"`
	AlreadyProcessed   bool                  `json:"already_processed"`
	NotificationFailed bool                  `json:"notification_failed"`
}

// Service converges both payment-success channels onto one idempotent
// reconciliation operation.
type Service interface {
	ReconcileSession(ctx context.Context, sessionID string) (*Result, error)
}

// ServiceParams groups dependencies for the reconciliation service.
type ServiceParams struct {
	Provider  providerClient
	Repo      repository
	Directory directoryClient
	Notifier  notifier
	Proofs    ProofScheduler
	Logger    *logger.Logger
	Now       func() time.Time
}

type service struct {
	provider  providerClient
	repo      repository
	directory directoryClient
	notifier  notifier
	proofs    ProofScheduler
	logg      *logger.Logger
	now       func() time.Time
}

// NewService builds the reconciliation service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Provider == nil {
		return nil, fmt.Errorf("provider client required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("repository required")
	}
	if params.Directory == nil {
		return nil, fmt.Errorf("directory client required")
	}
	if params.Notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if params.Proofs == nil {
		return nil, fmt.Errorf("proof scheduler required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		provider:  params.Provider,
		repo:      params.Repo,
		directory: params.Directory,
		notifier:  params.Notifier,
		proofs:    params.Proofs,
		logg:      params.Logger,
		now:       now,
	}, nil
}

// ReconcileSession verifies the session with the provider and creates the
// entitlement it pays for, exactly once. Reprocessing an already-reconciled
// session returns the existing entitlement as a success.
func (s *service) ReconcileSession(ctx context.Context, sessionID string) (*Result, error) {
	if sessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}

	ctx = s.logg.WithSessionID(ctx, sessionID)

	session, err := s.provider.GetCheckoutSession(ctx, sessionID)
	if err != nil {
		return nil, mapProviderError(err)
	}

	if session.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		return nil, pkgerrors.New(pkgerrors.CodePaymentPending, "session payment not confirmed").
			WithDetails(map[string]any{"payment_status": string(session.PaymentStatus)})
	}

	meta, err := ParseMetadata(session.Metadata)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid session metadata")
	}

	ctx = s.logg.WithSubject(ctx, meta.SubjectType().String(), meta.SubjectID())

	switch meta.Kind {
	case enums.TransactionKindMembership:
		return s.reconcileMembership(ctx, session, meta)
	case enums.TransactionKindTraining:
		return s.reconcileTraining(ctx, session, meta)
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unhandled transaction kind %q", meta.Kind))
	}
}

func (s *service) reconcileMembership(ctx context.Context, session *stripe.CheckoutSession, meta Metadata) (*Result, error) {
	existing, err := s.repo.FindMembershipBySession(ctx, session.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup membership")
	}
	if existing != nil {
		s.logg.Info(ctx, "session already reconciled; returning existing membership")
		return &Result{
			Kind:             enums.TransactionKindMembership,
			MembershipID:     &existing.ID,
			AlreadyProcessed: true,
		}, nil
	}

	entry, ok := catalog.Lookup(meta.PriceID)
	if !ok || !entry.IsMembership() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown membership price %q", meta.PriceID))
	}

	now := s.now()
	membership := &models.Membership{
		Tier:              entry.Tier,
		PriceCents:        amountPaid(session, entry.FinalPriceCents(meta.IsMember)),
		CheckoutSessionID: session.ID,
		StartsAt:          now,
		EndsAt:            now.Add(membershipDuration),
	}

	// Row and subject link commit together; a failed link must not leave an
	// orphaned membership for a later retry to mistake for a finished one.
	if err := s.repo.CreateMembershipWithSubject(ctx, membership, meta.SubjectType(), meta.SubjectID()); err != nil {
		if db.IsUniqueViolation(err, models.UniqueMembershipSession) {
			// A concurrent writer won the race; their row is the entitlement.
			winner, readErr := s.repo.FindMembershipBySession(ctx, session.ID)
			if readErr != nil || winner == nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, readErr, "re-read membership after conflict")
			}
			s.logg.Info(ctx, "lost creation race; returning winner's membership")
			return &Result{
				Kind:             enums.TransactionKindMembership,
				MembershipID:     &winner.ID,
				AlreadyProcessed: true,
			}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist membership")
	}

	switch meta.SubjectType() {
	case enums.SubjectTypeAssociation:
		if err := s.directory.SetStatusConnected(ctx, meta.AssociationID); err != nil {
			s.logg.Warn(ctx, "status propagation failed; membership unaffected")
		}
	default:
		target := meta.TargetStatus
		if target == "" {
			target = enums.StatusForTier(entry.Tier)
		}
		if err := s.directory.SetStatusForMembership(ctx, meta.UserID, target); err != nil {
			s.logg.Warn(ctx, "status propagation failed; membership unaffected")
		}
	}

	notificationFailed := s.notifySubject(ctx, meta.SubjectID(),
		"Your membership is active",
		fmt.Sprintf("<p>Your %s membership is active until %s.</p>", entry.Tier, membership.EndsAt.Format("2 January 2006")),
	)

	s.proofs.Schedule(enums.TransactionKindMembership, membership.ID, session.ID)

	return &Result{
		Kind:               enums.TransactionKindMembership,
		MembershipID:       &membership.ID,
		NotificationFailed: notificationFailed,
	}, nil
}

func (s *service) reconcileTraining(ctx context.Context, session *stripe.CheckoutSession, meta Metadata) (*Result, error) {
	existing, err := s.repo.FindTrainingBySession(ctx, meta.UserID, session.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup training purchase")
	}
	if existing != nil {
		s.logg.Info(ctx, "session already reconciled; returning existing training purchase")
		return &Result{
			Kind:               enums.TransactionKindTraining,
			TrainingPurchaseID: &existing.ID,
			AlreadyProcessed:   true,
		}, nil
	}

	entry, ok := catalog.Lookup(meta.PriceID)
	if !ok || !entry.IsTraining() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown training price %q", meta.PriceID))
	}

	original := meta.OriginalCents
	if original == 0 {
		original = entry.BaseCents
	}
	discounted := meta.DiscountedCents
	if discounted == 0 {
		discounted = entry.FinalPriceCents(true)
	}

	amount := original
	var discount int64
	if meta.IsMember {
		amount = discounted
		discount = original - discounted
		if discount < 0 {
			discount = 0
		}
	}

	purchase := &models.TrainingPurchase{
		UserID:              meta.UserID,
		TrainingID:          meta.TrainingID,
		CheckoutSessionID:   session.ID,
		AmountCents:         amount,
		OriginalPriceCents:  original,
		MemberDiscountCents: discount,
		HoursPurchased:      entry.Hours,
		HoursConsumed:       0,
	}

	if err := s.repo.CreateTraining(ctx, purchase); err != nil {
		if db.IsUniqueViolation(err, models.UniqueTrainingSession) {
			winner, readErr := s.repo.FindTrainingBySession(ctx, meta.UserID, session.ID)
			if readErr != nil || winner == nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, readErr, "re-read training purchase after conflict")
			}
			s.logg.Info(ctx, "lost creation race; returning winner's training purchase")
			return &Result{
				Kind:               enums.TransactionKindTraining,
				TrainingPurchaseID: &winner.ID,
				AlreadyProcessed:   true,
			}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist training purchase")
	}

	notificationFailed := s.notifySubject(ctx, meta.UserID,
		"Your training is booked",
		fmt.Sprintf("<p>%d hours of training are now available on your account.</p>", entry.Hours),
	)

	s.proofs.Schedule(enums.TransactionKindTraining, purchase.ID, session.ID)

	return &Result{
		Kind:               enums.TransactionKindTraining,
		TrainingPurchaseID: &purchase.ID,
		NotificationFailed: notificationFailed,
	}, nil
}

// notifySubject sends the confirmation mail; the return value is the
// notificationFailed flag, never an error.
func (s *service) notifySubject(ctx context.Context, subjectID, subject, htmlBody string) bool {
	email, err := s.directory.Email(ctx, subjectID)
	if err != nil || email == "" {
		s.logg.Warn(ctx, "recipient email lookup failed; skipping confirmation mail")
		return true
	}
	delivered := s.notifier.Dispatch(ctx, notify.Message{
		To:       email,
		Subject:  subject,
		HTMLBody: htmlBody,
	})
	return !delivered
}

func amountPaid(session *stripe.CheckoutSession, fallback int64) int64 {
	if session.AmountTotal > 0 {
		return session.AmountTotal
	}
	return fallback
}

func mapProviderError(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.HTTPStatusCode == 404 || stripeErr.Code == stripe.ErrorCodeResourceMissing {
			return pkgerrors.New(pkgerrors.CodeNotFound, "checkout session not found")
		}
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "retrieve checkout session")
}

package entitlements

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/adhera-labs/adhera-backend/pkg/db/models"
	"github.com/adhera-labs/adhera-backend/pkg/enums"
	pkgerrors "github.com/adhera-labs/adhera-backend/pkg/errors"
	"github.com/adhera-labs/adhera-backend/pkg/logger"
)

type repository interface {
	FindMembershipByID(ctx context.Context, id uuid.UUID) (*models.Membership, error)
	UpdateMembership(ctx context.Context, membership *models.Membership) error
	DeleteMembership(ctx context.Context, id uuid.UUID) error
	UnlinkSubject(ctx context.Context, subjectType enums.SubjectType, subjectID string, membershipID uuid.UUID) error
	CountLinks(ctx context.Context, membershipID uuid.UUID) (int64, error)
	ListLinkedUserIDs(ctx context.Context, membershipID uuid.UUID) ([]string, error)
	ListLinkedAssociationIDs(ctx context.Context, membershipID uuid.UUID) ([]string, error)
	ListMembershipsForSubject(ctx context.Context, subjectType enums.SubjectType, subjectID string) ([]models.Membership, error)
}

// providerClient is the subset of Stripe operations the lifecycle manager needs.
type providerClient interface {
	GetCheckoutSession(ctx context.Context, id string) (*stripe.CheckoutSession, error)
	CancelSubscription(ctx context.Context, id string) (*stripe.Subscription, error)
}

// statusClient is the subset of directory operations the lifecycle manager needs.
type statusClient interface {
	RemoveStatus(ctx context.Context, subjectID string, status enums.MemberStatus) error
}

// Service drives the membership lifecycle: renewal cancellation, deletion,
// and the subject status read model.
type Service interface {
	CancelRenewal(ctx context.Context, membershipID uuid.UUID) error
	Delete(ctx context.Context, membershipID uuid.UUID, subjectType enums.SubjectType, subjectID string) error
	StatusForSubject(ctx context.Context, subjectType enums.SubjectType, subjectID string) ([]MembershipStatus, error)
}

// ServiceParams groups dependencies for the entitlement lifecycle service.
type ServiceParams struct {
	Repo     repository
	Provider providerClient
	Status   statusClient
	Logger   *logger.Logger
	Now      func() time.Time
}

type service struct {
	repo     repository
	provider providerClient
	status   statusClient
	logg     *logger.Logger
	now      func() time.Time
}

// NewService builds the lifecycle service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("repository required")
	}
	if params.Provider == nil {
		return nil, fmt.Errorf("provider client required")
	}
	if params.Status == nil {
		return nil, fmt.Errorf("status client required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		repo:     params.Repo,
		provider: params.Provider,
		status:   params.Status,
		logg:     params.Logger,
		now:      now,
	}, nil
}

// CancelRenewal moves an active membership to the renewal-cancelled state.
// The upstream recurring charge is cancelled best-effort; the local state
// transition proceeds even when that call fails.
func (s *service) CancelRenewal(ctx context.Context, membershipID uuid.UUID) error {
	if membershipID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "membership id is required")
	}

	membership, err := s.repo.FindMembershipByID(ctx, membershipID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup membership")
	}
	if membership == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "membership not found")
	}

	now := s.now()
	if membership.CancelledAt != nil {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "membership already cancelled")
	}
	if membership.IsExpired(now) {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "membership already expired")
	}

	s.cancelUpstream(ctx, membership.CheckoutSessionID)

	membership.CancelledAt = &now
	membership.RenewalCancelled = true
	if err := s.repo.UpdateMembership(ctx, membership); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist cancellation")
	}

	s.removeStatusForAllSubjects(ctx, membershipID, enums.StatusForTier(membership.Tier))
	return nil
}

// Delete removes the subject's link to a membership and, once no subject
// references the row anymore, the row itself. Deleting a missing row is
// idempotent: the link is removed and the operation reports success.
func (s *service) Delete(ctx context.Context, membershipID uuid.UUID, subjectType enums.SubjectType, subjectID string) error {
	if membershipID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "membership id is required")
	}
	if !subjectType.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid subject type")
	}
	if subjectID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "subject id is required")
	}

	membership, err := s.repo.FindMembershipByID(ctx, membershipID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup membership")
	}
	if membership == nil {
		if err := s.repo.UnlinkSubject(ctx, subjectType, subjectID, membershipID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove membership link")
		}
		return nil
	}

	if membership.IsActive(s.now()) {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "membership still active; cancel renewal first")
	}

	if err := s.repo.UnlinkSubject(ctx, subjectType, subjectID, membershipID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove membership link")
	}

	remaining, err := s.repo.CountLinks(ctx, membershipID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count membership links")
	}
	if remaining > 0 {
		// Row is shared with other subjects; keep it.
		return nil
	}

	if err := s.repo.DeleteMembership(ctx, membershipID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete membership")
	}

	s.removeStatusBestEffort(ctx, subjectID, enums.StatusForTier(membership.Tier))
	return nil
}

// StatusForSubject returns the subject's membership rows as a read model.
func (s *service) StatusForSubject(ctx context.Context, subjectType enums.SubjectType, subjectID string) ([]MembershipStatus, error) {
	if !subjectType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid subject type")
	}
	if subjectID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "subject id is required")
	}

	rows, err := s.repo.ListMembershipsForSubject(ctx, subjectType, subjectID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list memberships")
	}

	now := s.now()
	out := make([]MembershipStatus, 0, len(rows))
	for _, row := range rows {
		out = append(out, membershipStatusFromModel(row, now))
	}
	return out, nil
}

func (s *service) cancelUpstream(ctx context.Context, sessionID string) {
	session, err := s.provider.GetCheckoutSession(ctx, sessionID)
	if err != nil {
		s.logg.Warn(s.logg.WithSessionID(ctx, sessionID), "upstream session lookup failed during cancellation")
		return
	}
	if session == nil || session.Subscription == nil {
		return
	}
	if _, err := s.provider.CancelSubscription(ctx, session.Subscription.ID); err != nil {
		s.logg.Warn(s.logg.WithSessionID(ctx, sessionID), "upstream subscription cancel failed")
	}
}

func (s *service) removeStatusForAllSubjects(ctx context.Context, membershipID uuid.UUID, status enums.MemberStatus) {
	userIDs, err := s.repo.ListLinkedUserIDs(ctx, membershipID)
	if err != nil {
		s.logg.Warn(ctx, "listing linked users for status removal failed")
	}
	for _, id := range userIDs {
		s.removeStatusBestEffort(ctx, id, status)
	}

	associationIDs, err := s.repo.ListLinkedAssociationIDs(ctx, membershipID)
	if err != nil {
		s.logg.Warn(ctx, "listing linked associations for status removal failed")
	}
	for _, id := range associationIDs {
		s.removeStatusBestEffort(ctx, id, status)
	}
}

func (s *service) removeStatusBestEffort(ctx context.Context, subjectID string, status enums.MemberStatus) {
	if err := s.status.RemoveStatus(ctx, subjectID, status); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "subject_id", subjectID), "status removal failed")
	}
}

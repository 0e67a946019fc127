package entitlements

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/adhera-labs/adhera-backend/pkg/db/models"
	"github.com/adhera-labs/adhera-backend/pkg/enums"
	pkgerrors "github.com/adhera-labs/adhera-backend/pkg/errors"
	"github.com/adhera-labs/adhera-backend/pkg/logger"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeRepo struct {
	membership    *models.Membership
	findErr       error
	updated       *models.Membership
	updateErr     error
	deletedID     uuid.UUID
	deleteCalls   int
	unlinkCalls   int
	unlinkSubject string
	linkCount     int64
	linkCountErr  error
	userIDs       []string
	assocIDs      []string
	subjectRows   []models.Membership
}

func (f *fakeRepo) FindMembershipByID(_ context.Context, _ uuid.UUID) (*models.Membership, error) {
	return f.membership, f.findErr
}

func (f *fakeRepo) UpdateMembership(_ context.Context, m *models.Membership) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updated = m
	return nil
}

func (f *fakeRepo) DeleteMembership(_ context.Context, id uuid.UUID) error {
	f.deleteCalls++
	f.deletedID = id
	return nil
}

func (f *fakeRepo) UnlinkSubject(_ context.Context, _ enums.SubjectType, subjectID string, _ uuid.UUID) error {
	f.unlinkCalls++
	f.unlinkSubject = subjectID
	return nil
}

func (f *fakeRepo) CountLinks(_ context.Context, _ uuid.UUID) (int64, error) {
	return f.linkCount, f.linkCountErr
}

func (f *fakeRepo) ListLinkedUserIDs(_ context.Context, _ uuid.UUID) ([]string, error) {
	return f.userIDs, nil
}

func (f *fakeRepo) ListLinkedAssociationIDs(_ context.Context, _ uuid.UUID) ([]string, error) {
	return f.assocIDs, nil
}

func (f *fakeRepo) ListMembershipsForSubject(_ context.Context, _ enums.SubjectType, _ string) ([]models.Membership, error) {
	return f.subjectRows, nil
}

type fakeProvider struct {
	session     *stripe.CheckoutSession
	sessionErr  error
	cancelled   []string
	cancelErr   error
	getCalls    int
	cancelCalls int
}

func (f *fakeProvider) GetCheckoutSession(_ context.Context, _ string) (*stripe.CheckoutSession, error) {
	f.getCalls++
	return f.session, f.sessionErr
}

func (f *fakeProvider) CancelSubscription(_ context.Context, id string) (*stripe.Subscription, error) {
	f.cancelCalls++
	if f.cancelErr != nil {
		return nil, f.cancelErr
	}
	f.cancelled = append(f.cancelled, id)
	return &stripe.Subscription{ID: id}, nil
}

type fakeStatus struct {
	removed   []string
	removeErr error
}

func (f *fakeStatus) RemoveStatus(_ context.Context, subjectID string, _ enums.MemberStatus) error {
	if f.removeErr != nil {
		return f.removeErr
	}
	f.removed = append(f.removed, subjectID)
	return nil
}

func newTestService(t *testing.T, repo *fakeRepo, provider *fakeProvider, status *fakeStatus) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Repo:     repo,
		Provider: provider,
		Status:   status,
		Logger:   logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Now:      func() time.Time { return testNow },
	})
	if err != nil {
		t.Fatalf("NewService returned error: %v", err)
	}
	return svc
}

func activeMembership() *models.Membership {
	return &models.Membership{
		ID:                uuid.New(),
		Tier:              enums.MembershipTierPro,
		CheckoutSessionID: "cs_test_active",
		StartsAt:          testNow.Add(-30 * 24 * time.Hour),
		EndsAt:            testNow.Add(335 * 24 * time.Hour),
	}
}

func TestCancelRenewalSuccess(t *testing.T) {
	repo := &fakeRepo{membership: activeMembership(), userIDs: []string{"U1"}}
	provider := &fakeProvider{session: &stripe.CheckoutSession{
		Subscription: &stripe.Subscription{ID: "sub_1"},
	}}
	status := &fakeStatus{}
	svc := newTestService(t, repo, provider, status)

	if err := svc.CancelRenewal(context.Background(), repo.membership.ID); err != nil {
		t.Fatalf("CancelRenewal returned error: %v", err)
	}

	if repo.updated == nil {
		t.Fatal("expected membership to be persisted")
	}
	if repo.updated.CancelledAt == nil || !repo.updated.CancelledAt.Equal(testNow) {
		t.Fatalf("expected cancelled_at = %v, got %v", testNow, repo.updated.CancelledAt)
	}
	if !repo.updated.RenewalCancelled {
		t.Fatal("expected renewal_cancelled to be set")
	}
	if len(provider.cancelled) != 1 || provider.cancelled[0] != "sub_1" {
		t.Fatalf("expected upstream subscription cancel, got %v", provider.cancelled)
	}
	if len(status.removed) != 1 || status.removed[0] != "U1" {
		t.Fatalf("expected status removal for U1, got %v", status.removed)
	}
}

func TestCancelRenewalAlreadyCancelled(t *testing.T) {
	m := activeMembership()
	cancelled := testNow.Add(-time.Hour)
	m.CancelledAt = &cancelled

	svc := newTestService(t, &fakeRepo{membership: m}, &fakeProvider{}, &fakeStatus{})

	err := svc.CancelRenewal(context.Background(), m.ID)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestCancelRenewalAlreadyExpired(t *testing.T) {
	m := activeMembership()
	m.EndsAt = testNow.Add(-time.Hour)

	svc := newTestService(t, &fakeRepo{membership: m}, &fakeProvider{}, &fakeStatus{})

	err := svc.CancelRenewal(context.Background(), m.ID)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestCancelRenewalNotFound(t *testing.T) {
	svc := newTestService(t, &fakeRepo{}, &fakeProvider{}, &fakeStatus{})

	err := svc.CancelRenewal(context.Background(), uuid.New())
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCancelRenewalUpstreamFailureIsNonFatal(t *testing.T) {
	repo := &fakeRepo{membership: activeMembership()}
	provider := &fakeProvider{sessionErr: errors.New("stripe down")}
	svc := newTestService(t, repo, provider, &fakeStatus{})

	if err := svc.CancelRenewal(context.Background(), repo.membership.ID); err != nil {
		t.Fatalf("expected success despite upstream failure, got %v", err)
	}
	if repo.updated == nil || !repo.updated.RenewalCancelled {
		t.Fatal("expected local cancellation to proceed")
	}
}

func TestDeleteActiveUncancelledRejected(t *testing.T) {
	repo := &fakeRepo{membership: activeMembership()}
	svc := newTestService(t, repo, &fakeProvider{}, &fakeStatus{})

	err := svc.Delete(context.Background(), repo.membership.ID, enums.SubjectTypeUser, "U1")
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
	if repo.unlinkCalls != 0 {
		t.Fatal("expected no unlink for an active membership")
	}
}

func TestDeleteMissingRowIsIdempotent(t *testing.T) {
	repo := &fakeRepo{}
	svc := newTestService(t, repo, &fakeProvider{}, &fakeStatus{})

	if err := svc.Delete(context.Background(), uuid.New(), enums.SubjectTypeUser, "U1"); err != nil {
		t.Fatalf("expected idempotent success, got %v", err)
	}
	if repo.unlinkCalls != 1 {
		t.Fatalf("expected link removal, got %d calls", repo.unlinkCalls)
	}
	if repo.deleteCalls != 0 {
		t.Fatal("expected no row delete for missing membership")
	}
}

func TestDeleteSharedRowRetained(t *testing.T) {
	m := activeMembership()
	m.EndsAt = testNow.Add(-time.Hour)
	repo := &fakeRepo{membership: m, linkCount: 2}
	status := &fakeStatus{}
	svc := newTestService(t, repo, &fakeProvider{}, status)

	if err := svc.Delete(context.Background(), m.ID, enums.SubjectTypeAssociation, "A1"); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if repo.deleteCalls != 0 {
		t.Fatal("expected shared row to be retained")
	}
	if len(status.removed) != 0 {
		t.Fatal("expected no status removal while row is shared")
	}
}

func TestDeleteLastLinkRemovesRow(t *testing.T) {
	m := activeMembership()
	cancelled := testNow.Add(-time.Hour)
	m.CancelledAt = &cancelled
	repo := &fakeRepo{membership: m, linkCount: 0}
	status := &fakeStatus{}
	svc := newTestService(t, repo, &fakeProvider{}, status)

	if err := svc.Delete(context.Background(), m.ID, enums.SubjectTypeUser, "U1"); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if repo.deleteCalls != 1 || repo.deletedID != m.ID {
		t.Fatal("expected membership row to be deleted")
	}
	if len(status.removed) != 1 || status.removed[0] != "U1" {
		t.Fatalf("expected status removal for U1, got %v", status.removed)
	}
}

func TestStatusForSubject(t *testing.T) {
	active := *activeMembership()
	expired := *activeMembership()
	expired.EndsAt = testNow.Add(-time.Hour)

	repo := &fakeRepo{subjectRows: []models.Membership{active, expired}}
	svc := newTestService(t, repo, &fakeProvider{}, &fakeStatus{})

	statuses, err := svc.StatusForSubject(context.Background(), enums.SubjectTypeUser, "U1")
	if err != nil {
		t.Fatalf("StatusForSubject returned error: %v", err)
	}
	if len(statuses) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(statuses))
	}
	if !statuses[0].Active {
		t.Fatal("expected first row active")
	}
	if statuses[1].Active {
		t.Fatal("expected second row inactive")
	}
}

func TestStatusForSubjectRejectsInvalidSubject(t *testing.T) {
	svc := newTestService(t, &fakeRepo{}, &fakeProvider{}, &fakeStatus{})

	_, err := svc.StatusForSubject(context.Background(), enums.SubjectType("robot"), "U1")
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

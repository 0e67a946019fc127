package jobs

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/google/uuid"

	"github.com/adhera-labs/adhera-backend/internal/proof"
	"github.com/adhera-labs/adhera-backend/pkg/db/models"
	"github.com/adhera-labs/adhera-backend/pkg/enums"
	"github.com/adhera-labs/adhera-backend/pkg/logger"
)

type fakePendingReader struct {
	memberships []models.Membership
	trainings   []models.TrainingPurchase
	listErr     error
}

func (f *fakePendingReader) ListMembershipsMissingProof(_ context.Context, _, _ int) ([]models.Membership, error) {
	return f.memberships, f.listErr
}

func (f *fakePendingReader) ListTrainingsMissingProof(_ context.Context, _, _ int) ([]models.TrainingPurchase, error) {
	return f.trainings, f.listErr
}

type fakeResolver struct {
	resolutions map[uuid.UUID]*proof.Resolution
	errs        map[uuid.UUID]error
	calls       []uuid.UUID
}

func (f *fakeResolver) ResolveForEntitlement(_ context.Context, _ enums.TransactionKind, id uuid.UUID) (*proof.Resolution, error) {
	f.calls = append(f.calls, id)
	if err := f.errs[id]; err != nil {
		return nil, err
	}
	if res := f.resolutions[id]; res != nil {
		return res, nil
	}
	return &proof.Resolution{}, nil
}

func newBackfillJob(t *testing.T, reader *fakePendingReader, resolver *fakeResolver) Job {
	t.Helper()
	job, err := NewProofBackfillJob(ProofBackfillJobParams{
		Logger:   logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Repo:     reader,
		Resolver: resolver,
	})
	if err != nil {
		t.Fatalf("NewProofBackfillJob: %v", err)
	}
	return job
}

func TestProofBackfillResolvesBothKinds(t *testing.T) {
	membershipID := uuid.New()
	trainingID := uuid.New()
	reader := &fakePendingReader{
		memberships: []models.Membership{{ID: membershipID, CheckoutSessionID: "cs_m"}},
		trainings:   []models.TrainingPurchase{{ID: trainingID, CheckoutSessionID: "cs_t"}},
	}
	resolver := &fakeResolver{
		resolutions: map[uuid.UUID]*proof.Resolution{
			membershipID: {Proof: &proof.Proof{Ref: "in_1", Kind: enums.ProofKindInvoice}},
			trainingID:   {Proof: &proof.Proof{Ref: "ch_1", Kind: enums.ProofKindReceipt}},
		},
	}
	job := newBackfillJob(t, reader, resolver)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(resolver.calls) != 2 {
		t.Fatalf("expected 2 resolutions, got %d", len(resolver.calls))
	}
}

func TestProofBackfillAggregatesErrorsAndContinues(t *testing.T) {
	failingID := uuid.New()
	okID := uuid.New()
	reader := &fakePendingReader{
		memberships: []models.Membership{
			{ID: failingID, CheckoutSessionID: "cs_fail"},
			{ID: okID, CheckoutSessionID: "cs_ok"},
		},
	}
	resolver := &fakeResolver{
		errs: map[uuid.UUID]error{failingID: errors.New("provider down")},
		resolutions: map[uuid.UUID]*proof.Resolution{
			okID: {Proof: &proof.Proof{Ref: "in_ok", Kind: enums.ProofKindInvoice}},
		},
	}
	job := newBackfillJob(t, reader, resolver)

	err := job.Run(context.Background())
	if err == nil {
		t.Fatal("expected aggregated error")
	}
	if len(resolver.calls) != 2 {
		t.Fatalf("expected both rows attempted, got %d", len(resolver.calls))
	}
}

func TestProofBackfillExhaustionIsNotAnError(t *testing.T) {
	exhaustedID := uuid.New()
	reader := &fakePendingReader{
		memberships: []models.Membership{{ID: exhaustedID, CheckoutSessionID: "cs_x"}},
	}
	resolver := &fakeResolver{
		resolutions: map[uuid.UUID]*proof.Resolution{
			exhaustedID: {Raw: &proof.RawPaymentInfo{SessionID: "cs_x"}, Exhausted: true},
		},
	}
	job := newBackfillJob(t, reader, resolver)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("exhaustion must not fail the job, got %v", err)
	}
}

func TestProofBackfillListFailureFailsFast(t *testing.T) {
	reader := &fakePendingReader{listErr: errors.New("db gone")}
	resolver := &fakeResolver{}
	job := newBackfillJob(t, reader, resolver)

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected list error to surface")
	}
	if len(resolver.calls) != 0 {
		t.Fatal("expected no resolution attempts after list failure")
	}
}

package checkout

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stripe/stripe-go/v84"

	"github.com/adhera-labs/adhera-backend/internal/catalog"
	"github.com/adhera-labs/adhera-backend/internal/reconcile"
	"github.com/adhera-labs/adhera-backend/pkg/enums"
	pkgerrors "github.com/adhera-labs/adhera-backend/pkg/errors"
	"github.com/adhera-labs/adhera-backend/pkg/logger"
)

type fakeProvider struct {
	lastParams *stripe.CheckoutSessionParams
	err        error
}

func (f *fakeProvider) CreateCheckoutSession(_ context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	f.lastParams = params
	if f.err != nil {
		return nil, f.err
	}
	return &stripe.CheckoutSession{ID: "cs_new", URL: "https://pay.example/cs_new"}, nil
}

type fakeDirectory struct {
	member bool
	err    error
}

func (f *fakeDirectory) HasActiveMemberStatus(context.Context, string) (bool, error) {
	return f.member, f.err
}

func newTestService(t *testing.T, provider *fakeProvider, directory *fakeDirectory) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Provider:  provider,
		Directory: directory,
		Logger:    logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestStartMembershipStampsMetadata(t *testing.T) {
	provider := &fakeProvider{}
	svc := newTestService(t, provider, &fakeDirectory{})

	session, err := svc.StartMembership(context.Background(), MembershipInput{
		PriceID: catalog.PriceMembershipPro,
		UserID:  "U1",
	})
	if err != nil {
		t.Fatalf("StartMembership: %v", err)
	}
	if session.URL != "https://pay.example/cs_new" {
		t.Fatalf("unexpected session url: %s", session.URL)
	}
	if session.AmountCents != 19900 {
		t.Fatalf("expected base price, got %d", session.AmountCents)
	}

	meta, err := reconcile.ParseMetadata(provider.lastParams.Metadata)
	if err != nil {
		t.Fatalf("stamped metadata must round-trip: %v", err)
	}
	if meta.Kind != enums.TransactionKindMembership || meta.UserID != "U1" {
		t.Fatalf("unexpected metadata: %+v", meta)
	}
	if meta.TargetStatus != enums.MemberStatusPro {
		t.Fatalf("expected tier-derived status, got %s", meta.TargetStatus)
	}
}

func TestStartMembershipRejectsAmbiguousSubject(t *testing.T) {
	svc := newTestService(t, &fakeProvider{}, &fakeDirectory{})

	_, err := svc.StartMembership(context.Background(), MembershipInput{
		PriceID:       catalog.PriceMembershipAssociation,
		UserID:        "U1",
		AssociationID: "A1",
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestStartTrainingAppliesMemberDiscount(t *testing.T) {
	provider := &fakeProvider{}
	svc := newTestService(t, provider, &fakeDirectory{member: true})

	session, err := svc.StartTraining(context.Background(), TrainingInput{
		PriceID:    catalog.PriceTrainingPSSM,
		UserID:     "U1",
		TrainingID: "T1",
	})
	if err != nil {
		t.Fatalf("StartTraining: %v", err)
	}
	if session.AmountCents != 21500 {
		t.Fatalf("expected discounted price, got %d", session.AmountCents)
	}
	if !session.MemberPriced {
		t.Fatal("expected member pricing flag")
	}

	meta, err := reconcile.ParseMetadata(provider.lastParams.Metadata)
	if err != nil {
		t.Fatalf("stamped metadata must round-trip: %v", err)
	}
	if meta.OriginalCents != 25000 || meta.DiscountedCents != 21500 || !meta.IsMember {
		t.Fatalf("unexpected pricing metadata: %+v", meta)
	}
	if meta.TrainingID != "T1" {
		t.Fatalf("unexpected training id: %s", meta.TrainingID)
	}
}

func TestStartTrainingDirectoryOutageChargesBasePrice(t *testing.T) {
	provider := &fakeProvider{}
	svc := newTestService(t, provider, &fakeDirectory{err: errors.New("directory down")})

	session, err := svc.StartTraining(context.Background(), TrainingInput{
		PriceID:    catalog.PriceTrainingPSSM,
		UserID:     "U1",
		TrainingID: "T1",
	})
	if err != nil {
		t.Fatalf("StartTraining: %v", err)
	}
	if session.AmountCents != 25000 {
		t.Fatalf("expected base price on outage, got %d", session.AmountCents)
	}
	if session.MemberPriced {
		t.Fatal("expected non-member pricing on outage")
	}
}

func TestStartTrainingRejectsMembershipPrice(t *testing.T) {
	svc := newTestService(t, &fakeProvider{}, &fakeDirectory{})

	_, err := svc.StartTraining(context.Background(), TrainingInput{
		PriceID:    catalog.PriceMembershipSimple,
		UserID:     "U1",
		TrainingID: "T1",
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestStartMembershipProviderFailure(t *testing.T) {
	svc := newTestService(t, &fakeProvider{err: errors.New("api down")}, &fakeDirectory{})

	_, err := svc.StartMembership(context.Background(), MembershipInput{
		PriceID: catalog.PriceMembershipSimple,
		UserID:  "U1",
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

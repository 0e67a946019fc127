package proof

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/adhera-labs/adhera-backend/pkg/db/models"
	"github.com/adhera-labs/adhera-backend/pkg/enums"
	pkgerrors "github.com/adhera-labs/adhera-backend/pkg/errors"
	"github.com/adhera-labs/adhera-backend/pkg/logger"
)

type fakeProvider struct {
	session    *stripe.CheckoutSession
	sessionErr error

	invoices    []*stripe.Invoice
	invoicesErr error

	intent    *stripe.PaymentIntent
	intentErr error

	charge    *stripe.Charge
	chargeErr error

	customer    *stripe.Customer
	customerErr error

	invoiceItemErr error
	createInvErr   error
	finalizeErr    error
	payErr         error

	listCalls      int
	intentCalls    int
	customerCalls  int
	synthItemCalls int

	invoiceMetadata map[string]string
}

func (f *fakeProvider) GetCheckoutSession(_ context.Context, _ string) (*stripe.CheckoutSession, error) {
	return f.session, f.sessionErr
}

func (f *fakeProvider) ListInvoicesByCustomer(_ context.Context, _ string, _ int64) ([]*stripe.Invoice, error) {
	f.listCalls++
	return f.invoices, f.invoicesErr
}

func (f *fakeProvider) GetPaymentIntent(_ context.Context, _ string) (*stripe.PaymentIntent, error) {
	f.intentCalls++
	return f.intent, f.intentErr
}

func (f *fakeProvider) GetCharge(_ context.Context, _ string) (*stripe.Charge, error) {
	return f.charge, f.chargeErr
}

func (f *fakeProvider) CreateCustomer(_ context.Context, _, _ string) (*stripe.Customer, error) {
	f.customerCalls++
	return f.customer, f.customerErr
}

func (f *fakeProvider) CreateInvoiceItem(_ context.Context, _, _, _ string, _ int64) (*stripe.InvoiceItem, error) {
	f.synthItemCalls++
	if f.invoiceItemErr != nil {
		return nil, f.invoiceItemErr
	}
	return &stripe.InvoiceItem{ID: "ii_1"}, nil
}

func (f *fakeProvider) CreateInvoice(_ context.Context, _ string, metadata map[string]string) (*stripe.Invoice, error) {
	f.invoiceMetadata = metadata
	if f.createInvErr != nil {
		return nil, f.createInvErr
	}
	return &stripe.Invoice{ID: "in_draft", Metadata: metadata}, nil
}

func (f *fakeProvider) FinalizeInvoice(_ context.Context, id string) (*stripe.Invoice, error) {
	if f.finalizeErr != nil {
		return nil, f.finalizeErr
	}
	return &stripe.Invoice{ID: id}, nil
}

func (f *fakeProvider) PayInvoiceOutOfBand(_ context.Context, id string) (*stripe.Invoice, error) {
	if f.payErr != nil {
		return nil, f.payErr
	}
	return &stripe.Invoice{ID: id, HostedInvoiceURL: "https://invoices.example/" + id}, nil
}

type fakeRepo struct {
	membership *models.Membership
	training   *models.TrainingPurchase

	storedRef     string
	storedKind    enums.ProofKind
	storedURL     string
	attemptCalls  int
	lastExhausted bool
	storeProofErr error
}

func (f *fakeRepo) FindMembershipByID(_ context.Context, _ uuid.UUID) (*models.Membership, error) {
	return f.membership, nil
}

func (f *fakeRepo) FindTrainingByID(_ context.Context, _ uuid.UUID) (*models.TrainingPurchase, error) {
	return f.training, nil
}

func (f *fakeRepo) FindMembershipBySession(_ context.Context, sessionID string) (*models.Membership, error) {
	if f.membership != nil && f.membership.CheckoutSessionID == sessionID {
		return f.membership, nil
	}
	return nil, nil
}

func (f *fakeRepo) FindTrainingByCheckoutSession(_ context.Context, sessionID string) (*models.TrainingPurchase, error) {
	if f.training != nil && f.training.CheckoutSessionID == sessionID {
		return f.training, nil
	}
	return nil, nil
}

func (f *fakeRepo) SetMembershipProof(_ context.Context, _ uuid.UUID, ref string, kind enums.ProofKind, url string) error {
	if f.storeProofErr != nil {
		return f.storeProofErr
	}
	f.storedRef, f.storedKind, f.storedURL = ref, kind, url
	return nil
}

func (f *fakeRepo) SetTrainingProof(_ context.Context, _ uuid.UUID, ref string, kind enums.ProofKind, url string) error {
	return f.SetMembershipProof(context.Background(), uuid.Nil, ref, kind, url)
}

func (f *fakeRepo) RecordMembershipProofAttempt(_ context.Context, _ uuid.UUID, exhausted bool) error {
	f.attemptCalls++
	f.lastExhausted = exhausted
	return nil
}

func (f *fakeRepo) RecordTrainingProofAttempt(_ context.Context, _ uuid.UUID, exhausted bool) error {
	return f.RecordMembershipProofAttempt(context.Background(), uuid.Nil, exhausted)
}

func newTestResolver(t *testing.T, provider *fakeProvider, repo *fakeRepo, maxAttempts int) *Resolver {
	t.Helper()
	r, err := NewResolver(ResolverParams{
		Provider:    provider,
		Repo:        repo,
		Logger:      logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		MaxAttempts: maxAttempts,
	})
	if err != nil {
		t.Fatalf("NewResolver returned error: %v", err)
	}
	return r
}

func pendingMembership() *models.Membership {
	return &models.Membership{ID: uuid.New(), CheckoutSessionID: "cs_1"}
}

func TestResolveEmbeddedInvoiceShortCircuits(t *testing.T) {
	provider := &fakeProvider{
		session: &stripe.CheckoutSession{
			ID:       "cs_1",
			Invoice:  &stripe.Invoice{ID: "in_1", HostedInvoiceURL: "https://invoices.example/in_1"},
			Customer: &stripe.Customer{ID: "cus_1"},
		},
	}
	repo := &fakeRepo{membership: pendingMembership()}
	r := newTestResolver(t, provider, repo, 10)

	res, err := r.ResolveForEntitlement(context.Background(), enums.TransactionKindMembership, repo.membership.ID)
	if err != nil {
		t.Fatalf("ResolveForEntitlement returned error: %v", err)
	}
	if res.Proof == nil || res.Proof.Ref != "in_1" || res.Proof.Kind != enums.ProofKindInvoice {
		t.Fatalf("unexpected proof: %+v", res.Proof)
	}
	if provider.listCalls != 0 || provider.intentCalls != 0 {
		t.Fatal("expected no further provider calls after embedded invoice")
	}
	if repo.storedRef != "in_1" {
		t.Fatalf("expected proof persisted, got %q", repo.storedRef)
	}
}

func TestResolveMatchesListedInvoice(t *testing.T) {
	provider := &fakeProvider{
		session: &stripe.CheckoutSession{
			ID:       "cs_1",
			Customer: &stripe.Customer{ID: "cus_1"},
		},
		invoices: []*stripe.Invoice{
			{ID: "in_other", Metadata: map[string]string{"checkout_session_id": "cs_other"}},
			{ID: "in_match", Metadata: map[string]string{"checkout_session_id": "cs_1"}, HostedInvoiceURL: "https://invoices.example/in_match"},
		},
	}
	repo := &fakeRepo{membership: pendingMembership()}
	r := newTestResolver(t, provider, repo, 10)

	res, err := r.ResolveForEntitlement(context.Background(), enums.TransactionKindMembership, repo.membership.ID)
	if err != nil {
		t.Fatalf("ResolveForEntitlement returned error: %v", err)
	}
	if res.Proof == nil || res.Proof.Ref != "in_match" {
		t.Fatalf("unexpected proof: %+v", res.Proof)
	}
}

func TestResolveSynthesizesInvoiceForExistingCustomer(t *testing.T) {
	provider := &fakeProvider{
		session: &stripe.CheckoutSession{
			ID:          "cs_1",
			Customer:    &stripe.Customer{ID: "cus_1"},
			AmountTotal: 21500,
			Currency:    "eur",
		},
	}
	repo := &fakeRepo{membership: pendingMembership()}
	r := newTestResolver(t, provider, repo, 10)

	res, err := r.ResolveForEntitlement(context.Background(), enums.TransactionKindMembership, repo.membership.ID)
	if err != nil {
		t.Fatalf("ResolveForEntitlement returned error: %v", err)
	}
	if res.Proof == nil || res.Proof.Kind != enums.ProofKindInvoice || res.Proof.Ref != "in_draft" {
		t.Fatalf("unexpected proof: %+v", res.Proof)
	}
	if provider.synthItemCalls != 1 {
		t.Fatalf("expected 1 invoice item, got %d", provider.synthItemCalls)
	}
	if provider.customerCalls != 0 {
		t.Fatal("expected no customer creation when one exists")
	}
}

func TestResolveCreatesCustomerFromBillingEmail(t *testing.T) {
	provider := &fakeProvider{
		session: &stripe.CheckoutSession{
			ID:              "cs_1",
			CustomerDetails: &stripe.CheckoutSessionCustomerDetails{Email: "buyer@example.com"},
			AmountTotal:     9900,
			Currency:        "eur",
		},
		customer: &stripe.Customer{ID: "cus_new"},
	}
	repo := &fakeRepo{membership: pendingMembership()}
	r := newTestResolver(t, provider, repo, 10)

	res, err := r.ResolveForEntitlement(context.Background(), enums.TransactionKindMembership, repo.membership.ID)
	if err != nil {
		t.Fatalf("ResolveForEntitlement returned error: %v", err)
	}
	if res.Proof == nil || res.Proof.Kind != enums.ProofKindInvoice {
		t.Fatalf("expected synthesized invoice, got %+v", res.Proof)
	}
	if provider.customerCalls != 1 {
		t.Fatalf("expected customer creation, got %d calls", provider.customerCalls)
	}
}

func TestResolveSynthesisStampsSessionMetadata(t *testing.T) {
	provider := &fakeProvider{
		session: &stripe.CheckoutSession{
			ID:            "cs_1",
			Customer:      &stripe.Customer{ID: "cus_1"},
			PaymentIntent: &stripe.PaymentIntent{ID: "pi_1"},
			AmountTotal:   21500,
			Currency:      "eur",
		},
		intent: &stripe.PaymentIntent{ID: "pi_1"},
	}
	repo := &fakeRepo{membership: pendingMembership(), storeProofErr: errors.New("db down")}
	r := newTestResolver(t, provider, repo, 10)

	if _, err := r.ResolveForEntitlement(context.Background(), enums.TransactionKindMembership, repo.membership.ID); err == nil {
		t.Fatal("expected the store failure to surface")
	}
	if provider.invoiceMetadata["checkout_session_id"] != "cs_1" {
		t.Fatalf("expected session id on synthesized invoice, got %v", provider.invoiceMetadata)
	}
	if provider.invoiceMetadata["payment_intent_id"] != "pi_1" {
		t.Fatalf("expected payment intent id on synthesized invoice, got %v", provider.invoiceMetadata)
	}

	// A re-run must find the stamped invoice in the listing instead of
	// synthesizing a duplicate.
	repo.storeProofErr = nil
	provider.invoices = []*stripe.Invoice{
		{ID: "in_draft", Metadata: provider.invoiceMetadata, HostedInvoiceURL: "https://invoices.example/in_draft"},
	}

	res, err := r.ResolveForEntitlement(context.Background(), enums.TransactionKindMembership, repo.membership.ID)
	if err != nil {
		t.Fatalf("ResolveForEntitlement returned error: %v", err)
	}
	if res.Proof == nil || res.Proof.Ref != "in_draft" {
		t.Fatalf("expected the previously synthesized invoice, got %+v", res.Proof)
	}
	if provider.synthItemCalls != 1 {
		t.Fatalf("expected no second synthesis, got %d item calls", provider.synthItemCalls)
	}
}

func TestResolveFallsBackToReceiptWithoutSynthesis(t *testing.T) {
	provider := &fakeProvider{
		session: &stripe.CheckoutSession{
			ID:            "cs_1",
			PaymentIntent: &stripe.PaymentIntent{ID: "pi_1"},
		},
		intent: &stripe.PaymentIntent{
			ID:           "pi_1",
			LatestCharge: &stripe.Charge{ID: "ch_1", ReceiptURL: "https://receipts.example/ch_1"},
		},
	}
	repo := &fakeRepo{training: &models.TrainingPurchase{ID: uuid.New(), CheckoutSessionID: "cs_1"}}
	r := newTestResolver(t, provider, repo, 10)

	res, err := r.ResolveForEntitlement(context.Background(), enums.TransactionKindTraining, repo.training.ID)
	if err != nil {
		t.Fatalf("ResolveForEntitlement returned error: %v", err)
	}
	if res.Proof == nil || res.Proof.Kind != enums.ProofKindReceipt || res.Proof.Ref != "ch_1" {
		t.Fatalf("expected receipt proof, got %+v", res.Proof)
	}
	if provider.synthItemCalls != 0 || provider.customerCalls != 0 {
		t.Fatal("expected no synthesis without a customer or billing email")
	}
}

func TestResolveStepFailureFallsThrough(t *testing.T) {
	provider := &fakeProvider{
		session: &stripe.CheckoutSession{
			ID:            "cs_1",
			Customer:      &stripe.Customer{ID: "cus_1"},
			PaymentIntent: &stripe.PaymentIntent{ID: "pi_1"},
		},
		invoicesErr:    errors.New("rate limited"),
		invoiceItemErr: errors.New("rate limited"),
		intent: &stripe.PaymentIntent{
			ID:           "pi_1",
			LatestCharge: &stripe.Charge{ID: "ch_1", ReceiptURL: "https://receipts.example/ch_1"},
		},
	}
	repo := &fakeRepo{membership: pendingMembership()}
	r := newTestResolver(t, provider, repo, 10)

	res, err := r.ResolveForEntitlement(context.Background(), enums.TransactionKindMembership, repo.membership.ID)
	if err != nil {
		t.Fatalf("expected chain to fall through, got error: %v", err)
	}
	if res.Proof == nil || res.Proof.Kind != enums.ProofKindReceipt {
		t.Fatalf("expected receipt after earlier steps failed, got %+v", res.Proof)
	}
}

func TestResolveExhaustionIsDegradedSuccess(t *testing.T) {
	provider := &fakeProvider{
		session: &stripe.CheckoutSession{
			ID:          "cs_1",
			AmountTotal: 21500,
			Currency:    "eur",
		},
	}
	membership := pendingMembership()
	membership.ProofAttempts = 9
	repo := &fakeRepo{membership: membership}
	r := newTestResolver(t, provider, repo, 10)

	res, err := r.ResolveForEntitlement(context.Background(), enums.TransactionKindMembership, membership.ID)
	if err != nil {
		t.Fatalf("exhaustion must not be an error, got %v", err)
	}
	if res.Proof != nil {
		t.Fatal("expected no proof")
	}
	if res.Raw == nil || res.Raw.SessionID != "cs_1" || res.Raw.AmountCents != 21500 {
		t.Fatalf("expected raw payment info, got %+v", res.Raw)
	}
	if !res.Exhausted || !repo.lastExhausted {
		t.Fatal("expected attempt cap to mark the row exhausted")
	}
	if repo.attemptCalls != 1 {
		t.Fatalf("expected 1 attempt record, got %d", repo.attemptCalls)
	}
}

func TestResolveIsIdempotentWithStoredProof(t *testing.T) {
	ref := "in_stored"
	kind := enums.ProofKindInvoice
	membership := pendingMembership()
	membership.ProofRef = &ref
	membership.ProofKind = &kind

	provider := &fakeProvider{sessionErr: errors.New("must not be called")}
	repo := &fakeRepo{membership: membership}
	r := newTestResolver(t, provider, repo, 10)

	res, err := r.ResolveForEntitlement(context.Background(), enums.TransactionKindMembership, membership.ID)
	if err != nil {
		t.Fatalf("ResolveForEntitlement returned error: %v", err)
	}
	if res.Proof == nil || res.Proof.Ref != "in_stored" {
		t.Fatalf("expected stored proof, got %+v", res.Proof)
	}
}

func TestResolveBySessionUnknown(t *testing.T) {
	r := newTestResolver(t, &fakeProvider{}, &fakeRepo{}, 10)

	_, err := r.ResolveBySession(context.Background(), "cs_missing")
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

package proof

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/adhera-labs/adhera-backend/pkg/db/models"
	"github.com/adhera-labs/adhera-backend/pkg/enums"
	pkgerrors "github.com/adhera-labs/adhera-backend/pkg/errors"
	"github.com/adhera-labs/adhera-backend/pkg/logger"
)

// providerClient is the subset of Stripe operations the resolver needs.
type providerClient interface {
	GetCheckoutSession(ctx context.Context, id string) (*stripe.CheckoutSession, error)
	ListInvoicesByCustomer(ctx context.Context, customerID string, limit int64) ([]*stripe.Invoice, error)
	GetPaymentIntent(ctx context.Context, id string) (*stripe.PaymentIntent, error)
	GetCharge(ctx context.Context, id string) (*stripe.Charge, error)
	CreateCustomer(ctx context.Context, email, name string) (*stripe.Customer, error)
	CreateInvoiceItem(ctx context.Context, customerID, description, currency string, amountCents int64) (*stripe.InvoiceItem, error)
	CreateInvoice(ctx context.Context, customerID string, metadata map[string]string) (*stripe.Invoice, error)
	FinalizeInvoice(ctx context.Context, id string) (*stripe.Invoice, error)
	PayInvoiceOutOfBand(ctx context.Context, id string) (*stripe.Invoice, error)
}

type repository interface {
	FindMembershipByID(ctx context.Context, id uuid.UUID) (*models.Membership, error)
	FindTrainingByID(ctx context.Context, id uuid.UUID) (*models.TrainingPurchase, error)
	FindMembershipBySession(ctx context.Context, sessionID string) (*models.Membership, error)
	FindTrainingByCheckoutSession(ctx context.Context, sessionID string) (*models.TrainingPurchase, error)
	SetMembershipProof(ctx context.Context, id uuid.UUID, ref string, kind enums.ProofKind, url string) error
	SetTrainingProof(ctx context.Context, id uuid.UUID, ref string, kind enums.ProofKind, url string) error
	RecordMembershipProofAttempt(ctx context.Context, id uuid.UUID, exhausted bool) error
	RecordTrainingProofAttempt(ctx context.Context, id uuid.UUID, exhausted bool) error
}

// Proof is a resolved payment document reference.
type Proof struct {
	Ref  string          `json:"ref"`
	Kind enums.ProofKind `json:"kind"`
	URL  string          `json:"url,omitempty"`
}

// RawPaymentInfo is the degraded view exposed when the chain is exhausted.
type RawPaymentInfo struct {
	SessionID       string `json:"session_id"`
	PaymentIntentID string `json:"payment_intent_id,omitempty"`
	AmountCents     int64  `json:"amount_cents"`
	Currency        string `json:"currency"`
	Suggestion      string `json:"suggestion"`
}

// Resolution is the outcome of one resolver run. Either Proof is set, or
// Raw carries what a human needs for manual remediation.
type Resolution struct {
	Proof     *Proof          `json:"proof,omitempty"`
	Raw       *RawPaymentInfo `json:"raw_payment_info,omitempty"`
	Exhausted bool            `json:"exhausted"`
}

// ResolverParams groups dependencies for the proof resolver.
type ResolverParams struct {
	Provider    providerClient
	Repo        repository
	Logger      *logger.Logger
	MaxAttempts int
}

// Resolver walks the ordered fallback chain that finds or synthesizes a
// proof-of-payment document for an entitlement. Every provider call inside
// the chain is allowed to fail; a failed step simply yields no result.
type Resolver struct {
	provider    providerClient
	repo        repository
	logg        *logger.Logger
	maxAttempts int
}

// NewResolver builds the resolver with the required dependencies.
func NewResolver(params ResolverParams) (*Resolver, error) {
	if params.Provider == nil {
		return nil, fmt.Errorf("provider client required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("repository required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	maxAttempts := params.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 10
	}
	return &Resolver{
		provider:    params.Provider,
		repo:        params.Repo,
		logg:        params.Logger,
		maxAttempts: maxAttempts,
	}, nil
}

// ResolveForEntitlement resolves (or re-resolves) the proof document for one
// entitlement. The operation is idempotent: an already-attached proof is
// returned as-is. Exhaustion is a degraded success, not an error.
func (r *Resolver) ResolveForEntitlement(ctx context.Context, kind enums.TransactionKind, id uuid.UUID) (*Resolution, error) {
	target, err := r.loadTarget(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "entitlement not found")
	}

	if target.proofRef != "" {
		return &Resolution{Proof: &Proof{Ref: target.proofRef, Kind: target.proofKind, URL: target.proofURL}}, nil
	}

	ctx = r.logg.WithSessionID(ctx, target.sessionID)

	session, err := r.provider.GetCheckoutSession(ctx, target.sessionID)
	if err != nil {
		r.recordAttempt(ctx, kind, id, target.attempts)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "retrieve checkout session for proof")
	}

	if proof := r.resolveChain(ctx, session); proof != nil {
		if err := r.storeProof(ctx, kind, id, proof); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist proof reference")
		}
		return &Resolution{Proof: proof}, nil
	}

	exhausted := r.recordAttempt(ctx, kind, id, target.attempts)
	r.logg.Warn(ctx, "proof chain exhausted without a document")
	return &Resolution{Raw: rawInfo(session), Exhausted: exhausted}, nil
}

// ResolveBySession serves the on-demand read endpoint: it locates the
// entitlement behind a session and runs the same idempotent resolution.
func (r *Resolver) ResolveBySession(ctx context.Context, sessionID string) (*Resolution, error) {
	if sessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}

	membership, err := r.repo.FindMembershipBySession(ctx, sessionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup membership")
	}
	if membership != nil {
		return r.ResolveForEntitlement(ctx, enums.TransactionKindMembership, membership.ID)
	}

	training, err := r.repo.FindTrainingByCheckoutSession(ctx, sessionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup training purchase")
	}
	if training != nil {
		return r.ResolveForEntitlement(ctx, enums.TransactionKindTraining, training.ID)
	}

	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no entitlement for session")
}

// resolveChain walks the fallback chain; first success wins. Per-step
// provider failures are logged and fall through to the next step.
func (r *Resolver) resolveChain(ctx context.Context, session *stripe.CheckoutSession) *Proof {
	// 1. The session already carries an invoice.
	if session.Invoice != nil && session.Invoice.ID != "" {
		return &Proof{Ref: session.Invoice.ID, Kind: enums.ProofKindInvoice, URL: session.Invoice.HostedInvoiceURL}
	}

	// 2. Search the customer's invoices for one matching this payment.
	if session.Customer != nil && session.Customer.ID != "" {
		invoices, err := r.provider.ListInvoicesByCustomer(ctx, session.Customer.ID, 100)
		if err != nil {
			r.logg.Warn(ctx, "invoice list lookup failed; continuing chain")
		} else {
			for _, inv := range invoices {
				if invoiceMatchesSession(inv, session) {
					return &Proof{Ref: inv.ID, Kind: enums.ProofKindInvoice, URL: inv.HostedInvoiceURL}
				}
			}
		}
	}

	charge := r.fetchCharge(ctx, session)

	// 3/4. Synthesize an invoice, creating a customer first if a billing
	// email is recoverable.
	customerID := ""
	if session.Customer != nil {
		customerID = session.Customer.ID
	}
	if customerID == "" {
		if email := billingEmail(session, charge); email != "" {
			customer, err := r.provider.CreateCustomer(ctx, email, "")
			if err != nil {
				r.logg.Warn(ctx, "customer creation failed; continuing chain")
			} else {
				customerID = customer.ID
			}
		}
	}
	if customerID != "" {
		if proof := r.synthesizeInvoice(ctx, customerID, session); proof != nil {
			return proof
		}
	}

	// 5. A charge-level receipt is a lower-fidelity proof.
	if charge != nil && charge.ReceiptURL != "" {
		return &Proof{Ref: charge.ID, Kind: enums.ProofKindReceipt, URL: charge.ReceiptURL}
	}

	// 6. Exhausted.
	return nil
}

func (r *Resolver) synthesizeInvoice(ctx context.Context, customerID string, session *stripe.CheckoutSession) *Proof {
	description := "Payment received via checkout " + session.ID
	if _, err := r.provider.CreateInvoiceItem(ctx, customerID, description, string(session.Currency), session.AmountTotal); err != nil {
		r.logg.Warn(ctx, "invoice item creation failed; continuing chain")
		return nil
	}

	// Stamped metadata lets invoiceMatchesSession find this invoice again if
	// persisting the reference fails and the chain re-runs.
	metadata := map[string]string{"checkout_session_id": session.ID}
	if session.PaymentIntent != nil && session.PaymentIntent.ID != "" {
		metadata["payment_intent_id"] = session.PaymentIntent.ID
	}
	draft, err := r.provider.CreateInvoice(ctx, customerID, metadata)
	if err != nil {
		r.logg.Warn(ctx, "invoice creation failed; continuing chain")
		return nil
	}

	finalized, err := r.provider.FinalizeInvoice(ctx, draft.ID)
	if err != nil {
		r.logg.Warn(ctx, "invoice finalization failed; continuing chain")
		return nil
	}

	paid, err := r.provider.PayInvoiceOutOfBand(ctx, finalized.ID)
	if err != nil {
		r.logg.Warn(ctx, "marking invoice paid out-of-band failed; continuing chain")
		return nil
	}

	return &Proof{Ref: paid.ID, Kind: enums.ProofKindInvoice, URL: paid.HostedInvoiceURL}
}

func (r *Resolver) fetchCharge(ctx context.Context, session *stripe.CheckoutSession) *stripe.Charge {
	if session.PaymentIntent == nil || session.PaymentIntent.ID == "" {
		return nil
	}
	intent, err := r.provider.GetPaymentIntent(ctx, session.PaymentIntent.ID)
	if err != nil {
		r.logg.Warn(ctx, "payment intent lookup failed; continuing chain")
		return nil
	}
	if intent.LatestCharge == nil || intent.LatestCharge.ID == "" {
		return nil
	}
	if intent.LatestCharge.ReceiptURL != "" {
		return intent.LatestCharge
	}
	charge, err := r.provider.GetCharge(ctx, intent.LatestCharge.ID)
	if err != nil {
		r.logg.Warn(ctx, "charge lookup failed; continuing chain")
		return nil
	}
	return charge
}

// recordAttempt bumps the attempt counter and reports whether the row just
// hit the terminal attempt cap.
func (r *Resolver) recordAttempt(ctx context.Context, kind enums.TransactionKind, id uuid.UUID, priorAttempts int) bool {
	exhausted := priorAttempts+1 >= r.maxAttempts
	var err error
	switch kind {
	case enums.TransactionKindTraining:
		err = r.repo.RecordTrainingProofAttempt(ctx, id, exhausted)
	default:
		err = r.repo.RecordMembershipProofAttempt(ctx, id, exhausted)
	}
	if err != nil {
		r.logg.Warn(ctx, "recording proof attempt failed")
	}
	return exhausted
}

func (r *Resolver) storeProof(ctx context.Context, kind enums.TransactionKind, id uuid.UUID, proof *Proof) error {
	switch kind {
	case enums.TransactionKindTraining:
		return r.repo.SetTrainingProof(ctx, id, proof.Ref, proof.Kind, proof.URL)
	default:
		return r.repo.SetMembershipProof(ctx, id, proof.Ref, proof.Kind, proof.URL)
	}
}

type targetRow struct {
	sessionID string
	proofRef  string
	proofKind enums.ProofKind
	proofURL  string
	attempts  int
}

func (r *Resolver) loadTarget(ctx context.Context, kind enums.TransactionKind, id uuid.UUID) (*targetRow, error) {
	switch kind {
	case enums.TransactionKindTraining:
		row, err := r.repo.FindTrainingByID(ctx, id)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup training purchase")
		}
		if row == nil {
			return nil, nil
		}
		return newTargetRow(row.CheckoutSessionID, row.ProofRef, row.ProofKind, row.ProofURL, row.ProofAttempts), nil
	case enums.TransactionKindMembership:
		row, err := r.repo.FindMembershipByID(ctx, id)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup membership")
		}
		if row == nil {
			return nil, nil
		}
		return newTargetRow(row.CheckoutSessionID, row.ProofRef, row.ProofKind, row.ProofURL, row.ProofAttempts), nil
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unhandled transaction kind %q", kind))
	}
}

func newTargetRow(sessionID string, ref *string, kind *enums.ProofKind, url *string, attempts int) *targetRow {
	t := &targetRow{sessionID: sessionID, attempts: attempts}
	if ref != nil {
		t.proofRef = *ref
	}
	if kind != nil {
		t.proofKind = *kind
	}
	if url != nil {
		t.proofURL = *url
	}
	return t
}

// invoiceMatchesSession decides whether a listed invoice documents the
// session's payment. Metadata stamped at creation wins; otherwise a paid
// invoice for the same amount created after the session is accepted.
func invoiceMatchesSession(inv *stripe.Invoice, session *stripe.CheckoutSession) bool {
	if inv == nil {
		return false
	}
	if inv.Metadata["checkout_session_id"] == session.ID {
		return true
	}
	if session.PaymentIntent != nil && inv.Metadata["payment_intent_id"] == session.PaymentIntent.ID {
		return true
	}
	return inv.Status == stripe.InvoiceStatusPaid &&
		inv.AmountPaid == session.AmountTotal &&
		inv.Created >= session.Created
}

func billingEmail(session *stripe.CheckoutSession, charge *stripe.Charge) string {
	if session.CustomerDetails != nil && session.CustomerDetails.Email != "" {
		return session.CustomerDetails.Email
	}
	if charge != nil && charge.ReceiptEmail != "" {
		return charge.ReceiptEmail
	}
	return ""
}

func rawInfo(session *stripe.CheckoutSession) *RawPaymentInfo {
	info := &RawPaymentInfo{
		SessionID:   session.ID,
		AmountCents: session.AmountTotal,
		Currency:    string(session.Currency),
		Suggestion:  "no invoice or receipt could be resolved; create an invoice manually in the provider dashboard",
	}
	if session.PaymentIntent != nil {
		info.PaymentIntentID = session.PaymentIntent.ID
	}
	return info
}

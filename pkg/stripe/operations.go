package stripe

import (
	"context"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/charge"
	"github.com/stripe/stripe-go/v84/checkout/session"
	"github.com/stripe/stripe-go/v84/customer"
	"github.com/stripe/stripe-go/v84/invoice"
	"github.com/stripe/stripe-go/v84/invoiceitem"
	"github.com/stripe/stripe-go/v84/paymentintent"
	"github.com/stripe/stripe-go/v84/subscription"
)

// GetCheckoutSession fetches a checkout session, expanding the payment
// intent and invoice so callers can reconcile without extra round trips.
func (c *Client) GetCheckoutSession(ctx context.Context, id string) (*stripe.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	params.AddExpand("payment_intent")
	params.AddExpand("invoice")
	return session.Get(id, params)
}

// CreateCheckoutSession opens a hosted checkout page.
func (c *Client) CreateCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	if params != nil {
		params.Context = ctx
		if params.SuccessURL == nil && c.successURL != "" {
			params.SuccessURL = stripe.String(c.successURL)
		}
		if params.CancelURL == nil && c.cancelURL != "" {
			params.CancelURL = stripe.String(c.cancelURL)
		}
	}
	return session.New(params)
}

// GetPaymentIntent fetches a payment intent with its latest charge expanded.
func (c *Client) GetPaymentIntent(ctx context.Context, id string) (*stripe.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	params.AddExpand("latest_charge")
	return paymentintent.Get(id, params)
}

// GetCharge fetches a single charge, which carries the receipt URL.
func (c *Client) GetCharge(ctx context.Context, id string) (*stripe.Charge, error) {
	params := &stripe.ChargeParams{}
	params.Context = ctx
	return charge.Get(id, params)
}

// ListInvoicesByCustomer returns up to limit invoices for the customer,
// newest first.
func (c *Client) ListInvoicesByCustomer(ctx context.Context, customerID string, limit int64) ([]*stripe.Invoice, error) {
	params := &stripe.InvoiceListParams{Customer: stripe.String(customerID)}
	params.Context = ctx
	if limit > 0 {
		params.Limit = stripe.Int64(limit)
	}

	var out []*stripe.Invoice
	it := invoice.List(params)
	for it.Next() {
		out = append(out, it.Invoice())
	}
	return out, it.Err()
}

// CreateCustomer registers a bare customer record used when synthesizing
// an invoice for a session that has none.
func (c *Client) CreateCustomer(ctx context.Context, email, name string) (*stripe.Customer, error) {
	params := &stripe.CustomerParams{}
	params.Context = ctx
	if email != "" {
		params.Email = stripe.String(email)
	}
	if name != "" {
		params.Name = stripe.String(name)
	}
	return customer.New(params)
}

// CreateInvoiceItem attaches a pending line item to the customer.
func (c *Client) CreateInvoiceItem(ctx context.Context, customerID, description, currency string, amountCents int64) (*stripe.InvoiceItem, error) {
	params := &stripe.InvoiceItemParams{
		Customer:    stripe.String(customerID),
		Description: stripe.String(description),
		Currency:    stripe.String(currency),
		Amount:      stripe.Int64(amountCents),
	}
	params.Context = ctx
	return invoiceitem.New(params)
}

// CreateInvoice drafts an invoice collecting the customer's pending items.
// Metadata ties the draft back to the payment it documents so later lookups
// can match it deterministically.
func (c *Client) CreateInvoice(ctx context.Context, customerID string, metadata map[string]string) (*stripe.Invoice, error) {
	params := &stripe.InvoiceParams{
		Customer:                    stripe.String(customerID),
		AutoAdvance:                 stripe.Bool(false),
		PendingInvoiceItemsBehavior: stripe.String("include"),
		Metadata:                    metadata,
	}
	params.Context = ctx
	return invoice.New(params)
}

// FinalizeInvoice moves a draft invoice to the open state.
func (c *Client) FinalizeInvoice(ctx context.Context, id string) (*stripe.Invoice, error) {
	params := &stripe.InvoiceFinalizeInvoiceParams{AutoAdvance: stripe.Bool(false)}
	params.Context = ctx
	return invoice.FinalizeInvoice(id, params)
}

// PayInvoiceOutOfBand marks an invoice paid without charging, used when
// the payment already settled through checkout.
func (c *Client) PayInvoiceOutOfBand(ctx context.Context, id string) (*stripe.Invoice, error) {
	params := &stripe.InvoicePayParams{PaidOutOfBand: stripe.Bool(true)}
	params.Context = ctx
	return invoice.Pay(id, params)
}

// CancelSubscription stops auto-renewal for the underlying subscription.
func (c *Client) CancelSubscription(ctx context.Context, id string) (*stripe.Subscription, error) {
	params := &stripe.SubscriptionCancelParams{}
	params.Context = ctx
	return subscription.Cancel(id, params)
}

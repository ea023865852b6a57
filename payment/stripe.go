package payment

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v74"
	stripecl "github.com/stripe/stripe-go/v74/client"
	"github.com/stripe/stripe-go/v74/webhook"
)

const StripeProvider = "stripe"

const (
	stripeSessionCompleted      = "checkout.session.completed"
	stripeSessionExpired        = "checkout.session.expired"
	stripeAsyncPaymentSucceeded = "checkout.session.async_payment_succeeded"
	stripeAsyncPaymentFailed    = "checkout.session.async_payment_failed"
)

type StripeConfig struct {
	PublishableKey string
	WebhookSecret  string
	Currency       string
	SuccessURL     string
	CancelURL      string
}

// Stripe opens Stripe Checkout sessions. The provider order id travels as the
// session's client reference id.
type Stripe struct {
	api *stripecl.API
	cfg StripeConfig
}

func NewStripe(api *stripecl.API, cfg StripeConfig) *Stripe {
	return &Stripe{api: api, cfg: cfg}
}

func (s *Stripe) Name() string { return StripeProvider }

func (s *Stripe) PublicKey() string { return s.cfg.PublishableKey }

func (s *Stripe) Create(ctx context.Context, c Checkout) (Session, error) {
	params := &stripe.CheckoutSessionParams{
		ClientReferenceID: stripe.String(c.OrderID),
		SuccessURL:        stripe.String(s.cfg.SuccessURL),
		CancelURL:         stripe.String(s.cfg.CancelURL),
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Quantity: stripe.Int64(1),

			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(s.cfg.Currency),
				TaxBehavior: stripe.String("inclusive"),
				UnitAmount:  stripe.Int64(c.Item.Price * 100),

				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name:        stripe.String(c.Item.Name),
					Description: stripe.String(c.Item.Description),
				},
			},
		}},
	}
	if c.Customer.Email != "" {
		params.CustomerEmail = stripe.String(c.Customer.Email)
	}
	params.AddMetadata("order_id", c.OrderID)
	params.Context = ctx

	sess, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return Session{}, fmt.Errorf("creating stripe session: %w", err)
	}

	return Session{Token: sess.ID, RedirectURL: sess.URL}, nil
}

// StripeEvent is a verified Checkout event reduced to what reconciliation
// needs. Status uses the Snap transaction status vocabulary.
type StripeEvent struct {
	OrderID       string
	Status        string
	TransactionID string
	PaymentType   string
}

// ParseEvent verifies the Stripe-Signature header over payload and maps
// Checkout session events. ok is false for events that carry no payment
// outcome.
func (s *Stripe) ParseEvent(payload []byte, signature string) (ev StripeEvent, ok bool, err error) {
	event, err := webhook.ConstructEvent(payload, signature, s.cfg.WebhookSecret)
	if err != nil {
		return StripeEvent{}, false, fmt.Errorf("constructing stripe event: %w", err)
	}

	var status string
	switch event.Type {
	case stripeSessionCompleted:
		status = "pending"
	case stripeAsyncPaymentSucceeded:
		status = "settlement"
	case stripeAsyncPaymentFailed:
		status = "deny"
	case stripeSessionExpired:
		status = "expire"
	default:
		return StripeEvent{}, false, nil
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return StripeEvent{}, false, fmt.Errorf("decoding stripe session: %w", err)
	}

	if sess.Mode != stripe.CheckoutSessionModePayment {
		return StripeEvent{}, false, nil
	}

	if event.Type == stripeSessionCompleted && sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid {
		status = "settlement"
	}

	ev = StripeEvent{
		OrderID:       sess.ClientReferenceID,
		Status:        status,
		TransactionID: sess.ID,
		PaymentType:   "stripe_checkout",
	}
	if sess.PaymentIntent != nil {
		ev.TransactionID = sess.PaymentIntent.ID
	}
	return ev, true, nil
}

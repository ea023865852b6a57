package payment

import (
	"context"
	"fmt"
	"strconv"

	"github.com/plutov/paypal/v4"
)

const PaypalProvider = "paypal"

// Paypal creates PayPal orders. The PayPal order id is the checkout token; the
// provider order id travels as the purchase unit's reference id.
type Paypal struct {
	client    *paypal.Client
	clientID  string
	currency  string
	returnURL string
}

func NewPaypal(client *paypal.Client, clientID, currency, returnURL string) *Paypal {
	return &Paypal{client: client, clientID: clientID, currency: currency, returnURL: returnURL}
}

func (p *Paypal) Name() string { return PaypalProvider }

func (p *Paypal) PublicKey() string { return p.clientID }

func (p *Paypal) Create(ctx context.Context, c Checkout) (Session, error) {
	amount := strconv.FormatInt(c.Amount, 10)

	units := []paypal.PurchaseUnitRequest{{
		ReferenceID: c.OrderID,

		Items: []paypal.Item{{
			Quantity:    "1",
			Name:        c.Item.Name,
			Description: c.Item.Description,
			SKU:         c.Item.ID,

			UnitAmount: &paypal.Money{
				Currency: p.currency,
				Value:    strconv.FormatInt(c.Item.Price, 10),
			},
		}},

		Amount: &paypal.PurchaseUnitAmount{
			Currency: p.currency,
			Value:    amount,

			Breakdown: &paypal.PurchaseUnitAmountBreakdown{ItemTotal: &paypal.Money{
				Currency: p.currency,
				Value:    amount,
			}},
		},
	}}

	app := &paypal.ApplicationContext{ReturnURL: p.returnURL}
	if c.FinishURL != "" {
		app.ReturnURL = c.FinishURL
	}

	ord, err := p.client.CreateOrder(ctx, "CAPTURE", units, nil, app)
	if err != nil {
		return Session{}, fmt.Errorf("creating paypal order: %w", err)
	}

	sess := Session{Token: ord.ID}
	for _, l := range ord.Links {
		if l.Rel == "approve" {
			sess.RedirectURL = l.Href
		}
	}
	return sess, nil
}

// Capture captures an approved PayPal order and maps its status to the Snap
// transaction status vocabulary.
func (p *Paypal) Capture(ctx context.Context, paypalOrderID string) (status string, err error) {
	resp, err := p.client.CaptureOrder(ctx, paypalOrderID, paypal.CaptureOrderRequest{})
	if err != nil {
		return "", fmt.Errorf("capturing paypal order[%s]: %w", paypalOrderID, err)
	}

	switch resp.Status {
	case "COMPLETED":
		return "settlement", nil
	case "DECLINED", "VOIDED":
		return "deny", nil
	default:
		return "pending", nil
	}
}

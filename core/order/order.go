package order

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"
)

type Status string

const (
	Pending Status = "pending"
	Paid    Status = "paid"
	Failed  Status = "failed"
)

// Terminal statuses are sticky: once an order is paid or failed, later
// notifications cannot move it.
func (s Status) Terminal() bool {
	return s == Paid || s == Failed
}

type Order struct {
	ID              string     `json:"id" db:"order_id"`
	ProviderOrderID string     `json:"orderId" db:"provider_order_id"`
	UserID          string     `json:"userId" db:"user_id"`
	CourseID        string     `json:"courseId" db:"course_id"`
	Amount          int64      `json:"amount" db:"amount"`
	Status          Status     `json:"status" db:"status"`
	Provider        string     `json:"provider" db:"provider"`
	TransactionID   string     `json:"transactionId" db:"transaction_id"`
	PaymentMethod   string     `json:"paymentMethod" db:"payment_method"`
	CheckoutToken   string     `json:"checkoutToken" db:"checkout_token"`
	CreatedAt       time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time  `json:"updatedAt" db:"updated_at"`
	ExpiresAt       time.Time  `json:"expiresAt" db:"expires_at"`
	PaidAt          *time.Time `json:"paidAt" db:"paid_at"`
}

// Next is the status the order moves to under out. ok is false when nothing
// must be written: the outcome leaves the status unchanged or the order is
// already terminal.
func (o Order) Next(out Outcome) (next Status, ok bool) {
	if out.Unchanged || o.Status.Terminal() {
		return o.Status, false
	}
	return out.Status, true
}

type StatusUp struct {
	ID            string     `db:"order_id"`
	Status        Status     `db:"status"`
	TransactionID string     `db:"transaction_id"`
	PaymentMethod string     `db:"payment_method"`
	PaidAt        *time.Time `db:"paid_at"`
	UpdatedAt     time.Time  `db:"updated_at"`
}

type CheckoutNew struct {
	CourseID string `json:"courseId" validate:"required,uuid4"`
	Provider string `json:"provider" validate:"omitempty,oneof=midtrans stripe paypal"`
}

type CheckoutResponse struct {
	Success           bool   `json:"success"`
	CheckoutToken     string `json:"checkoutToken"`
	OrderID           string `json:"orderId"`
	ProviderPublicKey string `json:"providerPublicKey"`
	RedirectURL       string `json:"redirectUrl,omitempty"`
	Provider          string `json:"provider"`
}

// Transaction statuses reported by the payment provider.
const (
	TxCapture    = "capture"
	TxSettlement = "settlement"
	TxPending    = "pending"
	TxDeny       = "deny"
	TxExpire     = "expire"
	TxCancel     = "cancel"
)

const (
	FraudAccept    = "accept"
	FraudChallenge = "challenge"
	FraudDeny      = "deny"
)

// Outcome is the effect of a provider transaction status on an order.
type Outcome struct {
	Status    Status
	Unchanged bool
	Grant     bool
}

// Resolve maps a provider transaction status and fraud assessment to an
// Outcome. Unknown statuses leave the order unchanged.
func Resolve(txStatus, fraudStatus string) Outcome {
	switch txStatus {
	case TxCapture:
		switch fraudStatus {
		case FraudAccept:
			return Outcome{Status: Paid, Grant: true}
		case FraudChallenge:
			return Outcome{Status: Pending}
		default:
			return Outcome{Unchanged: true}
		}
	case TxSettlement:
		return Outcome{Status: Paid, Grant: true}
	case TxPending:
		return Outcome{Status: Pending}
	case TxDeny, TxExpire, TxCancel:
		return Outcome{Status: Failed}
	default:
		return Outcome{Unchanged: true}
	}
}

// GrossAmount is the amount as the provider wrote it. Providers send it as a
// string ("100000.00") or a bare number; the signature covers the exact text.
type GrossAmount string

func (g *GrossAmount) UnmarshalJSON(b []byte) error {
	if bytes.HasPrefix(b, []byte(`"`)) {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*g = GrossAmount(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return errors.New("gross_amount must be a string or a number")
	}
	*g = GrossAmount(n.String())
	return nil
}

// Notification is the payment provider's asynchronous status report.
type Notification struct {
	OrderID           string      `json:"order_id" validate:"required,max=64"`
	TransactionStatus string      `json:"transaction_status" validate:"required,oneof=capture settlement pending deny expire cancel"`
	FraudStatus       string      `json:"fraud_status" validate:"omitempty,oneof=accept challenge deny"`
	SignatureKey      string      `json:"signature_key" validate:"required"`
	GrossAmount       GrossAmount `json:"gross_amount" validate:"required,numeric"`
	TransactionID     string      `json:"transaction_id" validate:"omitempty,max=128"`
	PaymentType       string      `json:"payment_type" validate:"omitempty,max=64"`
	TransactionTime   string      `json:"transaction_time"`
}

type NotificationResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Result describes what reconciling a notification did.
type Result struct {
	Order    Order
	Status   Status
	Applied  bool
	Enrolled bool
}

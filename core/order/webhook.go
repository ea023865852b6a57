package order

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/irsalhamdi/course-market/api/web"
	"github.com/irsalhamdi/course-market/api/weberr"
	"github.com/irsalhamdi/course-market/core/claims"
	"github.com/irsalhamdi/course-market/core/enrollment"
	"github.com/irsalhamdi/course-market/database"
	"github.com/irsalhamdi/course-market/events"
	"github.com/irsalhamdi/course-market/metrics"
	"github.com/irsalhamdi/course-market/payment"
	"github.com/irsalhamdi/course-market/validate"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

var (
	ErrBadSignature   = errors.New("invalid signature")
	ErrUnknownOrder   = errors.New("order not found")
	ErrAmountMismatch = errors.New("gross amount does not match the order")
)

// Settle applies out to ord. The status write is conditioned on the order
// still being pending, so of two concurrent deliveries only one applies; the
// enrollment is granted in the same transaction when the order becomes paid.
func Settle(ctx context.Context, db *sqlx.DB, ord Order, out Outcome, transactionID, paymentType string) (Result, error) {
	next, ok := ord.Next(out)
	res := Result{Order: ord, Status: next}
	if !ok {
		return res, nil
	}

	now := time.Now().UTC()
	up := StatusUp{
		ID:            ord.ID,
		Status:        next,
		TransactionID: transactionID,
		PaymentMethod: paymentType,
		UpdatedAt:     now,
	}
	if next == Paid {
		up.PaidAt = &now
	}

	err := database.Transaction(ctx, db, func(tx sqlx.ExtContext) error {
		applied, err := UpdateStatus(ctx, tx, up)
		if err != nil {
			return err
		}
		if !applied {
			return nil
		}
		res.Applied = true

		if next != Paid || !out.Grant {
			return nil
		}

		created, err := enrollment.Grant(ctx, tx, ord.UserID, ord.CourseID, &ord.ID)
		if err != nil {
			return fmt.Errorf("granting enrollment for order[%s]: %w", ord.ProviderOrderID, err)
		}
		res.Enrolled = created
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("settling order[%s]: %w", ord.ProviderOrderID, err)
	}

	if !res.Applied {
		// Lost the race to another delivery; report what is stored now.
		cur, err := FetchByProviderOrderID(ctx, db, ord.ProviderOrderID)
		if err != nil {
			return Result{}, err
		}
		res.Order = cur
		res.Status = cur.Status
	}

	return res, nil
}

type eventData struct {
	OrderID  string `json:"orderId"`
	UserID   string `json:"userId"`
	CourseID string `json:"courseId"`
	Amount   int64  `json:"amount"`
	Status   Status `json:"status"`
	Provider string `json:"provider"`
}

func emit(ev *events.Dispatcher, res Result) {
	if !res.Applied {
		return
	}

	data := eventData{
		OrderID:  res.Order.ProviderOrderID,
		UserID:   res.Order.UserID,
		CourseID: res.Order.CourseID,
		Amount:   res.Order.Amount,
		Status:   res.Status,
		Provider: res.Order.Provider,
	}

	switch res.Status {
	case Paid:
		ev.Emit(events.OrderPaid, data)
	case Failed:
		ev.Emit(events.OrderFailed, data)
	}

	if res.Enrolled {
		metrics.EnrollmentsGranted.Inc()
		ev.Emit(events.EnrollmentCreated, data)
	}
}

func message(res Result) string {
	switch {
	case res.Applied:
		return fmt.Sprintf("order %s is %s", res.Order.ProviderOrderID, res.Status)
	case res.Status.Terminal():
		return fmt.Sprintf("order %s already %s", res.Order.ProviderOrderID, res.Status)
	default:
		return fmt.Sprintf("order %s unchanged", res.Order.ProviderOrderID)
	}
}

func outcomeLabel(res Result) string {
	if res.Applied {
		return string(res.Status)
	}
	return "noop"
}

func rejectNotification(provider, reason string, err error) error {
	metrics.Notifications.WithLabelValues(provider, reason).Inc()
	return weberr.Invalid(err, weberr.WithFields(map[string]interface{}{"provider": provider}))
}

// HandleSnapNotification reconciles a Midtrans notification. The payload is
// validated and its signature checked before the database is touched.
func HandleSnapNotification(db *sqlx.DB, snap *payment.Snap, ev *events.Dispatcher) web.Handler {
	const provider = payment.SnapProvider

	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var n Notification
		if err := web.DecodeLoose(w, r, &n); err != nil {
			return rejectNotification(provider, "malformed", fmt.Errorf("unable to decode notification: %w", err))
		}

		if err := validate.Check(n); err != nil {
			return rejectNotification(provider, "malformed", err)
		}

		if !snap.Verify(n.OrderID, n.TransactionStatus, string(n.GrossAmount), n.SignatureKey) {
			return rejectNotification(provider, "bad_signature", fmt.Errorf("%w for order %s", ErrBadSignature, n.OrderID))
		}

		ord, err := FetchByProviderOrderID(ctx, db, n.OrderID)
		if err != nil {
			if errors.Is(err, database.ErrDBNotFound) {
				return rejectNotification(provider, "unknown_order", fmt.Errorf("%w: %s", ErrUnknownOrder, n.OrderID))
			}
			return err
		}

		amt, err := decimal.NewFromString(string(n.GrossAmount))
		if err != nil {
			return rejectNotification(provider, "malformed", fmt.Errorf("parsing gross_amount: %w", err))
		}
		if !amt.Equal(decimal.NewFromInt(ord.Amount)) {
			return rejectNotification(provider, "amount_mismatch", fmt.Errorf("%w: order %s has %d, got %s", ErrAmountMismatch, ord.ProviderOrderID, ord.Amount, amt))
		}

		res, err := Settle(ctx, db, ord, Resolve(n.TransactionStatus, n.FraudStatus), n.TransactionID, n.PaymentType)
		if err != nil {
			return err
		}

		metrics.Notifications.WithLabelValues(provider, outcomeLabel(res)).Inc()
		emit(ev, res)

		return web.Respond(ctx, w, NotificationResponse{Success: true, Message: message(res)}, http.StatusOK)
	}
}

// HandleStripeWebhook reconciles Stripe Checkout session events.
func HandleStripeWebhook(db *sqlx.DB, st *payment.Stripe, ev *events.Dispatcher) web.Handler {
	const provider = payment.StripeProvider

	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		b, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 65536))
		if err != nil {
			return weberr.BadRequest(fmt.Errorf("cannot read the request body: %w", err))
		}

		sig := r.Header.Get("Stripe-Signature")
		if sig == "" {
			return rejectNotification(provider, "bad_signature", errors.New("received stripe event is not signed"))
		}

		se, ok, err := st.ParseEvent(b, sig)
		if err != nil {
			return rejectNotification(provider, "bad_signature", err)
		}
		if !ok {
			return web.Respond(ctx, w, nil, http.StatusNoContent)
		}

		ord, err := FetchByProviderOrderID(ctx, db, se.OrderID)
		if err != nil {
			if errors.Is(err, database.ErrDBNotFound) {
				return rejectNotification(provider, "unknown_order", fmt.Errorf("%w: %s", ErrUnknownOrder, se.OrderID))
			}
			return err
		}

		res, err := Settle(ctx, db, ord, Resolve(se.Status, ""), se.TransactionID, se.PaymentType)
		if err != nil {
			return err
		}

		metrics.Notifications.WithLabelValues(provider, outcomeLabel(res)).Inc()
		emit(ev, res)

		return web.Respond(ctx, w, NotificationResponse{Success: true, Message: message(res)}, http.StatusOK)
	}
}

// HandlePaypalCapture captures an approved PayPal order on behalf of its
// buyer. The PayPal order id is the checkout token returned at checkout.
func HandlePaypalCapture(db *sqlx.DB, pp *payment.Paypal, ev *events.Dispatcher) web.Handler {
	const provider = payment.PaypalProvider

	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		token := web.Param(r, "id")

		ord, err := FetchByCheckoutToken(ctx, db, provider, token)
		if err != nil {
			if errors.Is(err, database.ErrDBNotFound) {
				return weberr.NotFound(fmt.Errorf("paypal order[%s]: %w", token, ErrUnknownOrder))
			}
			return err
		}

		if ord.UserID != clm.UserID {
			return weberr.NotFound(fmt.Errorf("paypal order[%s] belongs to another user", token))
		}

		if ord.Status.Terminal() {
			return web.Respond(ctx, w, ord, http.StatusOK)
		}

		status, err := pp.Capture(ctx, token)
		if err != nil {
			metrics.ProviderFailures.WithLabelValues(provider).Inc()
			return weberr.BadGateway(err)
		}

		res, err := Settle(ctx, db, ord, Resolve(status, ""), token, "paypal")
		if err != nil {
			return err
		}

		metrics.Notifications.WithLabelValues(provider, outcomeLabel(res)).Inc()
		emit(ev, res)

		cur, err := FetchByProviderOrderID(ctx, db, ord.ProviderOrderID)
		if err != nil {
			return err
		}
		return web.Respond(ctx, w, cur, http.StatusOK)
	}
}

package order

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/irsalhamdi/course-market/api/web"
	"github.com/irsalhamdi/course-market/api/weberr"
	"github.com/irsalhamdi/course-market/core/claims"
	"github.com/irsalhamdi/course-market/core/course"
	"github.com/irsalhamdi/course-market/core/enrollment"
	"github.com/irsalhamdi/course-market/core/user"
	"github.com/irsalhamdi/course-market/database"
	"github.com/irsalhamdi/course-market/metrics"
	"github.com/irsalhamdi/course-market/payment"
	"github.com/irsalhamdi/course-market/random"
	"github.com/irsalhamdi/course-market/rate"
	"github.com/irsalhamdi/course-market/validate"
	"github.com/jmoiron/sqlx"
)

var (
	ErrCourseFree      = errors.New("course is free, enroll without checkout")
	ErrAlreadyEnrolled = errors.New("already enrolled in this course")
	ErrInvalidPrice    = errors.New("course price is out of range")
)

type CheckoutConfig struct {
	TTL       time.Duration
	FinishURL string
}

// NewProviderOrderID builds the order id shown to the provider and the buyer.
func NewProviderOrderID(now time.Time) (string, error) {
	code, err := random.Code(8)
	if err != nil {
		return "", fmt.Errorf("generating order id: %w", err)
	}
	return fmt.Sprintf("ORDER-%d-%s", now.Unix(), code), nil
}

func validPrice(p int64) bool {
	return p >= 0 && p <= course.MaxPrice
}

// HandleCheckout opens a pending order for one course and returns the
// provider's checkout token. No enrollment is created here.
func HandleCheckout(db *sqlx.DB, gws *payment.Registry, lim rate.Limiter, cfg CheckoutConfig) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		dec, err := lim.Allow(ctx, clm.UserID)
		switch {
		case err != nil:
			// Best effort: a broken limiter store must not block purchases.
			metrics.RateLimited.WithLabelValues("checkout_unavailable").Inc()
		case !dec.Allowed:
			metrics.RateLimited.WithLabelValues("checkout").Inc()
			return weberr.TooManyRequests(
				fmt.Errorf("user[%s] exceeded checkout attempts", clm.UserID),
				dec.RetryAfter,
				weberr.WithFields(map[string]interface{}{"user_id": clm.UserID}),
			)
		}

		var in CheckoutNew
		if err := web.Decode(w, r, &in); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(in); err != nil {
			return weberr.Invalid(err)
		}

		gw, err := gws.Get(in.Provider)
		if err != nil {
			return weberr.Invalid(err)
		}

		usr, err := user.Fetch(ctx, db, clm.UserID)
		if err != nil {
			if errors.Is(err, database.ErrDBNotFound) {
				return weberr.NotAuthorized(fmt.Errorf("account of user[%s] not found: %w", clm.UserID, err))
			}
			return fmt.Errorf("fetching buyer: %w", err)
		}

		c, err := course.Fetch(ctx, db, in.CourseID)
		if err != nil {
			if errors.Is(err, database.ErrDBNotFound) {
				return weberr.NotFound(fmt.Errorf("course[%s] not found: %w", in.CourseID, err))
			}
			return fmt.Errorf("fetching course: %w", err)
		}

		now := time.Now().UTC()
		price := c.EffectivePrice(now)
		if !validPrice(price) {
			return weberr.Invalid(fmt.Errorf("%w: %d", ErrInvalidPrice, price))
		}
		if price == 0 {
			return weberr.Invalid(ErrCourseFree)
		}

		enrolled, err := enrollment.Exists(ctx, db, usr.ID, c.ID)
		if err != nil {
			return fmt.Errorf("checking enrollment: %w", err)
		}
		if enrolled {
			return weberr.Invalid(ErrAlreadyEnrolled)
		}

		pid, err := NewProviderOrderID(now)
		if err != nil {
			return err
		}

		ord := Order{
			ID:              validate.GenerateID(),
			ProviderOrderID: pid,
			UserID:          usr.ID,
			CourseID:        c.ID,
			Amount:          price,
			Status:          Pending,
			Provider:        gw.Name(),
			CreatedAt:       now,
			UpdatedAt:       now,
			ExpiresAt:       now.Add(cfg.TTL),
		}

		if err := Create(ctx, db, ord); err != nil {
			return fmt.Errorf("creating order for course[%s]: %w", c.ID, err)
		}

		sess, err := gw.Create(ctx, payment.Checkout{
			OrderID: ord.ProviderOrderID,
			Amount:  price,
			Customer: payment.Customer{
				Name:  usr.Name,
				Email: usr.Email,
				Phone: usr.Phone,
			},
			Item: payment.Item{
				ID:          c.ID,
				Name:        c.Name,
				Description: c.Description,
				Price:       price,
			},
			FinishURL: cfg.FinishURL,
		})
		if err != nil {
			metrics.ProviderFailures.WithLabelValues(gw.Name()).Inc()
			return weberr.BadGateway(
				fmt.Errorf("opening checkout for order[%s]: %w", ord.ProviderOrderID, err),
				weberr.WithFields(map[string]interface{}{"order_id": ord.ProviderOrderID, "provider": gw.Name()}),
			)
		}

		if err := SetCheckoutToken(ctx, db, ord.ID, sess.Token); err != nil {
			return err
		}

		metrics.OrdersCreated.WithLabelValues(gw.Name()).Inc()

		resp := CheckoutResponse{
			Success:           true,
			CheckoutToken:     sess.Token,
			OrderID:           ord.ProviderOrderID,
			ProviderPublicKey: gw.PublicKey(),
			RedirectURL:       sess.RedirectURL,
			Provider:          gw.Name(),
		}
		return web.Respond(ctx, w, resp, http.StatusOK)
	}
}

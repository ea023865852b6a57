package order

import (
	"context"
	"fmt"
	"time"

	"github.com/irsalhamdi/course-market/database"
	"github.com/jmoiron/sqlx"
)

func Create(ctx context.Context, db sqlx.ExtContext, ord Order) error {
	const q = `
	INSERT INTO orders
		(order_id, provider_order_id, user_id, course_id, amount, status, provider,
		 transaction_id, payment_method, checkout_token, created_at, updated_at, expires_at, paid_at)
	VALUES
		(:order_id, :provider_order_id, :user_id, :course_id, :amount, :status, :provider,
		 :transaction_id, :payment_method, :checkout_token, :created_at, :updated_at, :expires_at, :paid_at)`

	if err := database.NamedExecContext(ctx, db, q, ord); err != nil {
		return fmt.Errorf("inserting order: %w", err)
	}
	return nil
}

func SetCheckoutToken(ctx context.Context, db sqlx.ExtContext, id string, token string) error {
	in := struct {
		ID        string    `db:"order_id"`
		Token     string    `db:"checkout_token"`
		UpdatedAt time.Time `db:"updated_at"`
	}{
		ID:        id,
		Token:     token,
		UpdatedAt: time.Now().UTC(),
	}

	const q = `
	UPDATE
		orders
	SET
		checkout_token = :checkout_token,
		updated_at = :updated_at
	WHERE
		order_id = :order_id`

	if err := database.NamedExecContext(ctx, db, q, in); err != nil {
		return fmt.Errorf("storing checkout token of order[%s]: %w", id, err)
	}
	return nil
}

// UpdateStatus applies up only while the order is still pending. It reports
// whether a row was written; false means another writer finalized the order
// first.
func UpdateStatus(ctx context.Context, db sqlx.ExtContext, up StatusUp) (bool, error) {
	const q = `
	UPDATE
		orders
	SET
		status = :status,
		transaction_id = COALESCE(NULLIF(:transaction_id, ''), transaction_id),
		payment_method = COALESCE(NULLIF(:payment_method, ''), payment_method),
		paid_at = COALESCE(:paid_at, paid_at),
		updated_at = :updated_at
	WHERE
		order_id = :order_id AND status = 'pending'`

	n, err := database.NamedExecAffected(ctx, db, q, up)
	if err != nil {
		return false, fmt.Errorf("updating status of order[%s]: %w", up.ID, err)
	}
	return n == 1, nil
}

func FetchByProviderOrderID(ctx context.Context, db sqlx.ExtContext, providerOrderID string) (Order, error) {
	in := struct {
		ProviderOrderID string `db:"provider_order_id"`
	}{
		ProviderOrderID: providerOrderID,
	}

	const q = `
	SELECT
		*
	FROM
		orders
	WHERE
		provider_order_id = :provider_order_id`

	var ord Order
	if err := database.NamedQueryStruct(ctx, db, q, in, &ord); err != nil {
		return Order{}, fmt.Errorf("selecting order[%s]: %w", providerOrderID, err)
	}
	return ord, nil
}

func FetchByCheckoutToken(ctx context.Context, db sqlx.ExtContext, provider, token string) (Order, error) {
	in := struct {
		Provider string `db:"provider"`
		Token    string `db:"checkout_token"`
	}{
		Provider: provider,
		Token:    token,
	}

	const q = `
	SELECT
		*
	FROM
		orders
	WHERE
		provider = :provider AND checkout_token = :checkout_token`

	var ord Order
	if err := database.NamedQueryStruct(ctx, db, q, in, &ord); err != nil {
		return Order{}, fmt.Errorf("selecting %s order by checkout token: %w", provider, err)
	}
	return ord, nil
}

func FetchByUser(ctx context.Context, db sqlx.ExtContext, userID string) ([]Order, error) {
	in := struct {
		UserID string `db:"user_id"`
	}{
		UserID: userID,
	}

	const q = `
	SELECT
		*
	FROM
		orders
	WHERE
		user_id = :user_id
	ORDER BY
		created_at DESC`

	var ords []Order
	if err := database.NamedQuerySlice(ctx, db, q, in, &ords); err != nil {
		return nil, fmt.Errorf("selecting orders of user[%s]: %w", userID, err)
	}
	return ords, nil
}

// FailExpired moves pending orders whose expiry has passed to failed and
// returns them.
func FailExpired(ctx context.Context, db sqlx.ExtContext, now time.Time) ([]Order, error) {
	in := struct {
		Now time.Time `db:"now"`
	}{
		Now: now,
	}

	const q = `
	UPDATE
		orders
	SET
		status = 'failed',
		updated_at = :now
	WHERE
		status = 'pending' AND expires_at < :now
	RETURNING *`

	var ords []Order
	if err := database.NamedQuerySlice(ctx, db, q, in, &ords); err != nil {
		return nil, fmt.Errorf("failing expired orders: %w", err)
	}
	return ords, nil
}

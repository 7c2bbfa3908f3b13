package order

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

func Create(ctx context.Context, db sqlx.ExtContext, ord Order) error {
	const q = `
	INSERT INTO orders
		(order_id, user_id, status, total_price, created_at, updated_at)
	VALUES
		(:order_id, :user_id, :status, :total_price, :created_at, :updated_at)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, ord); err != nil {
		return fmt.Errorf("inserting order: %w", err)
	}

	return nil
}

func CreateItem(ctx context.Context, db sqlx.ExtContext, item Item) error {
	const q = `
	INSERT INTO order_items
		(order_id, book_id, quantity, unit_price, created_at)
	VALUES
		(:order_id, :book_id, :quantity, :unit_price, :created_at)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, item); err != nil {
		return fmt.Errorf("inserting order item: %w", err)
	}

	return nil
}

func Fetch(ctx context.Context, db sqlx.ExtContext, orderID string) (Order, error) {
	const q = `
	SELECT *
	FROM orders
	WHERE order_id = $1`

	var ord Order
	if err := sqlx.GetContext(ctx, db, &ord, q, orderID); err != nil {
		return Order{}, err
	}

	return ord, nil
}

// fetchForUpdate locks the order row so concurrent cancellations serialize.
func fetchForUpdate(ctx context.Context, tx sqlx.ExtContext, orderID string) (Order, error) {
	const q = `
	SELECT *
	FROM orders
	WHERE order_id = $1
	FOR UPDATE`

	var ord Order
	if err := sqlx.GetContext(ctx, tx, &ord, q, orderID); err != nil {
		return Order{}, err
	}

	return ord, nil
}

func FetchItems(ctx context.Context, db sqlx.ExtContext, orderID string) ([]Item, error) {
	const q = `
	SELECT *
	FROM order_items
	WHERE order_id = $1
	ORDER BY book_id`

	items := []Item{}
	if err := sqlx.SelectContext(ctx, db, &items, q, orderID); err != nil {
		return nil, fmt.Errorf("selecting items of order[%s]: %w", orderID, err)
	}

	return items, nil
}

func ListByUser(ctx context.Context, db sqlx.ExtContext, userID string, page int, size int) ([]Order, error) {
	const q = `
	SELECT *
	FROM orders
	WHERE user_id = $1
	ORDER BY created_at DESC, order_id
	LIMIT $2 OFFSET $3`

	orders := []Order{}
	if err := sqlx.SelectContext(ctx, db, &orders, q, userID, size, (page-1)*size); err != nil {
		return nil, fmt.Errorf("selecting orders of user[%s]: %w", userID, err)
	}

	return orders, nil
}

// markCancelled flips COMPLETED to CANCELLED. Zero affected rows means the
// order was already cancelled.
func markCancelled(ctx context.Context, tx sqlx.ExtContext, orderID string) error {
	const q = `
	UPDATE orders
	SET status = 'CANCELLED', updated_at = $2
	WHERE order_id = $1 AND status = 'COMPLETED'`

	res, err := tx.ExecContext(ctx, q, orderID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("cancelling order[%s]: %w", orderID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("cancelling order[%s]: %w", orderID, err)
	}
	if n == 0 {
		return ErrAlreadyCancelled
	}

	return nil
}

package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/wsd/bookstore/validate"
)

func fetchActive(ctx context.Context, db sqlx.ExtContext, userID string) (Cart, error) {
	const q = `
	SELECT *
	FROM carts
	WHERE user_id = $1 AND status = 'ACTIVE'`

	var crt Cart
	if err := sqlx.GetContext(ctx, db, &crt, q, userID); err != nil {
		return Cart{}, err
	}

	return crt, nil
}

// ensureActive creates the user's ACTIVE cart if it is missing. The partial
// unique index on carts makes the insert race-free: concurrent callers end up
// with the same row.
func ensureActive(ctx context.Context, db sqlx.ExtContext, userID string) error {
	const q = `
	INSERT INTO carts
		(cart_id, user_id, status, created_at, updated_at)
	VALUES
		($1, $2, 'ACTIVE', $3, $3)
	ON CONFLICT (user_id) WHERE status = 'ACTIVE' DO NOTHING`

	now := time.Now().UTC()
	if _, err := db.ExecContext(ctx, q, validate.GenerateID(), userID, now); err != nil {
		return fmt.Errorf("ensuring active cart of user[%s]: %w", userID, err)
	}

	return nil
}

// lockActive fetches the ACTIVE cart with its row locked, serializing line
// mutations against a concurrent checkout of the same cart.
func lockActive(ctx context.Context, tx sqlx.ExtContext, userID string) (Cart, error) {
	const q = `
	SELECT *
	FROM carts
	WHERE user_id = $1 AND status = 'ACTIVE'
	FOR UPDATE`

	var crt Cart
	if err := sqlx.GetContext(ctx, tx, &crt, q, userID); err != nil {
		return Cart{}, err
	}

	return crt, nil
}

// lockByItem resolves a cart line to its cart, locking the cart row.
func lockByItem(ctx context.Context, tx sqlx.ExtContext, itemID string) (Cart, Item, error) {
	const q = `
	SELECT
		c.cart_id "c.cart_id", c.user_id "c.user_id", c.status "c.status",
		c.created_at "c.created_at", c.updated_at "c.updated_at",
		i.item_id "i.item_id", i.cart_id "i.cart_id", i.book_id "i.book_id",
		i.quantity "i.quantity", i.created_at "i.created_at", i.updated_at "i.updated_at"
	FROM cart_items AS i
	JOIN carts AS c ON c.cart_id = i.cart_id
	WHERE i.item_id = $1
	FOR UPDATE OF c`

	var row struct {
		Cart Cart `db:"c"`
		Item Item `db:"i"`
	}
	if err := sqlx.GetContext(ctx, tx, &row, q, itemID); err != nil {
		return Cart{}, Item{}, err
	}

	return row.Cart, row.Item, nil
}

// upsertItem appends a new line or increases the quantity of the existing
// line for the same book, in one atomic statement.
func upsertItem(ctx context.Context, tx sqlx.ExtContext, cartID string, bookID string, quantity int) error {
	const q = `
	INSERT INTO cart_items
		(item_id, cart_id, book_id, quantity, created_at, updated_at)
	VALUES
		($1, $2, $3, $4, $5, $5)
	ON CONFLICT (cart_id, book_id) DO UPDATE
	SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = EXCLUDED.updated_at`

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, q, validate.GenerateID(), cartID, bookID, quantity, now); err != nil {
		return fmt.Errorf("upserting line for book[%s] into cart[%s]: %w", bookID, cartID, err)
	}

	return nil
}

func updateItemQuantity(ctx context.Context, tx sqlx.ExtContext, itemID string, quantity int) error {
	const q = `
	UPDATE cart_items
	SET quantity = $2, updated_at = $3
	WHERE item_id = $1`

	if _, err := tx.ExecContext(ctx, q, itemID, quantity, time.Now().UTC()); err != nil {
		return fmt.Errorf("updating quantity of line[%s]: %w", itemID, err)
	}

	return nil
}

func deleteItem(ctx context.Context, tx sqlx.ExtContext, itemID string) error {
	const q = `
	DELETE FROM cart_items
	WHERE item_id = $1`

	if _, err := tx.ExecContext(ctx, q, itemID); err != nil {
		return fmt.Errorf("deleting line[%s]: %w", itemID, err)
	}

	return nil
}

func deleteItems(ctx context.Context, tx sqlx.ExtContext, cartID string) error {
	const q = `
	DELETE FROM cart_items
	WHERE cart_id = $1`

	if _, err := tx.ExecContext(ctx, q, cartID); err != nil {
		return fmt.Errorf("clearing cart[%s]: %w", cartID, err)
	}

	return nil
}

// FetchItems returns the lines of the user's ACTIVE cart joined with the
// referenced books.
func FetchItems(ctx context.Context, db sqlx.ExtContext, userID string) ([]ItemView, error) {
	const q = `
	SELECT i.item_id, i.book_id, b.title, b.price, i.quantity, i.updated_at
	FROM cart_items AS i
	JOIN carts AS c ON c.cart_id = i.cart_id
	JOIN books AS b ON b.book_id = i.book_id
	WHERE c.user_id = $1 AND c.status = 'ACTIVE'
	ORDER BY i.created_at, i.item_id`

	items := []ItemView{}
	if err := sqlx.SelectContext(ctx, db, &items, q, userID); err != nil {
		return nil, fmt.Errorf("selecting cart items of user[%s]: %w", userID, err)
	}

	return items, nil
}

// MarkOrdered flips the user's ACTIVE cart to ORDERED. The conditional update
// is what guarantees a cart can be checked out only once: of two concurrent
// checkouts one wins the row, the other affects zero rows and gets
// sql.ErrNoRows.
func MarkOrdered(ctx context.Context, tx sqlx.ExtContext, userID string) (string, error) {
	const q = `
	UPDATE carts
	SET status = 'ORDERED', updated_at = $2
	WHERE user_id = $1 AND status = 'ACTIVE'
	RETURNING cart_id`

	var cartID string
	if err := sqlx.GetContext(ctx, tx, &cartID, q, userID, time.Now().UTC()); err != nil {
		return "", err
	}

	return cartID, nil
}

// FetchLines returns the checkout view of a cart: lines with current book
// prices, in ascending book id order so reservations always lock book rows
// in the same order.
func FetchLines(ctx context.Context, tx sqlx.ExtContext, cartID string) ([]Line, error) {
	const q = `
	SELECT i.book_id, i.quantity, b.price
	FROM cart_items AS i
	JOIN books AS b ON b.book_id = i.book_id
	WHERE i.cart_id = $1
	ORDER BY i.book_id`

	lines := []Line{}
	if err := sqlx.SelectContext(ctx, tx, &lines, q, cartID); err != nil {
		return nil, fmt.Errorf("selecting lines of cart[%s]: %w", cartID, err)
	}

	return lines, nil
}

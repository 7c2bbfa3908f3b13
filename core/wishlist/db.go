package wishlist

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

func add(ctx context.Context, db sqlx.ExtContext, userID string, bookID string) error {
	const q = `
	INSERT INTO wishlist_items
		(user_id, book_id, created_at)
	VALUES
		($1, $2, $3)
	ON CONFLICT (user_id, book_id) DO NOTHING`

	if _, err := db.ExecContext(ctx, q, userID, bookID, time.Now().UTC()); err != nil {
		return fmt.Errorf("adding book[%s] to wishlist of user[%s]: %w", bookID, userID, err)
	}

	return nil
}

func remove(ctx context.Context, db sqlx.ExtContext, userID string, bookID string) (bool, error) {
	const q = `
	DELETE FROM wishlist_items
	WHERE user_id = $1 AND book_id = $2`

	res, err := db.ExecContext(ctx, q, userID, bookID)
	if err != nil {
		return false, fmt.Errorf("removing book[%s] from wishlist of user[%s]: %w", bookID, userID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func list(ctx context.Context, db sqlx.ExtContext, userID string) ([]ItemView, error) {
	const q = `
	SELECT w.book_id, b.title, b.price, w.created_at
	FROM wishlist_items AS w
	JOIN books AS b ON b.book_id = w.book_id
	WHERE w.user_id = $1
	ORDER BY w.created_at DESC, w.book_id`

	items := []ItemView{}
	if err := sqlx.SelectContext(ctx, db, &items, q, userID); err != nil {
		return nil, fmt.Errorf("selecting wishlist of user[%s]: %w", userID, err)
	}

	return items, nil
}

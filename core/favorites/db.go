package favorites

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

func add(ctx context.Context, db sqlx.ExtContext, userID string, bookID string) error {
	const q = `
	INSERT INTO favorites
		(user_id, book_id, created_at)
	VALUES
		($1, $2, $3)`

	if _, err := db.ExecContext(ctx, q, userID, bookID, time.Now().UTC()); err != nil {
		return fmt.Errorf("liking book[%s] for user[%s]: %w", bookID, userID, err)
	}

	return nil
}

func remove(ctx context.Context, db sqlx.ExtContext, userID string, bookID string) (bool, error) {
	const q = `
	DELETE FROM favorites
	WHERE user_id = $1 AND book_id = $2`

	res, err := db.ExecContext(ctx, q, userID, bookID)
	if err != nil {
		return false, fmt.Errorf("unliking book[%s] for user[%s]: %w", bookID, userID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func list(ctx context.Context, db sqlx.ExtContext, userID string) ([]BookView, error) {
	const q = `
	SELECT f.book_id, b.title, b.price, f.created_at
	FROM favorites AS f
	JOIN books AS b ON b.book_id = f.book_id
	WHERE f.user_id = $1
	ORDER BY f.created_at DESC, f.book_id`

	items := []BookView{}
	if err := sqlx.SelectContext(ctx, db, &items, q, userID); err != nil {
		return nil, fmt.Errorf("selecting favorites of user[%s]: %w", userID, err)
	}

	return items, nil
}

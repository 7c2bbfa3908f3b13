package review

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

func Create(ctx context.Context, db sqlx.ExtContext, rev Review) error {
	const q = `
	INSERT INTO reviews
		(review_id, book_id, user_id, rating, comment, created_at, updated_at)
	VALUES
		(:review_id, :book_id, :user_id, :rating, :comment, :created_at, :updated_at)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, rev); err != nil {
		return fmt.Errorf("inserting review: %w", err)
	}

	return nil
}

func Update(ctx context.Context, db sqlx.ExtContext, rev Review) error {
	const q = `
	UPDATE reviews
	SET rating = :rating, comment = :comment, updated_at = :updated_at
	WHERE review_id = :review_id`

	if _, err := sqlx.NamedExecContext(ctx, db, q, rev); err != nil {
		return fmt.Errorf("updating review[%s]: %w", rev.ID, err)
	}

	return nil
}

func Delete(ctx context.Context, db sqlx.ExtContext, reviewID string) error {
	const q = `
	DELETE FROM reviews
	WHERE review_id = $1`

	if _, err := db.ExecContext(ctx, q, reviewID); err != nil {
		return fmt.Errorf("deleting review[%s]: %w", reviewID, err)
	}

	return nil
}

func Fetch(ctx context.Context, db sqlx.ExtContext, reviewID string) (Review, error) {
	const q = `
	SELECT *
	FROM reviews
	WHERE review_id = $1`

	var rev Review
	if err := sqlx.GetContext(ctx, db, &rev, q, reviewID); err != nil {
		return Review{}, err
	}

	return rev, nil
}

func ListByBook(ctx context.Context, db sqlx.ExtContext, bookID string, page int, size int) ([]Review, error) {
	const q = `
	SELECT *
	FROM reviews
	WHERE book_id = $1
	ORDER BY created_at DESC, review_id
	LIMIT $2 OFFSET $3`

	revs := []Review{}
	if err := sqlx.SelectContext(ctx, db, &revs, q, bookID, size, (page-1)*size); err != nil {
		return nil, fmt.Errorf("selecting reviews of book[%s]: %w", bookID, err)
	}

	return revs, nil
}

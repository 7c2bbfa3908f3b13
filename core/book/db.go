package book

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
)

func Create(ctx context.Context, db sqlx.ExtContext, bk Book) error {
	const q = `
	INSERT INTO books
		(book_id, isbn13, title, description, price, stock_quantity, published_at, created_at, updated_at)
	VALUES
		(:book_id, :isbn13, :title, :description, :price, :stock_quantity, :published_at, :created_at, :updated_at)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, bk); err != nil {
		return fmt.Errorf("inserting book: %w", err)
	}

	return nil
}

// Update writes the book back guarded by the version it was fetched at. A
// zero-row update means another writer (an admin edit or a checkout touching
// stock_quantity) got there first; the caller re-fetches and retries.
func Update(ctx context.Context, db sqlx.ExtContext, bk Book) error {
	const q = `
	UPDATE books
	SET
		title = :title,
		description = :description,
		price = :price,
		stock_quantity = :stock_quantity,
		updated_at = :updated_at,
		version = version + 1
	WHERE
		book_id = :book_id AND version = :version`

	res, err := sqlx.NamedExecContext(ctx, db, q, bk)
	if err != nil {
		return fmt.Errorf("updating book[%s]: %w", bk.ID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating book[%s]: %w", bk.ID, err)
	}
	if n == 0 {
		return ErrVersionConflict
	}

	return nil
}

// Delete retires a book from the catalog. The row stays so order history and
// existing cart lines keep resolving; Fetch and List no longer see it.
func Delete(ctx context.Context, db sqlx.ExtContext, id string) error {
	const q = `
	UPDATE books
	SET deleted_at = NOW(), updated_at = NOW(), version = version + 1
	WHERE book_id = $1 AND deleted_at IS NULL`

	res, err := db.ExecContext(ctx, q, id)
	if err != nil {
		return fmt.Errorf("deleting book[%s]: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting book[%s]: %w", id, err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}

	return nil
}

func Fetch(ctx context.Context, db sqlx.ExtContext, id string) (Book, error) {
	const q = `
	SELECT *
	FROM books
	WHERE book_id = $1 AND deleted_at IS NULL`

	var bk Book
	if err := sqlx.GetContext(ctx, db, &bk, q, id); err != nil {
		return Book{}, err
	}

	return bk, nil
}

func List(ctx context.Context, db sqlx.ExtContext, title string, page int, size int) ([]Book, error) {
	const q = `
	SELECT *
	FROM books
	WHERE deleted_at IS NULL AND ($1 = '' OR title ILIKE '%' || $1 || '%')
	ORDER BY created_at DESC, book_id
	LIMIT $2 OFFSET $3`

	books := []Book{}
	if err := sqlx.SelectContext(ctx, db, &books, q, title, size, (page-1)*size); err != nil {
		return nil, fmt.Errorf("selecting books: %w", err)
	}

	return books, nil
}

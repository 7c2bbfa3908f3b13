// Package stock is the ledger of how many copies of a book can still be
// sold. Reserve and Release are plain conditional updates on the book row,
// so two reservations for the same book serialize on that row and nothing
// wider, and the stock_quantity >= quantity guard makes oversell impossible
// no matter how many reservations race.
package stock

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// InsufficientError reports a reservation that could not be satisfied.
type InsufficientError struct {
	BookID string
}

func (e *InsufficientError) Error() string {
	return fmt.Sprintf("insufficient stock for book[%s]", e.BookID)
}

// Reserve atomically decrements the available stock of a book. It fails with
// *InsufficientError, leaving the ledger untouched, when fewer than quantity
// copies are available. Callers run it inside the transaction that consumes
// the reservation so a later failure rolls the decrement back.
func Reserve(ctx context.Context, db sqlx.ExtContext, bookID string, quantity int) error {
	if quantity < 1 {
		return fmt.Errorf("reserve quantity must be positive, got %d", quantity)
	}

	const q = `
	UPDATE books
	SET stock_quantity = stock_quantity - $2, updated_at = NOW(), version = version + 1
	WHERE book_id = $1 AND stock_quantity >= $2`

	res, err := db.ExecContext(ctx, q, bookID, quantity)
	if err != nil {
		return fmt.Errorf("reserving %d of book[%s]: %w", quantity, bookID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reserving %d of book[%s]: %w", quantity, bookID, err)
	}
	if n == 0 {
		return &InsufficientError{BookID: bookID}
	}

	return nil
}

// Release returns previously reserved copies to the ledger. It must be called
// exactly once per successful reservation; idempotency is on the caller.
func Release(ctx context.Context, db sqlx.ExtContext, bookID string, quantity int) error {
	if quantity < 1 {
		return fmt.Errorf("release quantity must be positive, got %d", quantity)
	}

	const q = `
	UPDATE books
	SET stock_quantity = stock_quantity + $2, updated_at = NOW(), version = version + 1
	WHERE book_id = $1`

	if _, err := db.ExecContext(ctx, q, bookID, quantity); err != nil {
		return fmt.Errorf("releasing %d of book[%s]: %w", quantity, bookID, err)
	}

	return nil
}

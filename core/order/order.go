package order

import (
	"errors"
	"time"
)

const (
	// StatusCompleted is the state every order is born in. The only
	// transition out of it is cancellation.
	StatusCompleted = "COMPLETED"
	StatusCancelled = "CANCELLED"
)

var (
	// ErrEmptyCart is returned by checkout when the user has no active
	// cart or the active cart has no lines.
	ErrEmptyCart = errors.New("no items to checkout")

	// ErrAlreadyCancelled is returned by a second cancellation attempt.
	ErrAlreadyCancelled = errors.New("order is already cancelled")
)

type Order struct {
	ID         string    `json:"id" db:"order_id"`
	UserID     string    `json:"userId" db:"user_id"`
	Status     string    `json:"status" db:"status"`
	TotalPrice int       `json:"totalPrice" db:"total_price"`
	CreatedAt  time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt  time.Time `json:"updatedAt" db:"updated_at"`
}

// Item is an order line. UnitPrice is the book price captured at checkout;
// later catalog price changes never touch it.
type Item struct {
	OrderID   string    `json:"-" db:"order_id"`
	BookID    string    `json:"bookId" db:"book_id"`
	Quantity  int       `json:"quantity" db:"quantity"`
	UnitPrice int       `json:"unitPrice" db:"unit_price"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

type Detail struct {
	Order
	Items []Item `json:"items"`
}

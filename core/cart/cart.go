package cart

import (
	"errors"
	"time"
)

const (
	StatusActive  = "ACTIVE"
	StatusOrdered = "ORDERED"
)

// ErrNotActive is returned by mutations against a cart that has already been
// turned into an order.
var ErrNotActive = errors.New("cart is not active")

type Cart struct {
	ID        string    `json:"id" db:"cart_id"`
	UserID    string    `json:"-" db:"user_id"`
	Status    string    `json:"status" db:"status"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

type Item struct {
	ID        string    `json:"id" db:"item_id"`
	CartID    string    `json:"-" db:"cart_id"`
	BookID    string    `json:"bookId" db:"book_id"`
	Quantity  int       `json:"quantity" db:"quantity"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// ItemView is a cart line joined with the book it refers to, as shown to the
// user. Price is the current catalog price, not a snapshot.
type ItemView struct {
	ID        string    `json:"id" db:"item_id"`
	BookID    string    `json:"bookId" db:"book_id"`
	Title     string    `json:"title" db:"title"`
	Price     int       `json:"price" db:"price"`
	Quantity  int       `json:"quantity" db:"quantity"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

type View struct {
	ID     string     `json:"id,omitempty"`
	Status string     `json:"status,omitempty"`
	Items  []ItemView `json:"items"`
}

type ItemNew struct {
	BookID   string `json:"bookId" validate:"required,uuid4"`
	Quantity int    `json:"quantity" validate:"gte=1"`
}

type ItemUp struct {
	Quantity int `json:"quantity" validate:"gte=1"`
}

// Line is what checkout consumes: a cart line with the book price at the
// moment the order is assembled.
type Line struct {
	BookID   string `db:"book_id"`
	Quantity int    `db:"quantity"`
	Price    int    `db:"price"`
}

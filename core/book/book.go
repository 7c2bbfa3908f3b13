package book

import (
	"errors"
	"time"
)

// ErrVersionConflict is returned by Update when the book row changed since it
// was fetched.
var ErrVersionConflict = errors.New("book was modified concurrently")

type Book struct {
	ID            string     `json:"id" db:"book_id"`
	ISBN13        string     `json:"isbn13" db:"isbn13"`
	Title         string     `json:"title" db:"title"`
	Description   string     `json:"description" db:"description"`
	Price         int        `json:"price" db:"price"`
	StockQuantity int        `json:"stockQuantity" db:"stock_quantity"`
	PublishedAt   time.Time  `json:"publishedAt" db:"published_at"`
	CreatedAt     time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time  `json:"updatedAt" db:"updated_at"`
	DeletedAt     *time.Time `json:"-" db:"deleted_at"`
	Version       int        `json:"-" db:"version"`
}

type BookNew struct {
	ISBN13        string    `json:"isbn13" validate:"required,len=13"`
	Title         string    `json:"title" validate:"required"`
	Description   string    `json:"description"`
	Price         int       `json:"price" validate:"gte=0"`
	StockQuantity int       `json:"stockQuantity" validate:"gte=0"`
	PublishedAt   time.Time `json:"publishedAt" validate:"required"`
}

type BookUp struct {
	Title         *string `json:"title"`
	Description   *string `json:"description"`
	Price         *int    `json:"price" validate:"omitempty,gte=0"`
	StockQuantity *int    `json:"stockQuantity" validate:"omitempty,gte=0"`
}

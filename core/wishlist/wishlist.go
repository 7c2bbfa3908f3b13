package wishlist

import "time"

// ItemView is a wishlist entry joined with the book it points to.
type ItemView struct {
	BookID  string    `json:"bookId" db:"book_id"`
	Title   string    `json:"title" db:"title"`
	Price   int       `json:"price" db:"price"`
	AddedAt time.Time `json:"addedAt" db:"created_at"`
}

// Package favorites tracks the books a user has liked. Unlike the wishlist,
// liking a book twice is an error rather than a no-op.
package favorites

import "time"

// BookView is a favorite joined with the book it points to.
type BookView struct {
	BookID  string    `json:"bookId" db:"book_id"`
	Title   string    `json:"title" db:"title"`
	Price   int       `json:"price" db:"price"`
	LikedAt time.Time `json:"likedAt" db:"created_at"`
}

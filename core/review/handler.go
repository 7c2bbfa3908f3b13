package review

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/wsd/bookstore/api/web"
	"github.com/wsd/bookstore/api/weberr"
	"github.com/wsd/bookstore/core/book"
	"github.com/wsd/bookstore/core/claims"
	"github.com/wsd/bookstore/database"
	"github.com/wsd/bookstore/validate"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func HandleListByBook(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		bookID := web.Param(r, "book_id")
		if err := validate.CheckID(bookID); err != nil {
			return weberr.BadRequest(fmt.Errorf("passed id is not valid: %w", err))
		}

		page := web.QueryInt(r, "page", 1)
		if page < 1 {
			page = 1
		}
		size := web.QueryInt(r, "size", defaultPageSize)
		if size < 1 || size > maxPageSize {
			size = defaultPageSize
		}

		revs, err := ListByBook(ctx, db, bookID, page, size)
		if err != nil {
			return fmt.Errorf("listing reviews of book[%s]: %w", bookID, err)
		}

		return web.Respond(ctx, w, revs, http.StatusOK)
	}
}

func HandleCreate(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		bookID := web.Param(r, "book_id")
		if err := validate.CheckID(bookID); err != nil {
			return weberr.BadRequest(fmt.Errorf("passed id is not valid: %w", err))
		}

		var rn ReviewNew
		if err := web.Decode(w, r, &rn); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(rn); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		if _, err := book.Fetch(ctx, db, bookID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("fetching book[%s]: %w", bookID, err)
		}

		now := time.Now().UTC()
		rev := Review{
			ID:        validate.GenerateID(),
			BookID:    bookID,
			UserID:    clm.UserID,
			Rating:    rn.Rating,
			Comment:   rn.Comment,
			CreatedAt: now,
			UpdatedAt: now,
		}

		if err := Create(ctx, db, rev); err != nil {
			if database.IsUniqueViolation(err) {
				return weberr.Conflict(err, "you already reviewed this book")
			}
			return fmt.Errorf("creating review: %w", err)
		}

		return web.Respond(ctx, w, rev, http.StatusCreated)
	}
}

func HandleUpdate(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		reviewID := web.Param(r, "id")
		if err := validate.CheckID(reviewID); err != nil {
			return weberr.BadRequest(fmt.Errorf("passed id is not valid: %w", err))
		}

		var ru ReviewUp
		if err := web.Decode(w, r, &ru); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(ru); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		rev, err := Fetch(ctx, db, reviewID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("fetching review[%s]: %w", reviewID, err)
		}

		if rev.UserID != clm.UserID {
			return weberr.Forbidden(errors.New("requester does not own the review"))
		}

		if ru.Rating != nil {
			rev.Rating = *ru.Rating
		}
		if ru.Comment != nil {
			rev.Comment = *ru.Comment
		}
		rev.UpdatedAt = time.Now().UTC()

		if err := Update(ctx, db, rev); err != nil {
			return err
		}

		return web.Respond(ctx, w, rev, http.StatusOK)
	}
}

func HandleDelete(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		reviewID := web.Param(r, "id")
		if err := validate.CheckID(reviewID); err != nil {
			return weberr.BadRequest(fmt.Errorf("passed id is not valid: %w", err))
		}

		rev, err := Fetch(ctx, db, reviewID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("fetching review[%s]: %w", reviewID, err)
		}

		if rev.UserID != clm.UserID && !claims.IsAdmin(ctx) {
			return weberr.Forbidden(errors.New("requester does not own the review"))
		}

		if err := Delete(ctx, db, rev.ID); err != nil {
			return err
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

package favorites

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/jmoiron/sqlx"
	"github.com/wsd/bookstore/api/web"
	"github.com/wsd/bookstore/api/weberr"
	"github.com/wsd/bookstore/core/book"
	"github.com/wsd/bookstore/core/claims"
	"github.com/wsd/bookstore/database"
	"github.com/wsd/bookstore/validate"
)

func HandleList(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		items, err := list(ctx, db, clm.UserID)
		if err != nil {
			return err
		}

		return web.Respond(ctx, w, items, http.StatusOK)
	}
}

func HandleAdd(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		bookID := web.Param(r, "book_id")
		if err := validate.CheckID(bookID); err != nil {
			return weberr.BadRequest(fmt.Errorf("passed id is not valid: %w", err))
		}

		if _, err := book.Fetch(ctx, db, bookID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("fetching book[%s]: %w", bookID, err)
		}

		if err := add(ctx, db, clm.UserID, bookID); err != nil {
			if database.IsUniqueViolation(err) {
				return weberr.Conflict(err, "book is already liked")
			}
			return err
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

func HandleRemove(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		bookID := web.Param(r, "book_id")
		if err := validate.CheckID(bookID); err != nil {
			return weberr.BadRequest(fmt.Errorf("passed id is not valid: %w", err))
		}

		removed, err := remove(ctx, db, clm.UserID, bookID)
		if err != nil {
			return err
		}
		if !removed {
			return weberr.NotFound(errors.New("book is not liked"))
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

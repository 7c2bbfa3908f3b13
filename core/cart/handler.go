package cart

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

func HandleShow(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		view := View{Items: []ItemView{}}

		crt, err := fetchActive(ctx, db, clm.UserID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return web.Respond(ctx, w, view, http.StatusOK)
			}
			return fmt.Errorf("fetching cart of user[%s]: %w", clm.UserID, err)
		}

		items, err := FetchItems(ctx, db, clm.UserID)
		if err != nil {
			return fmt.Errorf("fetching cart items of user[%s]: %w", clm.UserID, err)
		}

		view.ID = crt.ID
		view.Status = crt.Status
		view.Items = items
		return web.Respond(ctx, w, view, http.StatusOK)
	}
}

// HandleCreateItem adds a book to the user's active cart, creating the cart
// on first use. Adding a book that is already in the cart increases the
// quantity of the existing line. Stock is deliberately not checked here:
// carts are speculative and must not hold inventory.
func HandleCreateItem(db *sqlx.DB, maxQuantity int) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		var in ItemNew
		if err := web.Decode(w, r, &in); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(in); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}
		if in.Quantity > maxQuantity {
			err := fmt.Errorf("quantity must not exceed %d", maxQuantity)
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		if _, err := book.Fetch(ctx, db, in.BookID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("fetching book[%s]: %w", in.BookID, err)
		}

		if err := ensureActive(ctx, db, clm.UserID); err != nil {
			return err
		}

		err = database.Transaction(db, func(tx sqlx.ExtContext) error {
			crt, err := lockActive(ctx, tx, clm.UserID)
			if err != nil {
				return err
			}
			return upsertItem(ctx, tx, crt.ID, in.BookID, in.Quantity)
		})
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				// The cart was checked out between ensure and lock.
				return weberr.Conflict(ErrNotActive, ErrNotActive.Error())
			}
			return fmt.Errorf("adding book[%s] to cart of user[%s]: %w", in.BookID, clm.UserID, err)
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

func HandleUpdateItem(db *sqlx.DB, maxQuantity int) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		itemID := web.Param(r, "item_id")
		if err := validate.CheckID(itemID); err != nil {
			return weberr.BadRequest(fmt.Errorf("passed id is not valid: %w", err))
		}

		var iu ItemUp
		if err := web.Decode(w, r, &iu); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(iu); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}
		if iu.Quantity > maxQuantity {
			err := fmt.Errorf("quantity must not exceed %d", maxQuantity)
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		err = database.Transaction(db, func(tx sqlx.ExtContext) error {
			crt, item, err := lockByItem(ctx, tx, itemID)
			if err != nil {
				return err
			}
			if crt.UserID != clm.UserID {
				return weberr.Forbidden(errors.New("requester does not own the cart"))
			}
			if crt.Status != StatusActive {
				return weberr.Conflict(ErrNotActive, ErrNotActive.Error())
			}
			return updateItemQuantity(ctx, tx, item.ID, iu.Quantity)
		})
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return weberr.NotFound(err)
			}
			return err
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

func HandleDeleteItem(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		itemID := web.Param(r, "item_id")
		if err := validate.CheckID(itemID); err != nil {
			return weberr.BadRequest(fmt.Errorf("passed id is not valid: %w", err))
		}

		err = database.Transaction(db, func(tx sqlx.ExtContext) error {
			crt, item, err := lockByItem(ctx, tx, itemID)
			if err != nil {
				return err
			}
			if crt.UserID != clm.UserID {
				return weberr.Forbidden(errors.New("requester does not own the cart"))
			}
			if crt.Status != StatusActive {
				return weberr.Conflict(ErrNotActive, ErrNotActive.Error())
			}
			return deleteItem(ctx, tx, item.ID)
		})
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return weberr.NotFound(err)
			}
			return err
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

func HandleDelete(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		err = database.Transaction(db, func(tx sqlx.ExtContext) error {
			crt, err := lockActive(ctx, tx, clm.UserID)
			if err != nil {
				return err
			}
			return deleteItems(ctx, tx, crt.ID)
		})
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("clearing cart of user[%s]: %w", clm.UserID, err)
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

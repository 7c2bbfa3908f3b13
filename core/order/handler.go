package order

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
	"github.com/wsd/bookstore/core/cart"
	"github.com/wsd/bookstore/core/claims"
	"github.com/wsd/bookstore/core/stock"
	"github.com/wsd/bookstore/database"
	"github.com/wsd/bookstore/validate"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// checkout converts the user's active cart into an order. Everything runs in
// one transaction: the cart status flip, the per-line stock reservations and
// the order insert either all commit or all roll back, so a failed
// reservation releases every earlier one by construction.
func checkout(ctx context.Context, db *sqlx.DB, userID string) (Order, error) {
	var ord Order

	err := database.Transaction(db, func(tx sqlx.ExtContext) error {
		cartID, err := cart.MarkOrdered(ctx, tx, userID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrEmptyCart
			}
			return fmt.Errorf("claiming cart of user[%s]: %w", userID, err)
		}

		lines, err := cart.FetchLines(ctx, tx, cartID)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return ErrEmptyCart
		}

		now := time.Now().UTC()
		ord = Order{
			ID:        validate.GenerateID(),
			UserID:    userID,
			Status:    StatusCompleted,
			CreatedAt: now,
			UpdatedAt: now,
		}

		for _, l := range lines {
			if err := stock.Reserve(ctx, tx, l.BookID, l.Quantity); err != nil {
				return err
			}
			ord.TotalPrice += l.Price * l.Quantity
		}

		if err := Create(ctx, tx, ord); err != nil {
			return err
		}

		for _, l := range lines {
			item := Item{
				OrderID:   ord.ID,
				BookID:    l.BookID,
				Quantity:  l.Quantity,
				UnitPrice: l.Price,
				CreatedAt: now,
			}
			if err := CreateItem(ctx, tx, item); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return Order{}, err
	}

	return ord, nil
}

// cancel flips an order to CANCELLED and returns its stock to the ledger.
// The order row is locked first so a racing second cancel waits and then
// fails on the status check, which is what keeps the release exactly-once.
func cancel(ctx context.Context, db *sqlx.DB, orderID string, userID string) error {
	return database.Transaction(db, func(tx sqlx.ExtContext) error {
		ord, err := fetchForUpdate(ctx, tx, orderID)
		if err != nil {
			return err
		}

		if ord.UserID != userID {
			return weberr.Forbidden(errors.New("requester does not own the order"))
		}

		if err := markCancelled(ctx, tx, ord.ID); err != nil {
			return err
		}

		items, err := FetchItems(ctx, tx, ord.ID)
		if err != nil {
			return err
		}

		for _, item := range items {
			if err := stock.Release(ctx, tx, item.BookID, item.Quantity); err != nil {
				return err
			}
		}

		return nil
	})
}

func HandleCheckout(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		ord, err := checkout(ctx, db, clm.UserID)
		if err != nil {
			if errors.Is(err, ErrEmptyCart) {
				return weberr.Unprocessable(err, err.Error())
			}
			var insErr *stock.InsufficientError
			if errors.As(err, &insErr) {
				// The short book goes into the body so the client can
				// thin out that line and retry.
				body := struct {
					Error  string `json:"error"`
					BookID string `json:"bookId"`
				}{
					Error:  "not enough stock for one of the books",
					BookID: insErr.BookID,
				}
				return weberr.Wrap(err,
					weberr.WithResponse(&body, http.StatusConflict),
					weberr.WithFields(map[string]interface{}{"book_id": insErr.BookID}))
			}
			return fmt.Errorf("checking out cart of user[%s]: %w", clm.UserID, err)
		}

		return web.Respond(ctx, w, ord, http.StatusCreated)
	}
}

func HandleCancel(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		orderID := web.Param(r, "id")
		if err := validate.CheckID(orderID); err != nil {
			return weberr.BadRequest(fmt.Errorf("passed id is not valid: %w", err))
		}

		if err := cancel(ctx, db, orderID, clm.UserID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return weberr.NotFound(err)
			}
			if errors.Is(err, ErrAlreadyCancelled) {
				return weberr.Conflict(err, err.Error())
			}
			return err
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

func HandleList(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		page := web.QueryInt(r, "page", 1)
		if page < 1 {
			page = 1
		}
		size := web.QueryInt(r, "size", defaultPageSize)
		if size < 1 || size > maxPageSize {
			size = defaultPageSize
		}

		orders, err := ListByUser(ctx, db, clm.UserID, page, size)
		if err != nil {
			return fmt.Errorf("listing orders of user[%s]: %w", clm.UserID, err)
		}

		return web.Respond(ctx, w, orders, http.StatusOK)
	}
}

func HandleShow(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		orderID := web.Param(r, "id")
		if err := validate.CheckID(orderID); err != nil {
			return weberr.BadRequest(fmt.Errorf("passed id is not valid: %w", err))
		}

		ord, err := Fetch(ctx, db, orderID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("fetching order[%s]: %w", orderID, err)
		}

		if ord.UserID != clm.UserID && !claims.IsAdmin(ctx) {
			return weberr.Forbidden(errors.New("requester does not own the order"))
		}

		items, err := FetchItems(ctx, db, ord.ID)
		if err != nil {
			return err
		}

		return web.Respond(ctx, w, Detail{Order: ord, Items: items}, http.StatusOK)
	}
}

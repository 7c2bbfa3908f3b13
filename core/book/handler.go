package book

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
	"github.com/wsd/bookstore/database"
	"github.com/wsd/bookstore/validate"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func HandleList(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		page := web.QueryInt(r, "page", 1)
		if page < 1 {
			page = 1
		}
		size := web.QueryInt(r, "size", defaultPageSize)
		if size < 1 || size > maxPageSize {
			size = defaultPageSize
		}

		books, err := List(ctx, db, r.URL.Query().Get("title"), page, size)
		if err != nil {
			return fmt.Errorf("listing books: %w", err)
		}

		return web.Respond(ctx, w, books, http.StatusOK)
	}
}

func HandleShow(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		bookID := web.Param(r, "id")
		if err := validate.CheckID(bookID); err != nil {
			return weberr.BadRequest(fmt.Errorf("passed id is not valid: %w", err))
		}

		bk, err := Fetch(ctx, db, bookID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("fetching book[%s]: %w", bookID, err)
		}

		return web.Respond(ctx, w, bk, http.StatusOK)
	}
}

func HandleCreate(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var bn BookNew
		if err := web.Decode(w, r, &bn); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(bn); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		now := time.Now().UTC()
		bk := Book{
			ID:            validate.GenerateID(),
			ISBN13:        bn.ISBN13,
			Title:         bn.Title,
			Description:   bn.Description,
			Price:         bn.Price,
			StockQuantity: bn.StockQuantity,
			PublishedAt:   bn.PublishedAt,
			CreatedAt:     now,
			UpdatedAt:     now,
		}

		if err := Create(ctx, db, bk); err != nil {
			if database.IsUniqueViolation(err) {
				return weberr.Conflict(err, "a book with this isbn already exists")
			}
			return fmt.Errorf("creating book: %w", err)
		}

		return web.Respond(ctx, w, bk, http.StatusCreated)
	}
}

func HandleUpdate(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		bookID := web.Param(r, "id")
		if err := validate.CheckID(bookID); err != nil {
			return weberr.BadRequest(fmt.Errorf("passed id is not valid: %w", err))
		}

		var bu BookUp
		if err := web.Decode(w, r, &bu); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(bu); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		bk, err := Fetch(ctx, db, bookID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("fetching book[%s]: %w", bookID, err)
		}

		if bu.Title != nil {
			bk.Title = *bu.Title
		}
		if bu.Description != nil {
			bk.Description = *bu.Description
		}
		if bu.Price != nil {
			bk.Price = *bu.Price
		}
		if bu.StockQuantity != nil {
			bk.StockQuantity = *bu.StockQuantity
		}
		bk.UpdatedAt = time.Now().UTC()

		if err := Update(ctx, db, bk); err != nil {
			if errors.Is(err, ErrVersionConflict) {
				return weberr.Conflict(err, err.Error())
			}
			return fmt.Errorf("updating book[%s]: %w", bookID, err)
		}

		bk.Version++
		return web.Respond(ctx, w, bk, http.StatusOK)
	}
}

func HandleDelete(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		bookID := web.Param(r, "id")
		if err := validate.CheckID(bookID); err != nil {
			return weberr.BadRequest(fmt.Errorf("passed id is not valid: %w", err))
		}

		if err := Delete(ctx, db, bookID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("deleting book[%s]: %w", bookID, err)
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

package auth

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/jmoiron/sqlx"
	"github.com/wsd/bookstore/api/background"
	"github.com/wsd/bookstore/api/web"
	"github.com/wsd/bookstore/api/weberr"
	"github.com/wsd/bookstore/core/user"
	"github.com/wsd/bookstore/database"
	"github.com/wsd/bookstore/random"
	"github.com/wsd/bookstore/validate"
	"golang.org/x/crypto/bcrypt"
)

const (
	ScopeActivation = "activation"
	ScopeRecovery   = "recovery"
)

const tokenLength = 26

// Mailer delivers one-time tokens to users.
type Mailer interface {
	SendActivationToken(token string, to string) error
	SendRecoveryToken(token string, to string) error
}

type Token struct {
	Hash   []byte    `db:"token_hash"`
	UserID string    `db:"user_id"`
	Scope  string    `db:"scope"`
	Expiry time.Time `db:"expiry"`
}

func generateToken(userID string, scope string, ttl time.Duration) (string, Token, error) {
	plain, err := random.StringSecure(tokenLength)
	if err != nil {
		return "", Token{}, fmt.Errorf("generating token: %w", err)
	}

	hash := sha256.Sum256([]byte(plain))
	tk := Token{
		Hash:   hash[:],
		UserID: userID,
		Scope:  scope,
		Expiry: time.Now().UTC().Add(ttl),
	}
	return plain, tk, nil
}

// HandleTokenRequest mails a fresh activation or recovery token. It responds
// 204 regardless of whether the email exists, to avoid account enumeration.
func HandleTokenRequest(db *sqlx.DB, mailer Mailer, ttl time.Duration, bg *background.Background) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var tr struct {
			Email string `json:"email" validate:"required,email"`
			Scope string `json:"scope" validate:"required,oneof=activation recovery"`
		}
		if err := web.Decode(w, r, &tr); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(tr); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		usr, err := user.FetchByEmail(ctx, db, tr.Email)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return web.Respond(ctx, w, nil, http.StatusNoContent)
			}
			return fmt.Errorf("fetching user by email: %w", err)
		}

		plain, tk, err := generateToken(usr.ID, tr.Scope, ttl)
		if err != nil {
			return err
		}

		if err := createToken(ctx, db, tk); err != nil {
			return fmt.Errorf("storing token: %w", err)
		}

		bg.Add(func() error {
			if tk.Scope == ScopeActivation {
				return mailer.SendActivationToken(plain, usr.Email)
			}
			return mailer.SendRecoveryToken(plain, usr.Email)
		})

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

func HandleActivation(db *sqlx.DB, session *scs.SessionManager) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var ar struct {
			Token string `json:"token" validate:"required"`
		}
		if err := web.Decode(w, r, &ar); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(ar); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		usr, err := fetchUserByToken(ctx, db, ar.Token, ScopeActivation)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return weberr.NotFound(errors.New("token is invalid or expired"))
			}
			return fmt.Errorf("fetching user by token: %w", err)
		}

		err = database.Transaction(db, func(tx sqlx.ExtContext) error {
			usr.Active = true
			usr.UpdatedAt = time.Now().UTC()
			if err := user.Update(ctx, tx, usr); err != nil {
				return err
			}
			return deleteTokens(ctx, tx, usr.ID, ScopeActivation)
		})
		if err != nil {
			return fmt.Errorf("activating user[%s]: %w", usr.ID, err)
		}

		if err := login(ctx, session, usr.ID, usr.Role); err != nil {
			return fmt.Errorf("logging in user[%s] after activation: %w", usr.ID, err)
		}

		return web.Respond(ctx, w, usr, http.StatusOK)
	}
}

func HandleRecovery(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var rr struct {
			Token           string `json:"token" validate:"required"`
			Password        string `json:"password" validate:"required,gte=8,lte=50"`
			PasswordConfirm string `json:"passwordConfirm" validate:"eqfield=Password"`
		}
		if err := web.Decode(w, r, &rr); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(rr); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		usr, err := fetchUserByToken(ctx, db, rr.Token, ScopeRecovery)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return weberr.NotFound(errors.New("token is invalid or expired"))
			}
			return fmt.Errorf("fetching user by token: %w", err)
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(rr.Password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hashing password: %w", err)
		}

		err = database.Transaction(db, func(tx sqlx.ExtContext) error {
			usr.PasswordHash = hash
			usr.UpdatedAt = time.Now().UTC()
			if err := user.Update(ctx, tx, usr); err != nil {
				return err
			}
			return deleteTokens(ctx, tx, usr.ID, ScopeRecovery)
		})
		if err != nil {
			return fmt.Errorf("recovering password of user[%s]: %w", usr.ID, err)
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

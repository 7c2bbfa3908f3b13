package auth

import (
	"context"
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/wsd/bookstore/core/user"
)

func createToken(ctx context.Context, db sqlx.ExtContext, tk Token) error {
	const q = `
	INSERT INTO tokens
		(token_hash, user_id, scope, expiry)
	VALUES
		(:token_hash, :user_id, :scope, :expiry)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, tk); err != nil {
		return fmt.Errorf("inserting token: %w", err)
	}

	return nil
}

func fetchUserByToken(ctx context.Context, db sqlx.ExtContext, plain string, scope string) (user.User, error) {
	const q = `
	SELECT u.*
	FROM users AS u
	JOIN tokens AS t ON t.user_id = u.user_id
	WHERE t.token_hash = $1 AND t.scope = $2 AND t.expiry > $3`

	hash := sha256.Sum256([]byte(plain))

	var usr user.User
	if err := sqlx.GetContext(ctx, db, &usr, q, hash[:], scope, time.Now().UTC()); err != nil {
		return user.User{}, err
	}

	return usr, nil
}

func deleteTokens(ctx context.Context, db sqlx.ExtContext, userID string, scope string) error {
	const q = `
	DELETE FROM tokens
	WHERE user_id = $1 AND scope = $2`

	if _, err := db.ExecContext(ctx, q, userID, scope); err != nil {
		return fmt.Errorf("deleting tokens of user[%s]: %w", userID, err)
	}

	return nil
}

package test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/wsd/bookstore/api"
	"github.com/wsd/bookstore/api/background"
	"github.com/wsd/bookstore/config"
	"github.com/wsd/bookstore/core/claims"
	"github.com/wsd/bookstore/database"
	"github.com/wsd/bookstore/migrations"
	"github.com/wsd/bookstore/rate"
	"github.com/wsd/bookstore/validate"
	"golang.org/x/crypto/bcrypt"
)

const maxLineQuantity = 99

type TestEnv struct {
	DB     *sqlx.DB
	Server *httptest.Server
	URL    string
	Mail   *recordMailer

	AdminEmail string
	AdminPass  string
	UserEmail  string
	UserPass   string
}

// recordMailer captures outgoing tokens instead of mailing them. Token mails
// are sent from a background task, hence the channels.
type recordMailer struct {
	Activations chan string
	Recoveries  chan string
}

func newRecordMailer() *recordMailer {
	return &recordMailer{
		Activations: make(chan string, 8),
		Recoveries:  make(chan string, 8),
	}
}

func (m *recordMailer) SendActivationToken(token string, to string) error {
	m.Activations <- token
	return nil
}

func (m *recordMailer) SendRecoveryToken(token string, to string) error {
	m.Recoveries <- token
	return nil
}

// NewTestEnv creates a database named name inside the shared postgres
// container, migrates it, seeds an admin and a regular user and starts an
// httptest server around the full API mux.
func NewTestEnv(t *testing.T, name string) (*TestEnv, error) {
	t.Helper()

	admin, err := database.Open(config.DB{
		User:       "postgres",
		Password:   "postgres",
		Host:       dbHost,
		Name:       "postgres",
		DisableTLS: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening admin connection: %w", err)
	}
	defer admin.Close()

	if _, err := admin.Exec("CREATE DATABASE " + name); err != nil {
		return nil, fmt.Errorf("creating database %s: %w", name, err)
	}

	db, err := database.Open(config.DB{
		User:         "postgres",
		Password:     "postgres",
		Host:         dbHost,
		Name:         name,
		MaxIdleConns: 2,
		MaxOpenConns: 10,
		DisableTLS:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening test connection: %w", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := migrations.Migrate(db); err != nil {
		return nil, fmt.Errorf("migrating database %s: %w", name, err)
	}

	env := TestEnv{
		DB:         db,
		Mail:       newRecordMailer(),
		AdminEmail: "admin@test.com",
		AdminPass:  "admin-pass",
		UserEmail:  "user@test.com",
		UserPass:   "user-pass",
	}

	if err := seedUser(db, env.AdminEmail, env.AdminPass, claims.RoleAdmin); err != nil {
		return nil, err
	}
	if err := seedUser(db, env.UserEmail, env.UserPass, claims.RoleUser); err != nil {
		return nil, err
	}

	log := logrus.New()
	log.SetOutput(testWriter{t})

	session := scs.New()
	session.Lifetime = time.Hour

	mux := api.APIMux(api.APIConfig{
		Log:             log,
		DB:              db,
		Session:         session,
		Mailer:          env.Mail,
		TokenTimeout:    15 * time.Minute,
		Background:      background.New(log),
		LoginLimiter:    rate.NewLimiter(1000, 60, 1000),
		MaxLineQuantity: maxLineQuantity,
	})

	env.Server = httptest.NewServer(mux)
	t.Cleanup(env.Server.Close)
	env.URL = env.Server.URL

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}
	env.Server.Client().Jar = jar

	return &env, nil
}

func (e *TestEnv) Client() *http.Client {
	return e.Server.Client()
}

func seedUser(db *sqlx.DB, email string, pass string, role string) error {
	// MinCost keeps the seeding fast; these hashes never leave the test db.
	hash, err := bcrypt.GenerateFromPassword([]byte(pass), bcrypt.MinCost)
	if err != nil {
		return fmt.Errorf("hashing password of %s: %w", email, err)
	}

	const q = `
	INSERT INTO users (user_id, name, email, role, password_hash, active, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, TRUE, NOW(), NOW())`

	if _, err := db.ExecContext(context.Background(), q, validate.GenerateID(), email, email, role, hash); err != nil {
		return fmt.Errorf("seeding user %s: %w", email, err)
	}
	return nil
}

// Login authenticates against the server; the session cookie lands in the
// shared jar so later requests from the same client are authenticated.
func Login(srv *httptest.Server, email string, pass string) error {
	body, err := json.Marshal(map[string]string{"email": email, "password": pass})
	if err != nil {
		return err
	}

	w, err := srv.Client().Post(srv.URL+"/auth/login", "application/json", bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	defer w.Body.Close()

	if w.StatusCode != http.StatusOK {
		return fmt.Errorf("login of %s failed: status code %s", email, w.Status)
	}
	return nil
}

func Logout(srv *httptest.Server) error {
	w, err := srv.Client().Post(srv.URL+"/auth/logout", "application/json", nil)
	if err != nil {
		return err
	}
	defer w.Body.Close()

	if w.StatusCode != http.StatusNoContent {
		return fmt.Errorf("logout failed: status code %s", w.Status)
	}
	return nil
}

func unexpectedStatus(w *http.Response) error {
	body, _ := io.ReadAll(w.Body)
	return fmt.Errorf("unexpected status %s: %s", w.Status, body)
}

// testWriter routes server logs through the test, so they show only on
// failure or with -v.
type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

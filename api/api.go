package api

import (
	"context"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/wsd/bookstore/api/background"
	"github.com/wsd/bookstore/api/middleware"
	"github.com/wsd/bookstore/api/web"
	"github.com/wsd/bookstore/core/auth"
	"github.com/wsd/bookstore/core/book"
	"github.com/wsd/bookstore/core/cart"
	"github.com/wsd/bookstore/core/favorites"
	"github.com/wsd/bookstore/core/order"
	"github.com/wsd/bookstore/core/review"
	"github.com/wsd/bookstore/core/user"
	"github.com/wsd/bookstore/core/wishlist"
	"github.com/wsd/bookstore/rate"
)

type APIConfig struct {
	CorsOrigin         string
	Log                logrus.FieldLogger
	DB                 *sqlx.DB
	Session            *scs.SessionManager
	Mailer             auth.Mailer
	TokenTimeout       time.Duration
	Background         *background.Background
	Providers          map[string]auth.Provider
	LoginRedirectURL   string
	ActivationRequired bool
	LoginLimiter       *rate.Limiter
	MaxLineQuantity    int
}

type api struct {
	*mux.Router
	mw  []web.Middleware
	log logrus.FieldLogger
}

func APIMux(cfg APIConfig) http.Handler {
	a := &api{
		Router: mux.NewRouter(),
		log:    cfg.Log,
	}

	a.mw = append(a.mw, auth.LoadAndSave(cfg.Session))
	a.mw = append(a.mw, middleware.RequestID())
	a.mw = append(a.mw, middleware.Logger(cfg.Log))
	a.mw = append(a.mw, middleware.Errors(cfg.Log))
	a.mw = append(a.mw, middleware.Panics())

	if cfg.CorsOrigin != "" {
		a.mw = append(a.mw, middleware.Cors(cfg.CorsOrigin))

		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			w.WriteHeader(http.StatusNoContent)
			return nil
		}

		a.Handle(http.MethodOptions, "/{path:.*}", h)
	}

	authen := auth.Authenticate(cfg.Session)
	admin := auth.Admin(cfg.Session)
	limited := middleware.RateLimit(cfg.LoginLimiter)

	a.Handle(http.MethodPost, "/auth/signup", auth.HandleSignup(cfg.DB, cfg.Session, cfg.ActivationRequired), limited)
	a.Handle(http.MethodPost, "/auth/login", auth.HandleLogin(cfg.DB, cfg.Session), limited)
	a.Handle(http.MethodPost, "/auth/logout", auth.HandleLogout(cfg.Session))
	a.Handle(http.MethodGet, "/auth/oauth-login/{provider}", auth.HandleOauthLogin(cfg.Session, cfg.Providers))
	a.Handle(http.MethodGet, "/auth/oauth-callback/{provider}", auth.HandleOauthCallback(cfg.DB, cfg.Session, cfg.Providers, cfg.LoginRedirectURL))

	a.Handle(http.MethodPost, "/tokens", auth.HandleTokenRequest(cfg.DB, cfg.Mailer, cfg.TokenTimeout, cfg.Background), limited)
	a.Handle(http.MethodPost, "/tokens/activate", auth.HandleActivation(cfg.DB, cfg.Session))
	a.Handle(http.MethodPost, "/tokens/recover", auth.HandleRecovery(cfg.DB))

	a.Handle(http.MethodGet, "/users/current", user.HandleShowCurrent(cfg.DB), authen)
	a.Handle(http.MethodPut, "/users/current", user.HandleUpdate(cfg.DB), authen)
	a.Handle(http.MethodGet, "/users/{id}", user.HandleShow(cfg.DB), authen)
	a.Handle(http.MethodPost, "/users", user.HandleCreate(cfg.DB), admin)

	a.Handle(http.MethodGet, "/books", book.HandleList(cfg.DB))
	a.Handle(http.MethodGet, "/books/{id}", book.HandleShow(cfg.DB))
	a.Handle(http.MethodPost, "/books", book.HandleCreate(cfg.DB), admin)
	a.Handle(http.MethodPut, "/books/{id}", book.HandleUpdate(cfg.DB), admin)
	a.Handle(http.MethodDelete, "/books/{id}", book.HandleDelete(cfg.DB), admin)

	a.Handle(http.MethodGet, "/books/{book_id}/reviews", review.HandleListByBook(cfg.DB))
	a.Handle(http.MethodPost, "/books/{book_id}/reviews", review.HandleCreate(cfg.DB), authen)
	a.Handle(http.MethodPut, "/reviews/{id}", review.HandleUpdate(cfg.DB), authen)
	a.Handle(http.MethodDelete, "/reviews/{id}", review.HandleDelete(cfg.DB), authen)

	a.Handle(http.MethodGet, "/favorites", favorites.HandleList(cfg.DB), authen)
	a.Handle(http.MethodPut, "/favorites/{book_id}", favorites.HandleAdd(cfg.DB), authen)
	a.Handle(http.MethodDelete, "/favorites/{book_id}", favorites.HandleRemove(cfg.DB), authen)

	a.Handle(http.MethodGet, "/wishlist", wishlist.HandleList(cfg.DB), authen)
	a.Handle(http.MethodPut, "/wishlist/{book_id}", wishlist.HandleAdd(cfg.DB), authen)
	a.Handle(http.MethodDelete, "/wishlist/{book_id}", wishlist.HandleRemove(cfg.DB), authen)

	a.Handle(http.MethodGet, "/cart", cart.HandleShow(cfg.DB), authen)
	a.Handle(http.MethodDelete, "/cart", cart.HandleDelete(cfg.DB), authen)
	a.Handle(http.MethodPost, "/cart/items", cart.HandleCreateItem(cfg.DB, cfg.MaxLineQuantity), authen)
	a.Handle(http.MethodPut, "/cart/items/{item_id}", cart.HandleUpdateItem(cfg.DB, cfg.MaxLineQuantity), authen)
	a.Handle(http.MethodDelete, "/cart/items/{item_id}", cart.HandleDeleteItem(cfg.DB), authen)

	a.Handle(http.MethodPost, "/orders", order.HandleCheckout(cfg.DB), authen)
	a.Handle(http.MethodGet, "/orders", order.HandleList(cfg.DB), authen)
	a.Handle(http.MethodGet, "/orders/{id}", order.HandleShow(cfg.DB), authen)
	a.Handle(http.MethodDelete, "/orders/{id}", order.HandleCancel(cfg.DB), authen)

	return a.Router
}

func (a *api) Handle(method string, path string, handler web.Handler, mw ...web.Middleware) {

	handler = web.WrapMiddleware(mw, handler)

	handler = web.WrapMiddleware(a.mw, handler)

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		ctx := r.Context()

		if err := handler(ctx, w, r); err != nil {

			a.log.WithFields(logrus.Fields{
				"req_id":  middleware.ContextRequestID(ctx),
				"message": err,
			}).Error("ERROR")
		}
	})

	a.Router.Handle(path, h).Methods(method)
}

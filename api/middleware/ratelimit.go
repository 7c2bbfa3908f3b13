package middleware

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/wsd/bookstore/api/web"
	"github.com/wsd/bookstore/api/weberr"
	"github.com/wsd/bookstore/rate"
)

// RateLimit rejects requests from clients that exhausted their token bucket.
// Clients are keyed by remote IP.
func RateLimit(limiter *rate.Limiter) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {

			ip, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				ip = r.RemoteAddr
			}

			if !limiter.Check(ip) {
				err := errors.New("rate limit exceeded")
				return weberr.NewError(err, err.Error(), http.StatusTooManyRequests)
			}

			return handler(ctx, w, r)
		}
		return h
	}
	return m
}

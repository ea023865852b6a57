package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/irsalhamdi/course-market/api/web"
	"github.com/irsalhamdi/course-market/api/weberr"
	"github.com/irsalhamdi/course-market/metrics"
	"github.com/irsalhamdi/course-market/rate"
)

// Throttle limits requests per client address with a token bucket.
func Throttle(b *rate.Bucket, ips *web.ClientIP) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			if ok, retry := b.Take(ips.Resolve(r)); !ok {
				metrics.RateLimited.WithLabelValues("remote_addr").Inc()
				return weberr.TooManyRequests(errors.New("remote address throttled"), retry)
			}

			return handler(ctx, w, r)
		}
		return h
	}
	return m
}

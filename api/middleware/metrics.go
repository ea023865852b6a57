package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/irsalhamdi/course-market/api/web"
	"github.com/irsalhamdi/course-market/metrics"
	"github.com/zenazn/goji/web/mutil"
)

// Metrics records request latency labelled with the route template rather
// than the raw path, to keep label cardinality bounded.
func Metrics() web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			start := time.Now()

			lw := mutil.WrapWriter(w)
			err := handler(ctx, lw, r)

			route := "unknown"
			if cr := mux.CurrentRoute(r); cr != nil {
				if tpl, terr := cr.GetPathTemplate(); terr == nil {
					route = tpl
				}
			}

			metrics.Requests.
				WithLabelValues(r.Method, route, strconv.Itoa(lw.Status())).
				Observe(time.Since(start).Seconds())

			return err
		}
		return h
	}
	return m
}

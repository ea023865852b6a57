package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/irsalhamdi/course-market/api/web"
	"github.com/irsalhamdi/course-market/api/weberr"
	"github.com/sirupsen/logrus"
)

func serve(t *testing.T, h web.Handler, mw ...web.Middleware) *httptest.ResponseRecorder {
	t.Helper()

	h = web.WrapMiddleware(mw, h)
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	_ = h(r.Context(), w, r)
	return w
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestErrorsUsesResponseAndHeaders(t *testing.T) {
	h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		return weberr.TooManyRequests(errors.New("limited"), 30*time.Second)
	}

	w := serve(t, h, RequestID(), Errors(quietLogger()))

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "30" {
		t.Fatalf("expected Retry-After 30, got %q", got)
	}
	if w.Header().Get(RequestIDHeader) == "" {
		t.Fatal("expected a request id header")
	}
}

func TestErrorsHidesUnknownErrors(t *testing.T) {
	h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		return errors.New("connection refused")
	}

	w := serve(t, h, Errors(quietLogger()))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if body := w.Body.String(); body != `{"success":false,"error":"Internal Server Error"}` {
		t.Fatalf("unexpected body %s", body)
	}
}

func TestPanics(t *testing.T) {
	h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		panic("boom")
	}

	w := serve(t, h, Errors(quietLogger()), Panics())

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
}

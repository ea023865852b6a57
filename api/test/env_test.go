package test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/irsalhamdi/course-market/api"
	"github.com/irsalhamdi/course-market/api/background"
	"github.com/irsalhamdi/course-market/core/auth"
	"github.com/irsalhamdi/course-market/core/course"
	"github.com/irsalhamdi/course-market/core/enrollment"
	"github.com/irsalhamdi/course-market/core/order"
	"github.com/irsalhamdi/course-market/database"
	"github.com/irsalhamdi/course-market/events"
	"github.com/irsalhamdi/course-market/payment"
	"github.com/irsalhamdi/course-market/rate"
	"github.com/jmoiron/sqlx"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/plutov/paypal/v4"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v74"
	stripecl "github.com/stripe/stripe-go/v74/client"
)

const (
	serverKey     = "SB-Mid-server-test"
	clientKey     = "SB-Mid-client-test"
	webhookSecret = "whsec_test"
	adminEmail    = "admin@example.com"
	adminPass     = "admin-password"
)

var dbBase database.Config

func TestMain(m *testing.M) {
	os.Exit(run(m))
}

func run(m *testing.M) int {
	pool, err := dockertest.NewPool("")
	if err == nil {
		err = pool.Client.Ping()
	}
	if err != nil {
		fmt.Printf("skipping api tests, docker not available: %v\n", err)
		return 0
	}

	res, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "15-alpine",
		Env: []string{
			"POSTGRES_USER=postgres",
			"POSTGRES_PASSWORD=postgres",
			"POSTGRES_DB=postgres",
		},
	}, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		fmt.Printf("starting postgres: %v\n", err)
		return 1
	}
	defer pool.Purge(res)
	_ = res.Expire(600)

	dbBase = database.Config{
		User:         "postgres",
		Password:     "postgres",
		Host:         res.GetHostPort("5432/tcp"),
		Name:         "postgres",
		DisableTLS:   true,
		MaxIdleConns: 2,
	}

	err = pool.Retry(func() error {
		db, err := database.Open(dbBase)
		if err != nil {
			return err
		}
		defer db.Close()
		return database.StatusCheck(context.Background(), db)
	})
	if err != nil {
		fmt.Printf("waiting for postgres: %v\n", err)
		return 1
	}

	return m.Run()
}

// recorder keeps every published event for assertions.
type recorder struct {
	mu     sync.Mutex
	topics []string
}

func (r *recorder) Publish(ctx context.Context, topic string, data any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.topics = append(r.topics, topic)
	return nil
}

func (r *recorder) count(topic string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, t := range r.topics {
		if t == topic {
			n++
		}
	}
	return n
}

type TestEnv struct {
	*httptest.Server
	DB         *sqlx.DB
	Snap       *mockSnap
	Stripe     *mockStripe
	Paypal     *mockPaypal
	Events     *recorder
	Background *background.Background
	Dispatcher *events.Dispatcher
	AdminToken string
}

func NewTestEnv(t *testing.T, name string) *TestEnv {
	t.Helper()

	admin, err := database.Open(dbBase)
	if err != nil {
		t.Fatal(err)
	}
	defer admin.Close()

	if _, err := admin.Exec("CREATE DATABASE " + name); err != nil {
		t.Fatalf("creating database %s: %v", name, err)
	}

	cfg := dbBase
	cfg.Name = name
	db, err := database.Open(cfg)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrating: %v", err)
	}

	log := logrus.New()
	log.SetOutput(io.Discard)

	env := &TestEnv{
		DB:     db,
		Snap:   &mockSnap{},
		Stripe: &mockStripe{},
		Paypal: &mockPaypal{status: "COMPLETED"},
		Events: &recorder{},
	}

	snapSrv := httptest.NewServer(env.Snap.handle())
	stripeSrv := httptest.NewServer(env.Stripe.handle())
	paypalSrv := httptest.NewServer(env.Paypal.handle())
	t.Cleanup(snapSrv.Close)
	t.Cleanup(stripeSrv.Close)
	t.Cleanup(paypalSrv.Close)

	snap, err := payment.NewSnap(payment.SnapConfig{
		ServerKey: serverKey,
		ClientKey: clientKey,
		BaseURL:   snapSrv.URL,
		Timeout:   5 * time.Second,
	})
	if err != nil {
		t.Fatal(err)
	}

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(stripeSrv.URL),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
		MaxNetworkRetries: stripe.Int64(0),
	})
	sc := &stripecl.API{}
	sc.Init("sk_test_key", &stripe.Backends{API: backend, Connect: backend, Uploads: backend})
	strp := payment.NewStripe(sc, payment.StripeConfig{
		PublishableKey: "pk_test_key",
		WebhookSecret:  webhookSecret,
		Currency:       "idr",
		SuccessURL:     "http://localhost/finish",
		CancelURL:      "http://localhost/cancel",
	})

	ppc, err := paypal.NewClient("paypal-client", "paypal-secret", paypalSrv.URL)
	if err != nil {
		t.Fatal(err)
	}
	pp := payment.NewPaypal(ppc, "paypal-client", "USD", "http://localhost/finish")

	reg, err := payment.NewRegistry(payment.SnapProvider, snap, strp, pp)
	if err != nil {
		t.Fatal(err)
	}

	env.Background = background.New(log)
	env.Dispatcher = events.NewDispatcher(env.Events, env.Background, log)

	if err := auth.EnsureAdmin(context.Background(), db, adminEmail, adminPass); err != nil {
		t.Fatalf("creating admin: %v", err)
	}

	limiter, err := rate.NewWindow(5, time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	env.Server = httptest.NewServer(api.APIMux(api.APIConfig{
		Log:             log,
		DB:              db,
		Session:         scs.New(),
		Gateways:        reg,
		Snap:            snap,
		Stripe:          strp,
		Paypal:          pp,
		CheckoutLimiter: limiter,
		Checkout: order.CheckoutConfig{
			TTL:       24 * time.Hour,
			FinishURL: "http://localhost/finish",
		},
		Events:           env.Dispatcher,
		LoginRedirectURL: "http://localhost/login",
	}))
	t.Cleanup(env.Server.Close)

	env.AdminToken = env.login(t, adminEmail, adminPass)
	return env
}

// drain waits for every event handed to the dispatcher so far.
func (env *TestEnv) drain(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := env.Background.Shutdown(ctx); err != nil {
		t.Fatal(err)
	}
}

func (env *TestEnv) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(b)
	}

	r, err := http.NewRequest(method, env.URL+path, rd)
	if err != nil {
		t.Fatal(err)
	}
	if body != nil {
		r.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}

	w, err := env.Client().Do(r)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { w.Body.Close() })
	return w
}

func decode[T any](t *testing.T, w *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("decoding response with status %s: %v", w.Status, err)
	}
	return v
}

func expectStatus(t *testing.T, w *http.Response, code int) {
	t.Helper()
	if w.StatusCode != code {
		b, _ := io.ReadAll(w.Body)
		t.Fatalf("expected status %d, got %s: %s", code, w.Status, b)
	}
}

func (env *TestEnv) login(t *testing.T, email, password string) string {
	t.Helper()
	w := env.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email":    email,
		"password": password,
	})
	expectStatus(t, w, http.StatusOK)
	return decode[auth.Token](t, w).Token
}

func (env *TestEnv) signup(t *testing.T, email string) string {
	t.Helper()
	w := env.do(t, http.MethodPost, "/auth/signup", "", map[string]string{
		"name":            "Buyer",
		"email":           email,
		"phone":           "+6281234567890",
		"password":        "buyer-password",
		"passwordConfirm": "buyer-password",
	})
	expectStatus(t, w, http.StatusCreated)
	return decode[auth.Token](t, w).Token
}

func (env *TestEnv) createCourse(t *testing.T, in course.CourseNew) course.View {
	t.Helper()
	if in.Name == "" {
		in.Name = "Go in Production"
	}
	if in.Description == "" {
		in.Description = "Services, storage and payments"
	}
	if in.ImageURL == "" {
		in.ImageURL = "https://example.com/course.png"
	}

	w := env.do(t, http.MethodPost, "/courses", env.AdminToken, in)
	expectStatus(t, w, http.StatusCreated)
	return decode[course.View](t, w)
}

func (env *TestEnv) checkout(t *testing.T, token, courseID, provider string) *http.Response {
	t.Helper()
	body := map[string]string{"courseId": courseID}
	if provider != "" {
		body["provider"] = provider
	}
	return env.do(t, http.MethodPost, "/orders", token, body)
}

func (env *TestEnv) checkoutOK(t *testing.T, token, courseID, provider string) order.CheckoutResponse {
	t.Helper()
	w := env.checkout(t, token, courseID, provider)
	expectStatus(t, w, http.StatusOK)
	return decode[order.CheckoutResponse](t, w)
}

// notify posts a Snap notification signed with the server key.
func (env *TestEnv) notify(t *testing.T, orderID, status, fraud, gross string) *http.Response {
	t.Helper()
	n := map[string]string{
		"order_id":           orderID,
		"transaction_status": status,
		"gross_amount":       gross,
		"signature_key":      payment.SnapSignature(orderID, status, gross, serverKey),
		"transaction_id":     "tx-" + orderID,
		"payment_type":       "bank_transfer",
		"status_code":        "200",
	}
	if fraud != "" {
		n["fraud_status"] = fraud
	}
	return env.do(t, http.MethodPost, "/payments/notifications", "", n)
}

func (env *TestEnv) fetchOrder(t *testing.T, token, id string) order.Order {
	t.Helper()
	w := env.do(t, http.MethodGet, "/orders/"+id, token, nil)
	expectStatus(t, w, http.StatusOK)
	return decode[order.Order](t, w)
}

func (env *TestEnv) enrollments(t *testing.T, token string) []enrollment.Enrollment {
	t.Helper()
	w := env.do(t, http.MethodGet, "/enrollments", token, nil)
	expectStatus(t, w, http.StatusOK)
	return decode[[]enrollment.Enrollment](t, w)
}

func (env *TestEnv) countRows(t *testing.T, query string, args ...any) int {
	t.Helper()
	var n int
	if err := env.DB.Get(&n, query, args...); err != nil {
		t.Fatal(err)
	}
	return n
}

func signatureFor(orderID, status, gross string) string {
	return payment.SnapSignature(orderID, status, gross, serverKey)
}

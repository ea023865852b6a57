package test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"github.com/irsalhamdi/course-market/api/web"
	"github.com/midtrans/midtrans-go/snap"
	"github.com/plutov/paypal/v4"
	mock "github.com/stripe/stripe-mock/param"
)

type mockSnap struct {
	mu       sync.Mutex
	fail     bool
	requests []snap.Request
}

func (m *mockSnap) lastRequest() snap.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[len(m.requests)-1]
}

func (m *mockSnap) setFail(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = fail
}

func (m *mockSnap) handle() http.Handler {
	create := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if key, _, ok := r.BasicAuth(); !ok || key != serverKey {
			web.Respond(context.Background(), w, map[string]any{"error_messages": []string{"unauthorized"}}, 401)
			return
		}

		var req snap.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			web.Respond(context.Background(), w, map[string]any{"error_messages": []string{err.Error()}}, 400)
			return
		}

		m.mu.Lock()
		defer m.mu.Unlock()

		if m.fail {
			web.Respond(context.Background(), w, map[string]any{"error_messages": []string{"service unavailable"}}, 503)
			return
		}

		m.requests = append(m.requests, req)
		token := fmt.Sprintf("snap-token-%d", len(m.requests))
		web.Respond(context.Background(), w, map[string]any{
			"token":        token,
			"redirect_url": "https://app.sandbox.midtrans.com/snap/v2/vtweb/" + token,
		}, 201)
	})

	r := mux.NewRouter()
	r.Handle("/snap/v1/transactions", create).Methods("POST")
	return r
}

type mockPaypal struct {
	mu     sync.Mutex
	status string
	units  []paypal.PurchaseUnitRequest
}

func (m *mockPaypal) setStatus(status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = status
}

func (m *mockPaypal) recorded() []paypal.PurchaseUnitRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]paypal.PurchaseUnitRequest(nil), m.units...)
}

func (m *mockPaypal) handle() http.Handler {
	token := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		web.Respond(context.Background(), w, map[string]any{
			"access_token": "paypal-access-token",
			"token_type":   "Bearer",
			"expires_in":   3600,
		}, 200)
	})

	checkout := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var pu struct {
			Units []paypal.PurchaseUnitRequest `json:"purchase_units"`
		}
		if err := json.NewDecoder(r.Body).Decode(&pu); err != nil || len(pu.Units) != 1 {
			web.Respond(context.Background(), w, nil, 400)
			return
		}

		m.mu.Lock()
		m.units = append(m.units, pu.Units[0])
		id := fmt.Sprintf("PAYPAL-%d", len(m.units))
		m.mu.Unlock()

		ord := paypal.Order{
			ID:     id,
			Status: "CREATED",
			Links: []paypal.Link{
				{Href: "https://www.sandbox.paypal.com/checkoutnow?token=" + id, Rel: "approve"},
			},
		}
		web.Respond(context.Background(), w, ord, 201)
	})

	capture := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		status := m.status
		m.mu.Unlock()

		ord := paypal.CaptureOrderResponse{ID: mux.Vars(r)["id"], Status: status}
		web.Respond(context.Background(), w, ord, 201)
	})

	r := mux.NewRouter()
	r.Handle("/v1/oauth2/token", token).Methods("POST")
	r.Handle("/v2/checkout/orders", checkout).Methods("POST")
	r.Handle("/v2/checkout/orders/{id}/capture", capture).Methods("POST")
	return r
}

type mockStripe struct {
	mu          sync.Mutex
	sessions    int
	unitAmounts []string
	references  []string
}

func (m *mockStripe) recorded() (unitAmounts, references []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.unitAmounts...), append([]string(nil), m.references...)
}

func (m *mockStripe) handle() http.Handler {
	checkout := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		params, err := mock.ParseParams(r)
		if err != nil {
			web.Respond(context.Background(), w, nil, 400)
			return
		}

		lines, ok := params["line_items"].(map[string]any)
		if !ok || len(lines) != 1 {
			web.Respond(context.Background(), w, nil, 400)
			return
		}

		m.mu.Lock()
		defer m.mu.Unlock()

		for _, li := range lines {
			it := li.(map[string]any)
			if it["quantity"] != "1" {
				web.Respond(context.Background(), w, nil, 400)
				return
			}
			pd := it["price_data"].(map[string]any)
			m.unitAmounts = append(m.unitAmounts, pd["unit_amount"].(string))
		}

		ref, _ := params["client_reference_id"].(string)
		m.references = append(m.references, ref)

		m.sessions++
		id := fmt.Sprintf("cs_test_%d", m.sessions)
		web.Respond(context.Background(), w, map[string]any{
			"id":                  id,
			"object":              "checkout.session",
			"client_reference_id": ref,
			"url":                 "https://checkout.stripe.com/c/pay/" + id,
		}, 200)
	})

	r := mux.NewRouter()
	r.Handle("/v1/checkout/sessions", checkout).Methods("POST")
	return r
}

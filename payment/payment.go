// Package payment talks to hosted-checkout payment providers.
package payment

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

var ErrUnknownProvider = errors.New("unknown payment provider")

type Customer struct {
	Name  string
	Email string
	Phone string
}

type Item struct {
	ID          string
	Name        string
	Description string
	Price       int64
}

// Checkout describes a single-item purchase to open at a provider. OrderID is
// the provider-facing order id the provider will echo back in notifications.
type Checkout struct {
	OrderID   string
	Amount    int64
	Customer  Customer
	Item      Item
	FinishURL string
}

// Session is what the client needs to render the provider's hosted checkout.
type Session struct {
	Token       string
	RedirectURL string
}

type Gateway interface {
	Name() string

	// PublicKey is the client-safe key the browser widget needs.
	PublicKey() string

	Create(ctx context.Context, c Checkout) (Session, error)
}

// Registry holds the configured gateways and the one used when a request
// does not name a provider.
type Registry struct {
	gateways map[string]Gateway
	fallback string
}

func NewRegistry(fallback string, gws ...Gateway) (*Registry, error) {
	r := &Registry{gateways: make(map[string]Gateway, len(gws)), fallback: fallback}
	for _, gw := range gws {
		r.gateways[gw.Name()] = gw
	}

	if _, ok := r.gateways[fallback]; !ok {
		return nil, fmt.Errorf("default provider %q is not configured: %w", fallback, ErrUnknownProvider)
	}
	return r, nil
}

// Get returns the named gateway, or the default one when name is empty.
func (r *Registry) Get(name string) (Gateway, error) {
	if name == "" {
		name = r.fallback
	}

	gw, ok := r.gateways[name]
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrUnknownProvider)
	}
	return gw, nil
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.gateways))
	for n := range r.gateways {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

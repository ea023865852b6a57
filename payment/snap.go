package payment

import (
	"context"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/snap"
)

const SnapProvider = "midtrans"

// Midtrans rejects item names longer than 50 characters.
const snapItemNameMax = 50

type SnapConfig struct {
	ServerKey  string
	ClientKey  string
	Production bool

	// BaseURL replaces the Midtrans host, for sandboxes and tests. The path
	// the SDK builds (/snap/v1/transactions) is kept.
	BaseURL string

	Timeout time.Duration
}

// Snap creates Midtrans Snap transactions. The server key authenticates us to
// Midtrans and signs its notifications; the client key is public.
type Snap struct {
	client    snap.Client
	serverKey string
	clientKey string
}

func NewSnap(cfg SnapConfig) (*Snap, error) {
	env := midtrans.Sandbox
	if cfg.Production {
		env = midtrans.Production
	}

	var c snap.Client
	c.New(cfg.ServerKey, env)

	hc := &http.Client{Timeout: cfg.Timeout}
	if cfg.BaseURL != "" {
		base, err := url.Parse(cfg.BaseURL)
		if err != nil || base.Host == "" {
			return nil, fmt.Errorf("parsing midtrans base url %q: %v", cfg.BaseURL, err)
		}
		hc.Transport = rewriteHost{base: base, next: http.DefaultTransport}
	}

	impl, ok := c.HttpClient.(*midtrans.HttpClientImplementation)
	if !ok {
		return nil, fmt.Errorf("unexpected midtrans http client %T", c.HttpClient)
	}
	impl.HttpClient = hc

	return &Snap{client: c, serverKey: cfg.ServerKey, clientKey: cfg.ClientKey}, nil
}

func (s *Snap) Name() string { return SnapProvider }

func (s *Snap) PublicKey() string { return s.clientKey }

func (s *Snap) Create(ctx context.Context, c Checkout) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}

	req := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  c.OrderID,
			GrossAmt: c.Amount,
		},
		Items: &[]midtrans.ItemDetails{{
			ID:    c.Item.ID,
			Name:  truncateRunes(c.Item.Name, snapItemNameMax),
			Price: c.Item.Price,
			Qty:   1,
		}},
		CustomerDetail: &midtrans.CustomerDetails{
			FName: c.Customer.Name,
			Email: c.Customer.Email,
			Phone: c.Customer.Phone,
		},
	}
	if c.FinishURL != "" {
		req.Callbacks = &snap.Callbacks{Finish: c.FinishURL}
	}

	resp, merr := s.client.CreateTransaction(req)
	if merr != nil {
		return Session{}, fmt.Errorf("snap returned status %d: %s", merr.StatusCode, merr.Message)
	}
	if resp == nil || resp.Token == "" {
		return Session{}, fmt.Errorf("snap returned no token for order %s", c.OrderID)
	}

	return Session{Token: resp.Token, RedirectURL: resp.RedirectURL}, nil
}

// truncateRunes cuts s to at most n characters without splitting one.
func truncateRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// rewriteHost sends every request to base, keeping the path.
type rewriteHost struct {
	base *url.URL
	next http.RoundTripper
}

func (t rewriteHost) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	r.URL.Scheme = t.base.Scheme
	r.URL.Host = t.base.Host
	r.Host = t.base.Host
	return t.next.RoundTrip(r)
}

// SnapSignature is the hex SHA-512 of the notification's order id,
// transaction status and gross amount followed by the server key.
func SnapSignature(orderID, transactionStatus, grossAmount, serverKey string) string {
	sum := sha512.Sum512([]byte(orderID + transactionStatus + grossAmount + serverKey))
	return hex.EncodeToString(sum[:])
}

// VerifySnapSignature reports whether signature matches the expected digest
// byte for byte.
func VerifySnapSignature(orderID, transactionStatus, grossAmount, serverKey, signature string) bool {
	want := SnapSignature(orderID, transactionStatus, grossAmount, serverKey)
	return subtle.ConstantTimeCompare([]byte(want), []byte(signature)) == 1
}

func (s *Snap) Verify(orderID, transactionStatus, grossAmount, signature string) bool {
	return VerifySnapSignature(orderID, transactionStatus, grossAmount, s.serverKey, signature)
}

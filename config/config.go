package config

import (
	"time"

	"github.com/irsalhamdi/course-market/database"
)

type Config struct {
	Web       Web
	DB        database.Config
	Auth      Auth
	Cors      Cors
	Oauth     Oauth
	Payment   Payment
	Midtrans  Midtrans
	Stripe    Stripe
	Paypal    Paypal
	RateLimit RateLimit
	Redis     Redis
	Events    Events
}

type Web struct {
	Address         string        `conf:"default:0.0.0.0:8000"`
	ReadTimeout     time.Duration `conf:"default:5s"`
	WriteTimeout    time.Duration `conf:"default:10s"`
	IdleTimeout     time.Duration `conf:"default:120s"`
	ShutdownTimeout time.Duration `conf:"default:20s"`
}

type Auth struct {
	SessionLifetime time.Duration `conf:"default:24h"`
	AdminEmail      string
	AdminPassword   string `conf:"mask"`
}

type Cors struct {
	Origin string
}

type Oauth struct {
	DiscoveryTimeout time.Duration `conf:"default:10s"`
	LoginRedirectURL string        `conf:"default:http://localhost:3000/login/callback"`
	Google           OauthProvider
}

type OauthProvider struct {
	Client      string
	Secret      string `conf:"mask"`
	URL         string `conf:"default:https://accounts.google.com"`
	RedirectURL string `conf:"default:http://localhost:8000/auth/oauth-callback/google"`
}

type Payment struct {
	Provider      string        `conf:"default:midtrans"`
	OrderTTL      time.Duration `conf:"default:24h"`
	SweepInterval time.Duration `conf:"default:5m"`
	FinishURL     string        `conf:"default:http://localhost:3000/payment/finish"`
	Timeout       time.Duration `conf:"default:15s"`
}

type Midtrans struct {
	ServerKey  string `conf:"mask"`
	ClientKey  string
	Production bool `conf:"default:false"`
	URL        string
}

type Stripe struct {
	APISecret      string `conf:"mask"`
	PublishableKey string
	WebhookSecret  string `conf:"mask"`
	Currency       string `conf:"default:idr"`
	SuccessURL     string `conf:"default:http://localhost:3000/payment/finish"`
	CancelURL      string `conf:"default:http://localhost:3000/payment/cancel"`
}

type Paypal struct {
	ClientID string
	Secret   string `conf:"mask"`
	URL      string `conf:"default:https://api-m.sandbox.paypal.com"`
	Currency string `conf:"default:USD"`
}

type RateLimit struct {
	CheckoutWindow time.Duration `conf:"default:60s"`
	CheckoutMax    int           `conf:"default:5"`
	AuthBurst      int           `conf:"default:10"`
	AuthInterval   time.Duration `conf:"default:6s"`
	AuthIdle       time.Duration `conf:"default:10m"`
	TrustedProxies []string
}

type Redis struct {
	Address  string
	Password string `conf:"mask"`
	DB       int    `conf:"default:0"`
}

type Events struct {
	URL      string `conf:"mask"`
	Exchange string `conf:"default:course-market"`
}

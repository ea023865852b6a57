package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/irsalhamdi/course-market/api/web"
	"github.com/irsalhamdi/course-market/api/weberr"
	"github.com/irsalhamdi/course-market/core/claims"
	"github.com/irsalhamdi/course-market/core/user"
	"github.com/irsalhamdi/course-market/database"
	"github.com/irsalhamdi/course-market/random"
	"github.com/irsalhamdi/course-market/validate"
	"github.com/jmoiron/sqlx"
	"golang.org/x/oauth2"
)

const stateCookie = "oauth_state"

type ProviderConfig struct {
	Name        string
	Client      string
	Secret      string
	URL         string
	RedirectURL string
}

type Provider struct {
	oauth2.Config
	Verifier *oidc.IDTokenVerifier
}

// MakeProviders runs OpenID discovery for every configured provider. Entries
// without a client id are skipped.
func MakeProviders(ctx context.Context, cfgs []ProviderConfig) (map[string]Provider, error) {
	provs := make(map[string]Provider, len(cfgs))
	for _, cfg := range cfgs {
		if cfg.Client == "" {
			continue
		}

		p, err := oidc.NewProvider(ctx, cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("discovering provider %s: %w", cfg.Name, err)
		}

		provs[cfg.Name] = Provider{
			Config: oauth2.Config{
				ClientID:     cfg.Client,
				ClientSecret: cfg.Secret,
				Endpoint:     p.Endpoint(),
				RedirectURL:  cfg.RedirectURL,
				Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
			},
			Verifier: p.Verifier(&oidc.Config{ClientID: cfg.Client}),
		}
	}
	return provs, nil
}

func HandleOauthLogin(provs map[string]Provider) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		name := web.Param(r, "provider")
		prov, ok := provs[name]
		if !ok {
			return weberr.NotFound(fmt.Errorf("oauth provider %q not configured", name))
		}

		state, err := random.StringSecure(32)
		if err != nil {
			return fmt.Errorf("generating oauth state: %w", err)
		}

		http.SetCookie(w, &http.Cookie{
			Name:     stateCookie,
			Value:    state,
			Path:     "/auth/oauth-callback",
			MaxAge:   int((10 * time.Minute).Seconds()),
			HttpOnly: true,
			Secure:   r.TLS != nil,
			SameSite: http.SameSiteLaxMode,
		})

		http.Redirect(w, r, prov.AuthCodeURL(state), http.StatusFound)
		return nil
	}
}

func HandleOauthCallback(db *sqlx.DB, sm *scs.SessionManager, provs map[string]Provider, redirectURL string) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		name := web.Param(r, "provider")
		prov, ok := provs[name]
		if !ok {
			return weberr.NotFound(fmt.Errorf("oauth provider %q not configured", name))
		}

		c, err := r.Cookie(stateCookie)
		if err != nil || c.Value == "" || c.Value != r.URL.Query().Get("state") {
			return weberr.BadRequest(errors.New("oauth state mismatch"))
		}
		http.SetCookie(w, &http.Cookie{Name: stateCookie, Path: "/auth/oauth-callback", MaxAge: -1})

		code := r.URL.Query().Get("code")
		if code == "" {
			return weberr.BadRequest(errors.New("missing oauth code"))
		}

		tok, err := prov.Exchange(ctx, code)
		if err != nil {
			return weberr.NotAuthorized(fmt.Errorf("exchanging oauth code: %w", err))
		}

		raw, ok := tok.Extra("id_token").(string)
		if !ok {
			return weberr.NotAuthorized(errors.New("oauth token has no id_token"))
		}

		idt, err := prov.Verifier.Verify(ctx, raw)
		if err != nil {
			return weberr.NotAuthorized(fmt.Errorf("verifying id token: %w", err))
		}

		var info struct {
			Email    string `json:"email"`
			Verified bool   `json:"email_verified"`
			Name     string `json:"name"`
		}
		if err := idt.Claims(&info); err != nil {
			return fmt.Errorf("decoding id token claims: %w", err)
		}
		if info.Email == "" || !info.Verified {
			return weberr.NotAuthorized(errors.New("oauth account has no verified email"))
		}

		usr, err := findOrCreate(ctx, db, info.Email, info.Name)
		if err != nil {
			return err
		}

		tkn, err := Issue(ctx, sm, usr)
		if err != nil {
			return err
		}

		frag := url.Values{}
		frag.Set("token", tkn.Token)
		frag.Set("expiresAt", tkn.ExpiresAt.Format(time.RFC3339))
		http.Redirect(w, r, redirectURL+"#"+frag.Encode(), http.StatusFound)
		return nil
	}
}

func findOrCreate(ctx context.Context, db *sqlx.DB, email, name string) (user.User, error) {
	email = strings.ToLower(email)

	usr, err := user.FetchByEmail(ctx, db, email)
	if err == nil {
		return usr, nil
	}
	if !errors.Is(err, database.ErrDBNotFound) {
		return user.User{}, fmt.Errorf("fetching oauth user: %w", err)
	}

	if name == "" {
		name = email
	}

	now := time.Now().UTC()
	usr = user.User{
		ID:        validate.GenerateID(),
		Name:      name,
		Email:     email,
		Role:      claims.RoleUser,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := user.Create(ctx, db, usr); err != nil {
		if errors.Is(err, database.ErrDBDuplicatedEntry) {
			return user.FetchByEmail(ctx, db, email)
		}
		return user.User{}, fmt.Errorf("creating oauth user: %w", err)
	}
	return usr, nil
}

// Package auth issues and checks bearer credentials. A bearer token is an scs
// session token: the session holds the user id and role.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/irsalhamdi/course-market/api/web"
	"github.com/irsalhamdi/course-market/api/weberr"
	"github.com/irsalhamdi/course-market/core/claims"
	"github.com/irsalhamdi/course-market/core/user"
)

const (
	userIDKey = "userID"
	roleKey   = "role"
)

var ErrMissingToken = errors.New("missing bearer token")

type Token struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Issue starts a new session for usr and returns its token.
func Issue(ctx context.Context, sm *scs.SessionManager, usr user.User) (Token, error) {
	ctx, err := sm.Load(ctx, "")
	if err != nil {
		return Token{}, fmt.Errorf("loading new session: %w", err)
	}

	sm.Put(ctx, userIDKey, usr.ID)
	sm.Put(ctx, roleKey, usr.Role)

	tkn, expiry, err := sm.Commit(ctx)
	if err != nil {
		return Token{}, fmt.Errorf("committing session for user[%s]: %w", usr.ID, err)
	}

	return Token{Token: tkn, ExpiresAt: expiry.UTC()}, nil
}

func bearer(r *http.Request) (string, error) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return "", ErrMissingToken
	}

	scheme, tkn, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(tkn) == "" {
		return "", errors.New("malformed authorization header")
	}
	return strings.TrimSpace(tkn), nil
}

// Authenticate resolves the bearer token to claims, rejecting the request
// when the token is missing or does not name a live session.
func Authenticate(sm *scs.SessionManager) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			tkn, err := bearer(r)
			if err != nil {
				return weberr.NotAuthorized(err)
			}

			ctx, err = sm.Load(ctx, tkn)
			if err != nil {
				return fmt.Errorf("loading session: %w", err)
			}

			userID := sm.GetString(ctx, userIDKey)
			if userID == "" {
				return weberr.NotAuthorized(errors.New("unknown or expired session"))
			}

			ctx = claims.Set(ctx, claims.Claims{
				UserID: userID,
				Role:   sm.GetString(ctx, roleKey),
				Token:  tkn,
			})

			return handler(ctx, w, r.WithContext(ctx))
		}
		return h
	}
	return m
}

func Admin(sm *scs.SessionManager) web.Middleware {
	admin := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			if !claims.IsAdmin(ctx) {
				return weberr.Forbidden(errors.New("admin role required"))
			}
			return handler(ctx, w, r)
		}
		return h
	}

	authen := Authenticate(sm)
	return func(handler web.Handler) web.Handler {
		return authen(admin(handler))
	}
}

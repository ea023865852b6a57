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
	"github.com/irsalhamdi/course-market/database"
	"github.com/irsalhamdi/course-market/validate"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"
)

var errBadCredentials = errors.New("invalid email or password")

func HandleSignup(db *sqlx.DB, sm *scs.SessionManager) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var in user.UserSignup
		if err := web.Decode(w, r, &in); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(in); err != nil {
			return weberr.Invalid(err)
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("generating password hash: %w", err)
		}

		now := time.Now().UTC()
		usr := user.User{
			ID:           validate.GenerateID(),
			Name:         in.Name,
			Email:        strings.ToLower(in.Email),
			Phone:        in.Phone,
			Role:         claims.RoleUser,
			PasswordHash: hash,
			Active:       true,
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		if err := user.Create(ctx, db, usr); err != nil {
			if errors.Is(err, database.ErrDBDuplicatedEntry) {
				return weberr.Invalid(errors.New("email is already registered"))
			}
			return fmt.Errorf("creating user: %w", err)
		}

		tkn, err := Issue(ctx, sm, usr)
		if err != nil {
			return err
		}

		return web.Respond(ctx, w, tkn, http.StatusCreated)
	}
}

func HandleLogin(db *sqlx.DB, sm *scs.SessionManager) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var in user.UserLogin
		if err := web.Decode(w, r, &in); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(in); err != nil {
			return weberr.Invalid(err)
		}

		usr, err := user.FetchByEmail(ctx, db, strings.ToLower(in.Email))
		if err != nil {
			if errors.Is(err, database.ErrDBNotFound) {
				return weberr.NewError(err, errBadCredentials.Error(), http.StatusUnauthorized)
			}
			return fmt.Errorf("fetching user: %w", err)
		}

		if len(usr.PasswordHash) == 0 || !usr.Active {
			return weberr.NewError(errBadCredentials, errBadCredentials.Error(), http.StatusUnauthorized)
		}

		if err := bcrypt.CompareHashAndPassword(usr.PasswordHash, []byte(in.Password)); err != nil {
			return weberr.NewError(err, errBadCredentials.Error(), http.StatusUnauthorized)
		}

		tkn, err := Issue(ctx, sm, usr)
		if err != nil {
			return err
		}

		return web.Respond(ctx, w, tkn, http.StatusOK)
	}
}

func HandleLogout(sm *scs.SessionManager) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		if err := sm.Destroy(ctx); err != nil {
			return fmt.Errorf("destroying session: %w", err)
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

// EnsureAdmin creates the bootstrap admin account when it does not exist yet.
func EnsureAdmin(ctx context.Context, db *sqlx.DB, email, password string) error {
	email = strings.ToLower(email)
	if _, err := user.FetchByEmail(ctx, db, email); err == nil {
		return nil
	} else if !errors.Is(err, database.ErrDBNotFound) {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("generating password hash: %w", err)
	}

	now := time.Now().UTC()
	usr := user.User{
		ID:           validate.GenerateID(),
		Name:         "admin",
		Email:        email,
		Role:         claims.RoleAdmin,
		PasswordHash: hash,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := user.Create(ctx, db, usr); err != nil && !errors.Is(err, database.ErrDBDuplicatedEntry) {
		return err
	}
	return nil
}

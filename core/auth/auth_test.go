package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alexedwards/scs/v2"
	"github.com/irsalhamdi/course-market/api/weberr"
	"github.com/irsalhamdi/course-market/core/claims"
	"github.com/irsalhamdi/course-market/core/user"
)

func TestAuthenticate(t *testing.T) {
	sm := scs.New()

	tkn, err := Issue(context.Background(), sm, user.User{ID: "u-1", Role: claims.RoleUser})
	if err != nil {
		t.Fatal(err)
	}
	if tkn.Token == "" {
		t.Fatal("expected a token")
	}

	var got claims.Claims
	h := Authenticate(sm)(func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		got, err = claims.Get(ctx)
		return err
	})

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"valid token", "Bearer " + tkn.Token, 0},
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + tkn.Token, http.StatusUnauthorized},
		{"unknown token", "Bearer not-a-session", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/users/current", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}

			herr := h(r.Context(), httptest.NewRecorder(), r)
			if tt.status == 0 {
				if herr != nil {
					t.Fatalf("unexpected error: %v", herr)
				}
				if got.UserID != "u-1" || got.Role != claims.RoleUser {
					t.Fatalf("unexpected claims %+v", got)
				}
				return
			}

			_, status, ok := weberr.Response(herr)
			if !ok || status != tt.status {
				t.Fatalf("expected status %d, got %d (%v)", tt.status, status, herr)
			}
		})
	}
}

func TestAdmin(t *testing.T) {
	sm := scs.New()
	ctx := context.Background()

	usr, _ := Issue(ctx, sm, user.User{ID: "u-1", Role: claims.RoleUser})
	adm, _ := Issue(ctx, sm, user.User{ID: "u-2", Role: claims.RoleAdmin})

	h := Admin(sm)(func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		return nil
	})

	r := httptest.NewRequest(http.MethodPost, "/courses", nil)
	r.Header.Set("Authorization", "Bearer "+usr.Token)
	if _, status, _ := weberr.Response(h(r.Context(), httptest.NewRecorder(), r)); status != http.StatusForbidden {
		t.Fatalf("expected 403 for a regular user, got %d", status)
	}

	r.Header.Set("Authorization", "Bearer "+adm.Token)
	if err := h(r.Context(), httptest.NewRecorder(), r); err != nil {
		t.Fatalf("expected admin to pass, got %v", err)
	}
}

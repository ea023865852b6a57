package weberr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestResponseSurvivesWrapping(t *testing.T) {
	base := errors.New("course is free")
	err := fmt.Errorf("checkout: %w", Invalid(base, WithFields(map[string]interface{}{"course_id": "c1"})))

	body, status, ok := Response(err)
	if !ok {
		t.Fatal("expected a response to be found")
	}
	if status != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", status)
	}
	if diff := cmp.Diff(&ErrorResponse{Error: "course is free"}, body); diff != "" {
		t.Fatalf("unexpected body (-want +got):\n%s", diff)
	}

	fields, ok := Fields(err)
	if !ok || fields["course_id"] != "c1" {
		t.Fatalf("expected fields to be found, got %v", fields)
	}

	if !errors.Is(err, base) {
		t.Fatal("expected the original error to be reachable")
	}
}

func TestTooManyRequests(t *testing.T) {
	err := TooManyRequests(errors.New("limited"), 41500*time.Millisecond)

	h, ok := Headers(err)
	if !ok {
		t.Fatal("expected headers")
	}
	if h["Retry-After"] != "42" {
		t.Fatalf("expected Retry-After 42, got %q", h["Retry-After"])
	}

	body, status, _ := Response(err)
	if status != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", status)
	}
	if got := body.(*ErrorResponse).RetryAfter; got != 42 {
		t.Fatalf("expected retryAfter 42, got %d", got)
	}
}

func TestLayersMerge(t *testing.T) {
	inner := Wrap(errors.New("declined"),
		WithFields(map[string]interface{}{"order_id": "o1", "provider": "paypal"}),
		WithHeaders(map[string]string{"X-Provider": "paypal"}),
		WithResponse("inner", http.StatusBadGateway),
	)
	err := Wrap(fmt.Errorf("capture: %w", inner),
		WithFields(map[string]interface{}{"provider": "midtrans", "attempt": 2}),
		WithHeaders(map[string]string{"Retry-After": "5"}),
		WithResponse("outer", http.StatusServiceUnavailable),
	)

	fields, ok := Fields(err)
	if !ok {
		t.Fatal("expected fields")
	}
	want := map[string]interface{}{"order_id": "o1", "provider": "midtrans", "attempt": 2}
	if diff := cmp.Diff(want, fields); diff != "" {
		t.Fatalf("unexpected fields (-want +got):\n%s", diff)
	}

	headers, _ := Headers(err)
	if diff := cmp.Diff(map[string]string{"X-Provider": "paypal", "Retry-After": "5"}, headers); diff != "" {
		t.Fatalf("unexpected headers (-want +got):\n%s", diff)
	}

	body, status, _ := Response(err)
	if body != "outer" || status != http.StatusServiceUnavailable {
		t.Fatalf("expected the outer response, got %v %d", body, status)
	}

	if _, ok := Fields(errors.New("plain")); ok {
		t.Fatal("expected no fields on a plain error")
	}
}

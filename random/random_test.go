package random

import (
	"strings"
	"testing"
)

func TestStringSecure(t *testing.T) {
	s, err := StringSecure(32)
	if err != nil {
		t.Fatal(err)
	}
	if len(s) != 32 {
		t.Fatalf("expected length 32, got %d", len(s))
	}
	for _, r := range s {
		if !strings.ContainsRune(charset, r) {
			t.Fatalf("unexpected rune %q in %q", r, s)
		}
	}
}

func TestCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		c, err := Code(8)
		if err != nil {
			t.Fatal(err)
		}
		if strings.ToUpper(c) != c {
			t.Fatalf("code %q is not upper case", c)
		}
		seen[c] = true
	}
	if len(seen) < 99 {
		t.Fatalf("too many collisions: %d distinct codes", len(seen))
	}
}

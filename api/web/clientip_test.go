package web

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientIPResolve(t *testing.T) {
	ips, err := NewClientIP([]string{"10.0.0.0/8", "192.0.2.1"})
	require.NoError(t, err)

	tests := []struct {
		name   string
		remote string
		xff    []string
		want   string
	}{
		{"no proxy", "203.0.113.9:4000", nil, "203.0.113.9"},
		{"untrusted peer ignores header", "203.0.113.9:4000", []string{"198.51.100.1"}, "203.0.113.9"},
		{"trusted peer", "10.1.2.3:4000", []string{"198.51.100.1"}, "198.51.100.1"},
		{"spoofed prefix is skipped", "10.1.2.3:4000", []string{"1.1.1.1, 198.51.100.1"}, "198.51.100.1"},
		{"chain of trusted hops", "10.1.2.3:4000", []string{"198.51.100.1, 192.0.2.1", "10.9.9.9"}, "198.51.100.1"},
		{"garbage hop", "10.1.2.3:4000", []string{"not-an-ip"}, "10.1.2.3"},
		{"trusted peer without header", "192.0.2.1:4000", nil, "192.0.2.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remote
			for _, v := range tt.xff {
				r.Header.Add("X-Forwarded-For", v)
			}
			assert.Equal(t, tt.want, ips.Resolve(r))
		})
	}
}

func TestClientIPWithoutProxies(t *testing.T) {
	var ips *ClientIP

	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "203.0.113.9:4000"
	r.Header.Set("X-Forwarded-For", "198.51.100.1")

	assert.Equal(t, "203.0.113.9", ips.Resolve(r))
}

func TestNewClientIPRejectsBadEntries(t *testing.T) {
	_, err := NewClientIP([]string{"10.0.0.0/33"})
	assert.Error(t, err)

	_, err = NewClientIP([]string{"proxy.internal"})
	assert.Error(t, err)
}

package request

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/benvon/focus-companion/internal/models"
)

func TestClientIP(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded single hop", map[string]string{"X-Forwarded-For": "203.0.113.7"}, "10.0.0.1:5000", "203.0.113.7"},
		{"forwarded takes first hop", map[string]string{"X-Forwarded-For": " 203.0.113.7 , 10.1.1.1"}, "10.0.0.1:5000", "203.0.113.7"},
		{"forwarded garbage falls back", map[string]string{"X-Forwarded-For": "unknown", "X-Real-IP": "198.51.100.2"}, "10.0.0.1:5000", "198.51.100.2"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.2"}, "10.0.0.1:5000", "198.51.100.2"},
		{"remote strips port", nil, "10.0.0.1:5000", "10.0.0.1"},
		{"remote ipv6", nil, "[2001:db8::1]:443", "2001:db8::1"},
		{"remote without port", nil, "10.0.0.9", "10.0.0.9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := ClientIP(r); got != tt.want {
				t.Errorf("ClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUserFromContext(t *testing.T) {
	t.Parallel()
	caller := &models.User{ID: "sam@example.com", Email: "sam@example.com"}

	tests := []struct {
		name   string
		ctx    context.Context
		want   *models.User
		wantID string
	}{
		{"caller set", WithUser(context.Background(), caller), caller, "sam@example.com"},
		{"anonymous", context.Background(), nil, ""},
		{"wrong type", context.WithValue(context.Background(), UserContextKey(), "sam"), nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := httptest.NewRequest("GET", "/", nil).WithContext(tt.ctx)
			if got := UserFromContext(r); got != tt.want {
				t.Errorf("UserFromContext() = %+v, want %+v", got, tt.want)
			}
			if got := UserID(r); got != tt.wantID {
				t.Errorf("UserID() = %q, want %q", got, tt.wantID)
			}
		})
	}
}

func TestRequestID(t *testing.T) {
	t.Parallel()
	if got := RequestID(context.Background()); got != "" {
		t.Errorf("RequestID() = %q, want empty", got)
	}
	if got := RequestID(WithRequestID(context.Background(), "req-9")); got != "req-9" {
		t.Errorf("RequestID() = %q, want req-9", got)
	}
}

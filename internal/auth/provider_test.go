package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestTokenConcurrentCallersShareOneExchange(t *testing.T) {
	var exchanges int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&exchanges, 1)
		json.NewEncoder(w).Encode(map[string]string{"token": "tok-1"})
	}))
	defer srv.Close()

	p := NewProvider(srv.URL, "user", "pass")

	var wg sync.WaitGroup
	tokens := make([]string, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tok, err := p.Token(context.Background(), false)
			if err != nil {
				t.Errorf("Token() error: %v", err)
				return
			}
			tokens[i] = tok
		}(i)
	}
	wg.Wait()

	if got := atomic.LoadInt32(&exchanges); got != 1 {
		t.Fatalf("expected exactly 1 credential exchange, got %d", got)
	}
	for i, tok := range tokens {
		if tok != "tok-1" {
			t.Fatalf("caller %d got token %q, want tok-1", i, tok)
		}
	}
}

func TestTokenSendsBasicAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "MHPL.API" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"Token": "tok-basic"})
	}))
	defer srv.Close()

	p := NewProvider(srv.URL, "MHPL.API", "secret")
	tok, err := p.Token(context.Background(), false)
	if err != nil {
		t.Fatalf("Token() error: %v", err)
	}
	if tok != "tok-basic" {
		t.Fatalf("got token %q, want tok-basic", tok)
	}
}

func TestInvalidateForcesNewExchange(t *testing.T) {
	var exchanges int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&exchanges, 1)
		json.NewEncoder(w).Encode(map[string]string{"token": "tok-" + string(rune('0'+n))})
	}))
	defer srv.Close()

	p := NewProvider(srv.URL, "u", "p")
	first, err := p.Token(context.Background(), false)
	if err != nil {
		t.Fatalf("first Token() error: %v", err)
	}

	p.Invalidate()

	second, err := p.Token(context.Background(), false)
	if err != nil {
		t.Fatalf("second Token() error: %v", err)
	}
	if first == second {
		t.Fatalf("expected a fresh token after Invalidate, got %q twice", first)
	}
	if got := atomic.LoadInt32(&exchanges); got != 2 {
		t.Fatalf("expected 2 exchanges, got %d", got)
	}
}

func TestTokenErrorOnAuthFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	p := NewProvider(srv.URL, "u", "wrong")
	if _, err := p.Token(context.Background(), false); err == nil {
		t.Fatal("expected an error for a 401 auth response")
	}
}

func TestExtractToken(t *testing.T) {
	tests := []struct {
		name    string
		payload map[string]interface{}
		want    string
	}{
		{
			name:    "plain token key",
			payload: map[string]interface{}{"token": "abc"},
			want:    "abc",
		},
		{
			name:    "capitalized key wins over later candidates",
			payload: map[string]interface{}{"Token": "upper", "access_token": "lower"},
			want:    "upper",
		},
		{
			name: "nested items array",
			payload: map[string]interface{}{
				"items": []interface{}{
					map[string]interface{}{"access_token": "nested"},
				},
			},
			want: "nested",
		},
		{
			name:    "html error page rejected",
			payload: map[string]interface{}{"token": "<html>Service Unavailable</html>"},
			want:    "",
		},
		{
			name:    "blank token rejected",
			payload: map[string]interface{}{"token": "   "},
			want:    "",
		},
		{
			name:    "no candidates",
			payload: map[string]interface{}{"status": "ok"},
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractToken(tt.payload); got != tt.want {
				t.Errorf("extractToken() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTokenExpiry(t *testing.T) {
	exp := time.Now().Add(2 * time.Hour).Truncate(time.Second)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": exp.Unix(),
	}).SignedString([]byte("test-key"))
	if err != nil {
		t.Fatalf("sign test token: %v", err)
	}

	if got := tokenExpiry(signed); !got.Equal(exp) {
		t.Errorf("jwt expiry = %v, want %v", got, exp)
	}

	got := tokenExpiry("opaque-token")
	wantAround := time.Now().Add(fallbackTTL)
	if got.Before(wantAround.Add(-time.Minute)) || got.After(wantAround.Add(time.Minute)) {
		t.Errorf("opaque token expiry = %v, want about %v", got, wantAround)
	}
}

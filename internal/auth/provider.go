package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// expiryMargin is subtracted from the token expiry when judging validity so
// a token is never used in the last moments of its life.
const expiryMargin = 60 * time.Second

// fallbackTTL is assumed when the issued token carries no exp claim.
const fallbackTTL = 24 * time.Hour

// Provider obtains and caches a bearer token for the analytics upstream.
// It is safe for concurrent use: at most one credential exchange is in
// flight at a time, and all waiting callers observe the same resolved token.
type Provider struct {
	authURL  string
	username string
	password string
	client   *http.Client

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// NewProvider creates a credential provider for the given auth endpoint.
func NewProvider(authURL, username, password string) *Provider {
	return &Provider{
		authURL:  authURL,
		username: username,
		password: password,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

// Token returns a valid bearer token, exchanging credentials when the cache
// is empty or expired. forceRefresh bypasses the cache entirely.
func (p *Provider) Token(ctx context.Context, forceRefresh bool) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !forceRefresh && p.cachedValid() {
		return p.token, nil
	}

	token, err := p.exchange(ctx)
	if err != nil {
		return "", err
	}

	p.token = token
	p.expiresAt = tokenExpiry(token)
	return token, nil
}

// Invalidate drops the cached token. The next Token call performs a fresh
// exchange; concurrent callers after an Invalidate share that one exchange.
func (p *Provider) Invalidate() {
	p.mu.Lock()
	p.token = ""
	p.expiresAt = time.Time{}
	p.mu.Unlock()
}

func (p *Provider) cachedValid() bool {
	return p.token != "" && time.Now().Before(p.expiresAt.Add(-expiryMargin))
}

// exchange performs the Basic-auth credential exchange. Callers must hold mu.
func (p *Provider) exchange(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.authURL, nil)
	if err != nil {
		return "", fmt.Errorf("build auth request: %w", err)
	}
	basic := base64.StdEncoding.EncodeToString([]byte(p.username + ":" + p.password))
	req.Header.Set("Authorization", "Basic "+basic)
	req.Header.Set("Accept", "application/json, */*")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("auth request failed: %w", err)
	}
	defer resp.Body.Close()

	rawBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read auth response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("auth failed (%d %s)", resp.StatusCode, strings.TrimSpace(resp.Status))
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		return "", fmt.Errorf("auth response is not JSON: %w", err)
	}

	token := extractToken(payload)
	if token == "" {
		return "", fmt.Errorf("no bearer token found in auth response")
	}
	return token, nil
}

// extractToken looks for the issued token under the key spellings the auth
// endpoint has been observed to use, including a nested items array. Values
// containing markup are rejected (HTML error pages leak into token fields).
func extractToken(payload map[string]interface{}) string {
	for _, key := range []string{"Token", "token", "access_token", "bearer"} {
		if v, ok := payload[key].(string); ok {
			trimmed := strings.TrimSpace(v)
			if trimmed != "" && !strings.ContainsAny(trimmed, "<>") {
				return trimmed
			}
		}
	}
	if items, ok := payload["items"].([]interface{}); ok {
		for _, item := range items {
			if m, ok := item.(map[string]interface{}); ok {
				if token := extractToken(m); token != "" {
					return token
				}
			}
		}
	}
	return ""
}

// tokenExpiry reads the exp claim from a JWT without verifying the
// signature; non-JWT tokens fall back to a fixed TTL.
func tokenExpiry(token string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			return exp.Time
		}
	}
	return time.Now().Add(fallbackTTL)
}

package endpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"hospital-kpi-pipeline/internal/model"
)

const maxAttempts = 2

// TokenSource supplies bearer tokens for upstream calls. auth.Provider
// implements it; tests substitute a fake.
type TokenSource interface {
	Token(ctx context.Context, forceRefresh bool) (string, error)
	Invalidate()
}

// Client issues one HTTP call per endpoint with timeout, retry and
// token-refresh semantics. Every failure mode resolves to an
// EndpointResult failure; Call never panics past its boundary.
type Client struct {
	baseURL     string
	tokens      TokenSource
	http        *http.Client
	baseTimeout time.Duration
	// backoff returns the pause before the given retry attempt; replaced
	// in tests to avoid real sleeps.
	backoff func(attempt int) time.Duration
}

// NewClient creates an endpoint client. baseTimeout is the standard budget
// for attempt 1; slow endpoints get double, and every budget scales
// linearly with the attempt number.
func NewClient(baseURL string, tokens TokenSource, baseTimeout time.Duration) *Client {
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		tokens:      tokens,
		http:        &http.Client{},
		baseTimeout: baseTimeout,
		backoff:     func(attempt int) time.Duration { return time.Duration(attempt) * time.Second },
	}
}

func (c *Client) timeoutBudget(ep Endpoint, attempt int) time.Duration {
	base := c.baseTimeout
	if ep.Slow {
		base *= 2
	}
	return base * time.Duration(attempt)
}

// Call fetches one endpoint with the resolved parameters attached as
// request headers. Transport failures and timeouts are retried with linear
// backoff; well-formed upstream business errors are terminal; a 401/403
// triggers one token refresh and one same-request retry.
func (c *Client) Call(ctx context.Context, endpointID string, params map[string]string) model.EndpointResult {
	ep, ok := Registry[endpointID]
	if !ok {
		return failure(endpointID, params, model.ErrUnknownEndpoint, fmt.Sprintf("unknown endpoint: %s", endpointID))
	}

	token, err := c.tokens.Token(ctx, false)
	if err != nil {
		return failure(endpointID, params, model.ErrAuth, fmt.Sprintf("no authentication token available: %v", err))
	}

	attempt := 1
	authRetried := false

	for {
		status, body, err := c.doRequest(ctx, ep, params, token, attempt)
		if err != nil {
			kind := model.ErrNetwork
			if errors.Is(err, context.DeadlineExceeded) {
				kind = model.ErrTimeout
			}
			if attempt >= maxAttempts {
				return failure(endpointID, params, kind, err.Error())
			}
			fmt.Printf("⚠️ [%s] attempt %d/%d failed: %v\n", endpointID, attempt, maxAttempts, err)
			select {
			case <-ctx.Done():
				return failure(endpointID, params, model.ErrTimeout, ctx.Err().Error())
			case <-time.After(c.backoff(attempt)):
			}
			attempt++
			continue
		}

		switch {
		case status == http.StatusUnauthorized || status == http.StatusForbidden:
			if authRetried {
				return failure(endpointID, params, model.ErrUnauthorized, "authentication failed after token refresh")
			}
			c.tokens.Invalidate()
			token, err = c.tokens.Token(ctx, false)
			if err != nil {
				return failure(endpointID, params, model.ErrAuth, fmt.Sprintf("token refresh failed: %v", err))
			}
			authRetried = true
			continue

		case status == 555:
			// Upstream's "invalid parameter combination" status; terminal.
			return failure(endpointID, params, model.ErrServer, "upstream rejected parameter combination (555)")

		case status >= 500:
			return failure(endpointID, params, model.ErrServer, fmt.Sprintf("upstream server error: %d", status))

		case status >= 400:
			return failure(endpointID, params, model.ErrServer,
				fmt.Sprintf("request rejected (%d): %s", status, bodyPreview(body)))
		}

		payload, perr := decodePayload(body)
		if perr != nil {
			return failure(endpointID, params, model.ErrParse, perr.Error())
		}
		return model.EndpointResult{
			EndpointID: endpointID,
			Success:    true,
			Payload:    payload,
			Params:     params,
		}
	}
}

func (c *Client) doRequest(ctx context.Context, ep Endpoint, params map[string]string, token string, attempt int) (int, []byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeoutBudget(ep, attempt))
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, c.baseURL+ep.Path, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "KPI-Pipeline/1.0")
	// The upstream reads parameters from request headers, not the query
	// string; this is a binding contract of the analytics system.
	for k, v := range params {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if reqCtx.Err() != nil {
			return 0, nil, fmt.Errorf("request timed out after %v: %w", c.timeoutBudget(ep, attempt), context.DeadlineExceeded)
		}
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if reqCtx.Err() != nil {
			return 0, nil, fmt.Errorf("response read timed out: %w", context.DeadlineExceeded)
		}
		return 0, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

// decodePayload parses a 2xx body. Objects are returned as-is; a top-level
// array is wrapped under "items" so downstream always sees a record.
func decodePayload(body []byte) (model.GenericRecord, error) {
	trimmed := strings.TrimSpace(string(body))
	if !strings.HasPrefix(trimmed, "{") && !strings.HasPrefix(trimmed, "[") {
		return nil, fmt.Errorf("response body is not JSON: %s", bodyPreview(body))
	}

	var raw interface{}
	if err := json.Unmarshal([]byte(trimmed), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse server response: %w", err)
	}

	switch data := raw.(type) {
	case map[string]interface{}:
		return data, nil
	case []interface{}:
		return model.GenericRecord{"items": data}, nil
	default:
		return nil, fmt.Errorf("unexpected JSON structure")
	}
}

func bodyPreview(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200] + "…"
	}
	if s == "" {
		s = "<empty body>"
	}
	return s
}

func failure(endpointID string, params map[string]string, kind model.ErrorKind, msg string) model.EndpointResult {
	return model.EndpointResult{
		EndpointID: endpointID,
		Params:     params,
		Kind:       kind,
		Message:    msg,
	}
}

package crm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// earlyRefresh is subtracted from the token lifetime so a token is never
// presented to the CRM within a minute of its expiry.
const earlyRefresh = time.Minute

// TokenSource obtains and caches a client-credentials access token. Every
// CRM request carries an explicit token from here; nothing reads ambient
// credentials.
type TokenSource struct {
	HTTP         *http.Client
	TokenURL     string
	ClientID     string
	ClientSecret string
	Now          func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// Token returns a valid access token, refreshing it when the cached one is
// missing or about to expire.
func (t *TokenSource) Token(ctx context.Context) (string, error) {
	if t == nil {
		return "", errors.New("crm: token source not configured")
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	if t.Now != nil {
		now = t.Now()
	}
	if t.token != "" && now.Before(t.expiresAt) {
		return t.token, nil
	}

	token, ttl, err := t.fetch(ctx)
	if err != nil {
		return "", err
	}
	t.token = token
	t.expiresAt = now.Add(ttl - earlyRefresh)
	if ttl <= earlyRefresh {
		t.expiresAt = now.Add(ttl / 2)
	}
	return t.token, nil
}

// Invalidate drops the cached token so the next call fetches a fresh one.
// Called after the CRM answers 401 on a request.
func (t *TokenSource) Invalidate() {
	t.mu.Lock()
	t.token = ""
	t.expiresAt = time.Time{}
	t.mu.Unlock()
}

func (t *TokenSource) fetch(ctx context.Context) (string, time.Duration, error) {
	client := t.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", t.ClientID)
	form.Set("client_secret", t.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, fmt.Errorf("crm: build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := client.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("crm: token request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", 0, fmt.Errorf("crm: read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("crm: token endpoint returned %s", resp.Status)
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", 0, fmt.Errorf("crm: decode token response: %w", err)
	}
	if strings.TrimSpace(payload.AccessToken) == "" {
		return "", 0, errors.New("crm: token response missing access_token")
	}
	ttl := time.Duration(payload.ExpiresIn) * time.Second
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return payload.AccessToken, ttl, nil
}

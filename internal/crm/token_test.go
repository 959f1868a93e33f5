package crm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTokenSourceCachesUntilExpiry(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		require.NoError(t, r.ParseForm())
		require.Equal(t, "client_credentials", r.Form.Get("grant_type"))
		require.Equal(t, "client-1", r.Form.Get("client_id"))
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "tok-abc", "expires_in": 3600})
	}))
	defer srv.Close()

	now := time.Now()
	ts := &TokenSource{
		HTTP:         srv.Client(),
		TokenURL:     srv.URL,
		ClientID:     "client-1",
		ClientSecret: "secret",
		Now:          func() time.Time { return now },
	}

	tok, err := ts.Token(context.Background())
	require.NoError(t, err)
	require.Equal(t, "tok-abc", tok)

	tok, err = ts.Token(context.Background())
	require.NoError(t, err)
	require.Equal(t, "tok-abc", tok)
	require.Equal(t, int32(1), atomic.LoadInt32(&calls))

	// Jump past expiry; the source must fetch again.
	now = now.Add(2 * time.Hour)
	_, err = ts.Token(context.Background())
	require.NoError(t, err)
	require.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestTokenSourceInvalidate(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "tok", "expires_in": 3600})
	}))
	defer srv.Close()

	ts := &TokenSource{HTTP: srv.Client(), TokenURL: srv.URL, ClientID: "c", ClientSecret: "s"}
	_, err := ts.Token(context.Background())
	require.NoError(t, err)
	ts.Invalidate()
	_, err = ts.Token(context.Background())
	require.NoError(t, err)
	require.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestTokenSourceRejectsEmptyToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": ""})
	}))
	defer srv.Close()

	ts := &TokenSource{HTTP: srv.Client(), TokenURL: srv.URL, ClientID: "c", ClientSecret: "s"}
	_, err := ts.Token(context.Background())
	require.Error(t, err)
}

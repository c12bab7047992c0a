package wechat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/i474232898/weather-report/internal/fetch"
	"github.com/i474232898/weather-report/internal/store"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newDoer(t *testing.T, ts *httptest.Server) *fetch.Fetcher {
	t.Helper()
	return fetch.New(ts.Client(), fetch.Policy{MaxAttempts: 1, Timeout: 2 * time.Second}, zaptest.NewLogger(t))
}

// tokenServer issues tok-1, tok-2, ... and fails while failing is set.
func tokenServer(t *testing.T, failing *atomic.Bool) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		q := r.URL.Query()
		if q.Get("grant_type") != "client_credential" || q.Get("appid") != "app" || q.Get("secret") != "secret" {
			t.Errorf("unexpected query %q", r.URL.RawQuery)
		}
		if failing != nil && failing.Load() {
			fmt.Fprint(w, `{"errcode":40013,"errmsg":"invalid appid"}`)
			return
		}
		fmt.Fprintf(w, `{"access_token":"tok-%d","expires_in":7200}`, n)
	}))
	t.Cleanup(ts.Close)
	return ts, &calls
}

func newManager(t *testing.T, ts *httptest.Server, tokens TokenStore, c *clock) *TokenManager {
	t.Helper()
	return NewTokenManager(
		newDoer(t, ts),
		Credentials{AppID: " app ", AppSecret: "secret\n"},
		tokens,
		zaptest.NewLogger(t),
		WithTokenEndpoint(ts.URL+"/cgi-bin/token"),
		WithSafetyMargin(300*time.Second),
		WithClock(c.now),
	)
}

func TestTokenCachedUntilMargin(t *testing.T) {
	ts, calls := tokenServer(t, nil)
	c := &clock{t: time.Date(2026, 10, 17, 7, 0, 0, 0, time.UTC)}
	m := newManager(t, ts, store.NewMemoryStore(), c)
	ctx := context.Background()

	first, err := m.Token(ctx, false)
	if err != nil {
		t.Fatalf("first token: %v", err)
	}
	c.advance(6000 * time.Second)
	second, err := m.Token(ctx, false)
	if err != nil {
		t.Fatalf("second token: %v", err)
	}
	if first != "tok-1" || second != "tok-1" {
		t.Errorf("tokens = %q, %q; want cached tok-1", first, second)
	}
	if *calls != 1 {
		t.Errorf("credential calls = %d, want 1", *calls)
	}

	// Past ttl - margin.
	c.advance(1000 * time.Second)
	third, err := m.Token(ctx, false)
	if err != nil {
		t.Fatalf("third token: %v", err)
	}
	if third != "tok-2" || *calls != 2 {
		t.Errorf("token = %q after %d calls; want tok-2 after 2", third, *calls)
	}
}

func TestTokenForceRefresh(t *testing.T) {
	ts, calls := tokenServer(t, nil)
	c := &clock{t: time.Now()}
	m := newManager(t, ts, store.NewMemoryStore(), c)
	ctx := context.Background()

	if _, err := m.Token(ctx, false); err != nil {
		t.Fatal(err)
	}
	tok, err := m.Token(ctx, true)
	if err != nil {
		t.Fatal(err)
	}
	if tok != "tok-2" || *calls != 2 {
		t.Errorf("forced refresh returned %q after %d calls", tok, *calls)
	}
	// The refreshed token is now the cached one.
	if tok, _ := m.Token(ctx, false); tok != "tok-2" || *calls != 2 {
		t.Errorf("cached token = %q after %d calls", tok, *calls)
	}
}

func TestTokenAcquisitionFailure(t *testing.T) {
	var failing atomic.Bool
	failing.Store(true)
	ts, _ := tokenServer(t, &failing)
	m := newManager(t, ts, store.NewMemoryStore(), &clock{t: time.Now()})

	_, err := m.Token(context.Background(), false)
	if !errors.Is(err, ErrAuth) {
		t.Fatalf("expected ErrAuth, got %v", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != 40013 {
		t.Errorf("expected APIError 40013, got %v", err)
	}
}

func TestTokenFailedRefreshKeepsCache(t *testing.T) {
	var failing atomic.Bool
	ts, _ := tokenServer(t, &failing)
	c := &clock{t: time.Date(2026, 10, 17, 7, 0, 0, 0, time.UTC)}
	tokens := store.NewMemoryStore()
	m := newManager(t, ts, tokens, c)
	ctx := context.Background()

	if _, err := m.Token(ctx, false); err != nil {
		t.Fatal(err)
	}
	failing.Store(true)

	if _, err := m.Token(ctx, true); !errors.Is(err, ErrAuth) {
		t.Fatalf("forced refresh should fail, got %v", err)
	}
	cached, err := tokens.Load(ctx, "app")
	if err != nil || cached.Value != "tok-1" {
		t.Fatalf("cached token = %+v, %v; want tok-1 untouched", cached, err)
	}

	// Inside the safety margin but before hard expiry the stale token is served.
	c.advance(7000 * time.Second)
	tok, err := m.Token(ctx, false)
	if err != nil || tok != "tok-1" {
		t.Errorf("got %q, %v; want stale tok-1", tok, err)
	}

	// After hard expiry there is nothing left to fall back on.
	c.advance(300 * time.Second)
	if _, err := m.Token(ctx, false); !errors.Is(err, ErrAuth) {
		t.Errorf("expected ErrAuth after hard expiry, got %v", err)
	}
}

func TestTokenMissingCredentials(t *testing.T) {
	ts, calls := tokenServer(t, nil)
	m := NewTokenManager(newDoer(t, ts), Credentials{}, store.NewMemoryStore(), nil, WithTokenEndpoint(ts.URL))
	if _, err := m.Token(context.Background(), false); !errors.Is(err, ErrAuth) {
		t.Fatalf("expected ErrAuth, got %v", err)
	}
	if *calls != 0 {
		t.Errorf("credential endpoint called %d times without credentials", *calls)
	}
}

// Package wechat talks to the official-account API: access token lifecycle
// and template message delivery.
package wechat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/i474232898/weather-report/internal/fetch"
	"github.com/i474232898/weather-report/internal/store"
)

const (
	defaultTokenEndpoint = "https://api.weixin.qq.com/cgi-bin/token"
	defaultSafetyMargin  = 300 * time.Second
)

// ErrAuth marks a failure to obtain an access token.
var ErrAuth = errors.New("access token unavailable")

// APIError is an errcode/errmsg answer from the platform.
type APIError struct {
	Code int    `json:"errcode"`
	Msg  string `json:"errmsg"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("wechat api error %d: %s", e.Code, e.Msg)
}

// Doer executes one logical request with retries. *fetch.Fetcher satisfies it.
type Doer interface {
	Do(ctx context.Context, req fetch.Request) (*fetch.Response, error)
}

// TokenStore persists the cached token between calls (and, for shared
// backends, between runs).
type TokenStore interface {
	Load(ctx context.Context, key string) (store.AccessToken, error)
	Save(ctx context.Context, key string, tok store.AccessToken) error
}

// Credentials identify the official account.
type Credentials struct {
	AppID     string
	AppSecret string
}

// TokenManager hands out a valid access token, acquiring a new one only when
// the cached one is missing, inside its safety margin, or a refresh is forced.
type TokenManager struct {
	doer     Doer
	creds    Credentials
	store    TokenStore
	endpoint string
	margin   time.Duration
	now      func() time.Time
	logger   *zap.Logger

	// serialises acquisitions so concurrent callers never fetch twice
	mu sync.Mutex
}

// TokenOption customises a TokenManager.
type TokenOption func(*TokenManager)

// WithTokenEndpoint overrides the credential endpoint.
func WithTokenEndpoint(endpoint string) TokenOption {
	return func(m *TokenManager) { m.endpoint = endpoint }
}

// WithSafetyMargin sets how long before expiry a token stops being reused.
func WithSafetyMargin(d time.Duration) TokenOption {
	return func(m *TokenManager) {
		if d >= 0 {
			m.margin = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) TokenOption {
	return func(m *TokenManager) { m.now = now }
}

// NewTokenManager creates a TokenManager backed by tokens.
func NewTokenManager(doer Doer, creds Credentials, tokens TokenStore, logger *zap.Logger, opts ...TokenOption) *TokenManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &TokenManager{
		doer: doer,
		creds: Credentials{
			AppID:     strings.TrimSpace(creds.AppID),
			AppSecret: strings.TrimSpace(creds.AppSecret),
		},
		store:    tokens,
		endpoint: defaultTokenEndpoint,
		margin:   defaultSafetyMargin,
		now:      time.Now,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Token returns a usable access token. With forceRefresh the cache is
// bypassed and a new token is always acquired.
//
// A failed acquisition leaves the cached token in place. If the refresh was
// not forced and that token has not reached its hard expiry, it is returned
// instead of an error.
func (m *TokenManager) Token(ctx context.Context, forceRefresh bool) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	cached, err := m.store.Load(ctx, m.creds.AppID)
	haveCached := err == nil
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		m.logger.Warn("token store load failed", zap.Error(err))
	}

	if !forceRefresh && haveCached && cached.UsableAt(now, m.margin) {
		return cached.Value, nil
	}

	fresh, err := m.acquire(ctx)
	if err != nil {
		if !forceRefresh && haveCached && cached.UsableAt(now, 0) {
			m.logger.Warn("token refresh failed; using cached token until hard expiry",
				zap.Time("expires_at", cached.ExpiresAt()),
				zap.Error(err),
			)
			return cached.Value, nil
		}
		return "", fmt.Errorf("%w: %w", ErrAuth, err)
	}

	if err := m.store.Save(ctx, m.creds.AppID, fresh); err != nil {
		m.logger.Warn("token store save failed", zap.Error(err))
	}
	m.logger.Info("access token acquired",
		zap.Bool("forced", forceRefresh),
		zap.Int("ttl_seconds", fresh.TTLSeconds),
	)
	return fresh.Value, nil
}

func (m *TokenManager) acquire(ctx context.Context) (store.AccessToken, error) {
	if m.creds.AppID == "" || m.creds.AppSecret == "" {
		return store.AccessToken{}, errors.New("app id or app secret not configured")
	}

	values := url.Values{}
	values.Set("grant_type", "client_credential")
	values.Set("appid", m.creds.AppID)
	values.Set("secret", m.creds.AppSecret)

	obtainedAt := m.now()
	resp, err := m.doer.Do(ctx, fetch.Request{URL: m.endpoint + "?" + values.Encode()})
	if err != nil {
		return store.AccessToken{}, err
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
		APIError
	}
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return store.AccessToken{}, fmt.Errorf("decode token response: %w", err)
	}
	if payload.Code != 0 || payload.AccessToken == "" {
		apiErr := payload.APIError
		return store.AccessToken{}, &apiErr
	}

	return store.AccessToken{
		Value:      payload.AccessToken,
		ObtainedAt: obtainedAt,
		TTLSeconds: payload.ExpiresIn,
	}, nil
}

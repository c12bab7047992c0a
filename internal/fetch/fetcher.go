// Package fetch implements the single retry discipline used by every outbound
// HTTP call: page scraping, token acquisition, message sending and note APIs.
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/net/html/charset"
)

// Policy controls attempts, per-attempt timeout and exponential backoff.
type Policy struct {
	MaxAttempts     int
	Timeout         time.Duration
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultPolicy is the retry policy applied when nothing is configured.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     3,
		Timeout:         10 * time.Second,
		InitialInterval: time.Second,
		MaxInterval:     10 * time.Second,
	}
}

// minInterval replaces a non-positive InitialInterval.
const minInterval = 100 * time.Millisecond

// Delay returns the wait before the attempt following the given one (1-based).
// The result is always positive and never decreases as attempt grows.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := p.InitialInterval
	if delay <= 0 {
		delay = minInterval
	}
	for i := 1; i < attempt; i++ {
		delay *= 2
		if p.MaxInterval > 0 && delay >= p.MaxInterval {
			return p.MaxInterval
		}
	}
	if p.MaxInterval > 0 && delay > p.MaxInterval {
		return p.MaxInterval
	}
	return delay
}

func (p Policy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

var (
	// ErrPermanentStatus marks a non-2xx response that is not worth retrying.
	ErrPermanentStatus = errors.New("non-retryable status code")

	errTransientStatus = errors.New("transient status code")
	errCircuitOpen     = errors.New("circuit breaker open")
	errNoHTTPClient    = errors.New("http client not configured")
)

// FetchError is returned once every attempt for a URL has failed.
type FetchError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: failed after %d attempt(s): %v", e.URL, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Request describes one logical outbound call. Body is replayed on every attempt.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// Response is a fully read 2xx response.
type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Fetcher executes requests with retries, backoff and a per-host circuit breaker.
type Fetcher struct {
	client   *http.Client
	policy   Policy
	logger   *zap.Logger
	breakers *breakerSet
	sleep    func(ctx context.Context, d time.Duration) error
}

// New creates a Fetcher. A nil logger disables logging.
func New(client *http.Client, policy Policy, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		client:   client,
		policy:   policy,
		logger:   logger,
		breakers: &breakerSet{m: make(map[string]*gobreaker.CircuitBreaker)},
		sleep:    Sleep,
	}
}

// WithPolicy returns a Fetcher sharing the client and breakers but retrying
// according to p.
func (f *Fetcher) WithPolicy(p Policy) *Fetcher {
	c := *f
	c.policy = p
	return &c
}

// GetText fetches url and returns the body decoded to UTF-8 text.
func (f *Fetcher) GetText(ctx context.Context, rawURL string, header http.Header) (string, error) {
	resp, err := f.Do(ctx, Request{Method: http.MethodGet, URL: rawURL, Header: header})
	if err != nil {
		return "", err
	}
	return decodeText(resp.Body, resp.ContentType), nil
}

// Do executes req, retrying transport failures, timeouts and 5xx/429 answers.
// Other non-2xx answers fail immediately with ErrPermanentStatus.
func (f *Fetcher) Do(ctx context.Context, req Request) (*Response, error) {
	if f.client == nil {
		return nil, errNoHTTPClient
	}
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	target := redact(req.URL)
	cb := f.breakers.get(target)
	maxAttempts := f.policy.attempts()

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, &FetchError{URL: target, Attempts: attempt - 1, Err: err}
		}

		result, err := cb.Execute(func() (interface{}, error) {
			return f.attempt(ctx, req)
		})
		if err == nil {
			resp := result.(*Response)
			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				return nil, &FetchError{
					URL:      target,
					Attempts: attempt,
					Err:      fmt.Errorf("%w: %d", ErrPermanentStatus, resp.StatusCode),
				}
			}
			return resp, nil
		}

		// If circuit is open, propagate immediately.
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &FetchError{URL: target, Attempts: attempt, Err: fmt.Errorf("%w: %v", errCircuitOpen, err)}
		}

		lastErr = err
		if attempt == maxAttempts {
			break
		}

		delay := f.policy.Delay(attempt)
		f.logger.Debug("retrying request",
			zap.String("url", target),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		if err := f.sleep(ctx, delay); err != nil {
			return nil, &FetchError{URL: target, Attempts: attempt, Err: err}
		}
	}

	return nil, &FetchError{URL: target, Attempts: maxAttempts, Err: lastErr}
}

// attempt performs one bounded HTTP exchange. Permanent non-2xx responses are
// returned as results so they do not count against the circuit breaker.
func (f *Fetcher) attempt(ctx context.Context, req Request) (*Response, error) {
	if f.policy.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.policy.Timeout)
		defer cancel()
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, err
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: %d", errTransientStatus, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return &Response{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        data,
	}, nil
}

// breakerSet holds one breaker per endpoint (URL without query), so a failing
// page never blocks its siblings on the same host.
type breakerSet struct {
	mu sync.Mutex
	m  map[string]*gobreaker.CircuitBreaker
}

func (s *breakerSet) get(endpoint string) *gobreaker.CircuitBreaker {
	s.mu.Lock()
	defer s.mu.Unlock()
	cb, ok := s.m[endpoint]
	if !ok {
		cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        endpoint,
			MaxRequests: 5,
			Interval:    1 * time.Minute,
			Timeout:     2 * time.Minute,
		})
		s.m[endpoint] = cb
	}
	return cb
}

func decodeText(body []byte, contentType string) string {
	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return string(body)
	}
	text, err := io.ReadAll(r)
	if err != nil {
		return string(body)
	}
	return string(text)
}

// redact drops the query string, which carries secrets and access tokens.
func redact(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.RawQuery = ""
	u.User = nil
	return u.String()
}

// Sleep waits for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

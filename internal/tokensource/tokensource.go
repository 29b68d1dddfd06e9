package tokensource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/sync/singleflight"

	"github.com/florianilch/ihealth-mcp/internal/credentials"
)

const instrumentationName = "github.com/florianilch/ihealth-mcp/internal/tokensource"

// Option configures a Manager.
type Option func(*managerConfig)

// managerConfig holds configuration for New.
type managerConfig struct {
	baseTransport http.RoundTripper
	tokenURL      string
	scope         string
	timeout       time.Duration
	skew          time.Duration
	now           func() time.Time
}

// WithTransport sets a custom base transport for token requests.
// If not provided, http.DefaultTransport is used.
func WithTransport(transport http.RoundTripper) Option {
	return func(c *managerConfig) {
		c.baseTransport = transport
	}
}

// WithTokenURL overrides the token endpoint.
func WithTokenURL(tokenURL string) Option {
	return func(c *managerConfig) {
		c.tokenURL = tokenURL
	}
}

// WithScope overrides the requested scope.
func WithScope(scope string) Option {
	return func(c *managerConfig) {
		c.scope = scope
	}
}

// WithTimeout bounds each token exchange.
func WithTimeout(timeout time.Duration) Option {
	return func(c *managerConfig) {
		c.timeout = timeout
	}
}

// WithExpirySkew sets the margin before expiry after which a cached token is refreshed.
func WithExpirySkew(skew time.Duration) Option {
	return func(c *managerConfig) {
		c.skew = skew
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *managerConfig) {
		c.now = now
	}
}

// AuthenticationError reports a rejected or failed token exchange.
// It is non-fatal: the next call retries the exchange.
type AuthenticationError struct {
	// StatusCode is the token endpoint's HTTP status, zero if no response was received.
	StatusCode int
	// Body is the token endpoint's response body, if any.
	Body string
	Err  error
}

func (e *AuthenticationError) Error() string {
	if e.StatusCode != 0 {
		return "Authentication failed: " + strconv.Itoa(e.StatusCode)
	}
	if e.Err != nil {
		return "Authentication failed: " + e.Err.Error()
	}
	return "Authentication failed"
}

// Details returns the token endpoint response body.
func (e *AuthenticationError) Details() string {
	return e.Body
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// Manager obtains bearer tokens via the client-credentials grant and caches
// the most recent one until shortly before it expires.
type Manager struct {
	store credentials.Store
	cfg   managerConfig

	mu        sync.RWMutex
	token     string
	expiresAt time.Time

	group     singleflight.Group
	exchanges metric.Int64Counter
}

// Compile-time check to ensure Manager implements oauth2.TokenSource
var _ oauth2.TokenSource = (*Manager)(nil)

// New creates a Manager reading credentials from store.
// No I/O is performed until the first token request.
func New(store credentials.Store, opts ...Option) (*Manager, error) {
	if store == nil {
		return nil, fmt.Errorf("missing credentials store")
	}

	cfg := managerConfig{
		baseTransport: http.DefaultTransport,
		tokenURL:      Endpoint.TokenURL,
		scope:         DefaultScope,
		timeout:       DefaultTimeout,
		skew:          DefaultExpirySkew,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.tokenURL == "" {
		return nil, fmt.Errorf("missing token URL")
	}

	exchanges, err := otel.Meter(instrumentationName).Int64Counter(
		"ihealth.token.exchanges",
		metric.WithDescription("Client-credentials token exchanges by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating exchange counter: %w", err)
	}

	return &Manager{
		store:     store,
		cfg:       cfg,
		exchanges: exchanges,
	}, nil
}

// AccessToken returns a valid bearer token, performing a client-credentials
// exchange if no cached token is fresh enough.
//
// Errors are *credentials.ConfigurationError when credentials are missing and
// *AuthenticationError when the exchange fails.
func (m *Manager) AccessToken(ctx context.Context) (string, error) {
	if token, ok := m.cached(); ok {
		return token, nil
	}

	// The exchange outlives any single caller: it runs detached from the
	// caller's cancellation, bounded by the token request timeout, so one
	// cancelled waiter never fails the others.
	ch := m.group.DoChan("token", func() (any, error) {
		// Another caller may have refreshed while we waited
		if token, ok := m.cached(); ok {
			return token, nil
		}
		return m.exchange(context.WithoutCancel(ctx))
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Token implements oauth2.TokenSource.
func (m *Manager) Token() (*oauth2.Token, error) {
	// oauth2.TokenSource.Token() has no context parameter (legacy interface limitation)
	token, err := m.AccessToken(context.Background())
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	expiry := m.expiresAt.Add(-m.cfg.skew)
	m.mu.RUnlock()

	return &oauth2.Token{
		AccessToken: token,
		TokenType:   "Bearer",
		Expiry:      expiry,
	}, nil
}

// ExpiresAt returns the recorded expiry of the cached token, zero if none.
func (m *Manager) ExpiresAt() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.expiresAt
}

// cached returns the cached token if now < expires_at - skew.
func (m *Manager) cached() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.token != "" && m.cfg.now().Before(m.expiresAt.Add(-m.cfg.skew)) {
		return m.token, true
	}
	return "", false
}

// exchange performs one client-credentials request and stores the result.
func (m *Manager) exchange(ctx context.Context) (string, error) {
	creds, err := m.store.Read(ctx)
	if err != nil {
		var cfgErr *credentials.ConfigurationError
		if errors.As(err, &cfgErr) {
			return "", cfgErr
		}
		return "", fmt.Errorf("reading credentials: %w", err)
	}

	oauth2Config := &clientcredentials.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		TokenURL:     m.cfg.tokenURL,
		Scopes:       []string{m.cfg.scope},
		AuthStyle:    Endpoint.AuthStyle,
	}

	// Bounded timeout, no retries
	httpClient := &http.Client{
		Timeout: m.cfg.timeout,
		Transport: &tokenRequestTransport{
			base:  m.cfg.baseTransport,
			creds: creds,
		},
	}
	// oauth2 package injects custom HTTP clients via context (oauth2.HTTPClient key).
	oauthCtx := context.WithValue(ctx, oauth2.HTTPClient, httpClient)

	requestedAt := m.cfg.now()
	tok, err := oauth2Config.Token(oauthCtx)
	if err != nil {
		m.exchanges.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "failure")))
		return "", m.authenticationError(ctx, err)
	}

	expiresAt := requestedAt.Add(expiresIn(tok))

	m.mu.Lock()
	m.token = tok.AccessToken
	m.expiresAt = expiresAt
	m.mu.Unlock()

	m.exchanges.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "success")))
	slog.InfoContext(ctx, "obtained new auth token", "expires_at", expiresAt)

	return tok.AccessToken, nil
}

// authenticationError converts an oauth2 failure into an *AuthenticationError.
func (m *Manager) authenticationError(ctx context.Context, err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
		body := string(retrieveErr.Body)
		slog.ErrorContext(ctx, "failed to obtain auth token",
			"status", retrieveErr.Response.StatusCode,
			"body", body,
		)
		return &AuthenticationError{
			StatusCode: retrieveErr.Response.StatusCode,
			Body:       body,
			Err:        err,
		}
	}

	slog.ErrorContext(ctx, "failed to obtain auth token", "error", err)
	return &AuthenticationError{Err: err}
}

// expiresIn reads the token lifetime from the response. DefaultExpiresIn
// applies only when expires_in is absent; zero or negative values mean the
// token is already stale.
func expiresIn(tok *oauth2.Token) time.Duration {
	switch v := tok.Extra("expires_in").(type) {
	case nil:
		// Absent
	case float64:
		return time.Duration(v * float64(time.Second))
	case string:
		if secs, err := strconv.ParseInt(v, 10, 64); err == nil {
			return time.Duration(secs) * time.Second
		}
	}

	if tok.ExpiresIn != 0 {
		return time.Duration(tok.ExpiresIn) * time.Second
	}
	return DefaultExpiresIn
}

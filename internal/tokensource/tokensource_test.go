package tokensource

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/florianilch/ihealth-mcp/internal/credentials"
)

// memoryStore is an in-memory credentials.Store.
type memoryStore struct {
	creds credentials.Credentials
	reads atomic.Int32
}

func (s *memoryStore) Read(context.Context) (credentials.Credentials, error) {
	s.reads.Add(1)
	if !s.creds.Complete() {
		return credentials.Credentials{}, &credentials.ConfigurationError{
			Source: []string{credentials.DefaultClientIDEnv, credentials.DefaultClientSecretEnv},
		}
	}
	return s.creds, nil
}

func (s *memoryStore) Write(_ context.Context, creds credentials.Credentials) error {
	s.creds = creds
	return nil
}

// tokenServer is a mock token endpoint counting exchanges.
type tokenServer struct {
	*httptest.Server
	calls       atomic.Int32
	status      int
	body        string
	lastRequest *http.Request
	lastBody    string
	mu          sync.Mutex
}

func newTokenServer(t *testing.T, status int, body string) *tokenServer {
	t.Helper()
	ts := &tokenServer{status: status, body: body}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts.calls.Add(1)
		b, _ := io.ReadAll(r.Body)
		ts.mu.Lock()
		ts.lastRequest = r
		ts.lastBody = string(b)
		ts.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(ts.status)
		_, _ = io.WriteString(w, ts.body)
	}))
	t.Cleanup(ts.Close)
	return ts
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newManager(t *testing.T, store credentials.Store, tokenURL string, clock *fakeClock) *Manager {
	t.Helper()
	opts := []Option{WithTokenURL(tokenURL)}
	if clock != nil {
		opts = append(opts, WithClock(clock.Now))
	}
	m, err := New(store, opts...)
	require.NoError(t, err)
	return m
}

func TestAccessTokenCachesWithinValidityWindow(t *testing.T) {
	server := newTokenServer(t, http.StatusOK, `{"access_token":"tok-1","token_type":"Bearer","expires_in":1800}`)
	clock := &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	m := newManager(t, &memoryStore{creds: credentials.Credentials{ClientID: "id", ClientSecret: "secret"}}, server.URL, clock)

	first, err := m.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", first)

	clock.Advance(1800*time.Second - DefaultExpirySkew - time.Second)

	second, err := m.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", second)
	assert.Equal(t, int32(1), server.calls.Load(), "second call within validity window must not exchange")
}

func TestAccessTokenRefreshesInsideSkew(t *testing.T) {
	server := newTokenServer(t, http.StatusOK, `{"access_token":"fresh","expires_in":3600}`)
	clock := &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	m := newManager(t, &memoryStore{creds: credentials.Credentials{ClientID: "id", ClientSecret: "secret"}}, server.URL, clock)

	m.token = "stale"
	m.expiresAt = clock.Now().Add(30 * time.Second)

	token, err := m.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh", token)
	assert.Equal(t, int32(1), server.calls.Load())
	assert.Equal(t, clock.Now().Add(time.Hour), m.ExpiresAt())
}

func TestAccessTokenDefaultsExpiry(t *testing.T) {
	server := newTokenServer(t, http.StatusOK, `{"access_token":"tok"}`)
	clock := &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	m := newManager(t, &memoryStore{creds: credentials.Credentials{ClientID: "id", ClientSecret: "secret"}}, server.URL, clock)

	_, err := m.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, clock.Now().Add(DefaultExpiresIn), m.ExpiresAt())
}

func TestAccessTokenRequestShape(t *testing.T) {
	server := newTokenServer(t, http.StatusOK, `{"access_token":"tok"}`)
	creds := credentials.Credentials{ClientID: "my id", ClientSecret: "p@ss/word"}
	m := newManager(t, &memoryStore{creds: creds}, server.URL, nil)

	_, err := m.AccessToken(context.Background())
	require.NoError(t, err)

	server.mu.Lock()
	defer server.mu.Unlock()
	req := server.lastRequest
	require.NotNil(t, req)

	wantAuth := "Basic " + base64.StdEncoding.EncodeToString([]byte("my id:p@ss/word"))
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, wantAuth, req.Header.Get("Authorization"))
	assert.Equal(t, "application/json", req.Header.Get("Accept"))
	assert.Equal(t, "no-cache", req.Header.Get("Cache-Control"))
	assert.Equal(t, "application/x-www-form-urlencoded", req.Header.Get("Content-Type"))
	assert.Equal(t, "grant_type=client_credentials&scope=ihealth", server.lastBody)
}

func TestAccessTokenHTTPError(t *testing.T) {
	server := newTokenServer(t, http.StatusUnauthorized, `{"error":"invalid_client"}`)
	m := newManager(t, &memoryStore{creds: credentials.Credentials{ClientID: "id", ClientSecret: "bad"}}, server.URL, nil)

	_, err := m.AccessToken(context.Background())

	var authErr *AuthenticationError
	require.True(t, errors.As(err, &authErr), "expected AuthenticationError, got %v", err)
	assert.Equal(t, http.StatusUnauthorized, authErr.StatusCode)
	assert.Equal(t, `{"error":"invalid_client"}`, authErr.Details())
	assert.Equal(t, "Authentication failed: 401", authErr.Error())
}

func TestAccessTokenMalformedResponse(t *testing.T) {
	server := newTokenServer(t, http.StatusOK, `{"token_type":"Bearer"}`)
	m := newManager(t, &memoryStore{creds: credentials.Credentials{ClientID: "id", ClientSecret: "secret"}}, server.URL, nil)

	_, err := m.AccessToken(context.Background())

	var authErr *AuthenticationError
	require.True(t, errors.As(err, &authErr), "expected AuthenticationError, got %v", err)
	assert.Zero(t, authErr.StatusCode)
	assert.Contains(t, authErr.Error(), "Authentication failed: ")
}

func TestAccessTokenUnreachable(t *testing.T) {
	server := newTokenServer(t, http.StatusOK, `{}`)
	url := server.URL
	server.Close()

	m := newManager(t, &memoryStore{creds: credentials.Credentials{ClientID: "id", ClientSecret: "secret"}}, url, nil)

	_, err := m.AccessToken(context.Background())
	var authErr *AuthenticationError
	assert.True(t, errors.As(err, &authErr), "expected AuthenticationError, got %v", err)
}

func TestAccessTokenMissingCredentials(t *testing.T) {
	server := newTokenServer(t, http.StatusOK, `{"access_token":"tok"}`)
	m := newManager(t, &memoryStore{}, server.URL, nil)

	_, err := m.AccessToken(context.Background())

	var cfgErr *credentials.ConfigurationError
	require.True(t, errors.As(err, &cfgErr), "expected ConfigurationError, got %v", err)
	assert.Zero(t, server.calls.Load())
}

func TestAccessTokenSingleFlight(t *testing.T) {
	server := newTokenServer(t, http.StatusOK, `{"access_token":"shared","expires_in":1800}`)
	m := newManager(t, &memoryStore{creds: credentials.Credentials{ClientID: "id", ClientSecret: "secret"}}, server.URL, nil)

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			token, err := m.AccessToken(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, "shared", token)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), server.calls.Load())
}

func TestTokenImplementsTokenSource(t *testing.T) {
	server := newTokenServer(t, http.StatusOK, `{"access_token":"tok","expires_in":600}`)
	clock := &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	m := newManager(t, &memoryStore{creds: credentials.Credentials{ClientID: "id", ClientSecret: "secret"}}, server.URL, clock)

	tok, err := m.Token()
	require.NoError(t, err)
	assert.Equal(t, "tok", tok.AccessToken)
	assert.Equal(t, "Bearer", tok.Type())
	assert.Equal(t, clock.Now().Add(600*time.Second-DefaultExpirySkew), tok.Expiry)
}

func TestNewRequiresStore(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}

func TestAccessTokenZeroExpiryIsStale(t *testing.T) {
	server := newTokenServer(t, http.StatusOK, `{"access_token":"tok","expires_in":0}`)
	clock := &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	m := newManager(t, &memoryStore{creds: credentials.Credentials{ClientID: "id", ClientSecret: "secret"}}, server.URL, clock)

	token, err := m.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok", token)
	assert.Equal(t, clock.Now(), m.ExpiresAt())

	_, err = m.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), server.calls.Load(), "a token without lifetime must not be reused")
}

func TestAccessTokenCancelledCallerDoesNotFailWaiters(t *testing.T) {
	received := make(chan struct{}, 4)
	release := make(chan struct{})
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		received <- struct{}{}
		<-release
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"access_token":"shared","expires_in":1800}`)
	}))
	t.Cleanup(server.Close)
	t.Cleanup(func() {
		select {
		case <-release:
		default:
			close(release)
		}
	})

	m := newManager(t, &memoryStore{creds: credentials.Credentials{ClientID: "id", ClientSecret: "secret"}}, server.URL, nil)

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := m.AccessToken(firstCtx)
		firstErr <- err
	}()
	<-received

	type result struct {
		token string
		err   error
	}
	waiter := make(chan result, 1)
	go func() {
		token, err := m.AccessToken(context.Background())
		waiter <- result{token, err}
	}()

	cancelFirst()
	select {
	case err := <-firstErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("cancelled caller kept waiting for the exchange")
	}

	close(release)

	select {
	case res := <-waiter:
		require.NoError(t, res.err)
		assert.Equal(t, "shared", res.token)
	case <-time.After(5 * time.Second):
		t.Fatal("waiter did not receive a token")
	}

	token, err := m.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "shared", token)
	assert.LessOrEqual(t, calls.Load(), int32(2))
}

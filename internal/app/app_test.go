package app

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freePort(t *testing.T) uint16 {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return uint16(port)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg, err := Default()
	require.NoError(t, err)
	cfg.Transport = "carrier-pigeon"

	_, err = New(cfg)
	require.ErrorContains(t, err, "invalid configuration")
}

func TestNewRegistersTools(t *testing.T) {
	cfg, err := Default()
	require.NoError(t, err)

	application, err := New(cfg)
	require.NoError(t, err)
	assert.NotNil(t, application.Tools())
}

func TestStartHTTPStopsOnCancel(t *testing.T) {
	cfg, err := Default()
	require.NoError(t, err)
	cfg.Transport = TransportHTTP
	cfg.Server.Port = freePort(t)

	application, err := New(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- application.Start(ctx) }()

	address := "http://127.0.0.1:" + strconv.Itoa(int(cfg.Server.Port)) + "/other"
	require.Eventually(t, func() bool {
		resp, err := http.Get(address)
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusNotFound
	}, 5*time.Second, 20*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("application did not stop")
	}
}

func TestNewTokenSourceDefersIO(t *testing.T) {
	t.Setenv("F5_IHEALTH_CLIENT_ID", "")
	t.Setenv("F5_IHEALTH_CLIENT_SECRET", "")

	cfg, err := Default()
	require.NoError(t, err)

	manager, err := NewTokenSource(cfg)
	require.NoError(t, err)

	_, err = manager.AccessToken(context.Background())
	require.ErrorContains(t, err, "F5_IHEALTH_CLIENT_ID and F5_IHEALTH_CLIENT_SECRET environment variables are required")
}

package credentials

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func TestEnvStore(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		secret  string
		wantErr bool
	}{
		{name: "both set", id: "client", secret: "s3cret"},
		{name: "id missing", secret: "s3cret", wantErr: true},
		{name: "secret missing", id: "client", wantErr: true},
		{name: "both missing", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(DefaultClientIDEnv, tt.id)
			t.Setenv(DefaultClientSecretEnv, tt.secret)

			store, err := NewEnvStore(DefaultClientIDEnv, DefaultClientSecretEnv)
			require.NoError(t, err)

			creds, err := store.Read(context.Background())
			if !tt.wantErr {
				require.NoError(t, err)
				assert.Equal(t, Credentials{ClientID: tt.id, ClientSecret: tt.secret}, creds)
				return
			}

			var cfgErr *ConfigurationError
			require.True(t, errors.As(err, &cfgErr), "expected ConfigurationError, got %v", err)
			assert.Contains(t, err.Error(), DefaultClientIDEnv)
			assert.Contains(t, err.Error(), DefaultClientSecretEnv)
		})
	}
}

func TestEnvStoreRejectsInvalidKeys(t *testing.T) {
	_, err := NewEnvStore("", DefaultClientSecretEnv)
	assert.Error(t, err)

	_, err = NewEnvStore("SAME", "SAME")
	assert.Error(t, err)
}

func TestEnvStoreIsReadOnly(t *testing.T) {
	store, err := NewEnvStore(DefaultClientIDEnv, DefaultClientSecretEnv)
	require.NoError(t, err)

	assert.Error(t, store.Write(context.Background(), Credentials{ClientID: "a", ClientSecret: "b"}))
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "credentials")
	store, err := NewFileStore(path)
	require.NoError(t, err)

	want := Credentials{ClientID: "client", ClientSecret: "s3=cret"}
	require.NoError(t, store.Write(context.Background(), want))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	got, err := store.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestFileStoreMissingFile(t *testing.T) {
	store, err := NewFileStore(filepath.Join(t.TempDir(), "absent"))
	require.NoError(t, err)

	_, err = store.Read(context.Background())
	var cfgErr *ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestFileStoreInsecurePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials")
	require.NoError(t, os.WriteFile(path, []byte("client_id=a\nclient_secret=b\n"), 0644))

	store, err := NewFileStore(path)
	require.NoError(t, err)

	_, err = store.Read(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insecure permissions")
}

func TestFileStoreIncomplete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials")
	require.NoError(t, os.WriteFile(path, []byte("# only an id\nclient_id=a\n"), 0600))

	store, err := NewFileStore(path)
	require.NoError(t, err)

	_, err = store.Read(context.Background())
	var cfgErr *ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestKeyringStore(t *testing.T) {
	keyring.MockInit()

	store, err := NewKeyringStore(DefaultKeyringService, "tester")
	require.NoError(t, err)

	_, err = store.Read(context.Background())
	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr), "expected ConfigurationError before write, got %v", err)

	want := Credentials{ClientID: "client", ClientSecret: "with:colon"}
	require.NoError(t, store.Write(context.Background(), want))

	got, err := store.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, got)

	assert.Error(t, store.Write(context.Background(), Credentials{ClientID: "bad:id", ClientSecret: "x"}))
}

func TestCredentialsStringRedactsSecret(t *testing.T) {
	s := Credentials{ClientID: "client", ClientSecret: "topsecret"}.String()
	assert.Contains(t, s, "client")
	assert.NotContains(t, s, "topsecret")
}

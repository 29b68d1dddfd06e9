package app

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/florianilch/ihealth-mcp/internal/credentials"
)

func TestDefault(t *testing.T) {
	cfg, err := Default()
	require.NoError(t, err)

	assert.Equal(t, LogFormatText, cfg.LogFormat)
	assert.Equal(t, "none", cfg.Log.Exporter)
	assert.Equal(t, TransportStdio, cfg.Transport)
	assert.Equal(t, "https://ihealth2-api.f5.com/qkview-analyzer/api", cfg.Upstream.BaseURL)
	assert.Equal(t, "F5iHealthMCPServer/1.0", cfg.Upstream.UserAgent)
	assert.Equal(t, "https://identity.account.f5.com/oauth2/ausp95ykc80HOU7SQ357/v1/token", cfg.Auth.TokenURL)
	assert.Equal(t, "ihealth", cfg.Auth.Scope)
	assert.Equal(t, CredentialStorageEnv, cfg.Credentials.Storage)
	assert.Equal(t, "F5_IHEALTH_CLIENT_ID", cfg.Credentials.ClientIDEnv)
	assert.Equal(t, "F5_IHEALTH_CLIENT_SECRET", cfg.Credentials.ClientSecretEnv)

	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"http transport", func(c *Config) { c.Transport = TransportHTTP }, false},
		{"unknown transport", func(c *Config) { c.Transport = "sse" }, true},
		{"unknown log format", func(c *Config) { c.LogFormat = "xml" }, true},
		{"unknown exporter", func(c *Config) { c.Log.Exporter = "kafka" }, true},
		{"invalid base url", func(c *Config) { c.Upstream.BaseURL = "not a url" }, true},
		{"invalid token url", func(c *Config) { c.Auth.TokenURL = "" }, true},
		{"unknown storage", func(c *Config) { c.Credentials.Storage = "vault" }, true},
		{"same env keys", func(c *Config) { c.Credentials.ClientSecretEnv = c.Credentials.ClientIDEnv }, true},
		{"file without path", func(c *Config) {
			c.Credentials.Storage = CredentialStorageFile
			c.Credentials.File = ""
		}, true},
		{"keyring without user", func(c *Config) {
			c.Credentials.Storage = CredentialStorageKeyring
			c.Credentials.KeyringUser = ""
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Default()
			require.NoError(t, err)
			tt.modify(cfg)

			err = cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestApplyDefaultsFileStorage(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg := &Config{Credentials: CredentialsConfig{Storage: CredentialStorageFile}}
	require.NoError(t, cfg.ApplyDefaults())

	assert.Equal(t, "credentials", filepath.Base(cfg.Credentials.File))
	assert.Equal(t, "ihealth-mcp", filepath.Base(filepath.Dir(cfg.Credentials.File)))
	assert.Empty(t, cfg.Credentials.ClientIDEnv)
}

func TestNewStore(t *testing.T) {
	envCfg := CredentialsConfig{
		Storage:         CredentialStorageEnv,
		ClientIDEnv:     credentials.DefaultClientIDEnv,
		ClientSecretEnv: credentials.DefaultClientSecretEnv,
	}
	store, err := envCfg.NewStore()
	require.NoError(t, err)
	assert.IsType(t, &credentials.EnvStore{}, store)

	fileCfg := CredentialsConfig{Storage: CredentialStorageFile, File: filepath.Join(t.TempDir(), "credentials")}
	store, err = fileCfg.NewStore()
	require.NoError(t, err)
	assert.IsType(t, &credentials.FileStore{}, store)

	keyringCfg := CredentialsConfig{Storage: CredentialStorageKeyring, KeyringUser: "ops"}
	store, err = keyringCfg.NewStore()
	require.NoError(t, err)
	assert.IsType(t, &credentials.KeyringStore{}, store)

	_, err = (&CredentialsConfig{Storage: "vault"}).NewStore()
	assert.Error(t, err)
}

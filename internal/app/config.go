package app

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/user"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/florianilch/ihealth-mcp/internal/credentials"
	"github.com/florianilch/ihealth-mcp/internal/ihealth"
	"github.com/florianilch/ihealth-mcp/internal/observability"
	"github.com/florianilch/ihealth-mcp/internal/tokensource"
)

// LogFormat represents the logging output format.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// Transport selects how the tool host connects.
type Transport string

const (
	TransportStdio Transport = "stdio"
	TransportHTTP  Transport = "http"
)

// CredentialStorageType represents where client credentials are read from.
type CredentialStorageType string

const (
	CredentialStorageEnv     CredentialStorageType = "env"
	CredentialStorageFile    CredentialStorageType = "file"
	CredentialStorageKeyring CredentialStorageType = "keyring"
)

// Default configuration values
const (
	DefaultConfigLogFormat         = LogFormatText
	DefaultConfigLogExporter       = observability.ExporterNone
	DefaultConfigTransport         = TransportStdio
	DefaultConfigServerHost        = "127.0.0.1"
	DefaultConfigServerPort        = 4100
	DefaultConfigShutdownTimeout   = 5 * time.Second
	DefaultConfigUpstreamBaseURL   = ihealth.DefaultBaseURL
	DefaultConfigUpstreamTimeout   = ihealth.DefaultTimeout
	DefaultConfigUpstreamUserAgent = ihealth.DefaultUserAgent
	DefaultConfigAuthTokenURL      = tokensource.DefaultTokenURL
	DefaultConfigAuthTimeout       = tokensource.DefaultTimeout
	DefaultConfigAuthExpirySkew    = tokensource.DefaultExpirySkew
	DefaultConfigAuthScope         = tokensource.DefaultScope
	DefaultConfigCredentialStorage = CredentialStorageEnv
)

// LogConfig holds settings beyond level and format.
type LogConfig struct {
	Exporter string `json:"exporter" validate:"oneof=none stdout otlp-grpc otlp-http"`
}

// ServerConfig holds the HTTP transport listener.
type ServerConfig struct {
	Host string `json:"host" validate:"hostname_rfc1123|ip"`
	Port uint16 `json:"port"`
}

// ShutdownConfig holds shutdown behavior configuration.
type ShutdownConfig struct {
	// Timeout for graceful shutdown.
	Timeout time.Duration `json:"timeout"`
}

// UpstreamConfig holds iHealth API configuration.
type UpstreamConfig struct {
	BaseURL   string        `json:"base_url" validate:"required,url"`
	Timeout   time.Duration `json:"timeout" validate:"gt=0"`
	UserAgent string        `json:"user_agent" validate:"required"`
}

// AuthConfig holds token endpoint configuration.
type AuthConfig struct {
	TokenURL   string        `json:"token_url" validate:"required,url"`
	Scope      string        `json:"scope" validate:"required"`
	Timeout    time.Duration `json:"timeout" validate:"gt=0"`
	ExpirySkew time.Duration `json:"expiry_skew" validate:"gte=0"`
}

// CredentialsConfig describes where the client ID and secret are stored.
type CredentialsConfig struct {
	Storage CredentialStorageType `json:"storage" validate:"required,oneof=env file keyring"`

	// Storage-specific settings
	ClientIDEnv     string `json:"client_id_env,omitempty"`
	ClientSecretEnv string `json:"client_secret_env,omitempty"`
	File            string `json:"file,omitempty"`
	KeyringUser     string `json:"keyring_user,omitempty"`
}

// NewStore creates a credentials.Store from the configuration.
func (c *CredentialsConfig) NewStore() (credentials.Store, error) {
	switch c.Storage {
	case CredentialStorageEnv:
		return credentials.NewEnvStore(c.ClientIDEnv, c.ClientSecretEnv)
	case CredentialStorageFile:
		return credentials.NewFileStore(c.File)
	case CredentialStorageKeyring:
		return credentials.NewKeyringStore(credentials.DefaultKeyringService, c.KeyringUser)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", c.Storage)
	}
}

// Config holds the application's configuration.
type Config struct {
	// LogLevel for logging output (defaults to Info if unset).
	LogLevel    slog.Level        `json:"log_level"`
	LogFormat   LogFormat         `json:"log_format" validate:"oneof=text json"`
	Log         LogConfig         `json:"log"`
	Transport   Transport         `json:"transport" validate:"oneof=stdio http"`
	Server      ServerConfig      `json:"server"`
	Shutdown    ShutdownConfig    `json:"shutdown"`
	Upstream    UpstreamConfig    `json:"upstream"`
	Auth        AuthConfig        `json:"auth"`
	Credentials CredentialsConfig `json:"credentials"`
}

// Default creates a new Config with default values applied.
func Default() (*Config, error) {
	cfg := &Config{}
	if err := cfg.ApplyDefaults(); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}
	return cfg, nil
}

// ApplyDefaults fills unset config fields with sensible defaults.
func (c *Config) ApplyDefaults() error {
	if c.LogFormat == "" {
		c.LogFormat = DefaultConfigLogFormat
	}
	if c.Log.Exporter == "" {
		c.Log.Exporter = DefaultConfigLogExporter
	}
	if c.Transport == "" {
		c.Transport = DefaultConfigTransport
	}
	if c.Server.Host == "" {
		c.Server.Host = DefaultConfigServerHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultConfigServerPort
	}
	if c.Shutdown.Timeout == 0 {
		c.Shutdown.Timeout = DefaultConfigShutdownTimeout
	}
	if c.Upstream.BaseURL == "" {
		c.Upstream.BaseURL = DefaultConfigUpstreamBaseURL
	}
	if c.Upstream.Timeout == 0 {
		c.Upstream.Timeout = DefaultConfigUpstreamTimeout
	}
	if c.Upstream.UserAgent == "" {
		c.Upstream.UserAgent = DefaultConfigUpstreamUserAgent
	}
	if c.Auth.TokenURL == "" {
		c.Auth.TokenURL = DefaultConfigAuthTokenURL
	}
	if c.Auth.Scope == "" {
		c.Auth.Scope = DefaultConfigAuthScope
	}
	if c.Auth.Timeout == 0 {
		c.Auth.Timeout = DefaultConfigAuthTimeout
	}
	if c.Auth.ExpirySkew == 0 {
		c.Auth.ExpirySkew = DefaultConfigAuthExpirySkew
	}
	if c.Credentials.Storage == "" {
		c.Credentials.Storage = DefaultConfigCredentialStorage
	}

	// Dynamic defaults based on storage type
	switch c.Credentials.Storage {
	case CredentialStorageEnv:
		if c.Credentials.ClientIDEnv == "" {
			c.Credentials.ClientIDEnv = credentials.DefaultClientIDEnv
		}
		if c.Credentials.ClientSecretEnv == "" {
			c.Credentials.ClientSecretEnv = credentials.DefaultClientSecretEnv
		}
	case CredentialStorageFile:
		if c.Credentials.File == "" {
			configDir, err := os.UserConfigDir()
			if err != nil {
				return fmt.Errorf("credentials.file required (auto-detect failed: %w)", err)
			}
			c.Credentials.File = filepath.Join(configDir, "ihealth-mcp", "credentials")
		}
	case CredentialStorageKeyring:
		if c.Credentials.KeyringUser == "" {
			currentUser, err := user.Current()
			if err != nil {
				return fmt.Errorf("credentials.keyring_user required (auto-detect failed: %w)", err)
			}
			c.Credentials.KeyringUser = currentUser.Username
		}
	}

	return nil
}

// Validate validates the configuration using struct tags and enum values.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	switch c.Credentials.Storage {
	case CredentialStorageEnv:
		if c.Credentials.ClientIDEnv == "" || c.Credentials.ClientSecretEnv == "" {
			return errors.New("client_id_env and client_secret_env required for env storage")
		}
		if c.Credentials.ClientIDEnv == c.Credentials.ClientSecretEnv {
			return errors.New("client_id_env and client_secret_env must differ")
		}
	case CredentialStorageFile:
		if c.Credentials.File == "" {
			return errors.New("file path required for file storage")
		}
	case CredentialStorageKeyring:
		if c.Credentials.KeyringUser == "" {
			return errors.New("keyring_user required for keyring storage")
		}
	}

	return nil
}

package credentials

import (
	"context"
	"fmt"
	"os"
)

// EnvStore provides read-only access to credentials stored in environment variables.
type EnvStore struct {
	clientIDKey     string
	clientSecretKey string
	lookup          func(string) string
}

// Compile-time check to ensure EnvStore implements Store
var _ Store = (*EnvStore)(nil)

// NewEnvStore creates an EnvStore reading the given variable names.
// Unlike the other stores, the variables do not have to be set at construction
// time: absence is reported by Read so the process can start without secrets.
func NewEnvStore(clientIDKey, clientSecretKey string) (*EnvStore, error) {
	if clientIDKey == "" || clientSecretKey == "" {
		return nil, fmt.Errorf("environment keys cannot be empty")
	}
	if clientIDKey == clientSecretKey {
		return nil, fmt.Errorf("client id and client secret must use different environment keys")
	}

	return &EnvStore{
		clientIDKey:     clientIDKey,
		clientSecretKey: clientSecretKey,
		lookup:          os.Getenv,
	}, nil
}

// Read returns the credentials from the environment. Returns a *ConfigurationError
// naming both variables if either is empty or unset.
func (e *EnvStore) Read(ctx context.Context) (Credentials, error) {
	if err := ctx.Err(); err != nil {
		return Credentials{}, err
	}

	creds := Credentials{
		ClientID:     e.lookup(e.clientIDKey),
		ClientSecret: e.lookup(e.clientSecretKey),
	}
	if !creds.Complete() {
		return Credentials{}, &ConfigurationError{Source: []string{e.clientIDKey, e.clientSecretKey}}
	}
	return creds, nil
}

// Write is not supported for environment variables (they are read-only).
func (e *EnvStore) Write(ctx context.Context, _ Credentials) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return fmt.Errorf("environment variable storage is read-only")
}

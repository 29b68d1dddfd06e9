package credentials

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"
)

// DefaultKeyringService is the keyring service name credentials are stored under.
const DefaultKeyringService = "f5-ihealth-mcp"

// KeyringStore provides OS-native secure credential storage.
// Uses macOS Keychain, Windows Credential Manager, or Linux Secret Service.
// The secret is stored as "client_id:client_secret".
type KeyringStore struct {
	service string
	user    string
}

// Compile-time check to ensure KeyringStore implements Store
var _ Store = (*KeyringStore)(nil)

// NewKeyringStore creates a KeyringStore using the given service and user identifiers.
func NewKeyringStore(service, user string) (*KeyringStore, error) {
	if service == "" {
		return nil, fmt.Errorf("service cannot be empty")
	}
	if user == "" {
		return nil, fmt.Errorf("user cannot be empty")
	}

	return &KeyringStore{
		service: service,
		user:    user,
	}, nil
}

// Read returns the credentials from the system keyring.
func (k *KeyringStore) Read(ctx context.Context) (Credentials, error) {
	if err := ctx.Err(); err != nil {
		return Credentials{}, err
	}

	secret, err := keyring.Get(k.service, k.user)
	if errors.Is(err, keyring.ErrNotFound) {
		return Credentials{}, &ConfigurationError{Source: []string{k.location()}}
	}
	if err != nil {
		return Credentials{}, err
	}

	// Client ids cannot contain ':' (HTTP Basic), so the first colon separates the pair.
	id, sec, _ := strings.Cut(secret, ":")
	creds := Credentials{ClientID: id, ClientSecret: sec}
	if !creds.Complete() {
		return Credentials{}, &ConfigurationError{Source: []string{k.location()}}
	}
	return creds, nil
}

// Write persists the credentials to the system keyring, overwriting any existing value.
func (k *KeyringStore) Write(ctx context.Context, creds Credentials) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !creds.Complete() {
		return fmt.Errorf("client id and client secret are both required")
	}
	if strings.Contains(creds.ClientID, ":") {
		return fmt.Errorf("client id must not contain ':'")
	}

	return keyring.Set(k.service, k.user, creds.ClientID+":"+creds.ClientSecret)
}

func (k *KeyringStore) location() string {
	return fmt.Sprintf("keyring (service %s, user %s)", k.service, k.user)
}

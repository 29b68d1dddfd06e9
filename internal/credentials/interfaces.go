package credentials

import "context"

// Store reads and writes the client credentials.
type Store interface {
	// Read returns the stored credentials. Returns a *ConfigurationError if either value is missing.
	Read(ctx context.Context) (Credentials, error)

	// Write persists the credentials. Returns error if the storage backend
	// is read-only (e.g., environment variables) or if the write fails.
	Write(ctx context.Context, creds Credentials) error
}

package credentials

import (
	"fmt"
	"strings"
)

// Default environment variable names for the client credentials.
const (
	DefaultClientIDEnv     = "F5_IHEALTH_CLIENT_ID"
	DefaultClientSecretEnv = "F5_IHEALTH_CLIENT_SECRET"
)

// Credentials is the client identifier and secret pair.
type Credentials struct {
	ClientID     string
	ClientSecret string
}

// Complete reports whether both values are present.
func (c Credentials) Complete() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// String redacts the secret so credentials never end up in logs verbatim.
func (c Credentials) String() string {
	return fmt.Sprintf("Credentials{ClientID: %q, ClientSecret: <redacted>}", c.ClientID)
}

// ConfigurationError reports missing credentials. It is fatal to every operation
// that requires authentication but never crashes the process.
type ConfigurationError struct {
	// Source names where the credentials were expected, e.g. the two
	// environment variable names or a file path.
	Source []string
	// Message overrides the generated text when set.
	Message string
}

func (e *ConfigurationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	switch len(e.Source) {
	case 0:
		return "client credentials are required"
	case 1:
		return "client credentials are required in " + e.Source[0]
	default:
		return strings.Join(e.Source, " and ") + " environment variables are required"
	}
}

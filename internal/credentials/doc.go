// Package credentials provides the client-credentials pair used to authenticate
// against the F5 iHealth identity provider.
//
// Supports three storage backends with different security and deployment tradeoffs:
//   - Env: Read-only environment variable access (default, F5_IHEALTH_CLIENT_ID / F5_IHEALTH_CLIENT_SECRET)
//   - File: Local filesystem storage with atomic writes and secure permissions
//   - Keyring: OS-native credential storage (macOS Keychain, Windows Credential Manager, etc.)
//
// Every backend fails closed: a missing or empty client id or secret is reported
// as a *ConfigurationError rather than an empty value.
package credentials

package ihealth

import (
	"strconv"

	"github.com/florianilch/ihealth-mcp/internal/credentials"
	"github.com/florianilch/ihealth-mcp/internal/tokensource"
)

// ConfigurationError reports missing client credentials.
type ConfigurationError = credentials.ConfigurationError

// AuthenticationError reports a rejected or unreachable token exchange.
type AuthenticationError = tokensource.AuthenticationError

// UnsupportedMethodError is a programming error: the gateway only speaks
// GET, POST, PUT and DELETE.
type UnsupportedMethodError struct {
	Method string
}

func (e *UnsupportedMethodError) Error() string {
	return "Unsupported HTTP method: " + e.Method
}

// ValidationError is a local input failure detected before any network call.
type ValidationError struct {
	// Param is the offending parameter name.
	Param string
	// Message overrides the default "<param> parameter is required" text.
	Message string
}

// RequiredParam returns the ValidationError for a missing required parameter.
func RequiredParam(name string) *ValidationError {
	return &ValidationError{Param: name}
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Param + " parameter is required"
}

// RemoteError is any non-2xx response other than 202. Never retried.
type RemoteError struct {
	StatusCode int
	Body       string
}

func (e *RemoteError) Error() string {
	return "API request failed: " + strconv.Itoa(e.StatusCode)
}

// Details returns the raw response body.
func (e *RemoteError) Details() string {
	return e.Body
}

// TransportError is a network, timeout or protocol failure. Never retried.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "API request failed: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// detailer is implemented by errors carrying a response body.
type detailer interface {
	Details() string
}

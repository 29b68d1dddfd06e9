package tokensource

import (
	"net/http"

	"github.com/florianilch/ihealth-mcp/internal/credentials"
)

// tokenRequestTransport rewrites oauth2's token request headers to match what
// the F5 identity provider expects.
// The oauth2 package guarantees this transport only receives token endpoint requests.
type tokenRequestTransport struct {
	base  http.RoundTripper
	creds credentials.Credentials
}

// Compile-time check that tokenRequestTransport implements http.RoundTripper.
var _ http.RoundTripper = (*tokenRequestTransport)(nil)

// RoundTrip replaces the form-escaped Basic credentials with raw ones and adds
// the Accept and Cache-Control headers. The form body is forwarded unchanged.
func (t *tokenRequestTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}

	newReq := req.Clone(req.Context())
	newReq.SetBasicAuth(t.creds.ClientID, t.creds.ClientSecret)
	newReq.Header.Set("Accept", "application/json")
	newReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	newReq.Header.Set("Cache-Control", "no-cache")

	return base.RoundTrip(newReq)
}

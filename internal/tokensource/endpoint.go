package tokensource

import (
	"time"

	"golang.org/x/oauth2"
)

const (
	// DefaultTokenURL is the F5 identity provider token endpoint for iHealth.
	DefaultTokenURL = "https://identity.account.f5.com/oauth2/ausp95ykc80HOU7SQ357/v1/token"

	// DefaultScope is the single scope requested in the client-credentials grant.
	DefaultScope = "ihealth"

	// DefaultExpiresIn applies when the token response omits expires_in.
	DefaultExpiresIn = 1800 * time.Second

	// DefaultExpirySkew is the safety margin before expiry after which a cached
	// token is no longer handed out.
	DefaultExpirySkew = 60 * time.Second

	// DefaultTimeout bounds a single token exchange.
	DefaultTimeout = 30 * time.Second
)

// Endpoint defines the OAuth2 endpoint for F5 iHealth authentication.
// The client id and secret travel in the Authorization header.
var Endpoint = oauth2.Endpoint{
	TokenURL:  DefaultTokenURL,
	AuthStyle: oauth2.AuthStyleInHeader,
}

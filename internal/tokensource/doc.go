// Package tokensource obtains and caches the bearer token used for every
// F5 iHealth API call.
//
// Tokens are acquired with the OAuth2 client-credentials grant against the F5
// identity provider. The token endpoint deviates from what golang.org/x/oauth2
// sends by default in a few ways that require custom handling:
//   - The Basic credentials are base64(client_id:client_secret) without the
//     form-escaping oauth2 applies to both values
//   - The request carries Accept: application/json and Cache-Control: no-cache
//
// # Caching
//
// A Manager keeps exactly one token. It is handed out while the current time is
// before its expiry minus a safety margin (60s by default); afterwards the next
// caller performs a fresh exchange. Concurrent callers share a single in-flight
// exchange.
//
//	m, err := tokensource.New(store)
//	token, err := m.AccessToken(ctx)
//	// Manager also implements oauth2.TokenSource and can be used with oauth2.Transport
//
// # Custom Base Transport
//
// Configure a custom base transport for token requests (e.g., for proxies or tests):
//
//	m, err := tokensource.New(store, tokensource.WithTransport(customTransport))
package tokensource

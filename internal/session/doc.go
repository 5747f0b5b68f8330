// Package session resolves the bearer credential used by the HTTP pipeline
// and the event channel.
//
// Two credential sources exist side by side:
//
//   - LegacySource: a password-login token with an optional expiry, no refresh.
//   - OIDCSource: an OpenID Connect session (access, refresh and id tokens)
//     that refreshes through the provider's token endpoint.
//
// Session picks the active source (OIDC wins when it holds a session) and is
// constructed once at startup, then injected into the interceptor pipeline
// and the hub channel.
package session

// Package services defines the [OAuthClient] and [MusicAPI] collaborators and implements both for Spotify.
//
// # OAuth Client
//
// [SpotifyAuth] runs the authorization-code flow with PKCE on top of [oauth2.Config].
// Token records carry an absolute expiry; [SpotifyAuth.IsExpired] treats a token as
// expired [ExpirySkew] before that instant so that a request never leaves with a token
// that dies in flight.
//
// Refresh does not go through [oauth2.Config.Client]. Callers own the token record and
// must persist whatever Refresh returns, including a rotated refresh token.
//
// # Music API Handles
//
// [SpotifyAuth.NewClient] binds an access token to a [SpotifyClient]. Handles share the
// parent's HTTP client and rate limiter ([rate.Limiter]), and each call is bounded by the
// configured timeout.
//
// # Error Handling
//
// Non-2xx API responses become an [*APIFault] with the upstream status and message:
//   - [APIFault.Unauthorized] : the access token was rejected
//   - [APIFault.RetryAfter] : back-off requested by a 429
//
// All faults match [shared.ErrAPIRequest] with errors.Is. Token endpoint failures wrap
// [shared.ErrAuthExchange] or [shared.ErrAuthRefresh].
//
// # API Mappings
//
// Spotify JSON payloads ([SpotifyUser], [SpotifyTrack], [SpotifyArtist], [SpotifySimplePlaylist])
// are converted to the types in the models package before they leave this package.
package services

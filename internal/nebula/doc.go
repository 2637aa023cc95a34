// Package nebula talks to the Nebula authorization and content APIs.
//
// Transport performs rate-limited HTTP round-trips, Classify tags each
// response as ok, expired or error, and Dispatcher layers the session on top:
// it attaches the bearer token and on expiry refreshes once and retries once.
// Authorizer implements the session's token refresher and Client exposes the
// typed channel and search listings used by the listing cache.
package nebula

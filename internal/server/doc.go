// Package server exposes the resolution engine over a loopback HTTP JSON API.
//
// Only one server runs per state directory; Run holds an advisory file lock
// for its lifetime. When an API token is configured every request must carry
// it as a bearer token.
package server

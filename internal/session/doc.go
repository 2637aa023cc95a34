// Package session owns the Nebula bearer token lifecycle.
//
// A Store is constructed once at bootstrap and shared by every dispatcher
// call. It refreshes lazily, coalesces concurrent refreshes onto one in-flight
// call, and only ever holds the token in memory.
package session

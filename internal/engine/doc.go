// Package engine wires the resolution stack from configuration.
//
// The order matters: the transport is shared by the authorizer and the
// dispatcher, the session store refreshes through the authorizer, and the
// dispatcher reads tokens from the session. One Engine owns one session and
// one set of listing caches for the life of the process.
package engine

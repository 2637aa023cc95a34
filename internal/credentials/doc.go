// Package credentials locates the opaque Nebula credential blob that the
// session store exchanges for bearer tokens. Sources are consulted in order
// (config or environment value first, then the credential file) and absence is
// not an error: it selects anonymous token issuance.
package credentials

// Package creators loads the registry of creators known on both platforms.
//
// The registry is a JSON array of {name, nebula, nebulaAlt, channel, uploads}
// objects read once per process on first use. Lookups are by YouTube channel
// id, by display name (exact or normalized) and by Nebula channel slug.
package creators

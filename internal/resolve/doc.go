// Package resolve answers "which video on the other platform is this one?".
//
// MatchOnChannel and MatchBySearch pair the listing cache with the matcher.
// ResolveNebula applies the tier policy for a YouTube video: the creator's
// primary Nebula channel, then the alternate channel, then a global search,
// and finally a link to the creator's channel. ResolveYouTube goes the other
// way through the creator's uploads playlist.
package resolve

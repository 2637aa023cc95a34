// Package youtube lists YouTube uploads playlists and search results through
// the Data API v3 for reverse lookups (Nebula video to YouTube upload).
//
// Client implements listing.Fetcher for the uploads and search kinds, so the
// same listing cache and matcher used for Nebula serve YouTube as well.
package youtube

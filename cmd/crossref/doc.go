// Command crossref resolves videos between YouTube and Nebula.
//
// Subcommands match titles against a Nebula channel or the global search,
// run the tiered resolution for a YouTube video, look up the YouTube upload
// for a Nebula video, inspect cached listings, manage the stored Nebula
// credential and serve the same operations over a local HTTP API.
package main

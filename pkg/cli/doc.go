// Package cli implements the soroforge command line tool: subscription
// management (subscribe, list, test, logs) against the public API and a
// development emit command feeding the internal ingest endpoint.
//
// Commands resolve the target server from the -server flag, then the
// SOROFORGE_SERVER environment variable, then localhost. The ingest
// bearer token is read from SOROFORGE_INGEST_TOKEN.
package cli

// Package tlsroots provides TLS material for snapql.
//
// Pool assembles the trusted roots used when fetching snapshots over
// HTTPS from a private CDN. Reloader serves the listener's key pair and
// swaps it in place when the files change on disk, so certificate
// rotation never needs a restart.
package tlsroots

// Package snapshot retrieves and unseals database snapshot resources.
//
// A snapshot resource is a serialized SQLite database published at a
// versioned URL:
//
//	<base_url>/<path>?v=<version>
//
// Bumping the version changes the URL and therefore busts every cache
// keyed by it. The Fetcher prefers a cached copy over the network.
//
// Snapshots may be sealed with a passphrase. A sealed snapshot has the
// layout:
//
//	[magic:8 "SNAPQLSL"][format:1][cipher:1][salt:16][nonce|ciphertext|tag]
//
// The key is derived from the passphrase and salt with Argon2id. The
// header bytes are authenticated as additional data.
package snapshot

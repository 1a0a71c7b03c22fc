// Package adaptive provides authenticated encryption with a selectable
// algorithm.
//
// Supported algorithms:
//
//   - AES-256-GCM: preferred where the CPU accelerates AES
//   - ChaCha20-Poly1305: fallback for everything else
//
// Every cipher has a one-byte identifier so sealed payloads can record
// which algorithm produced them. Ciphertexts carry their nonce as a prefix.
//
// Usage:
//
//	c, err := adaptive.New(key)
//	sealed, err := c.Encrypt(plaintext, aad)
//	plaintext, err := c.Decrypt(sealed, aad)
package adaptive

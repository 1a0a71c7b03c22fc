package snapshot

import (
	"bytes"
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"

	"github.com/yndnr/snapql/pkg/crypto/adaptive"
)

// Seal errors.
var (
	ErrNotSealed          = errors.New("snapshot: payload is not sealed")
	ErrPassphraseRequired = errors.New("snapshot: sealed payload requires a passphrase")
	ErrPassphraseTooWeak  = errors.New("snapshot: passphrase too weak (minimum 8 characters)")
	ErrUnsealFailed       = errors.New("snapshot: unseal failed - wrong passphrase or corrupted data")
	ErrUnsupportedFormat  = errors.New("snapshot: unsupported sealed format")
)

var sealMagic = []byte("SNAPQLSL")

const (
	// MinPassphraseLength is the minimum passphrase length.
	MinPassphraseLength = 8

	// SaltLength is the salt length used in key derivation.
	SaltLength = 16

	sealFormat     = 1
	sealHeaderSize = 8 + 1 + 1 + SaltLength

	// Argon2id parameters for key derivation.
	argon2Time    = 3
	argon2Memory  = 64 * 1024
	argon2Threads = 4
)

// IsSealed reports whether data starts with the sealed-snapshot magic.
func IsSealed(data []byte) bool {
	return bytes.HasPrefix(data, sealMagic)
}

// Seal encrypts a snapshot with a key derived from passphrase.
// An empty cipherType selects the platform's preferred cipher.
func Seal(plaintext, passphrase []byte, cipherType adaptive.CipherType) ([]byte, error) {
	if len(passphrase) < MinPassphraseLength {
		return nil, ErrPassphraseTooWeak
	}
	if cipherType == "" {
		cipherType = adaptive.Preferred()
	}

	salt := make([]byte, SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("snapshot: generate salt: %w", err)
	}

	key := deriveKey(passphrase, salt)
	defer zeroKey(key)

	c, err := adaptive.NewWithType(key, cipherType)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}

	header := make([]byte, 0, sealHeaderSize)
	header = append(header, sealMagic...)
	header = append(header, sealFormat, c.ID())
	header = append(header, salt...)

	ciphertext, err := c.Encrypt(plaintext, header)
	if err != nil {
		return nil, fmt.Errorf("snapshot: encrypt: %w", err)
	}

	out := make([]byte, 0, len(header)+len(ciphertext))
	out = append(out, header...)
	return append(out, ciphertext...), nil
}

// Unseal decrypts a sealed snapshot.
func Unseal(sealed, passphrase []byte) ([]byte, error) {
	if !IsSealed(sealed) {
		return nil, ErrNotSealed
	}
	if len(passphrase) == 0 {
		return nil, ErrPassphraseRequired
	}
	if len(sealed) < sealHeaderSize {
		return nil, ErrUnsealFailed
	}

	header := sealed[:sealHeaderSize]
	if header[8] != sealFormat {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedFormat, header[8])
	}
	cipherType, err := adaptive.TypeFromID(header[9])
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	salt := header[10:sealHeaderSize]

	key := deriveKey(passphrase, salt)
	defer zeroKey(key)

	c, err := adaptive.NewWithType(key, cipherType)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}

	plaintext, err := c.Decrypt(sealed[sealHeaderSize:], header)
	if err != nil {
		return nil, ErrUnsealFailed
	}
	return plaintext, nil
}

func deriveKey(passphrase, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, argon2Time, argon2Memory, argon2Threads, adaptive.KeySize)
}

func zeroKey(key []byte) {
	for i := range key {
		key[i] = 0
	}
}

package crypto

import (
	"fmt"

	"golang.org/x/crypto/nacl/secretbox"
)

// SealSecretbox encrypts data under a process-wide symmetric key using NaCl
// secretbox.
// Format: [nonce (24 bytes)][encrypted data]
// Used for system-encrypted private messages.
func SealSecretbox(data []byte, key *[32]byte) ([]byte, error) {
	var nonce [24]byte
	if _, err := RandBytes(nonce[:]); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return secretbox.Seal(nonce[:], data, &nonce, key), nil
}

// OpenSecretbox decrypts data encrypted with SealSecretbox. It returns false
// when the ciphertext does not authenticate under the key, which is the
// expected outcome for messages written under a previous key.
func OpenSecretbox(encrypted []byte, key *[32]byte) ([]byte, bool) {
	if len(encrypted) < 24 {
		return nil, false
	}

	var nonce [24]byte
	copy(nonce[:], encrypted[:24])

	return secretbox.Open(nil, encrypted[24:], &nonce, key)
}

package chat

import (
	"encoding/base64"
	"fmt"
	"unicode/utf8"

	"github.com/hushwire/hushwire/internal/crypto"
)

const (
	// opaqueSizeFactor bounds decoded custom ciphertext relative to the
	// plaintext cap. Ciphertext carries framing overhead, so it gets more
	// room than plaintext.
	opaqueSizeFactor = 4

	// PreviewLen is the number of plaintext characters shown in session
	// summaries.
	PreviewLen = 50
)

// Preview markers for content the server cannot or will not show.
const (
	PreviewDestroyed = "[message destroyed]"
	PreviewEncrypted = "[encrypted message]"
)

// Codec seals and opens message payloads. The key is loaded once at process
// start and shared read-only by all operations.
type Codec struct {
	key          [32]byte
	maxPlaintext int
}

// NewCodec creates a codec for the process-wide key. maxPlaintext bounds the
// character length of system-scheme plaintext.
func NewCodec(key [32]byte, maxPlaintext int) *Codec {
	return &Codec{key: key, maxPlaintext: maxPlaintext}
}

// MaxPlaintext returns the configured plaintext character bound.
func (c *Codec) MaxPlaintext() int { return c.maxPlaintext }

func (c *Codec) maxOpaqueBytes() int { return c.maxPlaintext * opaqueSizeFactor }

// ParseBody validates wire content for a scheme and returns the typed body.
func (c *Codec) ParseBody(scheme Scheme, content string) (Body, error) {
	if content == "" {
		return nil, ErrEmptyMessage
	}

	switch scheme {
	case SchemeSystem:
		if utf8.RuneCountInString(content) > c.maxPlaintext {
			return nil, fmt.Errorf("%w: plaintext exceeds %d characters", ErrPayloadTooLarge, c.maxPlaintext)
		}
		return SystemBody{Plaintext: content}, nil

	case SchemeCustom:
		raw, err := base64.StdEncoding.DecodeString(content)
		if err != nil {
			return nil, ErrInvalidEncoding
		}
		if len(raw) == 0 {
			return nil, ErrEmptyMessage
		}
		if len(raw) > c.maxOpaqueBytes() {
			return nil, fmt.Errorf("%w: ciphertext exceeds %d bytes", ErrPayloadTooLarge, c.maxOpaqueBytes())
		}
		return OpaqueBody{Ciphertext: raw}, nil

	default:
		return nil, ErrInvalidScheme
	}
}

// Seal produces the stored blob for a body. System plaintext is encrypted
// under the process key; opaque ciphertext is stored verbatim.
func (c *Codec) Seal(body Body) ([]byte, error) {
	switch b := body.(type) {
	case SystemBody:
		sealed, err := crypto.SealSecretbox([]byte(b.Plaintext), &c.key)
		if err != nil {
			return nil, fmt.Errorf("seal system message: %w", err)
		}
		return sealed, nil
	case OpaqueBody:
		return b.Ciphertext, nil
	default:
		return nil, ErrInvalidScheme
	}
}

// OpenSystem decrypts a stored system-scheme blob. Returns
// ErrAlreadyDestroyed for absent payloads and ErrDecryptionFailed when the
// blob does not authenticate under the current key (e.g. after key
// rotation); neither is fatal to the caller.
func (c *Codec) OpenSystem(blob []byte) (string, error) {
	if len(blob) == 0 {
		return "", ErrAlreadyDestroyed
	}
	plain, ok := crypto.OpenSecretbox(blob, &c.key)
	if !ok {
		return "", ErrDecryptionFailed
	}
	return string(plain), nil
}

// ViewContent renders the projection content for a stored message: plaintext
// for system messages, base64 ciphertext for custom messages, nil when
// destroyed or undecryptable.
func (c *Codec) ViewContent(m Message) *string {
	if m.Destroyed() || len(m.EncryptedContent) == 0 {
		return nil
	}
	switch m.Scheme {
	case SchemeSystem:
		plain, err := c.OpenSystem(m.EncryptedContent)
		if err != nil {
			return nil
		}
		return &plain
	default:
		encoded := base64.StdEncoding.EncodeToString(m.EncryptedContent)
		return &encoded
	}
}

// Preview renders the short summary line for a message.
func (c *Codec) Preview(m Message) string {
	if m.Destroyed() {
		return PreviewDestroyed
	}
	if len(m.EncryptedContent) == 0 {
		return ""
	}
	if m.Scheme == SchemeSystem {
		plain, err := c.OpenSystem(m.EncryptedContent)
		if err == nil {
			runes := []rune(plain)
			if len(runes) > PreviewLen {
				return string(runes[:PreviewLen]) + "..."
			}
			return plain
		}
	}
	return PreviewEncrypted
}

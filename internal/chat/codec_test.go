package chat

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testKey(b byte) [32]byte {
	var key [32]byte
	for i := range key {
		key[i] = b
	}
	return key
}

func TestCodec_SystemRoundTrip(t *testing.T) {
	codec := NewCodec(testKey(1), 500)

	body, err := codec.ParseBody(SchemeSystem, "hello")
	require.NoError(t, err)

	sealed, err := codec.Seal(body)
	require.NoError(t, err)
	require.NotContains(t, string(sealed), "hello")

	plain, err := codec.OpenSystem(sealed)
	require.NoError(t, err)
	require.Equal(t, "hello", plain)
}

func TestCodec_OpenSystem_WrongKey(t *testing.T) {
	codec := NewCodec(testKey(1), 500)
	rotated := NewCodec(testKey(2), 500)

	sealed, err := codec.Seal(SystemBody{Plaintext: "secret"})
	require.NoError(t, err)

	_, err = rotated.OpenSystem(sealed)
	require.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestCodec_OpenSystem_Destroyed(t *testing.T) {
	codec := NewCodec(testKey(1), 500)

	_, err := codec.OpenSystem(nil)
	require.ErrorIs(t, err, ErrAlreadyDestroyed)
}

func TestCodec_ParseBody_PlaintextTooLong(t *testing.T) {
	codec := NewCodec(testKey(1), 10)

	_, err := codec.ParseBody(SchemeSystem, strings.Repeat("x", 11))
	require.ErrorIs(t, err, ErrPayloadTooLarge)

	_, err = codec.ParseBody(SchemeSystem, strings.Repeat("x", 10))
	require.NoError(t, err)
}

func TestCodec_ParseBody_Opaque(t *testing.T) {
	codec := NewCodec(testKey(1), 10)

	raw := []byte{0xde, 0xad, 0xbe, 0xef}
	body, err := codec.ParseBody(SchemeCustom, base64.StdEncoding.EncodeToString(raw))
	require.NoError(t, err)

	opaque, ok := body.(OpaqueBody)
	require.True(t, ok)
	require.Equal(t, raw, opaque.Ciphertext)

	// Stored verbatim, never interpreted.
	sealed, err := codec.Seal(body)
	require.NoError(t, err)
	require.Equal(t, raw, sealed)
}

func TestCodec_ParseBody_OpaqueInvalidBase64(t *testing.T) {
	codec := NewCodec(testKey(1), 10)

	_, err := codec.ParseBody(SchemeCustom, "not!!base64")
	require.ErrorIs(t, err, ErrInvalidEncoding)
}

func TestCodec_ParseBody_OpaqueTooLarge(t *testing.T) {
	codec := NewCodec(testKey(1), 10)

	// Bound is 4x the plaintext cap on decoded bytes.
	ok := base64.StdEncoding.EncodeToString(make([]byte, 40))
	_, err := codec.ParseBody(SchemeCustom, ok)
	require.NoError(t, err)

	tooBig := base64.StdEncoding.EncodeToString(make([]byte, 41))
	_, err = codec.ParseBody(SchemeCustom, tooBig)
	require.ErrorIs(t, err, ErrPayloadTooLarge)
}

func TestCodec_ParseBody_Empty(t *testing.T) {
	codec := NewCodec(testKey(1), 10)

	_, err := codec.ParseBody(SchemeSystem, "")
	require.ErrorIs(t, err, ErrEmptyMessage)
}

func TestCodec_Preview(t *testing.T) {
	codec := NewCodec(testKey(1), 500)

	sealed, err := codec.Seal(SystemBody{Plaintext: strings.Repeat("a", 80)})
	require.NoError(t, err)

	msg := Message{Scheme: SchemeSystem, EncryptedContent: sealed}
	require.Equal(t, strings.Repeat("a", PreviewLen)+"...", codec.Preview(msg))

	short, err := codec.Seal(SystemBody{Plaintext: "hi"})
	require.NoError(t, err)
	require.Equal(t, "hi", codec.Preview(Message{Scheme: SchemeSystem, EncryptedContent: short}))

	now := time.Now()
	require.Equal(t, PreviewDestroyed, codec.Preview(Message{Scheme: SchemeSystem, DestroyedAt: &now}))
	require.Equal(t, PreviewEncrypted, codec.Preview(Message{Scheme: SchemeCustom, EncryptedContent: []byte{1, 2, 3}}))

	// Undecryptable system content falls back to the encrypted marker.
	rotated := NewCodec(testKey(9), 500)
	require.Equal(t, PreviewEncrypted, rotated.Preview(Message{Scheme: SchemeSystem, EncryptedContent: sealed}))
}

func TestParseScheme(t *testing.T) {
	scheme, err := ParseScheme("system")
	require.NoError(t, err)
	require.Equal(t, SchemeSystem, scheme)

	scheme, err = ParseScheme("custom")
	require.NoError(t, err)
	require.Equal(t, SchemeCustom, scheme)

	_, err = ParseScheme("rot13")
	require.ErrorIs(t, err, ErrInvalidScheme)
}

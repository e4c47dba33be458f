package chat

import "errors"

// Client input errors. Surfaced as a structured error response/frame; the
// connection stays open.
var (
	// ErrSelfSession is returned when both identities of a session are equal.
	ErrSelfSession = errors.New("cannot open a session with yourself")

	// ErrPayloadTooLarge is returned when a message body exceeds the
	// configured size bound.
	ErrPayloadTooLarge = errors.New("message payload too large")

	// ErrInvalidEncoding is returned when caller-supplied ciphertext is not
	// valid base64.
	ErrInvalidEncoding = errors.New("custom ciphertext must be valid base64")

	// ErrInvalidScheduleTime is returned when a scheduled-destroy timestamp
	// is not strictly in the future.
	ErrInvalidScheduleTime = errors.New("scheduled destroy time must be in the future")

	// ErrEmptyMessage is returned when a message body is empty.
	ErrEmptyMessage = errors.New("message content is empty")

	// ErrInvalidScheme is returned for an unknown encryption scheme tag.
	ErrInvalidScheme = errors.New("invalid encryption scheme")
)

// Soft errors. Historical messages may be unreadable after key rotation or
// destruction; callers render an opaque marker instead of failing.
var (
	// ErrAlreadyDestroyed is returned when reading the payload of a
	// destroyed message.
	ErrAlreadyDestroyed = errors.New("message already destroyed")

	// ErrDecryptionFailed is returned when a system-encrypted payload does
	// not authenticate under the current key.
	ErrDecryptionFailed = errors.New("decryption failed")
)

// ErrSessionNotFound is returned when no session exists for an identity pair.
var ErrSessionNotFound = errors.New("session not found")

// ErrMessageNotFound is returned when a message id cannot be resolved.
var ErrMessageNotFound = errors.New("message not found")

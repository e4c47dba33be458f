package chat

import "time"

// Scheme is the encryption discipline applied to a message payload.
type Scheme string

const (
	// SchemeSystem messages are encrypted by the server under the
	// process-wide key; clients send and receive plaintext.
	SchemeSystem Scheme = "system"
	// SchemeCustom messages carry caller-supplied ciphertext, transported as
	// base64. The server stores it verbatim and never attempts to decrypt.
	SchemeCustom Scheme = "custom"
)

// ParseScheme validates a wire-level scheme tag.
func ParseScheme(raw string) (Scheme, error) {
	switch Scheme(raw) {
	case SchemeSystem, SchemeCustom:
		return Scheme(raw), nil
	default:
		return "", ErrInvalidScheme
	}
}

// Body is the validated message payload before sealing. Exactly one concrete
// type exists per scheme.
type Body interface {
	Scheme() Scheme
}

// SystemBody is plaintext to be encrypted under the process-wide key.
type SystemBody struct {
	Plaintext string
}

func (SystemBody) Scheme() Scheme { return SchemeSystem }

// OpaqueBody is caller-supplied ciphertext, stored without interpretation.
type OpaqueBody struct {
	Ciphertext []byte
}

func (OpaqueBody) Scheme() Scheme { return SchemeCustom }

// Session is the unique conversation between two identities, stored under
// the canonical (low, high) id order.
type Session struct {
	ID         string
	UserLowID  int64
	UserHighID int64
	IsActive   bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// OtherUser returns the counterpart identity id for a participant.
func (s Session) OtherUser(userID int64) int64 {
	if userID == s.UserLowID {
		return s.UserHighID
	}
	return s.UserLowID
}

// Message is one unit of communication within a session. EncryptedContent is
// nil exactly when DestroyedAt is set.
type Message struct {
	ID                 int64
	SessionID          string
	SenderID           int64
	ReceiverID         int64
	EncryptedContent   []byte
	Scheme             Scheme
	IsBurnAfterReading bool
	BurnAt             *time.Time
	DestroyedAt        *time.Time
	IsRead             bool
	ReadAt             *time.Time
	CreatedAt          time.Time
}

// Destroyed reports whether the destroy transition has run.
func (m Message) Destroyed() bool { return m.DestroyedAt != nil }

// MessageView is the per-message projection returned to clients. Content is
// plaintext for system messages, base64 ciphertext for custom messages, and
// nil when the payload is destroyed or undecryptable.
type MessageView struct {
	ID                 int64      `json:"id"`
	SenderID           int64      `json:"sender_id"`
	SenderUsername     string     `json:"sender_username"`
	Content            *string    `json:"content"`
	Scheme             Scheme     `json:"encryption_type"`
	IsBurnAfterReading bool       `json:"is_burn_after_reading"`
	BurnAt             *time.Time `json:"burn_at"`
	DestroyedAt        *time.Time `json:"destroyed_at"`
	IsRead             bool       `json:"is_read"`
	ReadAt             *time.Time `json:"read_at"`
	CreatedAt          time.Time  `json:"created_at"`
}

// StateChange describes a read or destroy transition on a message.
type StateChange struct {
	ID          int64      `json:"id"`
	IsRead      bool       `json:"is_read"`
	ReadAt      *time.Time `json:"read_at"`
	DestroyedAt *time.Time `json:"destroyed_at"`
}

// EventPublisher fans lifecycle events out to the session's delivery group.
// Delivery is best-effort; offline peers recover via cursor fetch.
type EventPublisher interface {
	PublishNewMessage(sessionID string, msg MessageView)
	PublishStateChange(sessionID string, change StateChange)
}

// SessionSummary is one entry of the aggregate unread summary.
type SessionSummary struct {
	SessionID     string    `json:"session_id"`
	OtherUserID   int64     `json:"other_user_id"`
	OtherUsername string    `json:"other_username"`
	UnreadCount   int       `json:"unread_count"`
	Preview       string    `json:"preview"`
	UpdatedAt     time.Time `json:"updated_at"`
}

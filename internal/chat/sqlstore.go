package chat

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SQLStore implements Store on top of database/sql (sqlite).
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

const messageColumns = `id, session_id, sender_id, receiver_id, encrypted_content, encryption_type,
	is_burn_after_reading, burn_at, destroyed_at, is_read, read_at, created_at`

func scanMessage(row interface{ Scan(...any) error }) (Message, error) {
	var (
		m           Message
		content     []byte
		scheme      string
		burn        int64
		read        int64
		burnAt      sql.NullTime
		destroyedAt sql.NullTime
		readAt      sql.NullTime
	)
	err := row.Scan(&m.ID, &m.SessionID, &m.SenderID, &m.ReceiverID, &content, &scheme,
		&burn, &burnAt, &destroyedAt, &read, &readAt, &m.CreatedAt)
	if err != nil {
		return Message{}, err
	}
	m.EncryptedContent = content
	m.Scheme = Scheme(scheme)
	m.IsBurnAfterReading = burn != 0
	m.IsRead = read != 0
	if burnAt.Valid {
		t := burnAt.Time
		m.BurnAt = &t
	}
	if destroyedAt.Valid {
		t := destroyedAt.Time
		m.DestroyedAt = &t
	}
	if readAt.Valid {
		t := readAt.Time
		m.ReadAt = &t
	}
	return m, nil
}

func scanSession(row interface{ Scan(...any) error }) (Session, error) {
	var (
		s      Session
		active int64
	)
	err := row.Scan(&s.ID, &s.UserLowID, &s.UserHighID, &active, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return Session{}, err
	}
	s.IsActive = active != 0
	return s, nil
}

func (s *SQLStore) GetSessionByPair(ctx context.Context, lowID, highID int64) (Session, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, user_low_id, user_high_id, is_active, created_at, updated_at
FROM chat_sessions
WHERE user_low_id = ? AND user_high_id = ?;
`, lowID, highID)
	session, err := scanSession(row)
	if err == sql.ErrNoRows {
		return Session{}, ErrSessionNotFound
	} else if err != nil {
		return Session{}, fmt.Errorf("get session by pair: %w", err)
	}
	return session, nil
}

func (s *SQLStore) InsertSessionIfAbsent(ctx context.Context, id string, lowID, highID int64, now time.Time) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO chat_sessions (id, user_low_id, user_high_id, is_active, created_at, updated_at)
VALUES (?, ?, ?, 1, ?, ?)
ON CONFLICT (user_low_id, user_high_id) DO NOTHING;
`, id, lowID, highID, now, now)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *SQLStore) TouchSession(ctx context.Context, sessionID string, now time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE chat_sessions SET updated_at = ? WHERE id = ?`, now, sessionID)
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

func (s *SQLStore) InsertMessage(ctx context.Context, m *Message) (int64, error) {
	var burnAt any
	if m.BurnAt != nil {
		burnAt = *m.BurnAt
	}
	res, err := s.db.ExecContext(ctx, `
INSERT INTO private_messages
	(session_id, sender_id, receiver_id, encrypted_content, encryption_type,
	 is_burn_after_reading, burn_at, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?);
`, m.SessionID, m.SenderID, m.ReceiverID, m.EncryptedContent, string(m.Scheme),
		boolToInt(m.IsBurnAfterReading), burnAt, m.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("insert message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert message: %w", err)
	}
	m.ID = id
	return id, nil
}

func (s *SQLStore) GetMessage(ctx context.Context, id int64) (Message, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+messageColumns+` FROM private_messages WHERE id = ?`, id)
	m, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return Message{}, ErrMessageNotFound
	} else if err != nil {
		return Message{}, fmt.Errorf("get message: %w", err)
	}
	return m, nil
}

func (s *SQLStore) ListMessagesAfter(ctx context.Context, sessionID string, afterID int64, limit int) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT `+messageColumns+`
FROM private_messages
WHERE session_id = ?
  AND id > ?
ORDER BY id ASC
LIMIT ?;
`, sessionID, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()
	return collectMessages(rows)
}

func (s *SQLStore) MarkMessageRead(ctx context.Context, id int64, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
UPDATE private_messages
SET is_read = 1, read_at = ?
WHERE id = ? AND is_read = 0;
`, at, id)
	if err != nil {
		return false, fmt.Errorf("mark message read: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark message read: %w", err)
	}
	return n > 0, nil
}

func (s *SQLStore) DestroyMessage(ctx context.Context, id int64, at time.Time) (bool, error) {
	// Compare-and-set on destroyed_at so read-trigger and sweep-trigger
	// destruction compose; the transition runs at most once.
	res, err := s.db.ExecContext(ctx, `
UPDATE private_messages
SET encrypted_content = NULL, destroyed_at = ?
WHERE id = ? AND destroyed_at IS NULL;
`, at, id)
	if err != nil {
		return false, fmt.Errorf("destroy message: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("destroy message: %w", err)
	}
	return n > 0, nil
}

func (s *SQLStore) UnreadCount(ctx context.Context, userID int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
SELECT COUNT(*) FROM private_messages
WHERE receiver_id = ? AND is_read = 0;
`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("unread count: %w", err)
	}
	return count, nil
}

func (s *SQLStore) SessionUnreadCount(ctx context.Context, sessionID string, userID int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
SELECT COUNT(*) FROM private_messages
WHERE session_id = ? AND receiver_id = ? AND is_read = 0;
`, sessionID, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("session unread count: %w", err)
	}
	return count, nil
}

func (s *SQLStore) MarkAllRead(ctx context.Context, userID int64, at time.Time) ([]Message, error) {
	// All-or-nothing: either every unread message transitions or none do.
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("mark all read: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
SELECT `+messageColumns+`
FROM private_messages
WHERE receiver_id = ? AND is_read = 0
ORDER BY id ASC;
`, userID)
	if err != nil {
		return nil, fmt.Errorf("mark all read: %w", err)
	}
	unread, err := collectMessages(rows)
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("mark all read: %w", err)
	}

	for _, m := range unread {
		if _, err := tx.ExecContext(ctx, `
UPDATE private_messages
SET is_read = 1, read_at = ?
WHERE id = ? AND is_read = 0;
`, at, m.ID); err != nil {
			return nil, fmt.Errorf("mark all read: message %d: %w", m.ID, err)
		}
		if m.IsBurnAfterReading {
			if _, err := tx.ExecContext(ctx, `
UPDATE private_messages
SET encrypted_content = NULL, destroyed_at = ?
WHERE id = ? AND destroyed_at IS NULL;
`, at, m.ID); err != nil {
				return nil, fmt.Errorf("mark all read: destroy message %d: %w", m.ID, err)
			}
		}
	}

	updated := make([]Message, 0, len(unread))
	for _, m := range unread {
		row := tx.QueryRowContext(ctx,
			`SELECT `+messageColumns+` FROM private_messages WHERE id = ?`, m.ID)
		reloaded, err := scanMessage(row)
		if err != nil {
			return nil, fmt.Errorf("mark all read: reload message %d: %w", m.ID, err)
		}
		updated = append(updated, reloaded)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("mark all read: %w", err)
	}
	return updated, nil
}

func (s *SQLStore) ListRecentSessions(ctx context.Context, userID int64, limit int) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, user_low_id, user_high_id, is_active, created_at, updated_at
FROM chat_sessions
WHERE (user_low_id = ? OR user_high_id = ?)
  AND is_active = 1
ORDER BY updated_at DESC
LIMIT ?;
`, userID, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("list recent sessions: %w", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list recent sessions: %w", err)
	}
	return sessions, nil
}

func (s *SQLStore) LastMessage(ctx context.Context, sessionID string) (Message, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT `+messageColumns+`
FROM private_messages
WHERE session_id = ?
ORDER BY id DESC
LIMIT 1;
`, sessionID)
	m, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return Message{}, ErrMessageNotFound
	} else if err != nil {
		return Message{}, fmt.Errorf("last message: %w", err)
	}
	return m, nil
}

func (s *SQLStore) ListDueScheduled(ctx context.Context, now time.Time, limit int) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT `+messageColumns+`
FROM private_messages
WHERE burn_at IS NOT NULL
  AND burn_at <= ?
  AND destroyed_at IS NULL
ORDER BY burn_at ASC
LIMIT ?;
`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list due scheduled: %w", err)
	}
	defer rows.Close()
	return collectMessages(rows)
}

func collectMessages(rows *sql.Rows) ([]Message, error) {
	var messages []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return messages, nil
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

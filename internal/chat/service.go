package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hushwire/hushwire/internal/identity"
	"github.com/hushwire/hushwire/internal/metrics"
	"github.com/hushwire/hushwire/pkg/logger"
)

const (
	// DefaultFetchLimit bounds one page of the incremental fetch.
	DefaultFetchLimit = 50

	// DefaultSummaryLimit bounds the session list in the unread summary.
	DefaultSummaryLimit = 20

	// sweepBatchLimit bounds one scan of the scheduled-destroy sweep.
	sweepBatchLimit = 500
)

// Service owns the message lifecycle: send, read-marking, destruction and
// the unread aggregation derived from message records.
type Service struct {
	store     Store
	directory identity.Directory
	codec     *Codec
	registry  *Registry
	publisher EventPublisher
	now       func() time.Time

	// Per-session locks serialize persist+publish so group members observe
	// events in creation order.
	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewService creates the chat service. publisher may be nil when no realtime
// fan-out is attached (e.g. in tests).
func NewService(store Store, directory identity.Directory, codec *Codec, registry *Registry, publisher EventPublisher) *Service {
	return &Service{
		store:     store,
		directory: directory,
		codec:     codec,
		registry:  registry,
		publisher: publisher,
		now:       time.Now,
		locks:     make(map[string]*sync.Mutex),
	}
}

// Registry exposes the session registry for connection setup.
func (s *Service) Registry() *Registry { return s.registry }

func (s *Service) sessionLock(sessionID string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	if mu, ok := s.locks[sessionID]; ok {
		return mu
	}
	mu := &sync.Mutex{}
	s.locks[sessionID] = mu
	return mu
}

// SendRequest carries one validated-or-rejected send operation.
type SendRequest struct {
	SenderID         int64
	ReceiverID       int64
	Scheme           Scheme
	Content          string
	BurnAfterReading bool
	BurnAt           *time.Time
}

// Send validates, encrypts, persists and fans out one message. The
// persistence write happens-before the publish: a group member never sees an
// event for a message that is not recorded.
func (s *Service) Send(ctx context.Context, req SendRequest) (MessageView, error) {
	body, err := s.codec.ParseBody(req.Scheme, req.Content)
	if err != nil {
		return MessageView{}, err
	}

	now := s.now()
	if req.BurnAt != nil && !req.BurnAt.After(now) {
		return MessageView{}, ErrInvalidScheduleTime
	}

	session, err := s.registry.GetOrCreate(ctx, req.SenderID, req.ReceiverID)
	if err != nil {
		return MessageView{}, err
	}

	sender, err := s.directory.Lookup(ctx, req.SenderID)
	if err != nil {
		return MessageView{}, err
	}

	sealed, err := s.codec.Seal(body)
	if err != nil {
		return MessageView{}, err
	}

	msg := Message{
		SessionID:          session.ID,
		SenderID:           req.SenderID,
		ReceiverID:         req.ReceiverID,
		EncryptedContent:   sealed,
		Scheme:             req.Scheme,
		IsBurnAfterReading: req.BurnAfterReading,
		BurnAt:             req.BurnAt,
		CreatedAt:          now,
	}

	mu := s.sessionLock(session.ID)
	mu.Lock()
	defer mu.Unlock()

	if _, err := s.store.InsertMessage(ctx, &msg); err != nil {
		return MessageView{}, err
	}
	if err := s.store.TouchSession(ctx, session.ID, now); err != nil {
		logger.Warnf("[chat] failed to touch session %s: %v", session.ID, err)
	}

	view := s.buildView(msg, map[int64]string{sender.ID: sender.Username})
	metrics.MessagesSent.WithLabelValues(string(req.Scheme)).Inc()

	if s.publisher != nil {
		s.publisher.PublishNewMessage(session.ID, view)
	}
	return view, nil
}

// MarkRead transitions a message to read. Idempotent: a second call is a
// no-op. The first transition sets the read timestamp and, for
// burn-after-reading messages, immediately destroys the payload.
func (s *Service) MarkRead(ctx context.Context, id int64) (Message, error) {
	msg, err := s.store.GetMessage(ctx, id)
	if err != nil {
		return Message{}, err
	}
	if msg.IsRead {
		return msg, nil
	}

	marked, err := s.store.MarkMessageRead(ctx, id, s.now())
	if err != nil {
		return Message{}, err
	}
	if marked && msg.IsBurnAfterReading {
		// destroy publishes the combined read+destroyed state change.
		if _, err := s.destroy(ctx, msg.SessionID, id, metrics.TriggerRead); err != nil {
			return Message{}, err
		}
		return s.store.GetMessage(ctx, id)
	}

	updated, err := s.store.GetMessage(ctx, id)
	if err != nil {
		return Message{}, err
	}
	if marked {
		s.publishState(updated)
	}
	return updated, nil
}

// Destroy clears a message payload. Idempotent; returns whether this call
// performed the transition.
func (s *Service) Destroy(ctx context.Context, id int64) (bool, error) {
	msg, err := s.store.GetMessage(ctx, id)
	if err != nil {
		return false, err
	}
	return s.destroy(ctx, msg.SessionID, id, metrics.TriggerSweep)
}

func (s *Service) destroy(ctx context.Context, sessionID string, id int64, trigger string) (bool, error) {
	destroyed, err := s.store.DestroyMessage(ctx, id, s.now())
	if err != nil {
		return false, err
	}
	if !destroyed {
		return false, nil
	}
	metrics.MessagesDestroyed.WithLabelValues(trigger).Inc()

	updated, err := s.store.GetMessage(ctx, id)
	if err == nil {
		s.publishState(updated)
	} else {
		logger.Warnf("[chat] destroyed message %d but failed to reload for publish: %v", id, err)
	}
	return true, nil
}

func (s *Service) publishState(m Message) {
	if s.publisher == nil {
		return
	}
	s.publisher.PublishStateChange(m.SessionID, StateChange{
		ID:          m.ID,
		IsRead:      m.IsRead,
		ReadAt:      m.ReadAt,
		DestroyedAt: m.DestroyedAt,
	})
}

// UnreadCount returns the number of unread messages addressed to the
// identity across all sessions. Always derived from message records;
// destruction does not imply read.
func (s *Service) UnreadCount(ctx context.Context, userID int64) (int, error) {
	return s.store.UnreadCount(ctx, userID)
}

// MarkAllRead marks every unread message addressed to the identity as read,
// triggering burn-after-reading destruction as a side effect, and returns
// the number of messages affected. The transitions commit as one
// transaction; events fan out only after the commit.
func (s *Service) MarkAllRead(ctx context.Context, userID int64) (int, error) {
	updated, err := s.store.MarkAllRead(ctx, userID, s.now())
	if err != nil {
		return 0, err
	}

	for _, msg := range updated {
		if msg.IsBurnAfterReading && msg.Destroyed() {
			metrics.MessagesDestroyed.WithLabelValues(metrics.TriggerRead).Inc()
		}
		s.publishState(msg)
	}
	return len(updated), nil
}

// FetchResult is one page of the incremental message fetch.
type FetchResult struct {
	SessionID   string        `json:"session_id"`
	Messages    []MessageView `json:"messages"`
	TotalUnread int           `json:"total_unread"`
}

// FetchMessages returns messages in the caller's session with the given
// counterpart after the cursor, ascending, marking any fetched unread
// messages addressed to the caller as read. Messages the caller sent are
// never marked by this path.
func (s *Service) FetchMessages(ctx context.Context, callerID, otherID, afterID int64, limit int) (FetchResult, error) {
	if limit <= 0 || limit > DefaultFetchLimit {
		limit = DefaultFetchLimit
	}

	totalUnread := func() int {
		n, err := s.store.UnreadCount(ctx, callerID)
		if err != nil {
			logger.Warnf("[chat] unread count for user %d: %v", callerID, err)
			return 0
		}
		return n
	}

	session, err := s.registry.Find(ctx, callerID, otherID)
	if errors.Is(err, ErrSessionNotFound) {
		return FetchResult{Messages: []MessageView{}, TotalUnread: totalUnread()}, nil
	} else if err != nil {
		return FetchResult{}, err
	}

	page, err := s.store.ListMessagesAfter(ctx, session.ID, afterID, limit)
	if err != nil {
		return FetchResult{}, err
	}

	// Read-marking applies strictly to messages addressed to the caller.
	for _, msg := range page {
		if msg.ReceiverID == callerID && !msg.IsRead {
			if _, err := s.MarkRead(ctx, msg.ID); err != nil {
				logger.Warnf("[chat] mark read message %d: %v", msg.ID, err)
			}
		}
	}

	// Reload so projections reflect read/burn transitions just applied.
	page, err = s.store.ListMessagesAfter(ctx, session.ID, afterID, limit)
	if err != nil {
		return FetchResult{}, err
	}

	usernames, err := s.usernames(ctx, callerID, otherID)
	if err != nil {
		return FetchResult{}, err
	}

	views := make([]MessageView, len(page))
	for i, msg := range page {
		views[i] = s.buildView(msg, usernames)
	}

	return FetchResult{
		SessionID:   session.ID,
		Messages:    views,
		TotalUnread: totalUnread(),
	}, nil
}

// Summary is the aggregate unread overview.
type Summary struct {
	TotalUnread int              `json:"total_unread"`
	Sessions    []SessionSummary `json:"sessions"`
}

// Summarize returns the total unread count and the most recently active
// sessions with per-session unread counts and a message preview.
func (s *Service) Summarize(ctx context.Context, userID int64, limit int) (Summary, error) {
	if limit <= 0 || limit > DefaultSummaryLimit {
		limit = DefaultSummaryLimit
	}

	sessions, err := s.store.ListRecentSessions(ctx, userID, limit)
	if err != nil {
		return Summary{}, err
	}

	entries := make([]SessionSummary, 0, len(sessions))
	for _, session := range sessions {
		otherID := session.OtherUser(userID)
		other, err := s.directory.Lookup(ctx, otherID)
		if err != nil {
			logger.Warnf("[chat] summary: lookup identity %d: %v", otherID, err)
			continue
		}

		unread, err := s.store.SessionUnreadCount(ctx, session.ID, userID)
		if err != nil {
			return Summary{}, err
		}

		preview := ""
		last, err := s.store.LastMessage(ctx, session.ID)
		if err == nil {
			preview = s.codec.Preview(last)
		} else if !errors.Is(err, ErrMessageNotFound) {
			return Summary{}, err
		}

		entries = append(entries, SessionSummary{
			SessionID:     session.ID,
			OtherUserID:   other.ID,
			OtherUsername: other.Username,
			UnreadCount:   unread,
			Preview:       preview,
			UpdatedAt:     session.UpdatedAt,
		})
	}

	total, err := s.store.UnreadCount(ctx, userID)
	if err != nil {
		return Summary{}, err
	}

	return Summary{TotalUnread: total, Sessions: entries}, nil
}

// SweepDue destroys messages whose scheduled-destroy time has elapsed.
// Per-message failures are logged and retried on the next cycle; the sweep
// never aborts on a single bad record.
func (s *Service) SweepDue(ctx context.Context) (int, error) {
	due, err := s.store.ListDueScheduled(ctx, s.now(), sweepBatchLimit)
	if err != nil {
		return 0, fmt.Errorf("scan due messages: %w", err)
	}

	destroyed := 0
	for _, msg := range due {
		ok, err := s.destroy(ctx, msg.SessionID, msg.ID, metrics.TriggerSweep)
		if err != nil {
			logger.Warnf("[sweep] destroy message %d: %v", msg.ID, err)
			continue
		}
		if ok {
			destroyed++
		}
	}
	return destroyed, nil
}

func (s *Service) usernames(ctx context.Context, ids ...int64) (map[int64]string, error) {
	out := make(map[int64]string, len(ids))
	for _, id := range ids {
		ident, err := s.directory.Lookup(ctx, id)
		if err != nil {
			return nil, err
		}
		out[id] = ident.Username
	}
	return out, nil
}

func (s *Service) buildView(m Message, usernames map[int64]string) MessageView {
	return MessageView{
		ID:                 m.ID,
		SenderID:           m.SenderID,
		SenderUsername:     usernames[m.SenderID],
		Content:            s.codec.ViewContent(m),
		Scheme:             m.Scheme,
		IsBurnAfterReading: m.IsBurnAfterReading,
		BurnAt:             m.BurnAt,
		DestroyedAt:        m.DestroyedAt,
		IsRead:             m.IsRead,
		ReadAt:             m.ReadAt,
		CreatedAt:          m.CreatedAt,
	}
}

package websocket

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/hushwire/hushwire/internal/chat"
	"github.com/hushwire/hushwire/internal/crypto"
	"github.com/hushwire/hushwire/internal/identity"
	"github.com/hushwire/hushwire/internal/metrics"
	"github.com/hushwire/hushwire/pkg/logger"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS policy is enforced at the HTTP layer
	},
}

// Server is the connection gateway. Each connection is authenticated, bound
// to exactly one session's delivery group and torn down on disconnect.
type Server struct {
	service    *chat.Service
	directory  identity.Directory
	jwtManager *crypto.JWTManager
	hub        *Hub
}

// NewServer creates the websocket gateway.
func NewServer(service *chat.Service, directory identity.Directory, jwtManager *crypto.JWTManager, hub *Hub) *Server {
	return &Server{
		service:    service,
		directory:  directory,
		jwtManager: jwtManager,
		hub:        hub,
	}
}

// Hub exposes the delivery hub.
func (s *Server) Hub() *Hub { return s.hub }

// authenticate resolves the connecting identity from the Authorization
// header or the token query parameter (browsers cannot set headers on
// websocket dials).
func (s *Server) authenticate(c *gin.Context) (int64, bool) {
	token := c.Query("token")
	if token == "" {
		authHeader := c.GetHeader("Authorization")
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" {
			token = parts[1]
		}
	}
	if token == "" {
		return 0, false
	}

	claims, err := s.jwtManager.VerifyToken(token)
	if err != nil {
		return 0, false
	}
	userID, err := strconv.ParseInt(claims.UserID, 10, 64)
	if err != nil {
		return 0, false
	}
	return userID, true
}

// HandleChat handles GET /ws/private/:user_id. Authentication failures and
// unresolvable counterparts close the connection without any frame.
func (s *Server) HandleChat(c *gin.Context) {
	userID, ok := s.authenticate(c)
	if !ok {
		logger.Warnf("[ws] unauthenticated connection attempt rejected")
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	otherID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil {
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}

	ctx := c.Request.Context()
	if _, err := s.directory.Lookup(ctx, otherID); err != nil {
		logger.Warnf("[ws] user %d connect rejected: counterpart %d: %v", userID, otherID, err)
		c.AbortWithStatus(http.StatusNotFound)
		return
	}

	session, err := s.service.Registry().GetOrCreate(ctx, userID, otherID)
	if err != nil {
		logger.Warnf("[ws] user %d connect rejected: %v", userID, err)
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warnf("[ws] upgrade failed for user %d: %v", userID, err)
		return
	}

	client := NewClient(conn, userID, session.ID)
	go client.WritePump()

	s.hub.Join(session.ID, client)
	metrics.ActiveConnections.Inc()
	logger.Infof("[ws] user %d joined session %s (%d connected)", userID, session.ID, s.hub.GroupSize(session.ID))

	// Group-leave cleanup runs on every exit path, including errors
	// mid-receive.
	defer func() {
		s.hub.Leave(session.ID, client)
		client.Close()
		metrics.ActiveConnections.Dec()
		logger.Infof("[ws] user %d left session %s", userID, session.ID)
	}()

	s.readLoop(c, conn, client, userID, otherID)
}

// readLoop processes inbound frames until the transport disconnects.
// Malformed frames are logged and dropped; processing failures produce an
// error frame but keep the connection open.
func (s *Server) readLoop(c *gin.Context, conn *websocket.Conn, client *Client, userID, otherID int64) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logger.Warnf("[ws] read error for user %d: %v", userID, err)
			}
			return
		}

		var frame InboundFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			logger.Warnf("[ws] dropping malformed frame from user %d: %v", userID, err)
			continue
		}

		switch frame.Type {
		case FrameTypePing:
			s.reply(client, PongFrame{Type: FrameTypePong})

		case FrameTypeMessage:
			s.handleSend(c, client, userID, otherID, frame)

		default:
			logger.Warnf("[ws] dropping frame with unknown type %q from user %d", frame.Type, userID)
		}
	}
}

func (s *Server) handleSend(c *gin.Context, client *Client, userID, otherID int64, frame InboundFrame) {
	schemeTag := frame.EncryptionType
	if schemeTag == "" {
		schemeTag = string(chat.SchemeSystem)
	}
	scheme, err := chat.ParseScheme(schemeTag)
	if err != nil {
		s.reply(client, ErrorFrame{Type: FrameTypeError, Message: err.Error()})
		return
	}

	_, err = s.service.Send(c.Request.Context(), chat.SendRequest{
		SenderID:         userID,
		ReceiverID:       otherID,
		Scheme:           scheme,
		Content:          frame.Message,
		BurnAfterReading: frame.IsBurnAfterReading,
		BurnAt:           frame.BurnAt,
	})
	if err != nil {
		// A failed send never tears down the connection.
		logger.Warnf("[ws] send from user %d failed: %v", userID, err)
		s.reply(client, ErrorFrame{Type: FrameTypeError, Message: sendErrorMessage(err)})
	}
	// On success the hub has already fanned the message frame out to the
	// whole group, sender included.
}

func (s *Server) reply(client *Client, frame any) {
	data, err := json.Marshal(frame)
	if err != nil {
		logger.Errorf("[ws] failed to marshal reply frame: %v", err)
		return
	}
	client.Enqueue(data)
}

// sendErrorMessage maps domain errors to client-facing text. Persistence
// failures stay generic.
func sendErrorMessage(err error) string {
	for _, known := range []error{
		chat.ErrSelfSession,
		chat.ErrPayloadTooLarge,
		chat.ErrInvalidEncoding,
		chat.ErrInvalidScheduleTime,
		chat.ErrEmptyMessage,
		chat.ErrInvalidScheme,
		identity.ErrNotFound,
	} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return "message processing failed"
}

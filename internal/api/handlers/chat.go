package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hushwire/hushwire/internal/api/middleware"
	"github.com/hushwire/hushwire/internal/chat"
	"github.com/hushwire/hushwire/internal/identity"
	"github.com/hushwire/hushwire/pkg/logger"
	"github.com/hushwire/hushwire/pkg/types"
)

// ChatHandler serves the polling/query interface: recovery fetch, unread
// summary, mark-all-read and the non-realtime send fallback.
type ChatHandler struct {
	service *chat.Service
}

func NewChatHandler(service *chat.Service) *ChatHandler {
	return &ChatHandler{service: service}
}

// SendMessageRequest is the body of POST /api/private-chat/send/:user_id.
type SendMessageRequest struct {
	Content            string     `json:"content" binding:"required"`
	EncryptionType     string     `json:"encryption_type"`
	IsBurnAfterReading bool       `json:"is_burn_after_reading"`
	BurnAt             *time.Time `json:"burn_at"`
}

// SendMessageResponse returns the created message id and timestamp.
type SendMessageResponse struct {
	Success   bool      `json:"success"`
	MessageID int64     `json:"message_id"`
	CreatedAt time.Time `json:"created_at"`
}

// GetMessages handles GET /api/private-chat/messages/:user_id.
//
// Returns messages after the last_id cursor in ascending order and marks
// fetched unread messages addressed to the caller as read.
func (h *ChatHandler) GetMessages(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	otherID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{Error: "invalid user id"})
		return
	}

	lastID := int64(0)
	if lastStr := c.Query("last_id"); lastStr != "" {
		if v, err := strconv.ParseInt(lastStr, 10, 64); err == nil && v > 0 {
			lastID = v
		}
	}

	limit := chat.DefaultFetchLimit
	if limitStr := c.Query("limit"); limitStr != "" {
		if v, err := strconv.Atoi(limitStr); err == nil && v > 0 {
			limit = v
		}
	}

	result, err := h.service.FetchMessages(c.Request.Context(), userID, otherID, lastID, limit)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// SendMessage handles POST /api/private-chat/send/:user_id, the non-realtime
// send fallback.
func (h *ChatHandler) SendMessage(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	otherID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{Error: "invalid user id"})
		return
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{Error: err.Error()})
		return
	}

	schemeTag := req.EncryptionType
	if schemeTag == "" {
		schemeTag = string(chat.SchemeSystem)
	}
	scheme, err := chat.ParseScheme(schemeTag)
	if err != nil {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{Error: err.Error()})
		return
	}

	view, err := h.service.Send(c.Request.Context(), chat.SendRequest{
		SenderID:         userID,
		ReceiverID:       otherID,
		Scheme:           scheme,
		Content:          req.Content,
		BurnAfterReading: req.IsBurnAfterReading,
		BurnAt:           req.BurnAt,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, SendMessageResponse{
		Success:   true,
		MessageID: view.ID,
		CreatedAt: view.CreatedAt,
	})
}

// GetSummary handles GET /api/private-chat/summary.
func (h *ChatHandler) GetSummary(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	limit := chat.DefaultSummaryLimit
	if limitStr := c.Query("limit"); limitStr != "" {
		if v, err := strconv.Atoi(limitStr); err == nil && v > 0 {
			limit = v
		}
	}

	summary, err := h.service.Summarize(c.Request.Context(), userID, limit)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

// MarkAllReadResponse reports how many messages the bulk read affected.
type MarkAllReadResponse struct {
	types.SuccessResponse
	UpdatedCount int `json:"updated_count"`
}

// MarkAllRead handles POST /api/private-chat/mark-all-read.
func (h *ChatHandler) MarkAllRead(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	count, err := h.service.MarkAllRead(c.Request.Context(), userID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, MarkAllReadResponse{
		SuccessResponse: types.SuccessResponse{Success: true},
		UpdatedCount:    count,
	})
}

// writeError maps domain errors to HTTP responses. Unknown errors are logged
// and surfaced as a generic failure; the session stays usable.
func (h *ChatHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, identity.ErrNotFound):
		c.JSON(http.StatusNotFound, types.ErrorResponse{Error: err.Error()})
	case errors.Is(err, chat.ErrSelfSession),
		errors.Is(err, chat.ErrPayloadTooLarge),
		errors.Is(err, chat.ErrInvalidEncoding),
		errors.Is(err, chat.ErrInvalidScheduleTime),
		errors.Is(err, chat.ErrEmptyMessage),
		errors.Is(err, chat.ErrInvalidScheme):
		c.JSON(http.StatusBadRequest, types.ErrorResponse{Error: err.Error()})
	default:
		logger.Errorf("[api] chat request failed: %v", err)
		c.JSON(http.StatusInternalServerError, types.ErrorResponse{Error: "internal error"})
	}
}

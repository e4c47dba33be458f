package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/hushwire/hushwire/internal/api/middleware"
	"github.com/hushwire/hushwire/internal/chat"
	"github.com/hushwire/hushwire/internal/crypto"
	"github.com/hushwire/hushwire/internal/database"
	"github.com/hushwire/hushwire/internal/identity"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	router     *gin.Engine
	jwtManager *crypto.JWTManager
	directory  *identity.SQLDirectory
	service    *chat.Service

	alice identity.Identity
	bob   identity.Identity
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.Open(filepath.Join(t.TempDir(), "chat.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	jwtManager, err := crypto.NewJWTManager("test-master-secret")
	require.NoError(t, err)

	directory := identity.NewSQLDirectory(db.DB)
	store := chat.NewSQLStore(db.DB)
	var key [32]byte
	codec := chat.NewCodec(key, 500)
	registry := chat.NewRegistry(store, directory)
	service := chat.NewService(store, directory, codec, registry, nil)

	handler := NewChatHandler(service)

	router := gin.New()
	api := router.Group("/api")
	api.Use(middleware.AuthMiddleware(jwtManager))
	{
		api.GET("/private-chat/summary", handler.GetSummary)
		api.GET("/private-chat/messages/:user_id", handler.GetMessages)
		api.POST("/private-chat/send/:user_id", handler.SendMessage)
		api.POST("/private-chat/mark-all-read", handler.MarkAllRead)
	}

	ctx := context.Background()
	alice, err := directory.Create(ctx, "alice")
	require.NoError(t, err)
	bob, err := directory.Create(ctx, "bob")
	require.NoError(t, err)

	return &testServer{
		router:     router,
		jwtManager: jwtManager,
		directory:  directory,
		service:    service,
		alice:      alice,
		bob:        bob,
	}
}

func (s *testServer) token(t *testing.T, userID int64) string {
	t.Helper()
	token, err := s.jwtManager.CreateToken(strconv.FormatInt(userID, 10))
	require.NoError(t, err)
	return token
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestChatHandler_RequiresAuth(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/private-chat/summary", "", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodGet, "/api/private-chat/summary", "not-a-token", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestChatHandler_SendAndFetch(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/private-chat/send/"+strconv.FormatInt(s.bob.ID, 10),
		s.token(t, s.alice.ID), SendMessageRequest{Content: "hello bob"})
	require.Equal(t, http.StatusOK, w.Code)

	sent := decode[SendMessageResponse](t, w)
	require.True(t, sent.Success)
	require.NotZero(t, sent.MessageID)

	w = s.do(t, http.MethodGet, "/api/private-chat/messages/"+strconv.FormatInt(s.alice.ID, 10),
		s.token(t, s.bob.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	fetched := decode[chat.FetchResult](t, w)
	require.Len(t, fetched.Messages, 1)
	require.Equal(t, sent.MessageID, fetched.Messages[0].ID)
	require.Equal(t, "alice", fetched.Messages[0].SenderUsername)
	require.NotNil(t, fetched.Messages[0].Content)
	require.Equal(t, "hello bob", *fetched.Messages[0].Content)
	require.True(t, fetched.Messages[0].IsRead)
	require.Equal(t, 0, fetched.TotalUnread)
}

func TestChatHandler_FetchWithCursor(t *testing.T) {
	s := newTestServer(t)

	bobPath := strconv.FormatInt(s.bob.ID, 10)
	token := s.token(t, s.alice.ID)
	s.do(t, http.MethodPost, "/api/private-chat/send/"+bobPath, token, SendMessageRequest{Content: "one"})
	w := s.do(t, http.MethodPost, "/api/private-chat/send/"+bobPath, token, SendMessageRequest{Content: "two"})
	last := decode[SendMessageResponse](t, w)

	alicePath := strconv.FormatInt(s.alice.ID, 10)
	w = s.do(t, http.MethodGet, "/api/private-chat/messages/"+alicePath+"?last_id="+strconv.FormatInt(last.MessageID, 10),
		s.token(t, s.bob.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Empty(t, decode[chat.FetchResult](t, w).Messages)
}

func TestChatHandler_SendRejections(t *testing.T) {
	s := newTestServer(t)
	token := s.token(t, s.alice.ID)

	// Self-session.
	w := s.do(t, http.MethodPost, "/api/private-chat/send/"+strconv.FormatInt(s.alice.ID, 10),
		token, SendMessageRequest{Content: "me"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	// Unknown counterpart.
	w = s.do(t, http.MethodPost, "/api/private-chat/send/9999",
		token, SendMessageRequest{Content: "anyone?"})
	require.Equal(t, http.StatusNotFound, w.Code)

	// Unknown encryption scheme.
	w = s.do(t, http.MethodPost, "/api/private-chat/send/"+strconv.FormatInt(s.bob.ID, 10),
		token, SendMessageRequest{Content: "x", EncryptionType: "rot13"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	// Malformed id parameter.
	w = s.do(t, http.MethodPost, "/api/private-chat/send/abc",
		token, SendMessageRequest{Content: "x"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	// Empty body fails binding.
	w = s.do(t, http.MethodPost, "/api/private-chat/send/"+strconv.FormatInt(s.bob.ID, 10),
		token, map[string]string{})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChatHandler_Summary(t *testing.T) {
	s := newTestServer(t)

	token := s.token(t, s.alice.ID)
	bobPath := strconv.FormatInt(s.bob.ID, 10)
	s.do(t, http.MethodPost, "/api/private-chat/send/"+bobPath, token, SendMessageRequest{Content: "one"})
	s.do(t, http.MethodPost, "/api/private-chat/send/"+bobPath, token, SendMessageRequest{Content: "two"})

	w := s.do(t, http.MethodGet, "/api/private-chat/summary", s.token(t, s.bob.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	summary := decode[chat.Summary](t, w)
	require.Equal(t, 2, summary.TotalUnread)
	require.Len(t, summary.Sessions, 1)
	require.Equal(t, "alice", summary.Sessions[0].OtherUsername)
	require.Equal(t, 2, summary.Sessions[0].UnreadCount)
	require.Equal(t, "two", summary.Sessions[0].Preview)
}

func TestChatHandler_MarkAllRead(t *testing.T) {
	s := newTestServer(t)

	token := s.token(t, s.alice.ID)
	bobPath := strconv.FormatInt(s.bob.ID, 10)
	s.do(t, http.MethodPost, "/api/private-chat/send/"+bobPath, token, SendMessageRequest{Content: "one"})
	s.do(t, http.MethodPost, "/api/private-chat/send/"+bobPath, token, SendMessageRequest{Content: "two"})

	w := s.do(t, http.MethodPost, "/api/private-chat/mark-all-read", s.token(t, s.bob.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[map[string]any](t, w)
	require.Equal(t, true, resp["success"])
	require.Equal(t, float64(2), resp["updated_count"])

	// Second pass is a no-op.
	w = s.do(t, http.MethodPost, "/api/private-chat/mark-all-read", s.token(t, s.bob.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp = decode[map[string]any](t, w)
	require.Equal(t, float64(0), resp["updated_count"])
}

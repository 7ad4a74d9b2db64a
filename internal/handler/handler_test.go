package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"whisp/config"
	"whisp/internal/model"
	"whisp/internal/repository"
	"whisp/internal/service"
	"whisp/pkg/db"
	"whisp/pkg/jwt"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	t      *testing.T
	router *gin.Engine
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	gdb, err := db.Open(config.DatabaseConfig{
		Driver:   "sqlite",
		Database: "file:" + name + "?mode=memory&cache=shared",
		LogLevel: "silent",
	})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(model.All()...))
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	limits := config.ContentConfig{MaxWhisperLength: 280, MaxCommentLength: 500, MaxMessageLength: 1000, MaxBioLength: 160}
	store := repository.NewStore(gdb)
	jwtSvc := jwt.NewJWTService(config.JWTConfig{Secret: "test-secret", Issuer: "whisp-test", ExpireTime: time.Hour})
	userSvc := service.NewUserService(store, jwtSvc, nil, limits)
	feedSvc := service.NewFeedService(store, config.FeedConfig{DefaultLimit: 10, MaxLimit: 50})

	router := gin.New()
	SetupRoutes(router, &Handlers{
		User:    NewUserHandler(userSvc, feedSvc),
		Friend:  NewFriendHandler(service.NewRelationService(store, nil)),
		Whisper: NewWhisperHandler(service.NewWhisperService(store, nil, limits), feedSvc),
		Message: NewMessageHandler(service.NewMessageService(store, nil, limits)),
	}, jwtSvc.AuthMiddleware(userSvc.CheckToken))

	return &testServer{t: t, router: router}
}

func (s *testServer) do(method, path, token string, body interface{}) (int, envelope) {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

// register 注册用户，返回用户ID和令牌
func (s *testServer) register(username string) (uint, string) {
	s.t.Helper()
	code, env := s.do(http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"username": username,
		"email":    username + "@example.com",
		"password": "secret123",
	})
	require.Equal(s.t, http.StatusCreated, code, env.Message)

	var auth struct {
		User struct {
			ID uint `json:"id"`
		} `json:"user"`
		AccessToken string `json:"access_token"`
	}
	require.NoError(s.t, json.Unmarshal(env.Data, &auth))
	return auth.User.ID, auth.AccessToken
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)

	code, _ := s.do(http.MethodGet, "/api/v1/whispers/timeline", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	code, _ = s.do(http.MethodGet, "/api/v1/whispers/timeline", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	// 公共列表无需登录
	code, _ = s.do(http.MethodGet, "/api/v1/whispers", "", nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestPublicWhispersDualModePagination(t *testing.T) {
	s := newTestServer(t)
	_, token := s.register("alice")
	for i := 0; i < 3; i++ {
		code, env := s.do(http.MethodPost, "/api/v1/whispers", token, gin.H{"content": "hello"})
		require.Equal(t, http.StatusCreated, code, env.Message)
	}

	_, env := s.do(http.MethodGet, "/api/v1/whispers", "", nil)
	var list []map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &list), "unpaginated response should be an array")
	assert.Len(t, list, 3)

	_, env = s.do(http.MethodGet, "/api/v1/whispers?page=2&limit=2", "", nil)
	var page struct {
		Whispers   []map[string]interface{} `json:"whispers"`
		Page       int                      `json:"page"`
		Limit      int                      `json:"limit"`
		Total      int64                    `json:"total"`
		TotalPages int                      `json:"totalPages"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Len(t, page.Whispers, 1)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 2, page.Limit)
	assert.Equal(t, int64(3), page.Total)
	assert.Equal(t, 2, page.TotalPages)

	// 只给 limit 也进入分页模式
	_, env = s.do(http.MethodGet, "/api/v1/whispers?limit=1", "", nil)
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 3, page.TotalPages)
}

func TestMessagingScenario(t *testing.T) {
	s := newTestServer(t)
	aliceID, alice := s.register("alice")
	bobID, bob := s.register("bob")

	code, env := s.do(http.MethodPost, "/api/v1/messages", alice, gin.H{"receiverId": bobID, "content": "hi"})
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, http.StatusForbidden, env.Code)

	code, _ = s.do(http.MethodPost, "/api/v1/friends/request", alice, gin.H{"receiverId": bobID})
	require.Equal(t, http.StatusOK, code)
	code, _ = s.do(http.MethodPost, "/api/v1/friends/request", alice, gin.H{"receiverId": bobID})
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = s.do(http.MethodPost, "/api/v1/friends/accept", bob, gin.H{"senderId": aliceID})
	require.Equal(t, http.StatusOK, code)

	code, _ = s.do(http.MethodPost, "/api/v1/messages", alice, gin.H{"receiverId": bobID, "content": "hi"})
	require.Equal(t, http.StatusCreated, code)
	code, _ = s.do(http.MethodPost, "/api/v1/messages", bob, gin.H{"receiverId": aliceID, "content": "hello back"})
	require.Equal(t, http.StatusCreated, code)

	code, env = s.do(http.MethodGet, "/api/v1/messages/"+jsonNumber(bobID), alice, nil)
	require.Equal(t, http.StatusOK, code)
	var messages []model.Message
	require.NoError(t, json.Unmarshal(env.Data, &messages))
	require.Len(t, messages, 2)
	assert.Equal(t, "hi", messages[0].Content)
	assert.Equal(t, "hello back", messages[1].Content)
}

func TestErrorMapping(t *testing.T) {
	s := newTestServer(t)
	_, token := s.register("alice")

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		want   int
	}{
		{name: "missing user", method: http.MethodGet, path: "/api/v1/users/9999", want: http.StatusNotFound},
		{name: "bad id", method: http.MethodGet, path: "/api/v1/users/abc", want: http.StatusBadRequest},
		{name: "empty whisper", method: http.MethodPost, path: "/api/v1/whispers", body: gin.H{"content": " "}, want: http.StatusBadRequest},
		{name: "missing whisper", method: http.MethodDelete, path: "/api/v1/whispers/9999", want: http.StatusNotFound},
		{name: "reject from missing user", method: http.MethodPost, path: "/api/v1/friends/reject", body: gin.H{"senderId": 9999}, want: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, env := s.do(tt.method, tt.path, token, tt.body)
			assert.Equal(t, tt.want, code)
			assert.Equal(t, tt.want, env.Code)
		})
	}
}

func TestLogoutRevocationIsOptional(t *testing.T) {
	s := newTestServer(t)
	_, token := s.register("alice")

	code, _ := s.do(http.MethodPost, "/api/v1/auth/logout", token, nil)
	assert.Equal(t, http.StatusOK, code)

	// 未配置黑名单时令牌仍然有效
	code, _ = s.do(http.MethodGet, "/api/v1/whispers/timeline", token, nil)
	assert.Equal(t, http.StatusOK, code)
}

func jsonNumber(id uint) string {
	b, _ := json.Marshal(id)
	return string(b)
}

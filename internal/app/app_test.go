package app

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"changanet/internal/config"
	cacheAdapter "changanet/internal/infrastructure/cache/adapter"
	chat "changanet/internal/pkg/chat/application/domain"
	chatRepo "changanet/internal/pkg/chat/persistence/repository/adapter"
	userRepo "changanet/internal/repository/adapter"
)

type harness struct {
	app *App
	u1  string
	u2  string
}

func testConfig() *config.Config {
	return &config.Config{
		Environment:       "test",
		RequestTimeout:    2 * time.Second,
		StoreDriver:       config.StoreDriverMemory,
		StoreRetries:      2,
		StoreRetryDelay:   time.Millisecond,
		MessageMaxLength:  100,
		RateLimitMessages: 5,
		RateLimitWindow:   time.Minute,
		TypingTTL:         time.Minute,
	}
}

func newHarness(t *testing.T, cfg *config.Config) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	h := &harness{u1: uuid.NewString(), u2: uuid.NewString()}
	h.app = New(cfg, Infra{
		Repo:  chatRepo.NewMemoryChatRepository(),
		Users: userRepo.NewMemoryUserRepository(h.u1, h.u2),
		Cache: cacheAdapter.NewMemoryCache(),
	}, zerolog.Nop())
	t.Cleanup(h.app.Close)
	return h
}

func (h *harness) do(t *testing.T, method, path string, body any, header ...string) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	h.app.Engine.ServeHTTP(w, req)
	out := map[string]any{}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w.Code, out
}

func (h *harness) open(t *testing.T) string {
	t.Helper()
	code, out := h.do(t, http.MethodPost, "/api/v1/conversations", map[string]string{"participant_a": h.u1, "participant_b": h.u2})
	require.Contains(t, []int{http.StatusCreated, http.StatusOK}, code)
	return out["conversation"].(map[string]any)["id"].(string)
}

func errorKind(out map[string]any) string {
	e, _ := out["error"].(map[string]any)
	k, _ := e["kind"].(string)
	return k
}

func TestHTTP_OpenConversation(t *testing.T) {
	h := newHarness(t, testConfig())

	code, out := h.do(t, http.MethodPost, "/api/v1/conversations", map[string]string{"participant_a": h.u1, "participant_b": h.u2})
	assert.Equal(t, http.StatusCreated, code)
	assert.Equal(t, true, out["created"])
	id := out["conversation"].(map[string]any)["id"].(string)

	code, out = h.do(t, http.MethodPost, "/api/v1/conversations", map[string]string{"participant_a": h.u2, "participant_b": h.u1})
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, id, out["conversation"].(map[string]any)["id"])

	code, out = h.do(t, http.MethodPost, "/api/v1/conversations", map[string]string{"participant_a": h.u1, "participant_b": h.u1})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid_participants", errorKind(out))

	code, out = h.do(t, http.MethodPost, "/api/v1/conversations", map[string]string{"participant_a": h.u1})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid_request", errorKind(out))
}

func TestHTTP_BindingRejectsNonUUIDs(t *testing.T) {
	h := newHarness(t, testConfig())

	code, out := h.do(t, http.MethodPost, "/api/v1/conversations", map[string]string{"participant_a": h.u1, "participant_b": "bob"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid_request", errorKind(out))

	code, out = h.do(t, http.MethodPost, "/api/v1/conversations", map[string]string{"participant_a": strings.ToUpper(h.u1), "participant_b": h.u2})
	assert.Equal(t, http.StatusCreated, code)
	id := out["conversation"].(map[string]any)["id"].(string)
	assert.Equal(t, h.open(t), id)

	code, out = h.do(t, http.MethodPost, "/api/v1/conversations/"+id+"/messages", map[string]string{"sender_id": "not-a-uuid", "body": "hola"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid_request", errorKind(out))

	code, out = h.do(t, http.MethodPost, "/api/v1/conversations/"+id+"/read", map[string]string{"participant_id": h.u2, "up_to_message_id": "42"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid_request", errorKind(out))
}

func TestHTTP_SendAndHistory(t *testing.T) {
	h := newHarness(t, testConfig())
	id := h.open(t)

	code, out := h.do(t, http.MethodPost, "/api/v1/conversations/"+id+"/messages", map[string]string{"sender_id": h.u1, "body": "hola"})
	require.Equal(t, http.StatusCreated, code)
	msg := out["message"].(map[string]any)
	assert.Equal(t, "hola", msg["body"])
	assert.Equal(t, "sent", msg["status"])
	assert.NotEmpty(t, msg["id"])

	code, out = h.do(t, http.MethodGet, "/api/v1/conversations/"+id+"/messages?participant_id="+h.u2, nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, out["count"])

	code, out = h.do(t, http.MethodGet, "/api/v1/conversations?participant_id="+h.u1, nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, out["count"])
}

func TestHTTP_ErrorMapping(t *testing.T) {
	h := newHarness(t, testConfig())
	id := h.open(t)
	missing, err := chat.EncodeConversationID(uuid.MustParse(h.u1), uuid.New())
	require.NoError(t, err)
	missingID := missing.String()

	cases := []struct {
		name   string
		path   string
		body   map[string]string
		status int
		kind   string
	}{
		{"malformed id", "/api/v1/conversations/" + h.u1 + "/messages", map[string]string{"sender_id": h.u1, "body": "x"}, http.StatusBadRequest, "malformed_identifier"},
		{"outsider", "/api/v1/conversations/" + id + "/messages", map[string]string{"sender_id": uuid.NewString(), "body": "x"}, http.StatusForbidden, "not_participant"},
		{"missing conversation", "/api/v1/conversations/" + missingID + "/messages", map[string]string{"sender_id": h.u1, "body": "x"}, http.StatusNotFound, "not_found"},
		{"empty body", "/api/v1/conversations/" + id + "/messages", map[string]string{"sender_id": h.u1, "body": " "}, http.StatusBadRequest, "invalid_message"},
		{"archive outsider", "/api/v1/conversations/" + id + "/archive", map[string]string{"participant_id": uuid.NewString()}, http.StatusForbidden, "not_participant"},
		{"typing without flag", "/api/v1/conversations/garbage/typing", map[string]string{"sender_id": h.u1}, http.StatusBadRequest, "invalid_request"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, out := h.do(t, http.MethodPost, tc.path, tc.body)
			assert.Equal(t, tc.status, code)
			assert.Equal(t, tc.kind, errorKind(out))
		})
	}
}

func TestHTTP_RateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitMessages = 2
	h := newHarness(t, cfg)
	id := h.open(t)

	for i := 0; i < 2; i++ {
		code, _ := h.do(t, http.MethodPost, "/api/v1/conversations/"+id+"/messages", map[string]string{"sender_id": h.u1, "body": "hola"})
		require.Equal(t, http.StatusCreated, code)
	}
	code, out := h.do(t, http.MethodPost, "/api/v1/conversations/"+id+"/messages", map[string]string{"sender_id": h.u1, "body": "hola"})
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Equal(t, "rate_limited", errorKind(out))

	// the other participant has their own budget
	code, _ = h.do(t, http.MethodPost, "/api/v1/conversations/"+id+"/messages", map[string]string{"sender_id": h.u2, "body": "hola"})
	assert.Equal(t, http.StatusCreated, code)
}

func TestHTTP_ArchiveTypingRead(t *testing.T) {
	h := newHarness(t, testConfig())
	id := h.open(t)

	code, out := h.do(t, http.MethodPost, "/api/v1/conversations/"+id+"/archive", map[string]string{"participant_id": h.u1})
	require.Equal(t, http.StatusOK, code)
	conv := out["conversation"].(map[string]any)
	for _, p := range conv["participants"].([]any) {
		pm := p.(map[string]any)
		assert.Equal(t, pm["user_id"] == h.u1, pm["archived"])
	}

	code, out = h.do(t, http.MethodGet, "/api/v1/conversations?participant_id="+h.u1, nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 0, out["count"])

	code, _ = h.do(t, http.MethodPost, "/api/v1/conversations/"+id+"/unarchive", map[string]string{"participant_id": h.u1})
	require.Equal(t, http.StatusOK, code)

	code, _ = h.do(t, http.MethodPost, "/api/v1/conversations/"+id+"/typing", map[string]any{"sender_id": h.u2, "is_typing": true})
	assert.Equal(t, http.StatusAccepted, code)

	code, _ = h.do(t, http.MethodPost, "/api/v1/conversations/"+id+"/messages", map[string]string{"sender_id": h.u2, "body": "hola"})
	require.Equal(t, http.StatusCreated, code)
	code, out = h.do(t, http.MethodPost, "/api/v1/conversations/"+id+"/read", map[string]string{"participant_id": h.u1})
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, out["updated"])
}

func TestHTTP_JWTSubjectMustMatchActor(t *testing.T) {
	cfg := testConfig()
	cfg.AuthJWTSecret = "s3cret"
	h := newHarness(t, cfg)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": h.u1,
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("s3cret"))
	require.NoError(t, err)
	auth := []string{"Authorization", "Bearer " + token}

	code, _ := h.do(t, http.MethodPost, "/api/v1/conversations", map[string]string{"participant_a": h.u1, "participant_b": h.u2})
	assert.Equal(t, http.StatusUnauthorized, code)

	code, out := h.do(t, http.MethodPost, "/api/v1/conversations", map[string]string{"participant_a": h.u1, "participant_b": h.u2}, auth...)
	require.Equal(t, http.StatusCreated, code)
	id := out["conversation"].(map[string]any)["id"].(string)

	code, out = h.do(t, http.MethodPost, "/api/v1/conversations/"+id+"/messages", map[string]string{"sender_id": h.u2, "body": "impostor"}, auth...)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "forbidden", errorKind(out))
}

func TestHealthzAndMetrics(t *testing.T) {
	h := newHarness(t, testConfig())
	code, out := h.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", out["status"])

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	h.app.Engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "chat_active_connections")
}

type wsFrame struct {
	Type           string          `json:"type"`
	ConversationID string          `json:"conversation_id"`
	Kind           string          `json:"kind"`
	For            string          `json:"for"`
	RequestID      string          `json:"request_id"`
	Data           json.RawMessage `json:"data"`
	Message        json.RawMessage `json:"message"`
}

func dial(t *testing.T, srv *httptest.Server, userID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/conversations/ws?user_id=" + userID
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	first := readFrame(t, ws)
	require.Equal(t, "connected", first.Type)
	return ws
}

func readFrame(t *testing.T, ws *websocket.Conn) wsFrame {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f wsFrame
	require.NoError(t, ws.ReadJSON(&f))
	return f
}

// readUntil skips frames until one of type typ arrives.
func readUntil(t *testing.T, ws *websocket.Conn, typ string) wsFrame {
	t.Helper()
	for i := 0; i < 10; i++ {
		if f := readFrame(t, ws); f.Type == typ {
			return f
		}
	}
	t.Fatalf("no %s frame", typ)
	return wsFrame{}
}

func TestWebsocket_MessageTypingRead(t *testing.T) {
	h := newHarness(t, testConfig())
	srv := httptest.NewServer(h.app.Engine)
	defer srv.Close()
	id := h.open(t)

	ws1 := dial(t, srv, h.u1)
	ws2 := dial(t, srv, h.u2)

	require.NoError(t, ws1.WriteJSON(map[string]any{"type": "message", "request_id": "r1", "conversation_id": id, "body": "hola"}))
	ack := readUntil(t, ws1, "ack")
	assert.Equal(t, "r1", ack.RequestID)
	assert.Equal(t, "message", ack.For)
	assert.Contains(t, string(ack.Message), `"body":"hola"`)

	got := readUntil(t, ws2, "message-received")
	assert.Equal(t, id, got.ConversationID)
	assert.Contains(t, string(got.Data), `"status":"sent"`)

	require.NoError(t, ws2.WriteJSON(map[string]any{"type": "typing", "conversation_id": id, "is_typing": true}))
	typing := readUntil(t, ws1, "typing-changed")
	assert.JSONEq(t, `{"sender_id":"`+h.u2+`","is_typing":true}`, string(typing.Data))

	require.NoError(t, ws2.WriteJSON(map[string]any{"type": "read", "request_id": "r2", "conversation_id": id}))
	readAck := readUntil(t, ws2, "ack")
	assert.Equal(t, "r2", readAck.RequestID)
	read := readUntil(t, ws1, "messages-read")
	assert.Contains(t, string(read.Data), `"updated":1`)
}

func TestWebsocket_ErrorFrames(t *testing.T) {
	h := newHarness(t, testConfig())
	srv := httptest.NewServer(h.app.Engine)
	defer srv.Close()
	ws := dial(t, srv, h.u1)

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("{")))
	assert.Equal(t, "invalid_request", readUntil(t, ws, "error").Kind)

	require.NoError(t, ws.WriteJSON(map[string]any{"type": "message", "request_id": "x", "conversation_id": "nope", "body": "hola"}))
	f := readUntil(t, ws, "error")
	assert.Equal(t, "malformed_identifier", f.Kind)
	assert.Equal(t, "x", f.RequestID)

	require.NoError(t, ws.WriteJSON(map[string]any{"type": "dance"}))
	assert.Equal(t, "invalid_request", readUntil(t, ws, "error").Kind)
}

func TestWebsocket_RequiresUser(t *testing.T) {
	h := newHarness(t, testConfig())
	code, out := h.do(t, http.MethodGet, "/api/v1/conversations/ws", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid_request", errorKind(out))

	code, out = h.do(t, http.MethodGet, "/api/v1/conversations/ws?user_id=bob", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid_participants", errorKind(out))
}

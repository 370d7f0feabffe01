package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	red "github.com/redis/go-redis/v9"

	"github.com/Ajirohack/API/internal/core/domain"
	"github.com/Ajirohack/API/internal/infra/config"
	"github.com/Ajirohack/API/internal/infra/security"
	redisrepo "github.com/Ajirohack/API/internal/repository/redis"
	"github.com/Ajirohack/API/internal/transport/http/middleware"
	"github.com/Ajirohack/API/internal/usecase"
)

type noopRevocationLog struct{}

func (noopRevocationLog) Append(context.Context, domain.RevokedTokenRecord) error { return nil }

type allowlistAuthorizer struct {
	allowed map[string]bool
}

func (a allowlistAuthorizer) Authorized(_ context.Context, _ string, channel string) (bool, error) {
	return a.allowed[channel], nil
}

type gatewayFixture struct {
	server *httptest.Server
	tokens *usecase.TokenService
	broker *redisrepo.FanoutBroker
	conns  *ConnectionRegistry
	redis  *miniredis.Miniredis
}

func newGatewayFixture(t *testing.T) *gatewayFixture {
	t.Helper()

	server, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	client := red.NewClient(&red.Options{Addr: server.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		server.Close()
	})

	cfg := &config.AppConfig{
		App: config.AppSettings{Name: "platform-gateway", Env: "test"},
		JWT: config.JWTSettings{
			Secret:          "gateway-test-secret",
			Issuer:          "platform-gateway",
			AccessTokenTTL:  30 * time.Minute,
			RefreshTokenTTL: 168 * time.Hour,
		},
		RateLimit: config.RateLimitSettings{
			WindowDuration: time.Minute,
			DefaultLimit:   100,
			RoleLimits:     map[string]int{"admin": 1000, "user": 100, "guest": 20},
		},
		Gateway: config.GatewaySettings{
			LivenessInterval: 100 * time.Millisecond,
			WriteTimeout:     2 * time.Second,
			SendBuffer:       16,
		},
	}

	signer, err := security.NewSigner(cfg.JWT.Secret)
	if err != nil {
		t.Fatalf("NewSigner returned error: %v", err)
	}

	revocations := usecase.NewRevocationStore(
		redisrepo.NewRevocationRepository(client, "revoked_token"),
		noopRevocationLog{},
		nil,
	)
	tokens := usecase.NewTokenService(cfg, signer, revocations, nil, nil, nil)

	limiter := middleware.NewRateLimiter(
		redisrepo.NewRateLimitRepository(client, redisrepo.FixedWindowConfig{KeyPrefix: "ratelimit"}),
		cfg.RateLimit,
		nil,
	)

	broker := redisrepo.NewFanoutBroker(client)
	conns := NewConnectionRegistry()
	authorizer := allowlistAuthorizer{allowed: map[string]bool{"channel:general": true}}

	gateway := NewGateway(cfg.Gateway, tokens, limiter, broker, conns, authorizer, nil, nil, nil)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/api/v1/ws", gateway.Handler)

	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)

	return &gatewayFixture{server: ts, tokens: tokens, broker: broker, conns: conns, redis: server}
}

func (fx *gatewayFixture) dial(t *testing.T, query string, header http.Header) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(fx.server.URL, "http") + "/api/v1/ws"
	if query != "" {
		url += "?" + query
	}

	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func (fx *gatewayFixture) mintAccessToken(t *testing.T, subject string, roles []string) string {
	t.Helper()

	token, _, err := fx.tokens.Mint(subject, roles, domain.TokenTypeAccess)
	if err != nil {
		t.Fatalf("Mint returned error: %v", err)
	}
	return token
}

func (fx *gatewayFixture) waitForConnections(t *testing.T, want int) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if fx.conns.Count() == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d registered connections, have %d", want, fx.conns.Count())
}

// readJSONFrame returns the next JSON frame, skipping liveness pings the
// gateway may interleave while the test is idle.
func readJSONFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		_ = conn.SetReadDeadline(deadline)
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("ReadMessage returned error: %v", err)
		}

		var frame map[string]any
		if err := json.Unmarshal(data, &frame); err != nil {
			t.Fatalf("frame is not JSON: %s", data)
		}
		if frame["type"] == "ping" {
			continue
		}
		return frame
	}

	t.Fatalf("timed out waiting for a frame")
	return nil
}

func expectClose(t *testing.T, conn *websocket.Conn, wantCode int) {
	t.Helper()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	if err == nil {
		t.Fatalf("expected close frame, got a message")
	}

	closeErr, ok := err.(*websocket.CloseError)
	if !ok {
		t.Fatalf("expected close error, got %v", err)
	}
	if closeErr.Code != wantCode {
		t.Fatalf("expected close code %d, got %d (%s)", wantCode, closeErr.Code, closeErr.Text)
	}
}

func TestGateway_PingPong(t *testing.T) {
	fx := newGatewayFixture(t)
	token := fx.mintAccessToken(t, "alice", []string{"user"})

	conn := fx.dial(t, "token="+token, nil)
	fx.waitForConnections(t, 1)

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)); err != nil {
		t.Fatalf("WriteMessage returned error: %v", err)
	}

	frame := readJSONFrame(t, conn)
	if frame["type"] != "pong" {
		t.Fatalf("expected pong frame, got %v", frame)
	}
	if _, ok := frame["timestamp"].(float64); !ok {
		t.Fatalf("expected numeric timestamp, got %v", frame["timestamp"])
	}
}

func TestGateway_RejectsMissingAndInvalidToken(t *testing.T) {
	fx := newGatewayFixture(t)

	conn := fx.dial(t, "", nil)
	expectClose(t, conn, websocket.ClosePolicyViolation)

	conn = fx.dial(t, "token=not-a-token", nil)
	expectClose(t, conn, websocket.ClosePolicyViolation)
}

func TestGateway_RejectsRevokedToken(t *testing.T) {
	fx := newGatewayFixture(t)
	token := fx.mintAccessToken(t, "alice", []string{"user"})

	// First handshake succeeds.
	conn := fx.dial(t, "token="+token, nil)
	fx.waitForConnections(t, 1)
	_ = conn.Close()
	fx.waitForConnections(t, 0)

	if err := fx.tokens.Revoke(context.Background(), token, "user_logout"); err != nil {
		t.Fatalf("Revoke returned error: %v", err)
	}

	// Reconnecting with the revoked token is refused.
	conn = fx.dial(t, "token="+token, nil)
	expectClose(t, conn, websocket.ClosePolicyViolation)
}

func TestGateway_RejectsCSRFMismatch(t *testing.T) {
	fx := newGatewayFixture(t)
	token := fx.mintAccessToken(t, "alice", []string{"user"})

	header := http.Header{}
	header.Set("Cookie", "csrftoken=expected-value")

	conn := fx.dial(t, "token="+token+"&csrf_token=wrong-value", header)
	expectClose(t, conn, closeCSRFFailure)

	// A matching pair passes.
	conn = fx.dial(t, "token="+token+"&csrf_token=expected-value", header)
	fx.waitForConnections(t, 1)
	_ = conn
}

func TestGateway_FanoutDelivery(t *testing.T) {
	fx := newGatewayFixture(t)
	token := fx.mintAccessToken(t, "alice", []string{"user"})

	conn := fx.dial(t, "token="+token, nil)
	fx.waitForConnections(t, 1)

	ctx := context.Background()
	if err := fx.broker.Publish(ctx, "user:alice:realtime", `{"type":"notice","text":"hi"}`); err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}

	frame := readJSONFrame(t, conn)
	if frame["type"] != "notice" {
		t.Fatalf("expected private channel delivery, got %v", frame)
	}

	if err := fx.broker.Publish(ctx, "role:user:broadcasts", `{"type":"broadcast"}`); err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}

	frame = readJSONFrame(t, conn)
	if frame["type"] != "broadcast" {
		t.Fatalf("expected role broadcast delivery, got %v", frame)
	}
}

func TestGateway_JoinChannel(t *testing.T) {
	fx := newGatewayFixture(t)
	token := fx.mintAccessToken(t, "alice", []string{"user"})

	conn := fx.dial(t, "token="+token, nil)
	fx.waitForConnections(t, 1)

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"join_channel","channel":"channel:general"}`)); err != nil {
		t.Fatalf("WriteMessage returned error: %v", err)
	}

	frame := readJSONFrame(t, conn)
	if frame["type"] != "joined_channel" || frame["channel"] != "channel:general" {
		t.Fatalf("expected joined_channel ack, got %v", frame)
	}

	if err := fx.broker.Publish(context.Background(), "channel:general", `{"type":"chat"}`); err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}
	frame = readJSONFrame(t, conn)
	if frame["type"] != "chat" {
		t.Fatalf("expected joined channel delivery, got %v", frame)
	}

	// Unauthorized channels get an error frame, not a disconnect.
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"join_channel","channel":"channel:secret"}`)); err != nil {
		t.Fatalf("WriteMessage returned error: %v", err)
	}
	frame = readJSONFrame(t, conn)
	if frame["type"] != "error" {
		t.Fatalf("expected error frame, got %v", frame)
	}
}

func TestGateway_CommandAndUnknownType(t *testing.T) {
	fx := newGatewayFixture(t)
	token := fx.mintAccessToken(t, "alice", []string{"user"})

	conn := fx.dial(t, "token="+token, nil)
	fx.waitForConnections(t, 1)

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"command","command":"status"}`)); err != nil {
		t.Fatalf("WriteMessage returned error: %v", err)
	}
	frame := readJSONFrame(t, conn)
	if frame["type"] != "command_result" || frame["command"] != "status" {
		t.Fatalf("expected command_result, got %v", frame)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"teleport"}`)); err != nil {
		t.Fatalf("WriteMessage returned error: %v", err)
	}
	frame = readJSONFrame(t, conn)
	if frame["type"] != "error" {
		t.Fatalf("expected error frame for unknown type, got %v", frame)
	}
}

func TestGateway_EchoesPlainText(t *testing.T) {
	fx := newGatewayFixture(t)
	token := fx.mintAccessToken(t, "alice", []string{"user"})

	conn := fx.dial(t, "token="+token, nil)
	fx.waitForConnections(t, 1)

	if err := conn.WriteMessage(websocket.TextMessage, []byte("hello")); err != nil {
		t.Fatalf("WriteMessage returned error: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		_ = conn.SetReadDeadline(deadline)
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("ReadMessage returned error: %v", err)
		}
		if strings.Contains(string(data), `"ping"`) {
			continue
		}
		if string(data) != "Received: hello" {
			t.Fatalf("expected echo, got %s", data)
		}
		return
	}
}

func TestGateway_LivenessPingWhenIdle(t *testing.T) {
	fx := newGatewayFixture(t)
	token := fx.mintAccessToken(t, "alice", []string{"user"})

	conn := fx.dial(t, "token="+token, nil)
	fx.waitForConnections(t, 1)

	// Stay idle past the liveness interval; the gateway probes with a ping.
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage returned error: %v", err)
	}

	var frame map[string]any
	if err := json.Unmarshal(data, &frame); err != nil {
		t.Fatalf("frame is not JSON: %s", data)
	}
	if frame["type"] != "ping" {
		t.Fatalf("expected liveness ping, got %v", frame)
	}
}

func TestGateway_CleansUpOnDisconnect(t *testing.T) {
	fx := newGatewayFixture(t)
	token := fx.mintAccessToken(t, "alice", []string{"user"})

	conn := fx.dial(t, "token="+token, nil)
	fx.waitForConnections(t, 1)

	if got := len(fx.conns.BySubject("alice")); got != 1 {
		t.Fatalf("expected subject index entry, got %d", got)
	}

	// The connection settles into the active state once the serve loop runs.
	deadline := time.Now().Add(2 * time.Second)
	for {
		infos := fx.conns.BySubject("alice")
		if len(infos) == 1 && infos[0].State == domain.ConnectionActive {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("connection never became active: %+v", infos)
		}
		time.Sleep(10 * time.Millisecond)
	}

	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = conn.Close()

	fx.waitForConnections(t, 0)
	if got := fx.conns.BySubject("alice"); got != nil {
		t.Fatalf("expected subject index cleaned, got %v", got)
	}
}

func TestGateway_ReleasesGoroutinesAfterDisconnect(t *testing.T) {
	fx := newGatewayFixture(t)
	token := fx.mintAccessToken(t, "alice", []string{"user"})

	// Warm-up cycle so lazily started server goroutines land in the baseline.
	conn := fx.dial(t, "token="+token, nil)
	fx.waitForConnections(t, 1)
	_ = conn.Close()
	fx.waitForConnections(t, 0)

	baseline := runtime.NumGoroutine()

	for i := 0; i < 3; i++ {
		conn := fx.dial(t, "token="+token, nil)
		fx.waitForConnections(t, 1)

		// Flood frames and drop the socket without reading any replies, so
		// the serve loop exits on a failed write while inbound frames are
		// still queued behind it.
		for j := 0; j < 100; j++ {
			_ = conn.WriteMessage(websocket.TextMessage, []byte("backlog"))
		}
		_ = conn.Close()
		fx.waitForConnections(t, 0)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if runtime.NumGoroutine() <= baseline+2 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("goroutines not released after disconnect: baseline %d, now %d", baseline, runtime.NumGoroutine())
}

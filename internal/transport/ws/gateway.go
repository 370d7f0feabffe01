package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Ajirohack/API/internal/core/domain"
	"github.com/Ajirohack/API/internal/core/port"
	"github.com/Ajirohack/API/internal/infra/config"
	"github.com/Ajirohack/API/internal/infra/logger"
	"github.com/Ajirohack/API/internal/infra/telemetry"
	"github.com/Ajirohack/API/internal/transport/http/middleware"
	"github.com/Ajirohack/API/internal/usecase"
)

const (
	// closeCSRFFailure is an application close code distinct from the
	// standard policy violation so clients can tell a stale CSRF token
	// apart from a bad bearer token.
	closeCSRFFailure = 4401

	csrfCookieName = "csrftoken"
	csrfQueryParam = "csrf_token"
)

// Gateway upgrades authenticated clients to WebSocket connections and fans
// broker messages out to them. Each connection runs one writer loop; a
// dedicated reader goroutine feeds client frames into it, so all writes go
// through a single owner and never race.
type Gateway struct {
	cfg      config.GatewaySettings
	tokens   *usecase.TokenService
	limiter  *middleware.RateLimiter
	broker   port.FanoutBroker
	conns    *ConnectionRegistry
	channels port.ChannelAuthorizer
	events   port.EventPublisher
	metrics  *telemetry.Provider
	logger   *zap.Logger
	now      func() time.Time
	upgrader websocket.Upgrader
}

// NewGateway constructs a gateway instance.
func NewGateway(
	cfg config.GatewaySettings,
	tokens *usecase.TokenService,
	limiter *middleware.RateLimiter,
	broker port.FanoutBroker,
	conns *ConnectionRegistry,
	channels port.ChannelAuthorizer,
	events port.EventPublisher,
	metrics *telemetry.Provider,
	log *zap.Logger,
) *Gateway {
	if log == nil {
		log = zap.NewNop()
	}

	return &Gateway{
		cfg:      cfg,
		tokens:   tokens,
		limiter:  limiter,
		broker:   broker,
		conns:    conns,
		channels: channels,
		events:   events,
		metrics:  metrics,
		logger:   log,
		now:      func() time.Time { return time.Now().UTC() },
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Origin enforcement happens at the edge proxy; the gateway
			// authenticates every connection by token instead.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// WithClock overrides the gateway clock for deterministic tests.
func (g *Gateway) WithClock(clock func() time.Time) *Gateway {
	if clock != nil {
		g.now = clock
	}
	return g
}

// Handler upgrades the HTTP request and runs the connection lifecycle. The
// handshake always upgrades first so rejections arrive as proper close
// frames instead of opaque HTTP errors.
func (g *Gateway) Handler(c *gin.Context) {
	token := bearerToken(c)

	conn, err := g.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		g.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	claims, err := g.tokens.Decode(c.Request.Context(), token, true)
	if err != nil {
		// The close reason stays generic; the class of failure is only
		// logged so clients cannot probe revocation state.
		g.logger.Info("websocket authentication rejected",
			zap.String("token", logger.MaskToken(token)),
			zap.Error(err),
		)
		g.closeWith(conn, websocket.ClosePolicyViolation, "authentication failed")
		return
	}

	if !g.csrfValid(c) {
		g.logger.Info("websocket csrf validation failed", zap.String("subject", claims.Subject))
		g.closeWith(conn, closeCSRFFailure, "csrf validation failed")
		return
	}

	role := g.limiter.BestRole(claims.Roles)
	if _, _, allowed := g.limiter.Check(context.Background(), role, claims.Subject); !allowed {
		g.logger.Info("websocket connection rate limited",
			zap.String("subject", claims.Subject),
			zap.String("role", role),
		)
		g.closeWith(conn, websocket.ClosePolicyViolation, "rate limit exceeded")
		return
	}

	channels := subscriptionChannels(claims.Subject, claims.Roles)

	// The subscription outlives the HTTP handshake context.
	sub, err := g.broker.Subscribe(context.Background(), channels...)
	if err != nil {
		g.logger.Error("fan-out subscribe failed", zap.String("subject", claims.Subject), zap.Error(err))
		g.closeWith(conn, websocket.CloseInternalServerErr, "internal error")
		return
	}

	connID := uuid.NewString()
	now := g.now()
	g.conns.Add(domain.ConnectionInfo{
		ConnectionID:       connID,
		Subject:            claims.Subject,
		Roles:              claims.Roles,
		State:              domain.ConnectionSubscribed,
		ConnectedAt:        now,
		LastActivity:       now,
		SubscribedChannels: channels,
	})
	g.metrics.ActiveConnections().Inc()

	if g.events != nil {
		event := domain.ConnectionOpenedEvent{
			ConnectionID: connID,
			Subject:      claims.Subject,
			Roles:        claims.Roles,
			OpenedAt:     now,
		}
		if err := g.events.PublishConnectionOpened(context.Background(), event); err != nil {
			g.logger.Warn("publish connection opened failed", zap.String("connection_id", connID), zap.Error(err))
		}
	}

	g.logger.Info("websocket connection established",
		zap.String("connection_id", connID),
		zap.String("subject", claims.Subject),
		zap.Strings("channels", channels),
	)

	g.conns.SetState(connID, domain.ConnectionActive)

	reason := g.serve(conn, sub, connID, claims.Subject)

	g.teardown(conn, sub, connID, claims.Subject, reason)
}

// serve runs the connection's writer loop until the client disconnects, the
// broker drops, or liveness probing fails. Returns the close reason.
func (g *Gateway) serve(conn *websocket.Conn, sub port.FanoutSubscription, connID, subject string) string {
	inbound := make(chan []byte, g.sendBuffer())
	go func() {
		defer close(inbound)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			inbound <- data
		}
	}()
	// On exit the reader can be parked on a full inbound buffer. Drain it
	// until the closed socket sends the reader back to ReadMessage, where
	// it observes the error and closes the channel.
	defer func() {
		go func() {
			for range inbound {
			}
		}()
	}()

	interval := g.livenessInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	lastActivity := g.now()

	for {
		select {
		case data, ok := <-inbound:
			if !ok {
				return "client_disconnect"
			}

			lastActivity = g.now()
			g.conns.Touch(connID)
			g.metrics.MessagesDelivered("inbound").Inc()

			if response := g.handleClientMessage(sub, connID, subject, data); response != nil {
				if err := g.write(conn, response); err != nil {
					return "write_failure"
				}
			}

		case payload, ok := <-sub.Messages():
			if !ok {
				return "broker_disconnect"
			}
			if err := g.write(conn, []byte(payload)); err != nil {
				return "write_failure"
			}
			g.metrics.MessagesDelivered("outbound").Inc()

		case <-ticker.C:
			if g.now().Sub(lastActivity) < interval {
				continue
			}
			// Idle connection: probe it. A failed write means the peer
			// is gone without a close frame.
			if err := g.write(conn, newPingFrame(g.now())); err != nil {
				return "liveness_timeout"
			}
		}
	}
}

// handleClientMessage processes one inbound frame. Malformed or unknown
// messages produce an error frame but never terminate the connection.
func (g *Gateway) handleClientMessage(sub port.FanoutSubscription, connID, subject string, data []byte) []byte {
	var msg clientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		// Plain-text frames are echoed back; legacy clients use this
		// as a connectivity check.
		return []byte("Received: " + string(data))
	}

	switch msg.Type {
	case "ping":
		return newPongFrame(g.now())

	case "join_channel":
		if msg.Channel == "" {
			return newErrorFrame("channel is required")
		}

		ok, err := g.channels.Authorized(context.Background(), subject, msg.Channel)
		if err != nil {
			g.logger.Warn("channel authorization failed",
				zap.String("connection_id", connID),
				zap.String("channel", msg.Channel),
				zap.Error(err),
			)
			return newErrorFrame("channel join failed")
		}
		if !ok {
			return newErrorFrame("not authorized for channel")
		}

		if err := sub.Join(context.Background(), msg.Channel); err != nil {
			g.logger.Warn("channel subscribe failed",
				zap.String("connection_id", connID),
				zap.String("channel", msg.Channel),
				zap.Error(err),
			)
			return newErrorFrame("channel join failed")
		}

		g.conns.AddChannel(connID, msg.Channel)
		return newJoinedChannelFrame(msg.Channel)

	case "command":
		if msg.Command == "" {
			return newErrorFrame("command is required")
		}
		g.logger.Info("websocket command received",
			zap.String("connection_id", connID),
			zap.String("command", msg.Command),
		)
		return newCommandResultFrame(msg.Command, msg.Args)

	case "":
		return newErrorFrame("missing message type")

	default:
		return newErrorFrame(fmt.Sprintf("unknown message type: %s", msg.Type))
	}
}

func (g *Gateway) teardown(conn *websocket.Conn, sub port.FanoutSubscription, connID, subject, reason string) {
	g.conns.SetState(connID, domain.ConnectionClosing)

	if err := sub.Close(); err != nil {
		g.logger.Warn("fan-out unsubscribe failed", zap.String("connection_id", connID), zap.Error(err))
	}

	code := websocket.CloseNormalClosure
	if reason == "broker_disconnect" {
		code = websocket.CloseInternalServerErr
	}
	g.closeWith(conn, code, "")

	g.conns.SetState(connID, domain.ConnectionClosed)
	g.conns.Remove(connID)
	g.metrics.ActiveConnections().Dec()

	if g.events != nil {
		event := domain.ConnectionClosedEvent{
			ConnectionID: connID,
			Subject:      subject,
			ClosedAt:     g.now(),
			Reason:       reason,
		}
		if err := g.events.PublishConnectionClosed(context.Background(), event); err != nil {
			g.logger.Warn("publish connection closed failed", zap.String("connection_id", connID), zap.Error(err))
		}
	}

	g.logger.Info("websocket connection closed",
		zap.String("connection_id", connID),
		zap.String("subject", subject),
		zap.String("reason", reason),
	)
}

func (g *Gateway) write(conn *websocket.Conn, payload []byte) error {
	_ = conn.SetWriteDeadline(time.Now().Add(g.writeTimeout()))
	return conn.WriteMessage(websocket.TextMessage, payload)
}

func (g *Gateway) closeWith(conn *websocket.Conn, code int, reason string) {
	message := websocket.FormatCloseMessage(code, reason)
	_ = conn.SetWriteDeadline(time.Now().Add(g.writeTimeout()))
	_ = conn.WriteMessage(websocket.CloseMessage, message)
	_ = conn.Close()
}

func (g *Gateway) csrfValid(c *gin.Context) bool {
	cookie, err := c.Cookie(csrfCookieName)
	if err != nil || cookie == "" {
		// Non-browser clients carry no CSRF cookie; the bearer token is
		// their whole credential.
		return true
	}
	return c.Query(csrfQueryParam) == cookie
}

func (g *Gateway) livenessInterval() time.Duration {
	if g.cfg.LivenessInterval > 0 {
		return g.cfg.LivenessInterval
	}
	return 30 * time.Second
}

func (g *Gateway) writeTimeout() time.Duration {
	if g.cfg.WriteTimeout > 0 {
		return g.cfg.WriteTimeout
	}
	return 10 * time.Second
}

func (g *Gateway) sendBuffer() int {
	if g.cfg.SendBuffer > 0 {
		return g.cfg.SendBuffer
	}
	return 64
}

// bearerToken pulls the credential from the token query parameter, falling
// back to the Authorization header for clients that can set one.
func bearerToken(c *gin.Context) string {
	if token := strings.TrimSpace(c.Query("token")); token != "" {
		return token
	}

	header := c.GetHeader("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// subscriptionChannels computes the fan-out channels every connection gets:
// the subject's private channel plus one broadcast channel per role.
func subscriptionChannels(subject string, roles []string) []string {
	channels := make([]string, 0, len(roles)+1)
	channels = append(channels, fmt.Sprintf("user:%s:realtime", subject))
	for _, role := range roles {
		channels = append(channels, fmt.Sprintf("role:%s:broadcasts", role))
	}
	return channels
}

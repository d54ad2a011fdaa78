package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"stackit/internal/apperror"
	"stackit/internal/auth"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 1 << 16
	sendBuffer     = 256
)

// NotifyRequest 是 notify 事件的载荷。
type NotifyRequest struct {
	RecipientID uint   `json:"recipientId"`
	Type        string `json:"type"`
	Content     string `json:"content"`
	Link        string `json:"link"`
}

// Dispatcher 由业务层实现，负责持久化并通过 Hub 广播。
type Dispatcher interface {
	CanJoin(ctx context.Context, userID, roomID uint) (bool, error)
	SendMessage(ctx context.Context, userID, roomID uint, content string) error
	Notify(ctx context.Context, senderID uint, req NotifyRequest) error
}

type Client struct {
	id     string
	userID uint
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	rooms  map[string]bool
	d      Dispatcher
}

func newClient(h *Hub, conn *websocket.Conn, claims *auth.Claims, d Dispatcher) *Client {
	return &Client{
		id:     uuid.NewString(),
		userID: claims.UserID,
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		rooms:  make(map[string]bool),
		d:      d,
	}
}

func (c *Client) ID() string   { return c.id }
func (c *Client) UserID() uint { return c.userID }

type inbound struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type ServeConfig struct {
	Tokens         *auth.TokenService
	Dispatcher     Dispatcher
	AllowedOrigins []string
}

// Serve 在升级前完成鉴权：token 可放在 Authorization 头或 token 查询参数中。
func Serve(h *Hub, cfg ServeConfig) gin.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(cfg.AllowedOrigins),
	}
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			token, _ = auth.BearerToken(c.GetHeader("Authorization"))
		}
		claims, err := cfg.Tokens.Verify(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication_failed", "message": "authentication failed"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		client := newClient(h, conn, claims, cfg.Dispatcher)
		if !h.Register(client) {
			_ = conn.Close()
			return
		}
		log.Debug().Str("conn_id", client.id).Uint("user_id", client.userID).Msg("ws connected")

		go client.writePump()
		client.readPump(c.Request.Context())
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set[origin]
	}
}

func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
		log.Debug().Str("conn_id", c.id).Uint("user_id", c.userID).Msg("ws disconnected")
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var in inbound
		if err := json.Unmarshal(data, &in); err != nil {
			c.reply(EventError, "malformed frame")
			continue
		}
		c.dispatch(ctx, in)
	}
}

func (c *Client) dispatch(ctx context.Context, in inbound) {
	switch in.Event {
	case EventJoinRoom:
		var req struct {
			RoomID uint `json:"roomId"`
		}
		if err := json.Unmarshal(in.Data, &req); err != nil || req.RoomID == 0 {
			c.reply(EventError, "invalid roomId")
			return
		}
		ok, err := c.d.CanJoin(ctx, c.userID, req.RoomID)
		if err != nil {
			log.Error().Err(err).Uint("user_id", c.userID).Uint("room_id", req.RoomID).Msg("ws join check")
			c.reply(EventError, "join failed")
			return
		}
		if !ok {
			c.reply(EventError, "not a member of this room")
			return
		}
		c.hub.Join(c, ChatRoom(req.RoomID))
	case EventLeaveRoom:
		var req struct {
			RoomID uint `json:"roomId"`
		}
		if err := json.Unmarshal(in.Data, &req); err != nil || req.RoomID == 0 {
			c.reply(EventError, "invalid roomId")
			return
		}
		c.hub.Leave(c, ChatRoom(req.RoomID))
	case EventSendMessage:
		var req struct {
			RoomID  uint   `json:"roomId"`
			Content string `json:"content"`
		}
		if err := json.Unmarshal(in.Data, &req); err != nil {
			c.reply(EventError, "invalid message")
			return
		}
		c.report("send message", c.d.SendMessage(ctx, c.userID, req.RoomID, req.Content))
	case EventNotify:
		var req NotifyRequest
		if err := json.Unmarshal(in.Data, &req); err != nil {
			c.reply(EventError, "invalid notification")
			return
		}
		c.report("notify", c.d.Notify(ctx, c.userID, req))
	default:
		c.reply(EventError, "unknown event")
	}
}

// report 把可告知客户端的业务错误回给发送方；存储错误只记录日志。
func (c *Client) report(op string, err error) {
	if err == nil {
		return
	}
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		c.reply(EventError, appErr.Message)
		return
	}
	log.Error().Err(err).Str("conn_id", c.id).Uint("user_id", c.userID).Msg("ws " + op)
}

func (c *Client) reply(event, message string) {
	c.hub.Direct(c, frame(event, map[string]string{"message": message}))
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

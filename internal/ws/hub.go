package ws

import (
	"context"
	"encoding/json"
	"strconv"

	"stackit/internal/metrics"

	"github.com/rs/zerolog/log"
)

const (
	EventReady          = "ready"
	EventJoinRoom       = "join-room"
	EventJoined         = "joined"
	EventLeaveRoom      = "leave-room"
	EventSendMessage    = "send-message"
	EventReceiveMessage = "receive-message"
	EventNotify         = "notify"
	EventNotification   = "notification"
	EventError          = "error"
)

// UserRoom 是每个连接自动加入的个人房间，用于定向通知。
func UserRoom(userID uint) string { return "user:" + strconv.FormatUint(uint64(userID), 10) }

func ChatRoom(roomID uint) string { return "room:" + strconv.FormatUint(uint64(roomID), 10) }

// Envelope 是跨实例广播的单元：目标房间加已编码的帧。
type Envelope struct {
	Room    string          `json:"room"`
	Payload json.RawMessage `json:"payload"`
}

// Fanout 把广播交给外部总线，由各实例的订阅者再投递到本地连接。
type Fanout interface {
	Publish(ctx context.Context, env Envelope) error
}

type membership struct {
	client *Client
	room   string
}

type directMsg struct {
	client  *Client
	payload []byte
}

type onlineQuery struct {
	room  string
	reply chan int
}

// Hub 是进程内的连接注册表。所有 map 只在 Run 的事件循环里修改，其他 goroutine 通过 channel 提交操作。
type Hub struct {
	clients map[string]*Client
	rooms   map[string]map[*Client]bool

	register    chan *Client
	unregister  chan *Client
	subscribe   chan membership
	unsubscribe chan membership
	deliver     chan Envelope
	direct      chan directMsg
	online      chan onlineQuery
	done        chan struct{}

	fanout Fanout
}

func NewHub() *Hub {
	return &Hub{
		clients:     make(map[string]*Client),
		rooms:       make(map[string]map[*Client]bool),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		subscribe:   make(chan membership),
		unsubscribe: make(chan membership),
		deliver:     make(chan Envelope, 256),
		direct:      make(chan directMsg, 64),
		online:      make(chan onlineQuery),
		done:        make(chan struct{}),
	}
}

// SetFanout 在 Run 之前调用；为 nil 时只做本地投递。
func (h *Hub) SetFanout(f Fanout) { h.fanout = f }

// Run 处理事件直到 ctx 结束，结束时关闭所有连接的发送队列。
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for _, c := range h.clients {
				h.drop(c)
			}
			return
		case c := <-h.register:
			h.clients[c.id] = c
			h.join(c, UserRoom(c.userID))
			metrics.WsConnections.Inc()
			h.enqueue(c, frame(EventReady, map[string]any{"connectionId": c.id, "userId": c.userID}))
		case c := <-h.unregister:
			if _, ok := h.clients[c.id]; ok {
				h.drop(c)
			}
		case m := <-h.subscribe:
			if _, ok := h.clients[m.client.id]; !ok {
				continue
			}
			h.join(m.client, m.room)
			h.enqueue(m.client, frame(EventJoined, map[string]any{"room": m.room}))
		case m := <-h.unsubscribe:
			h.leave(m.client, m.room)
		case env := <-h.deliver:
			for c := range h.rooms[env.Room] {
				h.enqueue(c, env.Payload)
			}
		case d := <-h.direct:
			h.enqueue(d.client, d.payload)
		case q := <-h.online:
			q.reply <- len(h.rooms[q.room])
		}
	}
}

func (h *Hub) join(c *Client, room string) {
	members := h.rooms[room]
	if members == nil {
		members = make(map[*Client]bool)
		h.rooms[room] = members
	}
	members[c] = true
	c.rooms[room] = true
}

func (h *Hub) leave(c *Client, room string) {
	if members, ok := h.rooms[room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	delete(c.rooms, room)
}

// drop 从全部房间和注册表中移除连接，并关闭其发送队列。
func (h *Hub) drop(c *Client) {
	for room := range c.rooms {
		h.leave(c, room)
	}
	delete(h.clients, c.id)
	close(c.send)
	metrics.WsConnections.Dec()
}

// enqueue 不阻塞事件循环：发送队列已满的慢连接直接断开。
func (h *Hub) enqueue(c *Client, b []byte) {
	if _, ok := h.clients[c.id]; !ok {
		return
	}
	select {
	case c.send <- b:
	default:
		log.Warn().Str("conn_id", c.id).Uint("user_id", c.userID).Msg("ws send buffer full, dropping client")
		metrics.WsDroppedTotal.Inc()
		h.drop(c)
	}
}

func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) Join(c *Client, room string) {
	select {
	case h.subscribe <- membership{client: c, room: room}:
	case <-h.done:
	}
}

func (h *Hub) Leave(c *Client, room string) {
	select {
	case h.unsubscribe <- membership{client: c, room: room}:
	case <-h.done:
	}
}

// Deliver 把已编码的帧投递给本实例中订阅了 room 的连接。
func (h *Hub) Deliver(room string, payload []byte) {
	select {
	case h.deliver <- Envelope{Room: room, Payload: payload}:
	case <-h.done:
	}
}

// Direct 只发给单个连接，用于回复该连接自己的错误。
func (h *Hub) Direct(c *Client, payload []byte) {
	select {
	case h.direct <- directMsg{client: c, payload: payload}:
	case <-h.done:
	}
}

// Online 返回本实例中订阅了 room 的连接数。
func (h *Hub) Online(room string) int {
	reply := make(chan int, 1)
	select {
	case h.online <- onlineQuery{room: room, reply: reply}:
		return <-reply
	case <-h.done:
		return 0
	}
}

// Broadcast 编码事件并发往 room；配置了总线时经总线转发，否则直接本地投递。
func (h *Hub) Broadcast(ctx context.Context, room, event string, data any) error {
	payload, err := json.Marshal(outbound{Event: event, Data: data})
	if err != nil {
		return err
	}
	if h.fanout != nil {
		err := h.fanout.Publish(ctx, Envelope{Room: room, Payload: payload})
		if err == nil {
			return nil
		}
		log.Error().Err(err).Str("room", room).Msg("relay fanout publish, delivering locally")
	}
	h.Deliver(room, payload)
	return nil
}

// HandleBusMessage 是总线订阅回调：解码 Envelope 并本地投递。
func (h *Hub) HandleBusMessage(_ context.Context, data []byte) error {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	h.Deliver(env.Room, env.Payload)
	return nil
}

type outbound struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

func frame(event string, data any) []byte {
	b, _ := json.Marshal(outbound{Event: event, Data: data})
	return b
}

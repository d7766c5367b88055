package service

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"net/http"
	"sync"
	"time"

	"edulink_backend/internal/gateway"
	"edulink_backend/internal/model"
	"edulink_backend/internal/store"
	"edulink_backend/internal/util"
	"edulink_backend/pkg/logger"
	"edulink_backend/pkg/monitoring"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	shardCount     = 32
	onlineTTL      = 2 * time.Minute // 在线状态过期时间
)

var (
	// 内存复用 (sync.Pool)
	framePool = sync.Pool{
		New: func() interface{} {
			return &WSMessage{}
		},
	}
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// 入站帧类型
const (
	frameSend       = "SEND"
	frameScroll     = "SCROLL"
	frameHideForMe  = "HIDE_FOR_ME"
	frameHideForAll = "HIDE_FOR_ALL"
)

// 出站帧类型
const (
	frameMessages = "MESSAGES"
	frameError    = "ERROR"
)

type messagesPayload struct {
	RoomID   string              `json:"roomId"`
	Messages []model.ChatMessage `json:"messages"`
	Scroll   string              `json:"scroll"`
}

type Client struct {
	Hub     *ChatHub
	Conn    *websocket.Conn
	Send    chan []byte
	Email   string
	RoomID  string
	Session *ChatSession
	Limiter *rate.Limiter // 限流器
}

func (c *Client) readPump() {
	defer func() {
		c.Hub.unregister <- c
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error { c.Conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Log.Error("WebSocket unexpected close", zap.Error(err), zap.String("email", c.Email))
			}
			break
		}

		// 限流校验 (每秒最多 30 帧，允许突发 50 帧)
		if !c.Limiter.Allow() {
			continue
		}

		// 对象池解析帧。复用前必须清空，否则 Unmarshal 会向旧 map 合并字段
		frame := framePool.Get().(*WSMessage)
		frame.Type, frame.Data = "", nil
		if err := json.Unmarshal(message, frame); err != nil {
			framePool.Put(frame)
			continue
		}

		monitoring.ChatMessageCounter.WithLabelValues(frame.Type, "in").Inc() // 记录上行帧

		c.handleFrame(frame)
		framePool.Put(frame)
	}
}

func (c *Client) handleFrame(frame *WSMessage) {
	data, _ := frame.Data.(map[string]interface{})

	switch frame.Type {
	case frameSend:
		text, _ := data["text"].(string)
		if _, err := c.Session.Send(text); err != nil {
			c.pushError(err)
		}

	case frameScroll:
		deltaY, _ := data["deltaY"].(float64)
		lastVisible, _ := data["lastVisible"].(float64)
		total, _ := data["total"].(float64)
		c.Session.OnScroll(int(deltaY), int(lastVisible), int(total))

	case frameHideForMe:
		id, _ := data["messageId"].(string)
		if err := c.Session.HideForMe(id); err != nil {
			c.pushError(err)
		}

	case frameHideForAll:
		id, _ := data["messageId"].(string)
		if err := c.Session.HideForEveryone(id); err != nil {
			c.pushError(err)
		}
	}
}

func (c *Client) pushError(err error) {
	payload, _ := json.Marshal(WSMessage{
		Type: frameError,
		Data: map[string]interface{}{"message": err.Error()},
	})
	select {
	case c.Send <- payload:
	default:
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if n := len(c.Send); n > 0 {
				for i := 0; i < n; i++ {
					w.Write(<-c.Send)
				}
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

type shard struct {
	clients map[string]*Client
	mu      sync.RWMutex
}

// chatRoom 每个聊天室持有一个消息库和一条网关订阅
type chatRoom struct {
	store   *store.MessageStore
	cancel  context.CancelFunc
	mu      sync.RWMutex
	clients map[string]*Client // 按邮箱
	ready   bool               // 首个订阅快照已应用
}

// ChatHub 管理所有聊天室连接。消息扇出由网关订阅驱动：
// 本地与其他实例的写入都会以全量快照的形式到达每个实例
type ChatHub struct {
	shards     [shardCount]*shard
	register   chan *Client
	unregister chan *Client
	Redis      *redis.Client
	Gateway    gateway.Gateway
	roomsMu    sync.RWMutex
	rooms      map[string]*chatRoom
	ctx        context.Context
	cancel     context.CancelFunc
}

func NewChatHub(rdb *redis.Client, gw gateway.Gateway) *ChatHub {
	ctx, cancel := context.WithCancel(context.Background())
	h := &ChatHub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		Redis:      rdb,
		Gateway:    gw,
		rooms:      make(map[string]*chatRoom),
		ctx:        ctx,
		cancel:     cancel,
	}
	for i := 0; i < shardCount; i++ {
		h.shards[i] = &shard{
			clients: make(map[string]*Client),
		}
	}
	return h
}

func (h *ChatHub) getShard(email string) *shard {
	f := fnv.New32a()
	f.Write([]byte(email))
	return h.shards[f.Sum32()%shardCount]
}

func (h *ChatHub) Run() {
	// 批量处理状态更新
	ticker := time.NewTicker(500 * time.Millisecond)
	// 状态续期定时器 (Heartbeat)
	heartbeatTicker := time.NewTicker(1 * time.Minute)
	defer func() {
		ticker.Stop()
		heartbeatTicker.Stop()
	}()

	type statusUpdate struct {
		email  string
		status string
	}
	var pendingUpdates []statusUpdate

	for {
		select {
		case <-h.ctx.Done():
			return

		case client := <-h.register:
			s := h.getShard(client.Email)
			s.mu.Lock()
			s.clients[client.Email] = client
			s.mu.Unlock()
			pendingUpdates = append(pendingUpdates, statusUpdate{client.Email, "online"})
			monitoring.ChatOnlineUsers.Inc() // 增加在线人数

		case client := <-h.unregister:
			s := h.getShard(client.Email)
			s.mu.Lock()
			if _, ok := s.clients[client.Email]; ok {
				delete(s.clients, client.Email)
				close(client.Send)
				monitoring.ChatOnlineUsers.Dec() // 减少在线人数
			}
			s.mu.Unlock()
			h.leaveRoom(client)
			pendingUpdates = append(pendingUpdates, statusUpdate{client.Email, "offline"})

		case <-heartbeatTicker.C:
			// 为本地在线用户批量续期
			h.refreshOnlineStatus()

		case <-ticker.C:
			if len(pendingUpdates) == 0 || h.Redis == nil {
				pendingUpdates = pendingUpdates[:0]
				continue
			}

			pipe := h.Redis.Pipeline()
			for _, update := range pendingUpdates {
				key := fmt.Sprintf("user:online:%s", update.email)
				if update.status == "online" {
					pipe.Set(h.ctx, key, "true", onlineTTL)
				} else {
					pipe.Del(h.ctx, key)
				}
			}
			if _, err := pipe.Exec(h.ctx); err != nil {
				logger.Log.Error("Redis pipeline error", zap.Error(err))
			}
			pendingUpdates = pendingUpdates[:0]
		}
	}
}

func (h *ChatHub) joinRoom(client *Client) {
	h.roomsMu.Lock()
	room, ok := h.rooms[client.RoomID]
	if !ok {
		ctx, cancel := context.WithCancel(h.ctx)
		room = &chatRoom{
			store:   store.NewMessageStore(client.RoomID, h.Gateway),
			cancel:  cancel,
			clients: make(map[string]*Client),
		}
		h.rooms[client.RoomID] = room
		go h.watchRoom(ctx, client.RoomID, room)
	}
	h.roomsMu.Unlock()

	client.Session = NewChatSession(client.Email, room.store)

	room.mu.Lock()
	room.clients[client.Email] = client
	ready := room.ready
	room.mu.Unlock()

	// 新成员立即收到当前可见消息（初始加载，跳到末尾）。
	// 快照未到时不推：会话的首次更新信号要留给真实历史，
	// 此时客户端已注册，watchRoom 的首次扇出会带上它
	if ready {
		h.pushMessages(client, room)
	}
}

func (h *ChatHub) leaveRoom(client *Client) {
	h.roomsMu.Lock()
	defer h.roomsMu.Unlock()

	room, ok := h.rooms[client.RoomID]
	if !ok {
		return
	}

	room.mu.Lock()
	if room.clients[client.Email] == client {
		delete(room.clients, client.Email)
	}
	empty := len(room.clients) == 0
	room.mu.Unlock()

	// 最后一个成员离开后停掉订阅
	if empty {
		room.cancel()
		delete(h.rooms, client.RoomID)
	}
}

// RoomStore 暴露给 REST 层的消息库（用于历史查询和非 WS 的发送）
func (h *ChatHub) RoomStore(roomID string) *store.MessageStore {
	h.roomsMu.RLock()
	room, ok := h.rooms[roomID]
	h.roomsMu.RUnlock()
	if ok {
		return room.store
	}
	return nil
}

// watchRoom 消费房间订阅：每个快照整体替换消息库并向所有连接扇出
func (h *ChatHub) watchRoom(ctx context.Context, roomID string, room *chatRoom) {
	ch, err := h.Gateway.Subscribe(ctx, gateway.CollectionChatMessages,
		gateway.Filter{"roomId": roomID}, "timestamp")
	if err != nil {
		logger.Log.Error("room subscription failed", zap.String("roomId", roomID), zap.Error(err))
		return
	}

	for snap := range ch {
		if snap.Err != nil {
			// 非致命：保留最后一次成功的消息列表，通知所有连接
			room.mu.RLock()
			for _, c := range room.clients {
				c.Session.OnSubscriptionError(snap.Err)
				c.pushError(snap.Err)
			}
			room.mu.RUnlock()
			continue
		}

		msgs, err := gateway.DecodeAll[model.ChatMessage](snap.Docs)
		if err != nil {
			logger.Log.Error("snapshot decode failed", zap.String("roomId", roomID), zap.Error(err))
			continue
		}
		room.store.ApplySnapshot(msgs)

		// ready 翻转和成员收集在同一次持锁内完成：
		// 晚于翻转注册的成员自己推，早于翻转的都在本次扇出里
		room.mu.Lock()
		room.ready = true
		clients := make([]*Client, 0, len(room.clients))
		for _, c := range room.clients {
			clients = append(clients, c)
		}
		room.mu.Unlock()

		for _, c := range clients {
			h.pushMessages(c, room)
		}
	}
}

// pushMessages 按用户过滤可见消息并附带滚动信号下发
func (h *ChatHub) pushMessages(c *Client, room *chatRoom) {
	visible := room.store.VisibleTo(c.Email)
	signal := c.Session.OnRemoteUpdate(visible)

	payload, err := json.Marshal(WSMessage{
		Type: frameMessages,
		Data: messagesPayload{
			RoomID:   room.store.RoomID(),
			Messages: visible,
			Scroll:   signal.String(),
		},
	})
	if err != nil {
		return
	}

	monitoring.ChatMessageCounter.WithLabelValues(frameMessages, "out").Inc() // 记录下行帧

	select {
	case c.Send <- payload:
	default:
		// 慢连接丢帧，下一次快照仍是全量
	}
}

// refreshOnlineStatus 刷新当前实例所有在线用户的过期时间
func (h *ChatHub) refreshOnlineStatus() {
	if h.Redis == nil {
		return
	}
	pipe := h.Redis.Pipeline()
	count := 0
	for i := 0; i < shardCount; i++ {
		s := h.shards[i]
		s.mu.RLock()
		for email := range s.clients {
			pipe.Expire(h.ctx, fmt.Sprintf("user:online:%s", email), onlineTTL)
			count++
		}
		s.mu.RUnlock()
	}
	if count > 0 {
		pipe.Exec(h.ctx)
		logger.Log.Debug("Refreshed online status", zap.Int("count", count))
	}
}

func (h *ChatHub) IsUserOnline(email string) bool {
	// 查本地分片
	s := h.getShard(email)
	s.mu.RLock()
	_, ok := s.clients[email]
	s.mu.RUnlock()
	if ok {
		return true
	}

	// 查 Redis (多实例部署)
	if h.Redis == nil {
		return false
	}
	val, err := h.Redis.Get(h.ctx, fmt.Sprintf("user:online:%s", email)).Result()
	return err == nil && val == "true"
}

// Stop 关闭所有连接并清理在线状态
func (h *ChatHub) Stop() {
	logger.Log.Info("ChatHub stopping: clearing online status and closing connections...")

	var allEmails []string
	for i := 0; i < shardCount; i++ {
		s := h.shards[i]
		s.mu.Lock()
		for email, client := range s.clients {
			allEmails = append(allEmails, email)
			close(client.Send)
			delete(s.clients, email)
		}
		s.mu.Unlock()
	}

	h.cancel() // 终止所有房间订阅和 Run 循环

	if len(allEmails) > 0 && h.Redis != nil {
		pipe := h.Redis.Pipeline()
		for _, email := range allEmails {
			pipe.Del(context.Background(), fmt.Sprintf("user:online:%s", email))
		}
		pipe.Exec(context.Background())
	}

	monitoring.ChatOnlineUsers.Set(0) // 停机时清空指标
	logger.Log.Info("ChatHub stopped", zap.Int("closedConnections", len(allEmails)))
}

// ServeWs 升级连接并注册到 hub。调用方需已校验用户是课程成员
func ServeWs(hub *ChatHub, w http.ResponseWriter, r *http.Request, claims *util.Claims, roomID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Error("WebSocket upgrade failed", zap.Error(err), zap.String("email", claims.Email))
		return
	}
	client := &Client{
		Hub:     hub,
		Conn:    conn,
		Send:    make(chan []byte, 256),
		Email:   claims.Email,
		RoomID:  roomID,
		Limiter: rate.NewLimiter(rate.Limit(30), 50), // 每秒30帧，允许突发50帧
	}
	// 先入房间（构建会话），再注册，避免 readPump 在会话就绪前收到帧
	hub.joinRoom(client)
	client.Hub.register <- client

	go client.writePump()
	go client.readPump()
}

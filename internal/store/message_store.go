package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"edulink_backend/internal/gateway"
	"edulink_backend/internal/model"
	"edulink_backend/internal/util"
	"edulink_backend/pkg/logger"

	"go.uber.org/zap"
)

const propagateTimeout = 10 * time.Second

// MessageStore 单个聊天室的内存消息日志，变更通过网关异步传播
// （调用方视角 fire-and-forget：失败记日志，不自动重试，不回滚本地状态）。
// 每个聊天室一个实例，内部用互斥锁保护
type MessageStore struct {
	mu       sync.RWMutex
	roomID   string
	gw       gateway.Gateway
	filter   *ProfanityFilter
	messages map[string]*model.ChatMessage
}

func NewMessageStore(roomID string, gw gateway.Gateway) *MessageStore {
	return &MessageStore{
		roomID:   roomID,
		gw:       gw,
		filter:   NewProfanityFilter(),
		messages: make(map[string]*model.ChatMessage),
	}
}

func (s *MessageStore) RoomID() string {
	return s.roomID
}

// Append 创建并记录一条消息：分配 ID 与毫秒时间戳，空的软删除集。
// 文本去除首尾空白后为空返回 ValidationError，入库前过敏感词
func (s *MessageStore) Append(senderEmail, text string) (*model.ChatMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, util.NewValidationError("text", "message text is empty")
	}
	if senderEmail == "" {
		return nil, util.NewValidationError("sender", "sender identity is missing")
	}

	msg := &model.ChatMessage{
		ID:          model.GenerateUUID(),
		RoomID:      s.roomID,
		SenderEmail: senderEmail,
		Text:        s.filter.Clean(text),
		Timestamp:   model.NowMillis(),
	}

	s.mu.Lock()
	s.messages[msg.ID] = msg
	s.mu.Unlock()

	snapshot := *msg
	go s.propagate("append", func(ctx context.Context) error {
		return s.gw.Set(ctx, gateway.CollectionChatMessages, snapshot.ID, &snapshot)
	})

	return &snapshot, nil
}

// HideFor 把用户加入消息的软删除集，幂等；消息不存在返回 NotFoundError
func (s *MessageStore) HideFor(messageID, email string) error {
	s.mu.Lock()
	msg, ok := s.messages[messageID]
	if !ok {
		s.mu.Unlock()
		return util.NewNotFoundError("message", messageID)
	}
	if !msg.VisibleTo(email) {
		s.mu.Unlock()
		return nil // 已隐藏，无需再写
	}
	msg.DeletedFor = append(msg.DeletedFor, email)
	s.mu.Unlock()

	go s.propagate("hide", func(ctx context.Context) error {
		return s.gw.Append(ctx, gateway.CollectionChatMessages, messageID, "deletedFor", email)
	})
	return nil
}

// DeleteGlobal 整条移除，对所有用户生效（无墓碑）
func (s *MessageStore) DeleteGlobal(messageID string) error {
	s.mu.Lock()
	if _, ok := s.messages[messageID]; !ok {
		s.mu.Unlock()
		return util.NewNotFoundError("message", messageID)
	}
	delete(s.messages, messageID)
	s.mu.Unlock()

	go s.propagate("delete", func(ctx context.Context) error {
		return s.gw.Delete(ctx, gateway.CollectionChatMessages, messageID)
	})
	return nil
}

// VisibleTo 对该用户可见的全部消息，按时间戳升序
func (s *MessageStore) VisibleTo(email string) []model.ChatMessage {
	s.mu.RLock()
	visible := make([]model.ChatMessage, 0, len(s.messages))
	for _, msg := range s.messages {
		if msg.VisibleTo(email) {
			visible = append(visible, *msg)
		}
	}
	s.mu.RUnlock()

	sortByTimestamp(visible)
	return visible
}

// Get 按 ID 取一条消息的副本
func (s *MessageStore) Get(messageID string) (model.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msg, ok := s.messages[messageID]
	if !ok {
		return model.ChatMessage{}, util.NewNotFoundError("message", messageID)
	}
	return *msg, nil
}

func (s *MessageStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// ApplySnapshot 用订阅快照整体替换本地日志。
// 消息顺序以服务端时间戳为准而非到达顺序，读取时重新排序
func (s *MessageStore) ApplySnapshot(msgs []model.ChatMessage) {
	next := make(map[string]*model.ChatMessage, len(msgs))
	for i := range msgs {
		m := msgs[i]
		next[m.ID] = &m
	}

	s.mu.Lock()
	s.messages = next
	s.mu.Unlock()
}

func sortByTimestamp(msgs []model.ChatMessage) {
	sort.SliceStable(msgs, func(i, j int) bool {
		if msgs[i].Timestamp != msgs[j].Timestamp {
			return msgs[i].Timestamp < msgs[j].Timestamp
		}
		return msgs[i].ID < msgs[j].ID
	})
}

func (s *MessageStore) propagate(op string, fn func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), propagateTimeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		logger.Log.Error("message propagation failed",
			zap.String("op", op),
			zap.String("roomId", s.roomID),
			zap.Error(err))
	}
}

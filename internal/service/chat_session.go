package service

import (
	"sync"

	"edulink_backend/internal/model"
	"edulink_backend/internal/store"
	"edulink_backend/internal/util"
)

const (
	// 单次滚动事件上移超过该像素数，视为用户主动离开底部
	scrollUpThreshold = 50
	// 最后可见项距末尾不超过该数量时认定回到底部
	bottomWindow = 3
)

// ScrollSignal 一次远端更新后应执行的滚动动作
type ScrollSignal int

const (
	ScrollNone ScrollSignal = iota
	ScrollJump              // 首次加载：直接跳到末尾
	ScrollSmooth
)

func (s ScrollSignal) String() string {
	switch s {
	case ScrollJump:
		return "jump"
	case ScrollSmooth:
		return "smooth"
	}
	return "none"
}

// ChatSession 单个连接的会话控制器：按当前用户过滤可见消息，
// 并根据滚动位置与消息到达驱动自动滚动状态机 {AtBottom, ScrolledUp}。
// 初始状态 AtBottom；回调在 hub 的 goroutine 上执行，不绑定任何 UI 线程
type ChatSession struct {
	mu          sync.Mutex
	userEmail   string
	store       *store.MessageStore
	messages    []model.ChatMessage
	scrolledUp  bool
	initialized bool
	lastErr     error
}

func NewChatSession(userEmail string, st *store.MessageStore) *ChatSession {
	return &ChatSession{
		userEmail: userEmail,
		store:     st,
	}
}

func (s *ChatSession) UserEmail() string {
	return s.userEmail
}

// OnRemoteUpdate 用新的可见消息列表整体替换本地列表。
// 首次更新视为初始加载（跳到末尾并强制 AtBottom）；
// 之后仅当处于 AtBottom 且消息数增长时发平滑滚动信号
func (s *ChatSession) OnRemoteUpdate(visible []model.ChatMessage) ScrollSignal {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastErr = nil

	if !s.initialized {
		s.initialized = true
		s.scrolledUp = false
		s.messages = visible
		return ScrollJump
	}

	grew := len(visible) > len(s.messages)
	s.messages = visible

	if grew && !s.scrolledUp {
		return ScrollSmooth
	}
	return ScrollNone
}

// OnSubscriptionError 订阅失败是非致命的：记下错误，保留最后一次成功的消息列表
func (s *ChatSession) OnSubscriptionError(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}

func (s *ChatSession) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// OnScroll 处理一次视口滚动事件。deltaY 为本次滚动的垂直位移（负值向上）
func (s *ChatSession) OnScroll(deltaY, lastVisible, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if deltaY < -scrollUpThreshold {
		s.scrolledUp = true
	}
	if total > 0 && lastVisible >= total-bottomWindow {
		s.scrolledUp = false
	}
}

// Send 通过消息库发送，成功后立即强制回到 AtBottom
func (s *ChatSession) Send(text string) (*model.ChatMessage, error) {
	msg, err := s.store.Append(s.userEmail, text)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.scrolledUp = false
	s.mu.Unlock()
	return msg, nil
}

// HideForMe 只对当前用户隐藏
func (s *ChatSession) HideForMe(messageID string) error {
	return s.store.HideFor(messageID, s.userEmail)
}

// HideForEveryone 全局删除，仅允许删除自己发送的消息
func (s *ChatSession) HideForEveryone(messageID string) error {
	msg, err := s.store.Get(messageID)
	if err != nil {
		return err
	}
	if msg.SenderEmail != s.userEmail {
		return util.ErrPermissionDenied
	}
	return s.store.DeleteGlobal(messageID)
}

func (s *ChatSession) Messages() []model.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.messages
}

// AtBottom 滚动状态查询
func (s *ChatSession) AtBottom() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.scrolledUp
}

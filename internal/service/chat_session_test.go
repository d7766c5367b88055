package service

import (
	"errors"
	"testing"

	"edulink_backend/internal/gateway"
	"edulink_backend/internal/model"
	"edulink_backend/internal/store"
	"edulink_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSession(email string) (*ChatSession, *store.MessageStore) {
	st := store.NewMessageStore("course-1", gateway.NewMemoryGateway())
	return NewChatSession(email, st), st
}

func msgs(n int) []model.ChatMessage {
	out := make([]model.ChatMessage, n)
	for i := range out {
		out[i] = model.ChatMessage{ID: model.GenerateUUID(), Timestamp: int64(i + 1)}
	}
	return out
}

func TestFirstUpdateJumpsToBottom(t *testing.T) {
	s, _ := newTestSession("alice@test.dev")

	signal := s.OnRemoteUpdate(msgs(5))
	assert.Equal(t, ScrollJump, signal)
	assert.True(t, s.AtBottom())
	assert.Len(t, s.Messages(), 5)
}

func TestNewMessageAtBottomScrollsSmoothly(t *testing.T) {
	s, _ := newTestSession("alice@test.dev")
	s.OnRemoteUpdate(msgs(3))

	signal := s.OnRemoteUpdate(msgs(4))
	assert.Equal(t, ScrollSmooth, signal)
}

func TestNewMessageWhileScrolledUpDoesNotScroll(t *testing.T) {
	s, _ := newTestSession("alice@test.dev")
	s.OnRemoteUpdate(msgs(10))

	// 用户大幅上滑离开底部
	s.OnScroll(-80, 2, 10)
	assert.False(t, s.AtBottom())

	signal := s.OnRemoteUpdate(msgs(11))
	assert.Equal(t, ScrollNone, signal)
}

func TestSmallScrollDoesNotLeaveBottom(t *testing.T) {
	s, _ := newTestSession("alice@test.dev")
	s.OnRemoteUpdate(msgs(10))

	// 低于阈值的抖动不算离开底部
	s.OnScroll(-30, 2, 10)
	assert.True(t, s.AtBottom())
}

func TestScrollingBackRestoresAutoScroll(t *testing.T) {
	s, _ := newTestSession("alice@test.dev")
	s.OnRemoteUpdate(msgs(10))

	s.OnScroll(-80, 2, 10)
	require.False(t, s.AtBottom())

	// 回滚到底部窗口内
	s.OnScroll(80, 8, 10)
	assert.True(t, s.AtBottom())

	signal := s.OnRemoteUpdate(msgs(11))
	assert.Equal(t, ScrollSmooth, signal)
}

func TestShrinkingListDoesNotScroll(t *testing.T) {
	s, _ := newTestSession("alice@test.dev")
	s.OnRemoteUpdate(msgs(5))

	// 消息被删除（列表变短）不触发滚动
	signal := s.OnRemoteUpdate(msgs(4))
	assert.Equal(t, ScrollNone, signal)
}

func TestSendForcesBackToBottom(t *testing.T) {
	s, _ := newTestSession("alice@test.dev")
	s.OnRemoteUpdate(msgs(10))
	s.OnScroll(-80, 2, 10)
	require.False(t, s.AtBottom())

	_, err := s.Send("hello")
	require.NoError(t, err)
	assert.True(t, s.AtBottom())
}

func TestSubscriptionErrorKeepsMessages(t *testing.T) {
	s, _ := newTestSession("alice@test.dev")
	s.OnRemoteUpdate(msgs(5))

	s.OnSubscriptionError(errors.New("watch closed"))
	assert.Error(t, s.LastError())
	assert.Len(t, s.Messages(), 5)

	// 下一次成功更新清除错误
	s.OnRemoteUpdate(msgs(6))
	assert.NoError(t, s.LastError())
}

func TestHideForEveryoneRequiresOwnership(t *testing.T) {
	st := store.NewMessageStore("course-1", gateway.NewMemoryGateway())
	alice := NewChatSession("alice@test.dev", st)
	bob := NewChatSession("bob@test.dev", st)

	msg, err := alice.Send("mine")
	require.NoError(t, err)

	err = bob.HideForEveryone(msg.ID)
	assert.ErrorIs(t, err, util.ErrPermissionDenied)
	assert.Len(t, st.VisibleTo("bob@test.dev"), 1)

	require.NoError(t, alice.HideForEveryone(msg.ID))
	assert.Empty(t, st.VisibleTo("alice@test.dev"))
}

func TestHideForMeOnlyAffectsSelf(t *testing.T) {
	st := store.NewMessageStore("course-1", gateway.NewMemoryGateway())
	alice := NewChatSession("alice@test.dev", st)
	bob := NewChatSession("bob@test.dev", st)

	msg, err := alice.Send("hello")
	require.NoError(t, err)

	require.NoError(t, bob.HideForMe(msg.ID))
	assert.Empty(t, st.VisibleTo("bob@test.dev"))
	assert.Len(t, st.VisibleTo("alice@test.dev"), 1)
}

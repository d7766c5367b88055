package store

import (
	"testing"

	"edulink_backend/internal/gateway"
	"edulink_backend/internal/model"
	"edulink_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore() *MessageStore {
	return NewMessageStore("course-1", gateway.NewMemoryGateway())
}

func TestAppendAssignsIdentityAndTimestamp(t *testing.T) {
	st := newTestStore()

	msg, err := st.Append("alice@test.dev", "  hello  ")
	require.NoError(t, err)

	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, "course-1", msg.RoomID)
	assert.Equal(t, "alice@test.dev", msg.SenderEmail)
	assert.Equal(t, "hello", msg.Text)
	assert.Positive(t, msg.Timestamp)
	assert.Empty(t, msg.DeletedFor)
}

func TestAppendRejectsBlankText(t *testing.T) {
	st := newTestStore()

	_, err := st.Append("alice@test.dev", "   ")
	assert.True(t, util.IsValidation(err))

	_, err = st.Append("", "hi")
	assert.True(t, util.IsValidation(err))
	assert.Zero(t, st.Len())
}

func TestAppendMasksProfanity(t *testing.T) {
	st := newTestStore()

	msg, err := st.Append("alice@test.dev", "this is damn hard")
	require.NoError(t, err)
	assert.Equal(t, "this is **** hard", msg.Text)
}

func TestVisibleToOrdersByTimestamp(t *testing.T) {
	st := newTestStore()
	st.ApplySnapshot([]model.ChatMessage{
		{ID: "c", RoomID: "course-1", SenderEmail: "a@t", Text: "third", Timestamp: 300},
		{ID: "a", RoomID: "course-1", SenderEmail: "a@t", Text: "first", Timestamp: 100},
		{ID: "b", RoomID: "course-1", SenderEmail: "a@t", Text: "second", Timestamp: 200},
	})

	visible := st.VisibleTo("a@t")
	require.Len(t, visible, 3)
	assert.Equal(t, "first", visible[0].Text)
	assert.Equal(t, "second", visible[1].Text)
	assert.Equal(t, "third", visible[2].Text)
}

func TestVisibleToBreaksTimestampTiesByID(t *testing.T) {
	st := newTestStore()
	st.ApplySnapshot([]model.ChatMessage{
		{ID: "b", Timestamp: 100},
		{ID: "a", Timestamp: 100},
	})

	visible := st.VisibleTo("x@t")
	require.Len(t, visible, 2)
	assert.Equal(t, "a", visible[0].ID)
	assert.Equal(t, "b", visible[1].ID)
}

func TestHideForIsPerUser(t *testing.T) {
	st := newTestStore()
	msg, err := st.Append("alice@test.dev", "hello")
	require.NoError(t, err)

	require.NoError(t, st.HideFor(msg.ID, "bob@test.dev"))

	assert.Empty(t, st.VisibleTo("bob@test.dev"))
	assert.Len(t, st.VisibleTo("alice@test.dev"), 1)
	// 消息仍在日志里，只是对 bob 不可见
	assert.Equal(t, 1, st.Len())
}

func TestHideForIsIdempotent(t *testing.T) {
	st := newTestStore()
	msg, err := st.Append("alice@test.dev", "hello")
	require.NoError(t, err)

	require.NoError(t, st.HideFor(msg.ID, "bob@test.dev"))
	require.NoError(t, st.HideFor(msg.ID, "bob@test.dev"))

	got, err := st.Get(msg.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"bob@test.dev"}, got.DeletedFor)
}

func TestHideForUnknownMessage(t *testing.T) {
	st := newTestStore()
	err := st.HideFor("missing", "bob@test.dev")
	assert.True(t, util.IsNotFound(err))
}

func TestDeleteGlobalRemovesForEveryone(t *testing.T) {
	st := newTestStore()
	msg, err := st.Append("alice@test.dev", "hello")
	require.NoError(t, err)

	require.NoError(t, st.DeleteGlobal(msg.ID))

	assert.Empty(t, st.VisibleTo("alice@test.dev"))
	assert.Empty(t, st.VisibleTo("bob@test.dev"))
	assert.Zero(t, st.Len())

	err = st.DeleteGlobal(msg.ID)
	assert.True(t, util.IsNotFound(err))
}

func TestApplySnapshotReplacesWholesale(t *testing.T) {
	st := newTestStore()
	_, err := st.Append("alice@test.dev", "local only")
	require.NoError(t, err)

	st.ApplySnapshot([]model.ChatMessage{
		{ID: "r1", Timestamp: 10, Text: "remote"},
	})

	assert.Equal(t, 1, st.Len())
	got, err := st.Get("r1")
	require.NoError(t, err)
	assert.Equal(t, "remote", got.Text)
}

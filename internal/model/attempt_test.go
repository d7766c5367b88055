package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAttemptStatusTerminal(t *testing.T) {
	assert.False(t, AttemptNotStarted.Terminal())
	assert.False(t, AttemptSubmitted.Terminal())
	assert.True(t, AttemptGraded.Terminal())
	assert.True(t, AttemptFailed.Terminal())
}

func TestAttemptStatusValid(t *testing.T) {
	assert.True(t, AttemptSubmitted.Valid())
	assert.False(t, AttemptStatus("pending").Valid())
	assert.False(t, AttemptStatus("").Valid())
}

func TestAttemptKeyIncludesOwner(t *testing.T) {
	a := AttemptKey("hw-1", "alice@test.dev", 1000)
	b := AttemptKey("hw-1", "bob@test.dev", 1000)
	assert.NotEqual(t, a, b)
	assert.Equal(t, "hw-1_alice@test.dev_1000", a)
}

func TestChatMessageVisibleTo(t *testing.T) {
	msg := ChatMessage{SenderEmail: "alice@test.dev", DeletedFor: []string{"bob@test.dev"}}
	assert.True(t, msg.VisibleTo("alice@test.dev"))
	assert.False(t, msg.VisibleTo("bob@test.dev"))
	assert.True(t, msg.VisibleTo("carol@test.dev"))
}

package chat_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	chat "github.com/zhouzirui/z-chat/backend/internal/service/chat"
)

func TestTypingTrackerSetIsIdempotent(t *testing.T) {
	tr := chat.NewTypingTracker()

	assert.True(t, tr.Set("general", "a", true))
	assert.False(t, tr.Set("general", "a", true))
	assert.Equal(t, []string{"a"}, tr.Typing("general"))

	assert.True(t, tr.Set("general", "a", false))
	assert.False(t, tr.Set("general", "a", false))
	assert.Empty(t, tr.Typing("general"))
}

func TestTypingTrackerPurge(t *testing.T) {
	tr := chat.NewTypingTracker()
	tr.Set("general", "a", true)
	tr.Set("random", "a", true)
	tr.Set("random", "b", true)

	rooms := tr.Purge("a")

	assert.Equal(t, []string{"general", "random"}, rooms)
	assert.False(t, tr.IsTyping("general", "a"))
	assert.False(t, tr.IsTyping("random", "a"))
	assert.True(t, tr.IsTyping("random", "b"))
	assert.Empty(t, tr.Purge("a"))
}

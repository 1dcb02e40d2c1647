package feed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Chandra-cc/personalized-learning/internal/models"
)

func TestHub_PublishToUser(t *testing.T) {
	h := NewHub()
	a, cancelA := h.Subscribe("alice")
	b, cancelB := h.Subscribe("bob")
	defer cancelB()

	h.Publish(Update{UserID: "alice", Record: models.StepProgressRecord{StepIndex: 2}})

	select {
	case u := <-a:
		assert.Equal(t, 2, u.Record.StepIndex)
	default:
		t.Fatal("alice got no update")
	}
	select {
	case <-b:
		t.Fatal("bob got alice's update")
	default:
	}

	cancelA()
	cancelA()
	_, open := <-a
	assert.False(t, open)
	assert.Zero(t, h.Subscribers("alice"))
	assert.Equal(t, 1, h.Subscribers("bob"))
}

func TestHub_SlowSubscriberDoesNotBlock(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe("u")
	defer cancel()

	for i := 0; i < bufferSize*2; i++ {
		h.Publish(Update{UserID: "u", Record: models.StepProgressRecord{StepIndex: i}})
	}
	require.Len(t, ch, bufferSize)
	first := <-ch
	assert.Equal(t, 0, first.Record.StepIndex)
}

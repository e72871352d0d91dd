package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/carboncopyrefi/frf-front/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, ch <-chan *message.Message) *message.Message {
	t.Helper()
	select {
	case msg := <-ch:
		msg.Ack()
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func TestWatermillPublisher(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer pubSub.Close()

	changed, err := pubSub.Subscribe(testContext(t), TopicAuthChanged)
	require.NoError(t, err)
	signOuts, err := pubSub.Subscribe(testContext(t), TopicSignOut)
	require.NoError(t, err)

	p := NewWatermillPublisher(pubSub)
	require.NoError(t, p.PublishAuthChanged(testContext(t), core.AuthState{Authenticated: true, Role: core.RoleEvaluator}))
	require.NoError(t, p.PublishSignOut(testContext(t), "0xAbc", "jti-1"))

	var ev AuthChangedEvent
	require.NoError(t, json.Unmarshal(receive(t, changed).Payload, &ev))
	assert.Equal(t, AuthChangedEvent{Authenticated: true, Role: "evaluator"}, ev)

	var so SignOutEvent
	require.NoError(t, json.Unmarshal(receive(t, signOuts).Payload, &so))
	assert.Equal(t, SignOutEvent{Address: "0xAbc", TokenID: "jti-1"}, so)
}

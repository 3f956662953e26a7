package realtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receiveOne(t *testing.T, ch <-chan Message) Message {
	t.Helper()
	select {
	case msg, ok := <-ch:
		require.True(t, ok, "subscription channel closed unexpectedly")
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return Message{}
	}
}

func expectNone(t *testing.T, ch <-chan Message) {
	t.Helper()
	select {
	case msg := <-ch:
		t.Fatalf("unexpected message: %+v", msg)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestBroadcaster_DeliversToAllSubscribers(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	first := b.Subscribe()
	second := b.Subscribe()

	b.Publish(Message{Channel: "set-node-execution", Topic: TopicStatus, Status: StatusLoading})

	for _, sub := range []<-chan Message{first, second} {
		msg := receiveOne(t, sub)
		assert.Equal(t, "set-node-execution", msg.Channel)
		assert.Equal(t, StatusLoading, msg.Status)
		assert.False(t, msg.Timestamp.IsZero(), "publish stamps messages")
	}
}

func TestBroadcaster_ChannelFilter(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	sub := b.SubscribeChannels("http-request-execution")

	b.Publish(Message{Channel: "set-node-execution", Topic: TopicStatus})
	b.Publish(Message{Channel: "http-request-execution", Topic: TopicStatus})

	msg := receiveOne(t, sub)
	assert.Equal(t, "http-request-execution", msg.Channel)
	expectNone(t, sub)
}

func TestBroadcaster_PreservesPerRunOrder(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	sub := b.Subscribe()

	statuses := []NodeStatus{StatusLoading, StatusSuccess}
	for _, s := range statuses {
		b.Publish(Message{Channel: "set-node-execution", Topic: TopicStatus, Status: s})
	}

	for _, want := range statuses {
		assert.Equal(t, want, receiveOne(t, sub).Status)
	}
}

func TestBroadcaster_Unsubscribe(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	sub := b.Subscribe()
	b.Unsubscribe(sub)

	_, ok := <-sub
	assert.False(t, ok, "unsubscribed channel must be closed")
}

func TestBroadcaster_CloseClosesSubscribers(t *testing.T) {
	b := NewBroadcaster(nil)
	sub := b.Subscribe()

	b.Close()

	select {
	case _, ok := <-sub:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("subscriber channel not closed after Close")
	}

	// Publishing and subscribing after close must not panic.
	b.Publish(Message{Channel: "set-node-execution"})
	late := b.Subscribe()
	_, ok := <-late
	assert.False(t, ok, "post-close subscription is immediately closed")
}

func TestChannelFor(t *testing.T) {
	assert.Equal(t, "set-node-execution", ChannelFor("SET"))
	assert.Equal(t, "http-request-execution", ChannelFor("HTTP_REQUEST"))
	assert.Equal(t, "manual-trigger-execution", ChannelFor("MANUAL_TRIGGER"))
	assert.Equal(t, "open-router-execution", ChannelFor("OPENROUTER"))
}

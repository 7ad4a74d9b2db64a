package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent map[uint][][]byte
	done chan struct{}
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{sent: map[uint][][]byte{}, done: make(chan struct{}, 10)}
}

func (n *recordingNotifier) SendToUser(userID uint, msg []byte) {
	n.mu.Lock()
	n.sent[userID] = append(n.sent[userID], msg)
	n.mu.Unlock()
	n.done <- struct{}{}
}

type failingMailer struct {
	calls chan string
}

func (m *failingMailer) SendVerification(to, username, token string) error {
	m.calls <- to + "|" + username + "|" + token
	return errors.New("smtp unavailable")
}

func TestPublishSubscribe(t *testing.T) {
	bus := NewBus(NewZapLogger(zap.NewNop()))
	defer bus.Close()
	ctx := context.Background()

	messages, err := bus.Subscribe(ctx, TopicMessageSent)
	require.NoError(t, err)

	// 收发不能在同一个协程中，否则会阻塞
	go func() {
		assert.NoError(t, bus.Publish(ctx, TopicMessageSent, Event{RecipientID: 2, ActorID: 1}))
	}()

	select {
	case msg := <-messages:
		msg.Ack()
		event, err := Decode(msg)
		require.NoError(t, err)
		assert.Equal(t, TopicMessageSent, event.Type)
		assert.Equal(t, uint(2), event.RecipientID)
		assert.False(t, event.OccurredAt.IsZero())
	case <-time.After(2 * time.Second):
		t.Fatal("message not received")
	}
}

func TestDispatcherRoutesNotificationsAndMail(t *testing.T) {
	bus := NewBus(NewZapLogger(zap.NewNop()))
	notifier := newRecordingNotifier()
	mailer := &failingMailer{calls: make(chan string, 1)}
	dispatcher := NewDispatcher(bus, notifier, mailer, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, dispatcher.Start(ctx))

	require.NoError(t, bus.Publish(ctx, TopicFriendRequestSent, Event{
		RecipientID: 5,
		ActorID:     4,
		Data:        map[string]interface{}{"username": "alice"},
	}))
	require.NoError(t, bus.Publish(ctx, TopicEmailVerification, Event{
		ActorID: 4,
		Data:    map[string]interface{}{"email": "a@test.dev", "username": "alice", "token": "tok"},
	}))

	select {
	case <-notifier.done:
	case <-time.After(2 * time.Second):
		t.Fatal("notification not delivered")
	}
	select {
	case call := <-mailer.calls:
		assert.Equal(t, "a@test.dev|alice|tok", call)
	case <-time.After(2 * time.Second):
		t.Fatal("verification mail not sent")
	}

	notifier.mu.Lock()
	require.Len(t, notifier.sent[5], 1)
	var event Event
	require.NoError(t, json.Unmarshal(notifier.sent[5][0], &event))
	notifier.mu.Unlock()
	assert.Equal(t, TopicFriendRequestSent, event.Type)
	assert.Equal(t, "alice", event.Data["username"])

	require.NoError(t, bus.Close())
	dispatcher.Wait()
}

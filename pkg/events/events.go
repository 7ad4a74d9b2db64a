package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// 事件主题
const (
	TopicUserRegistered    = "user.registered"
	TopicEmailVerification = "email.verification"
	TopicFriendRequestSent = "friend.request_sent"
	TopicFriendAccepted    = "friend.request_accepted"
	TopicMessageSent       = "message.sent"
	TopicWhisperCommented  = "whisper.commented"
)

// NotificationTopics 需要推送给在线用户的主题
var NotificationTopics = []string{
	TopicFriendRequestSent,
	TopicFriendAccepted,
	TopicMessageSent,
	TopicWhisperCommented,
}

// Event 领域事件，RecipientID 为通知接收者
type Event struct {
	Type        string                 `json:"type"`
	RecipientID uint                   `json:"recipient_id,omitempty"`
	ActorID     uint                   `json:"actor_id,omitempty"`
	Data        map[string]interface{} `json:"data,omitempty"`
	OccurredAt  time.Time              `json:"occurred_at"`
}

// Publisher 业务层依赖的发布接口
type Publisher interface {
	Publish(ctx context.Context, topic string, event Event) error
}

// Bus 基于 watermill gochannel 的进程内事件总线
type Bus struct {
	pubsub *gochannel.GoChannel
}

// NewBus 创建事件总线
func NewBus(logger watermill.LoggerAdapter) *Bus {
	return &Bus{
		pubsub: gochannel.NewGoChannel(
			gochannel.Config{OutputChannelBuffer: 256},
			logger,
		),
	}
}

// Publish 发布事件，Type 为空时使用主题名
func (b *Bus) Publish(ctx context.Context, topic string, event Event) error {
	if event.Type == "" {
		event.Type = topic
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := message.NewMessage(watermill.NewUUID(), data)
	msg.SetContext(ctx)
	return b.pubsub.Publish(topic, msg)
}

// Subscribe 订阅主题
func (b *Bus) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return b.pubsub.Subscribe(ctx, topic)
}

// Close 关闭总线，订阅通道随之关闭
func (b *Bus) Close() error {
	return b.pubsub.Close()
}

// Decode 解析消息负载
func Decode(msg *message.Message) (Event, error) {
	var event Event
	err := json.Unmarshal(msg.Payload, &event)
	return event, err
}

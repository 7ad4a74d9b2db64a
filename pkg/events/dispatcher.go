package events

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.uber.org/zap"
)

// Notifier 向在线用户推送，离线时由实现方负责暂存
type Notifier interface {
	SendToUser(userID uint, msg []byte)
}

// VerificationMailer 发送邮箱验证邮件
type VerificationMailer interface {
	SendVerification(to, username, token string) error
}

// Dispatcher 消费事件总线：通知类事件推送到 WebSocket，邮件类事件交给邮件发送器
// 两者失败都只记录日志，不影响触发事件的业务操作
type Dispatcher struct {
	bus      *Bus
	notifier Notifier
	mailer   VerificationMailer
	log      *zap.Logger
	wg       sync.WaitGroup
}

// NewDispatcher 创建事件分发器
func NewDispatcher(bus *Bus, notifier Notifier, mailer VerificationMailer, log *zap.Logger) *Dispatcher {
	return &Dispatcher{bus: bus, notifier: notifier, mailer: mailer, log: log}
}

// Start 订阅所有主题，ctx 取消或总线关闭后消费协程退出
func (d *Dispatcher) Start(ctx context.Context) error {
	handlers := map[string]func(Event){
		TopicEmailVerification: d.sendVerification,
		TopicUserRegistered:    d.logRegistration,
	}
	for _, topic := range NotificationTopics {
		handlers[topic] = d.notify
	}

	for topic, handle := range handlers {
		messages, err := d.bus.Subscribe(ctx, topic)
		if err != nil {
			return err
		}
		d.wg.Add(1)
		go d.consume(topic, messages, handle)
	}
	return nil
}

// Wait 等待所有消费协程退出
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) consume(topic string, messages <-chan *message.Message, handle func(Event)) {
	defer d.wg.Done()
	for msg := range messages {
		event, err := Decode(msg)
		if err != nil {
			d.log.Warn("事件解析失败", zap.String("topic", topic), zap.Error(err))
		} else {
			handle(event)
		}
		msg.Ack()
	}
}

func (d *Dispatcher) notify(event Event) {
	if d.notifier == nil || event.RecipientID == 0 {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		d.log.Warn("通知序列化失败", zap.String("type", event.Type), zap.Error(err))
		return
	}
	d.notifier.SendToUser(event.RecipientID, payload)
}

func (d *Dispatcher) sendVerification(event Event) {
	if d.mailer == nil {
		return
	}
	email, _ := event.Data["email"].(string)
	username, _ := event.Data["username"].(string)
	token, _ := event.Data["token"].(string)
	if email == "" || token == "" {
		d.log.Warn("验证邮件事件缺少字段", zap.Uint("user_id", event.ActorID))
		return
	}
	if err := d.mailer.SendVerification(email, username, token); err != nil {
		d.log.Error("发送验证邮件失败",
			zap.Uint("user_id", event.ActorID),
			zap.String("email", email),
			zap.Error(err),
		)
	}
}

func (d *Dispatcher) logRegistration(event Event) {
	d.log.Info("新用户注册", zap.Uint("user_id", event.ActorID))
}

package service

import (
	"context"

	"whisp/config"
	"whisp/internal/model"
	"whisp/internal/repository"
	"whisp/pkg/events"
)

// MessageService 好友私信
type MessageService struct {
	store     *repository.Store
	publisher events.Publisher
	limits    config.ContentConfig
}

// NewMessageService 创建MessageService实例
func NewMessageService(store *repository.Store, publisher events.Publisher, limits config.ContentConfig) *MessageService {
	return &MessageService{store: store, publisher: publisher, limits: limits}
}

// SendMessage 发送私信，双方必须互为好友且互不拉黑
func (s *MessageService) SendMessage(ctx context.Context, actorID, receiverID uint, content string) (*model.Message, error) {
	content, err := checkText(content, s.limits.MaxMessageLength, "message")
	if err != nil {
		return nil, err
	}
	if _, err := getUser(ctx, s.store, receiverID); err != nil {
		return nil, err
	}
	if actorID == receiverID {
		return nil, invalidState("you cannot message yourself")
	}

	actor, err := loadRelations(ctx, s.store, actorID)
	if err != nil {
		return nil, err
	}
	receiver, err := loadRelations(ctx, s.store, receiverID)
	if err != nil {
		return nil, err
	}
	if err := CanMessage(actor, receiver); err != nil {
		return nil, err
	}

	msg := &model.Message{SenderID: actorID, ReceiverID: receiverID, Content: content}
	if err := s.store.Messages.Create(ctx, msg); err != nil {
		return nil, storeErr(err, "create message")
	}

	publish(ctx, s.publisher, events.TopicMessageSent, events.Event{
		RecipientID: receiverID,
		ActorID:     actorID,
		Data: map[string]interface{}{
			"messageId": msg.ID,
			"content":   msg.Content,
		},
	})
	return msg, nil
}

// GetMessages 与好友的完整会话，按时间正序
func (s *MessageService) GetMessages(ctx context.Context, actorID, friendID uint) ([]*model.Message, error) {
	if _, err := getUser(ctx, s.store, friendID); err != nil {
		return nil, err
	}
	friends, err := s.store.Relations.AreFriends(ctx, actorID, friendID)
	if err != nil {
		return nil, storeErr(err, "check friendship")
	}
	if !friends {
		return nil, forbidden("you can only view messages with friends")
	}

	messages, err := s.store.Messages.ListConversation(ctx, actorID, friendID)
	if err != nil {
		return nil, storeErr(err, "list messages")
	}
	if messages == nil {
		messages = []*model.Message{}
	}
	return messages, nil
}

package service

import (
	"context"

	"whisp/pkg/events"
	"whisp/pkg/logger"

	"go.uber.org/zap"
)

// publish 发布领域事件，失败只记录日志，不影响已提交的业务操作
func publish(ctx context.Context, pub events.Publisher, topic string, event events.Event) {
	if pub == nil {
		return
	}
	if err := pub.Publish(ctx, topic, event); err != nil {
		logger.Warn("发布事件失败",
			zap.String("topic", topic),
			zap.Uint("recipient_id", event.RecipientID),
			zap.Error(err),
		)
	}
}

package handler

import (
	"whisp/internal/service"
	"whisp/pkg/metrics"
	"whisp/pkg/response"

	"github.com/gin-gonic/gin"
)

// MessageHandler 消息处理器
type MessageHandler struct {
	service *service.MessageService
}

// NewMessageHandler 创建MessageHandler实例
func NewMessageHandler(s *service.MessageService) *MessageHandler {
	return &MessageHandler{service: s}
}

// SendMessage 发送私信
func (h *MessageHandler) SendMessage(c *gin.Context) {
	type req struct {
		ReceiverID uint   `json:"receiverId" binding:"required"`
		Content    string `json:"content"`
	}
	var r req
	if err := c.ShouldBindJSON(&r); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	message, err := h.service.SendMessage(c.Request.Context(), currentUserID(c), r.ReceiverID, r.Content)
	if err != nil {
		respondError(c, err)
		return
	}

	metrics.MessagesSent.Inc()
	response.Created(c, "消息发送成功", message)
}

// GetMessages 与好友的聊天记录，按时间正序
func (h *MessageHandler) GetMessages(c *gin.Context) {
	friendID, ok := parseID(c, "friendId")
	if !ok {
		return
	}
	messages, err := h.service.GetMessages(c.Request.Context(), currentUserID(c), friendID)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, messages)
}

package handler

import (
	"context"

	"whisp/internal/service"
	"whisp/pkg/metrics"
	"whisp/pkg/response"

	"github.com/gin-gonic/gin"
)

// FriendHandler 好友请求、好友列表、拉黑
type FriendHandler struct {
	service *service.RelationService
}

// NewFriendHandler 创建FriendHandler实例
func NewFriendHandler(s *service.RelationService) *FriendHandler {
	return &FriendHandler{service: s}
}

func (h *FriendHandler) SendRequest(c *gin.Context) {
	type req struct {
		ReceiverID uint `json:"receiverId" binding:"required"`
	}
	var r req
	if err := c.ShouldBindJSON(&r); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if err := h.service.SendRequest(c.Request.Context(), currentUserID(c), r.ReceiverID); err != nil {
		respondError(c, err)
		return
	}
	metrics.FriendRequestsSent.Inc()
	response.SuccessWithMessage(c, "好友请求已发送", nil)
}

func (h *FriendHandler) CancelRequest(c *gin.Context) {
	type req struct {
		ReceiverID uint `json:"receiverId" binding:"required"`
	}
	var r req
	if err := c.ShouldBindJSON(&r); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if err := h.service.CancelRequest(c.Request.Context(), currentUserID(c), r.ReceiverID); err != nil {
		respondError(c, err)
		return
	}
	response.SuccessWithMessage(c, "好友请求已撤回", nil)
}

func (h *FriendHandler) AcceptRequest(c *gin.Context) {
	h.answer(c, h.service.AcceptRequest, "已添加为好友")
}

func (h *FriendHandler) RejectRequest(c *gin.Context) {
	h.answer(c, h.service.RejectRequest, "已拒绝好友请求")
}

// answer 处理对收到请求的接受或拒绝
func (h *FriendHandler) answer(c *gin.Context, op func(ctx context.Context, actorID, senderID uint) error, msg string) {
	type req struct {
		SenderID uint `json:"senderId" binding:"required"`
	}
	var r req
	if err := c.ShouldBindJSON(&r); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if err := op(c.Request.Context(), currentUserID(c), r.SenderID); err != nil {
		respondError(c, err)
		return
	}
	response.SuccessWithMessage(c, msg, nil)
}

func (h *FriendHandler) RemoveFriend(c *gin.Context) {
	friendID, ok := parseID(c, "friendId")
	if !ok {
		return
	}
	if err := h.service.RemoveFriend(c.Request.Context(), currentUserID(c), friendID); err != nil {
		respondError(c, err)
		return
	}
	response.SuccessWithMessage(c, "已解除好友关系", nil)
}

func (h *FriendHandler) ListFriends(c *gin.Context) {
	h.list(c, h.service.ListFriends)
}

func (h *FriendHandler) ListIncoming(c *gin.Context) {
	h.list(c, h.service.ListIncoming)
}

func (h *FriendHandler) ListOutgoing(c *gin.Context) {
	h.list(c, h.service.ListOutgoing)
}

func (h *FriendHandler) ListBlocked(c *gin.Context) {
	h.list(c, h.service.ListBlocked)
}

func (h *FriendHandler) list(c *gin.Context, query func(ctx context.Context, actorID uint) ([]*service.UserSummary, error)) {
	users, err := query(c.Request.Context(), currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, users)
}

// MutualFriends 共同好友及数量
func (h *FriendHandler) MutualFriends(c *gin.Context) {
	friendID, ok := parseID(c, "friendId")
	if !ok {
		return
	}
	mutual, err := h.service.MutualFriends(c.Request.Context(), currentUserID(c), friendID)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, mutual)
}

func (h *FriendHandler) Block(c *gin.Context) {
	userID, ok := parseID(c, "userId")
	if !ok {
		return
	}
	if err := h.service.Block(c.Request.Context(), currentUserID(c), userID); err != nil {
		respondError(c, err)
		return
	}
	response.SuccessWithMessage(c, "已拉黑该用户", nil)
}

func (h *FriendHandler) Unblock(c *gin.Context) {
	userID, ok := parseID(c, "userId")
	if !ok {
		return
	}
	if err := h.service.Unblock(c.Request.Context(), currentUserID(c), userID); err != nil {
		respondError(c, err)
		return
	}
	response.SuccessWithMessage(c, "已取消拉黑", nil)
}

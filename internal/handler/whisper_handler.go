package handler

import (
	"whisp/internal/service"
	"whisp/pkg/metrics"
	"whisp/pkg/response"

	"github.com/gin-gonic/gin"
)

// WhisperHandler Whisper、评论、回复、点赞及时间线
type WhisperHandler struct {
	service *service.WhisperService
	feed    *service.FeedService
}

// NewWhisperHandler 创建WhisperHandler实例
func NewWhisperHandler(s *service.WhisperService, feed *service.FeedService) *WhisperHandler {
	return &WhisperHandler{service: s, feed: feed}
}

type textRequest struct {
	Text string `json:"text"`
}

// GetPublicWhispers 公共列表，page/limit 均未提供时返回完整数组
func (h *WhisperHandler) GetPublicWhispers(c *gin.Context) {
	feed, err := h.feed.GetPublicWhispers(c.Request.Context(), parsePageRequest(c))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, feed.Body())
}

// GetTimeline 个人时间线
func (h *WhisperHandler) GetTimeline(c *gin.Context) {
	feed, err := h.feed.GetTimeline(c.Request.Context(), currentUserID(c), parsePageRequest(c))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, feed.Body())
}

func (h *WhisperHandler) CreateWhisper(c *gin.Context) {
	type req struct {
		Content string `json:"content"`
	}
	var r req
	if err := c.ShouldBindJSON(&r); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	view, err := h.service.CreateWhisper(c.Request.Context(), currentUserID(c), r.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	metrics.WhispersCreated.Inc()
	response.Created(c, "发布成功", view)
}

func (h *WhisperHandler) DeleteWhisper(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.service.DeleteWhisper(c.Request.Context(), currentUserID(c), id); err != nil {
		respondError(c, err)
		return
	}
	response.SuccessWithMessage(c, "已删除", nil)
}

// React 返回处理点赞或点踩的 handler，目标由路径中出现的参数决定
func (h *WhisperHandler) React(kind string) gin.HandlerFunc {
	return func(c *gin.Context) {
		whisperID, ok := parseID(c, "id")
		if !ok {
			return
		}
		commentID, ok := optionalID(c, "commentId")
		if !ok {
			return
		}
		replyID, ok := optionalID(c, "replyId")
		if !ok {
			return
		}

		target := service.ReactionTarget{WhisperID: whisperID, CommentID: commentID, ReplyID: replyID}
		view, err := h.service.React(c.Request.Context(), currentUserID(c), target, kind)
		if err != nil {
			respondError(c, err)
			return
		}
		targetType, _ := target.Resolve()
		metrics.ReactionsToggled.WithLabelValues(targetType, kind).Inc()
		response.Success(c, view)
	}
}

func (h *WhisperHandler) AddComment(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var r textRequest
	if err := c.ShouldBindJSON(&r); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	view, err := h.service.AddComment(c.Request.Context(), currentUserID(c), id, r.Text)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Created(c, "评论成功", view)
}

func (h *WhisperHandler) EditComment(c *gin.Context) {
	id, commentID, ok := commentParams(c)
	if !ok {
		return
	}
	var r textRequest
	if err := c.ShouldBindJSON(&r); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	view, err := h.service.EditComment(c.Request.Context(), currentUserID(c), id, commentID, r.Text)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, view)
}

func (h *WhisperHandler) DeleteComment(c *gin.Context) {
	id, commentID, ok := commentParams(c)
	if !ok {
		return
	}
	view, err := h.service.DeleteComment(c.Request.Context(), currentUserID(c), id, commentID)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, view)
}

func (h *WhisperHandler) AddReply(c *gin.Context) {
	id, commentID, ok := commentParams(c)
	if !ok {
		return
	}
	var r textRequest
	if err := c.ShouldBindJSON(&r); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	view, err := h.service.AddReply(c.Request.Context(), currentUserID(c), id, commentID, r.Text)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Created(c, "回复成功", view)
}

func (h *WhisperHandler) EditReply(c *gin.Context) {
	id, commentID, ok := commentParams(c)
	if !ok {
		return
	}
	replyID, ok := parseID(c, "replyId")
	if !ok {
		return
	}
	var r textRequest
	if err := c.ShouldBindJSON(&r); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	view, err := h.service.EditReply(c.Request.Context(), currentUserID(c), id, commentID, replyID, r.Text)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, view)
}

func (h *WhisperHandler) DeleteReply(c *gin.Context) {
	id, commentID, ok := commentParams(c)
	if !ok {
		return
	}
	replyID, ok := parseID(c, "replyId")
	if !ok {
		return
	}
	view, err := h.service.DeleteReply(c.Request.Context(), currentUserID(c), id, commentID, replyID)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, view)
}

func commentParams(c *gin.Context) (uint, uint, bool) {
	id, ok := parseID(c, "id")
	if !ok {
		return 0, 0, false
	}
	commentID, ok := parseID(c, "commentId")
	if !ok {
		return 0, 0, false
	}
	return id, commentID, true
}

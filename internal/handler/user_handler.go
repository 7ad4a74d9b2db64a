package handler

import (
	"whisp/internal/service"
	"whisp/pkg/jwt"
	"whisp/pkg/metrics"
	"whisp/pkg/response"

	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	service *service.UserService
	feed    *service.FeedService
}

func NewUserHandler(s *service.UserService, feed *service.FeedService) *UserHandler {
	return &UserHandler{service: s, feed: feed}
}

// Register 用户注册
func (h *UserHandler) Register(c *gin.Context) {
	type req struct {
		Username string `json:"username" binding:"required"`
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	var r req
	if err := c.ShouldBindJSON(&r); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	user, token, err := h.service.Register(c.Request.Context(), r.Username, r.Email, r.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	metrics.RegisterSuccess.Inc()
	response.Created(c, "注册成功，请查收验证邮件", &response.AuthResponse{
		User:        response.FilterUserInfo(user),
		AccessToken: token,
	})
}

// Login 用户名或邮箱登录
func (h *UserHandler) Login(c *gin.Context) {
	type req struct {
		UsernameOrEmail string `json:"usernameOrEmail"`
		Email           string `json:"email"`
		Password        string `json:"password" binding:"required"`
	}
	var r req
	if err := c.ShouldBindJSON(&r); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	identifier := r.UsernameOrEmail
	if identifier == "" {
		identifier = r.Email
	}
	user, token, err := h.service.Login(c.Request.Context(), identifier, r.Password)
	if err != nil {
		metrics.LoginFailure.Inc()
		respondError(c, err)
		return
	}

	metrics.LoginSuccess.Inc()
	response.SuccessWithMessage(c, "登录成功", &response.AuthResponse{
		User:        response.FilterUserInfo(user),
		AccessToken: token,
	})
}

// Logout 注销当前令牌
func (h *UserHandler) Logout(c *gin.Context) {
	if err := h.service.Logout(c.Request.Context(), jwt.GetClaims(c)); err != nil {
		respondError(c, err)
		return
	}
	response.SuccessWithMessage(c, "已退出登录", nil)
}

func (h *UserHandler) VerifyEmail(c *gin.Context) {
	user, err := h.service.VerifyEmail(c.Request.Context(), c.Param("token"))
	if err != nil {
		respondError(c, err)
		return
	}
	response.SuccessWithMessage(c, "邮箱验证成功", response.FilterUserInfo(user))
}

func (h *UserHandler) ResendVerification(c *gin.Context) {
	type req struct {
		Email string `json:"email" binding:"required"`
	}
	var r req
	if err := c.ShouldBindJSON(&r); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if err := h.service.ResendVerification(c.Request.Context(), r.Email); err != nil {
		respondError(c, err)
		return
	}
	response.SuccessWithMessage(c, "验证邮件已重新发送", nil)
}

// GetProfile 用户主页
func (h *UserHandler) GetProfile(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	profile, err := h.service.GetProfile(c.Request.Context(), currentUserID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, profile)
}

// GetUserWhispers 用户主页的 Whisper 列表，支持可选分页
func (h *UserHandler) GetUserWhispers(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	feed, err := h.feed.GetUserWhispers(c.Request.Context(), currentUserID(c), id, parsePageRequest(c))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, feed.Body())
}

func (h *UserHandler) UpdateProfile(c *gin.Context) {
	type req struct {
		Username *string `json:"username"`
		Bio      *string `json:"bio"`
		Avatar   *string `json:"avatar"`
	}
	var r req
	if err := c.ShouldBindJSON(&r); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	user, err := h.service.UpdateProfile(c.Request.Context(), currentUserID(c), service.ProfileUpdate{
		Username: r.Username,
		Bio:      r.Bio,
		Avatar:   r.Avatar,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	response.SuccessWithMessage(c, "资料已更新", response.FilterUserInfo(user))
}

// ChangePassword 修改密码并返回新令牌
func (h *UserHandler) ChangePassword(c *gin.Context) {
	type req struct {
		CurrentPassword string `json:"currentPassword" binding:"required"`
		NewPassword     string `json:"newPassword" binding:"required"`
	}
	var r req
	if err := c.ShouldBindJSON(&r); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	token, err := h.service.ChangePassword(c.Request.Context(), currentUserID(c), r.CurrentPassword, r.NewPassword)
	if err != nil {
		respondError(c, err)
		return
	}
	response.SuccessWithMessage(c, "密码已修改", gin.H{"access_token": token})
}

func (h *UserHandler) DeleteAccount(c *gin.Context) {
	if err := h.service.DeleteAccount(c.Request.Context(), currentUserID(c)); err != nil {
		respondError(c, err)
		return
	}
	response.SuccessWithMessage(c, "账号已删除", nil)
}

func (h *UserHandler) SearchUsers(c *gin.Context) {
	users, err := h.service.SearchUsers(c.Request.Context(), currentUserID(c), c.Param("username"))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, users)
}

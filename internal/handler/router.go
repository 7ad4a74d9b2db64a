package handler

import (
	"whisp/internal/model"

	"github.com/gin-gonic/gin"
)

// Handlers 全部业务处理器
type Handlers struct {
	User    *UserHandler
	Friend  *FriendHandler
	Whisper *WhisperHandler
	Message *MessageHandler
}

// SetupRoutes 注册 /api/v1 下的业务路由，auth 为认证中间件
func SetupRoutes(router gin.IRouter, h *Handlers, auth gin.HandlerFunc) {
	v1 := router.Group("/api/v1")

	authGroup := v1.Group("/auth")
	{
		authGroup.POST("/register", h.User.Register)
		authGroup.POST("/login", h.User.Login)
		authGroup.GET("/verify-email/:token", h.User.VerifyEmail)
		authGroup.POST("/resend-verification", h.User.ResendVerification)
		authGroup.POST("/logout", auth, h.User.Logout)
	}

	users := v1.Group("/users", auth)
	{
		users.GET("/search/:username", h.User.SearchUsers)
		users.GET("/blocked", h.Friend.ListBlocked)
		users.POST("/block/:userId", h.Friend.Block)
		users.POST("/unblock/:userId", h.Friend.Unblock)
		users.PUT("/me", h.User.UpdateProfile)
		users.PUT("/me/password", h.User.ChangePassword)
		users.DELETE("/me", h.User.DeleteAccount)
		users.GET("/:id", h.User.GetProfile)
		users.GET("/:id/whispers", h.User.GetUserWhispers)
	}

	friends := v1.Group("/friends", auth)
	{
		friends.POST("/request", h.Friend.SendRequest)
		friends.POST("/cancel", h.Friend.CancelRequest)
		friends.POST("/accept", h.Friend.AcceptRequest)
		friends.POST("/reject", h.Friend.RejectRequest)
		friends.GET("/friends", h.Friend.ListFriends)
		friends.GET("/requests", h.Friend.ListIncoming)
		friends.GET("/outgoing", h.Friend.ListOutgoing)
		friends.GET("/mutual/:friendId", h.Friend.MutualFriends)
		friends.DELETE("/:friendId", h.Friend.RemoveFriend)
	}

	// 公共列表无需登录
	v1.GET("/whispers", h.Whisper.GetPublicWhispers)
	whispers := v1.Group("/whispers", auth)
	{
		whispers.POST("", h.Whisper.CreateWhisper)
		whispers.GET("/timeline", h.Whisper.GetTimeline)
		whispers.DELETE("/:id", h.Whisper.DeleteWhisper)
		whispers.POST("/:id/like", h.Whisper.React(model.ReactionLike))
		whispers.POST("/:id/dislike", h.Whisper.React(model.ReactionDislike))

		whispers.POST("/:id/comment", h.Whisper.AddComment)
		whispers.PUT("/:id/comment/:commentId", h.Whisper.EditComment)
		whispers.DELETE("/:id/comment/:commentId", h.Whisper.DeleteComment)
		whispers.POST("/:id/comment/:commentId/like", h.Whisper.React(model.ReactionLike))
		whispers.POST("/:id/comment/:commentId/dislike", h.Whisper.React(model.ReactionDislike))

		whispers.POST("/:id/comment/:commentId/reply", h.Whisper.AddReply)
		whispers.PUT("/:id/comment/:commentId/reply/:replyId", h.Whisper.EditReply)
		whispers.DELETE("/:id/comment/:commentId/reply/:replyId", h.Whisper.DeleteReply)
		whispers.POST("/:id/comment/:commentId/reply/:replyId/like", h.Whisper.React(model.ReactionLike))
		whispers.POST("/:id/comment/:commentId/reply/:replyId/dislike", h.Whisper.React(model.ReactionDislike))
	}

	messages := v1.Group("/messages", auth)
	{
		messages.POST("", h.Message.SendMessage)
		messages.GET("/:friendId", h.Message.GetMessages)
	}
}

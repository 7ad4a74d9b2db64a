package handler

import (
	"strconv"

	"whisp/internal/service"
	"whisp/pkg/jwt"
	"whisp/pkg/logger"
	"whisp/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// respondError 将业务错误映射为HTTP响应，未知错误记录日志后返回500
func respondError(c *gin.Context, err error) {
	var se *service.Error
	if errors.As(err, &se) {
		switch {
		case errors.Is(se.Kind, service.ErrNotFound):
			response.NotFound(c, se.Msg)
		case errors.Is(se.Kind, service.ErrForbidden):
			response.Forbidden(c, se.Msg)
		case errors.Is(se.Kind, service.ErrUnauthorized):
			response.Unauthorized(c, se.Msg)
		case errors.Is(se.Kind, service.ErrConflict):
			response.Conflict(c, se.Msg)
		default:
			response.BadRequest(c, se.Msg)
		}
		return
	}

	logger.Error("请求处理失败",
		zap.String("path", c.FullPath()),
		zap.String("request_id", logger.GetRequestID(c)),
		zap.Uint("user_id", jwt.GetUserID(c)),
		zap.String("username", jwt.GetUsername(c)),
		zap.Error(err),
	)
	response.InternalError(c, "服务器内部错误", err)
}

// parseID 解析路径参数中的ID，失败时直接返回400
func parseID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		response.BadRequest(c, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}

// optionalID 可选路径参数，不存在时返回0
func optionalID(c *gin.Context, name string) (uint, bool) {
	if c.Param(name) == "" {
		return 0, true
	}
	return parseID(c, name)
}

// currentUserID 认证中间件写入的当前用户ID
func currentUserID(c *gin.Context) uint {
	return jwt.GetUserID(c)
}

// parsePageRequest page、limit 都未提供时不分页
func parsePageRequest(c *gin.Context) service.PageRequest {
	pageStr, hasPage := c.GetQuery("page")
	limitStr, hasLimit := c.GetQuery("limit")
	if !hasPage && !hasLimit {
		return service.PageRequest{}
	}
	page, _ := strconv.Atoi(pageStr)
	limit, _ := strconv.Atoi(limitStr)
	return service.PageRequest{Page: page, Limit: limit, Paginated: true}
}

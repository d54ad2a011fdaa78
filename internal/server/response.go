package server

import (
	"errors"
	"net/http"
	"strconv"

	"stackit/internal/apperror"
	"stackit/internal/auth"
	"stackit/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

var errorKinds = []struct {
	kind   error
	status int
	name   string
}{
	{apperror.ErrValidation, http.StatusBadRequest, "validation_error"},
	{apperror.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
	{apperror.ErrForbidden, http.StatusForbidden, "forbidden"},
	{apperror.ErrNotFound, http.StatusNotFound, "not_found"},
	{apperror.ErrConflict, http.StatusConflict, "conflict"},
	{apperror.ErrRateLimited, http.StatusTooManyRequests, "rate_limited"},
}

// writeError 把业务错误映射为状态码；未知错误只记录日志，对外返回通用信息。
func writeError(c *gin.Context, op string, err error) {
	for _, k := range errorKinds {
		if !errors.Is(err, k.kind) {
			continue
		}
		body := gin.H{"error": k.name, "message": err.Error()}
		var appErr *apperror.AppError
		if errors.As(err, &appErr) && appErr.Field != "" {
			body["field"] = appErr.Field
		}
		c.AbortWithStatusJSON(k.status, body)
		return
	}
	log.Error().Err(err).Str("request_id", c.GetString("request_id")).Msg(op)
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "internal error"})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "validation_error", "message": msg})
}

// bind 解析 JSON 请求体，失败时直接写回 400。
func bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		badRequest(c, "invalid payload")
		return false
	}
	return true
}

func idParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}

func queryInt(c *gin.Context, name string) int {
	n, _ := strconv.Atoi(c.Query(name))
	return n
}

// actor 取当前身份；Revalidate 模式下角色来自存储。
func actor(c *gin.Context) service.Actor {
	claims, ok := auth.GetClaims(c)
	if !ok {
		return service.Actor{}
	}
	return service.Actor{ID: claims.UserID, Role: claims.Role}
}

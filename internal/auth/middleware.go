package auth

import (
	"context"
	"errors"
	"net/http"

	"stackit/internal/models"

	"github.com/gin-gonic/gin"
)

// Mode 决定鉴权网关是否回源校验身份。
type Mode int

const (
	// ClaimsOnly 直接信任已签名的 claims。
	ClaimsOnly Mode = iota
	// Revalidate 按 claims 中的 id 重新读取身份，角色以存储为准。
	Revalidate
)

const (
	claimsKey = "claims"
	userKey   = "user"
)

// IdentityStore 按 id 读取完整身份记录。
type IdentityStore interface {
	Identity(ctx context.Context, id uint) (*models.User, error)
}

func abort(c *gin.Context, status int, kind, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": kind, "message": msg})
}

// Authenticate 校验 Bearer token；缺失或格式错误返回 403，签名或过期失败返回 401。
func Authenticate(tokens *TokenService, mode Mode, store IdentityStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := BearerToken(c.GetHeader("Authorization"))
		if err != nil {
			abort(c, http.StatusForbidden, "forbidden", "missing bearer token")
			return
		}
		claims, err := tokens.Verify(raw)
		if err != nil {
			abort(c, http.StatusUnauthorized, "unauthorized", "invalid token")
			return
		}
		if mode == Revalidate {
			user, err := store.Identity(c.Request.Context(), claims.UserID)
			if err != nil || user == nil {
				abort(c, http.StatusUnauthorized, "unauthorized", "user not found")
				return
			}
			refreshed := *claims
			refreshed.Role = user.Role
			claims = &refreshed
			c.Set(userKey, user)
		}
		c.Set(claimsKey, claims)
		c.Next()
	}
}

// Optional 在 token 有效时写入 claims，否则按匿名请求继续，用于公开读接口。
func Optional(tokens *TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if raw, err := BearerToken(c.GetHeader("Authorization")); err == nil {
			if claims, err := tokens.Verify(raw); err == nil {
				c.Set(claimsKey, claims)
			}
		}
		c.Next()
	}
}

// RequireRole 必须挂在 Authenticate 之后。
func RequireRole(role models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := GetClaims(c)
		if !ok {
			abort(c, http.StatusForbidden, "forbidden", "missing identity")
			return
		}
		if err := CheckRole(claims, role); err != nil {
			abort(c, http.StatusForbidden, "forbidden", "insufficient role")
			return
		}
		c.Next()
	}
}

var ErrForbiddenRole = errors.New("forbidden role")

func CheckRole(claims *Claims, role models.Role) error {
	if claims == nil || claims.Role != role {
		return ErrForbiddenRole
	}
	return nil
}

func GetClaims(c *gin.Context) (*Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*Claims)
	return claims, ok
}

func GetUserID(c *gin.Context) uint {
	if claims, ok := GetClaims(c); ok {
		return claims.UserID
	}
	return 0
}

// GetUser 仅在 Revalidate 模式下有值。
func GetUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(userKey)
	if !ok {
		return nil, false
	}
	u, ok := v.(*models.User)
	return u, ok
}

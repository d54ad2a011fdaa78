package service

import (
	"errors"

	"stackit/internal/apperror"
	"stackit/internal/models"

	"gorm.io/gorm"
)

// 业务层通用错误，handler 通过 apperror 的种类映射到 HTTP 状态码。
var (
	ErrInvalidCredentials = apperror.Unauthorized("invalid email or password")
	ErrEmailNotVerified   = apperror.Forbidden("email not verified")
	ErrInvalidOTP         = apperror.New(apperror.ErrValidation, "invalid or expired otp")
	ErrEmailTaken         = apperror.Conflict("email already registered")
	ErrNotOwner           = apperror.Forbidden("not allowed to modify this resource")
	ErrNotMember          = apperror.Forbidden("not a member of this room")
)

// Actor 是发起操作的身份，来自鉴权网关。
type Actor struct {
	ID   uint
	Role models.Role
}

func (a Actor) IsAdmin() bool { return a.Role == models.RoleAdmin }

// canModify 允许资源所有者或管理员修改。
func (a Actor) canModify(ownerID uint) error {
	if a.ID == ownerID || a.IsAdmin() {
		return nil
	}
	return ErrNotOwner
}

// lookup 把 gorm 的未找到错误转换为带资源名的 NotFound。
func lookup(err error, resource string, id uint) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperror.NotFound(resource, id)
	}
	return err
}

func clampLimit(limit, def, upper int) int {
	if limit <= 0 || limit > upper {
		return def
	}
	return limit
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"stackit/internal/apperror"
	"stackit/internal/auth"
	"stackit/internal/models"

	"gorm.io/gorm"
)

// UserService 封装注册、登录与资料相关的业务逻辑。
type UserService struct {
	db     *gorm.DB
	tokens *auth.TokenService
	otp    *OTPService
}

func NewUserService(db *gorm.DB, tokens *auth.TokenService, otp *OTPService) *UserService {
	return &UserService{db: db, tokens: tokens, otp: otp}
}

// AuthResult 是登录或注册成功后返回的数据。
type AuthResult struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

type SignupInput struct {
	Email       string
	DisplayName string
	Password    string
}

// Signup 先检查未过期的 verified 标记，再校验载荷；创建成功后立即删除该标记。
func (s *UserService) Signup(ctx context.Context, in SignupInput) (*AuthResult, error) {
	email := normalizeEmail(in.Email)
	ok, err := s.otp.Verified(ctx, email)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrEmailNotVerified
	}

	name := strings.TrimSpace(in.DisplayName)
	if name == "" || len(name) > 64 {
		return nil, apperror.Validation("displayName", "displayName must be 1-64 characters")
	}
	if len(in.Password) < 8 || len(in.Password) > 128 {
		return nil, apperror.Validation("password", "password must be 8-128 characters")
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrEmailTaken
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	user := models.User{Email: email, DisplayName: name, PasswordHash: &hash, Role: models.RoleMember}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	if _, err := s.otp.Consume(ctx, email); err != nil {
		return nil, fmt.Errorf("consuming verified flag: %w", err)
	}
	return s.session(user)
}

// Signin 校验邮箱与密码；仅通过 OAuth 创建的身份没有密码，不能用密码登录。
func (s *UserService) Signin(ctx context.Context, email, password string) (*AuthResult, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if user.PasswordHash == nil || !auth.VerifyPassword(*user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return s.session(user)
}

// OAuthLogin 按邮箱查找或创建身份，然后签发会话 token。
func (s *UserService) OAuthLogin(ctx context.Context, id auth.ProviderIdentity) (*AuthResult, error) {
	email := normalizeEmail(id.Email)
	if email == "" {
		return nil, apperror.Validation("email", "provider returned no email")
	}
	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	switch {
	case err == nil:
		if user.AvatarURL == "" && id.AvatarURL != "" {
			if err := s.db.WithContext(ctx).Model(&user).Update("avatar_url", id.AvatarURL).Error; err != nil {
				return nil, err
			}
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		name := strings.TrimSpace(id.Name)
		if name == "" {
			name, _, _ = strings.Cut(email, "@")
		}
		user = models.User{Email: email, DisplayName: name, AvatarURL: id.AvatarURL, Role: models.RoleMember}
		if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
			if !errors.Is(err, gorm.ErrDuplicatedKey) {
				return nil, err
			}
			// 并发回调先创建了同一邮箱
			if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
				return nil, err
			}
		}
	default:
		return nil, err
	}
	return s.session(user)
}

func (s *UserService) session(user models.User) (*AuthResult, error) {
	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, User: user}, nil
}

// Identity 实现 auth.IdentityStore。
func (s *UserService) Identity(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, lookup(err, "user", id)
	}
	return &user, nil
}

func (s *UserService) PublicProfile(ctx context.Context, id uint) (*models.PublicUser, error) {
	user, err := s.Identity(ctx, id)
	if err != nil {
		return nil, err
	}
	p := user.Public()
	return &p, nil
}

// ProfileInput 中为 nil 的字段保持不变。
type ProfileInput struct {
	DisplayName *string
	AvatarURL   *string
	Bio         *string
}

func (s *UserService) UpdateProfile(ctx context.Context, id uint, in ProfileInput) (*models.User, error) {
	updates := map[string]any{}
	if in.DisplayName != nil {
		name := strings.TrimSpace(*in.DisplayName)
		if name == "" || len(name) > 64 {
			return nil, apperror.Validation("displayName", "displayName must be 1-64 characters")
		}
		updates["display_name"] = name
	}
	if in.AvatarURL != nil {
		updates["avatar_url"] = strings.TrimSpace(*in.AvatarURL)
	}
	if in.Bio != nil {
		updates["bio"] = *in.Bio
	}
	user, err := s.Identity(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(updates) == 0 {
		return user, nil
	}
	if err := s.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
		return nil, err
	}
	return s.Identity(ctx, id)
}

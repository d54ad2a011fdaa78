package server

import (
	"net/http"

	"stackit/internal/auth"
	"stackit/internal/service"

	"github.com/gin-gonic/gin"
)

// Handler 聚合所有 HTTP handler，依赖注入 service 层。
type Handler struct {
	svc         *service.Set
	providers   map[string]auth.Provider
	state       *auth.StateManager
	frontendURL string
}

func NewHandler(svc *service.Set, providers []auth.Provider, state *auth.StateManager, frontendURL string) *Handler {
	h := &Handler{svc: svc, providers: make(map[string]auth.Provider, len(providers)), state: state, frontendURL: frontendURL}
	for _, p := range providers {
		h.providers[p.Name()] = p
	}
	return h
}

// RequestOTP 生成验证码并发送到邮箱。
func (h *Handler) RequestOTP(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
	}
	if !bind(c, &req) {
		return
	}
	if err := h.svc.OTP.Request(c.Request.Context(), req.Email); err != nil {
		writeError(c, "request otp", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "otp sent"})
}

func (h *Handler) VerifyOTP(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
		Code  string `json:"code" binding:"required"`
	}
	if !bind(c, &req) {
		return
	}
	if err := h.svc.OTP.Verify(c.Request.Context(), req.Email, req.Code); err != nil {
		writeError(c, "verify otp", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"verified": true})
}

func (h *Handler) Signup(c *gin.Context) {
	var req struct {
		Email       string `json:"email"`
		DisplayName string `json:"displayName"`
		Password    string `json:"password"`
	}
	if !bind(c, &req) {
		return
	}
	res, err := h.svc.Users.Signup(c.Request.Context(), service.SignupInput{
		Email:       req.Email,
		DisplayName: req.DisplayName,
		Password:    req.Password,
	})
	if err != nil {
		writeError(c, "signup", err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) Signin(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if !bind(c, &req) {
		return
	}
	res, err := h.svc.Users.Signin(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, "signin", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Profile(c *gin.Context) {
	user, err := h.svc.Users.Identity(c.Request.Context(), auth.GetUserID(c))
	if err != nil {
		writeError(c, "profile", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (h *Handler) UpdateProfile(c *gin.Context) {
	var req struct {
		DisplayName *string `json:"displayName"`
		AvatarURL   *string `json:"avatarUrl" binding:"omitempty,max=512"`
		Bio         *string `json:"bio" binding:"omitempty,max=2000"`
	}
	if !bind(c, &req) {
		return
	}
	user, err := h.svc.Users.UpdateProfile(c.Request.Context(), auth.GetUserID(c), service.ProfileInput{
		DisplayName: req.DisplayName,
		AvatarURL:   req.AvatarURL,
		Bio:         req.Bio,
	})
	if err != nil {
		writeError(c, "update profile", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// Status 返回经过回源校验的当前身份。
func (h *Handler) Status(c *gin.Context) {
	user, ok := auth.GetUser(c)
	if !ok {
		writeError(c, "status", service.ErrInvalidCredentials)
		return
	}
	c.JSON(http.StatusOK, gin.H{"authenticated": true, "user": user})
}

func (h *Handler) PublicProfile(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	user, err := h.svc.Users.PublicProfile(c.Request.Context(), id)
	if err != nil {
		writeError(c, "public profile", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

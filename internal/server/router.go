package server

import (
	"net/http"
	"time"

	"stackit/internal/auth"
	"stackit/internal/config"
	"stackit/internal/metrics"
	"stackit/internal/models"
	"stackit/internal/mw"
	"stackit/internal/service"
	"stackit/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

type Deps struct {
	Config    config.Config
	Tokens    *auth.TokenService
	Services  *service.Set
	Hub       *ws.Hub
	Providers []auth.Provider
	State     *auth.StateManager
}

// SetupRouter 统一初始化 Gin 中间件、REST API 以及 WebSocket 端点。返回的函数用于停服时回收限速器。
func SetupRouter(d Deps) (*gin.Engine, func()) {
	cfg := d.Config
	h := NewHandler(d.Services, d.Providers, d.State, cfg.FrontendURL)

	// 控制单个 IP+路由的速率。
	globalLimit, globalRL := mw.RateLimit(rate.Every(time.Second/20), 40)
	// 验证码接口：每个来源 15 分钟内最多 5 次。
	otpLimit, otpRL := mw.RateLimitWindow(5, 15*time.Minute)
	stop := func() {
		globalRL.Stop()
		otpRL.Stop()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(mw.RequestLogger())
	r.Use(metrics.GinMiddleware())
	r.Use(mw.CORS(cfg.Env, cfg.AllowedOrigins))
	r.Use(globalLimit)

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/ws", ws.Serve(d.Hub, ws.ServeConfig{
		Tokens:         d.Tokens,
		Dispatcher:     d.Services.Relay,
		AllowedOrigins: cfg.AllowedOrigins,
	}))

	users := d.Services.Users
	claims := auth.Authenticate(d.Tokens, auth.ClaimsOnly, users)
	// 删除与管理类操作回源校验身份，角色以存储为准。
	strict := auth.Authenticate(d.Tokens, auth.Revalidate, users)
	optional := auth.Optional(d.Tokens)
	admin := auth.RequireRole(models.RoleAdmin)

	api := r.Group("/api/v1")

	u := api.Group("/users")
	u.POST("/otp", otpLimit, h.RequestOTP)
	u.POST("/otp/verify", h.VerifyOTP)
	u.POST("/signup", h.Signup)
	u.POST("/signin", h.Signin)
	u.GET("/profile", claims, h.Profile)
	u.PUT("/profile", claims, h.UpdateProfile)
	u.GET("/status", strict, h.Status)
	u.GET("/:id", h.PublicProfile)

	api.GET("/questions", h.ListQuestions)
	api.POST("/questions", claims, h.CreateQuestion)
	api.GET("/questions/:id", optional, h.GetQuestion)
	api.PUT("/questions/:id", claims, h.UpdateQuestion)
	api.DELETE("/questions/:id", strict, h.DeleteQuestion)
	api.POST("/questions/:id/answers", claims, h.CreateAnswer)

	api.PUT("/answers/:id", claims, h.UpdateAnswer)
	api.DELETE("/answers/:id", strict, h.DeleteAnswer)
	api.POST("/answers/:id/accept", claims, h.AcceptAnswer)
	api.POST("/answers/:id/vote", claims, h.Vote)
	api.GET("/answers/:id/votes", optional, h.VoteSummary)
	api.GET("/answers/:id/comments", h.ListComments)
	api.POST("/answers/:id/comments", claims, h.CreateComment)
	api.DELETE("/comments/:id", strict, h.DeleteComment)

	api.GET("/tags", h.ListTags)
	api.POST("/tags", strict, admin, h.CreateTag)
	api.GET("/tags/followed", claims, h.FollowedTags)
	api.POST("/tags/:id/follow", claims, h.FollowTag)

	api.POST("/flags", claims, h.CreateFlag)

	n := api.Group("/notifications", claims)
	n.GET("", h.ListNotifications)
	n.POST("/read-all", h.MarkAllNotificationsRead)
	n.POST("/:id/read", h.MarkNotificationRead)

	chat := api.Group("/chat", claims)
	chat.POST("/rooms", h.OpenDirectRoom)
	chat.POST("/groups", h.CreateGroupRoom)
	chat.GET("/rooms", h.ListRooms)
	chat.GET("/rooms/:id/messages", h.ListMessages)
	chat.POST("/rooms/:id/messages", h.SendMessage)

	api.GET("/leaderboard", h.Leaderboard)
	api.GET("/activity", h.Activity)
	api.GET("/search", h.Search)

	a := api.Group("/admin", strict, admin)
	a.GET("/questions/pending", h.PendingQuestions)
	a.POST("/questions/:id/approve", h.ApproveQuestion)
	a.GET("/flags", h.ListFlags)
	a.DELETE("/:kind/:id", h.AdminDelete)

	api.GET("/auth/:provider", h.OAuthStart)
	api.GET("/auth/:provider/callback", h.OAuthCallback)

	return r, stop
}

package app

import (
	"homechat/internal/handler"
	"homechat/internal/middleware"
	"homechat/pkg/logger"
	"homechat/pkg/websocket"

	"github.com/gin-gonic/gin"
	"go.uber.org/dig"
)

// Handlers 路由所需的全部处理器
type Handlers struct {
	dig.In

	Auth      *handler.AuthHandler
	Channels  *handler.ChannelHandler
	Messages  *handler.MessageHandler
	Presence  *handler.PresenceHandler
	Search    *handler.SearchHandler
	Webhooks  *handler.WebhookHandler
	Admin     *handler.AdminHandler
	Health    *handler.HealthHandler
	WebSocket *websocket.Handler
}

// NewRouter 注册全部路由
func NewRouter(authenticator *middleware.Authenticator, h Handlers) *gin.Engine {
	router := gin.New()
	router.Use(logger.RecoveryMiddleware())
	router.Use(logger.RequestLogger())

	router.GET("/health", h.Health.Health)

	// WebSocket：令牌通过 query 或 Sec-WebSocket-Protocol 传递
	router.GET("/ws", h.WebSocket.Serve)

	v1 := router.Group("/api/v1")
	{
		// 公开接口（无需认证）
		v1.POST("/signup", h.Auth.Signup)
		v1.POST("/signin", h.Auth.Signin)

		// webhook 使用签名校验，不走令牌认证
		v1.POST("/webhooks/:webhook_id", h.Webhooks.Receive)

		authed := v1.Group("")
		authed.Use(authenticator.Authenticate())
		{
			authed.GET("/me", h.Auth.Me)
			authed.POST("/messages", h.Messages.PostAPI)
			authed.GET("/messages", h.Messages.Recent)
			authed.GET("/search", h.Search.Search)
			authed.GET("/presence", h.Presence.Online)

			channels := authed.Group("/channels")
			{
				channels.GET("", h.Channels.List)
				channels.POST("", h.Channels.Create)
				channels.GET("/:id", h.Channels.Get)
				channels.DELETE("/:id", h.Channels.Delete)
				channels.POST("/:id/join", h.Channels.Join)
				channels.DELETE("/:id/leave", h.Channels.Leave)
				channels.POST("/:id/invite", h.Channels.Invite)
				channels.GET("/:id/members", h.Channels.Members)
				channels.GET("/:id/messages", h.Channels.History)
				channels.POST("/:id/messages", h.Channels.Post)
			}

			// 需要用户会话的接口
			session := authed.Group("")
			session.Use(middleware.RequireSession())
			{
				session.DELETE("/signout", h.Auth.Signout)
				session.PUT("/push_token", h.Auth.UpdatePushToken)
				session.POST("/presence/heartbeat", h.Presence.Heartbeat)
				session.PUT("/presence/status", h.Presence.SetStatus)
				session.POST("/dm/start", h.Channels.StartDM)
				session.POST("/users/:id/messages", h.Messages.SendDirect)
			}

			admin := authed.Group("/admin")
			admin.Use(middleware.RequireAdmin())
			{
				admin.GET("/bots", h.Admin.ListBots)
				admin.POST("/bots", h.Admin.CreateBot)
				admin.GET("/bots/:id", h.Admin.GetBot)
				admin.PATCH("/bots/:id", h.Admin.UpdateBot)
				admin.POST("/bots/:id/regenerate_secret", h.Admin.RegenerateBotSecret)
				admin.DELETE("/bots/:id", h.Admin.DeleteBot)

				admin.GET("/tokens", h.Admin.ListTokens)
				admin.POST("/tokens", h.Admin.CreateToken)
				admin.POST("/tokens/:id/regenerate", h.Admin.RegenerateToken)
				admin.POST("/tokens/:id/activate", h.Admin.ActivateToken)
				admin.POST("/tokens/:id/deactivate", h.Admin.DeactivateToken)
				admin.DELETE("/tokens/:id", h.Admin.DeleteToken)

				admin.GET("/settings", h.Admin.ListSettings)
				admin.PUT("/settings/:key", h.Admin.UpdateSetting)

				admin.GET("/users", h.Admin.ListUsers)
				admin.PATCH("/users/:id/role", h.Admin.SetUserRole)
				admin.DELETE("/users/:id", h.Admin.DeleteUser)
			}
		}
	}

	return router
}

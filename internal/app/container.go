// Package app 使用 go.uber.org/dig 组装服务依赖
package app

import (
	"context"

	"homechat/config"
	"homechat/internal/handler"
	"homechat/internal/middleware"
	"homechat/internal/repository"
	"homechat/internal/service"
	"homechat/pkg/broadcast"
	"homechat/pkg/jwt"
	"homechat/pkg/logger"
	"homechat/pkg/push"
	redispkg "homechat/pkg/redis"
	"homechat/pkg/websocket"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/dig"
	"gorm.io/gorm"
)

// Container 组装完成的单例，main 通过 getter 使用，无需直接依赖 dig
type Container struct {
	router    *gin.Engine
	bus       *broadcast.Bus
	sweeper   *Sweeper
	pusher    *push.LogNotifier
	bootstrap *service.Bootstrap
}

func (c *Container) Router() *gin.Engine           { return c.router }
func (c *Container) Bus() *broadcast.Bus           { return c.bus }
func (c *Container) Sweeper() *Sweeper             { return c.sweeper }
func (c *Container) Pusher() *push.LogNotifier     { return c.pusher }
func (c *Container) Bootstrap() *service.Bootstrap { return c.bootstrap }

// New 由配置、数据库与可选的 Redis 客户端（nil 表示未启用）构建全部服务
func New(cfg *config.Config, orm *gorm.DB, rdb *redis.Client) (*Container, error) {
	d := dig.New()

	providers := []interface{}{
		func() *config.Config { return cfg },
		func() *gorm.DB { return orm },
		func() *redis.Client { return rdb },
		newBus,
		newPublisher,
		newPresenceMirror,
		newPresenceCache,
		newLogNotifier,
		newNotifier,
		func(cfg *config.Config) *jwt.JWTService { return jwt.NewJWTService(cfg.JWT) },

		// 数据访问层
		repository.NewUserRepository,
		repository.NewChannelRepository,
		repository.NewMembershipRepository,
		repository.NewMessageRepository,
		repository.NewApiTokenRepository,
		repository.NewBotRepository,
		repository.NewSettingRepository,

		// 业务层
		service.NewSystemAccount,
		service.NewSettingService,
		newVerifier,
		newTokenService,
		newBotService,
		newPresenceService,
		newChannelService,
		newMessageService,
		newWebhookService,
		service.NewTypingService,
		newUserService,
		newBootstrap,
		newSweeper,

		// 接入层
		newAuthenticator,
		websocket.NewManager,
		newWebSocketHandler,
		handler.NewAuthHandler,
		handler.NewChannelHandler,
		handler.NewMessageHandler,
		handler.NewPresenceHandler,
		handler.NewSearchHandler,
		handler.NewWebhookHandler,
		handler.NewAdminHandler,
		newHealthHandler,
		NewRouter,
	}
	for _, p := range providers {
		if err := d.Provide(p); err != nil {
			return nil, err
		}
	}

	var result *Container
	err := d.Invoke(func(
		router *gin.Engine,
		bus *broadcast.Bus,
		sweeper *Sweeper,
		pusher *push.LogNotifier,
		bootstrap *service.Bootstrap,
	) {
		result = &Container{
			router:    router,
			bus:       bus,
			sweeper:   sweeper,
			pusher:    pusher,
			bootstrap: bootstrap,
		}
	})
	return result, err
}

func newBus(cfg *config.Config) *broadcast.Bus {
	return broadcast.NewBus(cfg.Chat.BusBuffer, logger.Named("bus"))
}

func newPublisher(bus *broadcast.Bus) service.Publisher {
	return bus
}

func newPresenceMirror(cfg *config.Config, rdb *redis.Client) *redispkg.PresenceMirror {
	if rdb == nil {
		return nil
	}
	return redispkg.NewPresenceMirror(rdb, cfg.Presence.TTL)
}

// newPresenceCache 未启用 Redis 时返回 nil 接口，而不是包着 nil 指针的接口
func newPresenceCache(mirror *redispkg.PresenceMirror) service.PresenceCache {
	if mirror == nil {
		return nil
	}
	return mirror
}

func newLogNotifier(cfg *config.Config) *push.LogNotifier {
	if !cfg.Push.Enabled {
		return nil
	}
	return push.NewLogNotifier(cfg.Push.QueueSize, cfg.Push.RatePerSecond, logger.Named("push"))
}

func newNotifier(n *push.LogNotifier) push.Notifier {
	if n == nil {
		return push.Nop{}
	}
	return n
}

func newVerifier(tokens *repository.ApiTokenRepository) *service.Verifier {
	return service.NewVerifier(tokens, logger.Named("verifier"))
}

func newTokenService(tokens *repository.ApiTokenRepository) *service.TokenService {
	return service.NewTokenService(tokens, logger.Named("token"))
}

func newBotService(bots *repository.BotRepository, messages *repository.MessageRepository, users *repository.UserRepository) *service.BotService {
	return service.NewBotService(bots, messages, users, logger.Named("bot"))
}

func newPresenceService(
	cfg *config.Config,
	users *repository.UserRepository,
	pub service.Publisher,
	cache service.PresenceCache,
	manager *websocket.Manager,
) *service.PresenceService {
	return service.NewPresenceService(users, pub, cache, service.PresenceOptions{
		TTL:         cfg.Presence.TTL,
		Debounce:    cfg.Presence.Debounce,
		Connections: manager,
	}, logger.Named("presence"))
}

func newChannelService(
	orm *gorm.DB,
	channels *repository.ChannelRepository,
	members *repository.MembershipRepository,
	users *repository.UserRepository,
	messages *repository.MessageRepository,
	pub service.Publisher,
	notifier push.Notifier,
) *service.ChannelService {
	return service.NewChannelService(orm, channels, members, users, messages, pub, notifier, logger.Named("channel"))
}

func newMessageService(
	orm *gorm.DB,
	messages *repository.MessageRepository,
	members *repository.MembershipRepository,
	users *repository.UserRepository,
	channels *service.ChannelService,
	system *service.SystemAccount,
	pub service.Publisher,
	notifier push.Notifier,
) *service.MessageService {
	return service.NewMessageService(orm, messages, members, users, channels, system, pub, notifier, logger.Named("message"))
}

func newWebhookService(
	cfg *config.Config,
	bots *repository.BotRepository,
	users *repository.UserRepository,
	verifier *service.Verifier,
	channels *service.ChannelService,
	messages *service.MessageService,
	system *service.SystemAccount,
) *service.WebhookService {
	return service.NewWebhookService(bots, users, verifier, channels, messages, system, service.WebhookOptions{
		DefaultRoom:   cfg.Chat.WebhookDefaultRoom,
		StatusRoom:    cfg.Chat.StatusRoom,
		RatePerSecond: cfg.Chat.WebhookRatePerSecond,
	}, logger.Named("webhook"))
}

func newUserService(
	users *repository.UserRepository,
	channels *service.ChannelService,
	presence *service.PresenceService,
	settings *service.SettingService,
	jwtService *jwt.JWTService,
) *service.UserService {
	return service.NewUserService(users, channels, presence, settings, jwtService, logger.Named("user"))
}

func newBootstrap(system *service.SystemAccount, users *repository.UserRepository, channels *service.ChannelService) *service.Bootstrap {
	return service.NewBootstrap(system, users, channels, logger.Named("bootstrap"))
}

func newSweeper(presence *service.PresenceService, mirror *redispkg.PresenceMirror) *Sweeper {
	var pruner Pruner
	if mirror != nil {
		pruner = mirror
	}
	return NewSweeper(presence, pruner, logger.Named("sweeper"))
}

func newAuthenticator(jwtService *jwt.JWTService, verifier *service.Verifier, users *repository.UserRepository, system *service.SystemAccount) *middleware.Authenticator {
	return middleware.NewAuthenticator(jwtService, verifier, users, system, logger.Named("auth"))
}

func newWebSocketHandler(
	cfg *config.Config,
	bus *broadcast.Bus,
	manager *websocket.Manager,
	authenticator *middleware.Authenticator,
	presence *service.PresenceService,
	typing *service.TypingService,
	channels *service.ChannelService,
) *websocket.Handler {
	return websocket.NewHandler(bus, manager, authenticator, presence, typing, channels, cfg.WebSocket, logger.Named("ws"))
}

func newHealthHandler(orm *gorm.DB, bus *broadcast.Bus, manager *websocket.Manager, rdb *redis.Client) *handler.HealthHandler {
	var ping handler.Pinger
	if rdb != nil {
		ping = func(ctx context.Context) error { return redispkg.HealthCheck(ctx, rdb) }
	}
	return handler.NewHealthHandler(orm, bus, manager, ping)
}

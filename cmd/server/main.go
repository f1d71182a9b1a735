package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"homechat/config"
	"homechat/internal/app"
	"homechat/internal/model"
	dbPkg "homechat/pkg/db"
	"homechat/pkg/logger"
	redisPkg "homechat/pkg/redis"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	// 1. 加载配置
	cfg := config.LoadConfig()

	// 2. 初始化日志系统
	log := logger.InitLogger(cfg.Log)
	defer log.Sync()

	log.Info("=== HomeChat 启动 ===")
	log.Info("服务器配置信息",
		zap.String("port", cfg.Server.Port),
		zap.String("database_host", cfg.Database.Host),
		zap.Int("database_port", cfg.Database.Port),
		zap.String("database_name", cfg.Database.Database),
		zap.Bool("redis_enabled", cfg.Redis.Enabled),
		zap.Duration("presence_ttl", cfg.Presence.TTL),
		zap.String("log_level", cfg.Log.Level),
	)

	// 3. 初始化数据库连接
	orm, err := dbPkg.InitDB(cfg.Database)
	if err != nil {
		log.Fatal("数据库连接失败", zap.Error(err))
	}
	defer func() {
		if err := dbPkg.CloseDB(); err != nil {
			log.Error("关闭数据库连接失败", zap.Error(err))
		}
	}()
	log.Info("数据库连接成功")

	// 3.1 自动迁移表结构
	if err := dbPkg.AutoMigrate(model.All()...); err != nil {
		log.Fatal("自动迁移失败", zap.Error(err))
	}
	log.Info("自动迁移完成")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3.2 Redis 仅作为在线状态镜像，连接失败时降级运行
	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb, err = redisPkg.NewClient(ctx, cfg.Redis)
		if err != nil {
			log.Warn("Redis不可用，在线状态不做镜像", zap.Error(err))
		} else {
			defer rdb.Close()
			log.Info("Redis连接成功")
		}
	}

	// 4. 设置Gin模式
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 5. 组装服务
	container, err := app.New(cfg, orm, rdb)
	if err != nil {
		log.Fatal("服务组装失败", zap.Error(err))
	}
	if err := container.Bootstrap().Run(ctx); err != nil {
		log.Fatal("初始化系统数据失败", zap.Error(err))
	}

	bus := container.Bus()
	bus.Start()
	defer bus.Stop()

	// 6. 创建HTTP服务器
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      container.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("HTTP服务器启动", zap.String("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// 7. 优雅关闭：先停总线让 WebSocket 连接收到关闭帧，再关闭HTTP服务器
	g.Go(func() error {
		<-gctx.Done()
		log.Info("正在关闭服务器...")
		bus.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	g.Go(func() error { return container.Sweeper().Run(gctx, cfg.Presence.SweepSpec) })

	if pusher := container.Pusher(); pusher != nil {
		g.Go(func() error { return pusher.Run(gctx) })
	}

	if err := g.Wait(); err != nil {
		log.Error("服务器异常退出", zap.Error(err))
		return
	}
	log.Info("服务器已安全关闭")
}

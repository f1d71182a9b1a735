package handler

import (
	"context"
	"net/http"
	"time"

	"homechat/pkg/broadcast"
	"homechat/pkg/response"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Pinger 可选依赖的健康检查（例如 Redis）
type Pinger func(ctx context.Context) error

// ConnectionCounter 持有实时连接的用户数
type ConnectionCounter interface {
	Users() int
}

type HealthHandler struct {
	orm   *gorm.DB
	bus   *broadcast.Bus
	conns ConnectionCounter
	redis Pinger
}

// NewHealthHandler redis 为 nil 表示未启用
func NewHealthHandler(orm *gorm.DB, bus *broadcast.Bus, conns ConnectionCounter, redis Pinger) *HealthHandler {
	return &HealthHandler{orm: orm, bus: bus, conns: conns, redis: redis}
}

// Health 健康检查，数据库不可用时返回503
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := "ok"
	checks := gin.H{"database": "ok", "bus": "ok"}
	if sqlDB, err := h.orm.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
		status = "degraded"
		checks["database"] = "down"
	}
	if !h.bus.Running() {
		status = "degraded"
		checks["bus"] = "stopped"
	}
	if h.redis != nil {
		checks["redis"] = "ok"
		if err := h.redis(ctx); err != nil {
			checks["redis"] = "down"
		}
	}

	data := gin.H{
		"status":          status,
		"checks":          checks,
		"connected_users": h.conns.Users(),
		"time":            time.Now().Format(time.RFC3339),
	}
	if checks["database"] != "ok" {
		c.JSON(http.StatusServiceUnavailable, response.Response{Code: http.StatusServiceUnavailable, Message: status, Data: data})
		return
	}
	response.Success(c, data)
}

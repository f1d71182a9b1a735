package handler

import (
	"homechat/internal/auth"
	"homechat/internal/service"
	"homechat/pkg/response"

	"github.com/gin-gonic/gin"
)

type PresenceHandler struct {
	presence *service.PresenceService
}

func NewPresenceHandler(presence *service.PresenceService) *PresenceHandler {
	return &PresenceHandler{presence: presence}
}

// Online 在线用户列表
func (h *PresenceHandler) Online(c *gin.Context) {
	users, err := h.presence.Online(c.Request.Context())
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, userViews(users))
}

// Heartbeat 会话心跳，仅在离线→在线时广播
func (h *PresenceHandler) Heartbeat(c *gin.Context) {
	p := auth.MustFromContext(c)
	if err := h.presence.Heartbeat(c.Request.Context(), p.Actor().ID); err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, gin.H{"status": "ok"})
}

// SetStatus 更新状态文字
func (h *PresenceHandler) SetStatus(c *gin.Context) {
	var r struct {
		Status string `json:"status"`
	}
	if !bindJSON(c, &r) {
		return
	}
	p := auth.MustFromContext(c)
	user, err := h.presence.SetStatus(c.Request.Context(), p.Actor().ID, r.Status)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, service.NewUserView(user))
}

package handler

import (
	"homechat/internal/service"
	apperrors "homechat/pkg/errors"
	"homechat/pkg/response"

	"github.com/gin-gonic/gin"
)

// AdminHandler 管理接口：机器人、API令牌、系统设置、用户
type AdminHandler struct {
	bots     *service.BotService
	tokens   *service.TokenService
	settings *service.SettingService
	users    *service.UserService
}

func NewAdminHandler(bots *service.BotService, tokens *service.TokenService, settings *service.SettingService, users *service.UserService) *AdminHandler {
	return &AdminHandler{bots: bots, tokens: tokens, settings: settings, users: users}
}

// ---- 机器人 ----

func (h *AdminHandler) ListBots(c *gin.Context) {
	bots, err := h.bots.List(c.Request.Context())
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, bots)
}

func (h *AdminHandler) CreateBot(c *gin.Context) {
	var r struct {
		Name        string `json:"name" binding:"required"`
		Description string `json:"description"`
		BotType     string `json:"bot_type"`
		WebhookID   string `json:"webhook_id"`
	}
	if !bindJSON(c, &r) {
		return
	}
	bot, err := h.bots.Create(c.Request.Context(), service.CreateBotInput{
		Name:        r.Name,
		Description: r.Description,
		BotType:     r.BotType,
		WebhookID:   r.WebhookID,
	})
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Created(c, bot)
}

func (h *AdminHandler) GetBot(c *gin.Context) {
	id, ok := paramID(c, "id", apperrors.ErrBotNotFound)
	if !ok {
		return
	}
	status, err := h.bots.Status(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, status)
}

func (h *AdminHandler) UpdateBot(c *gin.Context) {
	id, ok := paramID(c, "id", apperrors.ErrBotNotFound)
	if !ok {
		return
	}
	var r struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
		Active      *bool   `json:"active"`
	}
	if !bindJSON(c, &r) {
		return
	}
	bot, err := h.bots.Update(c.Request.Context(), id, service.UpdateBotInput{
		Name:        r.Name,
		Description: r.Description,
		Active:      r.Active,
	})
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, bot)
}

func (h *AdminHandler) RegenerateBotSecret(c *gin.Context) {
	id, ok := paramID(c, "id", apperrors.ErrBotNotFound)
	if !ok {
		return
	}
	bot, err := h.bots.RegenerateSecret(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, bot)
}

func (h *AdminHandler) DeleteBot(c *gin.Context) {
	id, ok := paramID(c, "id", apperrors.ErrBotNotFound)
	if !ok {
		return
	}
	if err := h.bots.Delete(c.Request.Context(), id); err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessWithMessage(c, "机器人已删除", nil)
}

// ---- API令牌 ----

func (h *AdminHandler) ListTokens(c *gin.Context) {
	tokens, err := h.tokens.List(c.Request.Context())
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, tokens)
}

// CreateToken 明文令牌仅在创建时返回一次
func (h *AdminHandler) CreateToken(c *gin.Context) {
	var r struct {
		Name string `json:"name" binding:"required"`
	}
	if !bindJSON(c, &r) {
		return
	}
	issued, err := h.tokens.Create(c.Request.Context(), r.Name)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Created(c, issued)
}

func (h *AdminHandler) RegenerateToken(c *gin.Context) {
	id, ok := paramID(c, "id", apperrors.ErrTokenNotFound)
	if !ok {
		return
	}
	issued, err := h.tokens.Regenerate(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, issued)
}

func (h *AdminHandler) ActivateToken(c *gin.Context) {
	h.setTokenActive(c, true)
}

func (h *AdminHandler) DeactivateToken(c *gin.Context) {
	h.setTokenActive(c, false)
}

func (h *AdminHandler) setTokenActive(c *gin.Context, active bool) {
	id, ok := paramID(c, "id", apperrors.ErrTokenNotFound)
	if !ok {
		return
	}
	var err error
	if active {
		err = h.tokens.Activate(c.Request.Context(), id)
	} else {
		err = h.tokens.Deactivate(c.Request.Context(), id)
	}
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, gin.H{"id": id, "active": active})
}

func (h *AdminHandler) DeleteToken(c *gin.Context) {
	id, ok := paramID(c, "id", apperrors.ErrTokenNotFound)
	if !ok {
		return
	}
	if err := h.tokens.Delete(c.Request.Context(), id); err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessWithMessage(c, "令牌已删除", nil)
}

// ---- 系统设置 ----

func (h *AdminHandler) ListSettings(c *gin.Context) {
	settings, err := h.settings.All(c.Request.Context())
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, settings)
}

func (h *AdminHandler) UpdateSetting(c *gin.Context) {
	var r struct {
		Value string `json:"value"`
	}
	if !bindJSON(c, &r) {
		return
	}
	key := c.Param("key")
	if err := h.settings.Set(c.Request.Context(), key, r.Value); err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, gin.H{"key": key, "value": r.Value})
}

// ---- 用户 ----

func (h *AdminHandler) ListUsers(c *gin.Context) {
	users, err := h.users.List(c.Request.Context())
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, userViews(users))
}

func (h *AdminHandler) SetUserRole(c *gin.Context) {
	id, ok := paramID(c, "id", apperrors.ErrUserNotFound)
	if !ok {
		return
	}
	var r struct {
		Role string `json:"role" binding:"required"`
	}
	if !bindJSON(c, &r) {
		return
	}
	user, err := h.users.SetRole(c.Request.Context(), id, r.Role)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, service.NewUserView(user))
}

func (h *AdminHandler) DeleteUser(c *gin.Context) {
	id, ok := paramID(c, "id", apperrors.ErrUserNotFound)
	if !ok {
		return
	}
	if err := h.users.Delete(c.Request.Context(), id); err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessWithMessage(c, "用户已删除", nil)
}

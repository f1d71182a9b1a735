package handler

import (
	"homechat/internal/auth"
	"homechat/internal/model"
	"homechat/internal/service"
	apperrors "homechat/pkg/errors"
	"homechat/pkg/response"

	"github.com/gin-gonic/gin"
)

type ChannelHandler struct {
	channels *service.ChannelService
	messages *service.MessageService
}

func NewChannelHandler(channels *service.ChannelService, messages *service.MessageService) *ChannelHandler {
	return &ChannelHandler{channels: channels, messages: messages}
}

func messageViews(messages []model.Message) []*service.MessageView {
	views := make([]*service.MessageView, 0, len(messages))
	for i := range messages {
		views = append(views, service.NewMessageView(&messages[i]))
	}
	return views
}

func userViews(users []model.User) []*service.UserView {
	views := make([]*service.UserView, 0, len(users))
	for i := range users {
		views = append(views, service.NewUserView(&users[i]))
	}
	return views
}

// List 可访问的频道列表
func (h *ChannelHandler) List(c *gin.Context) {
	summaries, err := h.channels.ListAccessible(c.Request.Context(), auth.MustFromContext(c))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, summaries)
}

// Create 创建频道，创建者自动加入
func (h *ChannelHandler) Create(c *gin.Context) {
	var r struct {
		Name        string `json:"name" binding:"required"`
		Description string `json:"description"`
		ChannelType string `json:"channel_type"`
	}
	if !bindJSON(c, &r) {
		return
	}
	ch, err := h.channels.Create(c.Request.Context(), auth.MustFromContext(c).Actor(), service.CreateChannelInput{
		Name:        r.Name,
		Description: r.Description,
		Type:        r.ChannelType,
	})
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Created(c, ch)
}

// Get 频道详情
func (h *ChannelHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id", apperrors.ErrChannelNotFound)
	if !ok {
		return
	}
	ch, err := h.channels.Get(c.Request.Context(), auth.MustFromContext(c), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, ch)
}

// Delete 删除频道（创建者或管理员）
func (h *ChannelHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id", apperrors.ErrChannelNotFound)
	if !ok {
		return
	}
	if err := h.channels.Delete(c.Request.Context(), auth.MustFromContext(c), id); err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessWithMessage(c, "频道已删除", nil)
}

// Join 加入频道
func (h *ChannelHandler) Join(c *gin.Context) {
	id, ok := paramID(c, "id", apperrors.ErrChannelNotFound)
	if !ok {
		return
	}
	ch, err := h.channels.Join(c.Request.Context(), auth.MustFromContext(c), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessWithMessage(c, "已加入频道", ch)
}

// Leave 离开频道
func (h *ChannelHandler) Leave(c *gin.Context) {
	id, ok := paramID(c, "id", apperrors.ErrChannelNotFound)
	if !ok {
		return
	}
	if err := h.channels.Leave(c.Request.Context(), auth.MustFromContext(c), id); err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessWithMessage(c, "已离开频道", nil)
}

// Invite 邀请用户加入私有频道
func (h *ChannelHandler) Invite(c *gin.Context) {
	id, ok := paramID(c, "id", apperrors.ErrChannelNotFound)
	if !ok {
		return
	}
	var r struct {
		Username string `json:"username" binding:"required"`
	}
	if !bindJSON(c, &r) {
		return
	}
	user, err := h.channels.Invite(c.Request.Context(), auth.MustFromContext(c), id, r.Username)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessWithMessage(c, "已邀请 "+user.Username, service.NewUserView(user))
}

// Members 频道成员
func (h *ChannelHandler) Members(c *gin.Context) {
	id, ok := paramID(c, "id", apperrors.ErrChannelNotFound)
	if !ok {
		return
	}
	members, err := h.channels.Members(c.Request.Context(), auth.MustFromContext(c), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, userViews(members))
}

// History 频道历史消息（新的在前）
func (h *ChannelHandler) History(c *gin.Context) {
	id, ok := paramID(c, "id", apperrors.ErrChannelNotFound)
	if !ok {
		return
	}
	messages, err := h.messages.History(c.Request.Context(), auth.MustFromContext(c), id, queryInt(c, "limit", service.DefaultHistorySize))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, messageViews(messages))
}

// Post 在频道内发消息
func (h *ChannelHandler) Post(c *gin.Context) {
	id, ok := paramID(c, "id", apperrors.ErrChannelNotFound)
	if !ok {
		return
	}
	var r struct {
		Content     string   `json:"content"`
		Attachments []string `json:"attachments"`
	}
	if !bindJSON(c, &r) {
		return
	}
	message, err := h.messages.Post(c.Request.Context(), auth.MustFromContext(c), id, service.PostInput{
		Content:     r.Content,
		Attachments: r.Attachments,
	})
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Created(c, service.NewMessageView(message))
}

// StartDM 与指定用户开始私聊
func (h *ChannelHandler) StartDM(c *gin.Context) {
	var r struct {
		Username string `json:"username" binding:"required"`
	}
	if !bindJSON(c, &r) {
		return
	}
	ch, members, err := h.channels.StartDM(c.Request.Context(), auth.MustFromContext(c), r.Username)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, gin.H{
		"channel": ch,
		"members": userViews(members),
	})
}

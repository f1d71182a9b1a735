package handler

import (
	"homechat/internal/auth"
	"homechat/internal/service"
	apperrors "homechat/pkg/errors"
	"homechat/pkg/response"

	"github.com/gin-gonic/gin"
)

type MessageHandler struct {
	messages *service.MessageService
}

func NewMessageHandler(messages *service.MessageService) *MessageHandler {
	return &MessageHandler{messages: messages}
}

// PostAPI 外部集成（Home Assistant 等）发消息
func (h *MessageHandler) PostAPI(c *gin.Context) {
	var r struct {
		Message string `json:"message"`
		RoomID  string `json:"room_id"`
		UserID  *uint  `json:"user_id"`
		Title   string `json:"title"`
		Sender  string `json:"sender"`
	}
	if !bindJSON(c, &r) {
		return
	}
	message, err := h.messages.PostAPIMessage(c.Request.Context(), auth.MustFromContext(c), service.APIMessageInput{
		Message: r.Message,
		RoomID:  r.RoomID,
		UserID:  r.UserID,
		Title:   r.Title,
		Sender:  r.Sender,
	})
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Created(c, gin.H{
		"status":     "success",
		"message_id": message.ID,
		"channel_id": message.ChannelID,
		"channel":    message.Channel.Name,
		"timestamp":  message.CreatedAt,
	})
}

// Recent 可访问频道中最新的消息
func (h *MessageHandler) Recent(c *gin.Context) {
	messages, err := h.messages.Recent(c.Request.Context(), auth.MustFromContext(c), queryInt(c, "limit", service.DefaultHistorySize))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, messageViews(messages))
}

// SendDirect 给指定用户发私聊消息
func (h *MessageHandler) SendDirect(c *gin.Context) {
	id, ok := paramID(c, "id", apperrors.ErrUserNotFound)
	if !ok {
		return
	}
	var r struct {
		Content string `json:"content"`
	}
	if !bindJSON(c, &r) {
		return
	}
	message, err := h.messages.SendDirect(c.Request.Context(), auth.MustFromContext(c), id, r.Content)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Created(c, service.NewMessageView(message))
}

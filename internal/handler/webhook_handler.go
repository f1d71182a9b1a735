package handler

import (
	"homechat/internal/service"
	apperrors "homechat/pkg/errors"
	"homechat/pkg/response"
	"homechat/pkg/signature"

	"github.com/gin-gonic/gin"
)

type WebhookHandler struct {
	webhooks *service.WebhookService
}

func NewWebhookHandler(webhooks *service.WebhookService) *WebhookHandler {
	return &WebhookHandler{webhooks: webhooks}
}

func signatureHeader(c *gin.Context) string {
	for _, name := range signature.Headers {
		if v := c.GetHeader(name); v != "" {
			return v
		}
	}
	return ""
}

// Receive POST /api/v1/webhooks/:webhook_id
// 原始请求体只读取一次，先校验签名再解析
func (h *WebhookHandler) Receive(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		response.FromError(c, apperrors.Field("body", "Unable to read request body"))
		return
	}
	result, err := h.webhooks.Receive(c.Request.Context(), c.Param("webhook_id"), body, signatureHeader(c))
	if err != nil {
		response.FromError(c, err)
		return
	}
	data := gin.H{
		"status": "success",
		"bot":    result.Bot.Name,
		"action": result.Action,
	}
	if result.Message != nil {
		data["message_id"] = result.Message.ID
		data["channel_id"] = result.Message.ChannelID
	}
	response.Success(c, data)
}

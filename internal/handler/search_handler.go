package handler

import (
	"strings"
	"unicode/utf8"

	"homechat/internal/auth"
	"homechat/internal/service"
	"homechat/pkg/response"

	"github.com/gin-gonic/gin"
)

// 搜索参数
const (
	MinSearchLength = 2
	SearchLimit     = 10
)

type SearchHandler struct {
	users    *service.UserService
	channels *service.ChannelService
}

func NewSearchHandler(users *service.UserService, channels *service.ChannelService) *SearchHandler {
	return &SearchHandler{users: users, channels: channels}
}

// SearchResult 搜索结果；未搜索的类别为空数组
type SearchResult struct {
	Users    []*service.UserView      `json:"users"`
	Channels []service.ChannelSummary `json:"channels"`
}

// Search GET /api/v1/search?q=&type=users|channels|all
func (h *SearchHandler) Search(c *gin.Context) {
	result := SearchResult{
		Users:    []*service.UserView{},
		Channels: []service.ChannelSummary{},
	}
	query := strings.TrimSpace(c.Query("q"))
	if utf8.RuneCountInString(query) < MinSearchLength {
		response.Success(c, result)
		return
	}

	p := auth.MustFromContext(c)
	kind := c.DefaultQuery("type", "all")
	ctx := c.Request.Context()

	if kind == "all" || kind == "users" {
		users, err := h.users.Search(ctx, p.Actor().ID, query, SearchLimit)
		if err != nil {
			response.FromError(c, err)
			return
		}
		result.Users = userViews(users)
	}
	if kind == "all" || kind == "channels" {
		channels, err := h.channels.Search(ctx, p, query, SearchLimit)
		if err != nil {
			response.FromError(c, err)
			return
		}
		result.Channels = channels
	}
	response.Success(c, result)
}

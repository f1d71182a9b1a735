package handler

import (
	"homechat/internal/auth"
	"homechat/internal/service"
	"homechat/pkg/response"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	users *service.UserService
}

func NewAuthHandler(users *service.UserService) *AuthHandler {
	return &AuthHandler{users: users}
}

// SessionResponse 注册/登录返回
type SessionResponse struct {
	User        *service.UserView `json:"user"`
	AccessToken string            `json:"access_token"`
}

// Signup 用户注册
func (h *AuthHandler) Signup(c *gin.Context) {
	var r struct {
		Username             string `json:"username" binding:"required"`
		Password             string `json:"password" binding:"required"`
		PasswordConfirmation string `json:"password_confirmation"`
	}
	if !bindJSON(c, &r) {
		return
	}
	user, token, err := h.users.Signup(c.Request.Context(), service.SignupInput{
		Username:             r.Username,
		Password:             r.Password,
		PasswordConfirmation: r.PasswordConfirmation,
	})
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Created(c, &SessionResponse{User: service.NewUserView(user), AccessToken: token})
}

// Signin 用户登录
func (h *AuthHandler) Signin(c *gin.Context) {
	var r struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if !bindJSON(c, &r) {
		return
	}
	user, token, err := h.users.Signin(c.Request.Context(), r.Username, r.Password)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessWithMessage(c, "登录成功", &SessionResponse{User: service.NewUserView(user), AccessToken: token})
}

// Signout 退出登录并标记离线
func (h *AuthHandler) Signout(c *gin.Context) {
	p := auth.MustFromContext(c)
	if err := h.users.Signout(c.Request.Context(), p.Actor().ID); err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessWithMessage(c, "已退出登录", nil)
}

// Me 当前主体
func (h *AuthHandler) Me(c *gin.Context) {
	p := auth.MustFromContext(c)
	response.Success(c, service.NewUserView(p.Actor()))
}

// UpdatePushToken 更新推送设备令牌
func (h *AuthHandler) UpdatePushToken(c *gin.Context) {
	var r struct {
		Token string `json:"token"`
	}
	if !bindJSON(c, &r) {
		return
	}
	p := auth.MustFromContext(c)
	if err := h.users.UpdatePushToken(c.Request.Context(), p.Actor().ID, r.Token); err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessWithMessage(c, "推送令牌已更新", nil)
}

// Package auth 请求主体。每个请求在中间件中解析一次，之后只读
package auth

import (
	"homechat/internal/model"

	"github.com/gin-gonic/gin"
)

// Principal 请求主体：会话用户或API令牌
// 只有本包内的两个类型实现该接口
type Principal interface {
	// Actor 以之为作者/访问者的用户
	Actor() *model.User
	principal()
}

// SessionUser 通过会话令牌（JWT）登录的用户
type SessionUser struct {
	User *model.User
}

func (p SessionUser) Actor() *model.User { return p.User }
func (SessionUser) principal()           {}

// TokenUser 通过API令牌访问，以系统用户身份行动
type TokenUser struct {
	System *model.User
	Token  *model.ApiToken
}

func (p TokenUser) Actor() *model.User { return p.System }
func (TokenUser) principal()           {}

// IsAdmin 仅会话用户可以是管理员
func IsAdmin(p Principal) bool {
	s, ok := p.(SessionUser)
	return ok && s.User != nil && s.User.IsAdmin()
}

// ActorID 主体对应的用户ID
func ActorID(p Principal) uint {
	if p == nil || p.Actor() == nil {
		return 0
	}
	return p.Actor().ID
}

const contextKey = "principal"

// Set 保存到 gin.Context
func Set(c *gin.Context, p Principal) {
	c.Set(contextKey, p)
}

// FromContext 从 gin.Context 读取
func FromContext(c *gin.Context) (Principal, bool) {
	v, ok := c.Get(contextKey)
	if !ok {
		return nil, false
	}
	p, ok := v.(Principal)
	return p, ok
}

// MustFromContext 路由已经过认证中间件时使用
func MustFromContext(c *gin.Context) Principal {
	p, ok := FromContext(c)
	if !ok {
		panic("auth: principal missing from context")
	}
	return p
}

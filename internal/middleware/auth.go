package middleware

import (
	"strings"

	"homechat/internal/auth"
	"homechat/internal/repository"
	"homechat/internal/service"
	apperrors "homechat/pkg/errors"
	"homechat/pkg/jwt"
	"homechat/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Authenticator 解析请求主体：会话令牌（JWT）或API令牌
type Authenticator struct {
	jwtService *jwt.JWTService
	verifier   *service.Verifier
	users      *repository.UserRepository
	system     *service.SystemAccount
	log        *zap.Logger
}

func NewAuthenticator(jwtService *jwt.JWTService, verifier *service.Verifier, users *repository.UserRepository, system *service.SystemAccount, log *zap.Logger) *Authenticator {
	return &Authenticator{jwtService: jwtService, verifier: verifier, users: users, system: system, log: log}
}

// BearerToken 取 Authorization: Bearer <token>，其次 X-API-Key
func BearerToken(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return strings.TrimSpace(c.GetHeader("X-API-Key"))
}

// Authenticate 认证中间件，失败统一返回401，不区分缺失与无效
func (a *Authenticator) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := a.Resolve(c, BearerToken(c))
		if !ok {
			a.log.Warn("API认证失败",
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.String("ip", c.ClientIP()),
			)
			response.FromError(c, apperrors.ErrInvalidToken)
			return
		}
		auth.Set(c, principal)
		c.Next()
	}
}

// Resolve 形如JWT的令牌按会话校验，否则按API令牌校验
func (a *Authenticator) Resolve(c *gin.Context, token string) (auth.Principal, bool) {
	if token == "" {
		return nil, false
	}
	ctx := c.Request.Context()

	if jwt.LooksLikeJWT(token) {
		claims, err := a.jwtService.ValidateToken(token)
		if err != nil {
			return nil, false
		}
		userID, err := claims.UserID()
		if err != nil {
			return nil, false
		}
		user, err := a.users.GetByID(ctx, userID)
		if err != nil {
			return nil, false
		}
		return auth.SessionUser{User: user}, true
	}

	apiToken, ok := a.verifier.ValidateBearerToken(ctx, token)
	if !ok {
		return nil, false
	}
	system, err := a.system.Get(ctx)
	if err != nil {
		a.log.Error("获取系统用户失败", zap.Error(err))
		return nil, false
	}
	return auth.TokenUser{System: system, Token: apiToken}, true
}

// RequireAdmin 仅管理员会话可访问，需在 Authenticate 之后使用
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := auth.FromContext(c)
		if !ok || !auth.IsAdmin(p) {
			response.FromError(c, apperrors.ErrAdminRequired)
			return
		}
		c.Next()
	}
}

// RequireSession 仅会话用户可访问（API令牌没有个人身份）
func RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := auth.FromContext(c)
		if _, session := p.(auth.SessionUser); !ok || !session {
			response.FromError(c, apperrors.Forbidden("A user session is required"))
			return
		}
		c.Next()
	}
}

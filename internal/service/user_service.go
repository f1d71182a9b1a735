package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"homechat/internal/model"
	"homechat/internal/repository"
	apperrors "homechat/pkg/errors"
	"homechat/pkg/jwt"
	"homechat/pkg/password"

	"go.uber.org/zap"
)

// 用户名长度限制
const (
	MinUsername = 3
	MaxUsername = 50
)

type UserService struct {
	users      *repository.UserRepository
	channels   *ChannelService
	presence   *PresenceService
	settings   *SettingService
	jwtService *jwt.JWTService
	log        *zap.Logger
}

func NewUserService(
	users *repository.UserRepository,
	channels *ChannelService,
	presence *PresenceService,
	settings *SettingService,
	jwtService *jwt.JWTService,
	log *zap.Logger,
) *UserService {
	return &UserService{
		users:      users,
		channels:   channels,
		presence:   presence,
		settings:   settings,
		jwtService: jwtService,
		log:        log,
	}
}

// SignupInput 注册参数
type SignupInput struct {
	Username             string
	Password             string
	PasswordConfirmation string
}

func validateSignup(in SignupInput) error {
	fields := map[string]string{}
	if n := utf8.RuneCountInString(in.Username); n < MinUsername || n > MaxUsername {
		fields["username"] = fmt.Sprintf("Username must be between %d and %d characters", MinUsername, MaxUsername)
	}
	switch {
	case in.Password == "":
		fields["password"] = "Password can't be blank"
	case len(in.Password) > password.MaxBytes:
		fields["password"] = fmt.Sprintf("Password is too long (maximum is %d bytes)", password.MaxBytes)
	case in.PasswordConfirmation != "" && in.PasswordConfirmation != in.Password:
		fields["password_confirmation"] = "Password confirmation doesn't match Password"
	}
	if len(fields) > 0 {
		return apperrors.Validation("User is invalid", fields)
	}
	return nil
}

// Signup 注册；首个用户成为管理员，新用户加入 home 频道
func (s *UserService) Signup(ctx context.Context, in SignupInput) (*model.User, string, error) {
	allowed, err := s.settings.AllowSignups(ctx)
	if err != nil {
		return nil, "", err
	}
	if !allowed {
		return nil, "", apperrors.ErrSignupsDisabled
	}

	in.Username = strings.TrimSpace(in.Username)
	if err := validateSignup(in); err != nil {
		return nil, "", err
	}

	role := model.RoleUser
	if _, err := s.users.GetFirstAdmin(ctx); err != nil {
		if !repository.IsNotFound(err) {
			return nil, "", fmt.Errorf("find admin: %w", err)
		}
		role = model.RoleAdmin
	}

	// 密码哈希
	hash, err := password.Hash(in.Password)
	if err != nil {
		return nil, "", apperrors.Internal("hash password", err)
	}
	user := &model.User{
		Username:     in.Username,
		PasswordHash: hash,
		Role:         role,
		Status:       model.DefaultStatus,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if repository.IsDuplicate(err) {
			return nil, "", apperrors.ErrUsernameTaken
		}
		return nil, "", fmt.Errorf("create user: %w", err)
	}
	s.log.Info("用户注册", zap.Uint("user_id", user.ID), zap.String("username", user.Username), zap.String("role", user.Role))

	home, err := s.channels.FindOrCreateByName(ctx, HomeChannel, user.ID, "Default home channel for all users")
	if err != nil {
		return nil, "", err
	}
	if _, err := s.channels.AddMember(ctx, home, user.ID); err != nil {
		return nil, "", err
	}

	token, err := s.issue(user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// Signin 登录，失败时不区分用户名与密码
func (s *UserService) Signin(ctx context.Context, username, plainPassword string) (*model.User, string, error) {
	user, err := s.users.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, "", apperrors.ErrInvalidLogin
		}
		return nil, "", fmt.Errorf("get user: %w", err)
	}
	if !password.Verify(plainPassword, user.PasswordHash) {
		return nil, "", apperrors.ErrInvalidLogin
	}
	token, err := s.issue(user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

func (s *UserService) issue(user *model.User) (string, error) {
	token, err := s.jwtService.GenerateToken(user.ID, map[string]interface{}{"username": user.Username})
	if err != nil {
		return "", apperrors.Internal("issue session token", err)
	}
	return token, nil
}

// Signout 登出并标记离线
func (s *UserService) Signout(ctx context.Context, userID uint) error {
	return s.presence.MarkOffline(ctx, userID)
}

// Get 按ID获取用户
func (s *UserService) Get(ctx context.Context, id uint) (*model.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// UpdatePushToken 更新推送设备令牌
func (s *UserService) UpdatePushToken(ctx context.Context, userID uint, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return apperrors.Field("token", "Push token is required")
	}
	if err := s.users.UpdatePushToken(ctx, userID, token); err != nil {
		return fmt.Errorf("update push token: %w", err)
	}
	s.log.Info("更新推送令牌", zap.Uint("user_id", userID))
	return nil
}

func (s *UserService) List(ctx context.Context) ([]model.User, error) {
	return s.users.List(ctx)
}

// SetRole 修改角色
func (s *UserService) SetRole(ctx context.Context, id uint, role string) (*model.User, error) {
	if role != model.RoleUser && role != model.RoleAdmin {
		return nil, apperrors.Field("role", "Role is not included in the list")
	}
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	if err := s.users.UpdateRole(ctx, id, role); err != nil {
		return nil, fmt.Errorf("update role: %w", err)
	}
	s.log.Info("修改用户角色", zap.Uint("user_id", id), zap.String("role", role))
	return s.Get(ctx, id)
}

// Delete 删除用户及其消息、成员关系、创建的频道
func (s *UserService) Delete(ctx context.Context, id uint) error {
	user, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if user.Username == SystemUsername {
		return apperrors.Field("user", "The system user cannot be deleted")
	}
	if err := s.users.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	s.log.Info("删除用户", zap.Uint("user_id", id), zap.String("username", user.Username))
	return nil
}

// Search 按用户名搜索，排除自己
func (s *UserService) Search(ctx context.Context, excludeID uint, query string, limit int) ([]model.User, error) {
	return s.users.Search(ctx, query, excludeID, limit)
}

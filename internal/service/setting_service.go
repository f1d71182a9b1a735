package service

import (
	"context"
	"fmt"
	"strconv"

	"homechat/internal/model"
	"homechat/internal/repository"
	apperrors "homechat/pkg/errors"
)

// SettingService 运行时可修改的配置
type SettingService struct {
	settings *repository.SettingRepository
}

func NewSettingService(settings *repository.SettingRepository) *SettingService {
	return &SettingService{settings: settings}
}

// Bool 读取布尔配置，不存在或无法解析时返回 def
func (s *SettingService) Bool(ctx context.Context, key string, def bool) (bool, error) {
	value, ok, err := s.settings.Get(ctx, key)
	if err != nil {
		return def, fmt.Errorf("get setting %q: %w", key, err)
	}
	if !ok {
		return def, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return def, nil
	}
	return b, nil
}

// AllowSignups 是否开放注册，默认开放
func (s *SettingService) AllowSignups(ctx context.Context) (bool, error) {
	return s.Bool(ctx, model.SettingAllowSignups, true)
}

// Set 写入配置
func (s *SettingService) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return apperrors.Field("key", "Key can't be blank")
	}
	if key == model.SettingAllowSignups {
		if _, err := strconv.ParseBool(value); err != nil {
			return apperrors.Field("value", "Value must be true or false")
		}
	}
	if err := s.settings.Set(ctx, key, value); err != nil {
		return fmt.Errorf("set setting %q: %w", key, err)
	}
	return nil
}

// All 全部配置
func (s *SettingService) All(ctx context.Context) (map[string]string, error) {
	settings, err := s.settings.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	out := make(map[string]string, len(settings))
	for _, st := range settings {
		out[st.Key] = st.Value
	}
	return out, nil
}

package model

// All 返回所有需要迁移的模型
func All() []interface{} {
	return []interface{}{
		&User{},
		&Channel{},
		&ChannelMembership{},
		&Message{},
		&ApiToken{},
		&Bot{},
		&Setting{},
	}
}

// Package dbtest 为测试提供内存SQLite上的GORM实例
package dbtest

import (
	"testing"

	"homechat/internal/model"
	"homechat/pkg/db"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

// New 打开一个已迁移的内存数据库，测试结束时关闭
// 只保留一个连接，内存库在连接间不共享
func New(t testing.TB) *gorm.DB {
	t.Helper()

	orm, err := gorm.Open(sqlite.Open(":memory:"), db.GormConfig(false))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := orm.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	if err := orm.AutoMigrate(model.All()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	return orm
}

package repository

import (
	"gorm.io/gorm"
)

// BaseRepository 基础仓储接口
type BaseRepository interface {
	// GetDB 获取数据库实例
	GetDB() *gorm.DB
}

// BaseRepo 基础仓储实现
type BaseRepo struct {
	db *gorm.DB
}

// NewBaseRepo 创建基础仓储
func NewBaseRepo(db *gorm.DB) *BaseRepo {
	return &BaseRepo{db: db}
}

// GetDB 获取数据库实例
func (r *BaseRepo) GetDB() *gorm.DB {
	return r.db
}

// TopN 限制返回条数，非正数时使用上限
func TopN(limit, max int) func(db *gorm.DB) *gorm.DB {
	if limit <= 0 || limit > max {
		limit = max
	}
	return func(db *gorm.DB) *gorm.DB {
		return db.Limit(limit)
	}
}

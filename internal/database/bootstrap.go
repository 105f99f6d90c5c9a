package database

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/wfunc/highscore-api/internal/errors"
	"github.com/wfunc/highscore-api/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// 默认建表重试参数
const (
	DefaultBootstrapAttempts = 5
	DefaultBootstrapDelay    = 3 * time.Second
)

// HighScoreIndex 分数降序索引名
const HighScoreIndex = "idx_high_scores_score"

// BootstrapOptions 建表选项
type BootstrapOptions struct {
	Attempts int           // 最大尝试次数
	Delay    time.Duration // 两次尝试之间的固定间隔
	Logger   *zap.Logger
}

// postgresSchema PostgreSQL 表结构
var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS high_scores (
		id SERIAL PRIMARY KEY,
		name VARCHAR(100) NOT NULL,
		score INTEGER NOT NULL CHECK (score >= 0),
		created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS ` + HighScoreIndex + ` ON high_scores (score DESC)`,
}

// sqliteSchema SQLite 表结构，AUTOINCREMENT 保证ID不被复用
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS high_scores (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name VARCHAR(100) NOT NULL,
		score INTEGER NOT NULL CHECK (score >= 0),
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS ` + HighScoreIndex + ` ON high_scores (score DESC)`,
}

// Bootstrap 幂等地创建高分表和索引
//
// 每次尝试先探测连通性再执行建表语句；任何失败都会重试。重试耗尽后返回最后一次的错误，
// 错误码按失败类别区分（探测失败为连接错误，建表语句失败由 Classify 判定），
// 调用方必须在成功前拒绝对外服务。
func Bootstrap(ctx context.Context, db *gorm.DB, opts BootstrapOptions) error {
	attempts := opts.Attempts
	if attempts <= 0 {
		attempts = DefaultBootstrapAttempts
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = ensureSchema(ctx, db)
		if lastErr == nil {
			log.Info("数据库表结构初始化完成", zap.Int("attempt", attempt))
			return nil
		}

		log.Error("初始化数据库表结构失败",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", attempts),
			zap.Error(lastErr),
		)

		if attempt == attempts {
			break
		}

		log.Info("等待后重试", zap.Duration("delay", opts.Delay))
		timer := time.NewTimer(opts.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return apperrors.Wrap(ctx.Err(), apperrors.ErrCanceled, "建表重试被取消")
		case <-timer.C:
		}
	}

	err := Classify(lastErr)
	log.Error("已达到最大重试次数，数据库初始化失败",
		zap.Int("max_attempts", attempts),
		zap.Int("code", int(apperrors.GetCode(err))),
	)
	return apperrors.Wrapf(err, apperrors.ErrDatabaseQuery, "建表失败，已尝试%d次", attempts)
}

// ensureSchema 单次建表尝试
func ensureSchema(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrDatabaseConnect, "获取数据库实例失败")
	}

	// 探测不通即传输故障
	if err := sqlDB.PingContext(ctx); err != nil {
		return apperrors.Wrap(err, apperrors.ErrDatabaseConnect, "数据库连接测试失败")
	}

	for _, stmt := range schemaFor(db) {
		if err := db.WithContext(ctx).Exec(stmt).Error; err != nil {
			return apperrors.Wrap(Classify(err), apperrors.ErrDatabaseQuery, "执行建表语句失败")
		}
	}

	return nil
}

// schemaFor 按方言选择建表语句
func schemaFor(db *gorm.DB) []string {
	if db.Dialector.Name() == "sqlite" {
		return sqliteSchema
	}
	return postgresSchema
}

// DropTables 删除高分表，仅供测试清理使用
func DropTables(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).Exec("DROP TABLE IF EXISTS " + models.HighScoreTable).Error; err != nil {
		return fmt.Errorf("删除数据表失败: %w", err)
	}
	return nil
}

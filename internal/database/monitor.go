package database

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Monitor 定期探测连接池，故障只记录日志，不退出进程
//
// 阻塞直到 ctx 取消，通常以独立 goroutine 运行。
func Monitor(ctx context.Context, db *gorm.DB, interval time.Duration, log *zap.Logger) {
	if interval <= 0 {
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Error("获取数据库实例失败，连接池巡检未启动", zap.Error(err))
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	healthy := true
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, interval)
			err := sqlDB.PingContext(pingCtx)
			cancel()

			switch {
			case err != nil && ctx.Err() != nil:
				return
			case err != nil:
				stats := sqlDB.Stats()
				log.Warn("数据库连接异常，等待连接池恢复",
					zap.Error(err),
					zap.Int("open", stats.OpenConnections),
					zap.Int("in_use", stats.InUse),
					zap.Int("idle", stats.Idle),
				)
				healthy = false
			case !healthy:
				log.Info("数据库连接已恢复")
				healthy = true
			}
		}
	}
}

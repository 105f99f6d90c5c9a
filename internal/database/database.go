package database

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/wfunc/highscore-api/internal/config"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Open 创建数据库连接池
//
// 不在这里探测连通性，连通性由 Bootstrap 带重试地完成。
func Open(cfg *config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector

	// 根据配置选择数据库驱动
	switch cfg.Driver {
	case "postgres", "postgresql":
		dialector = postgres.Open(PostgresDSN(cfg))
	case "sqlite", "sqlite3":
		if err := ensureSQLiteDir(cfg.SQLitePath); err != nil {
			return nil, err
		}
		dialector = sqlite.Open(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("不支持的数据库驱动: %s", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 NewGormLogger(log, parseLogLevel(cfg.LogLevel)),
		SkipDefaultTransaction: true, // 单条语句无需事务
		DisableAutomaticPing:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取数据库实例失败: %w", err)
	}

	// 设置连接池参数，超出上限的请求在连接池内排队
	sqlDB.SetMaxOpenConns(cfg.MaxConns)
	sqlDB.SetMaxIdleConns(cfg.MaxConns)
	sqlDB.SetConnMaxIdleTime(cfg.IdleTimeout())

	fields := []zap.Field{
		zap.String("driver", cfg.Driver),
		zap.Int("max_conns", cfg.MaxConns),
		zap.Duration("idle_timeout", cfg.IdleTimeout()),
		zap.Duration("connect_timeout", cfg.ConnectTimeout()),
	}
	switch {
	case cfg.Driver == "sqlite" || cfg.Driver == "sqlite3":
		fields = append(fields, zap.String("path", cfg.SQLitePath))
	case cfg.UsesSocket():
		fields = append(fields, zap.String("transport", "unix"), zap.String("socket_dir", cfg.SocketDir()))
	default:
		fields = append(fields, zap.String("transport", "tcp"), zap.String("host", cfg.Host), zap.Int("port", cfg.Port))
	}
	log.Info("数据库连接池已创建", fields...)

	return db, nil
}

// PostgresDSN 构建 keyword/value 形式的连接串
//
// 配置了实例连接名时 host 为套接字目录，驱动会在其中查找 .s.PGSQL.<port>。
func PostgresDSN(cfg *config.DatabaseConfig) string {
	host := cfg.Host
	if cfg.UsesSocket() {
		host = cfg.SocketDir()
	}

	parts := []string{
		"host=" + quoteDSNValue(host),
		"port=" + strconv.Itoa(cfg.Port),
		"user=" + quoteDSNValue(cfg.User),
		"password=" + quoteDSNValue(cfg.Password),
		"dbname=" + quoteDSNValue(cfg.Name),
	}

	if cfg.SSLMode != "" {
		parts = append(parts, "sslmode="+quoteDSNValue(cfg.SSLMode))
	}

	// connect_timeout 单位为秒，向上取整
	if ms := cfg.ConnectTimeoutMs; ms > 0 {
		parts = append(parts, "connect_timeout="+strconv.Itoa((ms+999)/1000))
	}

	return strings.Join(parts, " ")
}

// quoteDSNValue 按 libpq 规则为值加引号
func quoteDSNValue(value string) string {
	if value != "" && !strings.ContainsAny(value, ` '\`) {
		return value
	}

	replacer := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + replacer.Replace(value) + "'"
}

// ensureSQLiteDir 确保 SQLite 文件所在目录存在
func ensureSQLiteDir(path string) error {
	if path == "" || path == ":memory:" || strings.HasPrefix(path, "file:") {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("创建数据目录失败: %w", err)
	}
	return nil
}

// parseLogLevel 解析GORM日志级别
func parseLogLevel(level string) gormlogger.LogLevel {
	switch level {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "info":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}

// Close 关闭数据库连接
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}

	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

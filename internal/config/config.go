package config

import (
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	apperrors "github.com/wfunc/highscore-api/internal/errors"
)

// Config 全局配置结构体
//
// 所有配置项均为扁平的环境变量风格键（如 DB_USER），子结构体通过 squash 展开。
type Config struct {
	Server    ServerConfig    `mapstructure:",squash"`
	Database  DatabaseConfig  `mapstructure:",squash"`
	RateLimit RateLimitConfig `mapstructure:",squash"`
	Log       LogConfig       `mapstructure:",squash"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host              string `mapstructure:"host"`
	Port              int    `mapstructure:"port"`
	Mode              string `mapstructure:"gin_mode"`
	ShutdownTimeoutMs int    `mapstructure:"shutdown_timeout_ms"`
	CORSAllowOrigins  string `mapstructure:"cors_allow_origins"`
	TrustedProxies    string `mapstructure:"trusted_proxies"` // 逗号分隔的IP或CIDR，为空时不信任任何代理
}

// TrustedProxyList 可信代理列表，未配置时返回nil
func (c ServerConfig) TrustedProxyList() []string {
	var proxies []string
	for _, item := range strings.Split(c.TrustedProxies, ",") {
		if item = strings.TrimSpace(item); item != "" {
			proxies = append(proxies, item)
		}
	}
	return proxies
}

// ShutdownTimeout 优雅关闭超时
func (c ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutMs) * time.Millisecond
}

// Addr 监听地址
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver                 string `mapstructure:"db_driver"`
	User                   string `mapstructure:"db_user"`
	Password               string `mapstructure:"db_password"`
	Name                   string `mapstructure:"db_name"`
	InstanceConnectionName string `mapstructure:"instance_connection_name"`
	SocketPath             string `mapstructure:"db_socket_path"`
	Host                   string `mapstructure:"db_host"`
	Port                   int    `mapstructure:"db_port"`
	SSLMode                string `mapstructure:"db_sslmode"`
	SQLitePath             string `mapstructure:"db_sqlite_path"`
	MaxConns               int    `mapstructure:"db_max_conns"`
	IdleTimeoutMs          int    `mapstructure:"db_idle_timeout_ms"`
	ConnectTimeoutMs       int    `mapstructure:"db_connect_timeout_ms"`
	LogLevel               string `mapstructure:"db_log_level"`
	HealthCheckIntervalMs  int    `mapstructure:"db_health_check_interval_ms"`
	BootstrapAttempts      int    `mapstructure:"bootstrap_attempts"`
	BootstrapDelayMs       int    `mapstructure:"bootstrap_delay_ms"`
}

// UsesSocket 是否通过Cloud SQL代理的Unix套接字连接
func (c DatabaseConfig) UsesSocket() bool {
	return c.InstanceConnectionName != ""
}

// SocketDir 实例套接字目录 <socket_root>/<instance_connection_name>
func (c DatabaseConfig) SocketDir() string {
	return c.SocketPath + "/" + c.InstanceConnectionName
}

// IdleTimeout 空闲连接超时
func (c DatabaseConfig) IdleTimeout() time.Duration {
	return time.Duration(c.IdleTimeoutMs) * time.Millisecond
}

// ConnectTimeout 建立连接超时
func (c DatabaseConfig) ConnectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeoutMs) * time.Millisecond
}

// HealthCheckInterval 连接池巡检间隔
func (c DatabaseConfig) HealthCheckInterval() time.Duration {
	return time.Duration(c.HealthCheckIntervalMs) * time.Millisecond
}

// BootstrapDelay 建表重试间隔
func (c DatabaseConfig) BootstrapDelay() time.Duration {
	return time.Duration(c.BootstrapDelayMs) * time.Millisecond
}

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	WindowMs    int `mapstructure:"rate_limit_window_ms"`
	MaxRequests int `mapstructure:"rate_limit_max_requests"`
}

// Window 限流窗口长度
func (c RateLimitConfig) Window() time.Duration {
	return time.Duration(c.WindowMs) * time.Millisecond
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string        `mapstructure:"log_level"`
	Format string        `mapstructure:"log_format"`
	Output string        `mapstructure:"log_output"`
	File   LogFileConfig `mapstructure:",squash"`
}

// LogFileConfig 日志文件配置
type LogFileConfig struct {
	Path       string `mapstructure:"log_file_path"`
	Filename   string `mapstructure:"log_file_name"`
	MaxSize    int    `mapstructure:"log_file_max_size"`
	MaxAge     int    `mapstructure:"log_file_max_age"`
	MaxBackups int    `mapstructure:"log_file_max_backups"`
	Compress   bool   `mapstructure:"log_file_compress"`
}

var (
	cfg     *Config
	mu      sync.RWMutex
	v       *viper.Viper
	envFile string
)

// Init 初始化配置
//
// 环境变量优先；工作目录下存在 .env（或 ENV_FILE 指定的文件）时预先加载。
func Init() error {
	mu.Lock()
	defer mu.Unlock()

	loaded, nv, file, err := load()
	if err != nil {
		return err
	}

	cfg = loaded
	v = nv
	envFile = file
	return nil
}

// Load 读取一份独立的配置，不影响全局实例（用于诊断工具和测试）
func Load() (*Config, error) {
	loaded, _, _, err := load()
	return loaded, err
}

func load() (*Config, *viper.Viper, string, error) {
	nv := viper.New()
	setDefaults(nv)
	nv.AutomaticEnv()

	file := os.Getenv("ENV_FILE")
	if file == "" {
		file = ".env"
	}

	// .env 文件是可选的
	if _, statErr := os.Stat(file); statErr == nil {
		nv.SetConfigFile(file)
		nv.SetConfigType("env")
		if err := nv.ReadInConfig(); err != nil {
			return nil, nil, "", apperrors.Wrapf(err, apperrors.ErrConfigLoad, "读取配置文件失败: %s", file)
		}
	} else {
		file = ""
	}

	c := &Config{}
	if err := nv.Unmarshal(c); err != nil {
		return nil, nil, "", apperrors.Wrap(err, apperrors.ErrConfigLoad, "解析配置失败")
	}

	if err := c.Validate(); err != nil {
		return nil, nil, "", apperrors.Wrap(err, apperrors.ErrConfigLoad)
	}

	return c, nv, file, nil
}

// setDefaults 设置默认配置值
//
// 每个键都必须有默认值，否则 AutomaticEnv 的值不会参与 Unmarshal。
func setDefaults(v *viper.Viper) {
	// 服务器默认配置
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", 3000)
	v.SetDefault("gin_mode", "release")
	v.SetDefault("shutdown_timeout_ms", 10000)
	v.SetDefault("cors_allow_origins", "*")
	v.SetDefault("trusted_proxies", "")

	// 数据库默认配置
	v.SetDefault("db_driver", "postgres")
	v.SetDefault("db_user", "")
	v.SetDefault("db_password", "")
	v.SetDefault("db_name", "")
	v.SetDefault("instance_connection_name", "")
	v.SetDefault("db_socket_path", "/cloudsql")
	v.SetDefault("db_host", "localhost")
	v.SetDefault("db_port", 5432)
	v.SetDefault("db_sslmode", "disable")
	v.SetDefault("db_sqlite_path", "./data/highscores.db")
	v.SetDefault("db_max_conns", 20)
	v.SetDefault("db_idle_timeout_ms", 30000)
	v.SetDefault("db_connect_timeout_ms", 2000)
	v.SetDefault("db_log_level", "warn")
	v.SetDefault("db_health_check_interval_ms", 30000)
	v.SetDefault("bootstrap_attempts", 5)
	v.SetDefault("bootstrap_delay_ms", 3000)

	// 限流默认配置
	v.SetDefault("rate_limit_window_ms", 60000)
	v.SetDefault("rate_limit_max_requests", 60)

	// 日志默认配置
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("log_output", "stdout")
	v.SetDefault("log_file_path", "./logs")
	v.SetDefault("log_file_name", "highscores.log")
	v.SetDefault("log_file_max_size", 100)
	v.SetDefault("log_file_max_age", 30)
	v.SetDefault("log_file_max_backups", 7)
	v.SetDefault("log_file_compress", true)
}

// Validate 校验配置
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("无效的监听端口: %d", c.Server.Port)
	}
	for _, proxy := range c.Server.TrustedProxyList() {
		if net.ParseIP(proxy) != nil {
			continue
		}
		if _, _, err := net.ParseCIDR(proxy); err != nil {
			return fmt.Errorf("无效的可信代理: %s", proxy)
		}
	}

	switch c.Database.Driver {
	case "postgres", "postgresql", "sqlite", "sqlite3":
	default:
		return fmt.Errorf("不支持的数据库驱动: %s", c.Database.Driver)
	}

	if c.Database.MaxConns <= 0 {
		return fmt.Errorf("无效的连接池大小: %d", c.Database.MaxConns)
	}
	if c.Database.BootstrapAttempts <= 0 {
		return fmt.Errorf("无效的建表重试次数: %d", c.Database.BootstrapAttempts)
	}
	if c.RateLimit.WindowMs <= 0 {
		return fmt.Errorf("无效的限流窗口: %dms", c.RateLimit.WindowMs)
	}
	if c.RateLimit.MaxRequests <= 0 {
		return fmt.Errorf("无效的限流阈值: %d", c.RateLimit.MaxRequests)
	}

	return nil
}

// Get 获取配置实例
func Get() *Config {
	mu.RLock()
	defer mu.RUnlock()
	return cfg
}

// EnvFile 返回已加载的 .env 文件路径，未加载时为空
func EnvFile() string {
	mu.RLock()
	defer mu.RUnlock()
	return envFile
}

// Watch 监听 .env 文件变化
//
// 没有加载 .env 文件时不做任何事；解析或校验失败的变更会被丢弃。
func Watch(callback func(*Config)) {
	mu.RLock()
	watched, file := v, envFile
	mu.RUnlock()

	if watched == nil || file == "" {
		return
	}

	watched.OnConfigChange(func(e fsnotify.Event) {
		newCfg := &Config{}
		if err := watched.Unmarshal(newCfg); err != nil {
			fmt.Printf("配置重载失败: %v\n", err)
			return
		}
		if err := newCfg.Validate(); err != nil {
			fmt.Printf("配置重载失败: %v\n", err)
			return
		}

		mu.Lock()
		cfg = newCfg
		mu.Unlock()

		if callback != nil {
			callback(newCfg)
		}
	})
	watched.WatchConfig()
}

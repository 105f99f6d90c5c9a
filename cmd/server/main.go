package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/highscore-api/internal/api"
	"github.com/wfunc/highscore-api/internal/config"
	"github.com/wfunc/highscore-api/internal/database"
	apperrors "github.com/wfunc/highscore-api/internal/errors"
	"github.com/wfunc/highscore-api/internal/logger"
	"github.com/wfunc/highscore-api/internal/middleware"
	"github.com/wfunc/highscore-api/internal/service"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// 版本信息
var (
	Version   = api.ServiceVersion
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// Server 服务器实例
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	db         *gorm.DB
	limiter    *middleware.RateLimiter
	httpServer *http.Server

	// 关闭控制
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

func main() {
	// 加载配置
	if err := config.Init(); err != nil {
		fmt.Printf("加载配置失败: %v\n", err)
		os.Exit(1)
	}

	cfg := config.Get()

	// 初始化日志系统
	if err := logger.Init(&cfg.Log); err != nil {
		fmt.Printf("初始化日志失败: %v\n", err)
		os.Exit(1)
	}

	gin.SetMode(cfg.Server.Mode)

	// 打印启动信息
	printStartInfo(cfg)

	// 创建服务器实例
	server := NewServer(cfg)

	// 建表完成之前不监听端口
	if err := server.Start(); err != nil {
		logger.Fatal("服务器启动失败", zap.Error(err))
	}

	// 等待退出信号
	server.WaitForShutdown()

	// 优雅关闭
	if err := server.Shutdown(); err != nil {
		logger.Error("服务器关闭失败", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("服务器已安全关闭")
}

// NewServer 创建服务器实例
func NewServer(cfg *config.Config) *Server {
	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		cfg:    cfg,
		logger: logger.GetLogger(),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start 启动服务器
func (s *Server) Start() error {
	s.logger.Info("正在启动高分榜服务...",
		zap.String("version", Version),
		zap.String("mode", s.cfg.Server.Mode),
	)

	// 初始化数据库
	if err := s.initDatabase(); err != nil {
		return err
	}

	// 启动各个服务
	if err := s.startServices(); err != nil {
		return apperrors.Wrap(err, apperrors.ErrUnknown, "启动服务失败")
	}

	// 监听配置变化
	config.Watch(func(newCfg *config.Config) {
		s.logger.Info("配置已更新，正在重新加载...")
		s.reloadConfig(newCfg)
	})

	s.logger.Info("服务器启动成功", zap.String("http", s.cfg.Server.Addr()))
	return nil
}

// initDatabase 建立连接池并同步完成建表
func (s *Server) initDatabase() error {
	s.logger.Info("初始化数据库...")

	db, err := database.Open(&s.cfg.Database, s.logger.Named("database"))
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrDatabaseConnect, "初始化数据库连接失败")
	}
	s.db = db

	err = database.Bootstrap(s.ctx, db, database.BootstrapOptions{
		Attempts: s.cfg.Database.BootstrapAttempts,
		Delay:    s.cfg.Database.BootstrapDelay(),
		Logger:   s.logger.Named("bootstrap"),
	})
	if err != nil {
		return err
	}

	s.logger.Info("数据库初始化完成")
	return nil
}

// startServices 启动服务
func (s *Server) startServices() error {
	s.logger.Info("启动服务...")

	// 连接池巡检，空闲连接故障不退出进程
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		database.Monitor(s.ctx, s.db, s.cfg.Database.HealthCheckInterval(), s.logger.Named("database"))
	}()

	// 限流器及其过期清理
	s.limiter = middleware.NewRateLimiter(s.cfg.RateLimit.Window(), s.cfg.RateLimit.MaxRequests)
	s.limiter.StartJanitor(s.ctx)

	services := service.NewServices(s.db, s.logger)
	router := api.NewRouter(&s.cfg.Server, services, s.limiter, s.logger)

	s.httpServer = &http.Server{
		Addr:              s.cfg.Server.Addr(),
		Handler:           router.GetEngine(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Info("HTTP服务监听中", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP服务异常退出", zap.Error(err))
		}
	}()

	s.logger.Info("所有服务启动完成")
	return nil
}

// WaitForShutdown 等待关闭信号
func (s *Server) WaitForShutdown() {
	// 创建信号通道
	sigCh := make(chan os.Signal, 1)

	// 监听系统信号
	signal.Notify(sigCh,
		syscall.SIGINT,  // Ctrl+C
		syscall.SIGTERM, // kill命令
		syscall.SIGQUIT, // Ctrl+\
	)

	// 等待信号
	sig := <-sigCh
	s.logger.Info("收到退出信号", zap.String("signal", sig.String()))
}

// Shutdown 优雅关闭服务器
func (s *Server) Shutdown() error {
	s.logger.Info("正在优雅关闭服务器...")

	// 创建超时上下文
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout())
	defer cancel()

	// 停止接收新请求，等待进行中的请求完成
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("HTTP服务关闭超时", zap.Error(err))
		}
	}

	// 取消主上下文，触发所有goroutine退出
	s.cancel()

	// 等待所有服务关闭
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	// 等待关闭完成或超时
	select {
	case <-done:
		s.logger.Info("所有服务已正常关闭")
	case <-shutdownCtx.Done():
		s.logger.Warn("关闭超时，强制退出")
		return apperrors.New(apperrors.ErrTimeout, "关闭超时")
	}

	// 关闭数据库连接
	if err := database.Close(s.db); err != nil {
		s.logger.Error("关闭数据库失败", zap.Error(err))
	}

	// 同步日志
	if err := logger.Sync(); err != nil {
		fmt.Printf("同步日志失败: %v\n", err)
	}

	return nil
}

// reloadConfig 重新加载配置
//
// 只有限流参数和日志级别支持热更新，其余配置需要重启。
func (s *Server) reloadConfig(newCfg *config.Config) {
	s.limiter.Update(newCfg.RateLimit.Window(), newCfg.RateLimit.MaxRequests)
	logger.SetLevel(newCfg.Log.Level)

	s.logger.Info("配置重新加载完成",
		zap.Duration("rate_limit_window", newCfg.RateLimit.Window()),
		zap.Int("rate_limit_max_requests", newCfg.RateLimit.MaxRequests),
		zap.String("log_level", newCfg.Log.Level),
	)
}

// printStartInfo 打印启动信息
func printStartInfo(cfg *config.Config) {
	banner := `
┌─────────────────────────────────────────────────┐
│                                                 │
│   Whack-a-Mole High Scores API                  │
│                                                 │
└─────────────────────────────────────────────────┘`
	fmt.Println(banner)
	fmt.Printf("版本: %s | 构建: %s | 提交: %s | Go: %s\n", Version, BuildTime, GitCommit, runtime.Version())
	fmt.Printf("监听: http://%s | 模式: %s | PID: %d\n", cfg.Server.Addr(), cfg.Server.Mode, os.Getpid())
	if file := config.EnvFile(); file != "" {
		fmt.Printf("配置文件: %s\n", file)
	}
	fmt.Println("接口:")
	fmt.Println("  GET  /api/highscores")
	fmt.Println("  POST /api/highscores")
	fmt.Println("  GET  /api/highscores/:id")
	fmt.Println("───────────────────────────────────────────────────")
}

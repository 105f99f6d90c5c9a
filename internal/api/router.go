package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/highscore-api/internal/config"
	apperrors "github.com/wfunc/highscore-api/internal/errors"
	"github.com/wfunc/highscore-api/internal/middleware"
	"github.com/wfunc/highscore-api/internal/service"
	"go.uber.org/zap"
)

// 服务元信息
const (
	ServiceName    = "Whack-a-Mole High Scores API"
	ServiceVersion = "1.0.0"
)

// Router API路由器
type Router struct {
	engine           *gin.Engine
	services         *service.Services
	limiter          *middleware.RateLimiter
	highScoreHandler *HighScoreHandler
	log              *zap.Logger
}

// NewRouter 创建路由器
//
// 限流器由调用方创建并注入，生命周期与服务进程一致。
func NewRouter(cfg *config.ServerConfig, services *service.Services, limiter *middleware.RateLimiter, log *zap.Logger) *Router {
	// 创建Gin引擎
	engine := gin.New()

	// 限流按对端地址计数；只有可信代理转发的 X-Forwarded-For 才会被采用
	if err := engine.SetTrustedProxies(cfg.TrustedProxyList()); err != nil {
		log.Error("可信代理配置无效，不信任任何代理", zap.Error(err))
		_ = engine.SetTrustedProxies(nil)
	}

	// 全局中间件
	engine.Use(middleware.RequestID())
	engine.Use(middleware.Logger(log.Named("access")))
	engine.Use(middleware.Recovery(log))
	engine.Use(middleware.CORS(cfg.CORSAllowOrigins))
	engine.Use(middleware.ErrorHandler(log))

	router := &Router{
		engine:           engine,
		services:         services,
		limiter:          limiter,
		highScoreHandler: NewHighScoreHandler(services.HighScore),
		log:              log,
	}

	// 设置路由
	router.setupRoutes()

	return router
}

// setupRoutes 设置路由
func (r *Router) setupRoutes() {
	r.engine.GET("/", r.serviceInfo)
	r.engine.GET("/health", r.healthCheck)

	// 高分榜路由，全部经过限流
	api := r.engine.Group("/api")
	api.Use(r.limiter.Handler())
	{
		api.POST("/highscores", middleware.ValidateHighScore(), r.highScoreHandler.Create)
		api.GET("/highscores", r.highScoreHandler.List)
		api.GET("/highscores/:id", r.highScoreHandler.Get)
	}

	// 文档
	registerOpenAPIRoutes(r.engine)
	registerSwaggerRoutes(r.engine)

	// 404处理
	r.engine.NoRoute(func(c *gin.Context) {
		_ = c.Error(apperrors.New(apperrors.ErrNotFound).
			WithMessage(fmt.Sprintf("Route %s %s not found", c.Request.Method, c.Request.URL.Path)))
	})
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// ServiceInfo 服务信息响应
type ServiceInfo struct {
	Message   string            `json:"message"`
	Version   string            `json:"version"`
	Endpoints map[string]string `json:"endpoints"`
}

// healthCheck 健康检查
// @Summary 健康检查
// @Tags System
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /health [get]
func (r *Router) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
	})
}

// serviceInfo 服务信息
// @Summary 服务信息
// @Tags System
// @Produce json
// @Success 200 {object} ServiceInfo
// @Router / [get]
func (r *Router) serviceInfo(c *gin.Context) {
	c.JSON(http.StatusOK, ServiceInfo{
		Message: ServiceName,
		Version: ServiceVersion,
		Endpoints: map[string]string{
			"highScores": "/api/highscores",
		},
	})
}

// GetEngine 获取Gin引擎
func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}

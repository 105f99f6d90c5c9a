package service

import (
	"github.com/wfunc/highscore-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Services 服务集合
type Services struct {
	HighScore HighScoreService
}

// NewServices 创建服务集合
func NewServices(db *gorm.DB, log *zap.Logger) *Services {
	// 初始化仓储
	highScoreRepo := repository.NewHighScoreRepository(db)

	return &Services{
		HighScore: NewHighScoreService(highScoreRepo, log),
	}
}

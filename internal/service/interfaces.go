package service

import (
	"context"

	"github.com/wfunc/highscore-api/internal/models"
)

// HighScoreService 高分榜服务接口
type HighScoreService interface {
	// Create 写入一条记录，返回带有 id 和 created_at 的完整记录
	Create(ctx context.Context, input *models.HighScoreInput) (*models.HighScore, error)
	// GetTopScores 按分数降序返回前 limit 条，limit 非正数时取默认值
	GetTopScores(ctx context.Context, limit int) ([]*models.HighScore, error)
	// GetByID 记录不存在时返回 nil, nil
	GetByID(ctx context.Context, id uint) (*models.HighScore, error)
}

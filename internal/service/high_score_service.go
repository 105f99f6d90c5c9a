package service

import (
	"context"
	"time"

	"github.com/wfunc/highscore-api/internal/database"
	"github.com/wfunc/highscore-api/internal/logger"
	"github.com/wfunc/highscore-api/internal/models"
	"github.com/wfunc/highscore-api/internal/repository"
	"go.uber.org/zap"
)

// DefaultTopLimit 排行榜默认条数
const DefaultTopLimit = repository.MaxTopScores

// highScoreService 高分榜服务实现
type highScoreService struct {
	repo repository.HighScoreRepository
	log  *zap.Logger
}

// NewHighScoreService 创建高分榜服务
func NewHighScoreService(repo repository.HighScoreRepository, log *zap.Logger) HighScoreService {
	if log == nil {
		log = zap.NewNop()
	}
	return &highScoreService{
		repo: repo,
		log:  log.Named("highscore"),
	}
}

// Create 创建高分记录
func (s *highScoreService) Create(ctx context.Context, input *models.HighScoreInput) (*models.HighScore, error) {
	record := &models.HighScore{
		Name:  input.Name,
		Score: input.Score,
	}

	start := time.Now()
	err := s.repo.Create(ctx, record)
	logger.LogDatabaseOperation(s.log, "insert", models.HighScoreTable, time.Since(start), err)
	if err != nil {
		return nil, database.Classify(err)
	}

	s.log.Info("High score created",
		zap.Uint("id", record.ID),
		zap.String("name", record.Name),
		zap.Int("score", record.Score),
	)
	return record, nil
}

// GetTopScores 获取排行榜
func (s *highScoreService) GetTopScores(ctx context.Context, limit int) ([]*models.HighScore, error) {
	if limit <= 0 {
		limit = DefaultTopLimit
	}

	start := time.Now()
	scores, err := s.repo.FindTop(ctx, limit)
	logger.LogDatabaseOperation(s.log, "select_top", models.HighScoreTable, time.Since(start), err)
	if err != nil {
		return nil, database.Classify(err)
	}
	return scores, nil
}

// GetByID 根据ID获取高分记录
func (s *highScoreService) GetByID(ctx context.Context, id uint) (*models.HighScore, error) {
	start := time.Now()
	score, err := s.repo.FindByID(ctx, id)
	logger.LogDatabaseOperation(s.log, "select_by_id", models.HighScoreTable, time.Since(start), err)
	if err != nil {
		return nil, database.Classify(err)
	}
	return score, nil
}

package repository

import (
	"context"
	"errors"

	"github.com/wfunc/highscore-api/internal/models"
	"gorm.io/gorm"
)

// MaxTopScores 排行榜最大返回条数
const MaxTopScores = 100

// HighScoreRepository 高分记录仓储接口
type HighScoreRepository interface {
	BaseRepository
	Create(ctx context.Context, score *models.HighScore) error
	FindTop(ctx context.Context, limit int) ([]*models.HighScore, error)
	FindByID(ctx context.Context, id uint) (*models.HighScore, error)
}

// highScoreRepo 高分记录仓储实现
type highScoreRepo struct {
	*BaseRepo
}

// NewHighScoreRepository 创建高分记录仓储
func NewHighScoreRepository(db *gorm.DB) HighScoreRepository {
	return &highScoreRepo{
		BaseRepo: NewBaseRepo(db),
	}
}

// Create 插入一条记录，ID 和 created_at 由持久层填充
func (r *highScoreRepo) Create(ctx context.Context, score *models.HighScore) error {
	return r.db.WithContext(ctx).Create(score).Error
}

// FindTop 按分数降序查询，分数相同的记录顺序不做保证
func (r *highScoreRepo) FindTop(ctx context.Context, limit int) ([]*models.HighScore, error) {
	scores := make([]*models.HighScore, 0)
	err := r.db.WithContext(ctx).
		Order("score desc").
		Scopes(TopN(limit, MaxTopScores)).
		Find(&scores).Error
	if err != nil {
		return nil, err
	}
	return scores, nil
}

// FindByID 根据ID查找，记录不存在时返回 nil, nil
func (r *highScoreRepo) FindByID(ctx context.Context, id uint) (*models.HighScore, error) {
	var score models.HighScore
	err := r.db.WithContext(ctx).First(&score, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &score, nil
}

package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	apperrors "github.com/wfunc/highscore-api/internal/errors"
	"github.com/wfunc/highscore-api/internal/models"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
)

// BootstrapTestSuite 建表测试套件
type BootstrapTestSuite struct {
	suite.Suite
	ctx context.Context
	db  *gorm.DB
}

func (suite *BootstrapTestSuite) SetupTest() {
	suite.ctx = context.Background()
	suite.db = SetupTestDB(suite.T())
}

func (suite *BootstrapTestSuite) countIndexes() int64 {
	var count int64
	err := suite.db.Raw(
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'index' AND name = ?", HighScoreIndex,
	).Scan(&count).Error
	suite.Require().NoError(err)
	return count
}

// 重复执行是幂等的，不会产生重复索引
func (suite *BootstrapTestSuite) TestIdempotent() {
	suite.Equal(int64(1), suite.countIndexes())

	opts := BootstrapOptions{Attempts: 1, Logger: zap.NewNop()}
	suite.Require().NoError(Bootstrap(suite.ctx, suite.db, opts))
	suite.Require().NoError(Bootstrap(suite.ctx, suite.db, opts))

	suite.Equal(int64(1), suite.countIndexes())
	suite.True(suite.db.Migrator().HasTable(models.HighScoreTable))
}

// 数据在再次建表后保留
func (suite *BootstrapTestSuite) TestKeepsExistingRows() {
	suite.Require().NoError(suite.db.Create(&models.HighScore{Name: "Ann", Score: 42}).Error)
	suite.Require().NoError(Bootstrap(suite.ctx, suite.db, BootstrapOptions{Attempts: 1}))

	var count int64
	suite.Require().NoError(suite.db.Model(&models.HighScore{}).Count(&count).Error)
	suite.Equal(int64(1), count)
}

func (suite *BootstrapTestSuite) TestDropTables() {
	suite.Require().NoError(DropTables(suite.ctx, suite.db))
	suite.False(suite.db.Migrator().HasTable(models.HighScoreTable))

	// 删除后可以重新建表
	suite.Require().NoError(Bootstrap(suite.ctx, suite.db, BootstrapOptions{Attempts: 1}))
	suite.True(suite.db.Migrator().HasTable(models.HighScoreTable))
}

// 连接不可用时重试耗尽并返回连接错误
func (suite *BootstrapTestSuite) TestRetriesExhausted() {
	suite.Require().NoError(Close(suite.db))

	start := time.Now()
	err := Bootstrap(suite.ctx, suite.db, BootstrapOptions{Attempts: 3, Delay: 10 * time.Millisecond})
	suite.Require().Error(err)
	suite.True(apperrors.Is(err, apperrors.ErrDatabaseConnect))
	suite.GreaterOrEqual(time.Since(start), 20*time.Millisecond)
}

// 建表语句失败时保留真实类别，且同样会重试
func (suite *BootstrapTestSuite) TestStatementFailureKeepsKind() {
	suite.Require().NoError(DropTables(suite.ctx, suite.db))
	// 同名视图让建表语句跳过，索引语句失败
	suite.Require().NoError(suite.db.Exec("CREATE VIEW high_scores AS SELECT 1 AS id").Error)

	core, logs := observer.New(zap.ErrorLevel)
	err := Bootstrap(suite.ctx, suite.db, BootstrapOptions{
		Attempts: 2,
		Delay:    time.Millisecond,
		Logger:   zap.New(core),
	})
	suite.Require().Error(err)
	suite.True(apperrors.Is(err, apperrors.ErrDatabaseQuery))
	suite.False(apperrors.Is(err, apperrors.ErrDatabaseConnect))
	suite.Equal(2, logs.FilterMessage("初始化数据库表结构失败").Len())
}

// 等待重试期间取消
func (suite *BootstrapTestSuite) TestCanceledDuringDelay() {
	suite.Require().NoError(Close(suite.db))

	ctx, cancel := context.WithTimeout(suite.ctx, 20*time.Millisecond)
	defer cancel()

	err := Bootstrap(ctx, suite.db, BootstrapOptions{Attempts: 5, Delay: time.Minute})
	suite.Require().Error(err)
	suite.True(apperrors.Is(err, apperrors.ErrCanceled))
}

func TestBootstrapSuite(t *testing.T) {
	suite.Run(t, new(BootstrapTestSuite))
}

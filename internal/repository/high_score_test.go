package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/wfunc/highscore-api/internal/database"
	"github.com/wfunc/highscore-api/internal/models"
)

// HighScoreRepositoryTestSuite 高分仓储测试套件
type HighScoreRepositoryTestSuite struct {
	suite.Suite
	repo HighScoreRepository
	ctx  context.Context
}

func (suite *HighScoreRepositoryTestSuite) SetupTest() {
	suite.repo = NewHighScoreRepository(database.SetupTestDB(suite.T()))
	suite.ctx = context.Background()
}

func (suite *HighScoreRepositoryTestSuite) TestCreateAndFindByID() {
	before := time.Now().Add(-time.Second)
	record := &models.HighScore{Name: "Ann", Score: 42}
	suite.Require().NoError(suite.repo.Create(suite.ctx, record))
	suite.NotZero(record.ID)
	suite.True(record.CreatedAt.After(before))

	found, err := suite.repo.FindByID(suite.ctx, record.ID)
	suite.Require().NoError(err)
	suite.Require().NotNil(found)
	suite.Equal(record.ID, found.ID)
	suite.Equal("Ann", found.Name)
	suite.Equal(42, found.Score)
	suite.WithinDuration(record.CreatedAt, found.CreatedAt, time.Second)
}

func (suite *HighScoreRepositoryTestSuite) TestIDsAreMonotonic() {
	first := &models.HighScore{Name: "a", Score: 1}
	second := &models.HighScore{Name: "b", Score: 1}
	suite.Require().NoError(suite.repo.Create(suite.ctx, first))
	suite.Require().NoError(suite.repo.Create(suite.ctx, second))
	suite.Greater(second.ID, first.ID)
}

func (suite *HighScoreRepositoryTestSuite) TestFindByIDAbsent() {
	found, err := suite.repo.FindByID(suite.ctx, 999999)
	suite.NoError(err)
	suite.Nil(found)
}

func (suite *HighScoreRepositoryTestSuite) TestFindTopOrdering() {
	for i, score := range []int{5, 90, 0, 42, 42, 7} {
		suite.Require().NoError(suite.repo.Create(suite.ctx, &models.HighScore{
			Name:  string(rune('a' + i)),
			Score: score,
		}))
	}

	top, err := suite.repo.FindTop(suite.ctx, 3)
	suite.Require().NoError(err)
	suite.Require().Len(top, 3)
	suite.Equal([]int{90, 42, 42}, []int{top[0].Score, top[1].Score, top[2].Score})

	all, err := suite.repo.FindTop(suite.ctx, 50)
	suite.Require().NoError(err)
	suite.Len(all, 6)
	for i := 1; i < len(all); i++ {
		suite.GreaterOrEqual(all[i-1].Score, all[i].Score)
	}
}

func (suite *HighScoreRepositoryTestSuite) TestFindTopEmpty() {
	top, err := suite.repo.FindTop(suite.ctx, MaxTopScores)
	suite.NoError(err)
	suite.NotNil(top)
	suite.Empty(top)
}

func (suite *HighScoreRepositoryTestSuite) TestFindTopClampsLimit() {
	for i := 0; i < MaxTopScores+5; i++ {
		suite.Require().NoError(suite.repo.Create(suite.ctx, &models.HighScore{Name: "p", Score: i}))
	}

	top, err := suite.repo.FindTop(suite.ctx, 0)
	suite.Require().NoError(err)
	suite.Len(top, MaxTopScores)
	suite.Equal(MaxTopScores+4, top[0].Score)
}

func (suite *HighScoreRepositoryTestSuite) TestNegativeScoreRejectedByConstraint() {
	err := suite.repo.Create(suite.ctx, &models.HighScore{Name: "neg", Score: -1})
	suite.Error(err)

	top, err := suite.repo.FindTop(suite.ctx, MaxTopScores)
	suite.NoError(err)
	suite.Empty(top)
}

func TestHighScoreRepositorySuite(t *testing.T) {
	suite.Run(t, new(HighScoreRepositoryTestSuite))
}

package database

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	apperrors "github.com/wfunc/highscore-api/internal/errors"
	"github.com/wfunc/highscore-api/internal/models"
)

func TestClassify(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		want apperrors.ErrorCode
	}{
		{"连接异常", &pgconn.PgError{Code: "08006"}, apperrors.ErrDatabaseConnect},
		{"连接数过多", &pgconn.PgError{Code: "53300"}, apperrors.ErrDatabaseConnect},
		{"管理员关闭", &pgconn.PgError{Code: "57P01"}, apperrors.ErrDatabaseConnect},
		{"检查约束", &pgconn.PgError{Code: "23514"}, apperrors.ErrDataIntegrity},
		{"唯一约束", fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"}), apperrors.ErrDataIntegrity},
		{"语法错误", &pgconn.PgError{Code: "42601"}, apperrors.ErrDatabaseQuery},
		{"坏连接", driver.ErrBadConn, apperrors.ErrDatabaseConnect},
		{"超时", context.DeadlineExceeded, apperrors.ErrDatabaseConnect},
		{"取消", context.Canceled, apperrors.ErrCanceled},
		{"网络错误", &net.OpError{Op: "dial", Net: "unix", Err: errors.New("no such file or directory")}, apperrors.ErrDatabaseConnect},
		{"未知错误", errors.New("database is on fire"), apperrors.ErrDatabaseQuery},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := Classify(tc.err)
			assert.Equal(t, tc.want, apperrors.GetCode(err))
			assert.True(t, errors.Is(err, tc.err))
		})
	}
}

func TestClassifyKeepsAppError(t *testing.T) {
	original := apperrors.New(apperrors.ErrNotFound)
	assert.Same(t, original, Classify(original))
	assert.Nil(t, Classify(nil))
}

// 真实 SQLite 约束冲突
func TestClassifySQLiteConstraint(t *testing.T) {
	db := SetupTestDB(t)

	err := db.Create(&models.HighScore{Name: "neg", Score: -1}).Error
	assert.Error(t, err)
	assert.Equal(t, apperrors.ErrDataIntegrity, apperrors.GetCode(Classify(err)))
}

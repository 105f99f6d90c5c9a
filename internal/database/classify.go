package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	apperrors "github.com/wfunc/highscore-api/internal/errors"
)

// Classify 为数据库错误附加结构化的错误码
//
// 传输故障 → ErrDatabaseConnect，约束冲突 → ErrDataIntegrity，其余 → ErrDatabaseQuery。
// 只依据驱动返回的错误类型和 SQLSTATE 判断，不匹配错误消息。
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apperrors.As(err); ok {
		return err
	}
	return apperrors.Wrap(err, classifyCode(err))
}

func classifyCode(err error) apperrors.ErrorCode {
	if errors.Is(err, context.Canceled) {
		return apperrors.ErrCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) {
		return apperrors.ErrDatabaseConnect
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return apperrors.ErrDatabaseConnect
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return sqlStateCode(pgErr.Code)
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code {
		case sqlite3.ErrConstraint:
			return apperrors.ErrDataIntegrity
		case sqlite3.ErrCantOpen, sqlite3.ErrIoErr, sqlite3.ErrNotADB:
			return apperrors.ErrDatabaseConnect
		default:
			return apperrors.ErrDatabaseQuery
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) || pgconn.Timeout(err) {
		return apperrors.ErrDatabaseConnect
	}

	return apperrors.ErrDatabaseQuery
}

// sqlStateCode 按 SQLSTATE 类别映射错误码
func sqlStateCode(state string) apperrors.ErrorCode {
	if len(state) < 2 {
		return apperrors.ErrDatabaseQuery
	}

	switch state[:2] {
	case "08", "53", "57": // 连接异常、资源不足、运维干预
		return apperrors.ErrDatabaseConnect
	case "23": // 完整性约束冲突
		return apperrors.ErrDataIntegrity
	default:
		return apperrors.ErrDatabaseQuery
	}
}

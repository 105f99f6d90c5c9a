package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// 连接池不可用时只记录告警，持续巡检直到 ctx 取消
func TestMonitorSurvivesPingFailures(t *testing.T) {
	db := SetupTestDB(t)
	require.NoError(t, Close(db))

	core, logs := observer.New(zap.WarnLevel)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		Monitor(ctx, db, 5*time.Millisecond, zap.New(core))
		close(done)
	}()

	assert.Eventually(t, func() bool {
		return logs.FilterMessage("数据库连接异常，等待连接池恢复").Len() >= 3
	}, time.Second, 5*time.Millisecond)

	select {
	case <-done:
		t.Fatal("巡检在 ctx 取消前退出")
	default:
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("ctx 取消后巡检未退出")
	}
}

func TestMonitorHealthyPool(t *testing.T) {
	db := SetupTestDB(t)

	core, logs := observer.New(zap.InfoLevel)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	Monitor(ctx, db, 20*time.Millisecond, zap.New(core))
	assert.Zero(t, logs.Len())
}

func TestMonitorDisabled(t *testing.T) {
	db := SetupTestDB(t)

	// 间隔非正数时直接返回
	Monitor(context.Background(), db, 0, zap.NewNop())
}

package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/highscore-api/internal/config"
	"go.uber.org/zap"
)

func TestPostgresDSN(t *testing.T) {
	t.Run("TCP", func(t *testing.T) {
		cfg := &config.DatabaseConfig{
			Host:             "localhost",
			Port:             5432,
			User:             "scores",
			Password:         "p@ss word",
			Name:             "highscores",
			SSLMode:          "disable",
			ConnectTimeoutMs: 2000,
		}
		assert.Equal(t,
			"host=localhost port=5432 user=scores password='p@ss word' dbname=highscores sslmode=disable connect_timeout=2",
			PostgresDSN(cfg))
	})

	t.Run("Unix套接字", func(t *testing.T) {
		cfg := &config.DatabaseConfig{
			InstanceConnectionName: "proj:region:inst",
			SocketPath:             "/cloudsql",
			Host:                   "ignored",
			Port:                   5432,
			User:                   "u",
			Password:               "it's",
			Name:                   "db",
			ConnectTimeoutMs:       1500,
		}
		assert.Equal(t,
			`host=/cloudsql/proj:region:inst port=5432 user=u password='it\'s' dbname=db connect_timeout=2`,
			PostgresDSN(cfg))
	})

	t.Run("空值加引号", func(t *testing.T) {
		cfg := &config.DatabaseConfig{Host: "db", Port: 5433}
		assert.Equal(t, "host=db port=5433 user='' password='' dbname=''", PostgresDSN(cfg))
	})
}

func TestOpenSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "scores.db")
	cfg := &config.DatabaseConfig{
		Driver:        "sqlite",
		SQLitePath:    path,
		MaxConns:      3,
		IdleTimeoutMs: 30000,
		LogLevel:      "silent",
	}

	db, err := Open(cfg, zap.NewNop())
	require.NoError(t, err)
	defer Close(db)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 3, sqlDB.Stats().MaxOpenConnections)
	assert.NoError(t, sqlDB.Ping())
	assert.FileExists(t, path)
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(&config.DatabaseConfig{Driver: "oracle"}, zap.NewNop())
	assert.Error(t, err)
}

func TestCloseNil(t *testing.T) {
	assert.NoError(t, Close(nil))
}

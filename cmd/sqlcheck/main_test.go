package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/highscore-api/internal/config"
)

func newChecker(t *testing.T, root string) (*checker, *bytes.Buffer) {
	t.Helper()
	out := &bytes.Buffer{}
	return &checker{
		cfg: config.DatabaseConfig{
			InstanceConnectionName: "proj:region:inst",
			SocketPath:             root,
			User:                   "scores",
			Password:               "secret",
			Name:                   "highscores",
		},
		out: out,
	}, out
}

func TestMask(t *testing.T) {
	assert.Equal(t, "(not set)", mask("", false))
	assert.Equal(t, "********", mask("hunter2", true))
	assert.Equal(t, "short", mask("short", false))
	assert.Equal(t, "proj...inst", mask("proj:region:inst", false))
}

func TestMissingVars(t *testing.T) {
	c, _ := newChecker(t, t.TempDir())
	assert.Empty(t, c.missingVars())

	c.cfg.Password = ""
	c.cfg.InstanceConnectionName = ""
	assert.Equal(t, []string{"INSTANCE_CONNECTION_NAME", "DB_PASSWORD"}, c.missingVars())
}

func TestRunStopsAtMissingRoot(t *testing.T) {
	c, out := newChecker(t, filepath.Join(t.TempDir(), "absent"))

	assert.False(t, c.run(context.Background()))
	assert.Contains(t, out.String(), "套接字根目录不存在")
	assert.NotContains(t, out.String(), "【3. 实例目录检查】")
}

func TestRunStopsAtMissingInstanceDir(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "other"), 0755))
	c, out := newChecker(t, root)

	assert.False(t, c.run(context.Background()))
	assert.Contains(t, out.String(), "other")
	assert.Contains(t, out.String(), "套接字根目录中没有实例目录")
}

func TestSocketFileSteps(t *testing.T) {
	root := t.TempDir()
	c, out := newChecker(t, root)
	require.NoError(t, os.MkdirAll(c.cfg.SocketDir(), 0755))

	ctx := context.Background()
	assert.True(t, c.checkSocketRoot(ctx))
	assert.True(t, c.checkInstanceDir(ctx))
	assert.False(t, c.checkSocketFile(ctx))
	assert.Contains(t, out.String(), "(empty)")

	require.NoError(t, os.WriteFile(filepath.Join(c.cfg.SocketDir(), socketFile), nil, 0600))
	assert.True(t, c.checkSocketFile(ctx))
}

// sqlcheck 诊断通过 Cloud SQL 代理 Unix 套接字连接数据库的问题
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/wfunc/highscore-api/internal/config"
	"github.com/wfunc/highscore-api/internal/database"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// socketFile PostgreSQL 套接字文件名
const socketFile = ".s.PGSQL.5432"

// connectTimeout 试连超时
const connectTimeout = 10 * time.Second

// checker 诊断步骤的执行环境
type checker struct {
	cfg config.DatabaseConfig
	out io.Writer
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("❌ 加载配置失败: %v\n", err)
		os.Exit(1)
	}

	c := &checker{cfg: cfg.Database, out: os.Stdout}
	if !c.run(context.Background()) {
		c.printTroubleshooting()
		os.Exit(1)
	}
}

// run 依次执行所有检查，遇到第一个失败即停止
func (c *checker) run(ctx context.Context) bool {
	fmt.Fprintln(c.out, "========================================")
	fmt.Fprintln(c.out, "    Cloud SQL 套接字连接诊断工具")
	fmt.Fprintln(c.out, "========================================")

	if missing := c.missingVars(); len(missing) > 0 {
		fmt.Fprintf(c.out, "❌ 缺少必需的环境变量: %s\n", strings.Join(missing, ", "))
		fmt.Fprintln(c.out, "   示例: INSTANCE_CONNECTION_NAME=project:region:instance DB_USER=... DB_PASSWORD=... DB_NAME=...")
		return false
	}

	fmt.Fprintln(c.out, "\n【1. 环境信息】")
	c.printEnvironment()

	steps := []struct {
		title string
		fn    func(context.Context) bool
	}{
		{"【2. 套接字根目录检查】", c.checkSocketRoot},
		{"【3. 实例目录检查】", c.checkInstanceDir},
		{"【4. 套接字文件检查】", c.checkSocketFile},
		{"【5. 数据库连接测试】", c.checkConnection},
	}

	for _, step := range steps {
		fmt.Fprintln(c.out, "\n"+step.title)
		if !step.fn(ctx) {
			fmt.Fprintln(c.out, "\n⚠️  检查未通过，请先修复上述问题")
			return false
		}
	}

	fmt.Fprintln(c.out, "\n✓ 所有检查通过，Unix 套接字连接正常")
	return true
}

func (c *checker) missingVars() []string {
	var missing []string
	required := []struct{ key, value string }{
		{"INSTANCE_CONNECTION_NAME", c.cfg.InstanceConnectionName},
		{"DB_USER", c.cfg.User},
		{"DB_PASSWORD", c.cfg.Password},
		{"DB_NAME", c.cfg.Name},
	}
	for _, r := range required {
		if r.value == "" {
			missing = append(missing, r.key)
		}
	}
	return missing
}

func (c *checker) printEnvironment() {
	fmt.Fprintf(c.out, "- Go版本: %s (%s/%s)\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	fmt.Fprintf(c.out, "- 套接字根目录: %s\n", c.cfg.SocketPath)
	fmt.Fprintf(c.out, "- 期望的套接字文件: %s\n", c.socketFilePath())
	fmt.Fprintf(c.out, "- INSTANCE_CONNECTION_NAME: %s\n", mask(c.cfg.InstanceConnectionName, false))
	fmt.Fprintf(c.out, "- DB_USER: %s\n", mask(c.cfg.User, false))
	fmt.Fprintf(c.out, "- DB_PASSWORD: %s\n", mask(c.cfg.Password, true))
	fmt.Fprintf(c.out, "- DB_NAME: %s\n", mask(c.cfg.Name, false))
}

func (c *checker) checkSocketRoot(context.Context) bool {
	root := c.cfg.SocketPath
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		fmt.Fprintf(c.out, "❌ 套接字根目录不存在: %s\n", root)
		fmt.Fprintln(c.out, "   该目录通常在部署时挂载 Cloud SQL 实例后自动创建")
		return false
	}
	fmt.Fprintf(c.out, "✓ 套接字根目录存在: %s (权限 %o)\n", root, info.Mode().Perm())

	entries, err := os.ReadDir(root)
	if err != nil {
		fmt.Fprintf(c.out, "❌ 读取套接字根目录失败: %v\n", err)
		return false
	}
	fmt.Fprintf(c.out, "  - 内容: %s\n", listNames(entries))

	for _, entry := range entries {
		if entry.Name() == c.cfg.InstanceConnectionName {
			return true
		}
	}
	fmt.Fprintln(c.out, "❌ 套接字根目录中没有实例目录，实例可能未挂载到服务")
	return false
}

func (c *checker) checkInstanceDir(context.Context) bool {
	dir := c.cfg.SocketDir()
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		fmt.Fprintf(c.out, "❌ 实例目录不存在: %s\n", dir)
		return false
	}
	fmt.Fprintf(c.out, "✓ 实例目录存在: %s\n", dir)
	return true
}

func (c *checker) checkSocketFile(context.Context) bool {
	entries, err := os.ReadDir(c.cfg.SocketDir())
	if err != nil {
		fmt.Fprintf(c.out, "❌ 读取实例目录失败: %v\n", err)
		return false
	}
	fmt.Fprintf(c.out, "  - 内容: %s\n", listNames(entries))

	for _, entry := range entries {
		if entry.Name() == socketFile {
			fmt.Fprintf(c.out, "✓ 找到 PostgreSQL 套接字文件: %s\n", socketFile)
			return true
		}
	}
	fmt.Fprintf(c.out, "❌ 实例目录中没有 PostgreSQL 套接字文件 (%s)\n", socketFile)
	return false
}

func (c *checker) checkConnection(ctx context.Context) bool {
	cfg := c.cfg
	cfg.ConnectTimeoutMs = int(connectTimeout / time.Millisecond)

	fmt.Fprintln(c.out, "  正在连接数据库...")
	db, err := gorm.Open(postgres.Open(database.PostgresDSN(&cfg)), &gorm.Config{
		Logger:               gormlogger.Default.LogMode(gormlogger.Silent),
		DisableAutomaticPing: true,
	})
	if err != nil {
		c.printConnectError(err)
		return false
	}
	defer database.Close(db)

	queryCtx, cancel := context.WithTimeout(ctx, 2*connectTimeout)
	defer cancel()

	var now time.Time
	if err := db.WithContext(queryCtx).Raw("SELECT NOW()").Scan(&now).Error; err != nil {
		c.printConnectError(err)
		return false
	}

	fmt.Fprintln(c.out, "✓ 数据库连接成功")
	fmt.Fprintf(c.out, "✓ 查询成功，服务器时间: %s\n", now.Format(time.RFC3339))
	return true
}

// printConnectError 根据结构化错误给出排查建议
func (c *checker) printConnectError(err error) {
	fmt.Fprintf(c.out, "❌ 数据库连接失败: %v\n", err)

	var pgErr *pgconn.PgError
	switch {
	case errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOENT):
		fmt.Fprintln(c.out, "   套接字文件不存在，请确认实例已挂载到服务（--add-cloudsql-instances）")
	case errors.As(err, &pgErr) && pgErr.Code == "28P01":
		fmt.Fprintln(c.out, "   用户名或密码错误")
	case errors.As(err, &pgErr) && pgErr.Code == "3D000":
		fmt.Fprintln(c.out, "   数据库不存在，需要先创建")
	}
}

func (c *checker) printTroubleshooting() {
	fmt.Fprintln(c.out, "\n排查清单:")
	fmt.Fprintln(c.out, "1. 确认 Cloud SQL 实例存在且正在运行")
	fmt.Fprintln(c.out, "2. 确认实例已挂载到服务")
	fmt.Fprintln(c.out, "3. 确认实例连接名正确 (PROJECT_ID:REGION:INSTANCE_NAME)")
	fmt.Fprintln(c.out, "4. 确认数据库已在实例中创建")
	fmt.Fprintln(c.out, "5. 确认数据库账号密码正确")
}

func (c *checker) socketFilePath() string {
	return filepath.Join(c.cfg.SocketDir(), socketFile)
}

// mask 隐藏敏感信息
func mask(value string, secret bool) string {
	switch {
	case value == "":
		return "(not set)"
	case secret:
		return "********"
	case len(value) <= 8:
		return value
	default:
		return value[:4] + "..." + value[len(value)-4:]
	}
}

func listNames(entries []os.DirEntry) string {
	if len(entries) == 0 {
		return "(empty)"
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	return strings.Join(names, ", ")
}

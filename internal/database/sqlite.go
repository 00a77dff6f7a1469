package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
	_ "modernc.org/sqlite"

	"github.com/ecomscraperpro/ecomscraperpro/internal/config"
	"github.com/ecomscraperpro/ecomscraperpro/internal/model"
	"github.com/ecomscraperpro/ecomscraperpro/pkg/logger"
)

// Database 持久化存储层。连接池固定大小，获取连接带超时阻塞，
// 实例通过构造注入，不使用包级单例。
type Database struct {
	cfg   config.SQLiteConfig
	mu    sync.RWMutex
	db    *gorm.DB
	sqlDB *sql.DB
}

// New 初始化SQLite数据库与连接池
func New(cfg config.SQLiteConfig) (*Database, error) {
	d := &Database{cfg: cfg}
	if err := d.open(); err != nil {
		return nil, err
	}
	if err := d.autoMigrate(); err != nil {
		return nil, fmt.Errorf("failed to auto migrate: %w", err)
	}
	logger.Info("SQLite database initialized", "path", cfg.Path, "pool_size", cfg.PoolSize)
	return d, nil
}

func (d *Database) open() error {
	dbDir := filepath.Dir(d.cfg.Path)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}

	gormConfig := &gorm.Config{
		Logger: gormLogger.New(
			logger.GetLogger(),
			gormLogger.Config{
				SlowThreshold:             time.Second,
				LogLevel:                  gormLogger.Warn,
				IgnoreRecordNotFoundError: true,
				Colorful:                  false,
			},
		),
		// SQLite 对每次写操作默认开启事务会放大锁争用
		SkipDefaultTransaction: true,
	}

	dsn := d.cfg.Path + "?_pragma=busy_timeout(15000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)"
	db, err := gorm.Open(sqlite.Dialector{
		DriverName: "sqlite",
		DSN:        dsn,
	}, gormConfig)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}

	poolSize := d.cfg.PoolSize
	if poolSize < 1 {
		poolSize = 1
	}
	sqlDB.SetMaxOpenConns(poolSize)
	sqlDB.SetMaxIdleConns(poolSize)
	sqlDB.SetConnMaxLifetime(d.cfg.ConnMaxLifetime)

	// 某些环境 DSN 选项可能未生效，运行期再设置一次
	_ = db.Exec("PRAGMA journal_mode=WAL;").Error
	_ = db.Exec("PRAGMA synchronous=NORMAL;").Error
	_ = db.Exec("PRAGMA busy_timeout=15000;").Error
	_ = db.Exec("PRAGMA foreign_keys=ON;").Error

	// 预热连接池
	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	d.mu.Lock()
	d.db = db
	d.sqlDB = sqlDB
	d.mu.Unlock()
	return nil
}

// autoMigrate 迁移表结构并安装校验触发器
func (d *Database) autoMigrate() error {
	if err := d.gorm().AutoMigrate(
		&model.Task{},
		&model.ScrapingResult{},
		&model.Product{},
		&model.HotComment{},
		&model.PriceHistory{},
		&model.ScrapeLog{},
		&model.Statistic{},
	); err != nil {
		return err
	}
	return d.installTriggers()
}

// installTriggers 商品表入库校验（应用层清洗之后的最后防线）
// 与商品删除时对评论、价格历史的级联清理
func (d *Database) installTriggers() error {
	triggers := []string{
		`CREATE TRIGGER IF NOT EXISTS products_price_validation
			BEFORE INSERT ON products
			WHEN NEW.price IS NOT NULL AND NEW.price <= 0
			BEGIN SELECT RAISE(ABORT, 'price must be greater than 0'); END;`,
		`CREATE TRIGGER IF NOT EXISTS products_price_validation_update
			BEFORE UPDATE ON products
			WHEN NEW.price IS NOT NULL AND NEW.price <= 0
			BEGIN SELECT RAISE(ABORT, 'price must be greater than 0'); END;`,
		`CREATE TRIGGER IF NOT EXISTS products_rating_validation
			BEFORE INSERT ON products
			WHEN NEW.rating IS NOT NULL AND (NEW.rating < 0 OR NEW.rating > 5)
			BEGIN SELECT RAISE(ABORT, 'rating must be between 0 and 5'); END;`,
		`CREATE TRIGGER IF NOT EXISTS products_rating_validation_update
			BEFORE UPDATE ON products
			WHEN NEW.rating IS NOT NULL AND (NEW.rating < 0 OR NEW.rating > 5)
			BEGIN SELECT RAISE(ABORT, 'rating must be between 0 and 5'); END;`,
		`CREATE TRIGGER IF NOT EXISTS products_platform_validation
			BEFORE INSERT ON products
			WHEN NEW.platform NOT IN ('amazon', 'tiktok')
			BEGIN SELECT RAISE(ABORT, 'platform must be amazon or tiktok'); END;`,
		`CREATE TRIGGER IF NOT EXISTS products_category_validation
			BEFORE INSERT ON products
			WHEN NEW.category NOT IN ('tshirt', 'hoodie', 'sweatshirt')
			BEGIN SELECT RAISE(ABORT, 'category must be tshirt, hoodie or sweatshirt'); END;`,
		`CREATE TRIGGER IF NOT EXISTS products_cascade_delete
			AFTER DELETE ON products
			BEGIN
				DELETE FROM hot_comments WHERE product_id = OLD.id;
				DELETE FROM price_history WHERE product_id = OLD.id;
			END;`,
	}
	for _, trigger := range triggers {
		if err := d.gorm().Exec(trigger).Error; err != nil {
			return fmt.Errorf("failed to create validation trigger: %w", err)
		}
	}
	return nil
}

// gorm 获取当前GORM句柄（restore 期间会整体替换）
func (d *Database) gorm() *gorm.DB {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.db
}

// WithConn 以受限作用域获取一条池中连接：超时前阻塞等待，
// 回调返回后连接必然归还（包括 panic 路径）
func (d *Database) WithConn(ctx context.Context, fn func(ctx context.Context, conn *sql.Conn) error) error {
	d.mu.RLock()
	sqlDB := d.sqlDB
	d.mu.RUnlock()

	acquireTimeout := d.cfg.AcquireTimeout
	if acquireTimeout <= 0 {
		acquireTimeout = 30 * time.Second
	}
	acquireCtx, cancel := context.WithTimeout(ctx, acquireTimeout)
	defer cancel()

	conn, err := sqlDB.Conn(acquireCtx)
	if err != nil {
		return fmt.Errorf("failed to acquire database connection: %w", err)
	}
	defer conn.Close()

	return fn(ctx, conn)
}

// IsBusyError 判断是否为 SQLite 并发锁相关错误
func IsBusyError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "sqlite_busy") ||
		strings.Contains(msg, "cannot start a transaction within a transaction")
}

// WithRetry 在检测到并发锁错误时短暂退避重试
func (d *Database) WithRetry(fn func(*gorm.DB) error, attempts int, sleep time.Duration) error {
	if attempts < 1 {
		attempts = 1
	}
	if sleep <= 0 {
		sleep = 50 * time.Millisecond
	}
	var err error
	for i := 0; i < attempts; i++ {
		err = fn(d.gorm())
		if err == nil {
			return nil
		}
		if !IsBusyError(err) {
			return err
		}
		time.Sleep(sleep)
		if sleep < 500*time.Millisecond {
			sleep *= 2
		}
	}
	return err
}

// Transaction 执行事务
func (d *Database) Transaction(fn func(*gorm.DB) error) error {
	return d.gorm().Transaction(fn)
}

// Close 关闭数据库连接池
func (d *Database) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.sqlDB != nil {
		return d.sqlDB.Close()
	}
	return nil
}

// Health 检查数据库健康状态
func (d *Database) Health() error {
	d.mu.RLock()
	sqlDB := d.sqlDB
	d.mu.RUnlock()
	if sqlDB == nil {
		return fmt.Errorf("database not initialized")
	}
	return sqlDB.Ping()
}

// PoolStats 连接池统计信息
func (d *Database) PoolStats() map[string]interface{} {
	d.mu.RLock()
	sqlDB := d.sqlDB
	d.mu.RUnlock()
	if sqlDB == nil {
		return nil
	}

	stats := sqlDB.Stats()
	return map[string]interface{}{
		"max_open_connections": stats.MaxOpenConnections,
		"open_connections":     stats.OpenConnections,
		"in_use":               stats.InUse,
		"idle":                 stats.Idle,
		"wait_count":           stats.WaitCount,
		"wait_duration":        stats.WaitDuration.String(),
	}
}

// BackupTo 在线备份：VACUUM INTO 在不中断服务的情况下产出一致快照
func (d *Database) BackupTo(ctx context.Context, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create backup directory: %w", err)
	}
	// VACUUM INTO 拒绝覆盖已有文件
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("backup target already exists: %s", path)
	}
	return d.WithConn(ctx, func(ctx context.Context, conn *sql.Conn) error {
		if _, err := conn.ExecContext(ctx, "VACUUM INTO ?", path); err != nil {
			return fmt.Errorf("failed to vacuum into backup file: %w", err)
		}
		return nil
	})
}

// RestoreFrom 从备份文件恢复：关闭连接池、替换库文件、重建连接池
func (d *Database) RestoreFrom(path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("backup file not found: %s", path)
	}

	d.mu.Lock()
	if d.sqlDB != nil {
		if err := d.sqlDB.Close(); err != nil {
			d.mu.Unlock()
			return fmt.Errorf("failed to close connection pool: %w", err)
		}
		d.sqlDB = nil
		d.db = nil
	}
	d.mu.Unlock()

	// WAL 附属文件必须一并清除，否则旧页会叠加到恢复后的库上
	for _, suffix := range []string{"-wal", "-shm"} {
		_ = os.Remove(d.cfg.Path + suffix)
	}
	if err := copyFile(path, d.cfg.Path); err != nil {
		return fmt.Errorf("failed to replace database file: %w", err)
	}

	if err := d.open(); err != nil {
		return fmt.Errorf("failed to reopen database after restore: %w", err)
	}
	if err := d.autoMigrate(); err != nil {
		return fmt.Errorf("failed to migrate restored database: %w", err)
	}
	logger.Info("Database restored from backup", "backup", path)
	return nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0644)
}

package service

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	minio "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/ecomscraperpro/ecomscraperpro/internal/config"
	"github.com/ecomscraperpro/ecomscraperpro/internal/database"
	"github.com/ecomscraperpro/ecomscraperpro/pkg/logger"
)

const backupFilePrefix = "scraping_backup_"

// BackupInfo 单个备份文件的描述
type BackupInfo struct {
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	SizeBytes int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
}

// BackupService 数据库备份服务。备份始终先落本地目录，
// 配置了 minio 后端时再上传副本，上传失败回退为仅本地不中断流程。
type BackupService struct {
	cfg   config.BackupConfig
	db    *database.Database
	minio *minio.Client
}

// NewBackupService 创建备份服务
func NewBackupService(cfg config.BackupConfig, db *database.Database) *BackupService {
	s := &BackupService{cfg: cfg, db: db}
	if strings.EqualFold(cfg.StorageBackend, "minio") {
		s.minio = initMinioClient(cfg.Minio)
	}
	return s
}

// initMinioClient 初始化对象存储客户端，配置不完整或初始化失败时返回 nil
func initMinioClient(cfg config.MinioConfig) *minio.Client {
	host := strings.TrimSpace(cfg.Host)
	if host == "" || cfg.Port <= 0 {
		logger.Warn("MinIO configuration incomplete; host/port missing")
		return nil
	}
	endpoint := fmt.Sprintf("%s:%d", host, cfg.Port)

	transport := &http.Transport{
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 5 * time.Second,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   100,
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    cfg.Secure,
		Transport: transport,
	})
	if err != nil {
		logger.Error("MinIO client initialization failed", "endpoint", endpoint, "error", err)
		return nil
	}
	return client
}

// CreateBackup 创建一次在线备份，返回备份文件路径
func (s *BackupService) CreateBackup(ctx context.Context) (string, error) {
	if !s.cfg.Enabled {
		return "", fmt.Errorf("backup is disabled")
	}
	dir := s.cfg.Dir
	if dir == "" {
		dir = "data/backups"
	}
	name := backupFilePrefix + time.Now().Format("20060102_150405") + ".db"
	target := filepath.Join(dir, name)

	if err := s.db.BackupTo(ctx, target); err != nil {
		return "", fmt.Errorf("failed to create backup: %w", err)
	}
	logger.Info("Database backup created", "path", target)

	if s.minio != nil {
		if err := s.uploadBackup(ctx, target, name); err != nil {
			logger.Warn("Backup upload to MinIO failed; backup kept locally", "path", target, "error", err)
		}
	}
	return target, nil
}

// uploadBackup 上传备份副本到对象存储
func (s *BackupService) uploadBackup(ctx context.Context, localPath, name string) error {
	bucket := strings.TrimSpace(s.cfg.Minio.Bucket)
	if bucket == "" {
		return fmt.Errorf("minio bucket not configured")
	}

	uploadCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	exists, err := s.minio.BucketExists(uploadCtx, bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		if err := s.minio.MakeBucket(uploadCtx, bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	objectName := name
	if prefix := strings.Trim(s.cfg.Minio.Prefix, "/"); prefix != "" {
		objectName = path.Join(prefix, name)
	}
	_, err = s.minio.FPutObject(uploadCtx, bucket, objectName, localPath, minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		return fmt.Errorf("failed to upload backup object: %w", err)
	}
	logger.Info("Backup uploaded to MinIO", "bucket", bucket, "object", objectName)
	return nil
}

// RestoreBackup 从指定备份文件恢复数据库
func (s *BackupService) RestoreBackup(backupPath string) error {
	if err := s.db.RestoreFrom(backupPath); err != nil {
		return err
	}
	logger.Warn("Database restored from backup; data written after the backup is lost", "backup", backupPath)
	return nil
}

// ListBackups 列出本地备份文件，新的在前
func (s *BackupService) ListBackups() ([]BackupInfo, error) {
	dir := s.cfg.Dir
	if dir == "" {
		dir = "data/backups"
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []BackupInfo{}, nil
		}
		return nil, err
	}

	backups := make([]BackupInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), backupFilePrefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		backups = append(backups, BackupInfo{
			Name:      entry.Name(),
			Path:      filepath.Join(dir, entry.Name()),
			SizeBytes: info.Size(),
			CreatedAt: info.ModTime(),
		})
	}
	sort.Slice(backups, func(i, j int) bool {
		return backups[i].CreatedAt.After(backups[j].CreatedAt)
	})
	return backups, nil
}

// CleanupOldBackups 删除超过保留期的本地备份，返回删除数量
func (s *BackupService) CleanupOldBackups() (int, error) {
	retention := s.cfg.RetentionDays
	if retention <= 0 {
		return 0, nil
	}
	backups, err := s.ListBackups()
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().AddDate(0, 0, -retention)
	removed := 0
	for _, backup := range backups {
		if backup.CreatedAt.After(cutoff) {
			continue
		}
		if err := os.Remove(backup.Path); err != nil {
			logger.Error("Failed to remove expired backup", "path", backup.Path, "error", err)
			continue
		}
		removed++
	}
	if removed > 0 {
		logger.Info("Expired backups removed", "count", removed, "retention_days", retention)
	}
	return removed, nil
}

// Start 启动自动备份循环，ctx 取消后退出。
// 每个周期先备份再清理过期文件。
func (s *BackupService) Start(ctx context.Context) {
	if !s.cfg.Enabled || !s.cfg.AutoBackup {
		return
	}
	interval := s.cfg.Interval
	if interval <= 0 {
		interval = 24 * time.Hour
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		logger.Info("Automatic backup started", "interval", interval.String())
		for {
			select {
			case <-ctx.Done():
				logger.Info("Automatic backup stopped")
				return
			case <-ticker.C:
				if _, err := s.CreateBackup(ctx); err != nil {
					logger.Error("Automatic backup failed", "error", err)
				}
				if _, err := s.CleanupOldBackups(); err != nil {
					logger.Error("Backup cleanup failed", "error", err)
				}
			}
		}
	}()
}

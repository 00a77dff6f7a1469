package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置结构
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Scraping   ScrapingConfig   `mapstructure:"scraping"`
	Backup     BackupConfig     `mapstructure:"backup"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	Report     ReportConfig     `mapstructure:"report"`
	Log        LogConfig        `mapstructure:"log"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	SQLite SQLiteConfig `mapstructure:"sqlite"`
}

// SQLiteConfig SQLite配置
type SQLiteConfig struct {
	Path            string        `mapstructure:"path"`
	PoolSize        int           `mapstructure:"pool_size"`
	AcquireTimeout  time.Duration `mapstructure:"acquire_timeout"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// ScrapingConfig 抓取配置
type ScrapingConfig struct {
	// MaxWorkers 任务并发执行的工作协程上限
	MaxWorkers int                    `mapstructure:"max_workers"`
	Amazon     PlatformScrapingConfig `mapstructure:"amazon"`
	TikTok     PlatformScrapingConfig `mapstructure:"tiktok"`
}

// PlatformScrapingConfig 单平台抓取配置
type PlatformScrapingConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	RequestDelay time.Duration `mapstructure:"request_delay"`
	// ScrapeTimeout 单次抓取调用的超时窗口（由适配器持有，而非协调器）
	ScrapeTimeout time.Duration `mapstructure:"scrape_timeout"`
	UserAgent     string        `mapstructure:"user_agent"`
	Categories    []string      `mapstructure:"categories"`
	Keywords      []string      `mapstructure:"keywords"`
}

// BackupConfig 备份服务配置
type BackupConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Dir           string        `mapstructure:"dir"`
	RetentionDays int           `mapstructure:"retention_days"`
	AutoBackup    bool          `mapstructure:"auto_backup"`
	Interval      time.Duration `mapstructure:"interval"`
	// StorageBackend 备份副本存储后端：local | minio（本地文件始终先落盘）
	StorageBackend string      `mapstructure:"storage_backend"`
	Minio          MinioConfig `mapstructure:"minio"`
}

// MinioConfig 对象存储配置（备份副本上传）
type MinioConfig struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	Prefix    string `mapstructure:"prefix"`
	Secure    bool   `mapstructure:"secure"`
}

// MonitoringConfig 性能监控配置
type MonitoringConfig struct {
	// ResponseTimeThreshold 单任务执行时间告警阈值
	ResponseTimeThreshold time.Duration `mapstructure:"response_time_threshold"`
	// FailureRateThreshold 失败率告警阈值（0-1）
	FailureRateThreshold float64 `mapstructure:"failure_rate_threshold"`
	// MaxSamples 内存样本上限，超出后裁剪最旧样本
	MaxSamples int `mapstructure:"max_samples"`
}

// ReportConfig 报告输出配置
type ReportConfig struct {
	Dir string `mapstructure:"dir"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// Load 加载配置文件；文件缺失时以默认值启动
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath("./configs")
		v.AddConfigPath("../configs")
		v.AddConfigPath("../../configs")
	}

	v.SetEnvPrefix("SCRAPER")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if configPath != "" {
			if _, statErr := os.Stat(configPath); statErr == nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 120*time.Second)

	v.SetDefault("database.sqlite.path", "data/scraping.db")
	v.SetDefault("database.sqlite.pool_size", 10)
	v.SetDefault("database.sqlite.acquire_timeout", 30*time.Second)
	v.SetDefault("database.sqlite.conn_max_lifetime", time.Hour)

	v.SetDefault("scraping.max_workers", 5)
	v.SetDefault("scraping.amazon.enabled", true)
	v.SetDefault("scraping.amazon.request_delay", time.Second)
	v.SetDefault("scraping.amazon.scrape_timeout", 60*time.Second)
	v.SetDefault("scraping.amazon.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	v.SetDefault("scraping.amazon.categories", []string{"T-Shirt", "Hoodie", "Sweatshirt"})
	v.SetDefault("scraping.amazon.keywords", []string{"print", "graphic", "design"})
	v.SetDefault("scraping.tiktok.enabled", true)
	v.SetDefault("scraping.tiktok.request_delay", 2*time.Second)
	v.SetDefault("scraping.tiktok.scrape_timeout", 60*time.Second)
	v.SetDefault("scraping.tiktok.categories", []string{"服装", "时尚", "潮流"})
	v.SetDefault("scraping.tiktok.keywords", []string{"印花", "T恤", "卫衣"})

	v.SetDefault("backup.enabled", true)
	v.SetDefault("backup.dir", "data/backups")
	v.SetDefault("backup.retention_days", 7)
	v.SetDefault("backup.auto_backup", false)
	v.SetDefault("backup.interval", 24*time.Hour)
	v.SetDefault("backup.storage_backend", "local")
	v.SetDefault("backup.minio.prefix", "db-backups")

	v.SetDefault("monitoring.response_time_threshold", 30*time.Second)
	v.SetDefault("monitoring.failure_rate_threshold", 0.3)
	v.SetDefault("monitoring.max_samples", 10000)

	v.SetDefault("report.dir", "reports")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.output", "console")
	v.SetDefault("log.file_path", "logs/coordinator.log")
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age", 30)
}

// GetServerAddr 获取服务器地址
func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// PlatformScraping 按平台名返回抓取配置
func (c *Config) PlatformScraping(platform string) PlatformScrapingConfig {
	switch strings.ToLower(strings.TrimSpace(platform)) {
	case "amazon":
		return c.Scraping.Amazon
	case "tiktok":
		return c.Scraping.TikTok
	}
	return PlatformScrapingConfig{}
}

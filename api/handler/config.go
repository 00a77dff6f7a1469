package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"

	"github.com/ecomscraperpro/ecomscraperpro/internal/config"
	"github.com/ecomscraperpro/ecomscraperpro/pkg/logger"
)

// ConfigHandler 配置查询与更新处理器
type ConfigHandler struct {
	cfg        *config.Config
	configPath string
}

// NewConfigHandler 创建配置处理器
func NewConfigHandler(cfg *config.Config, configPath string) *ConfigHandler {
	return &ConfigHandler{cfg: cfg, configPath: configPath}
}

// updatableKeys 允许通过API写入的配置键
var updatableKeys = map[string]struct{}{
	"scraping.max_workers":    {},
	"scraping.amazon.enabled": {},
	"scraping.tiktok.enabled": {},
	"backup.auto_backup":      {},
	"backup.retention_days":   {},
	"monitoring.max_samples":  {},
	"log.level":               {},
}

// GetConfig 返回脱敏后的运行配置
func (h *ConfigHandler) GetConfig(c *gin.Context) {
	respondOK(c, gin.H{
		"server": gin.H{
			"host": h.cfg.Server.Host,
			"port": h.cfg.Server.Port,
			"mode": h.cfg.Server.Mode,
		},
		"database": gin.H{
			"path":      h.cfg.Database.SQLite.Path,
			"pool_size": h.cfg.Database.SQLite.PoolSize,
		},
		"scraping": gin.H{
			"max_workers": h.cfg.Scraping.MaxWorkers,
			"amazon": gin.H{
				"enabled":    h.cfg.Scraping.Amazon.Enabled,
				"categories": h.cfg.Scraping.Amazon.Categories,
				"keywords":   h.cfg.Scraping.Amazon.Keywords,
			},
			"tiktok": gin.H{
				"enabled":    h.cfg.Scraping.TikTok.Enabled,
				"categories": h.cfg.Scraping.TikTok.Categories,
				"keywords":   h.cfg.Scraping.TikTok.Keywords,
			},
		},
		"backup": gin.H{
			"enabled":         h.cfg.Backup.Enabled,
			"dir":             h.cfg.Backup.Dir,
			"retention_days":  h.cfg.Backup.RetentionDays,
			"auto_backup":     h.cfg.Backup.AutoBackup,
			"storage_backend": h.cfg.Backup.StorageBackend,
		},
		"monitoring": gin.H{
			"response_time_threshold": h.cfg.Monitoring.ResponseTimeThreshold.String(),
			"failure_rate_threshold":  h.cfg.Monitoring.FailureRateThreshold,
			"max_samples":             h.cfg.Monitoring.MaxSamples,
		},
	})
}

// UpdateConfigRequest 配置更新请求
type UpdateConfigRequest struct {
	Key   string `json:"key" binding:"required"`
	Value any    `json:"value" binding:"required"`
}

// UpdateConfig 更新白名单内的配置键并写回配置文件。
// 文件写入后由服务端的 fsnotify 监听触发重载。
func (h *ConfigHandler) UpdateConfig(c *gin.Context) {
	var req UpdateConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "请求参数无效: "+err.Error())
		return
	}
	if _, ok := updatableKeys[req.Key]; !ok {
		respondError(c, http.StatusBadRequest, "不允许更新的配置键: "+req.Key)
		return
	}
	if h.configPath == "" {
		respondError(c, http.StatusConflict, "服务未使用配置文件启动，无法持久化配置")
		return
	}

	v := viper.New()
	v.SetConfigFile(h.configPath)
	if err := v.ReadInConfig(); err != nil {
		respondError(c, http.StatusInternalServerError, "读取配置文件失败: "+err.Error())
		return
	}
	v.Set(req.Key, req.Value)
	if err := v.WriteConfig(); err != nil {
		respondError(c, http.StatusInternalServerError, "写入配置文件失败: "+err.Error())
		return
	}

	logger.Info("Config updated via API", "key", req.Key)
	respondOKMessage(c, "配置已更新", gin.H{
		"key":   req.Key,
		"value": req.Value,
	})
}

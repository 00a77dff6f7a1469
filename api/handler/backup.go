package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ecomscraperpro/ecomscraperpro/internal/service"
	"github.com/ecomscraperpro/ecomscraperpro/pkg/logger"
)

// BackupHandler 备份处理器
type BackupHandler struct {
	backupService *service.BackupService
}

// NewBackupHandler 创建备份处理器
func NewBackupHandler(backupService *service.BackupService) *BackupHandler {
	return &BackupHandler{backupService: backupService}
}

// CreateBackup 创建一次数据库备份
func (h *BackupHandler) CreateBackup(c *gin.Context) {
	path, err := h.backupService.CreateBackup(c.Request.Context())
	if err != nil {
		logger.Error("Backup creation failed", "error", err)
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	respondOKMessage(c, "备份已创建", gin.H{"path": path})
}

// ListBackups 列出可用备份
func (h *BackupHandler) ListBackups(c *gin.Context) {
	backups, err := h.backupService.ListBackups()
	if err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(c, gin.H{
		"backups": backups,
		"total":   len(backups),
	})
}

// RestoreRequest 恢复请求
type RestoreRequest struct {
	Path string `json:"path" binding:"required"`
}

// RestoreBackup 从备份恢复数据库
func (h *BackupHandler) RestoreBackup(c *gin.Context) {
	var req RestoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "请求参数无效: "+err.Error())
		return
	}
	if err := h.backupService.RestoreBackup(req.Path); err != nil {
		logger.Error("Backup restore failed", "path", req.Path, "error", err)
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	respondOKMessage(c, "数据库已从备份恢复", gin.H{"path": req.Path})
}

// CleanupBackups 清理过期备份
func (h *BackupHandler) CleanupBackups(c *gin.Context) {
	removed, err := h.backupService.CleanupOldBackups()
	if err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	respondOKMessage(c, "过期备份已清理", gin.H{"removed": removed})
}

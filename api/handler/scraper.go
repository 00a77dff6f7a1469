package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ecomscraperpro/ecomscraperpro/internal/model"
	"github.com/ecomscraperpro/ecomscraperpro/internal/service"
	"github.com/ecomscraperpro/ecomscraperpro/pkg/logger"
)

// ScraperHandler 抓取任务处理器
type ScraperHandler struct {
	coordinator *service.Coordinator
}

// NewScraperHandler 创建抓取任务处理器
func NewScraperHandler(coordinator *service.Coordinator) *ScraperHandler {
	return &ScraperHandler{coordinator: coordinator}
}

// ScrapePlatformRequest 单平台抓取请求
type ScrapePlatformRequest struct {
	Platform   string   `json:"platform" binding:"required"`
	Categories []string `json:"categories"`
	Keywords   []string `json:"keywords"`
	MaxPages   int      `json:"max_pages"`
}

// ScrapeAllRequest 全平台抓取请求
type ScrapeAllRequest struct {
	Categories []string `json:"categories"`
	Keywords   []string `json:"keywords"`
	MaxPages   int      `json:"max_pages"`
}

// GetStatus 获取系统状态
func (h *ScraperHandler) GetStatus(c *gin.Context) {
	respondOK(c, h.coordinator.Status())
}

// ScrapePlatform 执行单平台抓取
func (h *ScraperHandler) ScrapePlatform(c *gin.Context) {
	var req ScrapePlatformRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "请求参数无效: "+err.Error())
		return
	}
	platform, err := model.ParsePlatform(req.Platform)
	if err != nil {
		respondError(c, http.StatusBadRequest, "不支持的平台: "+req.Platform)
		return
	}

	results, err := h.coordinator.ScrapePlatform(c.Request.Context(), platform, req.Categories, req.Keywords, req.MaxPages)
	if err != nil {
		logger.Error("Platform scraping failed", "platform", platform, "error", err)
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}

	successful := 0
	for _, result := range results {
		if result.Success {
			successful++
		}
	}
	respondOKMessage(c, req.Platform+"平台抓取完成", gin.H{
		"platform":         req.Platform,
		"tasks_created":    len(results),
		"successful_tasks": successful,
		"failed_tasks":     len(results) - successful,
	})
}

// ScrapeAll 执行全平台抓取
func (h *ScraperHandler) ScrapeAll(c *gin.Context) {
	var req ScrapeAllRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "请求参数无效: "+err.Error())
		return
	}

	grouped, err := h.coordinator.ScrapeAllPlatforms(c.Request.Context(), req.Categories, req.Keywords, req.MaxPages)
	if err != nil {
		logger.Error("Scraping all platforms failed", "error", err)
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}

	platforms := make(map[string]int, len(grouped))
	totalTasks := 0
	for platform, results := range grouped {
		platforms[platform.String()] = len(results)
		totalTasks += len(results)
	}
	respondOKMessage(c, "所有平台抓取完成", gin.H{
		"platforms":   platforms,
		"total_tasks": totalTasks,
	})
}

// GetTask 查询任务详情及其执行结果
func (h *ScraperHandler) GetTask(c *gin.Context) {
	taskID := c.Param("task_id")
	task, err := h.coordinator.Task(taskID)
	if err != nil {
		respondError(c, http.StatusNotFound, "任务不存在: "+taskID)
		return
	}
	respondOK(c, gin.H{
		"task":     task,
		"keywords": task.GetKeywords(),
	})
}

// CancelTask 取消任务
func (h *ScraperHandler) CancelTask(c *gin.Context) {
	taskID := c.Param("task_id")
	if err := h.coordinator.CancelTask(taskID); err != nil {
		respondError(c, http.StatusConflict, err.Error())
		return
	}
	respondOKMessage(c, "任务已取消", gin.H{"task_id": taskID})
}

// GetStatistics 查询聚合统计
func (h *ScraperHandler) GetStatistics(c *gin.Context) {
	days, _ := strconv.Atoi(c.DefaultQuery("days", "7"))
	stats, err := h.coordinator.Statistics(days)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(c, gin.H{
		"statistics":  stats,
		"period_days": days,
	})
}

// GetPerformance 查询性能摘要
func (h *ScraperHandler) GetPerformance(c *gin.Context) {
	hours, _ := strconv.Atoi(c.DefaultQuery("hours", "24"))
	respondOK(c, h.coordinator.Monitor().Summary(hours))
}

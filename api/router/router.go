package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ecomscraperpro/ecomscraperpro/api/handler"
	"github.com/ecomscraperpro/ecomscraperpro/internal/config"
	"github.com/ecomscraperpro/ecomscraperpro/internal/database"
	"github.com/ecomscraperpro/ecomscraperpro/internal/service"
	"github.com/ecomscraperpro/ecomscraperpro/pkg/logger"
)

// Setup 设置路由
func Setup(cfg *config.Config, configPath string, db *database.Database, coordinator *service.Coordinator, backupService *service.BackupService) *gin.Engine {
	if cfg.Server.Mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(CORSMiddleware())
	r.Use(RequestIDMiddleware())
	r.Use(LoggingMiddleware())

	scraperHandler := handler.NewScraperHandler(coordinator)
	productHandler := handler.NewProductHandler(db)
	backupHandler := handler.NewBackupHandler(backupService)
	configHandler := handler.NewConfigHandler(cfg, configPath)
	healthHandler := handler.NewHealthHandler(db)

	// 根路径
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"name":    "Ecom Scraper Pro",
			"version": "1.0.0",
			"status":  "running",
		})
	})

	// API v1 路由组
	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", healthHandler.Health)
		v1.GET("/status", scraperHandler.GetStatus)

		// 抓取任务路由
		scrape := v1.Group("/scrape")
		{
			scrape.POST("/platform", scraperHandler.ScrapePlatform)
			scrape.POST("/all", scraperHandler.ScrapeAll)
		}
		v1.GET("/tasks/:task_id", scraperHandler.GetTask)
		v1.POST("/tasks/:task_id/cancel", scraperHandler.CancelTask)

		// 商品数据路由
		products := v1.Group("/products")
		{
			products.GET("", productHandler.ListProducts)
			products.GET("/:id/comments", productHandler.GetHotComments)
			products.GET("/:id/prices", productHandler.GetPriceHistory)
			products.DELETE("/:id", productHandler.DeleteProduct)
		}

		// 统计与性能
		v1.GET("/statistics", scraperHandler.GetStatistics)
		v1.GET("/performance", scraperHandler.GetPerformance)
		v1.GET("/database/stats", productHandler.GetDatabaseStats)

		// 配置
		v1.GET("/config", configHandler.GetConfig)
		v1.POST("/config", configHandler.UpdateConfig)

		// 备份
		backup := v1.Group("/backup")
		{
			backup.POST("", backupHandler.CreateBackup)
			backup.GET("", backupHandler.ListBackups)
			backup.POST("/restore", backupHandler.RestoreBackup)
			backup.POST("/cleanup", backupHandler.CleanupBackups)
		}
	}

	return r
}

// CORSMiddleware 跨域中间件
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Header("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// RequestIDMiddleware 请求ID中间件
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Header("X-Request-ID", requestID)
		c.Set("request_id", requestID)
		c.Next()
	}
}

// LoggingMiddleware 日志中间件
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start)
		logger.Info("HTTP Request",
			"request_id", c.GetString("request_id"),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"client_ip", c.ClientIP(),
			"duration_ms", duration.Milliseconds())
	}
}

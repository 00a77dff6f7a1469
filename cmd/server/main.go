package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ecomscraperpro/ecomscraperpro/api/router"
	"github.com/ecomscraperpro/ecomscraperpro/internal/config"
	"github.com/ecomscraperpro/ecomscraperpro/internal/database"
	"github.com/ecomscraperpro/ecomscraperpro/internal/scraper"
	"github.com/ecomscraperpro/ecomscraperpro/internal/service"
	"github.com/ecomscraperpro/ecomscraperpro/pkg/logger"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	flag.Parse()

	// 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	if err := logger.Init(logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		FilePath:   cfg.Log.FilePath,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	}); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	logger.Info("Starting Ecom Scraper Pro Server", "version", "1.0.0")
	logger.Info("Task concurrency configured", "max_workers", cfg.Scraping.MaxWorkers, "pool_size", cfg.Database.SQLite.PoolSize)

	// 初始化数据库
	db, err := database.New(cfg.Database.SQLite)
	if err != nil {
		logger.Fatal("Failed to initialize database", "error", err)
	}
	defer db.Close()

	// 创建服务
	monitor := service.NewMonitor(cfg.Monitoring)
	scrapers := []scraper.Scraper{
		scraper.NewAmazonScraper(cfg.Scraping.Amazon),
		scraper.NewTikTokScraper(cfg.Scraping.TikTok),
	}
	coordinator := service.NewCoordinator(cfg, db, scrapers, monitor)
	backupService := service.NewBackupService(cfg.Backup, db)

	serverCtx, serverCancel := context.WithCancel(context.Background())
	defer serverCancel()

	// 自动备份
	backupService.Start(serverCtx)

	// 设置路由
	r := router.Setup(cfg, *configPath, db, coordinator, backupService)

	// 创建HTTP服务器
	server := &http.Server{
		Addr:           cfg.GetServerAddr(),
		Handler:        r,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: 1 << 20, // 1MB
	}

	// 启动服务器
	go func() {
		logger.Info("Server starting", "addr", server.Addr, "mode", cfg.Server.Mode)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", "error", err)
		}
	}()

	// 配置文件监听与热更新
	go watchConfig(*configPath, cfg)

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Server shutting down...")
	serverCancel()

	// 优雅关闭服务器
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	} else {
		logger.Info("Server shutdown complete")
	}
}

// watchConfig 监听配置文件变化并热更新（去抖处理编辑器多次写入）
func watchConfig(path string, cfg *config.Config) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warn("Config watch init failed", "error", err)
		return
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		logger.Warn("Config watch add failed", "path", path, "error", err)
		return
	}

	var debounce *time.Timer
	debounceInterval := 300 * time.Millisecond
	trigger := func() {
		newCfg, err := config.Load(path)
		if err != nil {
			logger.Warn("Config reload failed", "error", err)
			return
		}
		// 原地覆盖，保持指针不变
		*cfg = *newCfg
		// 刷新日志配置
		_ = logger.Init(logger.Config{
			Level:      cfg.Log.Level,
			Format:     cfg.Log.Format,
			Output:     cfg.Log.Output,
			FilePath:   cfg.Log.FilePath,
			MaxSize:    cfg.Log.MaxSize,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAge:     cfg.Log.MaxAge,
			Compress:   cfg.Log.Compress,
		})
		logger.Info("Config reloaded")
	}

	for {
		select {
		case ev := <-watcher.Events:
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(debounceInterval, trigger)
			}
		case err := <-watcher.Errors:
			logger.Warn("Config watch error", "error", err)
		}
	}
}

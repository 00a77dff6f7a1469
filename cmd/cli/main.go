package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/ecomscraperpro/ecomscraperpro/internal/config"
	"github.com/ecomscraperpro/ecomscraperpro/internal/database"
	"github.com/ecomscraperpro/ecomscraperpro/internal/model"
	"github.com/ecomscraperpro/ecomscraperpro/internal/scraper"
	"github.com/ecomscraperpro/ecomscraperpro/internal/service"
	"github.com/ecomscraperpro/ecomscraperpro/pkg/logger"
)

// stringList 可重复使用的字符串列表flag
type stringList []string

func (l *stringList) String() string {
	return strings.Join(*l, ",")
}

func (l *stringList) Set(value string) error {
	*l = append(*l, value)
	return nil
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "scrape":
		runScrape(args)
	case "status":
		runStatus(args)
	case "backup":
		runBackup(args)
	default:
		fmt.Printf("未知命令: %s\n\n", command)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("用法: scraper-cli <命令> [选项]")
	fmt.Println()
	fmt.Println("命令:")
	fmt.Println("  scrape   执行数据抓取")
	fmt.Println("  status   查看系统状态")
	fmt.Println("  backup   创建数据库备份")
	fmt.Println()
	fmt.Println("使用 scraper-cli <命令> -h 查看命令选项")
}

// setup 初始化配置、日志、数据库与协调器
func setup(configPath string) (*config.Config, *database.Database, *service.Coordinator, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(logger.Config{
		Level:    cfg.Log.Level,
		Format:   cfg.Log.Format,
		Output:   "console",
		FilePath: cfg.Log.FilePath,
	}); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	db, err := database.New(cfg.Database.SQLite)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	monitor := service.NewMonitor(cfg.Monitoring)
	scrapers := []scraper.Scraper{
		scraper.NewAmazonScraper(cfg.Scraping.Amazon),
		scraper.NewTikTokScraper(cfg.Scraping.TikTok),
	}
	coordinator := service.NewCoordinator(cfg, db, scrapers, monitor)
	return cfg, db, coordinator, nil
}

func runScrape(args []string) {
	fs := flag.NewFlagSet("scrape", flag.ExitOnError)
	configPath := fs.String("config", "configs/config.yaml", "配置文件路径")
	platform := fs.String("platform", "all", "抓取平台: amazon | tiktok | all")
	maxPages := fs.Int("max-pages", 5, "最大页数")
	var categories, keywords stringList
	fs.Var(&categories, "category", "产品类别（可多次使用）")
	fs.Var(&keywords, "keyword", "关键词（可多次使用）")
	_ = fs.Parse(args)

	_, db, coordinator, err := setup(*configPath)
	if err != nil {
		fmt.Printf("初始化失败: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx := context.Background()

	if *platform == "all" {
		grouped, err := coordinator.ScrapeAllPlatforms(ctx, categories, keywords, *maxPages)
		if err != nil {
			fmt.Printf("抓取失败: %v\n", err)
			os.Exit(1)
		}
		for p, results := range grouped {
			printResults(p, results)
		}
		return
	}

	p, err := model.ParsePlatform(*platform)
	if err != nil {
		fmt.Printf("不支持的平台: %s\n", *platform)
		os.Exit(1)
	}
	results, err := coordinator.ScrapePlatform(ctx, p, categories, keywords, *maxPages)
	if err != nil {
		fmt.Printf("抓取失败: %v\n", err)
		os.Exit(1)
	}
	printResults(p, results)
}

func printResults(platform model.Platform, results []*model.ScrapingResult) {
	successful, items := 0, 0
	for _, r := range results {
		if r.Success {
			successful++
			items += r.ItemsFound
		}
	}
	fmt.Printf("[%s] 任务总数: %d, 成功: %d, 失败: %d, 产品数: %d\n",
		platform, len(results), successful, len(results)-successful, items)
	for _, r := range results {
		status := "成功"
		if !r.Success {
			status = "失败: " + r.ErrorMessage
		}
		fmt.Printf("  %s  %s (%.2fs, %d项)\n", r.TaskID, status, r.ExecutionTime, r.ItemsFound)
	}
}

func runStatus(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", "configs/config.yaml", "配置文件路径")
	_ = fs.Parse(args)

	_, db, coordinator, err := setup(*configPath)
	if err != nil {
		fmt.Printf("初始化失败: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	data, err := json.MarshalIndent(coordinator.Status(), "", "  ")
	if err != nil {
		fmt.Printf("状态序列化失败: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(data))
}

func runBackup(args []string) {
	fs := flag.NewFlagSet("backup", flag.ExitOnError)
	configPath := fs.String("config", "configs/config.yaml", "配置文件路径")
	_ = fs.Parse(args)

	cfg, db, _, err := setup(*configPath)
	if err != nil {
		fmt.Printf("初始化失败: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	backupService := service.NewBackupService(cfg.Backup, db)
	path, err := backupService.CreateBackup(context.Background())
	if err != nil {
		fmt.Printf("备份失败: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("备份已创建: %s\n", path)
}

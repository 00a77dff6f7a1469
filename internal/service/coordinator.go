package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ecomscraperpro/ecomscraperpro/internal/config"
	"github.com/ecomscraperpro/ecomscraperpro/internal/database"
	"github.com/ecomscraperpro/ecomscraperpro/internal/model"
	"github.com/ecomscraperpro/ecomscraperpro/internal/scraper"
	"github.com/ecomscraperpro/ecomscraperpro/pkg/logger"
)

// Coordinator 任务协调器：创建任务、调度执行、落库与报告。
// 依赖全部构造注入，协调器自身不持有全局状态。
type Coordinator struct {
	cfg        *config.Config
	db         *database.Database
	scrapers   map[model.Platform]scraper.Scraper
	cleaner    *scraper.Cleaner
	integrator *Integrator
	monitor    *Monitor

	mu      sync.Mutex
	running map[string]context.CancelFunc
}

// NewCoordinator 创建任务协调器
func NewCoordinator(cfg *config.Config, db *database.Database, scrapers []scraper.Scraper, monitor *Monitor) *Coordinator {
	byPlatform := make(map[model.Platform]scraper.Scraper, len(scrapers))
	for _, s := range scrapers {
		byPlatform[s.Platform()] = s
	}
	return &Coordinator{
		cfg:        cfg,
		db:         db,
		scrapers:   byPlatform,
		cleaner:    scraper.NewCleaner(),
		integrator: NewIntegrator(),
		monitor:    monitor,
		running:    make(map[string]context.CancelFunc),
	}
}

// CreateTask 创建抓取任务并落库，初始状态 pending
func (c *Coordinator) CreateTask(platform model.Platform, category string, keywords []string, maxPages int) (*model.Task, error) {
	if !platform.Valid() {
		return nil, fmt.Errorf("unsupported platform: %s", platform)
	}
	if category == "" {
		return nil, errors.New("category is required")
	}
	if maxPages <= 0 {
		maxPages = 5
	}

	task := &model.Task{
		TaskID:     fmt.Sprintf("%s_%s_%d", platform, category, time.Now().UnixNano()),
		Platform:   platform,
		Category:   category,
		MaxPages:   maxPages,
		MaxRetries: 3,
		Status:     model.TaskStatusPending,
		CreatedAt:  time.Now(),
	}
	task.SetKeywords(keywords)

	if err := c.db.SaveTask(task); err != nil {
		return nil, fmt.Errorf("failed to persist task: %w", err)
	}
	logger.Info("Task created", "task_id", task.TaskID, "platform", platform, "category", category)
	return task, nil
}

// CancelTask 取消任务。pending 任务直接置为 cancelled；
// running 任务取消其执行上下文，由执行协程完成状态迁移。
func (c *Coordinator) CancelTask(taskID string) error {
	c.mu.Lock()
	cancel, isRunning := c.running[taskID]
	c.mu.Unlock()
	if isRunning {
		cancel()
		logger.Info("Cancellation requested for running task", "task_id", taskID)
		return nil
	}

	task, err := c.db.GetTask(taskID)
	if err != nil {
		return fmt.Errorf("task not found: %s", taskID)
	}
	if err := task.TransitionTo(model.TaskStatusCancelled, time.Now()); err != nil {
		return err
	}
	if err := c.db.SaveTask(task); err != nil {
		return err
	}
	logger.Info("Task cancelled", "task_id", taskID)
	return nil
}

// ExecuteSingleTask 执行单个任务。任何失败都收敛为 Success=false 的结果，
// 不向调用方返回 error，保证 N 个任务永远产出 N 个结果。
func (c *Coordinator) ExecuteSingleTask(ctx context.Context, task *model.Task) *model.ScrapingResult {
	start := time.Now()

	taskCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	if c.running == nil {
		c.running = make(map[string]context.CancelFunc)
	}
	c.running[task.TaskID] = cancel
	c.mu.Unlock()
	defer func() {
		cancel()
		c.mu.Lock()
		delete(c.running, task.TaskID)
		c.mu.Unlock()
	}()

	// 排队期间任务可能已被 CancelTask 置为终态，执行前以落库状态为准，
	// 终态任务跳过执行，状态不回退
	if stored, err := c.db.GetTask(task.TaskID); err == nil && stored.Status.Terminal() {
		logger.Info("Skipping task already in terminal state", "task_id", task.TaskID, "status", stored.Status)
		*task = *stored
		return c.failResult(task, start, fmt.Sprintf("task is already %s", stored.Status))
	}

	if err := task.TransitionTo(model.TaskStatusRunning, start); err != nil {
		return c.failTask(task, start, fmt.Sprintf("cannot start task: %v", err))
	}
	if err := c.db.SaveTask(task); err != nil {
		logger.Error("Failed to persist running task", "task_id", task.TaskID, "error", err)
	}

	auditLog := &model.ScrapeLog{
		ID:        uuid.New().String(),
		TaskID:    task.TaskID,
		Platform:  task.Platform,
		Category:  task.Category,
		TaskType:  "scrape",
		Status:    model.TaskStatusRunning,
		StartedAt: start,
	}
	if err := c.db.InsertScrapeLog(auditLog); err != nil {
		logger.Error("Failed to insert scrape log", "task_id", task.TaskID, "error", err)
	}

	result := c.runScraper(taskCtx, task, start)

	finalStatus := model.TaskStatusFailed
	if result.Success {
		finalStatus = model.TaskStatusSuccess
	} else if errors.Is(taskCtx.Err(), context.Canceled) && ctx.Err() == nil {
		// 外层 ctx 仍存活说明取消来自 CancelTask 而非调度方退出
		finalStatus = model.TaskStatusCancelled
	}

	now := time.Now()
	if err := task.TransitionTo(finalStatus, now); err != nil {
		logger.Error("Invalid task state transition", "task_id", task.TaskID, "error", err)
	}
	task.DataCount = result.ItemsFound
	if !result.Success {
		task.ErrorMessage = result.ErrorMessage
	}
	if err := c.db.SaveTask(task); err != nil {
		logger.Error("Failed to persist completed task", "task_id", task.TaskID, "error", err)
	}
	if err := c.db.SaveResult(result); err != nil {
		logger.Error("Failed to persist scraping result", "task_id", task.TaskID, "error", err)
	}

	recordsSaved := 0
	if result.Success && len(result.Records) > 0 {
		recordsSaved = c.persistProducts(task, result.Records)
	}
	if err := c.db.UpdateScrapeLog(auditLog.ID, finalStatus, result.ItemsFound, recordsSaved, result.ErrorMessage); err != nil {
		logger.Error("Failed to update scrape log", "task_id", task.TaskID, "error", err)
	}

	c.monitor.RecordExecution(task.Platform, result.ExecutionTime, result.Success, result.ItemsFound)
	logger.Info("Task finished", "task_id", task.TaskID, "status", finalStatus, "items_found", result.ItemsFound, "records_saved", recordsSaved)
	return result
}

// runScraper 选择适配器并执行，业务失败与取消都折叠到结果里
func (c *Coordinator) runScraper(ctx context.Context, task *model.Task, start time.Time) *model.ScrapingResult {
	s, ok := c.scrapers[task.Platform]
	if !ok {
		return c.failResult(task, start, fmt.Sprintf("unsupported platform: %s", task.Platform))
	}
	if !s.Enabled() {
		return c.failResult(task, start, fmt.Sprintf("%s scraping is disabled", task.Platform))
	}

	result, err := s.Scrape(ctx, task)
	if err != nil {
		return c.failResult(task, start, fmt.Sprintf("scraping aborted: %v", err))
	}
	return result
}

// persistProducts 清洗、去重并入库商品，返回实际保存条数
func (c *Coordinator) persistProducts(task *model.Task, records []map[string]any) int {
	deduplicated := c.integrator.DeduplicateProducts(records, task.Platform)
	if ok, issues := c.integrator.ValidateDataQuality(deduplicated); !ok {
		logger.Warn("Data quality issues detected", "task_id", task.TaskID, "issues", len(issues))
		for _, issue := range issues {
			logger.Debug("Data quality issue", "task_id", task.TaskID, "issue", issue)
		}
	}

	products := c.cleaner.CleanBatch(deduplicated, task.Platform)
	saved, err := c.db.UpsertProducts(products)
	if err != nil {
		logger.Error("Failed to save products", "task_id", task.TaskID, "error", err)
		return saved
	}
	return saved
}

func (c *Coordinator) failResult(task *model.Task, start time.Time, msg string) *model.ScrapingResult {
	return &model.ScrapingResult{
		TaskID:        task.TaskID,
		Platform:      task.Platform,
		Success:       false,
		ErrorMessage:  msg,
		ExecutionTime: time.Since(start).Seconds(),
	}
}

func (c *Coordinator) failTask(task *model.Task, start time.Time, msg string) *model.ScrapingResult {
	task.ErrorMessage = msg
	result := c.failResult(task, start, msg)
	if err := c.db.SaveResult(result); err != nil {
		logger.Error("Failed to persist failure result", "task_id", task.TaskID, "error", err)
	}
	return result
}

// ExecuteMultipleTasks 并发执行一批任务，工作协程数受 max_workers 约束。
// 单任务 panic 只损失该任务，输入 N 个任务必然输出 N 个结果，顺序与输入一致。
func (c *Coordinator) ExecuteMultipleTasks(ctx context.Context, tasks []*model.Task) []*model.ScrapingResult {
	results := make([]*model.ScrapingResult, len(tasks))

	maxWorkers := c.cfg.Scraping.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = 5
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxWorkers)

	for i, task := range tasks {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("Task execution panicked", "task_id", task.TaskID, "panic", r)
					msg := fmt.Sprintf("task execution panicked: %v", r)
					results[i] = c.failResult(task, time.Now(), msg)
					// 崩溃的任务也要收敛到终态，不能永远停在 running
					task.ErrorMessage = msg
					if err := task.TransitionTo(model.TaskStatusFailed, time.Now()); err != nil {
						logger.Error("Cannot mark panicked task as failed", "task_id", task.TaskID, "error", err)
					}
					if err := c.db.SaveTask(task); err != nil {
						logger.Error("Failed to persist panicked task", "task_id", task.TaskID, "error", err)
					}
				}
			}()
			results[i] = c.ExecuteSingleTask(gctx, task)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// ScrapePlatform 抓取单个平台的一组分类：逐分类建任务、并发执行、写统计
func (c *Coordinator) ScrapePlatform(ctx context.Context, platform model.Platform, categories, keywords []string, maxPages int) ([]*model.ScrapingResult, error) {
	if len(categories) == 0 {
		categories = c.cfg.PlatformScraping(platform.String()).Categories
	}
	if len(keywords) == 0 {
		keywords = c.cfg.PlatformScraping(platform.String()).Keywords
	}
	if len(categories) == 0 {
		return nil, fmt.Errorf("no categories configured for platform %s", platform)
	}
	logger.Info("Starting platform scraping", "platform", platform, "categories", len(categories))

	tasks := make([]*model.Task, 0, len(categories))
	for _, category := range categories {
		task, err := c.CreateTask(platform, category, keywords, maxPages)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}

	results := c.ExecuteMultipleTasks(ctx, tasks)
	c.writePlatformStatistics(platform, results)
	return results, nil
}

// ScrapeAllPlatforms 抓取全部启用的平台，执行后做跨平台数据整合并输出综合报告
func (c *Coordinator) ScrapeAllPlatforms(ctx context.Context, categories, keywords []string, maxPages int) (map[model.Platform][]*model.ScrapingResult, error) {
	logger.Info("Starting scraping for all platforms")

	var tasks []*model.Task
	for _, platform := range model.AllPlatforms() {
		s, ok := c.scrapers[platform]
		if !ok || !s.Enabled() {
			logger.Info("Skipping disabled platform", "platform", platform)
			continue
		}
		platformCategories := categories
		if len(platformCategories) == 0 {
			platformCategories = c.cfg.PlatformScraping(platform.String()).Categories
		}
		platformKeywords := keywords
		if len(platformKeywords) == 0 {
			platformKeywords = c.cfg.PlatformScraping(platform.String()).Keywords
		}
		for _, category := range platformCategories {
			task, err := c.CreateTask(platform, category, platformKeywords, maxPages)
			if err != nil {
				return nil, err
			}
			tasks = append(tasks, task)
		}
	}
	if len(tasks) == 0 {
		return nil, errors.New("no enabled platforms to scrape")
	}

	all := c.ExecuteMultipleTasks(ctx, tasks)

	grouped := make(map[model.Platform][]*model.ScrapingResult)
	for _, result := range all {
		grouped[result.Platform] = append(grouped[result.Platform], result)
	}

	for platform, results := range grouped {
		c.writePlatformStatistics(platform, results)
	}
	c.integrateData(grouped)
	c.writeComprehensiveReport(grouped)
	return grouped, nil
}

// writePlatformStatistics 按平台追加一行当日统计
func (c *Coordinator) writePlatformStatistics(platform model.Platform, results []*model.ScrapingResult) {
	if len(results) == 0 {
		return
	}
	successful, failed, totalItems := 0, 0, 0
	timeSum := 0.0
	for _, result := range results {
		if result.Success {
			successful++
			totalItems += result.ItemsFound
		} else {
			failed++
		}
		timeSum += result.ExecutionTime
	}

	stat := &model.Statistic{
		Date:             time.Now().Format("2006-01-02"),
		Platform:         platform,
		TotalTasks:       len(results),
		SuccessfulTasks:  successful,
		FailedTasks:      failed,
		TotalItems:       totalItems,
		AvgExecutionTime: timeSum / float64(len(results)),
	}
	if err := c.db.InsertStatistic(stat); err != nil {
		logger.Error("Failed to persist platform statistics", "platform", platform, "error", err)
	}
	logger.Info("Platform scraping report",
		"platform", platform,
		"total_tasks", stat.TotalTasks,
		"successful_tasks", stat.SuccessfulTasks,
		"failed_tasks", stat.FailedTasks,
		"total_items", stat.TotalItems,
		"avg_execution_time", stat.AvgExecutionTime)
}

// integrateData 汇集成功结果做跨平台合并，整合报告落盘
func (c *Coordinator) integrateData(grouped map[model.Platform][]*model.ScrapingResult) {
	byPlatform := make(map[model.Platform][]map[string]any)
	for platform, results := range grouped {
		var records []map[string]any
		for _, result := range results {
			if !result.Success || len(result.Records) == 0 {
				continue
			}
			records = append(records, c.integrator.DeduplicateProducts(result.Records, platform)...)
		}
		byPlatform[platform] = records
	}

	amazonRecords := byPlatform[model.PlatformAmazon]
	tiktokRecords := byPlatform[model.PlatformTikTok]
	if len(amazonRecords) == 0 && len(tiktokRecords) == 0 {
		return
	}

	merged := c.integrator.MergePlatformData(amazonRecords, tiktokRecords)
	logger.Info("Data integration completed",
		"amazon_products", merged.AmazonProducts, "tiktok_products", merged.TikTokProducts)
	c.writeReportFile("integration_report", merged)
}

// comprehensiveReport 综合报告结构
type comprehensiveReport struct {
	Timestamp string                   `json:"timestamp"`
	Summary   reportSummary            `json:"summary"`
	Platforms map[string]reportSummary `json:"platforms"`
}

type reportSummary struct {
	TotalTasks      int     `json:"total_tasks"`
	SuccessfulTasks int     `json:"successful_tasks"`
	FailedTasks     int     `json:"failed_tasks"`
	TotalProducts   int     `json:"total_products"`
	SuccessRate     float64 `json:"success_rate"`
}

// writeComprehensiveReport 输出全平台综合执行报告
func (c *Coordinator) writeComprehensiveReport(grouped map[model.Platform][]*model.ScrapingResult) {
	report := comprehensiveReport{
		Timestamp: time.Now().Format(time.RFC3339),
		Platforms: make(map[string]reportSummary),
	}

	for platform, results := range grouped {
		summary := reportSummary{TotalTasks: len(results)}
		for _, result := range results {
			if result.Success {
				summary.SuccessfulTasks++
				summary.TotalProducts += result.ItemsFound
			} else {
				summary.FailedTasks++
			}
		}
		if summary.TotalTasks > 0 {
			summary.SuccessRate = float64(summary.SuccessfulTasks) / float64(summary.TotalTasks)
		}
		report.Platforms[platform.String()] = summary

		report.Summary.TotalTasks += summary.TotalTasks
		report.Summary.SuccessfulTasks += summary.SuccessfulTasks
		report.Summary.FailedTasks += summary.FailedTasks
		report.Summary.TotalProducts += summary.TotalProducts
	}
	if report.Summary.TotalTasks > 0 {
		report.Summary.SuccessRate = float64(report.Summary.SuccessfulTasks) / float64(report.Summary.TotalTasks)
	}

	c.writeReportFile("comprehensive_report", report)
}

// writeReportFile 报告落盘，文件名带时间戳
func (c *Coordinator) writeReportFile(prefix string, payload any) {
	dir := c.cfg.Report.Dir
	if dir == "" {
		dir = "reports"
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		logger.Error("Failed to create report directory", "dir", dir, "error", err)
		return
	}
	path := filepath.Join(dir, fmt.Sprintf("%s_%s.json", prefix, time.Now().Format("20060102_150405")))
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		logger.Error("Failed to encode report", "error", err)
		return
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		logger.Error("Failed to write report file", "path", path, "error", err)
		return
	}
	logger.Info("Report saved", "path", path)
}

// Status 系统运行状态：平台开关、性能摘要与近7天统计
func (c *Coordinator) Status() map[string]any {
	configStatus := make(map[string]bool, len(c.scrapers))
	for platform, s := range c.scrapers {
		configStatus[platform.String()+"_enabled"] = s.Enabled()
	}

	stats, err := c.db.GetStatistics(7)
	if err != nil {
		logger.Error("Failed to load recent statistics", "error", err)
	}

	return map[string]any{
		"timestamp":         time.Now().Format(time.RFC3339),
		"config_status":     configStatus,
		"performance":       c.monitor.Summary(24),
		"recent_statistics": stats,
	}
}

// Monitor 暴露性能监控器（API层查询性能摘要用）
func (c *Coordinator) Monitor() *Monitor {
	return c.monitor
}

// Task 查询任务详情
func (c *Coordinator) Task(taskID string) (*model.Task, error) {
	return c.db.GetTask(taskID)
}

// Statistics 查询近N天的聚合统计
func (c *Coordinator) Statistics(days int) ([]model.Statistic, error) {
	return c.db.GetStatistics(days)
}

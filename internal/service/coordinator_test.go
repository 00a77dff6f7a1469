package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecomscraperpro/ecomscraperpro/internal/config"
	"github.com/ecomscraperpro/ecomscraperpro/internal/database"
	"github.com/ecomscraperpro/ecomscraperpro/internal/model"
	"github.com/ecomscraperpro/ecomscraperpro/internal/scraper"
)

// stubScraper 测试用抓取适配器
type stubScraper struct {
	platform model.Platform
	enabled  bool
	fail     bool
	delay    time.Duration
	records  []map[string]any
}

func (s *stubScraper) Platform() model.Platform { return s.platform }
func (s *stubScraper) Enabled() bool            { return s.enabled }

func (s *stubScraper) Scrape(ctx context.Context, task *model.Task) (*model.ScrapingResult, error) {
	if s.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.delay):
		}
	}
	if s.fail {
		return &model.ScrapingResult{
			TaskID:       task.TaskID,
			Platform:     s.platform,
			Success:      false,
			ErrorMessage: "simulated scrape failure",
		}, nil
	}
	return &model.ScrapingResult{
		TaskID:     task.TaskID,
		Platform:   s.platform,
		Success:    true,
		Records:    s.records,
		ItemsFound: len(s.records),
	}, nil
}

func validRecords(prefix string, n int) []map[string]any {
	records := make([]map[string]any, 0, n)
	for i := 0; i < n; i++ {
		records = append(records, map[string]any{
			"product_id": fmt.Sprintf("%s_%04d", prefix, i),
			"title":      fmt.Sprintf("印花T恤 - 款式%d", i+1),
			"price":      19.99 + float64(i),
			"category":   "T恤",
			"rating":     4.5,
			"url":        fmt.Sprintf("https://amazon.com/dp/B%08d", i+1),
		})
	}
	return records
}

// panicScraper 模拟崩溃的适配器
type panicScraper struct {
	platform model.Platform
}

func (s *panicScraper) Platform() model.Platform { return s.platform }
func (s *panicScraper) Enabled() bool            { return true }

func (s *panicScraper) Scrape(ctx context.Context, task *model.Task) (*model.ScrapingResult, error) {
	panic("simulated adapter crash")
}

func newTestCoordinator(t *testing.T, scrapers ...scraper.Scraper) (*Coordinator, *database.Database) {
	t.Helper()
	return newTestCoordinatorWorkers(t, 3, scrapers...)
}

func newTestCoordinatorWorkers(t *testing.T, maxWorkers int, scrapers ...scraper.Scraper) (*Coordinator, *database.Database) {
	t.Helper()
	dir := t.TempDir()

	db, err := database.New(config.SQLiteConfig{
		Path:           filepath.Join(dir, "test.db"),
		PoolSize:       4,
		AcquireTimeout: 5 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cfg := &config.Config{}
	cfg.Scraping.MaxWorkers = maxWorkers
	cfg.Report.Dir = filepath.Join(dir, "reports")
	cfg.Monitoring = config.MonitoringConfig{MaxSamples: 1000}

	coordinator := NewCoordinator(cfg, db, scrapers, NewMonitor(cfg.Monitoring))
	return coordinator, db
}

func TestCreateTaskPersistsPending(t *testing.T) {
	coordinator, db := newTestCoordinator(t,
		&stubScraper{platform: model.PlatformAmazon, enabled: true})

	task, err := coordinator.CreateTask(model.PlatformAmazon, "T-Shirt", []string{"print"}, 5)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusPending, task.Status)
	assert.Contains(t, task.TaskID, "amazon_T-Shirt_")

	stored, err := db.GetTask(task.TaskID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusPending, stored.Status)
	assert.Equal(t, []string{"print"}, stored.GetKeywords())
}

func TestCreateTaskRejectsInvalidInput(t *testing.T) {
	coordinator, _ := newTestCoordinator(t)

	_, err := coordinator.CreateTask(model.Platform("ebay"), "T-Shirt", nil, 5)
	assert.Error(t, err)

	_, err = coordinator.CreateTask(model.PlatformAmazon, "", nil, 5)
	assert.Error(t, err)
}

func TestExecuteSingleTaskSuccess(t *testing.T) {
	coordinator, db := newTestCoordinator(t,
		&stubScraper{platform: model.PlatformAmazon, enabled: true, records: validRecords("amz_tshirt", 5)})

	task, err := coordinator.CreateTask(model.PlatformAmazon, "T-Shirt", nil, 5)
	require.NoError(t, err)

	result := coordinator.ExecuteSingleTask(context.Background(), task)
	require.NotNil(t, result)
	assert.True(t, result.Success)
	assert.Equal(t, 5, result.ItemsFound)

	stored, err := db.GetTask(task.TaskID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusSuccess, stored.Status)
	assert.NotNil(t, stored.StartedAt)
	assert.NotNil(t, stored.CompletedAt)
	assert.Equal(t, 5, stored.DataCount)

	// 结果只追加
	results, err := db.GetResultsByTask(task.TaskID)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Success)

	// 清洗后的商品入库
	products, err := db.GetProducts("amazon", "", 100, 0)
	require.NoError(t, err)
	assert.Len(t, products, 5)
	for _, p := range products {
		assert.Equal(t, "tshirt", p.Category)
	}

	// 审计日志回填
	logs, err := db.GetScrapeLogs("amazon", "", 1, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, model.TaskStatusSuccess, logs[0].Status)
	assert.Equal(t, 5, logs[0].RecordsSaved)
}

func TestExecuteSingleTaskDisabledPlatformFailsFast(t *testing.T) {
	coordinator, db := newTestCoordinator(t,
		&stubScraper{platform: model.PlatformTikTok, enabled: false})

	task, err := coordinator.CreateTask(model.PlatformTikTok, "服装", nil, 3)
	require.NoError(t, err)

	result := coordinator.ExecuteSingleTask(context.Background(), task)
	assert.False(t, result.Success)
	assert.Contains(t, result.ErrorMessage, "disabled")

	stored, err := db.GetTask(task.TaskID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusFailed, stored.Status)
	assert.NotEmpty(t, stored.ErrorMessage)
	assert.NotNil(t, stored.CompletedAt)
}

func TestExecuteMultipleTasksNInNOut(t *testing.T) {
	coordinator, _ := newTestCoordinator(t,
		&stubScraper{platform: model.PlatformAmazon, enabled: true, records: validRecords("amz", 2)},
		&stubScraper{platform: model.PlatformTikTok, enabled: true, fail: true})

	var tasks []*model.Task
	for i := 0; i < 2; i++ {
		task, err := coordinator.CreateTask(model.PlatformAmazon, "T-Shirt", nil, 1)
		require.NoError(t, err)
		tasks = append(tasks, task)
	}
	failing, err := coordinator.CreateTask(model.PlatformTikTok, "服装", nil, 1)
	require.NoError(t, err)
	tasks = append(tasks, failing)

	results := coordinator.ExecuteMultipleTasks(context.Background(), tasks)
	require.Len(t, results, 3)

	// 结果顺序与输入一致，单任务失败不影响其它任务
	assert.True(t, results[0].Success)
	assert.True(t, results[1].Success)
	assert.False(t, results[2].Success)
	assert.Equal(t, failing.TaskID, results[2].TaskID)
}

func TestScrapePlatformWritesStatistics(t *testing.T) {
	coordinator, db := newTestCoordinator(t,
		&stubScraper{platform: model.PlatformAmazon, enabled: true, records: validRecords("amz", 3)})

	results, err := coordinator.ScrapePlatform(context.Background(), model.PlatformAmazon,
		[]string{"T-Shirt", "Hoodie"}, []string{"print"}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)

	stats, err := db.GetStatistics(1)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, model.PlatformAmazon, stats[0].Platform)
	assert.Equal(t, 2, stats[0].TotalTasks)
	assert.Equal(t, 2, stats[0].SuccessfulTasks)
	assert.Equal(t, 0, stats[0].FailedTasks)
	assert.Equal(t, 6, stats[0].TotalItems)
}

func TestScrapePlatformRequiresCategories(t *testing.T) {
	coordinator, _ := newTestCoordinator(t,
		&stubScraper{platform: model.PlatformAmazon, enabled: true})

	_, err := coordinator.ScrapePlatform(context.Background(), model.PlatformAmazon, nil, nil, 1)
	assert.Error(t, err)
}

func TestScrapeAllPlatformsSkipsDisabled(t *testing.T) {
	coordinator, db := newTestCoordinator(t,
		&stubScraper{platform: model.PlatformAmazon, enabled: true, records: validRecords("amz", 2)},
		&stubScraper{platform: model.PlatformTikTok, enabled: false})

	grouped, err := coordinator.ScrapeAllPlatforms(context.Background(), []string{"T-Shirt"}, nil, 1)
	require.NoError(t, err)
	require.Contains(t, grouped, model.PlatformAmazon)
	assert.NotContains(t, grouped, model.PlatformTikTok)

	stats, err := db.GetStatistics(1)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, model.PlatformAmazon, stats[0].Platform)
}

func TestCancelPendingTask(t *testing.T) {
	coordinator, db := newTestCoordinator(t,
		&stubScraper{platform: model.PlatformAmazon, enabled: true})

	task, err := coordinator.CreateTask(model.PlatformAmazon, "T-Shirt", nil, 1)
	require.NoError(t, err)

	require.NoError(t, coordinator.CancelTask(task.TaskID))
	stored, err := db.GetTask(task.TaskID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusCancelled, stored.Status)
	assert.NotNil(t, stored.CompletedAt)

	// 终态任务不可再取消
	assert.Error(t, coordinator.CancelTask(task.TaskID))
}

func TestCancelRunningTaskMarksCancelled(t *testing.T) {
	coordinator, db := newTestCoordinator(t,
		&stubScraper{platform: model.PlatformAmazon, enabled: true, delay: 2 * time.Second})

	task, err := coordinator.CreateTask(model.PlatformAmazon, "T-Shirt", nil, 1)
	require.NoError(t, err)

	done := make(chan *model.ScrapingResult, 1)
	go func() {
		done <- coordinator.ExecuteSingleTask(context.Background(), task)
	}()

	// 等待任务进入运行态后请求取消
	require.Eventually(t, func() bool {
		stored, err := db.GetTask(task.TaskID)
		return err == nil && stored.Status == model.TaskStatusRunning
	}, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, coordinator.CancelTask(task.TaskID))

	select {
	case result := <-done:
		assert.False(t, result.Success)
	case <-time.After(5 * time.Second):
		t.Fatal("task did not finish after cancellation")
	}

	stored, err := db.GetTask(task.TaskID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusCancelled, stored.Status)
}

// TestCancelQueuedTaskKeepsTerminalStatus 排队中被取消的任务不再执行，
// 终态不被后续调度回退
func TestCancelQueuedTaskKeepsTerminalStatus(t *testing.T) {
	coordinator, db := newTestCoordinatorWorkers(t, 1,
		&stubScraper{platform: model.PlatformAmazon, enabled: true, delay: 500 * time.Millisecond, records: validRecords("amz", 1)})

	first, err := coordinator.CreateTask(model.PlatformAmazon, "T-Shirt", nil, 1)
	require.NoError(t, err)
	queued, err := coordinator.CreateTask(model.PlatformAmazon, "Hoodie", nil, 1)
	require.NoError(t, err)

	done := make(chan []*model.ScrapingResult, 1)
	go func() {
		done <- coordinator.ExecuteMultipleTasks(context.Background(), []*model.Task{first, queued})
	}()

	// 等第一个任务占满工作池，第二个任务仍在排队且不在运行注册表里
	require.Eventually(t, func() bool {
		stored, err := db.GetTask(first.TaskID)
		return err == nil && stored.Status == model.TaskStatusRunning
	}, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, coordinator.CancelTask(queued.TaskID))

	var results []*model.ScrapingResult
	select {
	case results = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("tasks did not finish")
	}
	require.Len(t, results, 2)
	assert.True(t, results[0].Success)
	assert.False(t, results[1].Success)

	stored, err := db.GetTask(queued.TaskID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusCancelled, stored.Status)
}

// TestExecuteMultipleTasksPanicConvergesToFailed 单任务崩溃只损失该任务，
// 崩溃任务落库为 failed 而不是停留在 running
func TestExecuteMultipleTasksPanicConvergesToFailed(t *testing.T) {
	coordinator, db := newTestCoordinator(t,
		&stubScraper{platform: model.PlatformAmazon, enabled: true, records: validRecords("amz", 1)},
		&panicScraper{platform: model.PlatformTikTok})

	good, err := coordinator.CreateTask(model.PlatformAmazon, "T-Shirt", nil, 1)
	require.NoError(t, err)
	bad, err := coordinator.CreateTask(model.PlatformTikTok, "服装", nil, 1)
	require.NoError(t, err)

	results := coordinator.ExecuteMultipleTasks(context.Background(), []*model.Task{good, bad})
	require.Len(t, results, 2)
	assert.True(t, results[0].Success)
	require.NotNil(t, results[1])
	assert.False(t, results[1].Success)
	assert.Contains(t, results[1].ErrorMessage, "panicked")

	stored, err := db.GetTask(bad.TaskID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusFailed, stored.Status)
	assert.NotNil(t, stored.CompletedAt)
	assert.NotEmpty(t, stored.ErrorMessage)
}

func TestStatusReportsPlatformFlags(t *testing.T) {
	coordinator, _ := newTestCoordinator(t,
		&stubScraper{platform: model.PlatformAmazon, enabled: true},
		&stubScraper{platform: model.PlatformTikTok, enabled: false})

	status := coordinator.Status()
	flags, ok := status["config_status"].(map[string]bool)
	require.True(t, ok)
	assert.True(t, flags["amazon_enabled"])
	assert.False(t, flags["tiktok_enabled"])
}

func TestExecuteSingleTaskNeverReturnsTransportError(t *testing.T) {
	coordinator, _ := newTestCoordinator(t,
		&stubScraper{platform: model.PlatformAmazon, enabled: true, delay: time.Second})

	task, err := coordinator.CreateTask(model.PlatformAmazon, "T-Shirt", nil, 1)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	result := coordinator.ExecuteSingleTask(ctx, task)
	require.NotNil(t, result)
	assert.False(t, result.Success)
	assert.True(t, errors.Is(ctx.Err(), context.DeadlineExceeded))
}

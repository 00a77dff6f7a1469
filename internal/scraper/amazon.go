package scraper

import (
	"context"
	"fmt"
	"time"

	"github.com/ecomscraperpro/ecomscraperpro/internal/config"
	"github.com/ecomscraperpro/ecomscraperpro/internal/model"
	"github.com/ecomscraperpro/ecomscraperpro/pkg/logger"
)

// AmazonScraper Amazon平台抓取适配器。
// 当前实现生成确定性模拟数据，数据形状与真实抓取一致，
// 便于协调器、清洗与持久化链路在无外网环境下完整运转。
type AmazonScraper struct {
	cfg config.PlatformScrapingConfig
}

// NewAmazonScraper 创建Amazon抓取适配器
func NewAmazonScraper(cfg config.PlatformScrapingConfig) *AmazonScraper {
	return &AmazonScraper{cfg: cfg}
}

// Platform 平台标识
func (s *AmazonScraper) Platform() model.Platform {
	return model.PlatformAmazon
}

// Enabled 是否启用
func (s *AmazonScraper) Enabled() bool {
	return s.cfg.Enabled
}

// Scrape 执行Amazon抓取任务
func (s *AmazonScraper) Scrape(ctx context.Context, task *model.Task) (*model.ScrapingResult, error) {
	start := time.Now()
	logger.Info("Starting Amazon scraping task", "task_id", task.TaskID, "category", task.Category)

	if s.cfg.ScrapeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.ScrapeTimeout)
		defer cancel()
	}

	// 模拟网络往返
	if err := sleepCtx(ctx, s.cfg.RequestDelay); err != nil {
		return nil, err
	}

	slug := categorySlug(task.Category)
	count := task.MaxPages * 10
	if count > 50 {
		count = 50
	}
	records := make([]map[string]any, 0, count)
	for i := 0; i < count; i++ {
		records = append(records, map[string]any{
			"product_id":   fmt.Sprintf("amz_%s_%04d", slug, i),
			"title":        fmt.Sprintf("印花%s - 款式%d", task.Category, i+1),
			"price":        round2(19.99 + float64(i)*2.5),
			"category":     task.Category,
			"shop_name":    fmt.Sprintf("品牌%d", i+1),
			"rating":       round1(4.0 + float64(i%10)*0.1),
			"review_count": (i + 1) * 10,
			"sales_count":  (i + 1) * 5,
			"url":          fmt.Sprintf("https://amazon.com/dp/B%08d", i+1),
			"image_url":    fmt.Sprintf("https://m.media-amazon.com/images/I/%d.jpg", i+1),
		})
	}

	logger.Info("Amazon scraping completed", "task_id", task.TaskID, "items_found", len(records))
	return &model.ScrapingResult{
		TaskID:        task.TaskID,
		Platform:      model.PlatformAmazon,
		Success:       true,
		Records:       records,
		ExecutionTime: time.Since(start).Seconds(),
		ItemsFound:    len(records),
	}, nil
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}

func round1(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}

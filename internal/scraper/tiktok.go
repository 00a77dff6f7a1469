package scraper

import (
	"context"
	"fmt"
	"time"

	"github.com/ecomscraperpro/ecomscraperpro/internal/config"
	"github.com/ecomscraperpro/ecomscraperpro/internal/model"
	"github.com/ecomscraperpro/ecomscraperpro/pkg/logger"
)

// TikTokScraper TikTok平台抓取适配器，数据生成方式同Amazon适配器
type TikTokScraper struct {
	cfg config.PlatformScrapingConfig
}

// NewTikTokScraper 创建TikTok抓取适配器
func NewTikTokScraper(cfg config.PlatformScrapingConfig) *TikTokScraper {
	return &TikTokScraper{cfg: cfg}
}

// Platform 平台标识
func (s *TikTokScraper) Platform() model.Platform {
	return model.PlatformTikTok
}

// Enabled 是否启用
func (s *TikTokScraper) Enabled() bool {
	return s.cfg.Enabled
}

// Scrape 执行TikTok抓取任务
func (s *TikTokScraper) Scrape(ctx context.Context, task *model.Task) (*model.ScrapingResult, error) {
	start := time.Now()
	logger.Info("Starting TikTok scraping task", "task_id", task.TaskID, "category", task.Category)

	if s.cfg.ScrapeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.ScrapeTimeout)
		defer cancel()
	}

	if err := sleepCtx(ctx, s.cfg.RequestDelay); err != nil {
		return nil, err
	}

	slug := categorySlug(task.Category)
	count := task.MaxPages * 8
	if count > 40 {
		count = 40
	}
	records := make([]map[string]any, 0, count)
	for i := 0; i < count; i++ {
		records = append(records, map[string]any{
			"product_id":    fmt.Sprintf("tt_%s_%04d", slug, i),
			"title":         fmt.Sprintf("时尚%s - 潮款%d", task.Category, i+1),
			"price":         round2(29.99 + float64(i)*1.8),
			"category":      task.Category,
			"shop_name":     fmt.Sprintf("店铺%d", i+1),
			"rating":        round1(4.2 + float64(i%8)*0.1),
			"review_count":  (i + 1) * 8,
			"sales_count":   (i + 1) * 3,
			"like_count":    (i + 1) * 120,
			"share_count":   (i + 1) * 15,
			"comment_count": (i + 1) * 25,
			"url":           fmt.Sprintf("https://tiktok.com/@shop%d/product/%d", i+1, i+1),
			"image_url":     fmt.Sprintf("https://example.com/images/tt_%d.jpg", i+1),
		})
	}

	logger.Info("TikTok scraping completed", "task_id", task.TaskID, "items_found", len(records))
	return &model.ScrapingResult{
		TaskID:        task.TaskID,
		Platform:      model.PlatformTikTok,
		Success:       true,
		Records:       records,
		ExecutionTime: time.Since(start).Seconds(),
		ItemsFound:    len(records),
	}, nil
}

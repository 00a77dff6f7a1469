package scraper

import (
	"context"
	"strings"
	"time"

	"github.com/ecomscraperpro/ecomscraperpro/internal/model"
)

// Scraper 平台抓取适配器。实现必须遵守 ctx 取消，
// 并把超时窗口控制在适配器内部而非调用方。
type Scraper interface {
	// Platform 适配器服务的平台
	Platform() model.Platform
	// Enabled 平台是否启用（禁用平台的任务直接快速失败）
	Enabled() bool
	// Scrape 执行一次抓取，返回带记录的执行结果；
	// 正常的业务失败通过 result.Success=false 表达，error 仅表示 ctx 被取消
	Scrape(ctx context.Context, task *model.Task) (*model.ScrapingResult, error)
}

// sleepCtx 可被取消的延迟，用于模拟网络等待与礼貌抓取间隔
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// categorySlug 分类名转为产品ID中使用的小写片段
func categorySlug(category string) string {
	return strings.ToLower(strings.TrimSpace(category))
}

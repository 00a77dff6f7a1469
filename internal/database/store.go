package database

import (
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ecomscraperpro/ecomscraperpro/internal/model"
	"github.com/ecomscraperpro/ecomscraperpro/pkg/logger"
)

// ==================== 任务与结果 ====================

// SaveTask 保存任务（按 task_id upsert，每次状态迁移都会落库）
func (d *Database) SaveTask(task *model.Task) error {
	return d.WithRetry(func(db *gorm.DB) error {
		return db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "task_id"}},
			UpdateAll: true,
		}).Create(task).Error
	}, 3, 50*time.Millisecond)
}

// GetTask 按ID查询任务
func (d *Database) GetTask(taskID string) (*model.Task, error) {
	var task model.Task
	if err := d.gorm().First(&task, "task_id = ?", taskID).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

// GetTasks 查询任务列表
func (d *Database) GetTasks(platform string, status string, limit int) ([]model.Task, error) {
	if limit <= 0 {
		limit = 100
	}
	query := d.gorm().Model(&model.Task{})
	if platform != "" {
		query = query.Where("platform = ?", platform)
	}
	if status != "" {
		query = query.Where("status = ?", status)
	}
	var tasks []model.Task
	err := query.Order("created_at DESC").Limit(limit).Find(&tasks).Error
	return tasks, err
}

// SaveResult 保存执行结果（只追加，重跑产生新行）
func (d *Database) SaveResult(result *model.ScrapingResult) error {
	if err := result.EncodeRecords(); err != nil {
		return err
	}
	return d.WithRetry(func(db *gorm.DB) error {
		return db.Create(result).Error
	}, 3, 50*time.Millisecond)
}

// GetResultsByTask 查询任务的全部执行结果
func (d *Database) GetResultsByTask(taskID string) ([]model.ScrapingResult, error) {
	var results []model.ScrapingResult
	err := d.gorm().Where("task_id = ?", taskID).Order("timestamp ASC").Find(&results).Error
	return results, err
}

// ==================== 商品 ====================

// UpsertProducts 批量保存商品，(platform, product_id) 冲突时覆盖旧值。
// 单条失败（触发器拒绝等）不影响批次其余记录，返回成功条数。
func (d *Database) UpsertProducts(products []*model.Product) (int, error) {
	saved := 0
	for _, p := range products {
		p.LastUpdatedAt = time.Now()
		err := d.WithRetry(func(db *gorm.DB) error {
			return db.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "platform"}, {Name: "product_id"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"title", "category", "price", "original_price", "currency",
					"rating", "review_count", "sales_count",
					"store_name", "store_url", "url", "image_url",
					"like_count", "share_count", "comment_count", "view_count",
					"raw_data", "scraped_at", "last_updated_at", "is_active",
				}),
			}).Create(p).Error
		}, 3, 50*time.Millisecond)
		if err != nil {
			logger.Error("Failed to save product", "platform", p.Platform, "product_id", p.ProductID, "error", err)
			continue
		}
		saved++
	}
	return saved, nil
}

// GetProducts 查询商品列表（仅活跃商品）
func (d *Database) GetProducts(platform, category string, limit, offset int) ([]model.Product, error) {
	if limit <= 0 {
		limit = 100
	}
	query := d.gorm().Model(&model.Product{}).Where("is_active = ?", true)
	if platform != "" {
		query = query.Where("platform = ?", platform)
	}
	if category != "" {
		query = query.Where("category = ?", category)
	}
	var products []model.Product
	err := query.Order("last_updated_at DESC").Limit(limit).Offset(offset).Find(&products).Error
	return products, err
}

// GetProductByKey 按唯一键查询商品
func (d *Database) GetProductByKey(platform model.Platform, productID string) (*model.Product, error) {
	var product model.Product
	err := d.gorm().First(&product, "platform = ? AND product_id = ?", platform, productID).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// SoftDeleteProduct 软删除商品
func (d *Database) SoftDeleteProduct(id uint) error {
	return d.gorm().Model(&model.Product{}).Where("id = ?", id).Update("is_active", false).Error
}

// UpdateProductPrice 更新商品价格并追加价格历史
func (d *Database) UpdateProductPrice(productID uint, price, originalPrice float64) error {
	return d.Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"price":           price,
			"last_updated_at": time.Now(),
		}
		if originalPrice > 0 {
			updates["original_price"] = originalPrice
		}
		if err := tx.Model(&model.Product{}).Where("id = ?", productID).Updates(updates).Error; err != nil {
			return err
		}

		discountPercent := 0
		if originalPrice > 0 {
			discountPercent = int((originalPrice - price) / originalPrice * 100)
		}
		return tx.Create(&model.PriceHistory{
			ProductID:       productID,
			Price:           price,
			OriginalPrice:   originalPrice,
			DiscountPercent: discountPercent,
		}).Error
	})
}

// GetPriceHistory 查询商品价格历史
func (d *Database) GetPriceHistory(productID uint, days int) ([]model.PriceHistory, error) {
	if days <= 0 {
		days = 30
	}
	cutoff := time.Now().AddDate(0, 0, -days)
	var history []model.PriceHistory
	err := d.gorm().
		Where("product_id = ? AND recorded_at >= ?", productID, cutoff).
		Order("recorded_at ASC").
		Find(&history).Error
	return history, err
}

// ==================== 热度评论 ====================

// InsertHotComment 插入商品热度评论
func (d *Database) InsertHotComment(comment *model.HotComment) error {
	return d.gorm().Create(comment).Error
}

// GetHotComments 查询商品热度评论，按点赞数排序
func (d *Database) GetHotComments(productID uint, limit int) ([]model.HotComment, error) {
	if limit <= 0 {
		limit = 50
	}
	var comments []model.HotComment
	err := d.gorm().
		Where("product_id = ?", productID).
		Order("likes_count DESC, captured_at DESC").
		Limit(limit).
		Find(&comments).Error
	return comments, err
}

// ==================== 审计日志 ====================

// InsertScrapeLog 插入任务执行审计日志
func (d *Database) InsertScrapeLog(log *model.ScrapeLog) error {
	return d.WithRetry(func(db *gorm.DB) error {
		return db.Create(log).Error
	}, 3, 50*time.Millisecond)
}

// UpdateScrapeLog 回填审计日志的完成状态
func (d *Database) UpdateScrapeLog(logID string, status model.TaskStatus, recordsFound, recordsSaved int, errMsg string) error {
	now := time.Now()
	return d.gorm().Model(&model.ScrapeLog{}).Where("id = ?", logID).Updates(map[string]interface{}{
		"status":        status,
		"records_found": recordsFound,
		"records_saved": recordsSaved,
		"error_message": errMsg,
		"completed_at":  now,
	}).Error
}

// GetScrapeLogs 查询审计日志
func (d *Database) GetScrapeLogs(platform, status string, days, limit int) ([]model.ScrapeLog, error) {
	if days <= 0 {
		days = 7
	}
	if limit <= 0 {
		limit = 100
	}
	cutoff := time.Now().AddDate(0, 0, -days)
	query := d.gorm().Model(&model.ScrapeLog{}).Where("started_at >= ?", cutoff)
	if platform != "" {
		query = query.Where("platform = ?", platform)
	}
	if status != "" {
		query = query.Where("status = ?", status)
	}
	var logs []model.ScrapeLog
	err := query.Order("started_at DESC").Limit(limit).Find(&logs).Error
	return logs, err
}

// ==================== 统计 ====================

// InsertStatistic 写入一行统计（每次 scrape_platform 调用追加一行，不做同日合并）
func (d *Database) InsertStatistic(stat *model.Statistic) error {
	return d.WithRetry(func(db *gorm.DB) error {
		return db.Create(stat).Error
	}, 3, 50*time.Millisecond)
}

// GetStatistics 查询最近N天统计
func (d *Database) GetStatistics(days int) ([]model.Statistic, error) {
	if days <= 0 {
		days = 7
	}
	startDate := time.Now().AddDate(0, 0, -days).Format("2006-01-02")
	var stats []model.Statistic
	err := d.gorm().
		Where("date >= ?", startDate).
		Order("date DESC, platform ASC").
		Find(&stats).Error
	return stats, err
}

// DatabaseStats 数据库整体统计信息
func (d *Database) DatabaseStats() (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	type tableCount struct {
		name  string
		model interface{}
	}
	tables := []tableCount{
		{"products_count", &model.Product{}},
		{"hot_comments_count", &model.HotComment{}},
		{"price_history_count", &model.PriceHistory{}},
		{"scrape_logs_count", &model.ScrapeLog{}},
		{"tasks_count", &model.Task{}},
		{"results_count", &model.ScrapingResult{}},
	}
	for _, t := range tables {
		var count int64
		if err := d.gorm().Model(t.model).Count(&count).Error; err != nil {
			return nil, fmt.Errorf("failed to count table: %w", err)
		}
		stats[t.name] = count
	}

	var activeProducts int64
	if err := d.gorm().Model(&model.Product{}).Where("is_active = ?", true).Count(&activeProducts).Error; err != nil {
		return nil, err
	}
	stats["active_products"] = activeProducts

	today := time.Now().Format("2006-01-02")
	var todayFailed int64
	if err := d.gorm().Model(&model.ScrapeLog{}).
		Where("status = ? AND date(started_at) = ?", model.TaskStatusFailed, today).
		Count(&todayFailed).Error; err != nil {
		return nil, err
	}
	stats["today_failed_tasks"] = todayFailed

	stats["pool"] = d.PoolStats()
	return stats, nil
}

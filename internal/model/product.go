package model

import (
	"time"
)

// Product 平台商品（统一结构），(platform, product_id) 全局唯一
type Product struct {
	ID        uint     `json:"id" gorm:"primaryKey;autoIncrement"`
	ProductID string   `json:"product_id" gorm:"type:varchar(128);not null;uniqueIndex:idx_products_platform_pid,priority:2"`
	Platform  Platform `json:"platform" gorm:"type:varchar(16);not null;uniqueIndex:idx_products_platform_pid,priority:1;index:idx_products_platform_category,priority:1"`
	Title     string   `json:"title" gorm:"type:text;not null"`
	Category  string   `json:"category" gorm:"type:varchar(64);index:idx_products_platform_category,priority:2"`

	// 价格信息
	Price         float64 `json:"price"`
	OriginalPrice float64 `json:"original_price"`
	Currency      string  `json:"currency" gorm:"type:varchar(8);default:'USD'"`

	// 销售数据
	Rating      float64 `json:"rating"`
	ReviewCount int     `json:"review_count"`
	SalesCount  int     `json:"sales_count"`

	// 店铺与链接
	StoreName string `json:"store_name" gorm:"type:varchar(256)"`
	StoreURL  string `json:"store_url" gorm:"type:text"`
	URL       string `json:"url" gorm:"type:text"`
	ImageURL  string `json:"image_url" gorm:"type:text"`

	// 热度数据
	LikeCount    int `json:"like_count"`
	ShareCount   int `json:"share_count"`
	CommentCount int `json:"comment_count"`
	ViewCount    int `json:"view_count"`

	// 原始载荷留档
	RawData string `json:"raw_data" gorm:"type:text"`

	ScrapedAt     time.Time `json:"scraped_at"`
	FirstSeenAt   time.Time `json:"first_seen_at" gorm:"autoCreateTime"`
	LastUpdatedAt time.Time `json:"last_updated_at" gorm:"autoUpdateTime;index"`
	IsActive      bool      `json:"is_active" gorm:"not null;default:true"`
}

// TableName 表名
func (Product) TableName() string {
	return "products"
}

// HotComment 商品热度评论，随商品级联删除
type HotComment struct {
	ID              uint       `json:"id" gorm:"primaryKey;autoIncrement"`
	ProductID       uint       `json:"product_id" gorm:"not null;index"`
	CommentText     string     `json:"comment_text" gorm:"type:text;not null"`
	CommentAuthor   string     `json:"comment_author" gorm:"type:varchar(256)"`
	AuthorFollowers int        `json:"author_followers"`
	LikesCount      int        `json:"likes_count" gorm:"not null;default:0;index"`
	RepliesCount    int        `json:"replies_count" gorm:"not null;default:0"`
	CommentDate     *time.Time `json:"comment_date"`
	CapturedAt      time.Time  `json:"captured_at" gorm:"autoCreateTime"`
}

// TableName 表名
func (HotComment) TableName() string {
	return "hot_comments"
}

// PriceHistory 商品价格历史，只追加
type PriceHistory struct {
	ID              uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	ProductID       uint      `json:"product_id" gorm:"not null;index:idx_price_history_product_date,priority:1"`
	Price           float64   `json:"price" gorm:"not null"`
	OriginalPrice   float64   `json:"original_price"`
	DiscountPercent int       `json:"discount_percent"`
	RecordedAt      time.Time `json:"recorded_at" gorm:"autoCreateTime;index:idx_price_history_product_date,priority:2"`
}

// TableName 表名
func (PriceHistory) TableName() string {
	return "price_history"
}

// ScrapeLog 任务执行审计日志
type ScrapeLog struct {
	ID           string     `json:"id" gorm:"primaryKey;type:varchar(64)"`
	TaskID       string     `json:"task_id" gorm:"type:varchar(128);not null;index"`
	Platform     Platform   `json:"platform" gorm:"type:varchar(16);not null;index:idx_scrape_logs_platform_date,priority:1"`
	Category     string     `json:"category" gorm:"type:varchar(128);not null"`
	TaskType     string     `json:"task_type" gorm:"type:varchar(32);not null"`
	Status       TaskStatus `json:"status" gorm:"type:varchar(16);not null;index"`
	RecordsFound int        `json:"records_found" gorm:"not null;default:0"`
	RecordsSaved int        `json:"records_saved" gorm:"not null;default:0"`
	ErrorMessage string     `json:"error_message" gorm:"type:text"`
	StartedAt    time.Time  `json:"started_at" gorm:"index:idx_scrape_logs_platform_date,priority:2"`
	CompletedAt  *time.Time `json:"completed_at"`
	DurationMS   int64      `json:"duration_ms"`
}

// TableName 表名
func (ScrapeLog) TableName() string {
	return "scrape_logs"
}

// Statistic 按日期与平台聚合的抓取统计，一次 scrape_platform 写一行
type Statistic struct {
	StatID           uint      `json:"stat_id" gorm:"primaryKey;autoIncrement"`
	Date             string    `json:"date" gorm:"type:varchar(10);not null;index:idx_statistics_date_platform,priority:1"`
	Platform         Platform  `json:"platform" gorm:"type:varchar(16);not null;index:idx_statistics_date_platform,priority:2"`
	TotalTasks       int       `json:"total_tasks" gorm:"not null;default:0"`
	SuccessfulTasks  int       `json:"successful_tasks" gorm:"not null;default:0"`
	FailedTasks      int       `json:"failed_tasks" gorm:"not null;default:0"`
	TotalItems       int       `json:"total_items" gorm:"not null;default:0"`
	AvgExecutionTime float64   `json:"avg_execution_time"`
	CreatedAt        time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName 表名
func (Statistic) TableName() string {
	return "statistics"
}

package scraper

import (
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"

	"github.com/ecomscraperpro/ecomscraperpro/internal/model"
	"github.com/ecomscraperpro/ecomscraperpro/pkg/logger"
)

// categoryMappings 分类同义词表，命中任一关键词即归一到标准分类。
// sweatshirt 必须先于 tshirt 匹配，否则其子串 tshirt 会抢先命中。
var categoryMappings = []struct {
	standard string
	keywords []string
}{
	{"sweatshirt", []string{"sweatshirt", "sweater", "毛衣", "针织衫", "长袖衫", "套头衫"}},
	{"hoodie", []string{"hoodie", "hooded", "卫衣", "连帽衫", "帽衫", "拉链衫"}},
	{"tshirt", []string{"tshirt", "t-shirt", "t shirt", "tee", "T恤", "t恤", "短袖", "短袖衫"}},
}

const (
	maxPrice       = 1000.0
	maxTitleLength = 200
)

var (
	htmlTagPattern    = regexp.MustCompile(`<[^>]+>`)
	whitespacePattern = regexp.MustCompile(`\s+`)
	numberPattern     = regexp.MustCompile(`\d+\.?\d*`)
	digitsPattern     = regexp.MustCompile(`\d+`)
)

// Cleaner 清洗抓取原始记录为规范商品结构。
// 无状态，可在并发任务间共享。
type Cleaner struct{}

// NewCleaner 创建数据清洗器
func NewCleaner() *Cleaner {
	return &Cleaner{}
}

// Clean 清洗单条原始记录。标题为空、价格非正或平台非法时返回 nil，
// 该记录从批次中剔除而不中断批次。
func (c *Cleaner) Clean(record map[string]any, platform model.Platform) *model.Product {
	if !platform.Valid() {
		return nil
	}

	title := c.CleanTitle(asString(record["title"]))
	if title == "" {
		return nil
	}

	price := c.ParsePrice(record["price"])
	if price <= 0 {
		return nil
	}

	raw, err := json.Marshal(record)
	if err != nil {
		logger.Warn("Failed to encode raw record", "error", err)
		raw = []byte("{}")
	}

	now := time.Now()
	return &model.Product{
		ProductID:     asString(record["product_id"]),
		Platform:      platform,
		Title:         title,
		Category:      c.MapCategory(asString(record["category"])),
		Price:         price,
		OriginalPrice: c.ParsePrice(record["original_price"]),
		Currency:      "USD",
		Rating:        c.ParseRating(record["rating"]),
		ReviewCount:   parseCount(record["review_count"]),
		SalesCount:    parseCount(record["sales_count"]),
		StoreName:     c.CleanText(asString(record["shop_name"])),
		StoreURL:      c.ValidateURL(asString(record["shop_url"])),
		URL:           c.ValidateURL(asString(record["url"])),
		ImageURL:      c.ValidateURL(asString(record["image_url"])),
		LikeCount:     parseCount(record["like_count"]),
		ShareCount:    parseCount(record["share_count"]),
		CommentCount:  parseCount(record["comment_count"]),
		ViewCount:     parseCount(record["view_count"]),
		RawData:       string(raw),
		ScrapedAt:     now,
		LastUpdatedAt: now,
		IsActive:      true,
	}
}

// CleanBatch 批量清洗，跳过不可修复的记录，返回规范商品列表
func (c *Cleaner) CleanBatch(records []map[string]any, platform model.Platform) []*model.Product {
	products := make([]*model.Product, 0, len(records))
	dropped := 0
	for _, record := range records {
		product := c.Clean(record, platform)
		if product == nil {
			dropped++
			continue
		}
		products = append(products, product)
	}
	if dropped > 0 {
		logger.Warn("Dropped unrecoverable records during cleaning",
			"platform", platform, "dropped", dropped, "kept", len(products))
	}
	return products
}

// CleanTitle 清理标题：去HTML标签、折叠空白、Unicode归一化、截断超长
func (c *Cleaner) CleanTitle(title string) string {
	title = htmlTagPattern.ReplaceAllString(title, "")
	title = whitespacePattern.ReplaceAllString(title, " ")
	title = strings.TrimSpace(title)
	// 全角字符与兼容字符统一为标准形式
	title = width.Narrow.String(norm.NFKC.String(title))
	runes := []rune(title)
	if len(runes) > maxTitleLength {
		title = string(runes[:maxTitleLength]) + "..."
	}
	return title
}

// CleanText 清理普通文本字段
func (c *Cleaner) CleanText(text string) string {
	text = htmlTagPattern.ReplaceAllString(text, "")
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(text, " "))
}

// MapCategory 分类归一化，未命中同义词表时原样返回小写值，
// 交由入库触发器做最终裁决
func (c *Cleaner) MapCategory(category string) string {
	normalized := strings.ToLower(strings.TrimSpace(norm.NFKC.String(category)))
	if normalized == "" {
		return "other"
	}
	for _, mapping := range categoryMappings {
		for _, keyword := range mapping.keywords {
			if strings.Contains(normalized, strings.ToLower(keyword)) {
				return mapping.standard
			}
		}
	}
	return normalized
}

// ParsePrice 解析价格：接受数字与带货币符号的字符串，
// 超出上限截断到上限，不可解析返回0
func (c *Cleaner) ParsePrice(value any) float64 {
	var price float64
	switch v := value.(type) {
	case float64:
		price = v
	case float32:
		price = float64(v)
	case int:
		price = float64(v)
	case int64:
		price = float64(v)
	case json.Number:
		price, _ = v.Float64()
	case string:
		match := numberPattern.FindString(width.Narrow.String(v))
		if match == "" {
			return 0
		}
		price, _ = strconv.ParseFloat(match, 64)
	default:
		return 0
	}
	if price < 0 {
		return 0
	}
	if price > maxPrice {
		price = maxPrice
	}
	return round2(price)
}

// ParseRating 解析评分并收敛到 [0, 5]
func (c *Cleaner) ParseRating(value any) float64 {
	var rating float64
	switch v := value.(type) {
	case float64:
		rating = v
	case float32:
		rating = float64(v)
	case int:
		rating = float64(v)
	case json.Number:
		rating, _ = v.Float64()
	case string:
		match := numberPattern.FindString(v)
		if match == "" {
			return 0
		}
		rating, _ = strconv.ParseFloat(match, 64)
	default:
		return 0
	}
	if rating < 0 {
		return 0
	}
	if rating > 5 {
		return 5
	}
	return round1(rating)
}

// ValidateURL 校验URL，无效时返回空串；无协议时补全 https
func (c *Cleaner) ValidateURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return ""
	}
	parsed.Host = strings.ToLower(parsed.Host)
	return parsed.String()
}

// parseCount 解析计数字段为非负整数
func parseCount(value any) int {
	switch v := value.(type) {
	case int:
		if v < 0 {
			return 0
		}
		return v
	case int64:
		if v < 0 {
			return 0
		}
		return int(v)
	case float64:
		if v < 0 {
			return 0
		}
		return int(v)
	case json.Number:
		n, _ := v.Int64()
		if n < 0 {
			return 0
		}
		return int(n)
	case string:
		digits := strings.Join(digitsPattern.FindAllString(v, -1), "")
		if digits == "" {
			return 0
		}
		n, err := strconv.Atoi(digits)
		if err != nil || n < 0 {
			return 0
		}
		return n
	}
	return 0
}

func asString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case nil:
		return ""
	case fmt.Stringer:
		return v.String()
	}
	return fmt.Sprintf("%v", value)
}

package service

import (
	"fmt"
	"sort"

	"github.com/ecomscraperpro/ecomscraperpro/internal/model"
	"github.com/ecomscraperpro/ecomscraperpro/pkg/logger"
)

// PriceStats 单平台价格区间统计
type PriceStats struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
}

// MergedData 跨平台合并结果
type MergedData struct {
	TotalProducts  int                   `json:"total_products"`
	AmazonProducts int                   `json:"amazon_products"`
	TikTokProducts int                   `json:"tiktok_products"`
	PriceRanges    map[string]PriceStats `json:"price_ranges"`
	Categories     map[string]int        `json:"categories"`
	TopRated       []map[string]any      `json:"top_rated"`
}

// Integrator 跨任务数据整合器：去重、质量校验与平台合并
type Integrator struct{}

// NewIntegrator 创建数据整合器
func NewIntegrator() *Integrator {
	return &Integrator{}
}

// DeduplicateProducts 按 (platform, product_id) 去重，保留首次出现的记录
func (g *Integrator) DeduplicateProducts(records []map[string]any, platform model.Platform) []map[string]any {
	seen := make(map[string]struct{}, len(records))
	deduplicated := make([]map[string]any, 0, len(records))
	for _, record := range records {
		key := fmt.Sprintf("%s_%v", platform, record["product_id"])
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		deduplicated = append(deduplicated, record)
	}
	if removed := len(records) - len(deduplicated); removed > 0 {
		logger.Info("Deduplicated scraped records", "platform", platform, "removed", removed)
	}
	return deduplicated
}

// ValidateDataQuality 数据质量校验，返回是否全部通过与逐条问题描述
func (g *Integrator) ValidateDataQuality(records []map[string]any) (bool, []string) {
	var issues []string
	for i, record := range records {
		if s, _ := record["title"].(string); s == "" {
			issues = append(issues, fmt.Sprintf("产品%d缺少标题", i+1))
		}
		if price, ok := toFloat(record["price"]); ok && price <= 0 {
			issues = append(issues, fmt.Sprintf("产品%d价格无效", i+1))
		}
		if s, _ := record["product_id"].(string); s == "" {
			issues = append(issues, fmt.Sprintf("产品%d缺少产品ID", i+1))
		}
	}
	return len(issues) == 0, issues
}

// MergePlatformData 合并两个平台的记录：总量、价格区间、分类分布与评分Top5
func (g *Integrator) MergePlatformData(amazonData, tiktokData []map[string]any) *MergedData {
	merged := &MergedData{
		TotalProducts:  len(amazonData) + len(tiktokData),
		AmazonProducts: len(amazonData),
		TikTokProducts: len(tiktokData),
		PriceRanges: map[string]PriceStats{
			model.PlatformAmazon.String(): priceStats(amazonData),
			model.PlatformTikTok.String(): priceStats(tiktokData),
		},
		Categories: make(map[string]int),
	}

	all := make([]map[string]any, 0, merged.TotalProducts)
	all = append(all, amazonData...)
	all = append(all, tiktokData...)

	for _, record := range all {
		category, _ := record["category"].(string)
		if category == "" {
			category = "未分类"
		}
		merged.Categories[category]++
	}

	// 稳定排序保证同分记录维持 amazon 在前的输入顺序
	sort.SliceStable(all, func(i, j int) bool {
		ri, _ := toFloat(all[i]["rating"])
		rj, _ := toFloat(all[j]["rating"])
		return ri > rj
	})
	top := 5
	if len(all) < top {
		top = len(all)
	}
	merged.TopRated = all[:top]

	return merged
}

// priceStats 价格区间统计；仅统计价格为正的记录，空集合返回零值
func priceStats(records []map[string]any) PriceStats {
	var stats PriceStats
	count := 0
	sum := 0.0
	for _, record := range records {
		price, ok := toFloat(record["price"])
		if !ok || price <= 0 {
			continue
		}
		if count == 0 || price < stats.Min {
			stats.Min = price
		}
		if price > stats.Max {
			stats.Max = price
		}
		sum += price
		count++
	}
	if count > 0 {
		stats.Avg = sum / float64(count)
	}
	return stats
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

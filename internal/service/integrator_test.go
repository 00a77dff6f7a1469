package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecomscraperpro/ecomscraperpro/internal/model"
)

func TestDeduplicateProductsKeepsFirstOccurrence(t *testing.T) {
	integrator := NewIntegrator()

	records := []map[string]any{
		{"product_id": "p1", "title": "first"},
		{"product_id": "p2", "title": "second"},
		{"product_id": "p1", "title": "duplicate"},
	}
	deduplicated := integrator.DeduplicateProducts(records, model.PlatformAmazon)
	require.Len(t, deduplicated, 2)
	assert.Equal(t, "first", deduplicated[0]["title"])
	assert.Equal(t, "second", deduplicated[1]["title"])
}

func TestValidateDataQuality(t *testing.T) {
	integrator := NewIntegrator()

	ok, issues := integrator.ValidateDataQuality([]map[string]any{
		{"product_id": "p1", "title": "印花T恤", "price": 19.99},
	})
	assert.True(t, ok)
	assert.Empty(t, issues)

	ok, issues = integrator.ValidateDataQuality([]map[string]any{
		{"product_id": "p1", "price": 19.99},             // 缺标题
		{"product_id": "p2", "title": "卫衣", "price": 0.0}, // 价格无效
		{"title": "毛衣", "price": 9.99},                    // 缺产品ID
	})
	assert.False(t, ok)
	require.Len(t, issues, 3)
	assert.Equal(t, "产品1缺少标题", issues[0])
	assert.Equal(t, "产品2价格无效", issues[1])
	assert.Equal(t, "产品3缺少产品ID", issues[2])
}

func TestMergePlatformData(t *testing.T) {
	integrator := NewIntegrator()

	amazon := []map[string]any{
		{"product_id": "a1", "price": 10.0, "rating": 4.0, "category": "tshirt"},
		{"product_id": "a2", "price": 30.0, "rating": 4.8, "category": "tshirt"},
	}
	tiktok := []map[string]any{
		{"product_id": "t1", "price": 20.0, "rating": 4.8, "category": "hoodie"},
	}

	merged := integrator.MergePlatformData(amazon, tiktok)
	assert.Equal(t, 3, merged.TotalProducts)
	assert.Equal(t, 2, merged.AmazonProducts)
	assert.Equal(t, 1, merged.TikTokProducts)

	amazonPrices := merged.PriceRanges["amazon"]
	assert.Equal(t, 10.0, amazonPrices.Min)
	assert.Equal(t, 30.0, amazonPrices.Max)
	assert.Equal(t, 20.0, amazonPrices.Avg)

	assert.Equal(t, 2, merged.Categories["tshirt"])
	assert.Equal(t, 1, merged.Categories["hoodie"])

	// Top榜按评分降序，同分保持amazon在前的输入顺序
	require.Len(t, merged.TopRated, 3)
	assert.Equal(t, "a2", merged.TopRated[0]["product_id"])
	assert.Equal(t, "t1", merged.TopRated[1]["product_id"])
	assert.Equal(t, "a1", merged.TopRated[2]["product_id"])
}

func TestMergePlatformDataEmptyInputs(t *testing.T) {
	integrator := NewIntegrator()

	merged := integrator.MergePlatformData(nil, nil)
	assert.Equal(t, 0, merged.TotalProducts)
	assert.Equal(t, PriceStats{}, merged.PriceRanges["amazon"])
	assert.Equal(t, PriceStats{}, merged.PriceRanges["tiktok"])
	assert.Empty(t, merged.TopRated)
}

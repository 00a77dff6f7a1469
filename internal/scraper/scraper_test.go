package scraper

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecomscraperpro/ecomscraperpro/internal/config"
	"github.com/ecomscraperpro/ecomscraperpro/internal/model"
)

func TestAmazonScraperDeterministicDataset(t *testing.T) {
	s := NewAmazonScraper(config.PlatformScrapingConfig{Enabled: true})
	task := &model.Task{TaskID: "amazon_T-Shirt_1", Platform: model.PlatformAmazon, Category: "T-Shirt", MaxPages: 2}

	result, err := s.Scrape(context.Background(), task)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, model.PlatformAmazon, result.Platform)

	// max_pages * 10，上限50
	require.Len(t, result.Records, 20)
	assert.Equal(t, 20, result.ItemsFound)

	first := result.Records[0]
	assert.Equal(t, "amz_t-shirt_0000", first["product_id"])
	assert.Equal(t, 19.99, first["price"])
	assert.Equal(t, 4.0, first["rating"])

	// 页数放大后数据量封顶
	task.MaxPages = 100
	result, err = s.Scrape(context.Background(), task)
	require.NoError(t, err)
	assert.Len(t, result.Records, 50)
}

func TestTikTokScraperDeterministicDataset(t *testing.T) {
	s := NewTikTokScraper(config.PlatformScrapingConfig{Enabled: true})
	task := &model.Task{TaskID: "tiktok_服装_1", Platform: model.PlatformTikTok, Category: "服装", MaxPages: 3}

	result, err := s.Scrape(context.Background(), task)
	require.NoError(t, err)
	assert.True(t, result.Success)

	// max_pages * 8，上限40
	require.Len(t, result.Records, 24)
	assert.Equal(t, "tt_服装_0000", result.Records[0]["product_id"])
	assert.Equal(t, 29.99, result.Records[0]["price"])

	task.MaxPages = 100
	result, err = s.Scrape(context.Background(), task)
	require.NoError(t, err)
	assert.Len(t, result.Records, 40)
}

func TestScrapeHonorsContextCancellation(t *testing.T) {
	s := NewAmazonScraper(config.PlatformScrapingConfig{
		Enabled:      true,
		RequestDelay: 5 * time.Second,
	})
	task := &model.Task{TaskID: "amazon_T-Shirt_2", Platform: model.PlatformAmazon, Category: "T-Shirt", MaxPages: 1}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := s.Scrape(ctx, task)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestScrapeTimeoutBoundsDelay(t *testing.T) {
	s := NewTikTokScraper(config.PlatformScrapingConfig{
		Enabled:       true,
		RequestDelay:  5 * time.Second,
		ScrapeTimeout: 50 * time.Millisecond,
	})
	task := &model.Task{TaskID: "tiktok_服装_2", Platform: model.PlatformTikTok, Category: "服装", MaxPages: 1}

	start := time.Now()
	_, err := s.Scrape(context.Background(), task)
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

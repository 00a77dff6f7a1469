package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecomscraperpro/ecomscraperpro/internal/config"
	"github.com/ecomscraperpro/ecomscraperpro/internal/model"
)

func monitorConfig() config.MonitoringConfig {
	return config.MonitoringConfig{
		ResponseTimeThreshold: 30 * time.Second,
		FailureRateThreshold:  0.3,
		MaxSamples:            10000,
	}
}

func TestMonitorSummaryNoData(t *testing.T) {
	monitor := NewMonitor(monitorConfig())

	summary := monitor.Summary(24)
	assert.Equal(t, "没有性能数据", summary.Message)
	assert.Empty(t, summary.Platforms)
}

func TestMonitorSummaryPerPlatform(t *testing.T) {
	monitor := NewMonitor(monitorConfig())

	monitor.RecordExecution(model.PlatformAmazon, 2.0, true, 50)
	monitor.RecordExecution(model.PlatformAmazon, 4.0, false, 0)
	monitor.RecordExecution(model.PlatformTikTok, 3.0, true, 40)

	summary := monitor.Summary(24)
	require.Contains(t, summary.Platforms, "amazon")
	require.Contains(t, summary.Platforms, "tiktok")

	amazon := summary.Platforms["amazon"]
	assert.Equal(t, 2, amazon.TotalExecutions)
	assert.Equal(t, 1, amazon.SuccessfulExecutions)
	assert.Equal(t, 3.0, amazon.AvgExecutionTime)
	assert.Equal(t, 50, amazon.TotalItems)
	assert.Equal(t, 0.5, amazon.SuccessRate)

	tiktok := summary.Platforms["tiktok"]
	assert.Equal(t, 1, tiktok.TotalExecutions)
	assert.Equal(t, 1.0, tiktok.SuccessRate)
}

func TestMonitorTrimsSamples(t *testing.T) {
	cfg := monitorConfig()
	cfg.MaxSamples = 10
	monitor := NewMonitor(cfg)

	for i := 0; i < 25; i++ {
		monitor.RecordExecution(model.PlatformAmazon, 1.0, true, 1)
	}
	assert.Equal(t, 10, monitor.SampleCount())

	// 裁剪后保留的是最近样本
	summary := monitor.Summary(24)
	assert.Equal(t, 10, summary.Platforms["amazon"].TotalExecutions)
}

func TestMonitorSummaryWindow(t *testing.T) {
	monitor := NewMonitor(monitorConfig())
	monitor.RecordExecution(model.PlatformAmazon, 1.0, true, 10)

	// 样本刚写入，任何正窗口都应包含
	summary := monitor.Summary(1)
	require.Contains(t, summary.Platforms, "amazon")

	// 非法窗口回落到默认24小时
	summary = monitor.Summary(0)
	require.Contains(t, summary.Platforms, "amazon")
}

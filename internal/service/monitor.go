package service

import (
	"sync"
	"time"

	"github.com/ecomscraperpro/ecomscraperpro/internal/config"
	"github.com/ecomscraperpro/ecomscraperpro/internal/model"
	"github.com/ecomscraperpro/ecomscraperpro/pkg/logger"
)

// ExecutionSample 单次任务执行的性能样本
type ExecutionSample struct {
	Timestamp     time.Time      `json:"timestamp"`
	Platform      model.Platform `json:"platform"`
	ExecutionTime float64        `json:"execution_time"`
	Success       bool           `json:"success"`
	ItemsCount    int            `json:"items_count"`
}

// PlatformPerformance 单平台性能摘要
type PlatformPerformance struct {
	TotalExecutions      int     `json:"total_executions"`
	SuccessfulExecutions int     `json:"successful_executions"`
	AvgExecutionTime     float64 `json:"avg_execution_time"`
	TotalItems           int     `json:"total_items"`
	SuccessRate          float64 `json:"success_rate"`
}

// PerformanceSummary 性能摘要；无样本时仅填充 Message
type PerformanceSummary struct {
	Message   string                         `json:"message,omitempty"`
	Platforms map[string]PlatformPerformance `json:"platforms,omitempty"`
}

// Monitor 内存性能监控器。样本只保留最近 MaxSamples 条，
// 进程重启后数据清空，持久化统计由 statistics 表承担。
type Monitor struct {
	cfg config.MonitoringConfig

	mu      sync.Mutex
	samples []ExecutionSample
}

// NewMonitor 创建性能监控器
func NewMonitor(cfg config.MonitoringConfig) *Monitor {
	return &Monitor{cfg: cfg}
}

// RecordExecution 记录一次任务执行，超过响应时间阈值时告警
func (m *Monitor) RecordExecution(platform model.Platform, executionTime float64, success bool, itemsCount int) {
	sample := ExecutionSample{
		Timestamp:     time.Now(),
		Platform:      platform,
		ExecutionTime: executionTime,
		Success:       success,
		ItemsCount:    itemsCount,
	}

	m.mu.Lock()
	m.samples = append(m.samples, sample)
	if max := m.cfg.MaxSamples; max > 0 && len(m.samples) > max {
		m.samples = m.samples[len(m.samples)-max:]
	}
	m.mu.Unlock()

	if threshold := m.cfg.ResponseTimeThreshold; threshold > 0 && executionTime > threshold.Seconds() {
		logger.Warn("Slow task execution detected",
			"platform", platform, "execution_time", executionTime, "threshold", threshold.Seconds())
	}
}

// Summary 统计最近 hours 小时内各平台的执行情况
func (m *Monitor) Summary(hours int) *PerformanceSummary {
	if hours <= 0 {
		hours = 24
	}
	cutoff := time.Now().Add(-time.Duration(hours) * time.Hour)

	m.mu.Lock()
	recent := make([]ExecutionSample, 0, len(m.samples))
	for _, sample := range m.samples {
		if sample.Timestamp.After(cutoff) {
			recent = append(recent, sample)
		}
	}
	m.mu.Unlock()

	if len(recent) == 0 {
		return &PerformanceSummary{Message: "没有性能数据"}
	}

	summary := &PerformanceSummary{Platforms: make(map[string]PlatformPerformance)}
	for _, platform := range model.AllPlatforms() {
		var total, successful, items int
		var timeSum float64
		for _, sample := range recent {
			if sample.Platform != platform {
				continue
			}
			total++
			if sample.Success {
				successful++
			}
			items += sample.ItemsCount
			timeSum += sample.ExecutionTime
		}
		if total == 0 {
			continue
		}
		perf := PlatformPerformance{
			TotalExecutions:      total,
			SuccessfulExecutions: successful,
			AvgExecutionTime:     timeSum / float64(total),
			TotalItems:           items,
			SuccessRate:          float64(successful) / float64(total),
		}
		summary.Platforms[platform.String()] = perf

		failureRate := 1 - perf.SuccessRate
		if threshold := m.cfg.FailureRateThreshold; threshold > 0 && failureRate > threshold {
			logger.Warn("High task failure rate",
				"platform", platform, "failure_rate", failureRate, "threshold", threshold)
		}
	}
	return summary
}

// SampleCount 当前内存样本数
func (m *Monitor) SampleCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.samples)
}

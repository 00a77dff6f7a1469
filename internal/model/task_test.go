package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestTaskStatusTransitions 任务状态机只允许前进
func TestTaskStatusTransitions(t *testing.T) {
	// 合法路径
	assert.True(t, TaskStatusPending.CanTransition(TaskStatusRunning))
	assert.True(t, TaskStatusPending.CanTransition(TaskStatusCancelled))
	assert.True(t, TaskStatusRunning.CanTransition(TaskStatusSuccess))
	assert.True(t, TaskStatusRunning.CanTransition(TaskStatusFailed))
	assert.True(t, TaskStatusRunning.CanTransition(TaskStatusCancelled))

	// 禁止回退与终态再迁移
	assert.False(t, TaskStatusPending.CanTransition(TaskStatusSuccess), "pending不能直接到success")
	assert.False(t, TaskStatusSuccess.CanTransition(TaskStatusRunning))
	assert.False(t, TaskStatusFailed.CanTransition(TaskStatusRunning))
	assert.False(t, TaskStatusCancelled.CanTransition(TaskStatusRunning))
	assert.False(t, TaskStatusSuccess.CanTransition(TaskStatusFailed))
}

// TestTaskTransitionTimestamps 状态迁移固化时间戳
func TestTaskTransitionTimestamps(t *testing.T) {
	task := &Task{TaskID: "amazon_tshirt_1", Platform: PlatformAmazon, Status: TaskStatusPending}

	startAt := time.Now()
	require.NoError(t, task.TransitionTo(TaskStatusRunning, startAt))
	require.NotNil(t, task.StartedAt)
	assert.Equal(t, startAt, *task.StartedAt)
	assert.Nil(t, task.CompletedAt)

	doneAt := startAt.Add(3 * time.Second)
	require.NoError(t, task.TransitionTo(TaskStatusSuccess, doneAt))
	require.NotNil(t, task.CompletedAt)
	assert.Equal(t, doneAt, *task.CompletedAt)

	// 终态后的迁移全部拒绝，completed_at 不再变化
	err := task.TransitionTo(TaskStatusFailed, doneAt.Add(time.Second))
	assert.Error(t, err)
	assert.Equal(t, doneAt, *task.CompletedAt)
}

// TestTaskCancelledFromRunning 运行中任务可取消并固化完成时间
func TestTaskCancelledFromRunning(t *testing.T) {
	task := &Task{TaskID: "tiktok_服装_2", Platform: PlatformTikTok, Status: TaskStatusPending}
	require.NoError(t, task.TransitionTo(TaskStatusRunning, time.Now()))

	cancelAt := time.Now()
	require.NoError(t, task.TransitionTo(TaskStatusCancelled, cancelAt))
	assert.True(t, task.Status.Terminal())
	require.NotNil(t, task.CompletedAt)
	assert.Equal(t, cancelAt, *task.CompletedAt)
}

// TestTaskKeywordsRoundTrip 关键词序列化往返
func TestTaskKeywordsRoundTrip(t *testing.T) {
	task := &Task{}
	task.SetKeywords([]string{"print", "印花", "graphic"})
	assert.Equal(t, []string{"print", "印花", "graphic"}, task.GetKeywords())

	task.SetKeywords(nil)
	assert.Equal(t, "[]", task.Keywords)
	assert.Empty(t, task.GetKeywords())

	// 脏数据不崩溃
	task.Keywords = "not-json"
	assert.Empty(t, task.GetKeywords())
}

// TestScrapingResultRecordsRoundTrip 结果记录编解码往返
func TestScrapingResultRecordsRoundTrip(t *testing.T) {
	result := &ScrapingResult{
		TaskID:   "amazon_tshirt_3",
		Platform: PlatformAmazon,
		Success:  true,
		Records: []map[string]any{
			{"product_id": "amz_tshirt_0001", "title": "印花T-Shirt - 款式1", "price": 19.99},
		},
	}
	require.NoError(t, result.EncodeRecords())
	require.NotEmpty(t, result.Data)

	decoded := &ScrapingResult{Data: result.Data}
	require.NoError(t, decoded.DecodeRecords())
	require.Len(t, decoded.Records, 1)
	assert.Equal(t, "amz_tshirt_0001", decoded.Records[0]["product_id"])

	// 空记录编码为空串
	empty := &ScrapingResult{}
	require.NoError(t, empty.EncodeRecords())
	assert.Empty(t, empty.Data)
}

// TestParsePlatform 平台枚举解析
func TestParsePlatform(t *testing.T) {
	p, err := ParsePlatform("amazon")
	require.NoError(t, err)
	assert.Equal(t, PlatformAmazon, p)

	_, err = ParsePlatform("ebay")
	assert.Error(t, err)

	assert.False(t, Platform("").Valid())
	assert.Equal(t, []Platform{PlatformAmazon, PlatformTikTok}, AllPlatforms())
}

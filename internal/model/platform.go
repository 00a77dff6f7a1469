package model

import "fmt"

// Platform 抓取平台枚举
type Platform string

const (
	PlatformAmazon Platform = "amazon"
	PlatformTikTok Platform = "tiktok"
)

// AllPlatforms 全部平台（顺序固定，报告输出按此顺序）
func AllPlatforms() []Platform {
	return []Platform{PlatformAmazon, PlatformTikTok}
}

// ParsePlatform 解析平台名
func ParsePlatform(s string) (Platform, error) {
	switch Platform(s) {
	case PlatformAmazon:
		return PlatformAmazon, nil
	case PlatformTikTok:
		return PlatformTikTok, nil
	}
	return "", fmt.Errorf("unsupported platform: %s", s)
}

// Valid 平台是否合法
func (p Platform) Valid() bool {
	switch p {
	case PlatformAmazon, PlatformTikTok:
		return true
	}
	return false
}

func (p Platform) String() string {
	return string(p)
}

// TaskStatus 任务状态枚举
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusSuccess   TaskStatus = "success"
	TaskStatusFailed    TaskStatus = "failed"
	// TaskStatusRetrying 适配器内部重试时的瞬态状态，不作为持久化的独立状态
	TaskStatusRetrying  TaskStatus = "retrying"
	TaskStatusCancelled TaskStatus = "cancelled"
)

// Terminal 是否为终态
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskStatusSuccess, TaskStatusFailed, TaskStatusCancelled:
		return true
	}
	return false
}

// CanTransition 状态只允许前进：pending→running→{success,failed}，
// cancelled 可从 pending 或 running 到达
func (s TaskStatus) CanTransition(to TaskStatus) bool {
	switch s {
	case TaskStatusPending:
		return to == TaskStatusRunning || to == TaskStatusCancelled
	case TaskStatusRunning:
		return to == TaskStatusSuccess || to == TaskStatusFailed || to == TaskStatusCancelled
	}
	return false
}

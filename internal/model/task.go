package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Task 抓取任务
type Task struct {
	TaskID       string     `json:"task_id" gorm:"primaryKey;type:varchar(128)"`
	Platform     Platform   `json:"platform" gorm:"type:varchar(16);not null;index"`
	Category     string     `json:"category" gorm:"type:varchar(128);not null"`
	Keywords     string     `json:"-" gorm:"type:text;not null;default:'[]'"`
	MaxPages     int        `json:"max_pages" gorm:"not null;default:5"`
	RetryCount   int        `json:"retry_count" gorm:"not null;default:0"`
	MaxRetries   int        `json:"max_retries" gorm:"not null;default:3"`
	Status       TaskStatus `json:"status" gorm:"type:varchar(16);not null;default:'pending';index"`
	CreatedAt    time.Time  `json:"created_at" gorm:"autoCreateTime"`
	StartedAt    *time.Time `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at"`
	ErrorMessage string     `json:"error_message" gorm:"type:text"`
	DataCount    int        `json:"data_count" gorm:"not null;default:0"`
}

// TableName 表名
func (Task) TableName() string {
	return "tasks"
}

// TransitionTo 执行状态迁移；终态时固化 completed_at，禁止状态回退
func (t *Task) TransitionTo(status TaskStatus, now time.Time) error {
	if !t.Status.CanTransition(status) {
		return fmt.Errorf("invalid task status transition: %s -> %s", t.Status, status)
	}
	t.Status = status
	switch status {
	case TaskStatusRunning:
		started := now
		t.StartedAt = &started
	case TaskStatusSuccess, TaskStatusFailed, TaskStatusCancelled:
		completed := now
		t.CompletedAt = &completed
	}
	return nil
}

// SetKeywords 序列化关键词列表
func (t *Task) SetKeywords(keywords []string) {
	if keywords == nil {
		keywords = []string{}
	}
	data, _ := json.Marshal(keywords)
	t.Keywords = string(data)
}

// GetKeywords 反序列化关键词列表
func (t *Task) GetKeywords() []string {
	var keywords []string
	if err := json.Unmarshal([]byte(t.Keywords), &keywords); err != nil {
		return []string{}
	}
	return keywords
}

// ScrapingResult 单次任务执行结果，创建后不可变，重跑追加新行
type ScrapingResult struct {
	ResultID      uint             `json:"result_id" gorm:"primaryKey;autoIncrement"`
	TaskID        string           `json:"task_id" gorm:"type:varchar(128);not null;index"`
	Platform      Platform         `json:"platform" gorm:"type:varchar(16);not null"`
	Success       bool             `json:"success" gorm:"not null"`
	Data          string           `json:"-" gorm:"column:data;type:text"`
	ErrorMessage  string           `json:"error_message" gorm:"type:text"`
	ExecutionTime float64          `json:"execution_time"` // 执行时长，秒
	ItemsFound    int              `json:"items_found" gorm:"not null;default:0"`
	Timestamp     time.Time        `json:"timestamp" gorm:"autoCreateTime"`
	Records       []map[string]any `json:"data" gorm:"-"`
}

// TableName 表名
func (ScrapingResult) TableName() string {
	return "results"
}

// EncodeRecords 将内存记录编码进持久化列
func (r *ScrapingResult) EncodeRecords() error {
	if len(r.Records) == 0 {
		r.Data = ""
		return nil
	}
	data, err := json.Marshal(r.Records)
	if err != nil {
		return fmt.Errorf("failed to encode result records: %w", err)
	}
	r.Data = string(data)
	return nil
}

// DecodeRecords 从持久化列还原内存记录
func (r *ScrapingResult) DecodeRecords() error {
	if r.Data == "" {
		r.Records = nil
		return nil
	}
	return json.Unmarshal([]byte(r.Data), &r.Records)
}

package storage

import "time"

// Run 表示一次完整的目标执行记录。
type Run struct {
	// ID 为自增主键（内部使用）。
	ID uint64 `gorm:"primaryKey"`
	// SessionID 为本次会话的外部标识（UUID），便于跨表关联与检索。
	SessionID string `gorm:"size:64;not null;index"`
	// Objective 为用户给出的目标原文。
	Objective string `gorm:"type:text;not null"`
	// Agent 为执行使用的后端名称（gemini/ollama/huggingface/ark）。
	Agent string `gorm:"size:32;not null;index"`
	// Mode 为执行使用的会话模式名称。
	Mode string `gorm:"size:32;not null"`
	// Outcome 为终局状态（succeeded/failed/stuck/exhausted）。
	Outcome string `gorm:"size:16;not null;index"`
	// Answer 为模型给出的最终答案；失败时为空。
	Answer string `gorm:"type:text"`
	// ErrorDetail 为失败原因描述；成功时为空。
	ErrorDetail string `gorm:"type:text"`
	// StepCount 为完成的步骤数。
	StepCount int `gorm:"not null"`
	// StartedAt/FinishedAt 为执行起止时间（UTC）。
	StartedAt  time.Time `gorm:"not null;index"`
	FinishedAt time.Time `gorm:"not null"`
	// CreatedAt 为写入数据库时间，默认自动填充。
	CreatedAt time.Time `gorm:"not null;autoCreateTime"`
}

// StepRecord 表示执行过程中的一个步骤。
type StepRecord struct {
	// ID 为自增主键（内部使用）。
	ID uint64 `gorm:"primaryKey"`
	// RunID 关联 Run.ID；与 Ordinal 组成联合索引保证按序读取。
	RunID uint64 `gorm:"not null;index:idx_step_records_run_ordinal,priority:1"`
	// Ordinal 为步骤在执行中的序号（从 1 开始）。
	Ordinal int `gorm:"not null;index:idx_step_records_run_ordinal,priority:2"`
	// Thought 为该步的推理文本。
	Thought string `gorm:"type:text"`
	// Action 为工具名；终止步为空。
	Action string `gorm:"size:64"`
	// InputJSON 为工具参数的规范化 JSON。
	InputJSON string `gorm:"type:text"`
	// Observation 为工具返回的观察文本。
	Observation string `gorm:"type:text"`
	// IsFinal 标记终止步。
	IsFinal bool `gorm:"not null"`
	// FinalAnswer 终止步的最终答案。
	FinalAnswer string `gorm:"type:text"`
	// CreatedAt 为写入数据库时间，默认自动填充。
	CreatedAt time.Time `gorm:"not null;autoCreateTime"`
}

package entity

import "time"

// GenerationStats 描述批量生成循环的进度，进程内仅存在一份。
//
// 生命周期：从空集合启动新运行时清零；集合非空时的暂停/恢复保留计数；
// 循环停止（达标、用户停止或出错）后冻结。
type GenerationStats struct {
	TotalGenerated   int       `json:"totalGenerated"`
	CompletedBatches int       `json:"completedBatches"`
	IsGenerating     bool      `json:"isGenerating"`
	StartedAt        time.Time `json:"startedAt,omitempty"`
	ElapsedSeconds   int       `json:"elapsedSeconds"`
}

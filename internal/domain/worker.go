package domain

import (
	"strings"
	"time"
)

type WorkerParams struct {
	MaxHours float64 `json:"maxHours"`
	Priority int     `json:"priority"`
	F1Status bool    `json:"f1Status"` // 国际学生，只影响排序
}

// Worker 是参与排班的助理，Availability 固定为 7 个 96 位的串（周一到周日，'0' 空闲，'1' 忙碌）
type Worker struct {
	UserID       int64        `json:"userID"`
	FullName     string       `json:"fullName"`
	Availability []string     `json:"availability"`
	Params       WorkerParams `json:"params"`
	UpdatedAt    time.Time    `json:"updatedAt"`
	Version      int32        `json:"-"`
}

// HasAvailability 判断助理是否提交过至少一个空闲时间片
func (w *Worker) HasAvailability() bool {
	for _, day := range w.Availability {
		if strings.Contains(day, "0") {
			return true
		}
	}
	return false
}

// WeeklySchedule 是一次排班的结果：助理 ID -> 7 个 96 位的串（'1' 表示排班）
// 没有排到任何班的助理可能不在其中
type WeeklySchedule map[int64][]string

// Clone 深拷贝整个班表
func (ws WeeklySchedule) Clone() WeeklySchedule {
	clone := make(WeeklySchedule, len(ws))
	for id, days := range ws {
		clone[id] = append([]string(nil), days...)
	}
	return clone
}

// AssignedSlots 统计班表中所有被排班的时间片数
func (ws WeeklySchedule) AssignedSlots() int {
	total := 0
	for _, days := range ws {
		for _, day := range days {
			total += strings.Count(day, "1")
		}
	}
	return total
}

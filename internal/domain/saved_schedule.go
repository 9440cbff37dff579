package domain

import "time"

type SavedScheduleAssignment struct {
	WorkerID int64    `json:"workerID"`
	Days     []string `json:"days"`
}

type SavedSchedule struct {
	ID               int64                     `json:"id"`
	Name             string                    `json:"name"`
	WeekStart        time.Time                 `json:"weekStart"`
	MaxManHours      float64                   `json:"maxManHours"`
	MinStaffPerShift int                       `json:"minStaffPerShift"`
	Cost             int                       `json:"cost"`
	Published        bool                      `json:"published"`
	Assignments      []SavedScheduleAssignment `json:"assignments"`
	CreatedAt        time.Time                 `json:"createdAt"`
	Version          int32                     `json:"-"`
}

// Week 把保存的排班转换回 WeeklySchedule
func (s *SavedSchedule) Week() WeeklySchedule {
	week := make(WeeklySchedule, len(s.Assignments))
	for _, a := range s.Assignments {
		week[a.WorkerID] = a.Days
	}
	return week
}

// WorkerScheduleWeek 是某个助理在一份已发布排班中的班次
type WorkerScheduleWeek struct {
	ScheduleID   int64     `json:"scheduleID"`
	ScheduleName string    `json:"scheduleName"`
	WeekStart    time.Time `json:"weekStart"`
	Days         []string  `json:"days"`
}

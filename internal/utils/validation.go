package utils

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sysu-ecnc-dev/slot-scheduler/backend/internal/domain"
	"github.com/sysu-ecnc-dev/slot-scheduler/backend/internal/timegrid"
)

const hourEpsilon = 1e-9

// ValidateAvailability 检查空闲时间是否恰好为 7 个长度为 96 且只包含 '0' 和 '1' 的串
func ValidateAvailability(days []string) error {
	if len(days) != timegrid.DaysPerWeek {
		return fmt.Errorf("空闲时间必须包含 %d 天，实际为 %d 天", timegrid.DaysPerWeek, len(days))
	}

	for i, day := range days {
		if len(day) != timegrid.SlotsPerDay {
			return fmt.Errorf("%s的空闲时间长度必须为 %d，实际为 %d", timegrid.DayName(i), timegrid.SlotsPerDay, len(day))
		}
		if strings.Trim(day, "01") != "" {
			return fmt.Errorf("%s的空闲时间只能包含 0 和 1", timegrid.DayName(i))
		}
	}

	return nil
}

func ValidateWorker(w *domain.Worker) error {
	if w == nil {
		return errors.New("助理不能为空")
	}
	if err := ValidateAvailability(w.Availability); err != nil {
		return fmt.Errorf("助理 %d: %w", w.UserID, err)
	}
	if w.Params.MaxHours < 0 {
		return fmt.Errorf("助理 %d 的最大工时不能为负数", w.UserID)
	}
	if w.Params.Priority < 0 {
		return fmt.Errorf("助理 %d 的优先级不能为负数", w.UserID)
	}
	return nil
}

func getWorkerByID(workers []*domain.Worker, id int64) *domain.Worker {
	for _, w := range workers {
		if w.UserID == id {
			return w
		}
	}
	return nil
}

// ValidateWeekWithAvailability 检查班表中每一个排班的时间片，对应的助理在该时间片都是空闲的
func ValidateWeekWithAvailability(schedule domain.WeeklySchedule, workers []*domain.Worker) error {
	for id, days := range schedule {
		w := getWorkerByID(workers, id)
		if w == nil {
			return fmt.Errorf("班表中 id 为 %d 的助理没有提交空闲时间", id)
		}
		if len(days) != timegrid.DaysPerWeek {
			return fmt.Errorf("id 为 %d 的助理的班表必须包含 %d 天", id, timegrid.DaysPerWeek)
		}

		for d, bits := range days {
			if len(bits) != timegrid.SlotsPerDay {
				return fmt.Errorf("id 为 %d 的助理%s的班表长度必须为 %d", id, timegrid.DayName(d), timegrid.SlotsPerDay)
			}
			for slot := 0; slot < len(bits); slot++ {
				if bits[slot] == '1' && w.Availability[d][slot] != '0' {
					return fmt.Errorf("id 为 %d 的助理在%s %s 没有空闲时间", id, timegrid.DayName(d), timegrid.SlotClock(slot))
				}
			}
		}
	}

	return nil
}

// ValidateWorkerHourCaps 返回班表中工时超过自身上限的助理 ID
func ValidateWorkerHourCaps(schedule domain.WeeklySchedule, workers []*domain.Worker) []int64 {
	violations := []int64{}
	for _, w := range workers {
		days, ok := schedule[w.UserID]
		if !ok {
			continue
		}

		slots := 0
		for _, bits := range days {
			slots += strings.Count(bits, "1")
		}
		if float64(slots)/timegrid.SlotsPerHour > w.Params.MaxHours+hourEpsilon {
			violations = append(violations, w.UserID)
		}
	}
	return violations
}

// ValidateWorkersForScheduling 在排班前做的检查：有人提交了空闲时间、有人设置了最大工时、总工时不超过所有人的上限之和
func ValidateWorkersForScheduling(workers []*domain.Worker, totalHours float64) error {
	if len(workers) == 0 {
		return errors.New("没有找到任何助理")
	}

	hasAvailability := false
	hasHours := false
	totalMaxHours := 0.0
	for _, w := range workers {
		if w.HasAvailability() {
			hasAvailability = true
		}
		if w.Params.MaxHours > 0 {
			hasHours = true
		}
		totalMaxHours += w.Params.MaxHours
	}

	if !hasAvailability {
		return errors.New("没有助理提交过空闲时间")
	}
	if !hasHours {
		return errors.New("没有助理设置最大工时")
	}
	if totalHours > totalMaxHours+hourEpsilon {
		return fmt.Errorf("总工时 (%g) 超过了所有助理最大工时之和 (%g)", totalHours, totalMaxHours)
	}

	return nil
}

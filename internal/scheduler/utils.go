package scheduler

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/sysu-ecnc-dev/slot-scheduler/backend/internal/domain"
	"github.com/sysu-ecnc-dev/slot-scheduler/backend/internal/timegrid"
)

// 工时换算成时间片数，向下取整，保证排出的时间片折算成工时后不会超过给定的工时
func hoursToSlots(hours float64) int {
	if hours <= 0 {
		return 0
	}
	return int(math.Floor(hours*timegrid.SlotsPerHour + 1e-9))
}

func slotsToHours(slots int) float64 {
	return float64(slots) / timegrid.SlotsPerHour
}

// normalizeDays 去重并排序，为空时返回一周七天
func normalizeDays(days []int) []int {
	if len(days) == 0 {
		all := make([]int, timegrid.DaysPerWeek)
		for i := range all {
			all[i] = i
		}
		return all
	}

	normalized := slices.Clone(days)
	slices.Sort(normalized)
	return slices.Compact(normalized)
}

func validateParameters(p *Parameters) error {
	if p == nil {
		return fmt.Errorf("排班参数不能为空")
	}
	if p.MaxManHours < 0 {
		return fmt.Errorf("总工时不能为负数")
	}
	if p.MinStaffPerShift < 1 {
		return fmt.Errorf("每个时间片最少人数必须大于 0")
	}
	if p.ValidHours.Start < 0 || p.ValidHours.End >= timegrid.SlotsPerDay || p.ValidHours.Start > p.ValidHours.End {
		return fmt.Errorf("允许排班的时间片 [%d, %d] 不合法", p.ValidHours.Start, p.ValidHours.End)
	}
	for _, d := range p.ValidDays {
		if d < 0 || d >= timegrid.DaysPerWeek {
			return fmt.Errorf("允许排班的日子 %d 不合法", d)
		}
	}
	return nil
}

// runsInDay 返回一天中所有连续 '1' 段
func runsInDay(bits string) []Island {
	runs := []Island{}
	start := -1
	for i := 0; i <= len(bits); i++ {
		if i < len(bits) && bits[i] == '1' {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			runs = append(runs, Island{Start: start, End: i - 1})
			start = -1
		}
	}
	return runs
}

// sameSchedule 比较两份班表，不存在的助理与全 0 的助理视为相同
func sameSchedule(a, b domain.WeeklySchedule) bool {
	empty := strings.Repeat("0", timegrid.SlotsPerDay)
	dayAt := func(ws domain.WeeklySchedule, id int64, d int) string {
		days, ok := ws[id]
		if !ok || d >= len(days) {
			return empty
		}
		return days[d]
	}

	ids := make(map[int64]struct{}, len(a)+len(b))
	for id := range a {
		ids[id] = struct{}{}
	}
	for id := range b {
		ids[id] = struct{}{}
	}

	for id := range ids {
		for d := 0; d < timegrid.DaysPerWeek; d++ {
			if dayAt(a, id, d) != dayAt(b, id, d) {
				return false
			}
		}
	}
	return true
}

// Similarity 计算 other 与 primary 重合的排班时间片占 primary 全部排班时间片的比例
func Similarity(primary, other domain.WeeklySchedule) float64 {
	total, overlap := 0, 0
	for id, days := range primary {
		otherDays := other[id]
		for d, bits := range days {
			for slot := 0; slot < len(bits); slot++ {
				if bits[slot] != '1' {
					continue
				}
				total++
				if d < len(otherDays) && slot < len(otherDays[d]) && otherDays[d][slot] == '1' {
					overlap++
				}
			}
		}
	}

	if total == 0 {
		return 0
	}
	return float64(overlap) / float64(total)
}

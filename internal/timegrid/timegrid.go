// Package timegrid 定义一周 7 天 × 96 个 15 分钟时间片的固定时间网格，
// 以及时间片下标与日历时间之间的转换。排班核心只使用时间片下标，
// 这里的转换只在边界层（提交空闲时间、导出班表）使用。
package timegrid

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	DaysPerWeek  = 7
	SlotsPerDay  = 96
	SlotsPerHour = 4
	SlotDuration = 15 * time.Minute
)

var dayNames = [DaysPerWeek]string{"周一", "周二", "周三", "周四", "周五", "周六", "周日"}

// Event 表示日历上的一段时间
type Event struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// DayName 返回第 day 天（周一为 0）的中文名称
func DayName(day int) string {
	if day < 0 || day >= DaysPerWeek {
		return ""
	}
	return dayNames[day]
}

// Weekday 返回 t 是一周中的第几天，周一为 0，周日为 6
func Weekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

func minuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// SlotFloor 返回 t 所在的时间片下标
func SlotFloor(t time.Time) int {
	return minuteOfDay(t) / 15
}

// SlotCeil 返回 t 向上取整后的时间片下标，最大为 SlotsPerDay
func SlotCeil(t time.Time) int {
	return min((minuteOfDay(t)+14)/15, SlotsPerDay)
}

// SlotClock 把时间片下标转换成 "15:04" 格式的时刻
func SlotClock(slot int) string {
	return fmt.Sprintf("%02d:%02d", slot/SlotsPerHour, slot%SlotsPerHour*15)
}

func parseClockMinutes(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "24:00" {
		return 24 * 60, nil
	}
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("时刻 %q 格式错误", s)
	}
	return minuteOfDay(t), nil
}

// ParseClockRange 解析形如 "09:00-17:00" 的时间段，返回左闭右开的时间片区间 [start, end)
func ParseClockRange(s string) (int, int, error) {
	parts := strings.Split(s, "-")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("时间段 %q 格式错误", s)
	}

	startMinute, err := parseClockMinutes(parts[0])
	if err != nil {
		return 0, 0, err
	}
	endMinute, err := parseClockMinutes(parts[1])
	if err != nil {
		return 0, 0, err
	}
	if endMinute <= startMinute {
		return 0, 0, fmt.Errorf("时间段 %q 的结束时刻必须晚于开始时刻", s)
	}

	return startMinute / 15, min((endMinute+14)/15, SlotsPerDay), nil
}

// NextMonday 返回下一个周一的零点，今天是周一时返回下周一
func NextMonday(now time.Time) time.Time {
	days := (DaysPerWeek - Weekday(now)) % DaysPerWeek
	if days == 0 {
		days = DaysPerWeek
	}
	y, m, d := now.Date()
	return time.Date(y, m, d+days, 0, 0, 0, 0, now.Location())
}

// BusyWeek 返回整周都没空的空闲时间表
func BusyWeek() []string {
	week := make([]string, DaysPerWeek)
	for i := range week {
		week[i] = strings.Repeat("1", SlotsPerDay)
	}
	return week
}

// AvailabilityFromEvents 把空闲事件转换成每天 96 位的空闲时间串（'0' 为空闲，'1' 为忙碌）
// 跨越零点的事件只保留开始当天的部分
func AvailabilityFromEvents(events []Event) ([]string, error) {
	days := make([][]byte, DaysPerWeek)
	for i := range days {
		days[i] = []byte(strings.Repeat("1", SlotsPerDay))
	}

	for i, event := range events {
		if event.Start.IsZero() {
			return nil, errors.New("事件缺少开始时间")
		}
		end := event.End
		if end.IsZero() {
			end = event.Start
		}
		if end.Before(event.Start) {
			return nil, fmt.Errorf("第 %d 个事件的结束时间早于开始时间", i+1)
		}

		day := Weekday(event.Start)
		startSlot := SlotFloor(event.Start)
		endSlot := SlotsPerDay

		sy, sm, sd := event.Start.Date()
		ey, em, ed := end.Date()
		if sy == ey && sm == em && sd == ed {
			endSlot = SlotCeil(end)
		}

		for slot := startSlot; slot < endSlot; slot++ {
			days[day][slot] = '0'
		}
	}

	week := make([]string, DaysPerWeek)
	for i, day := range days {
		week[i] = string(day)
	}
	return week, nil
}

// EventsFromDay 把某一天的排班串中每一段连续的 '1' 转换成一个事件
func EventsFromDay(anchor time.Time, day int, bits string) []Event {
	events := []Event{}
	base := anchor.AddDate(0, 0, day)

	start := -1
	for slot := 0; slot <= len(bits); slot++ {
		if slot < len(bits) && bits[slot] == '1' {
			if start < 0 {
				start = slot
			}
			continue
		}
		if start >= 0 {
			events = append(events, Event{
				Start: base.Add(time.Duration(start) * SlotDuration),
				End:   base.Add(time.Duration(slot) * SlotDuration),
			})
			start = -1
		}
	}

	return events
}

// EventsFromWeek 把一周的排班串转换成以 anchor（周一零点）为起点的事件列表
func EventsFromWeek(anchor time.Time, week []string) []Event {
	events := []Event{}
	for day, bits := range week {
		events = append(events, EventsFromDay(anchor, day, bits)...)
	}
	return events
}

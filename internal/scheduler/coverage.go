package scheduler

import (
	"github.com/sysu-ecnc-dev/slot-scheduler/backend/internal/domain"
	"github.com/sysu-ecnc-dev/slot-scheduler/backend/internal/timegrid"
)

// Coverage 记录每天每个时间片当前排了多少人，只属于单次排班，不在多次运行之间共享
type Coverage struct {
	counts [timegrid.DaysPerWeek][timegrid.SlotsPerDay]int
}

func NewCoverage() *Coverage {
	return &Coverage{}
}

// CoverageOf 根据一份完整的班表重新统计覆盖人数
func CoverageOf(schedule domain.WeeklySchedule) *Coverage {
	c := NewCoverage()
	for _, days := range schedule {
		for d, bits := range days {
			if d >= timegrid.DaysPerWeek {
				break
			}
			for slot := 0; slot < len(bits) && slot < timegrid.SlotsPerDay; slot++ {
				if bits[slot] == '1' {
					c.counts[d][slot]++
				}
			}
		}
	}
	return c
}

// Add 给 [start, end] 内的每个时间片加一人
func (c *Coverage) Add(day, start, end int) {
	for slot := max(start, 0); slot <= end && slot < timegrid.SlotsPerDay; slot++ {
		c.counts[day][slot]++
	}
}

// Remove 给 [start, end] 内的每个时间片减一人
func (c *Coverage) Remove(day, start, end int) {
	for slot := max(start, 0); slot <= end && slot < timegrid.SlotsPerDay; slot++ {
		if c.counts[day][slot] > 0 {
			c.counts[day][slot]--
		}
	}
}

func (c *Coverage) At(day, slot int) int {
	return c.counts[day][slot]
}

// Stats 返回 [start, end] 内覆盖人数的最小值和平均值
func (c *Coverage) Stats(day, start, end int) (int, float64) {
	if end < start {
		return 0, 0
	}

	minCoverage := c.At(day, start)
	sum := 0
	for slot := start; slot <= end; slot++ {
		n := c.At(day, slot)
		minCoverage = min(minCoverage, n)
		sum += n
	}
	return minCoverage, float64(sum) / float64(end-start+1)
}

// Histogram 统计窗口内覆盖 0 / 1 / 2 / 3+ 人的时间片数量
func (c *Coverage) Histogram(days []int, w Window) domain.CoverageHistogram {
	h := domain.CoverageHistogram{}
	for _, d := range days {
		for slot := w.Start; slot <= w.End; slot++ {
			switch n := c.At(d, slot); {
			case n == 0:
				h.Zero++
			case n == 1:
				h.One++
			case n == 2:
				h.Two++
			default:
				h.ThreePlus++
			}
		}
	}
	return h
}

// Cost 统计窗口内没人值班的时间片数量，overstaffPenalty > 0 时对人数超过 overstaffLimit 的时间片额外罚分
func (c *Coverage) Cost(days []int, w Window, overstaffLimit, overstaffPenalty int) int {
	unfilled, overstaffed := 0, 0
	for _, d := range days {
		for slot := w.Start; slot <= w.End; slot++ {
			n := c.At(d, slot)
			switch {
			case n == 0:
				unfilled++
			case n > overstaffLimit:
				overstaffed++
			}
		}
	}
	return unfilled + overstaffed*overstaffPenalty
}

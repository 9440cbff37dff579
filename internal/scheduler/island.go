package scheduler

import (
	"math"
	"math/rand"
	"strings"

	"github.com/sysu-ecnc-dev/slot-scheduler/backend/internal/domain"
	"github.com/sysu-ecnc-dev/slot-scheduler/backend/internal/timegrid"
)

// Island: 一天中一段连续空闲的时间片闭区间 [Start, End]
type Island struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

func (is Island) Len() int {
	return is.End - is.Start + 1
}

// Clip 把岛屿裁剪到窗口内，裁剪后可能为空（Len() <= 0）
func (is Island) Clip(w Window) Island {
	return Island{Start: max(is.Start, w.Start), End: min(is.End, w.End)}
}

// IslandsInDay 从左到右扫描，返回所有长度不小于 MinIslandSlots 的连续 '0' 段
func IslandsInDay(bits string) []Island {
	islands := []Island{}

	i := 0
	for i < len(bits) {
		if bits[i] != '0' {
			i++
			continue
		}

		start := i
		for i < len(bits) && bits[i] == '0' {
			i++
		}
		if i-start >= MinIslandSlots {
			islands = append(islands, Island{Start: start, End: i - 1})
		}
	}

	return islands
}

// ExtractAllIslands 计算每个助理每一天的空闲岛屿
func ExtractAllIslands(workers []*domain.Worker) map[int64][][]Island {
	result := make(map[int64][][]Island, len(workers))
	for _, w := range workers {
		days := make([][]Island, timegrid.DaysPerWeek)
		for d := range days {
			if d < len(w.Availability) {
				days[d] = IslandsInDay(w.Availability[d])
			}
		}
		result[w.UserID] = days
	}
	return result
}

// Intersect 计算多个空闲串的交集：只有所有人都空闲的时间片才为 '0'
func Intersect(days ...string) string {
	if len(days) == 0 {
		return ""
	}

	joint := []byte(days[0])
	for _, day := range days[1:] {
		for i := range joint {
			if i >= len(day) || day[i] != '0' {
				joint[i] = '1'
			}
		}
	}
	return string(joint)
}

// freeBits 返回 availability 中去掉已排班时间片后的空闲串
func freeBits(availability string, assigned []byte) string {
	if assigned == nil {
		return availability
	}

	free := []byte(availability)
	for i := range free {
		if i < len(assigned) && assigned[i] == '1' {
			free[i] = '1'
		}
	}
	return string(free)
}

// ScoreOptions: 岛屿打分时的参数
type ScoreOptions struct {
	MinStaff   int
	ValidHours Window
	Rand       *rand.Rand // 为 nil 时不加入任何随机扰动
	Heuristics Heuristics
}

// FindBestIsland 在某一天的候选岛屿中选出得分最高的一个（已裁剪到允许的时间窗口）
// 得分以岛屿长度为基础，如果岛屿中覆盖人数最少的时间片还缺 n 个人，则乘以 CoverageBase^n
func FindBestIsland(islands []Island, day int, coverage *Coverage, opts ScoreOptions) (Island, bool) {
	var best Island
	bestScore := math.Inf(-1)
	found := false

	for _, island := range islands {
		clipped := island.Clip(opts.ValidHours)
		if clipped.Len() < MinIslandSlots {
			continue
		}

		minCoverage, _ := coverage.Stats(day, clipped.Start, clipped.End)
		staffNeeded := max(0, opts.MinStaff-minCoverage)

		score := float64(clipped.Len())
		if staffNeeded > 0 {
			score *= math.Pow(opts.Heuristics.CoverageBase, float64(staffNeeded))
		}

		if opts.Rand != nil {
			score += opts.Rand.Float64() * opts.Heuristics.JitterMax

			if opts.Rand.Float64() < opts.Heuristics.TimePreferenceChance {
				switch {
				case clipped.Start < opts.Heuristics.MorningBefore:
					score *= opts.Heuristics.MorningBoost
				case clipped.Start > opts.Heuristics.AfternoonAfter:
					score *= opts.Heuristics.AfternoonBoost
				}
			}
		}

		// 分数相同时保留先出现的岛屿
		if score > bestScore {
			best = clipped
			bestScore = score
			found = true
		}
	}

	return best, found
}

// longestIsland 返回裁剪到窗口后最长、且长度不小于 MinIslandSlots 的岛屿
func longestIsland(islands []Island, w Window) (Island, bool) {
	var best Island
	found := false

	for _, island := range islands {
		clipped := island.Clip(w)
		if clipped.Len() < MinIslandSlots {
			continue
		}
		if !found || clipped.Len() > best.Len() {
			best = clipped
			found = true
		}
	}

	return best, found
}

// zeroDensity 计算 [start, end] 内所有助理空闲时间片所占的比例
func zeroDensity(workers []*domain.Worker, day, start, end int) float64 {
	total := (end - start + 1) * len(workers)
	if total <= 0 {
		return 0
	}

	zeros := 0
	for _, w := range workers {
		zeros += strings.Count(w.Availability[day][start:end+1], "0")
	}
	return float64(zeros) / float64(total)
}

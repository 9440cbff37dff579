package scheduler

import (
	"github.com/sysu-ecnc-dev/slot-scheduler/backend/internal/domain"
)

// 岛屿（连续空闲时间段）的最短长度：1 小时
const MinIslandSlots = 4

// Window: 一天中允许排班的时间片闭区间 [Start, End]
type Window struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// 默认 07:00 - 21:00
var DefaultWindow = Window{Start: 28, End: 83}

func (w Window) Len() int {
	return w.End - w.Start + 1
}

// Heuristics: 启发式中用到的经验常数，全部可配置
type Heuristics struct {
	CoverageBase         float64 // 缺人时得分乘以 CoverageBase^缺的人数
	JitterMax            float64 // 随机模式下得分加上的 [0, JitterMax) 扰动
	TimePreferenceChance float64 // 随机模式下偏好上午/下午的概率
	MorningBefore        int     // 开始时间片 < MorningBefore 视为上午
	AfternoonAfter       int     // 开始时间片 > AfternoonAfter 视为下午
	MorningBoost         float64
	AfternoonBoost       float64
	SkipDayChance        float64 // 探索模式下跳过某天的概率
	LowDensityPickChance float64 // 探索模式下选择全员空闲密度最低岛屿的概率
	SimilarityThreshold  float64 // 备选班表与最优班表的相似度超过该值时强制打散
	DiversifyAttempts    int     // 强制打散时最多清除的班次数
	SeedStride           int64   // 第 i 个备选班表使用的种子为 i * SeedStride
	OverstaffLimit       int     // 同一时间片超过该人数视为人手过剩
}

func DefaultHeuristics() Heuristics {
	return Heuristics{
		CoverageBase:         10,
		JitterMax:            2.0,
		TimePreferenceChance: 0.3,
		MorningBefore:        40,
		AfternoonAfter:       60,
		MorningBoost:         1.2,
		AfternoonBoost:       1.1,
		SkipDayChance:        0.5,
		LowDensityPickChance: 0.75,
		SimilarityThreshold:  0.8,
		DiversifyAttempts:    3,
		SeedStride:           1000,
		OverstaffLimit:       2,
	}
}

// withDefaults 全部为零时使用默认值；否则只补上为零就没有意义的字段，
// 概率与扰动为零表示关闭对应的随机行为，保持不变
func (h Heuristics) withDefaults() Heuristics {
	d := DefaultHeuristics()
	if h == (Heuristics{}) {
		return d
	}

	if h.CoverageBase <= 0 {
		h.CoverageBase = d.CoverageBase
	}
	if h.MorningBoost <= 0 {
		h.MorningBoost = d.MorningBoost
	}
	if h.AfternoonBoost <= 0 {
		h.AfternoonBoost = d.AfternoonBoost
	}
	if h.SimilarityThreshold <= 0 {
		h.SimilarityThreshold = d.SimilarityThreshold
	}
	if h.DiversifyAttempts <= 0 {
		h.DiversifyAttempts = d.DiversifyAttempts
	}
	if h.SeedStride <= 0 {
		h.SeedStride = d.SeedStride
	}
	if h.OverstaffLimit <= 0 {
		h.OverstaffLimit = d.OverstaffLimit
	}
	return h
}

// 排班参数
type Parameters struct {
	MaxManHours      float64 // 全部助理的总工时上限
	ValidDays        []int   // 允许排班的日子，周一为 0；为空表示一周七天
	ValidHours       Window  // 允许排班的时间片
	MinStaffPerShift int     // 每个时间片最少需要的人数
	Seed             *int64  // 为 nil 时不使用任何随机性
	Explore          bool    // 探索模式，只在批量搜索中使用
	Heuristics       Heuristics
}

// DefaultParameters 返回一份使用默认窗口与默认启发式常数的参数
func DefaultParameters(maxManHours float64, minStaff int) *Parameters {
	return &Parameters{
		MaxManHours:      maxManHours,
		ValidHours:       DefaultWindow,
		MinStaffPerShift: minStaff,
		Heuristics:       DefaultHeuristics(),
	}
}

// withSeed 返回一份使用指定种子的参数拷贝
func (p *Parameters) withSeed(seed *int64, explore bool) *Parameters {
	clone := *p
	clone.ValidDays = append([]int(nil), p.ValidDays...)
	clone.Seed = seed
	clone.Explore = explore
	return &clone
}

// 单次排班的结果
type Result struct {
	Schedule          domain.WeeklySchedule `json:"schedule"`
	ScheduledHours    map[int64]float64     `json:"scheduledHours"`
	TotalHours        float64               `json:"totalHours"`
	HourCapViolations int                   `json:"hourCapViolations"`
	Seed              *int64                `json:"seed"`
}

// Candidate: 多次运行后返回给调用方的一个候选班表
type Candidate struct {
	Seed       *int64                   `json:"seed"`
	Cost       int                      `json:"cost"`
	Similarity float64                  `json:"similarity"`
	Histogram  domain.CoverageHistogram `json:"histogram"`
	TotalHours float64                  `json:"totalHours"`
	Schedule   domain.WeeklySchedule    `json:"schedule"`
}

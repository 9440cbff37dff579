package scheduler

import (
	"fmt"

	"github.com/sysu-ecnc-dev/slot-scheduler/backend/internal/config"
	"github.com/sysu-ecnc-dev/slot-scheduler/backend/internal/timegrid"
)

// ParametersFromConfig 用配置中的时间窗口与启发式常数生成排班参数
func ParametersFromConfig(cfg *config.Config, maxManHours float64, minStaff int) (*Parameters, error) {
	start, end, err := timegrid.ParseClockRange(cfg.Scheduler.ValidHours)
	if err != nil {
		return nil, fmt.Errorf("允许排班的时间段配置有误: %w", err)
	}
	if end <= start {
		return nil, fmt.Errorf("允许排班的时间段 %s 为空", cfg.Scheduler.ValidHours)
	}

	p := DefaultParameters(maxManHours, minStaff)
	p.ValidDays = append([]int(nil), cfg.Scheduler.ValidDays...)
	p.ValidHours = Window{Start: start, End: end - 1}

	h := &p.Heuristics
	if cfg.Scheduler.CoverageBase > 0 {
		h.CoverageBase = cfg.Scheduler.CoverageBase
	}
	if cfg.Scheduler.SimilarityThreshold > 0 {
		h.SimilarityThreshold = cfg.Scheduler.SimilarityThreshold
	}
	if cfg.Scheduler.DiversifyAttempts > 0 {
		h.DiversifyAttempts = cfg.Scheduler.DiversifyAttempts
	}
	if cfg.Scheduler.SeedStride > 0 {
		h.SeedStride = cfg.Scheduler.SeedStride
	}

	return p, validateParameters(p)
}

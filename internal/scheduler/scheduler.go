package scheduler

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/sysu-ecnc-dev/slot-scheduler/backend/internal/domain"
	"github.com/sysu-ecnc-dev/slot-scheduler/backend/internal/metrics"
	"github.com/sysu-ecnc-dev/slot-scheduler/backend/internal/utils"
)

type Scheduler struct {
	parameters *Parameters
	workers    []*domain.Worker // 按传入顺序保存，每次运行时再排序
	islands    map[int64][][]Island
	validDays  []int
}

func New(parameters *Parameters, workers []*domain.Worker) (*Scheduler, error) {
	if err := validateParameters(parameters); err != nil {
		return nil, err
	}

	p := parameters.withSeed(parameters.Seed, parameters.Explore)
	p.Heuristics = p.Heuristics.withDefaults()

	s := &Scheduler{
		parameters: p,
		workers:    make([]*domain.Worker, 0, len(workers)),
		validDays:  normalizeDays(p.ValidDays),
	}

	seen := make(map[int64]bool, len(workers))
	for _, w := range workers {
		if err := utils.ValidateWorker(w); err != nil {
			return nil, err
		}
		if seen[w.UserID] {
			return nil, fmt.Errorf("助理 %d 重复出现", w.UserID)
		}
		seen[w.UserID] = true

		s.workers = append(s.workers, w)
	}
	s.islands = ExtractAllIslands(s.workers)

	return s, nil
}

// Schedule 使用创建时传入的参数排一次班
func (s *Scheduler) Schedule() (*Result, error) {
	return s.run(s.parameters)
}

func (s *Scheduler) run(p *Parameters) (*Result, error) {
	start := time.Now()

	r := s.newRun(p)
	r.allocateTargets()
	r.forceMinimumCoverage()
	r.fillRemainingHours()
	result := r.result()

	// 排出来的班必须落在助理的空闲时间内，否则说明算法本身有问题
	if err := utils.ValidateWeekWithAvailability(result.Schedule, s.workers); err != nil {
		slog.Error("排班结果与空闲时间不符", slog.String("error", err.Error()))
		return nil, err
	}

	mode := "deterministic"
	switch {
	case p.Explore:
		mode = "explore"
	case p.Seed != nil:
		mode = "seeded"
	}
	metrics.EngineRuns.WithLabelValues(mode).Inc()
	metrics.EngineDuration.Observe(time.Since(start).Seconds())

	slog.Debug("排班完成",
		slog.String("mode", mode),
		slog.Int("workers", len(result.Schedule)),
		slog.Float64("totalHours", result.TotalHours),
		slog.Int("hourCapViolations", result.HourCapViolations),
	)

	return result, nil
}

// Evaluate 返回某份班表在当前参数下的覆盖统计与代价
func (s *Scheduler) Evaluate(schedule domain.WeeklySchedule) (int, domain.CoverageHistogram) {
	c := CoverageOf(schedule)
	h := s.parameters.Heuristics
	cost := c.Cost(s.validDays, s.parameters.ValidHours, h.OverstaffLimit, 0)
	return cost, c.Histogram(s.validDays, s.parameters.ValidHours)
}

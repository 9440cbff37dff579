package scheduler

import (
	"container/heap"
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sysu-ecnc-dev/slot-scheduler/backend/internal/domain"
	"github.com/sysu-ecnc-dev/slot-scheduler/backend/internal/metrics"
)

// SearchOptions: 批量搜索的参数
type SearchOptions struct {
	Iterations       int
	TopK             int
	TimeBudget       time.Duration // 为 0 表示不限时
	Parallelism      int           // 为 0 表示使用 CPU 核数
	BaseSeed         int64         // 第 i 次运行使用 BaseSeed + i 作为种子
	OverstaffPenalty int
}

type SearchResult struct {
	Top               []*Candidate             `json:"top"` // 按代价从小到大
	Iterations        int                      `json:"iterations"`
	BestHistogram     domain.CoverageHistogram `json:"bestHistogram"`
	HourCapViolations int                      `json:"hourCapViolations"`
	Elapsed           time.Duration            `json:"elapsed"`
}

type searchEntry struct {
	cost     int
	seed     int64
	schedule domain.WeeklySchedule
}

// worseFirst 是一个大顶堆，堆顶是当前保留的结果中最差的一个
type worseFirst []*searchEntry

func (q worseFirst) Len() int { return len(q) }

func (q worseFirst) Less(i, j int) bool {
	if q[i].cost != q[j].cost {
		return q[i].cost > q[j].cost
	}
	return q[i].seed > q[j].seed
}

func (q worseFirst) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *worseFirst) Push(x any) { *q = append(*q, x.(*searchEntry)) }

func (q *worseFirst) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return item
}

// offer 只保留代价最小的 k 个结果
func (q *worseFirst) offer(e *searchEntry, k int) {
	if q.Len() < k {
		heap.Push(q, e)
		return
	}

	worst := (*q)[0]
	if e.cost < worst.cost || (e.cost == worst.cost && e.seed < worst.seed) {
		(*q)[0] = e
		heap.Fix(q, 0)
	}
}

// Search 以探索模式运行多次排班，保留代价最低的 TopK 个结果
// 时间预算用完时返回已经完成的部分结果；调用方取消时返回 ctx.Err()
func (s *Scheduler) Search(ctx context.Context, opts SearchOptions) (*SearchResult, error) {
	if opts.Iterations < 1 {
		return nil, errors.New("搜索次数必须大于 0")
	}
	if opts.TopK < 1 {
		return nil, errors.New("保留结果数必须大于 0")
	}

	parallelism := opts.Parallelism
	if parallelism <= 0 {
		parallelism = runtime.NumCPU()
	}

	start := time.Now()

	runCtx := ctx
	if opts.TimeBudget > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, opts.TimeBudget)
		defer cancel()
	}

	var (
		mu         sync.Mutex
		top        = &worseFirst{}
		completed  int
		violations int
	)

	h := s.parameters.Heuristics
	g, gctx := errgroup.WithContext(runCtx)
	g.SetLimit(parallelism)

	for i := 0; i < opts.Iterations; i++ {
		if gctx.Err() != nil {
			break
		}

		seed := opts.BaseSeed + int64(i)
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}

			result, err := s.run(s.parameters.withSeed(&seed, true))
			if err != nil {
				return err
			}
			cost := CoverageOf(result.Schedule).Cost(s.validDays, s.parameters.ValidHours, h.OverstaffLimit, opts.OverstaffPenalty)

			mu.Lock()
			defer mu.Unlock()
			completed++
			violations += result.HourCapViolations
			top.offer(&searchEntry{cost: cost, seed: seed, schedule: result.Schedule}, opts.TopK)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries := []*searchEntry(*top)
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].cost != entries[j].cost {
			return entries[i].cost < entries[j].cost
		}
		return entries[i].seed < entries[j].seed
	})

	result := &SearchResult{
		Top:               make([]*Candidate, 0, len(entries)),
		Iterations:        completed,
		HourCapViolations: violations,
		Elapsed:           time.Since(start),
	}
	for _, e := range entries {
		seed := e.seed
		c := CoverageOf(e.schedule)
		result.Top = append(result.Top, &Candidate{
			Seed:       &seed,
			Cost:       e.cost,
			Histogram:  c.Histogram(s.validDays, s.parameters.ValidHours),
			TotalHours: slotsToHours(e.schedule.AssignedSlots()),
			Schedule:   e.schedule,
		})
	}
	if len(result.Top) > 0 {
		result.BestHistogram = result.Top[0].Histogram
	}

	metrics.SearchDuration.Observe(result.Elapsed.Seconds())
	metrics.SearchIterations.Add(float64(completed))

	slog.Info("批量搜索结束",
		slog.Int("iterations", completed),
		slog.Int("requested", opts.Iterations),
		slog.Duration("elapsed", result.Elapsed),
	)
	if len(result.Top) > 0 {
		slog.Info("最优班表覆盖情况",
			slog.Int("cost", result.Top[0].Cost),
			slog.Int("zero", result.BestHistogram.Zero),
			slog.Int("one", result.BestHistogram.One),
			slog.Int("two", result.BestHistogram.Two),
			slog.Int("threePlus", result.BestHistogram.ThreePlus),
		)
	}

	return result, nil
}

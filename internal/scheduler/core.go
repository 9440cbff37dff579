package scheduler

import (
	"bytes"
	"log/slog"
	"math"
	"math/rand"
	"sort"
	"strings"

	"github.com/sysu-ecnc-dev/slot-scheduler/backend/internal/domain"
	"github.com/sysu-ecnc-dev/slot-scheduler/backend/internal/metrics"
	"github.com/sysu-ecnc-dev/slot-scheduler/backend/internal/timegrid"
)

// run 是单次排班的全部可变状态，每次运行都重新创建，不在多次运行之间共享
type run struct {
	params    *Parameters
	workers   []*domain.Worker // 已按优先级排好序
	validDays []int
	rng       *rand.Rand // 为 nil 时不使用任何随机性

	coverage  *Coverage
	islands   map[int64][][]Island // 每个助理原始空闲时间中的岛屿
	assigned  map[int64][][]byte   // 每个助理每天已排班的时间片
	blocked   map[int64][][]byte   // 打散时撤销的时间片，不再排给同一个助理
	remaining map[int64]int      // 每个助理还能排的时间片数
	scheduled map[int64]int      // 每个助理已经排了的时间片数
	budget    int                // 全部助理还能排的时间片数

	hourCapViolations int
}

func (s *Scheduler) newRun(p *Parameters) *run {
	r := &run{
		params:    p,
		workers:   append([]*domain.Worker(nil), s.workers...),
		validDays: s.validDays,
		coverage:  NewCoverage(),
		islands:   s.islands,
		assigned:  make(map[int64][][]byte, len(s.workers)),
		blocked:   make(map[int64][][]byte),
		remaining: make(map[int64]int, len(s.workers)),
		scheduled: make(map[int64]int, len(s.workers)),
	}

	if p.Seed != nil {
		r.rng = rand.New(rand.NewSource(*p.Seed))
	}

	r.sortWorkers()
	return r
}

// sortWorkers 优先级高的在前，同优先级中国际学生在前；有随机种子时同优先级内部随机打乱
func (r *run) sortWorkers() {
	sort.SliceStable(r.workers, func(i, j int) bool {
		a, b := r.workers[i].Params, r.workers[j].Params
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		return a.F1Status && !b.F1Status
	})

	if r.rng == nil {
		return
	}

	for start := 0; start < len(r.workers); {
		end := start + 1
		for end < len(r.workers) && r.workers[end].Params.Priority == r.workers[start].Params.Priority {
			end++
		}
		group := r.workers[start:end]
		r.rng.Shuffle(len(group), func(i, j int) {
			group[i], group[j] = group[j], group[i]
		})
		start = end
	}
}

// allocateTargets 按 (priority + 1) 的权重分配总工时，每个人的目标不超过自己的上限
func (r *run) allocateTargets() {
	r.budget = hoursToSlots(r.params.MaxManHours)

	totalWeight := 0
	for _, w := range r.workers {
		totalWeight += w.Params.Priority + 1
	}
	if totalWeight == 0 {
		return
	}

	for _, w := range r.workers {
		share := float64(w.Params.Priority+1) / float64(totalWeight) * r.params.MaxManHours
		r.remaining[w.UserID] = hoursToSlots(math.Min(w.Params.MaxHours, share))
	}
}

func emptyWeekBits() [][]byte {
	days := make([][]byte, timegrid.DaysPerWeek)
	for d := range days {
		days[d] = []byte(strings.Repeat("0", timegrid.SlotsPerDay))
	}
	return days
}

// free 返回助理某天还没被排班、也没有被撤销过的空闲串
func (r *run) free(w *domain.Worker, day int) string {
	bits := w.Availability[day]
	if days, ok := r.assigned[w.UserID]; ok {
		bits = freeBits(bits, days[day])
	}
	if days, ok := r.blocked[w.UserID]; ok {
		bits = freeBits(bits, days[day])
	}
	return bits
}

// islandsOf 返回助理某天还能排的岛屿，没动过的助理直接用预先算好的结果
func (r *run) islandsOf(w *domain.Worker, day int) []Island {
	_, assigned := r.assigned[w.UserID]
	_, blocked := r.blocked[w.UserID]
	if !assigned && !blocked {
		if days, ok := r.islands[w.UserID]; ok {
			return days[day]
		}
	}
	return IslandsInDay(r.free(w, day))
}

// eligible 返回还有剩余工时的助理，保持排序后的顺序
func (r *run) eligible() []*domain.Worker {
	result := make([]*domain.Worker, 0, len(r.workers))
	for _, w := range r.workers {
		if r.remaining[w.UserID] > 0 {
			result = append(result, w)
		}
	}
	return result
}

// assign 把岛屿从头开始排给助理，长度受个人剩余工时与总工时限制，返回实际排的时间片数
func (r *run) assign(w *domain.Worker, day int, island Island) int {
	slots := min(island.Len(), r.remaining[w.UserID], r.budget)
	if slots <= 0 {
		return 0
	}

	r.mark(w, day, island.Start, island.Start+slots-1)

	if slotsToHours(r.scheduled[w.UserID]) > w.Params.MaxHours+1e-9 {
		r.hourCapViolations++
		metrics.HourCapViolations.Inc()
		slog.Error("助理排班工时超过上限",
			slog.Int64("userID", w.UserID),
			slog.Float64("scheduledHours", slotsToHours(r.scheduled[w.UserID])),
			slog.Float64("maxHours", w.Params.MaxHours),
		)
	}

	return slots
}

// mark 把 [start, end] 记为已排班，同时扣除个人与总工时
func (r *run) mark(w *domain.Worker, day, start, end int) {
	days, ok := r.assigned[w.UserID]
	if !ok {
		days = emptyWeekBits()
		r.assigned[w.UserID] = days
	}

	for slot := start; slot <= end; slot++ {
		days[day][slot] = '1'
	}
	r.coverage.Add(day, start, end)

	slots := end - start + 1
	r.remaining[w.UserID] -= slots
	r.scheduled[w.UserID] += slots
	r.budget -= slots
}

// unassign 撤销 [start, end] 的排班，退回工时，并且之后不再把这段时间排给该助理
func (r *run) unassign(w *domain.Worker, day, start, end int) {
	days := r.assigned[w.UserID]
	for slot := start; slot <= end; slot++ {
		days[day][slot] = '0'
	}
	r.coverage.Remove(day, start, end)

	slots := end - start + 1
	r.remaining[w.UserID] += slots
	r.scheduled[w.UserID] -= slots
	r.budget += slots

	blocked, ok := r.blocked[w.UserID]
	if !ok {
		blocked = emptyWeekBits()
		r.blocked[w.UserID] = blocked
	}
	for slot := start; slot <= end; slot++ {
		blocked[day][slot] = '1'
	}
}

// load 把一份已有的班表载入本次运行，作为继续排班的起点，需要在 allocateTargets 之后调用
func (r *run) load(schedule domain.WeeklySchedule) {
	for _, w := range r.workers {
		week, ok := schedule[w.UserID]
		if !ok {
			continue
		}
		for d := 0; d < len(week) && d < timegrid.DaysPerWeek; d++ {
			for _, seg := range runsInDay(week[d]) {
				r.mark(w, d, seg.Start, seg.End)
			}
		}
	}
}

// clearRandomRuns 随机挑选已排班的 (助理, 日子)，撤销其中随机一段连续排班，最多 DiversifyAttempts 次
func (r *run) clearRandomRuns(rng *rand.Rand) int {
	type pair struct {
		worker *domain.Worker
		day    int
	}

	cleared := 0
	for attempt := 0; attempt < r.params.Heuristics.DiversifyAttempts; attempt++ {
		pairs := []pair{}
		for _, w := range r.workers {
			days, ok := r.assigned[w.UserID]
			if !ok {
				continue
			}
			for _, d := range r.validDays {
				if bytes.IndexByte(days[d], '1') >= 0 {
					pairs = append(pairs, pair{worker: w, day: d})
				}
			}
		}
		if len(pairs) == 0 {
			break
		}

		p := pairs[rng.Intn(len(pairs))]
		runs := runsInDay(string(r.assigned[p.worker.UserID][p.day]))
		target := runs[rng.Intn(len(runs))]
		r.unassign(p.worker, p.day, target.Start, target.End)
		cleared++
	}

	return cleared
}

// forceMinimumCoverage 第一轮：每天把剩余工时最多的助理按 MinStaffPerShift 人一组，
// 给每组排上全员都空闲的最长岛屿，保证每天都有人值班
func (r *run) forceMinimumCoverage() {
	size := r.params.MinStaffPerShift

	for _, day := range r.validDays {
		if r.budget <= 0 {
			return
		}

		pool := r.eligible()
		sort.SliceStable(pool, func(i, j int) bool {
			return r.remaining[pool[i].UserID] > r.remaining[pool[j].UserID]
		})

		for len(pool) >= size && r.budget > 0 {
			group := pool[:size]

			days := make([]string, len(group))
			for i, w := range group {
				days[i] = r.free(w, day)
			}

			island, ok := longestIsland(IslandsInDay(Intersect(days...)), r.params.ValidHours)
			if !ok {
				// 这一组没有共同的空闲时间，去掉第一个人后重试
				pool = pool[1:]
				continue
			}

			for _, w := range group {
				r.assign(w, day, island)
			}
			pool = pool[size:]
		}
	}
}

// fillRemainingHours 第二轮：不断给剩余工时最多的助理找最合适的岛屿，直到总工时用完或者没人能再排
func (r *run) fillRemainingHours() {
	for r.budget > 0 {
		candidates := r.eligible()
		if len(candidates) == 0 {
			return
		}

		sort.SliceStable(candidates, func(i, j int) bool {
			a, b := candidates[i], candidates[j]
			if r.remaining[a.UserID] != r.remaining[b.UserID] {
				return r.remaining[a.UserID] > r.remaining[b.UserID]
			}
			return a.Params.Priority > b.Params.Priority
		})

		progressed := false
		for _, w := range candidates {
			if r.fillOne(w) {
				progressed = true
				break
			}
		}

		if !progressed {
			return
		}
	}
}

// fillOne 按日子顺序给助理排一个岛屿，成功返回 true
func (r *run) fillOne(w *domain.Worker) bool {
	for _, day := range r.validDays {
		if r.exploring() && r.rng.Float64() < r.params.Heuristics.SkipDayChance {
			continue
		}

		islands := r.islandsOf(w, day)
		if len(islands) == 0 {
			continue
		}

		island, ok := r.pickIsland(islands, day)
		if !ok {
			continue
		}

		if r.assign(w, day, island) > 0 {
			return true
		}
	}

	return false
}

func (r *run) exploring() bool {
	return r.params.Explore && r.rng != nil
}

func (r *run) pickIsland(islands []Island, day int) (Island, bool) {
	h := r.params.Heuristics
	if r.exploring() && r.rng.Float64() < h.LowDensityPickChance {
		return r.lowestDensityIsland(islands, day)
	}

	return FindBestIsland(islands, day, r.coverage, ScoreOptions{
		MinStaff:   r.params.MinStaffPerShift,
		ValidHours: r.params.ValidHours,
		Rand:       r.rng,
		Heuristics: h,
	})
}

// lowestDensityIsland 选出全员空闲比例最低的岛屿，即最难找到人的时间段
func (r *run) lowestDensityIsland(islands []Island, day int) (Island, bool) {
	var best Island
	bestDensity := math.Inf(1)
	found := false

	for _, island := range islands {
		clipped := island.Clip(r.params.ValidHours)
		if clipped.Len() < MinIslandSlots {
			continue
		}

		density := zeroDensity(r.workers, day, clipped.Start, clipped.End)
		if density < bestDensity {
			best = clipped
			bestDensity = density
			found = true
		}
	}

	return best, found
}

func (r *run) result() *Result {
	result := &Result{
		Schedule:          make(domain.WeeklySchedule, len(r.assigned)),
		ScheduledHours:    make(map[int64]float64, len(r.scheduled)),
		HourCapViolations: r.hourCapViolations,
		Seed:              r.params.Seed,
	}

	total := 0
	for id, days := range r.assigned {
		if r.scheduled[id] == 0 {
			continue
		}

		week := make([]string, len(days))
		for d, bits := range days {
			week[d] = string(bits)
		}
		result.Schedule[id] = week
		result.ScheduledHours[id] = slotsToHours(r.scheduled[id])
		total += r.scheduled[id]
	}
	result.TotalHours = slotsToHours(total)

	return result
}

package scheduler

import (
	"errors"
	"log/slog"
	"math/rand"
	"sort"

	"github.com/sysu-ecnc-dev/slot-scheduler/backend/internal/domain"
	"github.com/sysu-ecnc-dev/slot-scheduler/backend/internal/metrics"
	"github.com/sysu-ecnc-dev/slot-scheduler/backend/internal/utils"
)

// GenerateCandidates 排 n 次班，返回 n 个按运行顺序排列的候选班表
// 第 0 次不使用随机种子，之后第 i 次使用 i * SeedStride 作为种子；
// 与第 0 次过于相似或与已有结果完全相同的班表会被强制打散
func (s *Scheduler) GenerateCandidates(n int) ([]*Candidate, error) {
	if n < 1 {
		return nil, errors.New("候选班表数量必须大于 0")
	}

	h := s.parameters.Heuristics
	candidates := make([]*Candidate, 0, n)
	var primary domain.WeeklySchedule

	for i := 0; i < n; i++ {
		var seed *int64
		if i > 0 {
			v := int64(i) * h.SeedStride
			seed = &v
		}

		result, err := s.run(s.parameters.withSeed(seed, false))
		if err != nil {
			if i == 0 {
				return nil, err
			}
			slog.Error("生成候选班表失败", slog.Int("run", i), slog.String("error", err.Error()))
			continue
		}

		schedule := result.Schedule
		similarity := 1.0
		if primary == nil {
			primary = schedule
		} else {
			schedule, err = s.diversify(schedule, *seed, candidates, Similarity(primary, schedule) > h.SimilarityThreshold)
			if err != nil {
				slog.Error("打散候选班表失败", slog.Int("run", i), slog.String("error", err.Error()))
				continue
			}
			similarity = Similarity(primary, schedule)
		}

		candidates = append(candidates, s.newCandidate(seed, schedule, similarity))
	}

	// 能排出来的不够时，用第一个结果补齐
	for len(candidates) < n {
		candidates = append(candidates, candidates[0])
	}

	return candidates, nil
}

// diversify 先在 tooSimilar 时打散一次，再在与已有候选完全相同时最多打散 DiversifyAttempts 次
// 每次打散都会撤销几段排班并把空出的工时重新排到别的时间，被撤销的时间段在同一个候选中不会再排回去
func (s *Scheduler) diversify(schedule domain.WeeklySchedule, seed int64, candidates []*Candidate, tooSimilar bool) (domain.WeeklySchedule, error) {
	rng := rand.New(rand.NewSource(seed))
	blocked := make(map[int64][][]byte)

	var err error
	if tooSimilar {
		if schedule, err = s.reshuffle(schedule, seed, blocked, rng); err != nil {
			return nil, err
		}
	}
	for attempt := 0; attempt < s.parameters.Heuristics.DiversifyAttempts && containsSchedule(candidates, schedule); attempt++ {
		if schedule, err = s.reshuffle(schedule, seed, blocked, rng); err != nil {
			return nil, err
		}
	}
	return schedule, nil
}

// reshuffle 在 schedule 的基础上撤销随机几段排班，再执行第二轮把退回的工时排出去
func (s *Scheduler) reshuffle(schedule domain.WeeklySchedule, seed int64, blocked map[int64][][]byte, rng *rand.Rand) (domain.WeeklySchedule, error) {
	r := s.newRun(s.parameters.withSeed(&seed, false))
	r.blocked = blocked
	r.allocateTargets()
	r.load(schedule)

	if r.clearRandomRuns(rng) == 0 {
		return schedule, nil
	}
	r.fillRemainingHours()

	result := r.result()
	if err := utils.ValidateWeekWithAvailability(result.Schedule, s.workers); err != nil {
		return nil, err
	}
	return result.Schedule, nil
}

// Rank 返回按代价从小到大排列的前 k 个候选，代价相同时保持原有顺序
func Rank(candidates []*Candidate, k int) []*Candidate {
	ranked := append([]*Candidate(nil), candidates...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Cost < ranked[j].Cost
	})
	if k > 0 && k < len(ranked) {
		ranked = ranked[:k]
	}
	return ranked
}

func (s *Scheduler) newCandidate(seed *int64, schedule domain.WeeklySchedule, similarity float64) *Candidate {
	cost, histogram := s.Evaluate(schedule)
	metrics.UnfilledSlots.Observe(float64(cost))

	return &Candidate{
		Seed:       seed,
		Cost:       cost,
		Similarity: similarity,
		Histogram:  histogram,
		TotalHours: slotsToHours(schedule.AssignedSlots()),
		Schedule:   schedule,
	}
}

func containsSchedule(candidates []*Candidate, schedule domain.WeeklySchedule) bool {
	for _, c := range candidates {
		if sameSchedule(c.Schedule, schedule) {
			return true
		}
	}
	return false
}

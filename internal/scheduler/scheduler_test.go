package scheduler

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sysu-ecnc-dev/slot-scheduler/backend/internal/domain"
	"github.com/sysu-ecnc-dev/slot-scheduler/backend/internal/timegrid"
	"github.com/sysu-ecnc-dev/slot-scheduler/backend/internal/utils"
)

func newWorker(id int64, maxHours float64, priority int, availability []string) *domain.Worker {
	return &domain.Worker{
		UserID:       id,
		FullName:     "助理",
		Availability: availability,
		Params:       domain.WorkerParams{MaxHours: maxHours, Priority: priority},
	}
}

// weekWith 返回只有 day 这一天的 [start, end] 空闲的一周
func weekWith(day, start, end int) []string {
	week := timegrid.BusyWeek()
	week[day] = dayWith([2]int{start, end})
	return week
}

func freeWeek() []string {
	week := make([]string, 7)
	for d := range week {
		week[d] = strings.Repeat("0", 96)
	}
	return week
}

// randomWorkers 生成带有若干整块空闲时间的助理
func randomWorkers(seed int64, n int) []*domain.Worker {
	rng := rand.New(rand.NewSource(seed))
	workers := make([]*domain.Worker, 0, n)
	for i := 0; i < n; i++ {
		week := timegrid.BusyWeek()
		for d := range week {
			bits := []byte(week[d])
			for b := 0; b < 3; b++ {
				start := 24 + rng.Intn(56)
				length := 4 + rng.Intn(16)
				for s := start; s < start+length && s < 96; s++ {
					bits[s] = '0'
				}
			}
			week[d] = string(bits)
		}
		workers = append(workers, newWorker(int64(i+1), float64(4+rng.Intn(16)), rng.Intn(3), week))
	}
	return workers
}

func assertScheduleInvariants(t *testing.T, workers []*domain.Worker, p *Parameters, schedule domain.WeeklySchedule) {
	t.Helper()

	require.NoError(t, utils.ValidateWeekWithAvailability(schedule, workers))
	assert.Empty(t, utils.ValidateWorkerHourCaps(schedule, workers))
	assert.LessOrEqual(t, schedule.AssignedSlots(), hoursToSlots(p.MaxManHours))

	days := normalizeDays(p.ValidDays)
	for _, week := range schedule {
		require.Len(t, week, 7)
		for d, bits := range week {
			require.Len(t, bits, 96)
			for slot := 0; slot < 96; slot++ {
				if bits[slot] != '1' {
					continue
				}
				assert.Contains(t, days, d)
				assert.GreaterOrEqual(t, slot, p.ValidHours.Start)
				assert.LessOrEqual(t, slot, p.ValidHours.End)
			}
		}
	}
}

func TestNewRejectsInvalidInput(t *testing.T) {
	p := DefaultParameters(40, 1)

	_, err := New(p, []*domain.Worker{newWorker(1, 10, 0, []string{"0"})})
	assert.Error(t, err)

	_, err = New(p, []*domain.Worker{newWorker(1, 10, 0, freeWeek()), newWorker(1, 10, 0, freeWeek())})
	assert.Error(t, err)

	_, err = New(p, []*domain.Worker{nil})
	assert.Error(t, err)

	bad := DefaultParameters(40, 0)
	_, err = New(bad, nil)
	assert.Error(t, err)

	bad = DefaultParameters(40, 1)
	bad.ValidHours = Window{Start: 50, End: 40}
	_, err = New(bad, nil)
	assert.Error(t, err)

	bad = DefaultParameters(40, 1)
	bad.ValidDays = []int{7}
	_, err = New(bad, nil)
	assert.Error(t, err)
}

func TestNewFillsMissingHeuristics(t *testing.T) {
	p := DefaultParameters(40, 1)
	p.Heuristics = Heuristics{JitterMax: 1}

	s, err := New(p, []*domain.Worker{newWorker(1, 10, 0, freeWeek())})
	require.NoError(t, err)

	h := s.parameters.Heuristics
	assert.Equal(t, 1.0, h.JitterMax)
	assert.Zero(t, h.SkipDayChance)
	assert.Equal(t, DefaultHeuristics().CoverageBase, h.CoverageBase)
	assert.Equal(t, int64(1000), h.SeedStride)
	assert.Equal(t, 3, h.DiversifyAttempts)
	assert.Equal(t, 2, h.OverstaffLimit)

	candidates, err := s.GenerateCandidates(3)
	require.NoError(t, err)
	require.Len(t, candidates, 3)
	assert.Nil(t, candidates[0].Seed)
	for i := 1; i < 3; i++ {
		require.NotNil(t, candidates[i].Seed)
		assert.Equal(t, int64(i)*1000, *candidates[i].Seed)
	}
}

func TestNewCachesIslands(t *testing.T) {
	workers := randomWorkers(7, 5)
	s, err := New(DefaultParameters(40, 1), workers)
	require.NoError(t, err)
	assert.Equal(t, ExtractAllIslands(workers), s.islands)
}

func TestScheduleSingleWorkerSingleIsland(t *testing.T) {
	workers := []*domain.Worker{newWorker(1, 20, 0, weekWith(0, 36, 67))}
	s, err := New(DefaultParameters(40, 1), workers)
	require.NoError(t, err)

	result, err := s.Schedule()
	require.NoError(t, err)

	require.Contains(t, result.Schedule, int64(1))
	week := result.Schedule[1]
	assert.Equal(t, dayWithAssigned(36, 67), week[0])
	for d := 1; d < 7; d++ {
		assert.Equal(t, strings.Repeat("0", 96), week[d])
	}
	assert.InDelta(t, 8.0, result.TotalHours, 1e-9)
	assert.InDelta(t, 8.0, result.ScheduledHours[1], 1e-9)
}

func dayWithAssigned(start, end int) string {
	bits := []byte(strings.Repeat("0", 96))
	for i := start; i <= end; i++ {
		bits[i] = '1'
	}
	return string(bits)
}

func TestScheduleForcedCoverageGivesIdenticalRanges(t *testing.T) {
	workers := []*domain.Worker{
		newWorker(1, 20, 0, weekWith(0, 28, 39)),
		newWorker(2, 20, 0, weekWith(0, 28, 39)),
	}
	s, err := New(DefaultParameters(6, 2), workers)
	require.NoError(t, err)

	result, err := s.Schedule()
	require.NoError(t, err)

	require.Len(t, result.Schedule, 2)
	assert.Equal(t, dayWithAssigned(28, 39), result.Schedule[1][0])
	assert.Equal(t, result.Schedule[1], result.Schedule[2])
}

func TestScheduleNoWorkers(t *testing.T) {
	s, err := New(DefaultParameters(40, 1), nil)
	require.NoError(t, err)

	result, err := s.Schedule()
	require.NoError(t, err)
	assert.NotNil(t, result.Schedule)
	assert.Empty(t, result.Schedule)
	assert.Zero(t, result.TotalHours)
}

func TestScheduleZeroHourWorker(t *testing.T) {
	workers := []*domain.Worker{
		newWorker(1, 0, 5, freeWeek()),
		newWorker(2, 10, 0, freeWeek()),
	}
	s, err := New(DefaultParameters(40, 1), workers)
	require.NoError(t, err)

	result, err := s.Schedule()
	require.NoError(t, err)
	assert.NotContains(t, result.Schedule, int64(1))
	assert.Contains(t, result.Schedule, int64(2))
}

func TestScheduleSplitsHoursByPriority(t *testing.T) {
	workers := []*domain.Worker{
		newWorker(1, 100, 3, freeWeek()),
		newWorker(2, 100, 0, freeWeek()),
	}
	s, err := New(DefaultParameters(20, 1), workers)
	require.NoError(t, err)

	result, err := s.Schedule()
	require.NoError(t, err)
	assert.InDelta(t, 16.0, result.ScheduledHours[1], 1e-9)
	assert.InDelta(t, 4.0, result.ScheduledHours[2], 1e-9)
	assert.InDelta(t, 20.0, result.TotalHours, 1e-9)
}

func TestScheduleRespectsValidDaysAndWindow(t *testing.T) {
	workers := randomWorkers(11, 12)
	p := DefaultParameters(60, 2)
	p.ValidDays = []int{1, 3, 3, 5}
	p.ValidHours = Window{Start: 36, End: 71}

	s, err := New(p, workers)
	require.NoError(t, err)

	result, err := s.Schedule()
	require.NoError(t, err)
	assertScheduleInvariants(t, workers, p, result.Schedule)
}

func TestScheduleInvariantsOnRandomInputs(t *testing.T) {
	for seed := int64(1); seed <= 20; seed++ {
		workers := randomWorkers(seed, 3+int(seed%10))
		p := DefaultParameters(float64(10+seed*7), 1+int(seed%3))

		s, err := New(p, workers)
		require.NoError(t, err)

		result, err := s.Schedule()
		require.NoError(t, err)
		assertScheduleInvariants(t, workers, p, result.Schedule)
		assert.Zero(t, result.HourCapViolations)

		for _, params := range []*Parameters{p.withSeed(&seed, false), p.withSeed(&seed, true)} {
			seeded, err := s.run(params)
			require.NoError(t, err)
			assertScheduleInvariants(t, workers, p, seeded.Schedule)
		}
	}
}

func TestScheduleIsDeterministicWithoutSeed(t *testing.T) {
	workers := randomWorkers(5, 10)
	s, err := New(DefaultParameters(80, 2), workers)
	require.NoError(t, err)

	first, err := s.Schedule()
	require.NoError(t, err)
	second, err := s.Schedule()
	require.NoError(t, err)
	assert.Equal(t, first.Schedule, second.Schedule)
}

func TestSeededRunsAreReproducible(t *testing.T) {
	workers := randomWorkers(9, 10)
	s, err := New(DefaultParameters(80, 2), workers)
	require.NoError(t, err)

	seed := int64(4242)
	for _, explore := range []bool{false, true} {
		a, err := s.run(s.parameters.withSeed(&seed, explore))
		require.NoError(t, err)
		b, err := s.run(s.parameters.withSeed(&seed, explore))
		require.NoError(t, err)
		assert.Equal(t, a.Schedule, b.Schedule)
	}
}

func TestScheduleDoesNotModifyInput(t *testing.T) {
	workers := randomWorkers(3, 6)
	before := make([][]string, len(workers))
	for i, w := range workers {
		before[i] = append([]string(nil), w.Availability...)
	}

	s, err := New(DefaultParameters(60, 1), workers)
	require.NoError(t, err)
	_, err = s.GenerateCandidates(3)
	require.NoError(t, err)

	for i, w := range workers {
		assert.Equal(t, before[i], w.Availability)
		assert.Equal(t, int64(i+1), w.UserID)
	}
}

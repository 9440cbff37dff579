package scheduler

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sysu-ecnc-dev/slot-scheduler/backend/internal/domain"
	"github.com/sysu-ecnc-dev/slot-scheduler/backend/internal/timegrid"
)

func TestSimilarity(t *testing.T) {
	week := func(start, end int) []string {
		w := make([]string, 7)
		for d := range w {
			w[d] = strings.Repeat("0", 96)
		}
		w[0] = dayWithAssigned(start, end)
		return w
	}

	primary := domain.WeeklySchedule{1: week(28, 37)}
	assert.InDelta(t, 1.0, Similarity(primary, primary), 1e-9)
	assert.InDelta(t, 0.5, Similarity(primary, domain.WeeklySchedule{1: week(33, 50)}), 1e-9)
	assert.InDelta(t, 0.0, Similarity(primary, domain.WeeklySchedule{2: week(28, 37)}), 1e-9)
	assert.InDelta(t, 0.0, Similarity(domain.WeeklySchedule{}, primary), 1e-9)
}

func TestSameScheduleTreatsEmptyWorkersAsAbsent(t *testing.T) {
	empty := make([]string, 7)
	for d := range empty {
		empty[d] = strings.Repeat("0", 96)
	}

	assert.True(t, sameSchedule(domain.WeeklySchedule{1: empty}, domain.WeeklySchedule{}))
	assert.False(t, sameSchedule(domain.WeeklySchedule{1: weekWith(0, 0, 3)}, domain.WeeklySchedule{}))
}

func TestClearRandomRunsReturnsHours(t *testing.T) {
	workers := []*domain.Worker{newWorker(1, 10, 0, weekWith(0, 28, 43))}
	p := DefaultParameters(4, 1)
	p.ValidDays = []int{0}
	s, err := New(p, workers)
	require.NoError(t, err)

	primary, err := s.Schedule()
	require.NoError(t, err)

	r := s.newRun(p)
	r.allocateTargets()
	r.load(primary.Schedule)
	assert.Equal(t, 0, r.budget)
	assert.Equal(t, 2, r.coverage.At(0, 28)+r.coverage.At(0, 43))

	// 只有一段排班，清掉之后就没有可以再清的了
	cleared := r.clearRandomRuns(rand.New(rand.NewSource(1)))
	assert.Equal(t, 1, cleared)
	assert.Equal(t, 16, r.budget)
	assert.Equal(t, 16, r.remaining[1])
	assert.Equal(t, 0, r.coverage.At(0, 28))
	assert.Equal(t, strings.Repeat("1", 96), r.free(workers[0], 0))
	assert.Empty(t, r.result().Schedule)
}

// twoDayWorker 周一和周二全天空闲
func twoDayWorker() *domain.Worker {
	week := timegrid.BusyWeek()
	week[0] = strings.Repeat("0", 96)
	week[1] = strings.Repeat("0", 96)
	return newWorker(1, 10, 0, week)
}

func TestReshuffleRefillsClearedHours(t *testing.T) {
	workers := []*domain.Worker{twoDayWorker()}
	p := DefaultParameters(4, 1)
	s, err := New(p, workers)
	require.NoError(t, err)

	primary, err := s.Schedule()
	require.NoError(t, err)
	require.Equal(t, dayWithAssigned(28, 43), primary.Schedule[1][0])

	blocked := make(map[int64][][]byte)
	schedule, err := s.reshuffle(primary.Schedule, 1000, blocked, rand.New(rand.NewSource(1000)))
	require.NoError(t, err)

	assertScheduleInvariants(t, workers, p, schedule)
	assert.Equal(t, 16, schedule.AssignedSlots())
	assert.False(t, sameSchedule(primary.Schedule, schedule))
	assert.NotContains(t, schedule[1][0][28:44], "1")
	assert.Equal(t, dayWithAssigned(28, 43), primary.Schedule[1][0], "primary must not be modified")
}

func TestGenerateCandidatesStayDistinctWhenEveryRunMatches(t *testing.T) {
	workers := []*domain.Worker{twoDayWorker()}
	p := DefaultParameters(4, 1)
	s, err := New(p, workers)
	require.NoError(t, err)

	for _, n := range []int{3, 5} {
		candidates, err := s.GenerateCandidates(n)
		require.NoError(t, err)
		require.Len(t, candidates, n)

		for i, c := range candidates {
			assertScheduleInvariants(t, workers, p, c.Schedule)
			assert.Equal(t, 16, c.Schedule.AssignedSlots(), "n=%d candidate %d", n, i)
			for j := 0; j < i; j++ {
				assert.False(t, sameSchedule(candidates[j].Schedule, c.Schedule), "n=%d candidates %d and %d are identical", n, j, i)
			}
		}
	}
}

func TestGenerateCandidates(t *testing.T) {
	workers := randomWorkers(21, 10)
	p := DefaultParameters(80, 2)
	s, err := New(p, workers)
	require.NoError(t, err)

	candidates, err := s.GenerateCandidates(5)
	require.NoError(t, err)
	require.Len(t, candidates, 5)

	primary, err := s.Schedule()
	require.NoError(t, err)
	assert.Nil(t, candidates[0].Seed)
	assert.Equal(t, primary.Schedule, candidates[0].Schedule)
	assert.InDelta(t, 1.0, candidates[0].Similarity, 1e-9)

	for i, c := range candidates {
		assertScheduleInvariants(t, workers, p, c.Schedule)

		cost, histogram := s.Evaluate(c.Schedule)
		assert.Equal(t, cost, c.Cost)
		assert.Equal(t, histogram, c.Histogram)
		assert.Equal(t, histogram.Zero, c.Cost)
		assert.Equal(t, 7*p.ValidHours.Len(), histogram.Zero+histogram.One+histogram.Two+histogram.ThreePlus)

		if i > 0 {
			require.NotNil(t, c.Seed)
			assert.Equal(t, int64(i)*p.Heuristics.SeedStride, *c.Seed)
		}
	}
}

func TestGenerateCandidatesAreDistinct(t *testing.T) {
	// 只允许周一排班，打散时每次都一定能清掉一段
	workers := randomWorkers(8, 8)
	p := DefaultParameters(60, 1)
	p.ValidDays = []int{0}
	s, err := New(p, workers)
	require.NoError(t, err)

	candidates, err := s.GenerateCandidates(4)
	require.NoError(t, err)
	require.Len(t, candidates, 4)
	require.NotEmpty(t, candidates[0].Schedule)

	for i := 1; i < len(candidates); i++ {
		assert.False(t, sameSchedule(candidates[0].Schedule, candidates[i].Schedule), "candidate %d equals the first one", i)
	}
}

func TestGenerateCandidatesRejectsZero(t *testing.T) {
	s, err := New(DefaultParameters(40, 1), nil)
	require.NoError(t, err)

	_, err = s.GenerateCandidates(0)
	assert.Error(t, err)
}

func TestGenerateCandidatesWithoutWorkers(t *testing.T) {
	s, err := New(DefaultParameters(40, 1), nil)
	require.NoError(t, err)

	candidates, err := s.GenerateCandidates(3)
	require.NoError(t, err)
	require.Len(t, candidates, 3)
	for _, c := range candidates {
		assert.Empty(t, c.Schedule)
		assert.Equal(t, 7*DefaultWindow.Len(), c.Cost)
	}
}

func TestRank(t *testing.T) {
	candidates := []*Candidate{{Cost: 5}, {Cost: 1}, {Cost: 3}, {Cost: 1}}
	ranked := Rank(candidates, 3)

	require.Len(t, ranked, 3)
	assert.Same(t, candidates[1], ranked[0])
	assert.Same(t, candidates[3], ranked[1])
	assert.Same(t, candidates[2], ranked[2])
	assert.Len(t, Rank(candidates, 0), 4)
}

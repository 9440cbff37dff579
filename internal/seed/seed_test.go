package seed

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sysu-ecnc-dev/slot-scheduler/backend/internal/domain"
	"github.com/sysu-ecnc-dev/slot-scheduler/backend/internal/timegrid"
)

const header = "NetID,姓名,邮箱,工时上限,优先级,F1,周一,周二,周三,周四,周五,周六,周日\n"

func TestParse(t *testing.T) {
	records, err := Parse(strings.NewReader(header +
		"zhangsan,张三,zhangsan@example.com,10,2,是,09:00-10:00;14:00-14:30,,,,,,\n"))
	require.NoError(t, err)
	require.Len(t, records, 1)

	r := records[0]
	assert.Equal(t, "zhangsan", r.User.Username)
	assert.Equal(t, domain.RoleAssistant, r.User.Role)
	assert.Equal(t, domain.WorkerParams{MaxHours: 10, Priority: 2, F1Status: true}, r.Worker.Params)

	monday := strings.Repeat("1", 36) + strings.Repeat("0", 4) + strings.Repeat("1", 16) + strings.Repeat("0", 2) + strings.Repeat("1", 38)
	assert.Equal(t, monday, r.Worker.Availability[0])
	for day := 1; day < timegrid.DaysPerWeek; day++ {
		assert.Equal(t, strings.Repeat("1", timegrid.SlotsPerDay), r.Worker.Availability[day])
	}
}

func TestParseErrors(t *testing.T) {
	tests := map[string]string{
		"缺少列":    "NetID,姓名\nzhangsan,张三\n",
		"时间段错误":  header + "zhangsan,张三,a@example.com,10,2,否,12:00-09:00,,,,,,\n",
		"工时上限错误": header + "zhangsan,张三,a@example.com,ten,2,否,,,,,,,\n",
		"优先级错误":  header + "zhangsan,张三,a@example.com,10,high,否,,,,,,,\n",
		"NetID 为空": header + ",张三,a@example.com,10,2,否,,,,,,,\n",
	}

	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(data))
			assert.Error(t, err)
		})
	}
}

func TestParseBundledData(t *testing.T) {
	f, err := os.Open("data/availability.csv")
	require.NoError(t, err)
	defer f.Close()

	records, err := Parse(f)
	require.NoError(t, err)
	assert.NotEmpty(t, records)
}

type fakeStore struct {
	users    map[string]*domain.User
	created  []string
	upserted []int64
	err      error
}

func (s *fakeStore) GetUserByUsername(_ context.Context, username string) (*domain.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	u, ok := s.users[username]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return u, nil
}

func (s *fakeStore) CreateAssistant(_ context.Context, user *domain.User, worker *domain.Worker) error {
	user.ID = int64(100 + len(s.created))
	worker.UserID = user.ID
	s.created = append(s.created, user.Username)
	return nil
}

func (s *fakeStore) UpsertWorker(_ context.Context, w *domain.Worker) error {
	s.upserted = append(s.upserted, w.UserID)
	return nil
}

func TestImport(t *testing.T) {
	records, err := Parse(strings.NewReader(header +
		"zhangsan,张三,zhangsan@example.com,10,2,否,09:00-10:00,,,,,,\n" +
		"lisi,李四,lisi@example.com,8,1,否,,09:00-10:00,,,,,\n"))
	require.NoError(t, err)

	store := &fakeStore{users: map[string]*domain.User{
		"zhangsan": {ID: 7, Username: "zhangsan", FullName: "张三"},
	}}

	cnt, err := Import(context.Background(), store, records, "hash")
	require.NoError(t, err)
	assert.Equal(t, 2, cnt)
	assert.Equal(t, []int64{7}, store.upserted)
	assert.Equal(t, []string{"lisi"}, store.created)
	assert.Equal(t, "hash", records[1].User.PasswordHash)
	assert.Empty(t, records[0].User.PasswordHash)
}

func TestImportStopsOnError(t *testing.T) {
	records, err := Parse(strings.NewReader(header + "zhangsan,张三,zhangsan@example.com,10,2,否,,,,,,,\n"))
	require.NoError(t, err)

	cnt, err := Import(context.Background(), &fakeStore{err: errors.New("connection refused")}, records, "hash")
	assert.Error(t, err)
	assert.Zero(t, cnt)
}

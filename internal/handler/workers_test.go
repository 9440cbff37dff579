package handler

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sysu-ecnc-dev/slot-scheduler/backend/internal/domain"
	"github.com/sysu-ecnc-dev/slot-scheduler/backend/internal/timegrid"
)

func TestGetAllWorkers(t *testing.T) {
	env := newTestEnv(t)

	env.mock.ExpectQuery(`WHERE u.is_active ORDER BY w.user_id`).
		WillReturnRows(workerRows(
			&domain.Worker{UserID: 2, FullName: "张三", Availability: mondayMorning(), Params: domain.WorkerParams{MaxHours: 10}},
			&domain.Worker{UserID: 3, FullName: "李四", Availability: timegrid.BusyWeek()},
		))

	_, res := env.do(t, http.MethodGet, "/workers", nil, env.cookie(t, 1, domain.RoleAdmin))
	require.True(t, res.Success, res.Message)

	var workers []struct {
		UserID                   int64   `json:"userID"`
		HasSubmittedAvailability bool    `json:"hasSubmittedAvailability"`
		FreeHours                float64 `json:"freeHours"`
	}
	require.NoError(t, json.Unmarshal(res.Data, &workers))
	require.Len(t, workers, 2)
	assert.True(t, workers[0].HasSubmittedAvailability)
	assert.Equal(t, 4.0, workers[0].FreeHours)
	assert.False(t, workers[1].HasSubmittedAvailability)
	assert.Equal(t, 0.0, workers[1].FreeHours)
}

func TestUpdateWorkerParams(t *testing.T) {
	env := newTestEnv(t)
	worker := &domain.Worker{UserID: 2, FullName: "张三", Availability: mondayMorning(), Params: domain.WorkerParams{MaxHours: 10, Priority: 1}, Version: 3}

	env.mock.ExpectQuery(`WHERE w.user_id = \$1`).WithArgs(int64(2)).WillReturnRows(workerRows(worker))
	env.mock.ExpectQuery(`UPDATE workers`).
		WithArgs(10.0, 2, true, int64(2), int32(3)).
		WillReturnRows(sqlmock.NewRows([]string{"updated_at", "version"}).AddRow(time.Now(), 4))

	body := map[string]any{"priority": 2, "f1Status": true}
	_, res := env.do(t, http.MethodPatch, "/workers/2/params", body, env.cookie(t, 1, domain.RoleAdmin))
	require.True(t, res.Success, res.Message)

	var updated domain.Worker
	require.NoError(t, json.Unmarshal(res.Data, &updated))
	assert.Equal(t, domain.WorkerParams{MaxHours: 10, Priority: 2, F1Status: true}, updated.Params)
}

func TestUpdateWorkerParamsConflict(t *testing.T) {
	env := newTestEnv(t)
	worker := &domain.Worker{UserID: 2, FullName: "张三", Availability: mondayMorning(), Version: 3}

	env.mock.ExpectQuery(`WHERE w.user_id = \$1`).WithArgs(int64(2)).WillReturnRows(workerRows(worker))
	env.mock.ExpectQuery(`UPDATE workers`).WillReturnError(sql.ErrNoRows)

	_, res := env.do(t, http.MethodPatch, "/workers/2/params", map[string]any{"maxHours": 8}, env.cookie(t, 1, domain.RoleAdmin))
	assert.False(t, res.Success)
	assert.Equal(t, "更新排班参数失败，请重试", res.Message)
}

func TestUpdateWorkerParamsValidation(t *testing.T) {
	env := newTestEnv(t)
	worker := &domain.Worker{UserID: 2, FullName: "张三", Availability: mondayMorning(), Version: 3}

	env.mock.ExpectQuery(`WHERE w.user_id = \$1`).WithArgs(int64(2)).WillReturnRows(workerRows(worker))

	_, res := env.do(t, http.MethodPatch, "/workers/2/params", map[string]any{"maxHours": -1}, env.cookie(t, 1, domain.RoleAdmin))
	assert.False(t, res.Success)
}

func TestWorkerNotFound(t *testing.T) {
	env := newTestEnv(t)

	env.mock.ExpectQuery(`WHERE w.user_id = \$1`).WithArgs(int64(9)).WillReturnError(sql.ErrNoRows)

	_, res := env.do(t, http.MethodGet, "/workers/9", nil, env.cookie(t, 1, domain.RoleAdmin))
	assert.False(t, res.Success)
	assert.Equal(t, "助理不存在", res.Message)
}

func TestUpdateWorkersParams(t *testing.T) {
	t.Run("成功", func(t *testing.T) {
		env := newTestEnv(t)

		env.mock.ExpectBegin()
		env.mock.ExpectExec(`UPDATE workers`).
			WithArgs(12.0, 1, false, int64(2)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		env.mock.ExpectCommit()

		body := map[string]any{"workers": []map[string]any{{"userID": 2, "maxHours": 12, "priority": 1}}}
		_, res := env.do(t, http.MethodPut, "/workers/params", body, env.cookie(t, 1, domain.RoleAdmin))
		assert.True(t, res.Success, res.Message)
	})

	t.Run("助理不存在", func(t *testing.T) {
		env := newTestEnv(t)

		env.mock.ExpectBegin()
		env.mock.ExpectExec(`UPDATE workers`).WillReturnResult(sqlmock.NewResult(0, 0))
		env.mock.ExpectRollback()

		body := map[string]any{"workers": []map[string]any{{"userID": 9, "maxHours": 12}}}
		_, res := env.do(t, http.MethodPut, "/workers/params", body, env.cookie(t, 1, domain.RoleAdmin))
		assert.False(t, res.Success)
		assert.Equal(t, "助理不存在", res.Message)
	})

	t.Run("重复的助理", func(t *testing.T) {
		env := newTestEnv(t)

		body := map[string]any{"workers": []map[string]any{{"userID": 2, "maxHours": 12}, {"userID": 2, "maxHours": 8}}}
		_, res := env.do(t, http.MethodPut, "/workers/params", body, env.cookie(t, 1, domain.RoleAdmin))
		assert.False(t, res.Success)
		assert.Equal(t, "同一个助理不能出现多次", res.Message)
	})

	t.Run("参数为空", func(t *testing.T) {
		env := newTestEnv(t)

		_, res := env.do(t, http.MethodPut, "/workers/params", map[string]any{"workers": []any{}}, env.cookie(t, 1, domain.RoleAdmin))
		assert.False(t, res.Success)
	})
}

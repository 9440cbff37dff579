package repository

import (
	"context"
	"database/sql"

	"github.com/sysu-ecnc-dev/slot-scheduler/backend/internal/domain"
)

const selectWorkers = `
	SELECT w.user_id, u.full_name, w.availability, w.max_hours, w.priority, w.f1_status, w.updated_at, w.version
	FROM workers w
	JOIN users u ON u.id = w.user_id
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorker(row rowScanner) (*domain.Worker, error) {
	w := &domain.Worker{}
	var week string

	dst := []any{&w.UserID, &w.FullName, &week, &w.Params.MaxHours, &w.Params.Priority, &w.Params.F1Status, &w.UpdatedAt, &w.Version}
	if err := row.Scan(dst...); err != nil {
		return nil, err
	}

	days, err := splitWeek(week)
	if err != nil {
		return nil, err
	}
	w.Availability = days

	return w, nil
}

func (r *Repository) queryWorkers(ctx context.Context, query string, args ...any) ([]*domain.Worker, error) {
	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	workers := make([]*domain.Worker, 0)
	for rows.Next() {
		w, err := scanWorker(rows)
		if err != nil {
			return nil, err
		}
		workers = append(workers, w)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return workers, nil
}

func (r *Repository) GetWorkerByUserID(ctx context.Context, userID int64) (*domain.Worker, error) {
	query := selectWorkers + `WHERE w.user_id = $1`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	return scanWorker(r.dbpool.QueryRowContext(ctx, query, userID))
}

// GetAllWorkers 只返回仍在职的助理
func (r *Repository) GetAllWorkers(ctx context.Context) ([]*domain.Worker, error) {
	return r.queryWorkers(ctx, selectWorkers+`WHERE u.is_active ORDER BY w.user_id`)
}

func (r *Repository) GetWorkersByUserIDs(ctx context.Context, userIDs []int64) ([]*domain.Worker, error) {
	return r.queryWorkers(ctx, selectWorkers+`WHERE w.user_id = ANY($1) ORDER BY w.user_id`, userIDs)
}

// UpsertWorker 插入或整体覆盖助理的空闲时间与排班参数
func (r *Repository) UpsertWorker(ctx context.Context, w *domain.Worker) error {
	query := `
		INSERT INTO workers (user_id, availability, max_hours, priority, f1_status)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE
		SET
			availability = EXCLUDED.availability,
			max_hours = EXCLUDED.max_hours,
			priority = EXCLUDED.priority,
			f1_status = EXCLUDED.f1_status,
			updated_at = NOW(),
			version = workers.version + 1
		RETURNING updated_at, version
	`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	args := []any{w.UserID, joinWeek(w.Availability), w.Params.MaxHours, w.Params.Priority, w.Params.F1Status}
	return r.dbpool.QueryRowContext(ctx, query, args...).Scan(&w.UpdatedAt, &w.Version)
}

// UpdateWorkerAvailability 只更新空闲时间，没有记录时以默认参数插入
func (r *Repository) UpdateWorkerAvailability(ctx context.Context, w *domain.Worker) error {
	query := `
		INSERT INTO workers (user_id, availability)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE
		SET
			availability = EXCLUDED.availability,
			updated_at = NOW(),
			version = workers.version + 1
		RETURNING max_hours, priority, f1_status, updated_at, version
	`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	dst := []any{&w.Params.MaxHours, &w.Params.Priority, &w.Params.F1Status, &w.UpdatedAt, &w.Version}
	return r.dbpool.QueryRowContext(ctx, query, w.UserID, joinWeek(w.Availability)).Scan(dst...)
}

// UpdateWorkerParams 使用 version 做乐观锁，版本不一致时返回 sql.ErrNoRows
func (r *Repository) UpdateWorkerParams(ctx context.Context, w *domain.Worker) error {
	query := `
		UPDATE workers
		SET
			max_hours = $1,
			priority = $2,
			f1_status = $3,
			updated_at = NOW(),
			version = version + 1
		WHERE user_id = $4 AND version = $5
		RETURNING updated_at, version
	`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	args := []any{w.Params.MaxHours, w.Params.Priority, w.Params.F1Status, w.UserID, w.Version}
	return r.dbpool.QueryRowContext(ctx, query, args...).Scan(&w.UpdatedAt, &w.Version)
}

// UpdateWorkersParams 在一个事务中批量更新参数，任何一个助理不存在都会回滚并返回 sql.ErrNoRows
func (r *Repository) UpdateWorkersParams(ctx context.Context, params map[int64]domain.WorkerParams) error {
	ctx, cancel := r.transactionContext(ctx)
	defer cancel()

	tx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		UPDATE workers
		SET
			max_hours = $1,
			priority = $2,
			f1_status = $3,
			updated_at = NOW(),
			version = version + 1
		WHERE user_id = $4
	`

	for userID, p := range params {
		result, err := tx.ExecContext(ctx, query, p.MaxHours, p.Priority, p.F1Status, userID)
		if err != nil {
			return err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return sql.ErrNoRows
		}
	}

	return tx.Commit()
}

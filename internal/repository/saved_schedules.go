package repository

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"github.com/sysu-ecnc-dev/slot-scheduler/backend/internal/domain"
)

func (r *Repository) InsertSavedSchedule(ctx context.Context, s *domain.SavedSchedule) error {
	ctx, cancel := r.transactionContext(ctx)
	defer cancel()

	tx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `
		INSERT INTO saved_schedules (name, week_start, max_man_hours, min_staff_per_shift, cost)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, published, created_at, version
	`
	args := []any{s.Name, s.WeekStart, s.MaxManHours, s.MinStaffPerShift, s.Cost}
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&s.ID, &s.Published, &s.CreatedAt, &s.Version); err != nil {
		return err
	}

	for _, a := range s.Assignments {
		query := `
			INSERT INTO saved_schedule_assignments (saved_schedule_id, worker_id, assignment)
			VALUES ($1, $2, $3)
		`
		if _, err := tx.ExecContext(ctx, query, s.ID, a.WorkerID, joinWeek(a.Days)); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetAllSavedSchedules 只返回元信息，不包含具体班次
func (r *Repository) GetAllSavedSchedules(ctx context.Context) ([]*domain.SavedSchedule, error) {
	query := `
		SELECT id, name, week_start, max_man_hours, min_staff_per_shift, cost, published, created_at, version
		FROM saved_schedules
		ORDER BY created_at DESC
	`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	schedules := make([]*domain.SavedSchedule, 0)
	for rows.Next() {
		s := &domain.SavedSchedule{Assignments: []domain.SavedScheduleAssignment{}}
		dst := []any{&s.ID, &s.Name, &s.WeekStart, &s.MaxManHours, &s.MinStaffPerShift, &s.Cost, &s.Published, &s.CreatedAt, &s.Version}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}
		schedules = append(schedules, s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return schedules, nil
}

func (r *Repository) GetSavedScheduleByID(ctx context.Context, id int64) (*domain.SavedSchedule, error) {
	query := `
		SELECT
			s.name,
			s.week_start,
			s.max_man_hours,
			s.min_staff_per_shift,
			s.cost,
			s.published,
			s.created_at,
			s.version,
			a.worker_id,
			a.assignment
		FROM saved_schedules s
		LEFT JOIN saved_schedule_assignments a ON s.id = a.saved_schedule_id
		WHERE s.id = $1
	`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	s := &domain.SavedSchedule{ID: id, Assignments: []domain.SavedScheduleAssignment{}}
	found := false
	for rows.Next() {
		var (
			workerID   sql.NullInt64
			assignment sql.NullString
		)

		dst := []any{&s.Name, &s.WeekStart, &s.MaxManHours, &s.MinStaffPerShift, &s.Cost, &s.Published, &s.CreatedAt, &s.Version, &workerID, &assignment}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}
		found = true

		if !workerID.Valid {
			// 这份排班没有任何人，LEFT JOIN 出来的是空行
			continue
		}

		days, err := splitWeek(assignment.String)
		if err != nil {
			return nil, err
		}
		s.Assignments = append(s.Assignments, domain.SavedScheduleAssignment{WorkerID: workerID.Int64, Days: days})
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	if !found {
		return nil, sql.ErrNoRows
	}

	sort.Slice(s.Assignments, func(i, j int) bool {
		return s.Assignments[i].WorkerID < s.Assignments[j].WorkerID
	})

	return s, nil
}

// PublishSavedSchedule 使用 version 做乐观锁，版本不一致时返回 sql.ErrNoRows
func (r *Repository) PublishSavedSchedule(ctx context.Context, s *domain.SavedSchedule) error {
	query := `
		UPDATE saved_schedules
		SET published = TRUE, version = version + 1
		WHERE id = $1 AND version = $2
		RETURNING published, version
	`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	return r.dbpool.QueryRowContext(ctx, query, s.ID, s.Version).Scan(&s.Published, &s.Version)
}

// GetPublishedWeeksForWorker 返回某个助理在所有已发布排班中的班次，最近的一周在前
func (r *Repository) GetPublishedWeeksForWorker(ctx context.Context, workerID int64) ([]*domain.WorkerScheduleWeek, error) {
	query := `
		SELECT s.id, s.name, s.week_start, a.assignment
		FROM saved_schedule_assignments a
		JOIN saved_schedules s ON s.id = a.saved_schedule_id
		WHERE a.worker_id = $1 AND s.published
		ORDER BY s.week_start DESC, s.id DESC
	`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, workerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	weeks := make([]*domain.WorkerScheduleWeek, 0)
	for rows.Next() {
		var (
			week       domain.WorkerScheduleWeek
			weekStart  time.Time
			assignment string
		)
		if err := rows.Scan(&week.ScheduleID, &week.ScheduleName, &weekStart, &assignment); err != nil {
			return nil, err
		}

		days, err := splitWeek(assignment)
		if err != nil {
			return nil, err
		}
		week.WeekStart = weekStart
		week.Days = days
		weeks = append(weeks, &week)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return weeks, nil
}

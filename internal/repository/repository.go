package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/sysu-ecnc-dev/slot-scheduler/backend/internal/config"
	"github.com/sysu-ecnc-dev/slot-scheduler/backend/internal/timegrid"
)

type Repository struct {
	cfg    *config.Config
	dbpool *sql.DB
}

func NewRepository(cfg *config.Config, dbpool *sql.DB) *Repository {
	return &Repository{
		cfg:    cfg,
		dbpool: dbpool,
	}
}

func (r *Repository) queryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
}

func (r *Repository) transactionContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, time.Duration(r.cfg.Database.TransactionTimeout)*time.Second)
}

// 数据库中一周的时间片存成一个 7 * 96 位的串
func joinWeek(days []string) string {
	return strings.Join(days, "")
}

func splitWeek(week string) ([]string, error) {
	if len(week) != timegrid.DaysPerWeek*timegrid.SlotsPerDay {
		return nil, fmt.Errorf("时间片串长度应为 %d，实际为 %d", timegrid.DaysPerWeek*timegrid.SlotsPerDay, len(week))
	}

	days := make([]string, timegrid.DaysPerWeek)
	for d := range days {
		days[d] = week[d*timegrid.SlotsPerDay : (d+1)*timegrid.SlotsPerDay]
	}
	return days, nil
}

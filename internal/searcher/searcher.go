package searcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sysu-ecnc-dev/slot-scheduler/backend/internal/config"
	"github.com/sysu-ecnc-dev/slot-scheduler/backend/internal/domain"
	"github.com/sysu-ecnc-dev/slot-scheduler/backend/internal/metrics"
	"github.com/sysu-ecnc-dev/slot-scheduler/backend/internal/scheduler"
	"github.com/sysu-ecnc-dev/slot-scheduler/backend/internal/utils"
)

type WorkerSource interface {
	GetWorkersByUserIDs(ctx context.Context, userIDs []int64) ([]*domain.Worker, error)
}

type JobStore interface {
	Save(ctx context.Context, job *domain.SearchJob) error
	Get(ctx context.Context, id string) (*domain.SearchJob, error)
}

// Runner 执行队列中的批量搜索任务，并把状态与结果写回任务存储
type Runner struct {
	cfg     *config.Config
	workers WorkerSource
	store   JobStore
	now     func() time.Time
}

func NewRunner(cfg *config.Config, workers WorkerSource, store JobStore) *Runner {
	return &Runner{cfg: cfg, workers: workers, store: store, now: time.Now}
}

// Run 执行一个搜索任务。任务本身的失败（参数错误、没有助理等）记录在任务中，返回 nil；
// 只有读写任务存储失败时才返回错误，调用方据此决定是否重新投递
func (r *Runner) Run(ctx context.Context, id string) error {
	job, err := r.store.Get(ctx, id)
	if err != nil {
		return err
	}

	if job.Status == domain.SearchJobFinished || job.Status == domain.SearchJobFailed {
		slog.Warn("搜索任务已经结束，忽略重复消息", slog.String("id", id))
		return nil
	}

	job.Status = domain.SearchJobRunning
	if err := r.store.Save(ctx, job); err != nil {
		return err
	}

	result, err := r.search(ctx, job)
	finishedAt := r.now()
	job.FinishedAt = &finishedAt

	if err != nil {
		if ctx.Err() != nil {
			// 进程正在退出，任务保持 running，重新投递后再执行
			return ctx.Err()
		}

		slog.Error("搜索任务失败", slog.String("id", id), slog.String("error", err.Error()))
		job.Status = domain.SearchJobFailed
		job.Error = err.Error()
		metrics.SearchJobs.WithLabelValues(string(domain.SearchJobFailed)).Inc()
		return r.store.Save(ctx, job)
	}

	job.Status = domain.SearchJobFinished
	job.Iterations = result.Iterations
	job.HourCapViolations = result.HourCapViolations
	job.Candidates = make([]domain.SearchJobCandidate, 0, len(result.Top))
	for _, c := range result.Top {
		job.Candidates = append(job.Candidates, domain.SearchJobCandidate{
			Cost:     c.Cost,
			Seed:     *c.Seed,
			Schedule: c.Schedule,
		})
	}
	if len(result.Top) > 0 {
		histogram := result.BestHistogram
		job.BestHistogram = &histogram
	}
	metrics.SearchJobs.WithLabelValues(string(domain.SearchJobFinished)).Inc()

	slog.Info("搜索任务完成", slog.String("id", id), slog.Int("iterations", result.Iterations), slog.Int("candidates", len(job.Candidates)))
	return r.store.Save(ctx, job)
}

func (r *Runner) search(ctx context.Context, job *domain.SearchJob) (*scheduler.SearchResult, error) {
	params := job.Params

	workers, err := r.workers.GetWorkersByUserIDs(ctx, params.WorkerIDs)
	if err != nil {
		return nil, err
	}
	if len(workers) != len(params.WorkerIDs) {
		return nil, fmt.Errorf("选择的 %d 名助理中只有 %d 名存在", len(params.WorkerIDs), len(workers))
	}
	if err := utils.ValidateWorkersForScheduling(workers, params.MaxManHours); err != nil {
		return nil, err
	}

	p, err := scheduler.ParametersFromConfig(r.cfg, params.MaxManHours, params.MinStaffPerShift)
	if err != nil {
		return nil, err
	}

	s, err := scheduler.New(p, workers)
	if err != nil {
		return nil, err
	}

	budget := time.Duration(params.TimeBudget) * time.Second
	if limit := time.Duration(r.cfg.Scheduler.Search.MaxTimeBudget) * time.Second; limit > 0 && (budget <= 0 || budget > limit) {
		budget = limit
	}

	result, err := s.Search(ctx, scheduler.SearchOptions{
		Iterations:       params.Iterations,
		TopK:             params.TopK,
		TimeBudget:       budget,
		Parallelism:      r.cfg.Scheduler.Search.Parallelism,
		OverstaffPenalty: params.OverstaffPenalty,
	})
	if err != nil {
		return nil, err
	}
	if result.Iterations == 0 {
		return nil, errors.New("时间预算内没有完成任何一次排班")
	}

	return result, nil
}

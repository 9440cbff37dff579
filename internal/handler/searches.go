package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sysu-ecnc-dev/slot-scheduler/backend/internal/domain"
	"github.com/sysu-ecnc-dev/slot-scheduler/backend/internal/jobstore"
	"github.com/sysu-ecnc-dev/slot-scheduler/backend/internal/metrics"
	"github.com/sysu-ecnc-dev/slot-scheduler/backend/internal/queue"
)

// CreateScheduleSearch 创建一个批量搜索任务并投递到搜索队列，由 searcher 异步执行
func (h *Handler) CreateScheduleSearch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		WorkerIDs        []int64 `json:"workerIDs" validate:"required,min=1,unique"`
		MaxManHours      float64 `json:"maxManHours" validate:"required,gte=1,lte=168"`
		MinStaffPerShift int     `json:"minStaffPerShift" validate:"required,gte=1,lte=10"`
		Iterations       int     `json:"iterations" validate:"required,gte=1"`
		TopK             int     `json:"topK" validate:"required,gte=1"`
		TimeBudget       int     `json:"timeBudget" validate:"gte=0"`
		OverstaffPenalty int     `json:"overstaffPenalty" validate:"gte=0"`
	}

	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	limits := h.config.Scheduler.Search
	switch {
	case req.Iterations > limits.MaxIterations:
		h.errorResponse(w, r, fmt.Sprintf("搜索次数不能超过 %d", limits.MaxIterations))
		return
	case req.TopK > limits.MaxTopK:
		h.errorResponse(w, r, fmt.Sprintf("保留结果数不能超过 %d", limits.MaxTopK))
		return
	case req.TimeBudget > limits.MaxTimeBudget:
		h.errorResponse(w, r, fmt.Sprintf("时间预算不能超过 %d 秒", limits.MaxTimeBudget))
		return
	}

	job := &domain.SearchJob{
		ID:     uuid.NewString(),
		Status: domain.SearchJobPending,
		Params: domain.SearchJobParams{
			WorkerIDs:        req.WorkerIDs,
			MaxManHours:      req.MaxManHours,
			MinStaffPerShift: req.MinStaffPerShift,
			Iterations:       req.Iterations,
			TopK:             req.TopK,
			TimeBudget:       req.TimeBudget,
			OverstaffPenalty: req.OverstaffPenalty,
		},
		Candidates: []domain.SearchJobCandidate{},
		CreatedAt:  h.now(),
	}

	if err := h.jobs.Save(r.Context(), job); err != nil {
		h.internalServerError(w, r, err)
		return
	}
	if err := h.publisher.Publish(r.Context(), queue.SearchQueue, domain.SearchJobMessage{ID: job.ID}); err != nil {
		h.internalServerError(w, r, err)
		return
	}
	metrics.SearchJobs.WithLabelValues(string(domain.SearchJobPending)).Inc()

	h.successResponse(w, r, "搜索任务已创建", job)
}

func (h *Handler) GetScheduleSearch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		h.errorResponse(w, r, "搜索任务ID无效")
		return
	}

	job, err := h.jobs.Get(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, jobstore.ErrJobNotFound):
			h.errorResponse(w, r, err.Error())
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.successResponse(w, r, "获取搜索任务成功", job)
}

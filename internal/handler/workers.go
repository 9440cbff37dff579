package handler

import (
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/sysu-ecnc-dev/slot-scheduler/backend/internal/domain"
	"github.com/sysu-ecnc-dev/slot-scheduler/backend/internal/timegrid"
)

type workerResponse struct {
	*domain.Worker
	HasSubmittedAvailability bool             `json:"hasSubmittedAvailability"`
	FreeHours                float64          `json:"freeHours"`
	Events                   []timegrid.Event `json:"events"`
}

func newWorkerResponse(weekStart time.Time, w *domain.Worker) workerResponse {
	free := 0.0
	for _, bits := range w.Availability {
		for i := 0; i < len(bits); i++ {
			if bits[i] == '0' {
				free++
			}
		}
	}

	return workerResponse{
		Worker:                   w,
		HasSubmittedAvailability: w.HasAvailability(),
		FreeHours:                free / timegrid.SlotsPerHour,
		Events:                   freeEvents(weekStart, w.Availability),
	}
}

func (h *Handler) GetAllWorkers(w http.ResponseWriter, r *http.Request) {
	workers, err := h.repository.GetAllWorkers(r.Context())
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	weekStart := timegrid.NextMonday(h.now())
	res := make([]workerResponse, 0, len(workers))
	for _, worker := range workers {
		res = append(res, newWorkerResponse(weekStart, worker))
	}

	h.successResponse(w, r, "获取助理列表成功", res)
}

func (h *Handler) GetWorker(w http.ResponseWriter, r *http.Request) {
	worker := r.Context().Value(WorkerInfoCtx).(*domain.Worker)

	h.successResponse(w, r, "获取助理信息成功", newWorkerResponse(timegrid.NextMonday(h.now()), worker))
}

func (h *Handler) UpdateWorkerParams(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MaxHours *float64 `json:"maxHours" validate:"omitempty,gte=0,lte=168"`
		Priority *int     `json:"priority" validate:"omitempty,gte=0"`
		F1Status *bool    `json:"f1Status"`
	}

	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	worker := r.Context().Value(WorkerInfoCtx).(*domain.Worker)

	if req.MaxHours != nil {
		worker.Params.MaxHours = *req.MaxHours
	}
	if req.Priority != nil {
		worker.Params.Priority = *req.Priority
	}
	if req.F1Status != nil {
		worker.Params.F1Status = *req.F1Status
	}

	if err := h.repository.UpdateWorkerParams(r.Context(), worker); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			h.errorResponse(w, r, "更新排班参数失败，请重试")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.successResponse(w, r, "更新排班参数成功", worker)
}

// UpdateWorkersParams 批量更新排班参数，任意一个助理不存在时整体不生效
func (h *Handler) UpdateWorkersParams(w http.ResponseWriter, r *http.Request) {
	type workerParams struct {
		UserID   int64   `json:"userID" validate:"required"`
		MaxHours float64 `json:"maxHours" validate:"gte=0,lte=168"`
		Priority int     `json:"priority" validate:"gte=0"`
		F1Status bool    `json:"f1Status"`
	}
	var req struct {
		Workers []workerParams `json:"workers" validate:"required,min=1,dive"`
	}

	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	params := make(map[int64]domain.WorkerParams, len(req.Workers))
	for _, p := range req.Workers {
		if _, ok := params[p.UserID]; ok {
			h.errorResponse(w, r, "同一个助理不能出现多次")
			return
		}
		params[p.UserID] = domain.WorkerParams{MaxHours: p.MaxHours, Priority: p.Priority, F1Status: p.F1Status}
	}

	if err := h.repository.UpdateWorkersParams(r.Context(), params); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			h.errorResponse(w, r, "助理不存在")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.successResponse(w, r, "批量更新排班参数成功", nil)
}

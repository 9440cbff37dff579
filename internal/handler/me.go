package handler

import (
	"database/sql"
	"errors"
	"net/http"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/sysu-ecnc-dev/slot-scheduler/backend/internal/domain"
	"github.com/sysu-ecnc-dev/slot-scheduler/backend/internal/timegrid"
)

func (h *Handler) GetMyInfo(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.User)

	h.successResponse(w, r, "获取个人信息成功", myInfo)
}

func (h *Handler) UpdateMyPassword(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.User)

	var req struct {
		OldPassword string `json:"oldPassword" validate:"required"`
		NewPassword string `json:"newPassword" validate:"required,min=8"`
	}

	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(myInfo.PasswordHash), []byte(req.OldPassword)); err != nil {
		h.errorResponse(w, r, "旧密码错误")
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	myInfo.PasswordHash = string(hashedPassword)

	if err := h.repository.UpdateUser(r.Context(), myInfo); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			h.errorResponse(w, r, "更新密码失败，请重试")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.successResponse(w, r, "更新密码成功", nil)
}

type availabilityResponse struct {
	WeekStart    time.Time        `json:"weekStart"`
	Availability []string         `json:"availability"`
	Events       []timegrid.Event `json:"events"`
	UpdatedAt    *time.Time       `json:"updatedAt"`
}

// freeEvents 把空闲时间串（'0' 空闲）转换成以 weekStart 为起点的空闲事件
func freeEvents(weekStart time.Time, availability []string) []timegrid.Event {
	inverted := make([]string, len(availability))
	for d, bits := range availability {
		b := []byte(bits)
		for i := range b {
			if b[i] == '0' {
				b[i] = '1'
			} else {
				b[i] = '0'
			}
		}
		inverted[d] = string(b)
	}
	return timegrid.EventsFromWeek(weekStart, inverted)
}

func (h *Handler) GetMyAvailability(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.User)
	weekStart := timegrid.NextMonday(h.now())

	worker, err := h.repository.GetWorkerByUserID(r.Context(), myInfo.ID)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			// 还没有提交过，视为整周没空
			h.successResponse(w, r, "获取空闲时间成功", availabilityResponse{
				WeekStart:    weekStart,
				Availability: timegrid.BusyWeek(),
				Events:       []timegrid.Event{},
			})
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.successResponse(w, r, "获取空闲时间成功", availabilityResponse{
		WeekStart:    weekStart,
		Availability: worker.Availability,
		Events:       freeEvents(weekStart, worker.Availability),
		UpdatedAt:    &worker.UpdatedAt,
	})
}

func (h *Handler) UpdateMyAvailability(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.User)

	if myInfo.Role != domain.RoleAssistant {
		h.errorResponse(w, r, "只有助理需要提交空闲时间")
		return
	}

	var req struct {
		Events []timegrid.Event `json:"events" validate:"max=200"`
	}

	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	availability, err := timegrid.AvailabilityFromEvents(req.Events)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}

	worker := &domain.Worker{
		UserID:       myInfo.ID,
		FullName:     myInfo.FullName,
		Availability: availability,
	}
	if err := h.repository.UpdateWorkerAvailability(r.Context(), worker); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "提交空闲时间成功", worker)
}

type myScheduleWeek struct {
	ScheduleID   int64            `json:"scheduleID"`
	ScheduleName string           `json:"scheduleName"`
	WeekStart    time.Time        `json:"weekStart"`
	TotalHours   float64          `json:"totalHours"`
	Events       []timegrid.Event `json:"events"`
}

func (h *Handler) GetMySchedules(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.User)

	weeks, err := h.repository.GetPublishedWeeksForWorker(r.Context(), myInfo.ID)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	res := make([]myScheduleWeek, 0, len(weeks))
	for _, week := range weeks {
		res = append(res, myScheduleWeek{
			ScheduleID:   week.ScheduleID,
			ScheduleName: week.ScheduleName,
			WeekStart:    week.WeekStart,
			TotalHours:   assignedHours(week.Days),
			Events:       timegrid.EventsFromWeek(week.WeekStart, week.Days),
		})
	}

	h.successResponse(w, r, "获取我的班次成功", res)
}

package handler

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sysu-ecnc-dev/slot-scheduler/backend/internal/domain"
	"github.com/sysu-ecnc-dev/slot-scheduler/backend/internal/scheduler"
	"github.com/sysu-ecnc-dev/slot-scheduler/backend/internal/timegrid"
	"github.com/sysu-ecnc-dev/slot-scheduler/backend/internal/utils"
)

type assignmentResponse struct {
	WorkerID   int64            `json:"workerID"`
	FullName   string           `json:"fullName"`
	TotalHours float64          `json:"totalHours"`
	Days       []string         `json:"days"`
	Events     []timegrid.Event `json:"events"`
}

type candidateResponse struct {
	Seed        *int64                   `json:"seed"`
	Cost        int                      `json:"cost"`
	Similarity  float64                  `json:"similarity"`
	Histogram   domain.CoverageHistogram `json:"histogram"`
	TotalHours  float64                  `json:"totalHours"`
	Schedule    domain.WeeklySchedule    `json:"schedule"`
	Assignments []assignmentResponse     `json:"assignments"`
}

// assignmentsOf 按助理 ID 排序后展开班表，没有排到班的助理不出现
func assignmentsOf(weekStart time.Time, schedule domain.WeeklySchedule, names map[int64]string) []assignmentResponse {
	ids := make([]int64, 0, len(schedule))
	for id := range schedule {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	res := make([]assignmentResponse, 0, len(ids))
	for _, id := range ids {
		days := schedule[id]
		hours := assignedHours(days)
		if hours == 0 {
			continue
		}
		res = append(res, assignmentResponse{
			WorkerID:   id,
			FullName:   names[id],
			TotalHours: hours,
			Days:       days,
			Events:     timegrid.EventsFromWeek(weekStart, days),
		})
	}
	return res
}

func workerNames(workers []*domain.Worker) map[int64]string {
	names := make(map[int64]string, len(workers))
	for _, w := range workers {
		names[w.UserID] = w.FullName
	}
	return names
}

// loadWorkers 读取指定的助理，有不存在的助理时返回错误信息
func (h *Handler) loadWorkers(r *http.Request, ids []int64) ([]*domain.Worker, string, error) {
	workers, err := h.repository.GetWorkersByUserIDs(r.Context(), ids)
	if err != nil {
		return nil, "", err
	}

	if len(workers) != len(ids) {
		found := workerNames(workers)
		missing := make([]string, 0)
		for _, id := range ids {
			if _, ok := found[id]; !ok {
				missing = append(missing, strconv.FormatInt(id, 10))
			}
		}
		return nil, fmt.Sprintf("以下助理不存在：%s", strings.Join(missing, ", ")), nil
	}

	return workers, "", nil
}

func (h *Handler) GenerateSchedules(w http.ResponseWriter, r *http.Request) {
	var req struct {
		WorkerIDs        []int64 `json:"workerIDs" validate:"required,min=1,unique"`
		TotalHours       float64 `json:"totalHours" validate:"required,gte=1,lte=168"`
		MinStaffPerShift int     `json:"minStaffPerShift" validate:"required,gte=1,lte=10"`
		NumSchedules     int     `json:"numSchedules" validate:"required,gte=1,lte=5"`
	}

	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	if limit := h.config.Scheduler.MaxCandidates; limit > 0 && req.NumSchedules > limit {
		h.errorResponse(w, r, fmt.Sprintf("最多只能生成 %d 份排班", limit))
		return
	}

	workers, msg, err := h.loadWorkers(r, req.WorkerIDs)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}
	if msg != "" {
		h.errorResponse(w, r, msg)
		return
	}

	if err := utils.ValidateWorkersForScheduling(workers, req.TotalHours); err != nil {
		h.badRequest(w, r, err)
		return
	}

	params, err := scheduler.ParametersFromConfig(h.config, req.TotalHours, req.MinStaffPerShift)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	// 数据库中的空闲时间格式有误时会在这里报错
	s, err := scheduler.New(params, workers)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}

	candidates, err := s.GenerateCandidates(req.NumSchedules)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	weekStart := timegrid.NextMonday(h.now())
	names := workerNames(workers)
	res := struct {
		WeekStart  time.Time           `json:"weekStart"`
		Candidates []candidateResponse `json:"candidates"`
	}{
		WeekStart:  weekStart,
		Candidates: make([]candidateResponse, 0, len(candidates)),
	}
	for _, c := range candidates {
		res.Candidates = append(res.Candidates, candidateResponse{
			Seed:        c.Seed,
			Cost:        c.Cost,
			Similarity:  c.Similarity,
			Histogram:   c.Histogram,
			TotalHours:  c.TotalHours,
			Schedule:    c.Schedule,
			Assignments: assignmentsOf(weekStart, c.Schedule, names),
		})
	}

	h.successResponse(w, r, "生成排班成功", res)
}

func (h *Handler) CreateSavedSchedule(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name             string                `json:"name" validate:"required,max=100"`
		WeekStart        time.Time             `json:"weekStart" validate:"required"`
		MaxManHours      float64               `json:"maxManHours" validate:"required,gte=1,lte=168"`
		MinStaffPerShift int                   `json:"minStaffPerShift" validate:"required,gte=1,lte=10"`
		Schedule         domain.WeeklySchedule `json:"schedule" validate:"required"`
	}

	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	if timegrid.Weekday(req.WeekStart) != 0 {
		h.errorResponse(w, r, "排班的起始日期必须是周一")
		return
	}

	ids := make([]int64, 0, len(req.Schedule))
	for id, days := range req.Schedule {
		if err := utils.ValidateAvailability(days); err != nil {
			h.badRequest(w, r, fmt.Errorf("助理 %d 的班次格式错误：%w", id, err))
			return
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	if req.Schedule.AssignedSlots() > int(req.MaxManHours*timegrid.SlotsPerHour+1e-9) {
		h.errorResponse(w, r, "排班总工时超过了设定的上限")
		return
	}

	workers, msg, err := h.loadWorkers(r, ids)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}
	if msg != "" {
		h.errorResponse(w, r, msg)
		return
	}

	if err := utils.ValidateWeekWithAvailability(req.Schedule, workers); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if over := utils.ValidateWorkerHourCaps(req.Schedule, workers); len(over) > 0 {
		names := workerNames(workers)
		list := make([]string, 0, len(over))
		for _, id := range over {
			list = append(list, names[id])
		}
		h.errorResponse(w, r, fmt.Sprintf("以下助理超过了工时上限：%s", strings.Join(list, ", ")))
		return
	}

	params, err := scheduler.ParametersFromConfig(h.config, req.MaxManHours, req.MinStaffPerShift)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}
	s, err := scheduler.New(params, workers)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}
	cost, _ := s.Evaluate(req.Schedule)

	y, m, d := req.WeekStart.Date()
	saved := &domain.SavedSchedule{
		Name:             req.Name,
		WeekStart:        time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
		MaxManHours:      req.MaxManHours,
		MinStaffPerShift: req.MinStaffPerShift,
		Cost:             cost,
		Assignments:      make([]domain.SavedScheduleAssignment, 0, len(ids)),
	}
	for _, id := range ids {
		if assignedHours(req.Schedule[id]) == 0 {
			continue
		}
		saved.Assignments = append(saved.Assignments, domain.SavedScheduleAssignment{WorkerID: id, Days: req.Schedule[id]})
	}

	if err := h.repository.InsertSavedSchedule(r.Context(), saved); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "保存排班成功", saved)
}

func (h *Handler) GetAllSavedSchedules(w http.ResponseWriter, r *http.Request) {
	schedules, err := h.repository.GetAllSavedSchedules(r.Context())
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取排班列表成功", schedules)
}

func (h *Handler) GetSavedSchedule(w http.ResponseWriter, r *http.Request) {
	saved := r.Context().Value(SavedScheduleCtx).(*domain.SavedSchedule)

	ids := make([]int64, 0, len(saved.Assignments))
	for _, a := range saved.Assignments {
		ids = append(ids, a.WorkerID)
	}

	names := map[int64]string{}
	if len(ids) > 0 {
		workers, err := h.repository.GetWorkersByUserIDs(r.Context(), ids)
		if err != nil {
			h.internalServerError(w, r, err)
			return
		}
		names = workerNames(workers)
	}

	res := struct {
		*domain.SavedSchedule
		TotalHours  float64              `json:"totalHours"`
		Assignments []assignmentResponse `json:"assignments"`
	}{
		SavedSchedule: saved,
		TotalHours:    float64(saved.Week().AssignedSlots()) / timegrid.SlotsPerHour,
		Assignments:   assignmentsOf(saved.WeekStart, saved.Week(), names),
	}

	h.successResponse(w, r, "获取排班成功", res)
}

// PublishSavedSchedule 发布排班，并给每个排到班的助理发送邮件
func (h *Handler) PublishSavedSchedule(w http.ResponseWriter, r *http.Request) {
	saved := r.Context().Value(SavedScheduleCtx).(*domain.SavedSchedule)

	if saved.Published {
		h.errorResponse(w, r, "排班已经发布过了")
		return
	}

	if err := h.repository.PublishSavedSchedule(r.Context(), saved); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			h.errorResponse(w, r, "发布排班失败，请重试")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	failed := 0
	for _, a := range saved.Assignments {
		user, err := h.repository.GetUserByID(r.Context(), a.WorkerID)
		if err != nil {
			slog.Error("获取助理信息失败，跳过发送排班邮件", slog.Int64("workerID", a.WorkerID), slog.String("error", err.Error()))
			failed++
			continue
		}

		mailMessage := domain.MailMessage{
			Type: domain.MailTypeSchedulePublished,
			To:   user.Email,
			Data: domain.SchedulePublishedMailData{
				FullName:     user.FullName,
				ScheduleName: saved.Name,
				WeekStart:    saved.WeekStart.Format("2006-01-02"),
				TotalHours:   assignedHours(a.Days),
				Shifts:       mailShifts(saved.WeekStart, a.Days),
			},
		}
		if err := h.publishMail(r.Context(), mailMessage); err != nil {
			slog.Error("投递排班邮件失败", slog.Int64("workerID", a.WorkerID), slog.String("error", err.Error()))
			failed++
		}
	}

	if failed > 0 {
		h.successResponse(w, r, fmt.Sprintf("排班已发布，但有 %d 封通知邮件发送失败", failed), saved)
		return
	}

	h.successResponse(w, r, "发布排班成功", saved)
}

package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	zh_translations "github.com/go-playground/validator/v10/translations/zh"

	"github.com/sysu-ecnc-dev/slot-scheduler/backend/internal/config"
	"github.com/sysu-ecnc-dev/slot-scheduler/backend/internal/domain"
	"github.com/sysu-ecnc-dev/slot-scheduler/backend/internal/metrics"
	"github.com/sysu-ecnc-dev/slot-scheduler/backend/internal/repository"
)

// MessagePublisher 把消息投递到指定的队列
type MessagePublisher interface {
	Publish(ctx context.Context, queue string, v any) error
}

// SearchJobStore 保存批量搜索任务的状态与结果
type SearchJobStore interface {
	Save(ctx context.Context, job *domain.SearchJob) error
	Get(ctx context.Context, id string) (*domain.SearchJob, error)
}

type Handler struct {
	validate   *validator.Validate
	config     *config.Config
	repository *repository.Repository
	translator ut.Translator
	publisher  MessagePublisher
	jobs       SearchJobStore
	now        func() time.Time

	Mux *chi.Mux
}

func NewHandler(cfg *config.Config, repo *repository.Repository, publisher MessagePublisher, jobs SearchJobStore) (*Handler, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	zh := zh.New()
	uni := ut.New(zh, zh)
	trans, _ := uni.GetTranslator("zh")
	if err := zh_translations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, err
	}

	return &Handler{
		validate:   validate,
		config:     cfg,
		repository: repo,
		translator: trans,
		publisher:  publisher,
		jobs:       jobs,
		now:        time.Now,

		Mux: chi.NewRouter(),
	}, nil
}

func (h *Handler) RegisterRoutes() {
	h.Mux.Use(h.logger)
	h.Mux.Use(h.recoverer)
	h.Mux.Use(metrics.Instrument)

	h.Mux.Method(http.MethodGet, "/metrics", metrics.Handler())

	// 认证相关
	h.Mux.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.Login)
		r.Post("/logout", h.Logout)
	})

	// 以下 API 必须要在登录后才允许调用
	h.Mux.Group(func(r chi.Router) {
		r.Use(h.auth)
		r.Route("/my-info", func(r chi.Router) {
			r.Use(h.myInfo)
			r.Get("/", h.GetMyInfo)
			r.Patch("/password", h.UpdateMyPassword)
			r.Get("/availability", h.GetMyAvailability)
			r.With(h.preventLeavedAssistant).Put("/availability", h.UpdateMyAvailability)
			r.Get("/schedules", h.GetMySchedules)
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(h.RequiredRole([]domain.Role{domain.RoleAdmin}))
			r.Post("/", h.CreateUser)
			r.Get("/", h.GetAllUserInfo)
			r.Route("/{id}", func(r chi.Router) {
				r.Use(h.userInfo)
				r.Get("/", h.GetUserInfo)
				r.With(h.preventOperateInitialAdmin).Patch("/", h.UpdateUser)
				r.With(h.preventOperateInitialAdmin).Delete("/", h.DeleteUser)
				r.Patch("/password", h.UpdateUserPassword)
			})
		})

		r.Route("/workers", func(r chi.Router) {
			r.Use(h.RequiredRole([]domain.Role{domain.RoleAdmin}))
			r.Get("/", h.GetAllWorkers)
			r.Put("/params", h.UpdateWorkersParams)
			r.Route("/{id}", func(r chi.Router) {
				r.Use(h.workerInfo)
				r.Get("/", h.GetWorker)
				r.Patch("/params", h.UpdateWorkerParams)
			})
		})

		r.Route("/schedules", func(r chi.Router) {
			r.Use(h.RequiredRole([]domain.Role{domain.RoleAdmin}))
			r.Post("/generate", h.GenerateSchedules)
			r.Post("/", h.CreateSavedSchedule)
			r.Get("/", h.GetAllSavedSchedules)
			r.Route("/{id}", func(r chi.Router) {
				r.Use(h.savedSchedule)
				r.Get("/", h.GetSavedSchedule)
				r.Post("/publish", h.PublishSavedSchedule)
			})
		})

		r.Route("/schedule-searches", func(r chi.Router) {
			r.Use(h.RequiredRole([]domain.Role{domain.RoleAdmin}))
			r.Post("/", h.CreateScheduleSearch)
			r.Get("/{id}", h.GetScheduleSearch)
		})
	})
}

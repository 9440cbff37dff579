package metrics

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry 是本服务所有指标注册的地方，不使用 prometheus 的全局注册表
var Registry = prometheus.NewRegistry()

var (
	EngineRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduler_engine_runs_total",
		Help: "排班引擎运行次数",
	}, []string{"mode"})

	EngineDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "scheduler_engine_duration_seconds",
		Help:    "单次排班耗时",
		Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1},
	})

	HourCapViolations = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_hour_cap_violations_total",
		Help: "排班时出现超出个人工时上限的次数",
	})

	UnfilledSlots = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "scheduler_unfilled_slots",
		Help:    "每个返回给调用方的班表在允许时间窗口内没人值班的时间片数",
		Buckets: prometheus.LinearBuckets(0, 20, 10),
	})

	SearchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "scheduler_search_duration_seconds",
		Help:    "批量搜索耗时",
		Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
	})

	SearchIterations = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_search_iterations_total",
		Help: "批量搜索中完成的排班次数",
	})

	SearchJobs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduler_search_jobs_total",
		Help: "按最终状态统计的搜索任务数",
	}, []string{"status"})

	RequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP 请求耗时",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "status"})
)

func init() {
	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "当前 goroutine 数量",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	Registry.MustRegister(
		EngineRuns,
		EngineDuration,
		HourCapViolations,
		UnfilledSlots,
		SearchDuration,
		SearchIterations,
		SearchJobs,
		RequestDuration,
		goroutines,
	)
}

func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Instrument 记录每个请求的耗时
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		RequestDuration.WithLabelValues(r.Method, strconv.Itoa(rec.status)).Observe(time.Since(start).Seconds())
	})
}

package domain

import "time"

type SearchJobStatus string

const (
	SearchJobPending  SearchJobStatus = "pending"
	SearchJobRunning  SearchJobStatus = "running"
	SearchJobFinished SearchJobStatus = "finished"
	SearchJobFailed   SearchJobStatus = "failed"
)

type SearchJobParams struct {
	WorkerIDs        []int64 `json:"workerIDs"`
	MaxManHours      float64 `json:"maxManHours"`
	MinStaffPerShift int     `json:"minStaffPerShift"`
	Iterations       int     `json:"iterations"`
	TopK             int     `json:"topK"`
	TimeBudget       int     `json:"timeBudget"` // 秒
	OverstaffPenalty int     `json:"overstaffPenalty"`
}

type SearchJobCandidate struct {
	Cost     int            `json:"cost"`
	Seed     int64          `json:"seed"`
	Schedule WeeklySchedule `json:"schedule"`
}

type CoverageHistogram struct {
	Zero      int `json:"zero"`
	One       int `json:"one"`
	Two       int `json:"two"`
	ThreePlus int `json:"threePlus"`
}

type SearchJob struct {
	ID                string               `json:"id"`
	Status            SearchJobStatus      `json:"status"`
	Params            SearchJobParams      `json:"params"`
	Iterations        int                  `json:"iterations"`
	Candidates        []SearchJobCandidate `json:"candidates"`
	BestHistogram     *CoverageHistogram   `json:"bestHistogram"`
	HourCapViolations int                  `json:"hourCapViolations"`
	Error             string               `json:"error,omitempty"`
	CreatedAt         time.Time            `json:"createdAt"`
	FinishedAt        *time.Time           `json:"finishedAt"`
}

// SearchJobMessage 是投递到搜索队列中的消息
type SearchJobMessage struct {
	ID string `json:"id"`
}

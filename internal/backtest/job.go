package backtest

import (
	"time"

	"github.com/google/uuid"
)

const (
	JobStatusPending = "pending"
	JobStatusRunning = "running"
	JobStatusDone    = "done"
	JobStatusFailed  = "failed"
)

// FetchParams 描述一次拉取任务的请求参数。
type FetchParams struct {
	Symbol   string `json:"symbol"`
	Interval string `json:"interval"`
	Limit    int    `json:"limit"`
}

// FetchJob 用于在内存中跟踪任务进度。
type FetchJob struct {
	ID        string      `json:"id"`
	Status    string      `json:"status"`
	Params    FetchParams `json:"params"`
	Fetched   int         `json:"fetched"`
	StartedAt time.Time   `json:"started_at"`
	UpdatedAt time.Time   `json:"updated_at"`
	Message   string      `json:"message,omitempty"`
}

func newFetchJob(params FetchParams) *FetchJob {
	now := time.Now()
	return &FetchJob{
		ID:        uuid.NewString(),
		Status:    JobStatusPending,
		Params:    params,
		StartedAt: now,
		UpdatedAt: now,
	}
}

func (j *FetchJob) copy() FetchJob {
	if j == nil {
		return FetchJob{}
	}
	return *j
}

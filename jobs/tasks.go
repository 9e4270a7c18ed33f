package jobs

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/shopreports/internal/reports"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// QueueExports holds report export tasks.
	QueueExports = "exports"

	// TaskReportExport renders one report into the artifact store.
	TaskReportExport = "report:export"
	// TaskReportCacheBump invalidates every cached row set.
	TaskReportCacheBump = "report:cache-bump"
)

const (
	exportMaxRetry = 3
	exportTimeout  = 5 * time.Minute
)

// ExportPayload describes one asynchronous export.
type ExportPayload struct {
	ID         string          `json:"id"`
	Request    reports.Request `json:"request"`
	AllowEmpty bool            `json:"allowEmpty,omitempty"`
}

// NewExportPayload assigns a fresh export id to req.
func NewExportPayload(req reports.Request) ExportPayload {
	return ExportPayload{ID: uuid.NewString(), Request: req}
}

// NewExportTask constructs an Asynq task. The export id doubles as the task id
// so a duplicate enqueue is rejected by the queue.
func NewExportTask(payload ExportPayload) (*asynq.Task, error) {
	if payload.ID == "" {
		return nil, errors.New("jobs: export id required")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReportExport, data,
		asynq.TaskID(payload.ID),
		asynq.Queue(QueueExports),
		asynq.MaxRetry(exportMaxRetry),
		asynq.Timeout(exportTimeout),
	), nil
}

// NewCacheBumpTask constructs the periodic cache invalidation task.
func NewCacheBumpTask() *asynq.Task {
	return asynq.NewTask(TaskReportCacheBump, nil, asynq.Queue(QueueDefault), asynq.MaxRetry(1))
}

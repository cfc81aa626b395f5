package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	jobmetrics "github.com/tillworks/tillworks/internal/jobs"
)

const (
	// TaskMaintenanceCleanup prunes expired idempotency keys and stale
	// parked sales on a nightly schedule.
	TaskMaintenanceCleanup = "maintenance:cleanup"
)

// CleanupPayload tunes the retention windows, in days.
type CleanupPayload struct {
	IdempotencyDays int `json:"idempotency_days"`
	ParkedSaleDays  int `json:"parked_sale_days"`
}

// NewCleanupTask constructs the nightly maintenance task.
func NewCleanupTask(payload CleanupPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskMaintenanceCleanup, body, asynq.Queue(QueueDefault)), nil
}

// CleanupJob removes rows past their retention window.
type CleanupJob struct {
	Pool    *pgxpool.Pool
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// Handle executes the cleanup.
func (j *CleanupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Pool == nil {
		return errors.New("cleanup: handler not configured")
	}
	var payload CleanupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.IdempotencyDays <= 0 {
		payload.IdempotencyDays = 7
	}
	if payload.ParkedSaleDays <= 0 {
		payload.ParkedSaleDays = 3
	}

	tracker := j.Metrics.Track(TaskMaintenanceCleanup)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	keyCutoff := time.Now().AddDate(0, 0, -payload.IdempotencyDays)
	keys, err := j.Pool.Exec(ctx,
		`DELETE FROM idempotency_keys WHERE created_at < $1`, keyCutoff)
	if err != nil {
		resultErr = err
		return resultErr
	}

	// Parked drafts hold no stock, so expiring them is purely hygienic.
	parkedCutoff := time.Now().AddDate(0, 0, -payload.ParkedSaleDays)
	_, err = j.Pool.Exec(ctx,
		`DELETE FROM sale_items WHERE sale_id IN
		   (SELECT id FROM sales WHERE status = 'PARKED' AND created_at < $1)`,
		parkedCutoff)
	if err != nil {
		resultErr = err
		return resultErr
	}
	parked, err := j.Pool.Exec(ctx,
		`DELETE FROM sales WHERE status = 'PARKED' AND created_at < $1`, parkedCutoff)
	if err != nil {
		resultErr = err
		return resultErr
	}

	if j.Logger != nil {
		j.Logger.Info("maintenance cleanup finished",
			slog.Int64("idempotency_keys", keys.RowsAffected()),
			slog.Int64("parked_sales", parked.RowsAffected()))
	}
	return nil
}

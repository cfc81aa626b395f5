package jobs

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

type countingMetrics struct {
	sent int
}

func (m *countingMetrics) AddReceiptSMS(status string) {
	if status == "sent" {
		m.sent++
	}
}

func TestReceiptSMSFormatBody(t *testing.T) {
	job := &ReceiptSMSJob{}
	body := job.FormatBody(SendReceiptSMSPayload{
		SaleNumber:  "MAIN-20240115-7",
		TotalAmount: 16600,
	})
	require.Contains(t, body, "MAIN-20240115-7")
	require.Contains(t, body, "166")
}

func TestReceiptSMSHandle(t *testing.T) {
	metrics := &countingMetrics{}
	var logged bytes.Buffer
	job := &ReceiptSMSJob{
		Metrics: metrics,
		Logger:  slog.New(slog.NewTextHandler(&logged, nil)),
	}

	task, err := NewSendReceiptSMSTask(SendReceiptSMSPayload{
		Phone:       "+15550100",
		SaleNumber:  "MAIN-20240115-7",
		TotalAmount: 1500,
	})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 1, metrics.sent)

	// The dispatch goes through the structured logger, not stdout.
	require.Contains(t, logged.String(), "+15550100")
	require.Contains(t, logged.String(), "MAIN-20240115-7")

	// Malformed or incomplete payloads are dropped, not retried.
	bad := asynq.NewTask(TaskTypeSendReceiptSMS, []byte(`{"phone":""}`))
	require.ErrorIs(t, job.Handle(context.Background(), bad), asynq.SkipRetry)
	require.Equal(t, 1, metrics.sent)
}

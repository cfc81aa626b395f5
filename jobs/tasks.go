package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendReceiptSMS is the task type for sending receipt messages.
	TaskTypeSendReceiptSMS = "receipt:sms"
)

// SendReceiptSMSPayload describes one outbound receipt message. TotalAmount
// is in currency minor units.
type SendReceiptSMSPayload struct {
	Phone       string `json:"phone"`
	SaleNumber  string `json:"sale_number"`
	TotalAmount int64  `json:"total_amount"`
}

// NewSendReceiptSMSTask constructs an Asynq task.
func NewSendReceiptSMSTask(payload SendReceiptSMSPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendReceiptSMS, data), nil
}

// ReceiptSMSJob formats and dispatches receipt messages.
type ReceiptSMSJob struct {
	Logger  *slog.Logger
	Metrics interface{ AddReceiptSMS(status string) }
	Unit    currency.Unit
}

// Handle processes TaskTypeSendReceiptSMS tasks.
func (j *ReceiptSMSJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload SendReceiptSMSPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Phone == "" || payload.SaleNumber == "" {
		return asynq.SkipRetry
	}

	body := j.FormatBody(payload)
	// Placeholder: hand off to the SMS gateway once credentials land.
	if j.Logger != nil {
		j.Logger.Info("receipt sms dispatched",
			slog.String("to", payload.Phone),
			slog.String("sale_number", payload.SaleNumber),
			slog.String("body", body))
	}
	if j.Metrics != nil {
		j.Metrics.AddReceiptSMS("sent")
	}
	return nil
}

// FormatBody renders the customer-facing message text.
func (j *ReceiptSMSJob) FormatBody(payload SendReceiptSMSPayload) string {
	unit := j.Unit
	if (unit == currency.Unit{}) {
		unit = currency.USD
	}
	p := message.NewPrinter(language.English)
	amount := unit.Amount(float64(payload.TotalAmount) / 100)
	return p.Sprintf("Thank you for your purchase! Receipt %s, total %v.",
		payload.SaleNumber, currency.Symbol(amount))
}

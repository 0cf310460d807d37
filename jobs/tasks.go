package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/snd-est/snd-rental/internal/billing"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskMonthlyBilling is the recurring invoice-generation task.
	TaskMonthlyBilling = "billing:monthly"
)

// MonthlyBillingPayload selects which billing month to generate. An
// empty month bills every unbilled period up to now.
type MonthlyBillingPayload struct {
	BillingMonth string `json:"billingMonth,omitempty"`
}

// NewMonthlyBillingTask constructs the monthly billing task.
func NewMonthlyBillingTask(payload MonthlyBillingPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskMonthlyBilling, data,
		asynq.MaxRetry(3),
		asynq.Timeout(30*time.Minute),
		asynq.Queue(QueueDefault)), nil
}

// NewMonthlyBillingHandler returns the handler processing
// TaskMonthlyBilling tasks against the billing service.
func NewMonthlyBillingHandler(svc *billing.Service, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload MonthlyBillingPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		report, err := svc.GenerateAll(ctx, payload.BillingMonth)
		if err != nil {
			logger.Error("monthly billing run failed", slog.Any("error", err))
			return err
		}
		logger.Info("monthly billing run finished",
			slog.Int("processed", report.Processed),
			slog.Int("invoiced", report.Invoiced),
			slog.Int("skipped", report.Skipped),
			slog.Int("errors", len(report.Errors)))
		return nil
	}
}

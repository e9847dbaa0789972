// internal/workers/communication/send-report/handler.go
package sendreport

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"sme-cyber-assessment/internal/common/camunda"
	"sme-cyber-assessment/internal/common/errors"
	"sme-cyber-assessment/internal/common/logger"
	"sme-cyber-assessment/internal/common/metrics"
	"sme-cyber-assessment/internal/common/observability"
	"sme-cyber-assessment/internal/common/validation"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "send-report"

type Handler struct {
	config       *Config
	sender       Sender
	alerts       AlertPublisher
	obs          *observability.Observability
	logger       logger.Logger
	errorHandler *errors.ErrorHandler
	now          func() time.Time
}

// NewHandler wires the email transport and the optional alert publisher.
// alerts may be nil.
func NewHandler(config *Config, sender Sender, alerts AlertPublisher, obs *observability.Observability, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		sender:       sender,
		alerts:       alerts,
		obs:          obs,
		logger:       l,
		errorHandler: errors.NewErrorHandler(l),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.fail(ctx, client, job, errors.NewParseError(err), start)
		return
	}

	output, err := h.Execute(ctx, &input)
	if err != nil {
		h.fail(ctx, client, job, err, start)
		return
	}

	if err := camunda.CompleteJob(ctx, client, job, output); err != nil {
		h.logger.Error("failed to complete job", map[string]interface{}{"error": err})
		return
	}

	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
	h.obs.RecordJobProcessed(ctx, TaskType, "completed")
	h.obs.RecordJobDuration(ctx, TaskType, time.Since(start), "completed")
}

// Execute publishes the high-dependency alert, then emails the report.
// Alert before email: a retry after an alert failure must not resend mail.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	email := strings.TrimSpace(input.Email)
	if email != "" && !validation.ValidateEmail(email) {
		return nil, errors.NewInvalidEmailError(email)
	}

	output := &Output{EmailStatus: StatusSkipped, AlertStatus: StatusSkipped}

	if h.config.AlertsEnabled && h.alerts != nil && input.Dependency.Level == "high" {
		id, err := h.publishAlert(ctx, input)
		if err != nil {
			return nil, errors.NewAlertFailedError(err)
		}
		output.AlertStatus = StatusPublished
		output.AlertMessageID = id
	}

	if email == "" {
		h.logger.Info("no email address supplied, report not sent", map[string]interface{}{
			"sessionId": input.SessionID,
		})
		return output, nil
	}
	if h.sender == nil {
		return nil, errors.NewEmailSendFailedError(fmt.Errorf("no email transport configured"))
	}

	subject, text, html := renderReport(h.config.Subject, input)
	messageID, err := h.sender.Send(ctx, email, subject, text, html)
	if err != nil {
		return nil, errors.NewEmailSendFailedError(err)
	}

	h.logger.Info("report sent", map[string]interface{}{
		"sessionId": input.SessionID,
		"provider":  h.sender.Provider(),
		"messageId": messageID,
	})

	output.EmailStatus = StatusSent
	output.MessageID = messageID
	output.Provider = h.sender.Provider()
	output.SentAt = h.now().Format(time.RFC3339)
	return output, nil
}

func (h *Handler) publishAlert(ctx context.Context, input *Input) (string, error) {
	subject := snsSubject(fmt.Sprintf("High digital dependency: %s", input.Profile.CompanyName))

	var b strings.Builder
	b.WriteString(fmt.Sprintf("Company: %s\n", input.Profile.CompanyName))
	b.WriteString(fmt.Sprintf("Sector: %s\n", input.Profile.Sector))
	b.WriteString(fmt.Sprintf("Overall: %s (maturity %d)\n", input.Overall.Label, input.Overall.Maturity))
	b.WriteString(fmt.Sprintf("Dependency factors: %s\n", strings.Join(input.Dependency.Factors, ", ")))
	b.WriteString(fmt.Sprintf("Report: %s\n", input.ReportID))

	return h.alerts.PublishAlert(ctx, subject, b.String(), map[string]string{
		"dependency":  input.Dependency.Level,
		"overallBand": input.Overall.Band,
		"region":      input.Profile.Region,
	})
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, err error, start time.Time) {
	stdErr := errors.AsStandard(err)
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(stdErr.Code)).Inc()
	h.obs.RecordJobProcessed(ctx, TaskType, "failed")
	h.obs.RecordJobDuration(ctx, TaskType, time.Since(start), "failed")
	h.errorHandler.HandleJobError(ctx, client, job, stdErr)
}

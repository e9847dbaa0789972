// internal/workers/assessment/score-assessment/handler.go
package scoreassessment

import (
	"context"
	"encoding/json"
	"time"

	"sme-cyber-assessment/internal/assessment"
	"sme-cyber-assessment/internal/common/camunda"
	"sme-cyber-assessment/internal/common/errors"
	"sme-cyber-assessment/internal/common/logger"
	"sme-cyber-assessment/internal/common/metrics"
	"sme-cyber-assessment/internal/common/observability"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "score-assessment"

type Handler struct {
	config       *Config
	rules        *assessment.Rules
	obs          *observability.Observability
	logger       logger.Logger
	errorHandler *errors.ErrorHandler
}

func NewHandler(config *Config, rules *assessment.Rules, obs *observability.Observability, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		rules:        rules,
		obs:          obs,
		logger:       l,
		errorHandler: errors.NewErrorHandler(l),
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

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	start := time.Now()

	answers, err := h.rules.ParseAnswers(input.Answers)
	if err != nil {
		return nil, errors.NewAnswersValidationFailedError(err.Error())
	}
	if err := input.Profile.Validate(); err != nil {
		return nil, errors.NewProfileValidationFailedError(err.Error())
	}
	if input.RulesVersion != "" && input.RulesVersion != h.rules.Version {
		h.logger.Warn("scoring with a different rules version than the session was started with", map[string]interface{}{
			"sessionRulesVersion": input.RulesVersion,
			"rulesVersion":        h.rules.Version,
		})
	}

	report := assessment.Evaluate(h.rules, answers, input.Profile)

	metrics.AssessmentsScored.WithLabelValues(report.Overall.Band, report.RulesVersion).Inc()
	h.obs.RecordEvaluation(ctx, "worker", report.Overall.Band, time.Since(start))

	h.logger.Info("assessment scored", map[string]interface{}{
		"band":       report.Overall.Band,
		"maturity":   report.Overall.Maturity,
		"dependency": report.Dependency.Level,
		"answered":   report.Answered,
	})

	return &Output{
		Ratings:         report.Topics,
		Overall:         report.Overall,
		OverallBand:     report.Overall.Band,
		Maturity:        report.Overall.Maturity,
		Dependency:      report.Dependency,
		DependencyLevel: report.Dependency.Level,
		Sections:        report.Sections,
		ContextTags:     report.ContextTags,
		Answered:        report.Answered,
		Total:           report.Total,
		RulesVersion:    report.RulesVersion,
	}, nil
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, err error, start time.Time) {
	stdErr := errors.AsStandard(err)
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(stdErr.Code)).Inc()
	h.obs.RecordJobProcessed(ctx, TaskType, "failed")
	h.obs.RecordJobDuration(ctx, TaskType, time.Since(start), "failed")
	h.errorHandler.HandleJobError(ctx, client, job, stdErr)
}

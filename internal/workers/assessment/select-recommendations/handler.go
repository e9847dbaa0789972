// internal/workers/assessment/select-recommendations/handler.go
package selectrecommendations

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

const TaskType = "select-recommendations"

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

func (h *Handler) Execute(_ context.Context, input *Input) (*Output, error) {
	answers, err := h.rules.ParseAnswers(input.Answers)
	if err != nil {
		return nil, errors.NewAnswersValidationFailedError(err.Error())
	}

	tags := assessment.ContextTags(answers, input.Profile)
	advice := assessment.SelectRecommendations(h.rules, answers, tags)

	tiers := map[string]int{
		assessment.TierQuickWin:   0,
		assessment.TierMediumTerm: 0,
		assessment.TierCompliance: 0,
	}
	for _, a := range advice {
		tiers[a.Tier]++
	}

	metrics.RecommendationsSelected.Observe(float64(len(advice)))
	h.logger.Info("recommendations selected", map[string]interface{}{
		"count": len(advice),
		"tags":  tags,
	})

	return &Output{
		Recommendations:     advice,
		RecommendationCount: len(advice),
		ContextTags:         tags,
		TierCounts:          tiers,
	}, nil
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, err error, start time.Time) {
	stdErr := errors.AsStandard(err)
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(stdErr.Code)).Inc()
	h.obs.RecordJobProcessed(ctx, TaskType, "failed")
	h.obs.RecordJobDuration(ctx, TaskType, time.Since(start), "failed")
	h.errorHandler.HandleJobError(ctx, client, job, stdErr)
}

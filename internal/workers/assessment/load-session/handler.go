// internal/workers/assessment/load-session/handler.go
package loadsession

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"sme-cyber-assessment/internal/common/camunda"
	"sme-cyber-assessment/internal/common/errors"
	"sme-cyber-assessment/internal/common/logger"
	"sme-cyber-assessment/internal/common/metrics"
	"sme-cyber-assessment/internal/common/observability"
	"sme-cyber-assessment/internal/session"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "load-session"

type Handler struct {
	config       *Config
	store        session.Store
	obs          *observability.Observability
	logger       logger.Logger
	errorHandler *errors.ErrorHandler
}

func NewHandler(config *Config, store session.Store, obs *observability.Observability, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		store:        store,
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

// Execute reads the session from the store and returns its answers in the
// string form used by process variables.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	id := strings.TrimSpace(input.SessionID)
	if id == "" {
		return nil, errors.NewParseError(fmt.Errorf("sessionId is required"))
	}

	sess, err := h.store.Get(ctx, id)
	if stderrors.Is(err, session.ErrNotFound) {
		return nil, errors.NewSessionNotFoundError(id)
	}
	if err != nil {
		return nil, err
	}

	h.logger.Debug("session loaded", map[string]interface{}{
		"sessionId":    id,
		"answered":     len(sess.Answers),
		"rulesVersion": sess.RulesVersion,
	})

	return &Output{
		Profile:       sess.Profile,
		Answers:       sess.Answers.Strings(),
		RulesVersion:  sess.RulesVersion,
		AnsweredCount: len(sess.Answers),
	}, nil
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, err error, start time.Time) {
	stdErr := errors.AsStandard(err)
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(stdErr.Code)).Inc()
	h.obs.RecordJobProcessed(ctx, TaskType, "failed")
	h.obs.RecordJobDuration(ctx, TaskType, time.Since(start), "failed")
	h.errorHandler.HandleJobError(ctx, client, job, stdErr)
}

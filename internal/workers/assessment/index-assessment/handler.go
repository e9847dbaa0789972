// internal/workers/assessment/index-assessment/handler.go
package indexassessment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"sme-cyber-assessment/internal/common/camunda"
	"sme-cyber-assessment/internal/common/errors"
	"sme-cyber-assessment/internal/common/logger"
	"sme-cyber-assessment/internal/common/metrics"
	"sme-cyber-assessment/internal/common/observability"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/elastic/go-elasticsearch/v8"
)

const TaskType = "index-assessment"

type Handler struct {
	config       *Config
	client       *elasticsearch.Client
	obs          *observability.Observability
	logger       logger.Logger
	errorHandler *errors.ErrorHandler
	now          func() time.Time
}

// NewHandler builds the handler. A nil client turns every job into a skip.
func NewHandler(config *Config, client *elasticsearch.Client, obs *observability.Observability, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		client:       client,
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

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if h.client == nil {
		h.logger.Debug("benchmark indexing disabled", nil)
		return &Output{IndexStatus: StatusSkipped}, nil
	}

	docID := input.ReportID
	if docID == "" {
		docID = input.SessionID
	}
	if strings.TrimSpace(docID) == "" {
		return nil, errors.NewParseError(fmt.Errorf("reportId or sessionId is required"))
	}

	body, err := json.Marshal(h.buildDocument(docID, input))
	if err != nil {
		return nil, errors.NewInternalError(fmt.Errorf("marshal benchmark document: %w", err))
	}

	res, err := h.client.Index(
		h.config.Index,
		bytes.NewReader(body),
		h.client.Index.WithDocumentID(docID),
		h.client.Index.WithContext(ctx),
	)
	if err != nil {
		return nil, errors.NewIndexFailedError(h.config.Index, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return nil, errors.NewIndexFailedError(h.config.Index, fmt.Errorf("%s: %s", res.Status(), msg))
	}

	h.logger.Info("assessment indexed", map[string]interface{}{
		"index":      h.config.Index,
		"documentId": docID,
	})

	return &Output{IndexStatus: StatusIndexed, DocumentID: docID}, nil
}

// buildDocument drops everything that identifies the business.
func (h *Handler) buildDocument(docID string, input *Input) BenchmarkDocument {
	topics := make(map[string]string, len(input.Ratings))
	for _, r := range input.Ratings {
		topics[r.Topic] = string(r.Rating)
	}
	tags := input.ContextTags
	if tags == nil {
		tags = []string{}
	}
	return BenchmarkDocument{
		ReportID:      docID,
		RulesVersion:  input.RulesVersion,
		Sector:        input.Profile.Sector,
		EmployeeRange: input.Profile.EmployeeRange,
		Turnover:      input.Profile.Turnover,
		Region:        input.Profile.Region,
		WorkMode:      input.Profile.WorkMode,
		OverallBand:   input.Overall.Band,
		Maturity:      input.Overall.Maturity,
		Dependency:    input.Dependency.Level,
		Topics:        topics,
		ContextTags:   tags,
		IndexedAt:     h.now().Format(time.RFC3339),
	}
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, err error, start time.Time) {
	stdErr := errors.AsStandard(err)
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(stdErr.Code)).Inc()
	h.obs.RecordJobProcessed(ctx, TaskType, "failed")
	h.obs.RecordJobDuration(ctx, TaskType, time.Since(start), "failed")
	h.errorHandler.HandleJobError(ctx, client, job, stdErr)
}

// internal/workers/assessment/record-assessment/handler.go
package recordassessment

import (
	"context"
	"database/sql"
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

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

const TaskType = "record-assessment"

// uniqueViolation is the Postgres SQLSTATE for a unique constraint failure.
const uniqueViolation = "23505"

type Handler struct {
	config       *Config
	db           *sql.DB
	obs          *observability.Observability
	logger       logger.Logger
	errorHandler *errors.ErrorHandler
	now          func() time.Time
}

func NewHandler(config *Config, db *sql.DB, obs *observability.Observability, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		db:           db,
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
	input.ProcessInstanceKey = job.ProcessInstanceKey

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

// Execute stores one report per submission, identified by session and
// process instance. A redelivered job finds its earlier row and returns it.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if strings.TrimSpace(input.SessionID) == "" {
		return nil, errors.NewParseError(fmt.Errorf("sessionId is required"))
	}
	if !input.Profile.Complete() {
		return nil, errors.NewProfileIncompleteError()
	}
	if input.Overall.Band == "" {
		return nil, errors.NewParseError(fmt.Errorf("overall band is missing; run score-assessment first"))
	}

	existing, err := h.findRecorded(ctx, input)
	if err != nil {
		return nil, errors.NewDatabaseInsertFailedError(fmt.Errorf("lookup: %w", err))
	}
	if existing != nil {
		h.logger.Info("assessment already recorded", map[string]interface{}{
			"reportId":           existing.ReportID,
			"sessionId":          input.SessionID,
			"processInstanceKey": input.ProcessInstanceKey,
		})
		return existing, nil
	}

	answersJSON, err := json.Marshal(nonNilAnswers(input.Answers))
	if err != nil {
		return nil, errors.NewInternalError(fmt.Errorf("marshal answers: %w", err))
	}
	reportJSON, err := json.Marshal(storedReport{
		Ratings:         input.Ratings,
		Overall:         input.Overall,
		Dependency:      input.Dependency,
		Sections:        input.Sections,
		ContextTags:     input.ContextTags,
		Recommendations: input.Recommendations,
	})
	if err != nil {
		return nil, errors.NewInternalError(fmt.Errorf("marshal report: %w", err))
	}

	reportID := uuid.New().String()
	createdAt := h.now()

	_, err = h.db.ExecContext(ctx, `
		INSERT INTO assessment_reports (
			id, session_id, process_instance_key, company_name, person_name, sector,
			employee_range, region, rules_version, overall_band, maturity, dependency,
			answers, report, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		reportID,
		input.SessionID,
		input.ProcessInstanceKey,
		input.Profile.CompanyName,
		input.Profile.PersonName,
		input.Profile.Sector,
		input.Profile.EmployeeRange,
		input.Profile.Region,
		input.RulesVersion,
		input.Overall.Band,
		input.Overall.Maturity,
		input.Dependency.Level,
		answersJSON,
		reportJSON,
		createdAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if stderrors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			// a concurrent delivery of the same job won the insert
			if existing, lookupErr := h.findRecorded(ctx, input); lookupErr == nil && existing != nil {
				return existing, nil
			}
			return nil, errors.NewDuplicateAssessmentError(input.SessionID)
		}
		return nil, errors.NewDatabaseInsertFailedError(err)
	}

	// audit entries are best effort
	auditJSON, _ := json.Marshal(map[string]interface{}{
		"sessionId":          input.SessionID,
		"processInstanceKey": input.ProcessInstanceKey,
		"overallBand":        input.Overall.Band,
		"maturity":           input.Overall.Maturity,
		"rulesVersion":       input.RulesVersion,
	})
	_, err = h.db.ExecContext(ctx, `
		INSERT INTO audit_log (entity_type, entity_id, action, details, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		"assessment_report",
		reportID,
		"recorded",
		auditJSON,
		createdAt,
	)
	if err != nil {
		h.logger.Warn("audit log insert failed", map[string]interface{}{
			"error":    err,
			"reportId": reportID,
		})
	}

	h.logger.Info("assessment recorded", map[string]interface{}{
		"reportId":  reportID,
		"sessionId": input.SessionID,
		"band":      input.Overall.Band,
	})

	return &Output{
		ReportID:   reportID,
		RecordedAt: createdAt.Format(time.RFC3339),
	}, nil
}

// findRecorded returns the report already stored for this submission, or nil.
func (h *Handler) findRecorded(ctx context.Context, input *Input) (*Output, error) {
	var (
		id        string
		createdAt time.Time
	)
	err := h.db.QueryRowContext(ctx, `
		SELECT id, created_at FROM assessment_reports
		WHERE session_id = $1 AND process_instance_key = $2`,
		input.SessionID, input.ProcessInstanceKey,
	).Scan(&id, &createdAt)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &Output{ReportID: id, RecordedAt: createdAt.UTC().Format(time.RFC3339)}, nil
}

func nonNilAnswers(a map[string]string) map[string]string {
	if a == nil {
		return map[string]string{}
	}
	return a
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, err error, start time.Time) {
	stdErr := errors.AsStandard(err)
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(stdErr.Code)).Inc()
	h.obs.RecordJobProcessed(ctx, TaskType, "failed")
	h.obs.RecordJobDuration(ctx, TaskType, time.Since(start), "failed")
	h.errorHandler.HandleJobError(ctx, client, job, stdErr)
}

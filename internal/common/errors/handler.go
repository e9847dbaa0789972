// internal/common/errors/handler.go
package errors

import (
	"context"
	"encoding/json"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

// Logger is the slice of logger.Logger the handler needs.
type Logger interface {
	Error(msg string, fields map[string]interface{})
}

// ErrorHandler reports a failed job back to the engine: retryable codes fail
// the job with a decremented retry count, everything else is thrown as a
// BPMN error for the process to catch.
type ErrorHandler struct {
	logger Logger
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// HandleJobError fails or throws job depending on the error code.
func (h *ErrorHandler) HandleJobError(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	stdErr := AsStandard(err)
	bpmnErr := ConvertToBPMNError(stdErr)
	vars, _ := json.Marshal(bpmnErr.ToErrorVariables())

	retries, fail := retryDecision(stdErr.Code, job.Retries)

	h.logger.Error("job failed", map[string]interface{}{
		"jobKey":             job.Key,
		"jobType":            job.Type,
		"processInstanceKey": job.ProcessInstanceKey,
		"errorCode":          string(stdErr.Code),
		"bpmnErrorCode":      bpmnErr.Code,
		"category":           GetErrorCategory(stdErr.Code),
		"details":            stdErr.Details,
		"retriesLeft":        retries,
		"thrown":             !fail,
	})

	if fail {
		cmd := client.NewFailJobCommand().JobKey(job.Key).Retries(retries).ErrorMessage(bpmnErr.Message)
		if withVars, err := cmd.VariablesFromString(string(vars)); err == nil {
			_, _ = withVars.Send(ctx)
			return
		}
		_, _ = cmd.Send(ctx)
		return
	}

	cmd := client.NewThrowErrorCommand().JobKey(job.Key).ErrorCode(bpmnErr.Code).ErrorMessage(bpmnErr.Message)
	if withVars, err := cmd.VariablesFromString(string(vars)); err == nil {
		_, _ = withVars.Send(ctx)
		return
	}
	_, _ = cmd.Send(ctx)
}

// retryDecision returns the retry count to report and whether the job should
// be failed (true) rather than thrown. The engine counts down from the job's
// own retries and raises an incident at zero; the code's budget caps it.
func retryDecision(code ErrorCode, jobRetries int32) (int32, bool) {
	budget := int32(GetRetryCount(code))
	if budget == 0 || jobRetries <= 0 {
		return 0, false
	}
	left := jobRetries - 1
	if left > budget {
		left = budget
	}
	return left, true
}
